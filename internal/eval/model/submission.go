package model

// SubmissionStatus is the lifecycle state of a submission.
type SubmissionStatus string

const (
	StatusWaiting          SubmissionStatus = "waiting"
	StatusCompilationError SubmissionStatus = "compilation_error"
	StatusSuccess          SubmissionStatus = "success"
	StatusInternalError    SubmissionStatus = "internal_error"
)

// Submission represents a single solution upload awaiting or holding a verdict.
// Rows are created by the upload path in waiting state; this service only
// mutates status, score and compilation messages.
type Submission struct {
	ID                  int64
	TaskID              int64
	ParticipationID     int64
	Files               []string
	Status              SubmissionStatus
	CompilationMessages string
	Score               float64
}

// Task is read-only reference data owned by task management.
type Task struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	Title       string  `json:"title"`
	TimeLimit   float64 `json:"time_limit"`
	MemoryLimit int64   `json:"memory_limit"`
	MaxScore    float64 `json:"max_score"`
	Format      string  `json:"format"`
}

// Subtask is a task-defined group of testcases, addressed by its number
// within the task.
type Subtask struct {
	ID       int64   `json:"id"`
	TaskID   int64   `json:"task_id"`
	Num      int     `json:"num"`
	MaxScore float64 `json:"max_score"`
}

package model

// SubtaskResult records the score one evaluation pass assigned to a subtask.
type SubtaskResult struct {
	ID           int64
	SubmissionID int64
	SubtaskID    int64
	Score        float64
}

// TestcaseResult records one testcase outcome within a subtask result.
type TestcaseResult struct {
	ID              int64
	SubtaskResultID int64
	Num             int
	RunningTime     float64
	MemoryUsage     int64
	Message         string
	Score           float64
}

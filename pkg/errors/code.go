package errors

// ErrorCode represents a unique error identifier
type ErrorCode int

// Error code ranges allocation:
// 10000-10999: System & Common errors
// 20000-20999: Evaluation errors
// 21000-21999: Event distribution errors

const (
	// ========== System & Common Errors (10000-10999) ==========

	// Success
	Success ErrorCode = 10000

	// Generic errors (10000-10099)
	InternalServerError ErrorCode = 10001
	InvalidParams       ErrorCode = 10002
	NotFound            ErrorCode = 10003
	ServiceUnavailable  ErrorCode = 10004
	Timeout             ErrorCode = 10005

	// Database errors (10100-10199)
	DatabaseError     ErrorCode = 10100
	RecordNotFound    ErrorCode = 10101
	TransactionFailed ErrorCode = 10102

	// Cache errors (10200-10299)
	CacheError ErrorCode = 10200

	// Validation errors (10300-10399)
	ValidationFailed ErrorCode = 10300

	// ========== Evaluation Errors (20000-20999) ==========

	// Admission (20000-20099)
	WrongFileCount    ErrorCode = 20000
	AlreadyEvaluating ErrorCode = 20001

	// Judge process (20100-20199)
	JudgeSpawnFailed   ErrorCode = 20100
	JudgeStreamFailed  ErrorCode = 20101
	StreamDecodeFailed ErrorCode = 20102

	// Result persistence (20200-20299)
	ResultPersistFailed     ErrorCode = 20200
	SolutionRecordMissing   ErrorCode = 20201
	SubtaskUnknown          ErrorCode = 20202
	UnsupportedResultFormat ErrorCode = 20203

	// Reference data (20300-20399)
	TaskNotFound          ErrorCode = 20300
	ParticipationNotFound ErrorCode = 20301
	SubmissionNotFound    ErrorCode = 20302

	// ========== Event Distribution Errors (21000-21999) ==========

	EventDeliveryFailed ErrorCode = 21000
	SessionNotFound     ErrorCode = 21001
	EventPublishFailed  ErrorCode = 21002
)

// errorMessages maps error codes to their default English messages
var errorMessages = map[ErrorCode]string{
	// System & Common
	Success:             "Success",
	InternalServerError: "Internal server error",
	InvalidParams:       "Invalid parameters",
	NotFound:            "Resource not found",
	ServiceUnavailable:  "Service temporarily unavailable",
	Timeout:             "Request timeout",

	// Database
	DatabaseError:     "Database operation failed",
	RecordNotFound:    "Record not found",
	TransactionFailed: "Database transaction failed",

	// Cache
	CacheError: "Cache operation failed",

	// Validation
	ValidationFailed: "Validation failed",

	// Evaluation
	WrongFileCount:    "Unsupported number of submission files",
	AlreadyEvaluating: "Submission is already being evaluated",

	JudgeSpawnFailed:   "Failed to start the judge process",
	JudgeStreamFailed:  "Failed to read the judge output stream",
	StreamDecodeFailed: "Failed to decode a judge message",

	ResultPersistFailed:     "Failed to store the evaluation results",
	SolutionRecordMissing:   "Judge result does not reference the submitted file",
	SubtaskUnknown:          "Judge result references an unknown subtask",
	UnsupportedResultFormat: "Result format is not supported for persistence",

	TaskNotFound:          "Task not found",
	ParticipationNotFound: "Participation not found",
	SubmissionNotFound:    "Submission not found",

	// Event distribution
	EventDeliveryFailed: "Failed to deliver event to subscriber",
	SessionNotFound:     "Subscriber session not found",
	EventPublishFailed:  "Failed to publish event",
}

// Message returns the default message for the error code
func (c ErrorCode) Message() string {
	if msg, ok := errorMessages[c]; ok {
		return msg
	}
	return "Unknown error"
}

// IsTerminal reports whether the code aborts an evaluation run.
// StreamDecodeFailed is the only evaluation code recovered per line.
func (c ErrorCode) IsTerminal() bool {
	return c != StreamDecodeFailed
}

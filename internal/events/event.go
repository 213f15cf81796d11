package events

import "encoding/json"

// Event is one status update for a submission, delivered to the submission
// owner's subscribers. UpdateID numbers events within a single evaluation
// run, starting at 0; it is not unique across runs.
type Event struct {
	SubmissionID int64  `json:"submission_id"`
	UpdateID     int64  `json:"update_id"`
	Status       Status `json:"status"`
}

// Status is the closed set of per-evaluation updates. Each variant marshals
// to JSON with a discriminating "type" field.
type Status interface {
	statusType() string
}

// Started is emitted once the submission is admitted for evaluation.
type Started struct{}

func (Started) statusType() string { return "started" }

func (s Started) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type string `json:"type"`
	}{Type: s.statusType()})
}

// Compiled reports the compilation outcome for the submitted file.
type Compiled struct {
	Success bool   `json:"success"`
	Stderr  string `json:"stderr"`
}

func (Compiled) statusType() string { return "compiled" }

func (s Compiled) MarshalJSON() ([]byte, error) {
	type alias Compiled
	return json.Marshal(struct {
		Type string `json:"type"`
		alias
	}{Type: s.statusType(), alias: alias(s)})
}

// TestcaseScored reports progress on one testcase.
type TestcaseScored struct {
	Subtask  int     `json:"subtask"`
	Testcase int     `json:"testcase"`
	Score    float64 `json:"score"`
	Message  string  `json:"message"`
}

func (TestcaseScored) statusType() string { return "testcase_scored" }

func (s TestcaseScored) MarshalJSON() ([]byte, error) {
	type alias TestcaseScored
	return json.Marshal(struct {
		Type string `json:"type"`
		alias
	}{Type: s.statusType(), alias: alias(s)})
}

// SubtaskScored reports progress on one subtask.
type SubtaskScored struct {
	Subtask int     `json:"subtask"`
	Score   float64 `json:"score"`
}

func (SubtaskScored) statusType() string { return "subtask_scored" }

func (s SubtaskScored) MarshalJSON() ([]byte, error) {
	type alias SubtaskScored
	return json.Marshal(struct {
		Type string `json:"type"`
		alias
	}{Type: s.statusType(), alias: alias(s)})
}

// Done is the terminal success update carrying the final score.
type Done struct {
	Score float64 `json:"score"`
}

func (Done) statusType() string { return "done" }

func (s Done) MarshalJSON() ([]byte, error) {
	type alias Done
	return json.Marshal(struct {
		Type string `json:"type"`
		alias
	}{Type: s.statusType(), alias: alias(s)})
}

// Error is a failure update. It is terminal except when reporting a single
// undecodable judge line, after which evaluation continues.
type Error struct {
	Message string `json:"message"`
}

func (Error) statusType() string { return "error" }

func (s Error) MarshalJSON() ([]byte, error) {
	type alias Error
	return json.Marshal(struct {
		Type string `json:"type"`
		alias
	}{Type: s.statusType(), alias: alias(s)})
}

// Subscriber receives events for one connected client.
type Subscriber interface {
	Notify(event Event) error
}

// Notifier publishes status events for one submission owner. It decouples
// evaluation logic from delivery mechanics.
type Notifier interface {
	Publish(event Event)
}

package judge

import (
	"encoding/json"
	"fmt"
)

// Message tags emitted by the judge, one JSON object per stdout line.
const (
	actionCompilation     = "compilation"
	actionTestcaseOutcome = "testcase-outcome"
	actionSubtaskOutcome  = "subtask-outcome"
	actionResult          = "result"
	actionOpenEndedResult = "open-ended-result"
)

// State is the phase reported alongside progress messages.
type State string

const (
	StateWaiting State = "WAITING"
	StateSkipped State = "SKIPPED"
	StateStart   State = "START"
	StateWarning State = "WARNING"
	StateError   State = "ERROR"
	StateFailure State = "FAILURE"
	StateSuccess State = "SUCCESS"
)

// CompilationStatus is the per-file compilation verdict in the terminal result.
type CompilationStatus string

const (
	CompilationWaiting   CompilationStatus = "WAITING"
	CompilationCompiling CompilationStatus = "COMPILING"
	CompilationDone      CompilationStatus = "DONE"
	CompilationFailure   CompilationStatus = "FAILURE"
)

// Message is one decoded line of judge output. The concrete types form a
// closed set; lines with unrecognized tags decode to Ignored and malformed
// lines decode to DecodeError so a bad line never aborts the stream.
type Message interface {
	judgeMessage()
}

// Resources reports the resource usage of one sandboxed execution.
type Resources struct {
	CPUTime  float64 `json:"cpu_time"`
	SysTime  float64 `json:"sys_time"`
	WallTime float64 `json:"wall_time"`
	Memory   int64   `json:"memory"`
}

// ExecutionResult is the outcome of one sandboxed execution. Status is kept
// raw: the judge encodes some variants as strings and some as objects, and
// nothing here inspects it.
type ExecutionResult struct {
	Status    json.RawMessage `json:"status"`
	Error     *string         `json:"error"`
	Resources Resources       `json:"resources"`
	WasKilled bool            `json:"was_killed"`
}

// Execution pairs captured output with the execution result.
type Execution struct {
	Stderr *string          `json:"stderr"`
	Stdout *string          `json:"stdout"`
	Result *ExecutionResult `json:"result"`
}

// Compilation is a compilation progress message for one source file.
type Compilation struct {
	State State           `json:"state"`
	Data  CompilationData `json:"data"`
}

type CompilationData struct {
	File   string           `json:"file"`
	Path   string           `json:"path"`
	Result *ExecutionResult `json:"result"`
}

func (*Compilation) judgeMessage() {}

// TestcaseOutcome is a per-testcase progress message.
type TestcaseOutcome struct {
	State State               `json:"state"`
	Data  TestcaseOutcomeData `json:"data"`
}

type TestcaseOutcomeData struct {
	Name     string  `json:"name"`
	Testcase int     `json:"testcase"`
	Subtask  int     `json:"subtask"`
	Status   string  `json:"status"`
	Score    float64 `json:"score"`
	Message  string  `json:"message"`
}

func (*TestcaseOutcome) judgeMessage() {}

// SubtaskOutcome is a per-subtask progress message.
type SubtaskOutcome struct {
	State State              `json:"state"`
	Data  SubtaskOutcomeData `json:"data"`
}

type SubtaskOutcomeData struct {
	Name    string  `json:"name"`
	Subtask int     `json:"subtask"`
	Status  string  `json:"status"`
	Score   float64 `json:"score"`
}

func (*SubtaskOutcome) judgeMessage() {}

// SolutionCompilation is the terminal compilation record for one file.
type SolutionCompilation struct {
	Status      CompilationStatus `json:"status"`
	Compilation *Execution        `json:"compilation"`
}

// Stderr returns the captured compiler stderr, or "" when nothing was
// captured.
func (c *SolutionCompilation) Stderr() string {
	if c.Compilation == nil || c.Compilation.Stderr == nil {
		return ""
	}
	return *c.Compilation.Stderr
}

// SolutionTestcaseResult is the terminal record for one testcase of one
// solution. Result entries may be nil for testcases that never ran.
type SolutionTestcaseResult struct {
	Status  string             `json:"status"`
	Result  []*ExecutionResult `json:"result"`
	Score   float64            `json:"score"`
	Message string             `json:"message"`
}

// SolutionTesting is the terminal scoring record for one solution. Map keys
// are subtask and testcase numbers rendered as decimal strings.
type SolutionTesting struct {
	Name            string                                       `json:"name"`
	Path            string                                       `json:"path"`
	Score           float64                                      `json:"score"`
	SubtaskScores   map[string]float64                           `json:"subtask_scores"`
	SubtaskResults  map[string]string                            `json:"subtask_results"`
	TestcaseResults map[string]map[string]SolutionTestcaseResult `json:"testcase_results"`
}

// IOIResult is the terminal result message for subtask-scored tasks.
type IOIResult struct {
	Solutions    map[string]SolutionCompilation `json:"solutions"`
	NonSolutions map[string]SolutionCompilation `json:"non_solutions"`
	Testing      map[string]SolutionTesting     `json:"testing"`
}

func (*IOIResult) judgeMessage() {}

// OpenEndedResult is the terminal result message for open-ended tasks. The
// payload is kept raw; persistence for this format is not supported.
type OpenEndedResult struct {
	Raw json.RawMessage
}

func (*OpenEndedResult) judgeMessage() {}

// Ignored is a recognized line whose tag carries no information this service
// acts on.
type Ignored struct {
	Action string
}

func (*Ignored) judgeMessage() {}

// DecodeError is a line that failed to decode. It is surfaced in-stream so
// malformed telemetry never aborts judging.
type DecodeError struct {
	Line string
	Err  error
}

func (*DecodeError) judgeMessage() {}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("undecodable judge message: %v: %s", e.Err, e.Line)
}

type envelope struct {
	Action string `json:"action"`
}

func decodeLine(line []byte) Message {
	var env envelope
	if err := json.Unmarshal(line, &env); err != nil {
		return &DecodeError{Line: string(line), Err: err}
	}
	if env.Action == "" {
		return &DecodeError{Line: string(line), Err: fmt.Errorf("missing action tag")}
	}

	switch env.Action {
	case actionCompilation:
		var m Compilation
		if err := json.Unmarshal(line, &m); err != nil {
			return &DecodeError{Line: string(line), Err: err}
		}
		return &m
	case actionTestcaseOutcome:
		var m TestcaseOutcome
		if err := json.Unmarshal(line, &m); err != nil {
			return &DecodeError{Line: string(line), Err: err}
		}
		return &m
	case actionSubtaskOutcome:
		var m SubtaskOutcome
		if err := json.Unmarshal(line, &m); err != nil {
			return &DecodeError{Line: string(line), Err: err}
		}
		return &m
	case actionResult:
		var m IOIResult
		if err := json.Unmarshal(line, &m); err != nil {
			return &DecodeError{Line: string(line), Err: err}
		}
		return &m
	case actionOpenEndedResult:
		raw := make(json.RawMessage, len(line))
		copy(raw, line)
		return &OpenEndedResult{Raw: raw}
	default:
		return &Ignored{Action: env.Action}
	}
}

package judge

import (
	"bufio"
	"bytes"
	"context"
	"os/exec"
	"time"

	"go.uber.org/zap"

	"ojcore/pkg/errors"
	"ojcore/pkg/utils/logger"
)

const (
	// Terminal result lines carry the full per-testcase map and can get large.
	initialLineBuffer = 64 << 10
	maxLineBuffer     = 16 << 20
)

// Runner starts one judge run and exposes its output as a message stream.
type Runner interface {
	Run(ctx context.Context, taskDir, solutionPath string) (Stream, error)
}

// Stream is a lazy, order-preserving view of one judge run's output.
type Stream interface {
	// Next returns the next decoded message. ok is false once the judge
	// closes its stdout; the caller must then Wait to reap the process.
	Next() (Message, bool)

	// Wait reaps the judge process after the stream is exhausted.
	Wait(ctx context.Context) error
}

// ProcessRunner runs the external judge binary. A zero timeout means the
// child may run unbounded.
type ProcessRunner struct {
	binary  string
	timeout time.Duration
}

func NewProcessRunner(binary string, timeout time.Duration) *ProcessRunner {
	return &ProcessRunner{binary: binary, timeout: timeout}
}

// Run spawns the judge against the given task directory and solution file.
// Spawn failures are returned immediately; nothing is retried.
func (r *ProcessRunner) Run(ctx context.Context, taskDir, solutionPath string) (Stream, error) {
	cancel := context.CancelFunc(func() {})
	if r.timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
	}

	cmd := exec.CommandContext(ctx, r.binary,
		"--ui=json",
		"--no-statement",
		"--no-sanity-checks",
		"--task-dir", taskDir,
		solutionPath,
	)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, errors.Wrap(err, errors.JudgeSpawnFailed)
	}
	if err := cmd.Start(); err != nil {
		cancel()
		return nil, errors.Wrap(err, errors.JudgeSpawnFailed).
			WithDetail("binary", r.binary)
	}

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, initialLineBuffer), maxLineBuffer)

	return &processStream{
		cmd:     cmd,
		ctx:     ctx,
		cancel:  cancel,
		scanner: scanner,
	}, nil
}

type processStream struct {
	cmd     *exec.Cmd
	ctx     context.Context
	cancel  context.CancelFunc
	scanner *bufio.Scanner
}

func (s *processStream) Next() (Message, bool) {
	for s.scanner.Scan() {
		line := bytes.TrimSpace(s.scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		return decodeLine(line), true
	}
	return nil, false
}

// Wait logs the exit code without acting on it; a read failure or an
// expired run deadline is returned as an error.
func (s *processStream) Wait(ctx context.Context) error {
	defer s.cancel()

	waitErr := s.cmd.Wait()
	if s.ctx.Err() == context.DeadlineExceeded {
		return errors.Wrap(s.ctx.Err(), errors.Timeout).
			WithMessage("judge process exceeded its run deadline")
	}
	if waitErr != nil {
		logger.Warn(ctx, "judge process exited abnormally", zap.Error(waitErr))
	} else {
		logger.Debug(ctx, "judge process exited",
			zap.Int("exit_code", s.cmd.ProcessState.ExitCode()))
	}

	if err := s.scanner.Err(); err != nil {
		return errors.Wrap(err, errors.JudgeStreamFailed)
	}
	return nil
}

package service

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strconv"

	"go.uber.org/zap"

	"ojcore/internal/common/mq"
	"ojcore/internal/eval/judge"
	"ojcore/internal/eval/model"
	"ojcore/internal/eval/repository"
	"ojcore/internal/events"
	"ojcore/pkg/errors"
	"ojcore/pkg/utils/logger"
)

// EvaluatorOptions wires the orchestrator's collaborators. Publisher is
// optional; when nil, terminal events stay in-process only.
type EvaluatorOptions struct {
	Runner      judge.Runner
	Guard       *Guard
	Submissions repository.SubmissionRepository
	Tasks       repository.TaskRepository
	Results     repository.ResultRepository

	Publisher    mq.Producer
	PublishTopic string

	// SubmissionDir holds one directory per submission id with its files;
	// TaskDir holds one directory per task id.
	SubmissionDir string
	TaskDir       string
}

// Evaluator runs the end-to-end evaluate-one-submission operation: admit,
// spawn the judge, interpret its stream, persist the terminal result and
// emit a status timeline.
type Evaluator struct {
	opts EvaluatorOptions
}

func NewEvaluator(opts EvaluatorOptions) *Evaluator {
	return &Evaluator{opts: opts}
}

// emitter numbers one run's events from zero and pushes them to the
// notifier in observation order.
type emitter struct {
	submissionID int64
	notifier     events.Notifier
	next         int64
}

func (em *emitter) emit(status events.Status) events.Event {
	event := events.Event{
		SubmissionID: em.submissionID,
		UpdateID:     em.next,
		Status:       status,
	}
	em.next++
	em.notifier.Publish(event)
	return event
}

// Evaluate judges one submission and returns its final score. Every failure
// mode ends in a terminal Error event for the owner except the file-count
// precondition, which aborts before the timeline begins.
func (e *Evaluator) Evaluate(ctx context.Context, submission *model.Submission, userID int64, notifier events.Notifier) (float64, error) {
	ctx = context.WithValue(ctx, logger.SubmissionIDKey, submission.ID)
	ctx = context.WithValue(ctx, logger.UserIDKey, userID)

	if len(submission.Files) != 1 {
		logger.Warn(ctx, "refusing submission with unsupported file count",
			zap.Int("files", len(submission.Files)))
		e.markInternalError(ctx, submission.ID)
		return 0, errors.Newf(errors.WrongFileCount,
			"submission %d has %d files, want exactly 1", submission.ID, len(submission.Files))
	}

	em := &emitter{submissionID: submission.ID, notifier: notifier}

	if !e.opts.Guard.Admit(submission.ID) {
		em.emit(events.Error{Message: "submission is already being evaluated"})
		return 0, errors.Newf(errors.AlreadyEvaluating,
			"submission %d is already being evaluated", submission.ID)
	}
	defer e.opts.Guard.Release(submission.ID)

	score, err := e.runAdmitted(ctx, submission, em)
	if err != nil {
		event := em.emit(events.Error{Message: err.Error()})
		e.publishTerminal(ctx, event)
		return 0, err
	}

	event := em.emit(events.Done{Score: score})
	e.publishTerminal(ctx, event)
	logger.Info(ctx, "evaluation completed", zap.Float64("score", score))
	return score, nil
}

func (e *Evaluator) runAdmitted(ctx context.Context, submission *model.Submission, em *emitter) (float64, error) {
	em.emit(events.Started{})

	file := submission.Files[0]
	solutionPath := filepath.Join(e.opts.SubmissionDir,
		strconv.FormatInt(submission.ID, 10), file)
	taskDir := filepath.Join(e.opts.TaskDir,
		strconv.FormatInt(submission.TaskID, 10))

	stream, err := e.opts.Runner.Run(ctx, taskDir, solutionPath)
	if err != nil {
		e.markInternalError(ctx, submission.ID)
		return 0, err
	}

	var (
		score      float64
		persisted  bool
		persistErr error
	)
loop:
	for {
		msg, ok := stream.Next()
		if !ok {
			break
		}
		switch m := msg.(type) {
		case *judge.Compilation:
			if m.Data.File != file && m.Data.Path != solutionPath {
				continue
			}
			switch m.State {
			case judge.StateSuccess:
				em.emit(events.Compiled{Success: true})
			case judge.StateFailure:
				em.emit(events.Compiled{Success: false})
			}
		case *judge.TestcaseOutcome:
			em.emit(events.TestcaseScored{
				Subtask:  m.Data.Subtask,
				Testcase: m.Data.Testcase,
				Score:    m.Data.Score,
				Message:  m.Data.Message,
			})
		case *judge.SubtaskOutcome:
			em.emit(events.SubtaskScored{
				Subtask: m.Data.Subtask,
				Score:   m.Data.Score,
			})
		case *judge.IOIResult:
			score, persistErr = e.persistIOI(ctx, submission, m)
			if persistErr != nil {
				break loop
			}
			persisted = true
		case *judge.OpenEndedResult:
			score, persistErr = e.opts.Results.PersistOpenEnded(ctx, submission, m)
			if persistErr != nil {
				break loop
			}
			persisted = true
		case *judge.DecodeError:
			logger.Warn(ctx, "undecodable judge message", zap.Error(m.Err))
			em.emit(events.Error{Message: "undecodable judge message"})
		case *judge.Ignored:
		}
	}

	waitErr := stream.Wait(ctx)

	if persistErr != nil {
		e.markInternalError(ctx, submission.ID)
		return 0, persistErr
	}
	if waitErr != nil {
		return 0, waitErr
	}
	if !persisted {
		// No terminal result: leave the submission waiting so the sweep
		// picks it up again.
		return 0, errors.Newf(errors.JudgeStreamFailed,
			"judge exited without a terminal result for submission %d", submission.ID)
	}
	return score, nil
}

func (e *Evaluator) persistIOI(ctx context.Context, submission *model.Submission, result *judge.IOIResult) (float64, error) {
	task, err := e.opts.Tasks.GetTask(ctx, submission.TaskID)
	if err != nil {
		return 0, err
	}
	subtasks, err := e.opts.Tasks.ListSubtasks(ctx, task.ID)
	if err != nil {
		return 0, err
	}
	return e.opts.Results.PersistIOI(ctx, submission, result, subtasks)
}

// markInternalError is best effort: a failure to mark is logged, never
// retried, and never masks the original error.
func (e *Evaluator) markInternalError(ctx context.Context, submissionID int64) {
	if err := e.opts.Submissions.MarkInternalError(ctx, submissionID); err != nil {
		logger.Error(ctx, "failed to mark submission internal_error", zap.Error(err))
	}
}

// publishTerminal forwards a terminal event to the configured broker for
// downstream consumers. Delivery failures only log.
func (e *Evaluator) publishTerminal(ctx context.Context, event events.Event) {
	if e.opts.Publisher == nil {
		return
	}
	body, err := json.Marshal(event)
	if err != nil {
		logger.Error(ctx, "cannot encode terminal event", zap.Error(err))
		return
	}
	msg := mq.NewMessage(body)
	msg.ID = strconv.FormatInt(event.SubmissionID, 10)
	if err := e.opts.Publisher.Publish(ctx, e.opts.PublishTopic, msg); err != nil {
		logger.Error(ctx, "terminal event publish failed",
			zap.String("topic", e.opts.PublishTopic), zap.Error(err))
	}
}

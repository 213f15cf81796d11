package service

import (
	"context"
	"sync"

	"ojcore/internal/common/db"
	"ojcore/internal/eval/judge"
	"ojcore/internal/eval/model"
	"ojcore/internal/events"
	"ojcore/pkg/errors"
)

type fakeStream struct {
	messages []judge.Message
	idx      int
	waitErr  error
}

func (s *fakeStream) Next() (judge.Message, bool) {
	if s.idx >= len(s.messages) {
		return nil, false
	}
	msg := s.messages[s.idx]
	s.idx++
	return msg, true
}

func (s *fakeStream) Wait(ctx context.Context) error { return s.waitErr }

// blockingStream holds an evaluation in flight until its channel closes,
// then yields the queued messages.
type blockingStream struct {
	release  chan struct{}
	messages []judge.Message
	idx      int
}

func (s *blockingStream) Next() (judge.Message, bool) {
	<-s.release
	if s.idx >= len(s.messages) {
		return nil, false
	}
	msg := s.messages[s.idx]
	s.idx++
	return msg, true
}

func (s *blockingStream) Wait(ctx context.Context) error { return nil }

type fakeRunner struct {
	mu      sync.Mutex
	stream  judge.Stream
	err     error
	calls   int
	started chan struct{}

	// streamFactory, when set, hands every run its own stream.
	streamFactory func() judge.Stream

	lastTaskDir      string
	lastSolutionPath string
}

func (r *fakeRunner) Run(ctx context.Context, taskDir, solutionPath string) (judge.Stream, error) {
	r.mu.Lock()
	r.calls++
	r.lastTaskDir = taskDir
	r.lastSolutionPath = solutionPath
	started := r.started
	r.mu.Unlock()
	if started != nil {
		close(started)
	}
	if r.err != nil {
		return nil, r.err
	}
	if r.streamFactory != nil {
		return r.streamFactory(), nil
	}
	return r.stream, nil
}

func (r *fakeRunner) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

type updateCall struct {
	id     int64
	status model.SubmissionStatus
	score  float64
}

type fakeSubmissions struct {
	mu             sync.Mutex
	updates        []updateCall
	internalErrors []int64
	waiting        []*model.Submission
	users          map[int64]int64
	listErr        error
	markErr        error
}

func (f *fakeSubmissions) UpdateResult(ctx context.Context, tx db.Transaction, id int64, status model.SubmissionStatus, score float64, compilationMessages string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, updateCall{id: id, status: status, score: score})
	return nil
}

func (f *fakeSubmissions) MarkInternalError(ctx context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.markErr != nil {
		return f.markErr
	}
	f.internalErrors = append(f.internalErrors, id)
	return nil
}

func (f *fakeSubmissions) ListWaiting(ctx context.Context) ([]*model.Submission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.waiting, nil
}

func (f *fakeSubmissions) GetParticipationUser(ctx context.Context, participationID int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	userID, ok := f.users[participationID]
	if !ok {
		return 0, errors.Newf(errors.ParticipationNotFound,
			"participation %d not found", participationID)
	}
	return userID, nil
}

func (f *fakeSubmissions) markedInternalError() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int64(nil), f.internalErrors...)
}

type fakeTasks struct {
	task     *model.Task
	subtasks map[int]*model.Subtask
}

func (f *fakeTasks) GetTask(ctx context.Context, id int64) (*model.Task, error) {
	if f.task == nil {
		return nil, errors.Newf(errors.TaskNotFound, "task %d not found", id)
	}
	return f.task, nil
}

func (f *fakeTasks) ListSubtasks(ctx context.Context, taskID int64) (map[int]*model.Subtask, error) {
	return f.subtasks, nil
}

type fakeResults struct {
	mu           sync.Mutex
	score        float64
	err          error
	persistCalls int
}

func (f *fakeResults) PersistIOI(ctx context.Context, submission *model.Submission, result *judge.IOIResult, subtasks map[int]*model.Subtask) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.persistCalls++
	return f.score, f.err
}

func (f *fakeResults) PersistOpenEnded(ctx context.Context, submission *model.Submission, result *judge.OpenEndedResult) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return 0, errors.New(errors.UnsupportedResultFormat)
}

func (f *fakeResults) persistCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.persistCalls
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []events.Event
}

func (n *recordingNotifier) Publish(event events.Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
}

func (n *recordingNotifier) published() []events.Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]events.Event(nil), n.events...)
}

func statusNames(published []events.Event) []string {
	var names []string
	for _, event := range published {
		switch event.Status.(type) {
		case events.Started:
			names = append(names, "started")
		case events.Compiled:
			names = append(names, "compiled")
		case events.TestcaseScored:
			names = append(names, "testcase_scored")
		case events.SubtaskScored:
			names = append(names, "subtask_scored")
		case events.Done:
			names = append(names, "done")
		case events.Error:
			names = append(names, "error")
		}
	}
	return names
}

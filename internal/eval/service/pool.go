package service

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"ojcore/internal/eval/model"
	"ojcore/internal/events"
	"ojcore/pkg/utils/logger"
)

// DefaultWorkers is the pool size when none is configured.
const DefaultWorkers = 3

// Request asks the pool to evaluate one submission, reporting status events
// to the notifier. Reply, when non-nil, receives the outcome; otherwise the
// request is fire and forget.
type Request struct {
	Submission *model.Submission
	UserID     int64
	Notifier   events.Notifier
	Reply      chan Result
}

// Result is the outcome of one evaluation request.
type Result struct {
	SubmissionID int64
	Score        float64
	Err          error
}

// Pool runs evaluations on a fixed number of workers. A worker handles one
// evaluation at a time; spawn, stream reads and commits all block inside it.
type Pool struct {
	evaluator *Evaluator
	requests  chan Request
	workers   int
	wg        sync.WaitGroup
}

func NewPool(evaluator *Evaluator, workers int) *Pool {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Pool{
		evaluator: evaluator,
		requests:  make(chan Request),
		workers:   workers,
	}
}

func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(ctx)
	}
}

func (p *Pool) worker(ctx context.Context) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case req, ok := <-p.requests:
			if !ok {
				return
			}
			score, err := p.evaluator.Evaluate(ctx, req.Submission, req.UserID, req.Notifier)
			if err != nil {
				logger.Error(ctx, "evaluation failed",
					zap.Int64("submission_id", req.Submission.ID),
					zap.Error(err))
			}
			if req.Reply != nil {
				req.Reply <- Result{
					SubmissionID: req.Submission.ID,
					Score:        score,
					Err:          err,
				}
			}
		}
	}
}

// Submit hands a request to the pool, blocking until a worker accepts it or
// the context ends.
func (p *Pool) Submit(ctx context.Context, req Request) error {
	select {
	case p.requests <- req:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop drains no further requests and waits for in-flight evaluations. No
// Submit may run after Stop.
func (p *Pool) Stop() {
	close(p.requests)
	p.wg.Wait()
}

package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"ojcore/internal/eval/repository"
	"ojcore/internal/events"
	"ojcore/pkg/utils/logger"
)

// DefaultSweepInterval is how often the pending sweep runs when no interval
// is configured.
const DefaultSweepInterval = 20 * time.Second

// NotifierFactory builds the notifier carrying one user's status events.
type NotifierFactory func(userID int64) events.Notifier

// Sweeper periodically re-issues evaluation for submissions still waiting.
// It is the recovery path for submissions that were queued but never
// evaluated, standing in for a persistent work queue.
type Sweeper struct {
	submissions repository.SubmissionRepository
	pool        *Pool
	notify      NotifierFactory
	interval    time.Duration

	quit chan struct{}
	done chan struct{}
}

func NewSweeper(submissions repository.SubmissionRepository, pool *Pool, notify NotifierFactory, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &Sweeper{
		submissions: submissions,
		pool:        pool,
		notify:      notify,
		interval:    interval,
		quit:        make(chan struct{}),
		done:        make(chan struct{}),
	}
}

func (s *Sweeper) Start(ctx context.Context) {
	go s.loop(ctx)
}

func (s *Sweeper) loop(ctx context.Context) {
	defer close(s.done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.quit:
			return
		case <-ticker.C:
			// A failed scan must not stop future ticks.
			if err := s.SweepPending(ctx); err != nil {
				logger.Error(ctx, "pending sweep failed", zap.Error(err))
			}
		}
	}
}

// SweepPending loads every waiting submission, resolves its owner and
// submits one evaluation request each. Per-submission failures are logged
// and skipped; they are not retried within the same sweep.
func (s *Sweeper) SweepPending(ctx context.Context) error {
	submissions, err := s.submissions.ListWaiting(ctx)
	if err != nil {
		return err
	}
	if len(submissions) > 0 {
		logger.Info(ctx, "sweeping pending submissions",
			zap.Int("count", len(submissions)))
	}

	for _, submission := range submissions {
		userID, err := s.submissions.GetParticipationUser(ctx, submission.ParticipationID)
		if err != nil {
			logger.Error(ctx, "cannot resolve submission owner",
				zap.Int64("submission_id", submission.ID),
				zap.Error(err))
			continue
		}
		req := Request{
			Submission: submission,
			UserID:     userID,
			Notifier:   s.notify(userID),
		}
		if err := s.pool.Submit(ctx, req); err != nil {
			return err
		}
	}
	return nil
}

// Stop ends the periodic loop and waits for it to exit. In-flight
// evaluations are the pool's to finish.
func (s *Sweeper) Stop() {
	close(s.quit)
	<-s.done
}

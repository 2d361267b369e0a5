// Package scheduler triggers collection runs on a cron schedule.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/robfig/cron"
	"github.com/username/capitolwatch/backend/src/logger"
	"github.com/username/capitolwatch/backend/src/services"
)

const schedulerName = "CollectionCronWorker"

// Runner starts one collection run.
type Runner interface {
	RunCollection(ctx context.Context, cfg services.RunConfig) (services.RunSummary, error)
}

type Scheduler struct {
	runner Runner
	spec   string
	cron   *cron.Cron

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
}

// New validates spec and registers the collection job. The job does not fire
// until Start.
func New(runner Runner, spec string) (*Scheduler, error) {
	s := &Scheduler{runner: runner, spec: spec, cron: cron.New(), ctx: context.Background()}
	if err := s.cron.AddFunc(spec, s.tick); err != nil {
		return nil, fmt.Errorf("invalid collection schedule %q: %w", spec, err)
	}
	return s, nil
}

// Start runs the schedule until Stop or until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()
	s.cron.Start()
	logger.L.Info("Scheduler started", "worker", schedulerName, "schedule", s.spec)
}

// Stop halts future ticks and cancels a run in flight.
func (s *Scheduler) Stop() {
	s.cron.Stop()
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()
	logger.L.Info("Scheduler stopped", "worker", schedulerName)
}

func (s *Scheduler) tick() {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()

	summary, err := s.runner.RunCollection(ctx, services.RunConfig{Trigger: "scheduled"})
	switch {
	case errors.Is(err, services.ErrRunInProgress):
		logger.L.Info("Skipping scheduled collection: a run is already in progress", "worker", schedulerName)
	case err != nil:
		logger.L.Error("Scheduled collection failed", "worker", schedulerName, "error", err)
	default:
		logger.L.Info("Scheduled collection finished", "worker", schedulerName, "runID", summary.RunID, "status", summary.Status)
	}
}

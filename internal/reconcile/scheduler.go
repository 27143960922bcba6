package reconcile

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Scheduler runs the reconciliation job periodically.
type Scheduler struct {
	job      *Job
	interval time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewScheduler(job *Job, interval time.Duration) *Scheduler {
	return &Scheduler{
		job:      job,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the reconciliation loop
func (s *Scheduler) Start(ctx context.Context) {
	s.wg.Add(1)
	go s.run(ctx)
}

// Stop waits for the sweep in progress, if any, and ends the loop.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
	s.wg.Wait()
}

func (s *Scheduler) run(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	// Run immediately on start
	s.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// A failed sweep is retried on the next tick.
func (s *Scheduler) tick(ctx context.Context) {
	if _, err := s.job.RunOnce(ctx); err != nil {
		zap.L().Warn("Scheduled reconciliation failed, retrying next tick",
			zap.Duration("interval", s.interval), zap.Error(err))
	}
}

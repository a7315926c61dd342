// Package scheduler runs named background jobs on fixed intervals. Jobs are
// fire-and-forget: a failing run is logged and the ticker keeps going.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

type Job func(ctx context.Context) error

type Scheduler struct {
	log *slog.Logger
	wg  sync.WaitGroup
}

func New(log *slog.Logger) *Scheduler {
	return &Scheduler{log: log}
}

// Every runs job each interval until ctx is cancelled.
func (s *Scheduler) Every(ctx context.Context, interval time.Duration, name string, job Job) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				started := time.Now()
				if err := job(ctx); err != nil {
					s.log.Error("scheduled job failed", "job", name, "error", err)
					continue
				}
				s.log.Debug("scheduled job done", "job", name, "took", time.Since(started))
			}
		}
	}()
}

// Wait blocks until every job loop has exited. Call after cancelling the
// context passed to Every.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

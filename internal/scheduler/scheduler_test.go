package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

type SchedulerSuite struct {
	suite.Suite
	sched *Scheduler
}

func TestSchedulerSuite(t *testing.T) {
	suite.Run(t, new(SchedulerSuite))
}

func (s *SchedulerSuite) SetupTest() {
	s.sched = New(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func (s *SchedulerSuite) TestRunsUntilCancelled() {
	ctx, cancel := context.WithCancel(context.Background())
	var runs atomic.Int64

	s.sched.Every(ctx, time.Millisecond, "count", func(context.Context) error {
		runs.Add(1)
		return nil
	})

	s.Eventually(func() bool { return runs.Load() >= 3 }, time.Second, time.Millisecond)
	cancel()
	s.sched.Wait()

	after := runs.Load()
	time.Sleep(10 * time.Millisecond)
	s.Equal(after, runs.Load())
}

func (s *SchedulerSuite) TestKeepsTickingAfterFailure() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var runs atomic.Int64

	s.sched.Every(ctx, time.Millisecond, "flaky", func(context.Context) error {
		if runs.Add(1) == 1 {
			return errors.New("transient")
		}
		return nil
	})

	s.Eventually(func() bool { return runs.Load() >= 2 }, time.Second, time.Millisecond)
}

package service

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/permitdata/ahj-registry-api/internal/models"
)

type countingRunner struct {
	runs    atomic.Int64
	applied int
}

func (c *countingRunner) ApplyEdits(_ context.Context, _ []models.Edit) (int, error) {
	c.runs.Add(1)
	return c.applied, nil
}

func TestEditSchedulerRunsOnStartAndOnDemand(t *testing.T) {
	runner := &countingRunner{applied: 2}
	scheduler := NewEditScheduler(runner, nil, zap.NewNop(), SchedulerConfig{Interval: time.Hour})

	var observed atomic.Int64
	scheduler.OnApplied(func(count int) { observed.Add(int64(count)) })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	scheduler.Start(ctx)
	defer scheduler.Stop()

	require.Eventually(t, func() bool { return runner.runs.Load() >= 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, scheduler.RunNow())
	require.Eventually(t, func() bool { return runner.runs.Load() >= 2 }, time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool { return observed.Load() >= 4 }, time.Second, 10*time.Millisecond)
}

func TestEditSchedulerTicks(t *testing.T) {
	runner := &countingRunner{}
	scheduler := NewEditScheduler(runner, nil, zap.NewNop(), SchedulerConfig{Interval: 20 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	scheduler.Start(ctx)
	defer scheduler.Stop()

	require.Eventually(t, func() bool { return runner.runs.Load() >= 3 }, 2*time.Second, 10*time.Millisecond)
}

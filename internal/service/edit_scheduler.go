package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/permitdata/ahj-registry-api/internal/models"
	"github.com/permitdata/ahj-registry-api/pkg/jobs"
)

const jobTypeApplyDue = "apply-due-edits"

type applyRunner interface {
	ApplyEdits(ctx context.Context, candidates []models.Edit) (int, error)
}

// SchedulerConfig governs the periodic apply run.
type SchedulerConfig struct {
	Interval   time.Duration
	Workers    int
	MaxRetries int
}

// EditScheduler drives the engine from a background ticker. Web requests
// create and approve edits; this is the only place that applies them.
type EditScheduler struct {
	engine    applyRunner
	queue     *jobs.Queue
	interval  time.Duration
	metrics   *MetricsService
	logger    *zap.Logger
	onApplied func(count int)
}

// NewEditScheduler constructs the scheduler and its backing queue. metrics
// may be nil.
func NewEditScheduler(engine applyRunner, metrics *MetricsService, logger *zap.Logger, cfg SchedulerConfig) *EditScheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Hour
	}
	s := &EditScheduler{
		engine:   engine,
		interval: cfg.Interval,
		metrics:  metrics,
		logger:   logger,
	}
	s.queue = jobs.NewQueue("edit-apply", s.handle, jobs.QueueConfig{
		Workers:    cfg.Workers,
		MaxRetries: cfg.MaxRetries,
		Logger:     logger,
	})
	return s
}

// OnApplied registers a hook invoked with the applied count after each run.
func (s *EditScheduler) OnApplied(fn func(count int)) {
	s.onApplied = fn
}

// Start boots the queue workers and the ticker. An apply run is enqueued
// immediately so edits that came due while the process was down are not
// delayed a full interval.
func (s *EditScheduler) Start(ctx context.Context) {
	s.queue.Start(ctx)
	s.enqueueRun()

	ticker := time.NewTicker(s.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.enqueueRun()
			}
		}
	}()
}

// Stop drains the queue workers.
func (s *EditScheduler) Stop() {
	s.queue.Stop()
}

// RunNow triggers an immediate out-of-cycle apply run.
func (s *EditScheduler) RunNow() error {
	return s.queue.Enqueue(jobs.Job{ID: uuid.NewString(), Type: jobTypeApplyDue})
}

func (s *EditScheduler) enqueueRun() {
	if err := s.queue.Enqueue(jobs.Job{ID: uuid.NewString(), Type: jobTypeApplyDue}); err != nil {
		s.logger.Warn("enqueue apply run failed", zap.Error(err))
	}
}

func (s *EditScheduler) handle(ctx context.Context, job jobs.Job) error {
	start := time.Now()
	applied, err := s.engine.ApplyEdits(ctx, nil)
	if err != nil {
		return err
	}
	s.metrics.ObserveApplyRun(time.Since(start))
	s.metrics.RecordEditsApplied(applied)
	if applied > 0 {
		s.logger.Info("applied due edits", zap.Int("count", applied), zap.String("job_id", job.ID))
	}
	if s.onApplied != nil {
		s.onApplied(applied)
	}
	return nil
}

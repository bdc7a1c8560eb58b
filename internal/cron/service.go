package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/groupbuy-backend/pkg/logger"
	"github.com/angelmondragon/groupbuy-backend/pkg/metrics"
)

const defaultInterval = time.Minute

type ServiceParams struct {
	Logger   *logger.Logger
	Registry *Registry
	Lock     Lock
	// Metrics is optional.
	Metrics      *metrics.JobMetrics
	Interval     time.Duration
	RunOnStartup bool
	Now          func() time.Time
}

// Service ticks every Interval. Each cycle takes the lock, then runs the
// jobs the registry reports due, one after another. A failing job is logged
// and does not stop the others.
type Service struct {
	logg         *logger.Logger
	registry     *Registry
	lock         Lock
	metrics      *metrics.JobMetrics
	interval     time.Duration
	runOnStartup bool
	now          func() time.Time
}

func NewService(p ServiceParams) (*Service, error) {
	switch {
	case p.Logger == nil:
		return nil, errors.New("logger required")
	case p.Lock == nil:
		return nil, errors.New("lock required")
	case p.Registry == nil:
		return nil, errors.New("registry required")
	}
	s := &Service{
		logg:         p.Logger,
		registry:     p.Registry,
		lock:         p.Lock,
		metrics:      p.Metrics,
		interval:     p.Interval,
		runOnStartup: p.RunOnStartup,
		now:          p.Now,
	}
	if s.interval <= 0 {
		s.interval = defaultInterval
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s, nil
}

// Run blocks until ctx is done and returns its error.
func (s *Service) Run(ctx context.Context) error {
	if s.runOnStartup {
		s.cycle(ctx)
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.cycle(ctx)
		}
	}
}

func (s *Service) cycle(ctx context.Context) {
	if err := s.runDue(ctx); err != nil {
		s.logg.Error(ctx, "cron cycle failed", err)
	}
}

func (s *Service) runDue(ctx context.Context) error {
	held, err := s.lock.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("lock acquire: %w", err)
	}
	if !held {
		s.logg.Debug(ctx, "cron lock held elsewhere; skipping cycle")
		return nil
	}
	defer func() {
		if err := s.lock.Release(context.WithoutCancel(ctx)); err != nil {
			s.logg.Error(ctx, "cron lock release failed", err)
		}
	}()

	for _, job := range s.registry.Due(s.now()) {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.runJob(ctx, job)
	}
	return nil
}

func (s *Service) runJob(ctx context.Context, job Job) {
	name := job.Name()
	ctx = s.logg.WithJob(ctx, name)
	started := s.now()
	s.registry.MarkRan(name, started)

	err := job.Run(ctx)
	took := s.now().Sub(started)
	s.metrics.Observe(name, started.Add(took), took, err)

	ctx = s.logg.WithField(ctx, "duration_ms", took.Milliseconds())
	if err != nil {
		s.logg.Error(ctx, "cron job failed", err)
		return
	}
	s.logg.Debug(ctx, "cron job done")
}

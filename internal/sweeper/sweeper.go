package sweeper

import (
	"context"
	"fmt"
	"time"

	"github.com/anmolvirk/swiftcart-backend/pkg/logger"
)

const (
	defaultInterval      = 5 * time.Minute
	defaultPaymentWindow = 30 * time.Minute
)

// ExpiredReleaser cancels stale pending orders and returns their stock.
type ExpiredReleaser interface {
	ReleaseExpired(ctx context.Context, olderThan time.Duration) (int, error)
}

// ServiceParams configure the sweep service.
type ServiceParams struct {
	Logger        *logger.Logger
	Orders        ExpiredReleaser
	Lock          Lock
	Metrics       *Metrics
	Interval      time.Duration
	PaymentWindow time.Duration
}

// Service runs the stale-order sweep on a fixed cadence.
type Service struct {
	logg     *logger.Logger
	orders   ExpiredReleaser
	lock     Lock
	metrics  *Metrics
	interval time.Duration
	window   time.Duration
}

// NewService builds a sweep service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders service required")
	}
	if params.Lock == nil {
		return nil, fmt.Errorf("lock required")
	}
	interval := params.Interval
	if interval <= 0 {
		interval = defaultInterval
	}
	window := params.PaymentWindow
	if window <= 0 {
		window = defaultPaymentWindow
	}
	return &Service{
		logg:     params.Logger,
		orders:   params.Orders,
		lock:     params.Lock,
		metrics:  params.Metrics,
		interval: interval,
		window:   window,
	}, nil
}

// Run starts the sweep loop until the context is canceled.
func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := s.RunOnce(ctx); err != nil {
		s.logg.Error(ctx, "sweep run failed", err)
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "sweep service context canceled")
			return ctx.Err()
		case <-ticker.C:
			if err := s.RunOnce(ctx); err != nil {
				s.logg.Error(ctx, "sweep run failed", err)
			}
		}
	}
}

// RunOnce performs a single sweep cycle under the distributed lock.
func (s *Service) RunOnce(ctx context.Context) error {
	locked, err := s.lock.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("lock acquire: %w", err)
	}
	if !locked {
		s.logg.Info(ctx, "another sweeper instance is running; skipping this cycle")
		return nil
	}
	defer func() {
		if relErr := s.lock.Release(ctx); relErr != nil {
			s.logg.Error(ctx, "failed to release sweep lock", relErr)
		}
	}()

	runCtx := s.logg.WithField(ctx, "event", "sweep.run")
	s.logg.Info(runCtx, "sweep starting")
	start := time.Now()
	released, err := s.orders.ReleaseExpired(runCtx, s.window)
	duration := time.Since(start)
	s.metrics.ObserveDuration(duration)
	runCtx = s.logg.WithFields(runCtx, map[string]any{
		"duration_ms": duration.Milliseconds(),
		"released":    released,
	})
	if err != nil {
		s.logg.Error(runCtx, "sweep failed", err)
		s.metrics.IncFailure()
		return err
	}
	s.metrics.IncSuccess()
	s.metrics.AddReleased(released)
	s.logg.Info(runCtx, "sweep complete")
	return nil
}

// Package cleanup runs the retention sweep that deletes old error records on a
// fixed-delay schedule.
package cleanup

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/kiranshivaraju/apperrors/internal/lock"
	"github.com/kiranshivaraju/apperrors/internal/logger"
	"github.com/kiranshivaraju/apperrors/internal/metrics"
	"github.com/kiranshivaraju/apperrors/internal/store"
	"github.com/kiranshivaraju/apperrors/pkg/models"
)

// Strategy selects which records a sweep removes.
type Strategy string

const (
	// AllErrors removes old resolved and old unresolved records.
	AllErrors Strategy = "ALL_ERRORS"
	// ResolvedOnly never removes unresolved records.
	ResolvedOnly Strategy = "RESOLVED_ONLY"
)

// ParseStrategy accepts the strategy names case-insensitively.
func ParseStrategy(s string) (Strategy, error) {
	switch st := Strategy(strings.ToUpper(strings.TrimSpace(s))); st {
	case AllErrors, ResolvedOnly:
		return st, nil
	}
	return "", fmt.Errorf("%w: unknown cleanup strategy %q", models.ErrInvalidArgument, s)
}

const DefaultJobName = "application-errors-cleanup"

type Config struct {
	Name                string
	Strategy            Strategy
	ResolvedRetention   time.Duration
	UnresolvedRetention time.Duration
	InitialDelay        time.Duration
	Interval            time.Duration
}

func (c Config) validate() error {
	switch {
	case c.Strategy != AllErrors && c.Strategy != ResolvedOnly:
		return fmt.Errorf("%w: unknown cleanup strategy %q", models.ErrInvalidArgument, c.Strategy)
	case c.ResolvedRetention <= 0:
		return fmt.Errorf("%w: resolved retention must be positive", models.ErrInvalidArgument)
	case c.Strategy == AllErrors && c.UnresolvedRetention <= 0:
		return fmt.Errorf("%w: unresolved retention must be positive", models.ErrInvalidArgument)
	case c.InitialDelay < 0:
		return fmt.Errorf("%w: initial delay must not be negative", models.ErrInvalidArgument)
	case c.Interval <= 0:
		return fmt.Errorf("%w: interval must be positive", models.ErrInvalidArgument)
	}
	return nil
}

// Result reports what one sweep removed.
type Result struct {
	ResolvedDeleted   int64
	UnresolvedDeleted int64
	// Skipped is set when another instance holds the sweep lease.
	Skipped bool
}

// Sweeper deletes records past their retention. A failed run is logged and the
// schedule continues.
type Sweeper struct {
	store  store.ErrorStore
	cfg    Config
	logger logger.Logger
	locker lock.Locker
	now    func() time.Time

	stopOnce sync.Once
	stopCh   chan struct{}
	done     chan struct{}
}

type Option func(*Sweeper)

// WithClock replaces time.Now when computing cutoffs.
func WithClock(now func() time.Time) Option {
	return func(s *Sweeper) { s.now = now }
}

// WithLocker makes each run take a lease first, so instances sharing a store
// sweep it once per interval between them.
func WithLocker(l lock.Locker) Option {
	return func(s *Sweeper) { s.locker = l }
}

// New validates cfg and returns a stopped Sweeper.
func New(s store.ErrorStore, cfg Config, log logger.Logger, opts ...Option) (*Sweeper, error) {
	if cfg.Name == "" {
		cfg.Name = DefaultJobName
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	sw := &Sweeper{
		store:  s,
		cfg:    cfg,
		logger: log.With(logger.String("job", cfg.Name)),
		now:    time.Now,
		stopCh: make(chan struct{}),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(sw)
	}
	return sw, nil
}

// Start runs the first sweep after the initial delay and each later one an
// interval after the previous run finished. It returns immediately.
func (s *Sweeper) Start(ctx context.Context) {
	s.logger.Info("cleanup job scheduled",
		logger.String("strategy", string(s.cfg.Strategy)),
		logger.Duration("initial_delay", s.cfg.InitialDelay),
		logger.Duration("interval", s.cfg.Interval))

	go func() {
		defer close(s.done)
		timer := time.NewTimer(s.cfg.InitialDelay)
		defer timer.Stop()
		for {
			select {
			case <-timer.C:
				s.run(ctx)
				timer.Reset(s.cfg.Interval)
			case <-s.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop ends the schedule and waits for a run in progress. Only valid after Start.
func (s *Sweeper) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
	<-s.done
}

func (s *Sweeper) run(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			metrics.IncSweepRun(s.cfg.Name, metrics.SweepError)
			s.logger.Error("cleanup job panicked", logger.Any("panic", r))
		}
	}()

	start := time.Now()
	res, err := s.RunOnce(ctx)
	metrics.ObserveSweepDuration(s.cfg.Name, time.Since(start).Seconds())

	switch {
	case err != nil:
		metrics.IncSweepRun(s.cfg.Name, metrics.SweepError)
		s.logger.Error("cleanup job failed", logger.Error(err))
	case res.Skipped:
		metrics.IncSweepRun(s.cfg.Name, metrics.SweepSkipped)
		s.logger.Debug("cleanup job skipped; another instance holds the lease")
	default:
		metrics.IncSweepRun(s.cfg.Name, metrics.SweepOK)
		if res.ResolvedDeleted+res.UnresolvedDeleted > 0 {
			s.logger.Info("cleanup job completed",
				logger.Int64("resolved_deleted", res.ResolvedDeleted),
				logger.Int64("unresolved_deleted", res.UnresolvedDeleted))
		} else {
			s.logger.Debug("no error records to clean up")
		}
	}
}

// RunOnce performs a single sweep and returns its error instead of logging it.
// Both deletions are attempted even when the first fails.
func (s *Sweeper) RunOnce(ctx context.Context) (Result, error) {
	if s.locker == nil {
		return s.sweep(ctx)
	}

	key := lock.SweepKey(s.cfg.Name)
	token, ok, err := s.locker.TryLock(ctx, key, s.cfg.Interval)
	if err != nil {
		s.logger.Warn("cleanup lease unavailable, sweeping anyway", logger.Error(err))
		return s.sweep(ctx)
	}
	if !ok {
		return Result{Skipped: true}, nil
	}

	// After a successful run the lease is left to expire.
	res, err := s.sweep(ctx)
	if err != nil {
		if uerr := s.locker.Unlock(context.WithoutCancel(ctx), key, token); uerr != nil {
			s.logger.Warn("release cleanup lease", logger.Error(uerr))
		}
	}
	return res, err
}

func (s *Sweeper) sweep(ctx context.Context) (Result, error) {
	var (
		res  Result
		errs []error
	)
	now := s.now()

	n, err := s.store.DeleteBefore(ctx, models.StatusResolved, now.Add(-s.cfg.ResolvedRetention))
	if err != nil {
		errs = append(errs, fmt.Errorf("delete resolved: %w", err))
	}
	res.ResolvedDeleted = n
	metrics.AddSweepDeleted(s.cfg.Name, string(models.StatusResolved), n)

	if s.cfg.Strategy == AllErrors {
		n, err := s.store.DeleteBefore(ctx, models.StatusUnresolved, now.Add(-s.cfg.UnresolvedRetention))
		if err != nil {
			errs = append(errs, fmt.Errorf("delete unresolved: %w", err))
		}
		res.UnresolvedDeleted = n
		metrics.AddSweepDeleted(s.cfg.Name, string(models.StatusUnresolved), n)
	}

	return res, errors.Join(errs...)
}

// Package health reports a service unhealthy while it has recently logged
// unresolved errors.
package health

import (
	"context"
	"fmt"
	"time"

	"github.com/kiranshivaraju/apperrors/internal/metrics"
	"github.com/kiranshivaraju/apperrors/internal/store"
	"github.com/kiranshivaraju/apperrors/pkg/models"
)

const DefaultWindow = 15 * time.Minute

// Result is the outcome of one probe.
type Result struct {
	Healthy bool          `json:"healthy"`
	Count   int64         `json:"recent_errors"`
	Window  time.Duration `json:"-"`
	Message string        `json:"message"`
}

// RecentErrorsProbe is unhealthy when any unresolved error was recorded or
// repeated within the window. Against a shared store only this host's errors count.
type RecentErrorsProbe struct {
	store  store.ErrorStore
	window time.Duration
	host   models.HostIdentity
	now    func() time.Time
}

type Option func(*RecentErrorsProbe)

func WithClock(now func() time.Time) Option {
	return func(p *RecentErrorsProbe) { p.now = now }
}

// WithHost limits a shared store's count to records written by host.
func WithHost(host models.HostIdentity) Option {
	return func(p *RecentErrorsProbe) { p.host = host }
}

// NewRecentErrorsProbe returns a probe over window. A non-positive window uses DefaultWindow.
func NewRecentErrorsProbe(s store.ErrorStore, window time.Duration, opts ...Option) *RecentErrorsProbe {
	if window <= 0 {
		window = DefaultWindow
	}
	p := &RecentErrorsProbe{store: s, window: window, now: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *RecentErrorsProbe) Window() time.Duration { return p.window }

// Check counts recent unresolved errors. A store failure is returned, not
// reported as unhealthy.
func (p *RecentErrorsProbe) Check(ctx context.Context) (Result, error) {
	cutoff := p.now().Add(-p.window)

	var (
		n   int64
		err error
	)
	if p.store.Shared() && !p.host.IsZero() {
		n, err = p.store.CountSinceOnHost(ctx, cutoff, p.host.HostName, p.host.IPAddress)
	} else {
		n, err = p.store.CountSince(ctx, cutoff)
	}
	if err != nil {
		return Result{}, fmt.Errorf("count recent errors: %w", err)
	}
	metrics.SetRecentErrors(n)

	res := Result{Healthy: n == 0, Count: n, Window: p.window}
	if res.Healthy {
		res.Message = fmt.Sprintf("no errors in the last %s", p.window)
	} else {
		res.Message = fmt.Sprintf("%d unresolved error(s) in the last %s", n, p.window)
	}
	return res, nil
}

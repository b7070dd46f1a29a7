package store

import (
	"context"
	"time"

	"github.com/kiranshivaraju/apperrors/pkg/models"
)

// ErrorStore is the storage contract for error records. Every implementation is safe
// for concurrent use and returns the same error taxonomy, so callers never need to
// know which backend they talk to.
type ErrorStore interface {
	Ping(ctx context.Context) error
	// Shared reports whether several processes write to the same backing store.
	Shared() bool

	// GetByID returns found=false, with a nil error, when no record has the id.
	GetByID(ctx context.Context, id int64) (*models.ErrorRecord, bool, error)

	CountAll(ctx context.Context) (int64, error)
	CountResolved(ctx context.Context) (int64, error)
	CountUnresolved(ctx context.Context) (int64, error)
	// CountSince counts unresolved records updated at or after cutoff.
	CountSince(ctx context.Context, cutoff time.Time) (int64, error)
	CountSinceOnHost(ctx context.Context, cutoff time.Time, hostName, ipAddress string) (int64, error)

	// ListPage returns records ordered by updated_at descending. pageNumber starts at 1.
	ListPage(ctx context.Context, status models.Status, pageNumber, pageSize int) ([]*models.ErrorRecord, error)
	FindUnresolvedByDescription(ctx context.Context, description string) ([]*models.ErrorRecord, error)
	FindUnresolvedByDescriptionOnHost(ctx context.Context, description, hostName string) ([]*models.ErrorRecord, error)

	// Insert stores a copy of rec with a new id, store-assigned timestamps and
	// resolved=false, and returns the id. rec itself is not modified.
	Insert(ctx context.Context, rec *models.ErrorRecord) (int64, error)
	IncrementCount(ctx context.Context, id int64) error
	// DedupInsert increments the first unresolved record with the same description
	// and host name, or inserts rec when there is none. The lookup and the write are
	// separate steps: concurrent callers reporting the same new problem can both
	// insert.
	DedupInsert(ctx context.Context, rec *models.ErrorRecord) (int64, error)

	Resolve(ctx context.Context, id int64) (*models.ErrorRecord, error)
	ResolveAllUnresolved(ctx context.Context) (int64, error)
	// DeleteBefore removes records in status (resolved or unresolved) created before cutoff.
	DeleteBefore(ctx context.Context, status models.Status, cutoff time.Time) (int64, error)
}

// Option configures a backend.
type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock replaces time.Now as the source of store-assigned timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// timestamp returns the clock reading as UTC, truncated to what Postgres keeps.
func (o options) timestamp() time.Time {
	return o.now().UTC().Truncate(time.Microsecond)
}

var (
	_ ErrorStore = (*PostgresStore)(nil)
	_ ErrorStore = (*SQLStore)(nil)
	_ ErrorStore = (*MemoryStore)(nil)
	_ ErrorStore = NoopStore{}
)

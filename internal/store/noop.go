package store

import (
	"context"
	"time"

	"github.com/kiranshivaraju/apperrors/pkg/models"
)

// NoopStore discards writes and answers every query with nothing. It never fails.
type NoopStore struct{}

func NewNoopStore() NoopStore { return NoopStore{} }

func (NoopStore) Ping(context.Context) error { return nil }
func (NoopStore) Shared() bool               { return false }

func (NoopStore) GetByID(context.Context, int64) (*models.ErrorRecord, bool, error) {
	return nil, false, nil
}

func (NoopStore) CountAll(context.Context) (int64, error)        { return 0, nil }
func (NoopStore) CountResolved(context.Context) (int64, error)   { return 0, nil }
func (NoopStore) CountUnresolved(context.Context) (int64, error) { return 0, nil }

func (NoopStore) CountSince(context.Context, time.Time) (int64, error) { return 0, nil }

func (NoopStore) CountSinceOnHost(context.Context, time.Time, string, string) (int64, error) {
	return 0, nil
}

func (NoopStore) ListPage(context.Context, models.Status, int, int) ([]*models.ErrorRecord, error) {
	return nil, nil
}

func (NoopStore) FindUnresolvedByDescription(context.Context, string) ([]*models.ErrorRecord, error) {
	return nil, nil
}

func (NoopStore) FindUnresolvedByDescriptionOnHost(context.Context, string, string) ([]*models.ErrorRecord, error) {
	return nil, nil
}

func (NoopStore) Insert(context.Context, *models.ErrorRecord) (int64, error)      { return 0, nil }
func (NoopStore) IncrementCount(context.Context, int64) error                     { return nil }
func (NoopStore) DedupInsert(context.Context, *models.ErrorRecord) (int64, error) { return 0, nil }

func (NoopStore) Resolve(context.Context, int64) (*models.ErrorRecord, error) { return nil, nil }
func (NoopStore) ResolveAllUnresolved(context.Context) (int64, error)         { return 0, nil }

func (NoopStore) DeleteBefore(context.Context, models.Status, time.Time) (int64, error) {
	return 0, nil
}

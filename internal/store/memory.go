package store

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kiranshivaraju/apperrors/pkg/models"
)

// MemoryStore keeps records in a map guarded by a RWMutex, with ids from an atomic
// counter. Every method is atomic on its own, but DedupInsert is a lookup followed by
// a separate write, so racing reports of a new problem can produce two rows.
// Records are never shared with other processes.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[int64]*models.ErrorRecord
	lastID  atomic.Int64
	opts    options
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore(opts ...Option) *MemoryStore {
	return &MemoryStore{
		records: make(map[int64]*models.ErrorRecord),
		opts:    buildOptions(opts),
	}
}

func (s *MemoryStore) Ping(context.Context) error { return nil }

func (s *MemoryStore) Shared() bool { return false }

func (s *MemoryStore) GetByID(_ context.Context, id int64) (*models.ErrorRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[id]
	if !ok {
		return nil, false, nil
	}
	return rec.Clone(), true, nil
}

func (s *MemoryStore) CountAll(context.Context) (int64, error) {
	return s.countWhere(func(*models.ErrorRecord) bool { return true }), nil
}

func (s *MemoryStore) CountResolved(context.Context) (int64, error) {
	return s.countWhere(func(r *models.ErrorRecord) bool { return r.Resolved }), nil
}

func (s *MemoryStore) CountUnresolved(context.Context) (int64, error) {
	return s.countWhere(func(r *models.ErrorRecord) bool { return !r.Resolved }), nil
}

func (s *MemoryStore) CountSince(_ context.Context, cutoff time.Time) (int64, error) {
	return s.countWhere(func(r *models.ErrorRecord) bool {
		return !r.Resolved && !r.UpdatedAt.Before(cutoff)
	}), nil
}

func (s *MemoryStore) CountSinceOnHost(_ context.Context, cutoff time.Time, hostName, ipAddress string) (int64, error) {
	return s.countWhere(func(r *models.ErrorRecord) bool {
		return !r.Resolved && !r.UpdatedAt.Before(cutoff) &&
			r.HostName == hostName && r.IPAddress == ipAddress
	}), nil
}

func (s *MemoryStore) countWhere(match func(*models.ErrorRecord) bool) int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for _, r := range s.records {
		if match(r) {
			n++
		}
	}
	return n
}

func (s *MemoryStore) ListPage(_ context.Context, status models.Status, pageNumber, pageSize int) ([]*models.ErrorRecord, error) {
	if err := checkListStatus(status); err != nil {
		return nil, err
	}
	offset, err := pageOffset(pageNumber, pageSize)
	if err != nil {
		return nil, err
	}

	recs := s.filter(func(r *models.ErrorRecord) bool {
		switch status {
		case models.StatusResolved:
			return r.Resolved
		case models.StatusUnresolved:
			return !r.Resolved
		default:
			return true
		}
	})
	sort.Slice(recs, func(i, j int) bool {
		if !recs[i].UpdatedAt.Equal(recs[j].UpdatedAt) {
			return recs[i].UpdatedAt.After(recs[j].UpdatedAt)
		}
		return recs[i].ID > recs[j].ID
	})

	if offset >= len(recs) {
		return nil, nil
	}
	end := min(offset+pageSize, len(recs))
	return recs[offset:end], nil
}

func (s *MemoryStore) FindUnresolvedByDescription(_ context.Context, description string) ([]*models.ErrorRecord, error) {
	return s.filter(func(r *models.ErrorRecord) bool {
		return !r.Resolved && r.Description == description
	}), nil
}

func (s *MemoryStore) FindUnresolvedByDescriptionOnHost(_ context.Context, description, hostName string) ([]*models.ErrorRecord, error) {
	return s.filter(func(r *models.ErrorRecord) bool {
		return !r.Resolved && r.Description == description && r.HostName == hostName
	}), nil
}

// filter returns clones of the matching records.
func (s *MemoryStore) filter(match func(*models.ErrorRecord) bool) []*models.ErrorRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.ErrorRecord
	for _, r := range s.records {
		if match(r) {
			out = append(out, r.Clone())
		}
	}
	return out
}

func (s *MemoryStore) Insert(_ context.Context, rec *models.ErrorRecord) (int64, error) {
	if err := checkInsertable(rec); err != nil {
		return 0, err
	}
	stored := rec.Clone()
	stored.ID = s.lastID.Add(1)
	stored.CreatedAt = s.opts.timestamp()
	stored.UpdatedAt = stored.CreatedAt
	stored.NumTimesOccurred = occurrences(rec)
	stored.Resolved = false

	s.mu.Lock()
	s.records[stored.ID] = stored
	s.mu.Unlock()

	return stored.ID, nil
}

func (s *MemoryStore) IncrementCount(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok {
		return notFound(id)
	}
	updated := rec.Clone()
	updated.NumTimesOccurred++
	updated.UpdatedAt = s.opts.timestamp()
	s.records[id] = updated
	return nil
}

func (s *MemoryStore) DedupInsert(ctx context.Context, rec *models.ErrorRecord) (int64, error) {
	return dedupInsert(ctx, s, rec)
}

func (s *MemoryStore) Resolve(_ context.Context, id int64) (*models.ErrorRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok {
		return nil, notFound(id)
	}
	updated := rec.Clone()
	updated.Resolved = true
	updated.UpdatedAt = s.opts.timestamp()
	s.records[id] = updated
	return updated.Clone(), nil
}

func (s *MemoryStore) ResolveAllUnresolved(context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.opts.timestamp()
	var n int64
	for id, rec := range s.records {
		if rec.Resolved {
			continue
		}
		updated := rec.Clone()
		updated.Resolved = true
		updated.UpdatedAt = now
		s.records[id] = updated
		n++
	}
	return n, nil
}

func (s *MemoryStore) DeleteBefore(_ context.Context, status models.Status, cutoff time.Time) (int64, error) {
	if err := checkDeleteStatus(status); err != nil {
		return 0, err
	}
	resolved := status == models.StatusResolved

	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for id, rec := range s.records {
		if rec.Resolved == resolved && rec.CreatedAt.Before(cutoff) {
			delete(s.records, id)
			n++
		}
	}
	return n, nil
}

package store_test

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/kiranshivaraju/apperrors/internal/store"
	"github.com/kiranshivaraju/apperrors/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock is a settable time source shared by a store and its test.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// storeFactory returns an empty store that reads time from clock.
type storeFactory func(t *testing.T, clock *fakeClock) store.ErrorStore

func strPtr(s string) *string { return &s }

func newRecord(description, host string) *models.ErrorRecord {
	return &models.ErrorRecord{
		NumTimesOccurred: 1,
		Description:      description,
		HostName:         host,
		IPAddress:        "10.0.0.1",
		Port:             8080,
	}
}

func assertSameInstant(t *testing.T, want, got time.Time) {
	t.Helper()
	assert.WithinDuration(t, want, got, 0)
}

// runContract exercises the behavior every ErrorStore backend must share.
func runContract(t *testing.T, newStore storeFactory) {
	ctx := context.Background()

	t.Run("RoundTrip", func(t *testing.T) {
		clock := newFakeClock()
		s := newStore(t, clock)

		in := &models.ErrorRecord{
			CreatedAt:             time.Date(2001, 1, 1, 0, 0, 0, 0, time.UTC),
			UpdatedAt:             time.Date(2001, 1, 2, 0, 0, 0, 0, time.UTC),
			NumTimesOccurred:      3,
			Description:           "payment gateway timeout",
			ExceptionType:         strPtr("*net.OpError"),
			ExceptionMessage:      strPtr("dial tcp: i/o timeout"),
			ExceptionCauseType:    strPtr("*os.SyscallError"),
			ExceptionCauseMessage: strPtr("connect: timeout"),
			StackTrace:            strPtr("goroutine 1 [running]:\nmain.main()"),
			Resolved:              true,
			HostName:              "web-1",
			IPAddress:             "10.0.0.7",
			Port:                  65535,
		}
		id, err := s.Insert(ctx, in)
		require.NoError(t, err)
		assert.NotZero(t, id)
		assert.Zero(t, in.ID, "input must not be modified")

		got, found, err := s.GetByID(ctx, id)
		require.NoError(t, err)
		require.True(t, found)

		assert.Equal(t, id, got.ID)
		assertSameInstant(t, clock.Now(), got.CreatedAt)
		assertSameInstant(t, clock.Now(), got.UpdatedAt)
		assert.False(t, got.Resolved, "insert forces unresolved")
		assert.Equal(t, 3, got.NumTimesOccurred)
		assert.Equal(t, in.Description, got.Description)
		assert.Equal(t, in.ExceptionType, got.ExceptionType)
		assert.Equal(t, in.ExceptionMessage, got.ExceptionMessage)
		assert.Equal(t, in.ExceptionCauseType, got.ExceptionCauseType)
		assert.Equal(t, in.ExceptionCauseMessage, got.ExceptionCauseMessage)
		assert.Equal(t, in.StackTrace, got.StackTrace)
		assert.Equal(t, in.HostName, got.HostName)
		assert.Equal(t, in.IPAddress, got.IPAddress)
		assert.Equal(t, in.Port, got.Port)
	})

	t.Run("RoundTripNullableFields", func(t *testing.T) {
		s := newStore(t, newFakeClock())

		id, err := s.Insert(ctx, newRecord("bare", "web-1"))
		require.NoError(t, err)

		got, found, err := s.GetByID(ctx, id)
		require.NoError(t, err)
		require.True(t, found)
		assert.Nil(t, got.ExceptionType)
		assert.Nil(t, got.ExceptionMessage)
		assert.Nil(t, got.ExceptionCauseType)
		assert.Nil(t, got.ExceptionCauseMessage)
		assert.Nil(t, got.StackTrace)
	})

	t.Run("InsertWithIDFails", func(t *testing.T) {
		s := newStore(t, newFakeClock())

		rec := newRecord("disk full", "h1")
		rec.ID = 42
		_, err := s.Insert(ctx, rec)
		require.ErrorIs(t, err, store.ErrInvalidArgument)
		assert.Contains(t, err.Error(), "cannot insert a record that has an id")

		n, err := s.CountAll(ctx)
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("InsertZeroOccurrencesStoresOne", func(t *testing.T) {
		s := newStore(t, newFakeClock())

		rec := newRecord("zero", "h1")
		rec.NumTimesOccurred = 0
		id, err := s.Insert(ctx, rec)
		require.NoError(t, err)

		got, _, err := s.GetByID(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, 1, got.NumTimesOccurred)
	})

	t.Run("GetByIDMissing", func(t *testing.T) {
		s := newStore(t, newFakeClock())

		got, found, err := s.GetByID(ctx, 12345)
		require.NoError(t, err)
		assert.False(t, found)
		assert.Nil(t, got)
	})

	t.Run("DedupInsertTwice", func(t *testing.T) {
		clock := newFakeClock()
		s := newStore(t, clock)

		first, err := s.DedupInsert(ctx, newRecord("disk full", "h1"))
		require.NoError(t, err)
		created := clock.Now()

		clock.Advance(time.Minute)
		second, err := s.DedupInsert(ctx, newRecord("disk full", "h1"))
		require.NoError(t, err)
		assert.Equal(t, first, second)

		got, found, err := s.GetByID(ctx, first)
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, 2, got.NumTimesOccurred)
		assertSameInstant(t, created, got.CreatedAt)
		assertSameInstant(t, clock.Now(), got.UpdatedAt)

		n, err := s.CountAll(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
	})

	t.Run("DedupInsertIgnoresOtherFieldsOnMatch", func(t *testing.T) {
		s := newStore(t, newFakeClock())

		id, err := s.DedupInsert(ctx, newRecord("disk full", "h1"))
		require.NoError(t, err)

		again := newRecord("disk full", "h1")
		again.ExceptionMessage = strPtr("different message")
		again.IPAddress = "10.9.9.9"
		_, err = s.DedupInsert(ctx, again)
		require.NoError(t, err)

		got, _, err := s.GetByID(ctx, id)
		require.NoError(t, err)
		assert.Nil(t, got.ExceptionMessage)
		assert.Equal(t, "10.0.0.1", got.IPAddress)
	})

	t.Run("DedupInsertStartsNewRecordAtOne", func(t *testing.T) {
		s := newStore(t, newFakeClock())

		seeded := newRecord("cache miss storm", "h1")
		seeded.NumTimesOccurred = 7
		id, err := s.DedupInsert(ctx, seeded)
		require.NoError(t, err)
		assert.Equal(t, 7, seeded.NumTimesOccurred)

		got, _, err := s.GetByID(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, 1, got.NumTimesOccurred)

		again, err := s.DedupInsert(ctx, seeded)
		require.NoError(t, err)
		assert.Equal(t, id, again)

		got, _, err = s.GetByID(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, 2, got.NumTimesOccurred)
	})

	t.Run("DedupInsertIsIdempotentPerKey", func(t *testing.T) {
		s := newStore(t, newFakeClock())

		const n = 7
		var id int64
		for i := 0; i < n; i++ {
			got, err := s.DedupInsert(ctx, newRecord("queue backlog", "worker-2"))
			require.NoError(t, err)
			if i == 0 {
				id = got
			}
			assert.Equal(t, id, got)
		}

		rec, _, err := s.GetByID(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, n, rec.NumTimesOccurred)
	})

	t.Run("DedupKeyIncludesHost", func(t *testing.T) {
		s := newStore(t, newFakeClock())

		a, err := s.DedupInsert(ctx, newRecord("disk full", "h1"))
		require.NoError(t, err)
		b, err := s.DedupInsert(ctx, newRecord("disk full", "h2"))
		require.NoError(t, err)
		c, err := s.DedupInsert(ctx, newRecord("disk almost full", "h1"))
		require.NoError(t, err)

		assert.NotEqual(t, a, b)
		assert.NotEqual(t, a, c)
		n, err := s.CountAll(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(3), n)
	})

	t.Run("ResolvedRecordDoesNotAbsorbOccurrences", func(t *testing.T) {
		s := newStore(t, newFakeClock())

		first, err := s.DedupInsert(ctx, newRecord("disk full", "h1"))
		require.NoError(t, err)
		_, err = s.Resolve(ctx, first)
		require.NoError(t, err)

		second, err := s.DedupInsert(ctx, newRecord("disk full", "h1"))
		require.NoError(t, err)
		assert.NotEqual(t, first, second)

		old, _, err := s.GetByID(ctx, first)
		require.NoError(t, err)
		assert.True(t, old.Resolved)
		assert.Equal(t, 1, old.NumTimesOccurred)

		fresh, _, err := s.GetByID(ctx, second)
		require.NoError(t, err)
		assert.False(t, fresh.Resolved)
		assert.Equal(t, 1, fresh.NumTimesOccurred)
	})

	t.Run("IncrementCount", func(t *testing.T) {
		clock := newFakeClock()
		s := newStore(t, clock)

		id, err := s.Insert(ctx, newRecord("disk full", "h1"))
		require.NoError(t, err)
		clock.Advance(time.Second)
		require.NoError(t, s.IncrementCount(ctx, id))
		require.NoError(t, s.IncrementCount(ctx, id))

		got, _, err := s.GetByID(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, 3, got.NumTimesOccurred)
		assertSameInstant(t, clock.Now(), got.UpdatedAt)
	})

	t.Run("IncrementCountMissing", func(t *testing.T) {
		s := newStore(t, newFakeClock())

		err := s.IncrementCount(ctx, 99999)
		require.ErrorIs(t, err, store.ErrNotFound)
		assert.Contains(t, err.Error(), "99999")
	})

	t.Run("Resolve", func(t *testing.T) {
		clock := newFakeClock()
		s := newStore(t, clock)

		id, err := s.Insert(ctx, newRecord("disk full", "h1"))
		require.NoError(t, err)
		clock.Advance(time.Hour)

		got, err := s.Resolve(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, id, got.ID)
		assert.True(t, got.Resolved)
		assertSameInstant(t, clock.Now(), got.UpdatedAt)

		stored, _, err := s.GetByID(ctx, id)
		require.NoError(t, err)
		assert.True(t, stored.Resolved)
	})

	t.Run("ResolveMissing", func(t *testing.T) {
		s := newStore(t, newFakeClock())

		_, err := s.Resolve(ctx, 424242)
		require.ErrorIs(t, err, store.ErrNotFound)
		assert.Contains(t, err.Error(), "424242")
	})

	t.Run("ResolveAllUnresolvedAndCounts", func(t *testing.T) {
		s := newStore(t, newFakeClock())

		var ids []int64
		for _, d := range []string{"a", "b", "c", "d"} {
			id, err := s.Insert(ctx, newRecord(d, "h1"))
			require.NoError(t, err)
			ids = append(ids, id)
		}
		_, err := s.Resolve(ctx, ids[0])
		require.NoError(t, err)

		assertCounts(t, s, 4, 1, 3)

		n, err := s.ResolveAllUnresolved(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(3), n)
		assertCounts(t, s, 4, 4, 0)

		n, err = s.ResolveAllUnresolved(ctx)
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("CountSince", func(t *testing.T) {
		clock := newFakeClock()
		s := newStore(t, clock)
		now := clock.Now()

		clock.Set(now.Add(-25 * time.Minute))
		_, err := s.Insert(ctx, newRecord("slow query", "h1"))
		require.NoError(t, err)

		clock.Set(now.Add(-5 * time.Minute))
		resolvedID, err := s.Insert(ctx, newRecord("cache miss storm", "h1"))
		require.NoError(t, err)
		_, err = s.Resolve(ctx, resolvedID)
		require.NoError(t, err)
		clock.Set(now)

		n, err := s.CountSince(ctx, now.Add(-30*time.Minute))
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)

		n, err = s.CountSince(ctx, now.Add(-20*time.Minute))
		require.NoError(t, err)
		assert.Zero(t, n)

		n, err = s.CountSince(ctx, now.Add(-25*time.Minute))
		require.NoError(t, err)
		assert.Equal(t, int64(1), n, "cutoff is inclusive")
	})

	t.Run("CountSinceOnHost", func(t *testing.T) {
		clock := newFakeClock()
		s := newStore(t, clock)

		_, err := s.Insert(ctx, newRecord("a", "h1"))
		require.NoError(t, err)
		_, err = s.Insert(ctx, newRecord("b", "h1"))
		require.NoError(t, err)
		other := newRecord("a", "h2")
		other.IPAddress = "10.0.0.2"
		_, err = s.Insert(ctx, other)
		require.NoError(t, err)

		cutoff := clock.Now().Add(-time.Minute)
		n, err := s.CountSinceOnHost(ctx, cutoff, "h1", "10.0.0.1")
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)

		n, err = s.CountSinceOnHost(ctx, cutoff, "h2", "10.0.0.2")
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)

		n, err = s.CountSinceOnHost(ctx, cutoff, "h1", "10.0.0.2")
		require.NoError(t, err)
		assert.Zero(t, n, "host name and ip must both match")
	})

	t.Run("ListPage", func(t *testing.T) {
		clock := newFakeClock()
		s := newStore(t, clock)

		ids := make([]int64, 12)
		for i := range ids {
			clock.Advance(time.Second)
			id, err := s.Insert(ctx, newRecord("problem", "host-"+string(rune('a'+i))))
			require.NoError(t, err)
			ids[i] = id
		}

		page1, err := s.ListPage(ctx, models.StatusAll, 1, 5)
		require.NoError(t, err)
		assert.Equal(t, []int64{ids[11], ids[10], ids[9], ids[8], ids[7]}, recordIDs(page1))

		page2, err := s.ListPage(ctx, models.StatusAll, 2, 5)
		require.NoError(t, err)
		assert.Equal(t, []int64{ids[6], ids[5], ids[4], ids[3], ids[2]}, recordIDs(page2))

		page3, err := s.ListPage(ctx, models.StatusAll, 3, 5)
		require.NoError(t, err)
		assert.Equal(t, []int64{ids[1], ids[0]}, recordIDs(page3))

		page4, err := s.ListPage(ctx, models.StatusAll, 4, 5)
		require.NoError(t, err)
		assert.Empty(t, page4)
	})

	t.Run("ListPageOrdersByUpdatedAt", func(t *testing.T) {
		clock := newFakeClock()
		s := newStore(t, clock)

		first, err := s.Insert(ctx, newRecord("first", "h1"))
		require.NoError(t, err)
		clock.Advance(time.Second)
		second, err := s.Insert(ctx, newRecord("second", "h1"))
		require.NoError(t, err)
		clock.Advance(time.Second)
		require.NoError(t, s.IncrementCount(ctx, first))

		recs, err := s.ListPage(ctx, models.StatusAll, 1, 10)
		require.NoError(t, err)
		assert.Equal(t, []int64{first, second}, recordIDs(recs))
	})

	t.Run("ListPageByStatus", func(t *testing.T) {
		clock := newFakeClock()
		s := newStore(t, clock)

		var ids []int64
		for i := 0; i < 4; i++ {
			clock.Advance(time.Second)
			id, err := s.Insert(ctx, newRecord("problem", "h"+string(rune('0'+i))))
			require.NoError(t, err)
			ids = append(ids, id)
		}
		_, err := s.Resolve(ctx, ids[1])
		require.NoError(t, err)
		_, err = s.Resolve(ctx, ids[3])
		require.NoError(t, err)

		resolved, err := s.ListPage(ctx, models.StatusResolved, 1, 10)
		require.NoError(t, err)
		assert.ElementsMatch(t, []int64{ids[1], ids[3]}, recordIDs(resolved))

		unresolved, err := s.ListPage(ctx, models.StatusUnresolved, 1, 10)
		require.NoError(t, err)
		assert.Equal(t, []int64{ids[2], ids[0]}, recordIDs(unresolved))
	})

	t.Run("ListPageRejectsBadPaging", func(t *testing.T) {
		s := newStore(t, newFakeClock())

		for _, status := range []models.Status{models.StatusAll, models.StatusResolved, models.StatusUnresolved} {
			_, err := s.ListPage(ctx, status, 0, 10)
			assert.ErrorIs(t, err, store.ErrInvalidArgument)
			_, err = s.ListPage(ctx, status, 1, 0)
			assert.ErrorIs(t, err, store.ErrInvalidArgument)
		}
		_, err := s.ListPage(ctx, models.Status("open"), 1, 10)
		assert.ErrorIs(t, err, store.ErrInvalidArgument)
	})

	t.Run("ListPageFarBeyondEndIsEmpty", func(t *testing.T) {
		s := newStore(t, newFakeClock())
		_, err := s.Insert(ctx, newRecord("disk full", "h1"))
		require.NoError(t, err)

		for _, page := range []int{math.MaxInt64 / 50, math.MaxInt64} {
			recs, err := s.ListPage(ctx, models.StatusAll, page, 100)
			require.NoError(t, err, "page=%d", page)
			assert.Empty(t, recs, "page=%d", page)
		}
	})

	t.Run("FindUnresolvedByDescription", func(t *testing.T) {
		s := newStore(t, newFakeClock())

		a, err := s.Insert(ctx, newRecord("disk full", "h1"))
		require.NoError(t, err)
		b, err := s.Insert(ctx, newRecord("disk full", "h2"))
		require.NoError(t, err)
		_, err = s.Insert(ctx, newRecord("disk fullish", "h1"))
		require.NoError(t, err)

		recs, err := s.FindUnresolvedByDescription(ctx, "disk full")
		require.NoError(t, err)
		assert.ElementsMatch(t, []int64{a, b}, recordIDs(recs))

		recs, err = s.FindUnresolvedByDescriptionOnHost(ctx, "disk full", "h2")
		require.NoError(t, err)
		assert.Equal(t, []int64{b}, recordIDs(recs))

		_, err = s.Resolve(ctx, a)
		require.NoError(t, err)
		recs, err = s.FindUnresolvedByDescription(ctx, "disk full")
		require.NoError(t, err)
		assert.Equal(t, []int64{b}, recordIDs(recs))
	})

	t.Run("DeleteBefore", func(t *testing.T) {
		clock := newFakeClock()
		s := newStore(t, clock)
		now := clock.Now()

		clock.Set(now.Add(-48 * time.Hour))
		oldResolved, err := s.Insert(ctx, newRecord("old", "h1"))
		require.NoError(t, err)
		oldUnresolved, err := s.Insert(ctx, newRecord("old open", "h1"))
		require.NoError(t, err)

		clock.Set(now.Add(-time.Hour))
		recentResolved, err := s.Insert(ctx, newRecord("recent", "h1"))
		require.NoError(t, err)

		clock.Set(now)
		_, err = s.Resolve(ctx, oldResolved)
		require.NoError(t, err)
		_, err = s.Resolve(ctx, recentResolved)
		require.NoError(t, err)

		n, err := s.DeleteBefore(ctx, models.StatusResolved, now.Add(-24*time.Hour))
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)

		_, found, err := s.GetByID(ctx, oldResolved)
		require.NoError(t, err)
		assert.False(t, found)
		_, found, err = s.GetByID(ctx, recentResolved)
		require.NoError(t, err)
		assert.True(t, found)
		_, found, err = s.GetByID(ctx, oldUnresolved)
		require.NoError(t, err)
		assert.True(t, found, "resolved deletion must not touch unresolved records")

		n, err = s.DeleteBefore(ctx, models.StatusUnresolved, now.Add(-24*time.Hour))
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
		assertCounts(t, s, 1, 1, 0)
	})

	t.Run("DeleteBeforeRejectsAll", func(t *testing.T) {
		s := newStore(t, newFakeClock())

		_, err := s.DeleteBefore(ctx, models.StatusAll, time.Now())
		assert.ErrorIs(t, err, store.ErrInvalidArgument)
	})

	t.Run("Ping", func(t *testing.T) {
		s := newStore(t, newFakeClock())
		assert.NoError(t, s.Ping(ctx))
	})
}

func assertCounts(t *testing.T, s store.ErrorStore, all, resolved, unresolved int64) {
	t.Helper()
	ctx := context.Background()

	n, err := s.CountAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, all, n, "count all")

	n, err = s.CountResolved(ctx)
	require.NoError(t, err)
	assert.Equal(t, resolved, n, "count resolved")

	n, err = s.CountUnresolved(ctx)
	require.NoError(t, err)
	assert.Equal(t, unresolved, n, "count unresolved")
}

func recordIDs(recs []*models.ErrorRecord) []int64 {
	ids := make([]int64, 0, len(recs))
	for _, r := range recs {
		ids = append(ids, r.ID)
	}
	return ids
}

package store

import (
	"context"
	"fmt"
	"math"

	"github.com/kiranshivaraju/apperrors/pkg/models"
)

// pageOffset validates paging input and returns the number of rows to skip.
// Offsets too large for an int are clamped past the end of any table, so the
// page comes back empty.
func pageOffset(pageNumber, pageSize int) (int, error) {
	if pageNumber < 1 {
		return 0, fmt.Errorf("%w: page number must be at least 1, got %d", ErrInvalidArgument, pageNumber)
	}
	if pageSize < 1 {
		return 0, fmt.Errorf("%w: page size must be at least 1, got %d", ErrInvalidArgument, pageSize)
	}
	if pageNumber-1 > (math.MaxInt-pageSize)/pageSize {
		return math.MaxInt, nil
	}
	return (pageNumber - 1) * pageSize, nil
}

func checkListStatus(status models.Status) error {
	switch status {
	case models.StatusAll, models.StatusResolved, models.StatusUnresolved:
		return nil
	}
	return fmt.Errorf("%w: unknown status %q", ErrInvalidArgument, status)
}

func checkDeleteStatus(status models.Status) error {
	switch status {
	case models.StatusResolved, models.StatusUnresolved:
		return nil
	}
	return fmt.Errorf("%w: can only delete resolved or unresolved records, got %q", ErrInvalidArgument, status)
}

func checkInsertable(rec *models.ErrorRecord) error {
	if rec == nil {
		return fmt.Errorf("%w: record is nil", ErrInvalidArgument)
	}
	if rec.HasID() {
		return fmt.Errorf("%w: cannot insert a record that has an id (%d)", ErrInvalidArgument, rec.ID)
	}
	return nil
}

func occurrences(rec *models.ErrorRecord) int {
	if rec.NumTimesOccurred < 1 {
		return 1
	}
	return rec.NumTimesOccurred
}

type dedupBackend interface {
	FindUnresolvedByDescriptionOnHost(ctx context.Context, description, hostName string) ([]*models.ErrorRecord, error)
	IncrementCount(ctx context.Context, id int64) error
	Insert(ctx context.Context, rec *models.ErrorRecord) (int64, error)
}

// dedupInsert is the lookup-then-write shared by every backend. It is not atomic.
func dedupInsert(ctx context.Context, b dedupBackend, rec *models.ErrorRecord) (int64, error) {
	if rec == nil {
		return 0, fmt.Errorf("%w: record is nil", ErrInvalidArgument)
	}
	matches, err := b.FindUnresolvedByDescriptionOnHost(ctx, rec.Description, rec.HostName)
	if err != nil {
		return 0, err
	}
	if len(matches) == 0 {
		fresh := rec.Clone()
		fresh.NumTimesOccurred = 1
		return b.Insert(ctx, fresh)
	}
	id := matches[0].ID
	if err := b.IncrementCount(ctx, id); err != nil {
		return 0, err
	}
	return id, nil
}

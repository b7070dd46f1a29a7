package store

import (
	"errors"
	"fmt"

	"github.com/kiranshivaraju/apperrors/pkg/models"
)

var (
	ErrNotFound  = errors.New("error record not found")
	ErrIntegrity = errors.New("unexpected number of rows affected")
	ErrBackend   = errors.New("storage backend failure")

	ErrInvalidArgument = models.ErrInvalidArgument
)

func notFound(id int64) error {
	return fmt.Errorf("%w: id %d", ErrNotFound, id)
}

// backendErr keeps the driver error reachable through errors.Is and errors.As.
func backendErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrBackend, err)
}

func affectedOne(id int64, n int64) error {
	switch {
	case n == 0:
		return notFound(id)
	case n != 1:
		return fmt.Errorf("%w: id %d matched %d rows", ErrIntegrity, id, n)
	}
	return nil
}

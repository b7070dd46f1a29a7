package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kiranshivaraju/apperrors/pkg/models"
)

// PostgresStore implements ErrorStore using pgx/v5. Rows map onto models.ErrorRecord
// through its db tags. Many service instances may share one database.
type PostgresStore struct {
	pool *pgxpool.Pool
	opts options
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool, opts ...Option) *PostgresStore {
	return &PostgresStore{pool: pool, opts: buildOptions(opts)}
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *PostgresStore) Shared() bool { return true }

func (s *PostgresStore) GetByID(ctx context.Context, id int64) (*models.ErrorRecord, bool, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+recordColumns+` FROM application_errors WHERE id = $1`, id)
	if err != nil {
		return nil, false, backendErr("get error record", err)
	}
	rec, err := pgx.CollectOneRow(rows, pgx.RowToAddrOfStructByName[models.ErrorRecord])
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, backendErr("get error record", err)
	}
	return normalize(rec), true, nil
}

func (s *PostgresStore) CountAll(ctx context.Context) (int64, error) {
	return s.count(ctx, "count all", `SELECT COUNT(*) FROM application_errors`)
}

func (s *PostgresStore) CountResolved(ctx context.Context) (int64, error) {
	return s.count(ctx, "count resolved", `SELECT COUNT(*) FROM application_errors WHERE resolved = TRUE`)
}

func (s *PostgresStore) CountUnresolved(ctx context.Context) (int64, error) {
	return s.count(ctx, "count unresolved", `SELECT COUNT(*) FROM application_errors WHERE resolved = FALSE`)
}

func (s *PostgresStore) CountSince(ctx context.Context, cutoff time.Time) (int64, error) {
	return s.count(ctx, "count since",
		`SELECT COUNT(*) FROM application_errors WHERE resolved = FALSE AND updated_at >= $1`, cutoff.UTC())
}

func (s *PostgresStore) CountSinceOnHost(ctx context.Context, cutoff time.Time, hostName, ipAddress string) (int64, error) {
	return s.count(ctx, "count since on host",
		`SELECT COUNT(*) FROM application_errors
		 WHERE resolved = FALSE AND updated_at >= $1 AND host_name = $2 AND ip_address = $3`,
		cutoff.UTC(), hostName, ipAddress)
}

func (s *PostgresStore) count(ctx context.Context, op, query string, args ...any) (int64, error) {
	var n int64
	if err := s.pool.QueryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, backendErr(op, err)
	}
	return n, nil
}

func (s *PostgresStore) ListPage(ctx context.Context, status models.Status, pageNumber, pageSize int) ([]*models.ErrorRecord, error) {
	if err := checkListStatus(status); err != nil {
		return nil, err
	}
	offset, err := pageOffset(pageNumber, pageSize)
	if err != nil {
		return nil, err
	}
	return s.list(ctx, "list error records",
		`SELECT `+recordColumns+` FROM application_errors`+statusWhere(status)+
			` ORDER BY updated_at DESC, id DESC LIMIT $1 OFFSET $2`,
		pageSize, offset)
}

func (s *PostgresStore) FindUnresolvedByDescription(ctx context.Context, description string) ([]*models.ErrorRecord, error) {
	return s.list(ctx, "find unresolved",
		`SELECT `+recordColumns+` FROM application_errors
		 WHERE resolved = FALSE AND description = $1`, description)
}

func (s *PostgresStore) FindUnresolvedByDescriptionOnHost(ctx context.Context, description, hostName string) ([]*models.ErrorRecord, error) {
	return s.list(ctx, "find unresolved on host",
		`SELECT `+recordColumns+` FROM application_errors
		 WHERE resolved = FALSE AND description = $1 AND host_name = $2`, description, hostName)
}

func (s *PostgresStore) list(ctx context.Context, op, query string, args ...any) ([]*models.ErrorRecord, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, backendErr(op, err)
	}
	recs, err := pgx.CollectRows(rows, pgx.RowToAddrOfStructByName[models.ErrorRecord])
	if err != nil {
		return nil, backendErr(op, err)
	}
	for _, r := range recs {
		normalize(r)
	}
	return recs, nil
}

func (s *PostgresStore) Insert(ctx context.Context, rec *models.ErrorRecord) (int64, error) {
	if err := checkInsertable(rec); err != nil {
		return 0, err
	}
	now := s.opts.timestamp()
	var id int64
	err := s.pool.QueryRow(ctx,
		`INSERT INTO application_errors (created_at, updated_at, num_times_occurred, description,
		   exception_type, exception_message, exception_cause_type, exception_cause_message,
		   stack_trace, resolved, host_name, ip_address, port)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, FALSE, $10, $11, $12)
		 RETURNING id`,
		now, now, occurrences(rec), rec.Description,
		rec.ExceptionType, rec.ExceptionMessage, rec.ExceptionCauseType, rec.ExceptionCauseMessage,
		rec.StackTrace, rec.HostName, rec.IPAddress, rec.Port,
	).Scan(&id)
	if err != nil {
		return 0, backendErr("insert error record", err)
	}
	return id, nil
}

func (s *PostgresStore) IncrementCount(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE application_errors SET num_times_occurred = num_times_occurred + 1, updated_at = $2
		 WHERE id = $1`, id, s.opts.timestamp())
	if err != nil {
		return backendErr("increment count", err)
	}
	return affectedOne(id, tag.RowsAffected())
}

func (s *PostgresStore) DedupInsert(ctx context.Context, rec *models.ErrorRecord) (int64, error) {
	return dedupInsert(ctx, s, rec)
}

func (s *PostgresStore) Resolve(ctx context.Context, id int64) (*models.ErrorRecord, error) {
	rows, err := s.pool.Query(ctx,
		`UPDATE application_errors SET resolved = TRUE, updated_at = $2 WHERE id = $1
		 RETURNING `+recordColumns, id, s.opts.timestamp())
	if err != nil {
		return nil, backendErr("resolve error record", err)
	}
	rec, err := pgx.CollectExactlyOneRow(rows, pgx.RowToAddrOfStructByName[models.ErrorRecord])
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return nil, notFound(id)
	case errors.Is(err, pgx.ErrTooManyRows):
		return nil, fmt.Errorf("%w: id %d matched more than one row", ErrIntegrity, id)
	case err != nil:
		return nil, backendErr("resolve error record", err)
	}
	return normalize(rec), nil
}

func (s *PostgresStore) ResolveAllUnresolved(ctx context.Context) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE application_errors SET resolved = TRUE, updated_at = $1 WHERE resolved = FALSE`,
		s.opts.timestamp())
	if err != nil {
		return 0, backendErr("resolve all", err)
	}
	return tag.RowsAffected(), nil
}

func (s *PostgresStore) DeleteBefore(ctx context.Context, status models.Status, cutoff time.Time) (int64, error) {
	if err := checkDeleteStatus(status); err != nil {
		return 0, err
	}
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM application_errors WHERE resolved = $1 AND created_at < $2`,
		status == models.StatusResolved, cutoff.UTC())
	if err != nil {
		return 0, backendErr("delete before", err)
	}
	return tag.RowsAffected(), nil
}

// normalize converts timestamps read back from the database to UTC.
func normalize(rec *models.ErrorRecord) *models.ErrorRecord {
	rec.CreatedAt = rec.CreatedAt.UTC()
	rec.UpdatedAt = rec.UpdatedAt.UTC()
	return rec
}

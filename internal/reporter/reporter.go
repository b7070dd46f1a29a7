// Package reporter logs application errors and saves them to the error store in
// one call, without ever failing the caller.
package reporter

import (
	"context"

	"github.com/kiranshivaraju/apperrors/internal/logger"
	"github.com/kiranshivaraju/apperrors/internal/metrics"
	"github.com/kiranshivaraju/apperrors/internal/store"
	"github.com/kiranshivaraju/apperrors/pkg/models"
)

type Reporter struct {
	store  store.ErrorStore
	host   models.HostIdentity
	logger logger.Logger
}

// New returns a Reporter stamping records with host. host is fixed for the
// lifetime of the Reporter.
func New(s store.ErrorStore, host models.HostIdentity, log logger.Logger) *Reporter {
	return &Reporter{store: s, host: host, logger: log}
}

// Report logs err and records it as an unresolved error on this host, merging it
// into a matching unresolved record when one exists. It returns the record id and
// true, or 0 and false when nothing was stored, including with the no-op store.
func (r *Reporter) Report(ctx context.Context, description string, err error) (int64, bool) {
	r.logger.Error(description, logger.Error(err))

	rec, buildErr := models.NewUnresolved(r.host, description, err)
	if buildErr != nil {
		metrics.IncReport(metrics.OutcomeFailed)
		r.logger.Warn("could not build error record", logger.Error(buildErr))
		return 0, false
	}

	id, saveErr := r.store.DedupInsert(ctx, rec)
	if saveErr != nil {
		metrics.IncReport(metrics.OutcomeFailed)
		r.logger.Warn("could not save error record",
			logger.String("description", description),
			logger.Error(saveErr))
		return 0, false
	}
	if id == 0 {
		return 0, false
	}

	metrics.IncReport(metrics.OutcomeSaved)
	r.logger.Debug("error record saved", logger.Int64("error_id", id))
	return id, true
}

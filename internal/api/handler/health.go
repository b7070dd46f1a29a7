package handler

import (
	"context"
	"net/http"

	"github.com/kiranshivaraju/apperrors/internal/api/response"
	"github.com/kiranshivaraju/apperrors/internal/health"
	"github.com/kiranshivaraju/apperrors/internal/logger"
	"github.com/kiranshivaraju/apperrors/internal/store"
)

// RecentErrorsChecker is the probe the health endpoint reports.
type RecentErrorsChecker interface {
	Check(ctx context.Context) (health.Result, error)
}

type healthBody struct {
	Status       string         `json:"status"`
	Store        string         `json:"store"`
	RecentErrors *health.Result `json:"recent_errors,omitempty"`
}

// NewHealthHandler returns GET /api/v1/health. probe may be nil when the
// recent-errors check is disabled.
func NewHealthHandler(s store.ErrorStore, probe RecentErrorsChecker, log logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body := healthBody{Status: "ok", Store: "ok"}

		if err := s.Ping(r.Context()); err != nil {
			log.Warn("error store ping failed", logger.Error(err))
			body.Status, body.Store = "unhealthy", "down"
			response.Status(w, http.StatusServiceUnavailable, body)
			return
		}

		if probe != nil {
			res, err := probe.Check(r.Context())
			if err != nil {
				log.Warn("recent errors check failed", logger.Error(err))
				body.Status, body.Store = "unhealthy", "degraded"
				response.Status(w, http.StatusServiceUnavailable, body)
				return
			}
			body.RecentErrors = &res
			if !res.Healthy {
				body.Status = "unhealthy"
				response.Status(w, http.StatusServiceUnavailable, body)
				return
			}
		}

		response.JSON(w, body)
	}
}

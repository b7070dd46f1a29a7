package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/kiranshivaraju/apperrors/internal/api/response"
	"github.com/kiranshivaraju/apperrors/internal/logger"
	"github.com/kiranshivaraju/apperrors/internal/store"
	"github.com/kiranshivaraju/apperrors/pkg/models"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

// Errors exposes the error store over HTTP.
type Errors struct {
	store  store.ErrorStore
	logger logger.Logger
}

func NewErrors(s store.ErrorStore, log logger.Logger) *Errors {
	return &Errors{store: s, logger: log}
}

// List handles GET /api/v1/errors?status=&page=&limit=.
func (h *Errors) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	status, err := models.ParseStatus(q.Get("status"))
	if err != nil {
		response.Error(w, http.StatusBadRequest, response.CodeInvalidRequest,
			"status must be one of all, resolved, unresolved", nil)
		return
	}
	page, err := queryInt(q.Get("page"), 1)
	if err != nil {
		response.Error(w, http.StatusBadRequest, response.CodeInvalidRequest, "page must be an integer", nil)
		return
	}
	limit, err := queryInt(q.Get("limit"), defaultPageLimit)
	if err != nil {
		response.Error(w, http.StatusBadRequest, response.CodeInvalidRequest, "limit must be an integer", nil)
		return
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}

	recs, err := h.store.ListPage(r.Context(), status, page, limit)
	if err != nil {
		h.storeError(w, r, err)
		return
	}
	total, err := h.count(r, status)
	if err != nil {
		h.storeError(w, r, err)
		return
	}
	if recs == nil {
		recs = []*models.ErrorRecord{}
	}
	response.Collection(w, recs, response.NewPaginationMeta(page, limit, total))
}

func (h *Errors) count(r *http.Request, status models.Status) (int64, error) {
	switch status {
	case models.StatusResolved:
		return h.store.CountResolved(r.Context())
	case models.StatusUnresolved:
		return h.store.CountUnresolved(r.Context())
	default:
		return h.store.CountAll(r.Context())
	}
}

// Get handles GET /api/v1/errors/{id}.
func (h *Errors) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	rec, found, err := h.store.GetByID(r.Context(), id)
	if err != nil {
		h.storeError(w, r, err)
		return
	}
	if !found {
		response.Error(w, http.StatusNotFound, response.CodeNotFound,
			fmt.Sprintf("error record %d not found", id), nil)
		return
	}
	response.JSON(w, rec)
}

// Resolve handles PUT /api/v1/errors/{id}/resolve.
func (h *Errors) Resolve(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	rec, err := h.store.Resolve(r.Context(), id)
	if err != nil {
		h.storeError(w, r, err)
		return
	}
	if rec == nil {
		// the no-op store resolves nothing
		response.Error(w, http.StatusNotFound, response.CodeNotFound,
			fmt.Sprintf("error record %d not found", id), nil)
		return
	}
	h.logger.Info("error record resolved", logger.Int64("error_id", id))
	response.JSON(w, rec)
}

// ResolveAll handles PUT /api/v1/errors/resolve.
func (h *Errors) ResolveAll(w http.ResponseWriter, r *http.Request) {
	n, err := h.store.ResolveAllUnresolved(r.Context())
	if err != nil {
		h.storeError(w, r, err)
		return
	}
	h.logger.Info("unresolved error records resolved", logger.Int64("count", n))
	response.JSON(w, map[string]int64{"resolved": n})
}

func (h *Errors) storeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, store.ErrInvalidArgument):
		response.Error(w, http.StatusBadRequest, response.CodeInvalidRequest, err.Error(), nil)
	case errors.Is(err, store.ErrNotFound):
		response.Error(w, http.StatusNotFound, response.CodeNotFound, err.Error(), nil)
	default:
		h.logger.Error("error store request failed",
			logger.String("method", r.Method),
			logger.String("path", r.URL.Path),
			logger.Error(err))
		response.Error(w, http.StatusInternalServerError, response.CodeInternal,
			"Failed to access the error store", nil)
	}
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id < 1 {
		response.Error(w, http.StatusBadRequest, response.CodeInvalidRequest, "id must be a positive integer", nil)
		return 0, false
	}
	return id, true
}

func queryInt(raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	mw "github.com/kiranshivaraju/apperrors/internal/api/middleware"
	"github.com/kiranshivaraju/apperrors/internal/api/response"
	"github.com/kiranshivaraju/apperrors/internal/logger"
)

// Dependencies holds all handler and middleware dependencies for the router.
type Dependencies struct {
	Logger   logger.Logger
	Auth     *mw.AdminAuth
	Reporter mw.PanicReporter // saves recovered panics when set

	HealthHandler    http.HandlerFunc
	ListErrors       http.HandlerFunc
	GetError         http.HandlerFunc
	ResolveError     http.HandlerFunc
	ResolveAllErrors http.HandlerFunc
	MetricsHandler   http.Handler
}

// NewRouter builds the Chi router with middleware stack and all routes.
func NewRouter(deps Dependencies) http.Handler {
	log := deps.Logger
	if log == nil {
		log = logger.NewNop()
	}

	r := chi.NewRouter()

	r.Use(mw.Logger(log))
	r.Use(mw.Recovery(log, deps.Reporter))

	r.Get("/api/v1/health", orNotImplemented(deps.HealthHandler))
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	r.Get("/api/v1/errors", orNotImplemented(deps.ListErrors))
	r.Get("/api/v1/errors/{id}", orNotImplemented(deps.GetError))

	// Mutating routes
	r.Group(func(r chi.Router) {
		r.Use(deps.Auth.Require)

		r.Put("/api/v1/errors/resolve", orNotImplemented(deps.ResolveAllErrors))
		r.Put("/api/v1/errors/{id}/resolve", orNotImplemented(deps.ResolveError))
	})

	return r
}

// orNotImplemented returns the handler if non-nil, or a 501 placeholder.
func orNotImplemented(h http.HandlerFunc) http.HandlerFunc {
	if h != nil {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, http.StatusNotImplemented, "NOT_IMPLEMENTED", "Endpoint not yet implemented", nil)
	}
}

package middleware

import (
	"context"
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/kiranshivaraju/apperrors/internal/api/response"
	"github.com/kiranshivaraju/apperrors/internal/logger"
)

// PanicReporter records a recovered panic as an application error.
type PanicReporter interface {
	Report(ctx context.Context, description string, err error) (int64, bool)
}

// Recovery turns a handler panic into a 500. When rep is not nil the panic is
// also saved to the error store.
func Recovery(log logger.Logger, rep PanicReporter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if v := recover(); v != nil {
					id, _ := GetRequestID(r)
					log.Error("panic recovered",
						logger.Any("error", v),
						logger.String("stack", string(debug.Stack())),
						logger.String("request_id", id),
						logger.String("method", r.Method),
						logger.String("path", r.URL.Path),
					)
					if rep != nil {
						err, ok := v.(error)
						if !ok {
							err = fmt.Errorf("%v", v)
						}
						rep.Report(context.WithoutCancel(r.Context()),
							fmt.Sprintf("panic serving %s %s", r.Method, r.URL.Path), err)
					}
					response.Error(w, http.StatusInternalServerError,
						response.CodeInternal, "An unexpected error occurred", nil)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

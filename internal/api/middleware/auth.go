package middleware

import (
	"net/http"
	"strings"

	"github.com/kiranshivaraju/apperrors/internal/api/response"
	"golang.org/x/crypto/bcrypt"
)

// AdminAuth guards mutating routes with a single bearer token, stored as a
// bcrypt hash.
type AdminAuth struct {
	tokenHash []byte
}

// NewAdminAuth creates the middleware. An empty hash disables the check.
func NewAdminAuth(tokenHash string) *AdminAuth {
	return &AdminAuth{tokenHash: []byte(strings.TrimSpace(tokenHash))}
}

func (a *AdminAuth) Enabled() bool {
	return a != nil && len(a.tokenHash) > 0
}

// Require rejects requests without a matching bearer token.
func (a *AdminAuth) Require(next http.Handler) http.Handler {
	if !a.Enabled() {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractBearerToken(r)
		if token == "" {
			response.Error(w, http.StatusUnauthorized,
				response.CodeUnauthorized, "Missing or invalid Authorization header", nil)
			return
		}
		if bcrypt.CompareHashAndPassword(a.tokenHash, []byte(token)) != nil {
			response.Error(w, http.StatusUnauthorized,
				response.CodeUnauthorized, "Invalid admin token", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func extractBearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return ""
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

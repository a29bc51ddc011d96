package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/stockline/stockline/internal/api/response"
	"github.com/stockline/stockline/internal/auth"
	"github.com/stockline/stockline/internal/logging"
)

type contextKey string

const principalKey contextKey = "principal"

// Authenticator resolves a raw API key. *auth.Service satisfies it.
type Authenticator interface {
	Authenticate(ctx context.Context, rawKey string) (*auth.Principal, error)
}

// Auth is middleware that reads the API key from "Authorization: Bearer" or
// X-API-Key and resolves it to a Principal. Missing or invalid keys return 401.
func Auth(authn Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := GetRequestID(r.Context())

			rawKey := extractKey(r)
			if rawKey == "" {
				response.Err(w, http.StatusUnauthorized, "UNAUTHORIZED", "API key is required", requestID)
				return
			}

			p, err := authn.Authenticate(r.Context(), rawKey)
			if err != nil {
				if errors.Is(err, auth.ErrInvalidKey) {
					response.Err(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid or expired API key", requestID)
					return
				}
				logging.FromContext(r.Context()).Error("failed to authenticate request", "error", err)
				response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Authentication failed", requestID)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
		})
	}
}

func extractKey(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
	}
	return strings.TrimSpace(r.Header.Get("X-API-Key"))
}

// WithPrincipal returns a copy of ctx carrying p.
func WithPrincipal(ctx context.Context, p *auth.Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// GetPrincipal retrieves the authenticated Principal from the request context.
func GetPrincipal(ctx context.Context) *auth.Principal {
	if p, ok := ctx.Value(principalKey).(*auth.Principal); ok {
		return p
	}
	return nil
}

package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/stockline/stockline/internal/logging"
)

// RequestID is middleware that injects a unique request ID into the context
// and sets it as a response header. A caller-supplied X-Request-ID is kept.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.New().String()
		}

		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(logging.WithRequestID(r.Context(), id)))
	})
}

// GetRequestID retrieves the request ID from the context.
func GetRequestID(ctx context.Context) string {
	return logging.RequestID(ctx)
}

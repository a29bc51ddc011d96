package middleware

import (
	"net/http"

	"github.com/stockline/stockline/internal/api/response"
	"github.com/stockline/stockline/internal/logging"
)

// Recovery is middleware that recovers from panics and returns a 500 error.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				if err == http.ErrAbortHandler {
					panic(err)
				}
				logging.FromContext(r.Context()).Error("panic recovered", "error", err, "path", r.URL.Path)
				response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred", GetRequestID(r.Context()))
			}
		}()
		next.ServeHTTP(w, r)
	})
}

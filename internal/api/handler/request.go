package handler

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/stockline/stockline/internal/api/middleware"
	"github.com/stockline/stockline/internal/api/response"
	"github.com/stockline/stockline/internal/store"
)

const (
	maxJSONBody   = 1 << 20
	timestampForm = "2006-01-02T15:04:05Z"
)

func formatTime(t time.Time) string {
	return t.UTC().Format(timestampForm)
}

// pathID parses the {id} URL parameter. It writes a 400 and returns false on
// failure.
func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		response.Err(w, http.StatusBadRequest, "INVALID_ID", "id must be a positive integer", middleware.GetRequestID(r.Context()))
		return 0, false
	}
	return id, true
}

// pageParams reads page and limit. Pages above store.MaxPage are rejected,
// limits above store.MaxPageLimit are clamped.
func pageParams(w http.ResponseWriter, r *http.Request) (store.Page, bool) {
	requestID := middleware.GetRequestID(r.Context())

	var page, limit int
	if v := r.URL.Query().Get("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > store.MaxPage {
			response.Err(w, http.StatusBadRequest, "INVALID_PARAM",
				fmt.Sprintf("page must be an integer between 1 and %d", store.MaxPage), requestID)
			return store.Page{}, false
		}
		page = n
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			response.Err(w, http.StatusBadRequest, "INVALID_PARAM", "limit must be a positive integer", requestID)
			return store.Page{}, false
		}
		limit = n
	}
	return store.NewPage(page, limit), true
}

// requireScope returns the scope stored by middleware.RequireAccess.
func requireScope(w http.ResponseWriter, r *http.Request) (store.Scope, bool) {
	scope, ok := middleware.GetScope(r.Context())
	if !ok {
		response.Err(w, http.StatusBadRequest, "BAD_REQUEST", "tenant_id and shop_id are required", middleware.GetRequestID(r.Context()))
		return store.Scope{}, false
	}
	return scope, true
}

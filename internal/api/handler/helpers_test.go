package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/stockline/stockline/internal/access"
	"github.com/stockline/stockline/internal/api/middleware"
	"github.com/stockline/stockline/internal/auth"
	"github.com/stockline/stockline/internal/store"
)

func makeChiRequest(method, path string, body []byte, routePattern string, params map[string]string) (*http.Request, *httptest.ResponseRecorder) {
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, path, bytes.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()

	rctx := chi.NewRouteContext()
	rctx.RoutePatterns = append(rctx.RoutePatterns, routePattern)
	for k, v := range params {
		rctx.URLParams.Add(k, v)
	}
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))

	return req, w
}

func parseEnvelope(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var env map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &env)
	require.NoError(t, err, "failed to parse response body")
	return env
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	apiErr, ok := parseEnvelope(t, w)["error"].(map[string]interface{})
	require.True(t, ok, "response has no error object")
	return apiErr["code"].(string)
}

func ptr(v int64) *int64 { return &v }

func asUser(req *http.Request, userID int64, id *access.Identity) *http.Request {
	p := &auth.Principal{User: auth.User{ID: userID, Email: "user@example.com"}, KeyID: 1, Identity: id}
	return req.WithContext(middleware.WithPrincipal(req.Context(), p))
}

func inScope(req *http.Request, tenantID, shopID int64) *http.Request {
	return req.WithContext(middleware.WithScope(req.Context(), store.Scope{TenantID: tenantID, ShopID: shopID}))
}

var systemAdmin = access.Resolve([]access.Assignment{{Role: access.RoleSystemAdmin}}, nil)

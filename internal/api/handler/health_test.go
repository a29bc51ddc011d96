package handler_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stockline/stockline/internal/api/handler"
)

type mockPinger struct {
	err error
}

func (m *mockPinger) Ping(context.Context) error { return m.err }

func TestHealth(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		pinger        handler.DBPinger
		wantStatus    string
		wantConnected bool
	}{
		{name: "healthy", pinger: &mockPinger{}, wantStatus: "healthy", wantConnected: true},
		{name: "database down", pinger: &mockPinger{err: errors.New("refused")}, wantStatus: "degraded"},
		{name: "no database", pinger: nil, wantStatus: "degraded"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			h := handler.NewHealthHandler(tt.pinger, "1.2.3")
			w := httptest.NewRecorder()

			h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

			require.Equal(t, http.StatusOK, w.Code)
			data := parseEnvelope(t, w)["data"].(map[string]interface{})
			assert.Equal(t, tt.wantStatus, data["status"])
			assert.Equal(t, "1.2.3", data["version"])
			assert.Equal(t, tt.wantConnected, data["database"].(map[string]interface{})["connected"])
		})
	}
}

func TestOpenAPI_ConvertsYAML(t *testing.T) {
	t.Parallel()

	h := handler.NewOpenAPIHandler([]byte("openapi: 3.0.3\ninfo:\n  title: stockline\n"))

	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/openapi.json", nil))

		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
		assert.JSONEq(t, `{"openapi":"3.0.3","info":{"title":"stockline"}}`, w.Body.String())
	}
}

func TestOpenAPI_InvalidYAML(t *testing.T) {
	t.Parallel()

	h := handler.NewOpenAPIHandler([]byte("openapi: [unterminated"))
	w := httptest.NewRecorder()

	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/openapi.json", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "INTERNAL_ERROR", errorCode(t, w))
}

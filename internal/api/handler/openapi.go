package handler

import (
	"net/http"
	"sync"

	"sigs.k8s.io/yaml"

	"github.com/stockline/stockline/internal/api/middleware"
	"github.com/stockline/stockline/internal/api/response"
	"github.com/stockline/stockline/internal/logging"
)

// OpenAPIHandler serves the embedded API description as JSON.
type OpenAPIHandler struct {
	spec []byte
	once sync.Once
	doc  []byte
	err  error
}

// NewOpenAPIHandler creates a handler for a YAML document. Conversion happens
// once, on the first request.
func NewOpenAPIHandler(spec []byte) *OpenAPIHandler {
	return &OpenAPIHandler{spec: spec}
}

func (h *OpenAPIHandler) document() ([]byte, error) {
	h.once.Do(func() {
		h.doc, h.err = yaml.YAMLToJSON(h.spec)
	})
	return h.doc, h.err
}

// ServeHTTP writes the converted document.
func (h *OpenAPIHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	doc, err := h.document()
	if err != nil {
		logging.FromContext(r.Context()).Error("failed to convert OpenAPI document", "error", err)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to convert OpenAPI document", middleware.GetRequestID(r.Context()))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "public, max-age=300")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(doc); err != nil {
		logging.FromContext(r.Context()).Error("failed to write OpenAPI document", "error", err)
	}
}

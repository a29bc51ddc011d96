package handler

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"path"
	"strings"

	"github.com/stockline/stockline/internal/api/middleware"
	"github.com/stockline/stockline/internal/api/response"
	"github.com/stockline/stockline/internal/importer"
	"github.com/stockline/stockline/internal/logging"
)

// ImportRecorder receives the totals of every finished import.
type ImportRecorder interface {
	RecordImport(entity string, created, updated, failed int, autoCreated map[string]int)
}

type nopRecorder struct{}

func (nopRecorder) RecordImport(string, int, int, int, map[string]int) {}

var errMissingFile = errors.New(`multipart upload has no "file" field`)

// readImportBody returns the uploaded document and the content type to parse
// it with. Multipart uploads are read from the "file" field, anything else is
// taken as the raw body.
func readImportBody(r *http.Request) (contentType string, body []byte, err error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		body, err = io.ReadAll(r.Body)
		return r.Header.Get("Content-Type"), body, err
	}

	mr, err := r.MultipartReader()
	if err != nil {
		return "", nil, err
	}
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			return "", nil, errMissingFile
		}
		if err != nil {
			return "", nil, err
		}
		if part.FormName() != "file" {
			_ = part.Close()
			continue
		}

		body, err = io.ReadAll(part)
		_ = part.Close()
		contentType = part.Header.Get("Content-Type")
		if strings.EqualFold(path.Ext(part.FileName()), ".json") {
			contentType = "application/json"
		}
		return contentType, body, err
	}
}

// parseImport reads and parses an import request, writing the error response
// itself when it returns false.
func parseImport(w http.ResponseWriter, r *http.Request, maxBytes int64) ([]importer.Row, bool) {
	requestID := middleware.GetRequestID(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	contentType, body, err := readImportBody(r)
	if err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			response.Err(w, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "Import file is too large", requestID)
		case errors.Is(err, errMissingFile):
			response.Err(w, http.StatusBadRequest, "BAD_REQUEST", `Multipart upload must contain a "file" field`, requestID)
		default:
			logging.FromContext(r.Context()).Warn("failed to read import body", "error", err)
			response.Err(w, http.StatusBadRequest, "BAD_REQUEST", "Failed to read import body", requestID)
		}
		return nil, false
	}

	rows, err := importer.Parse(contentType, body)
	if err != nil {
		if errors.Is(err, importer.ErrMalformedInput) {
			response.Err(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), requestID)
			return nil, false
		}
		logging.FromContext(r.Context()).Error("failed to parse import", "error", err)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to parse import", requestID)
		return nil, false
	}

	return rows, true
}

package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/stockline/stockline/internal/api/middleware"
	"github.com/stockline/stockline/internal/api/response"
	"github.com/stockline/stockline/internal/api/validation"
	"github.com/stockline/stockline/internal/catalog"
	"github.com/stockline/stockline/internal/importer"
	"github.com/stockline/stockline/internal/logging"
	"github.com/stockline/stockline/internal/store"
)

// CatalogStore is the coded-entity store behind one catalog table.
// *catalog.Store satisfies it.
type CatalogStore interface {
	Normalize(code string) string
	Create(ctx context.Context, e *catalog.Entity) error
	GetByID(ctx context.Context, id int64, scope store.Scope) (*catalog.Entity, error)
	List(ctx context.Context, scope store.Scope, page store.Page) ([]catalog.Entity, error)
	Count(ctx context.Context, scope store.Scope) (int, error)
	UpdateTitle(ctx context.Context, id int64, scope store.Scope, title string) (*catalog.Entity, error)
	Delete(ctx context.Context, id int64, scope store.Scope) error
	BulkUpsert(ctx context.Context, tenantID, shopID int64, items []catalog.Item) (store.Counts, error)
	FindOrCreateByCode(ctx context.Context, tenantID, shopID int64, codeList []string) (map[string]int64, int, error)
}

// CatalogStores looks up the store of a coded table.
type CatalogStores func(table store.Table) (CatalogStore, error)

type catalogItemRequest struct {
	Code  string `json:"code"`
	Title string `json:"title"`
}

type bulkRequest struct {
	Items []catalogItemRequest `json:"items"`
}

type findOrCreateRequest struct {
	Codes []string `json:"codes"`
}

type updateTitleRequest struct {
	Title *string `json:"title"`
}

type catalogResponse struct {
	ID        int64  `json:"id"`
	TenantID  int64  `json:"tenantId"`
	ShopID    int64  `json:"shopId"`
	Code      string `json:"code"`
	Title     string `json:"title"`
	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt"`
}

type findOrCreateResponse struct {
	IDs     map[string]int64 `json:"ids"`
	Created int              `json:"created"`
}

func toCatalogResponse(e *catalog.Entity) catalogResponse {
	return catalogResponse{
		ID:        e.ID,
		TenantID:  e.TenantID,
		ShopID:    e.ShopID,
		Code:      e.Code,
		Title:     e.Title,
		CreatedAt: formatTime(e.CreatedAt),
		UpdatedAt: formatTime(e.UpdatedAt),
	}
}

// CatalogHandler serves every coded catalog table under /catalog/{entity}.
type CatalogHandler struct {
	stores    CatalogStores
	resolvers importer.Resolvers
	recorder  ImportRecorder
	maxImport int64
}

// NewCatalogHandler creates a new CatalogHandler. recorder may be nil.
func NewCatalogHandler(stores CatalogStores, resolvers importer.Resolvers, recorder ImportRecorder, maxImport int64) *CatalogHandler {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &CatalogHandler{stores: stores, resolvers: resolvers, recorder: recorder, maxImport: maxImport}
}

// entity resolves {entity} to its store. Unknown names and tables without
// codes are 404.
func (h *CatalogHandler) entity(w http.ResponseWriter, r *http.Request) (store.Table, CatalogStore, bool) {
	requestID := middleware.GetRequestID(r.Context())

	name := chi.URLParam(r, "entity")
	table, err := store.ParseTable(name)
	if err != nil || !table.IsCoded() {
		response.Err(w, http.StatusNotFound, "NOT_FOUND", fmt.Sprintf("Unknown catalog entity %q", name), requestID)
		return 0, nil, false
	}

	s, err := h.stores(table)
	if err != nil {
		logging.FromContext(r.Context()).Error("failed to resolve catalog store", "error", err, "entity", name)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to resolve catalog entity", requestID)
		return 0, nil, false
	}
	return table, s, true
}

// List handles GET /catalog/{entity}.
func (h *CatalogHandler) List(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	table, s, ok := h.entity(w, r)
	if !ok {
		return
	}
	scope, ok := requireScope(w, r)
	if !ok {
		return
	}
	page, ok := pageParams(w, r)
	if !ok {
		return
	}

	total, err := s.Count(r.Context(), scope)
	if err != nil {
		logging.FromContext(r.Context()).Error("failed to count catalog rows", "error", err, "entity", table.String())
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list "+table.String(), requestID)
		return
	}
	rows, err := s.List(r.Context(), scope, page)
	if err != nil {
		logging.FromContext(r.Context()).Error("failed to list catalog rows", "error", err, "entity", table.String())
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list "+table.String(), requestID)
		return
	}

	items := make([]catalogResponse, 0, len(rows))
	for i := range rows {
		items = append(items, toCatalogResponse(&rows[i]))
	}

	response.SuccessList(w, http.StatusOK, items, total, page.Number, page.Limit, requestID)
}

// GetByID handles GET /catalog/{entity}/{id}.
func (h *CatalogHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	table, s, ok := h.entity(w, r)
	if !ok {
		return
	}
	scope, ok := requireScope(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	e, err := s.GetByID(r.Context(), id, scope)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			response.Err(w, http.StatusNotFound, "NOT_FOUND", "Record not found", requestID)
			return
		}
		logging.FromContext(r.Context()).Error("failed to get catalog row", "error", err, "entity", table.String(), "id", id)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to get record", requestID)
		return
	}

	response.Success(w, http.StatusOK, toCatalogResponse(e), requestID)
}

// Create handles POST /catalog/{entity}. The code is normalized by the
// table's rule before insert.
func (h *CatalogHandler) Create(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	table, s, ok := h.entity(w, r)
	if !ok {
		return
	}
	scope, ok := requireScope(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	var req catalogItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Err(w, http.StatusBadRequest, "INVALID_JSON", "Request body must be valid JSON", requestID)
		return
	}

	item := normalizeItem(s, req)
	if fieldErrors := validation.ValidateCatalogItem("", validation.CatalogItem{RawCode: req.Code, Code: item.Code, Title: item.Title}); len(fieldErrors) > 0 {
		response.ErrWithDetails(w, http.StatusBadRequest, "VALIDATION_ERROR", "Input validation failed", fieldErrors, requestID)
		return
	}

	e := &catalog.Entity{TenantID: scope.TenantID, ShopID: scope.ShopID, Code: item.Code, Title: item.Title}
	if err := s.Create(r.Context(), e); err != nil {
		if errors.Is(err, catalog.ErrDuplicateCode) {
			response.Err(w, http.StatusConflict, "DUPLICATE_CODE", fmt.Sprintf("Code %q already exists in this shop", item.Code), requestID)
			return
		}
		logging.FromContext(r.Context()).Error("failed to create catalog row", "error", err, "entity", table.String())
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create record", requestID)
		return
	}

	response.Success(w, http.StatusCreated, toCatalogResponse(e), requestID)
}

// Update handles PATCH /catalog/{entity}/{id}. Only the title is mutable.
func (h *CatalogHandler) Update(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	table, s, ok := h.entity(w, r)
	if !ok {
		return
	}
	scope, ok := requireScope(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	var req updateTitleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Err(w, http.StatusBadRequest, "INVALID_JSON", "Request body must be valid JSON", requestID)
		return
	}

	if fieldErrors := validation.ValidateUpdateTitle(req.Title); len(fieldErrors) > 0 {
		response.ErrWithDetails(w, http.StatusBadRequest, "VALIDATION_ERROR", "Input validation failed", fieldErrors, requestID)
		return
	}

	e, err := s.UpdateTitle(r.Context(), id, scope, strings.TrimSpace(*req.Title))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			response.Err(w, http.StatusNotFound, "NOT_FOUND", "Record not found", requestID)
			return
		}
		logging.FromContext(r.Context()).Error("failed to update catalog row", "error", err, "entity", table.String(), "id", id)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to update record", requestID)
		return
	}

	response.Success(w, http.StatusOK, toCatalogResponse(e), requestID)
}

// Delete handles DELETE /catalog/{entity}/{id}. Rows still referenced by
// sales history are kept and reported as a conflict.
func (h *CatalogHandler) Delete(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	table, s, ok := h.entity(w, r)
	if !ok {
		return
	}
	scope, ok := requireScope(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	if err := s.Delete(r.Context(), id, scope); err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			response.Err(w, http.StatusNotFound, "NOT_FOUND", "Record not found", requestID)
		case errors.Is(err, store.ErrReferenced):
			response.Err(w, http.StatusConflict, "RECORD_IN_USE", "Record is still referenced", requestID)
		default:
			logging.FromContext(r.Context()).Error("failed to delete catalog row", "error", err, "entity", table.String(), "id", id)
			response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to delete record", requestID)
		}
		return
	}

	response.NoContent(w)
}

// Bulk handles POST /catalog/{entity}/bulk. The whole batch is validated
// before anything is written.
func (h *CatalogHandler) Bulk(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	table, s, ok := h.entity(w, r)
	if !ok {
		return
	}
	scope, ok := requireScope(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxImport)
	var req bulkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Err(w, http.StatusBadRequest, "INVALID_JSON", "Request body must be valid JSON", requestID)
		return
	}

	var fieldErrors []validation.FieldError
	if len(req.Items) > validation.MaxCodesPerRequest {
		fieldErrors = append(fieldErrors, validation.FieldError{Field: "items", Message: fmt.Sprintf("items must contain at most %d entries", validation.MaxCodesPerRequest)})
	}
	items := make([]catalog.Item, 0, len(req.Items))
	for i, raw := range req.Items {
		item := normalizeItem(s, raw)
		prefix := fmt.Sprintf("items[%d].", i)
		fieldErrors = append(fieldErrors, validation.ValidateCatalogItem(prefix, validation.CatalogItem{RawCode: raw.Code, Code: item.Code, Title: item.Title})...)
		items = append(items, item)
	}
	if len(fieldErrors) > 0 {
		response.ErrWithDetails(w, http.StatusBadRequest, "VALIDATION_ERROR", "Input validation failed", fieldErrors, requestID)
		return
	}

	counts, err := s.BulkUpsert(r.Context(), scope.TenantID, scope.ShopID, items)
	if err != nil {
		logging.FromContext(r.Context()).Error("failed to bulk upsert catalog rows", "error", err, "entity", table.String())
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to save records", requestID)
		return
	}

	response.Success(w, http.StatusOK, counts, requestID)
}

// FindOrCreate handles POST /catalog/{entity}/find-or-create. The response
// maps each submitted code to its row id.
func (h *CatalogHandler) FindOrCreate(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	table, s, ok := h.entity(w, r)
	if !ok {
		return
	}
	scope, ok := requireScope(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxImport)
	var req findOrCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Err(w, http.StatusBadRequest, "INVALID_JSON", "Request body must be valid JSON", requestID)
		return
	}

	fieldErrors := validation.ValidateCodes(req.Codes)
	normalized := make([]string, len(req.Codes))
	for i, c := range req.Codes {
		normalized[i] = s.Normalize(c)
		if strings.TrimSpace(c) != "" && normalized[i] == "" {
			fieldErrors = append(fieldErrors, validation.FieldError{Field: fmt.Sprintf("codes[%d]", i), Message: "code must contain at least one letter or digit"})
		}
	}
	if len(fieldErrors) > 0 {
		response.ErrWithDetails(w, http.StatusBadRequest, "VALIDATION_ERROR", "Input validation failed", fieldErrors, requestID)
		return
	}

	ids, created, err := s.FindOrCreateByCode(r.Context(), scope.TenantID, scope.ShopID, normalized)
	if err != nil {
		logging.FromContext(r.Context()).Error("failed to find or create catalog rows", "error", err, "entity", table.String())
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to resolve codes", requestID)
		return
	}

	out := findOrCreateResponse{IDs: make(map[string]int64, len(req.Codes)), Created: created}
	for i, c := range req.Codes {
		out.IDs[c] = ids[normalized[i]]
	}

	response.Success(w, http.StatusOK, out, requestID)
}

// Import handles POST /catalog/{entity}/import with a CSV or JSON document.
// Row failures are reported inside the 200 result.
func (h *CatalogHandler) Import(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	table, s, ok := h.entity(w, r)
	if !ok {
		return
	}
	scope, ok := requireScope(w, r)
	if !ok {
		return
	}

	rows, ok := parseImport(w, r, h.maxImport)
	if !ok {
		return
	}

	def := importer.CatalogDefinition(table.String(), s)
	res, err := importer.Run(r.Context(), def, h.resolvers, scope.TenantID, scope.ShopID, rows)
	if err != nil {
		logging.FromContext(r.Context()).Error("failed to import catalog rows", "error", err, "entity", table.String())
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Import failed", requestID)
		return
	}

	h.recorder.RecordImport(def.Entity, res.Created, res.Updated, len(res.Errors), res.AutoCreated)
	response.Success(w, http.StatusOK, res, requestID)
}

func normalizeItem(s CatalogStore, req catalogItemRequest) catalog.Item {
	code := s.Normalize(req.Code)
	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = code
	}
	return catalog.Item{Code: code, Title: title}
}

package handler

import (
	"context"
	"net/http"

	"github.com/stockline/stockline/internal/api/middleware"
	"github.com/stockline/stockline/internal/api/response"
	"github.com/stockline/stockline/internal/importer"
	"github.com/stockline/stockline/internal/logging"
	"github.com/stockline/stockline/internal/sales"
	"github.com/stockline/stockline/internal/store"
)

// SalesRepository is the part of *sales.Repository the sales endpoints use.
type SalesRepository interface {
	List(ctx context.Context, scope store.Scope, page store.Page) ([]sales.Record, error)
	Count(ctx context.Context, scope store.Scope) (int, error)
	BulkUpsert(ctx context.Context, tenantID, shopID int64, records []sales.Record) (store.Counts, error)
}

type salesResponse struct {
	ID            int64   `json:"id"`
	SKUID         int64   `json:"skuId"`
	MarketplaceID int64   `json:"marketplaceId"`
	Period        string  `json:"period"`
	Quantity      int     `json:"quantity"`
	Revenue       float64 `json:"revenue"`
	UpdatedAt     string  `json:"updatedAt"`
}

func toSalesResponse(rec *sales.Record) salesResponse {
	return salesResponse{
		ID:            rec.ID,
		SKUID:         rec.SKUID,
		MarketplaceID: rec.MarketplaceID,
		Period:        rec.Period.Format(sales.PeriodLayout),
		Quantity:      rec.Quantity,
		Revenue:       rec.Revenue,
		UpdatedAt:     formatTime(rec.UpdatedAt),
	}
}

// SalesHandler handles sales history endpoints.
type SalesHandler struct {
	repo      SalesRepository
	resolvers importer.Resolvers
	recorder  ImportRecorder
	maxImport int64
}

// NewSalesHandler creates a new SalesHandler. recorder may be nil.
func NewSalesHandler(repo SalesRepository, resolvers importer.Resolvers, recorder ImportRecorder, maxImport int64) *SalesHandler {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &SalesHandler{repo: repo, resolvers: resolvers, recorder: recorder, maxImport: maxImport}
}

// List handles GET /sales-history.
func (h *SalesHandler) List(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	scope, ok := requireScope(w, r)
	if !ok {
		return
	}
	page, ok := pageParams(w, r)
	if !ok {
		return
	}

	total, err := h.repo.Count(r.Context(), scope)
	if err != nil {
		logging.FromContext(r.Context()).Error("failed to count sales history", "error", err)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list sales history", requestID)
		return
	}
	records, err := h.repo.List(r.Context(), scope, page)
	if err != nil {
		logging.FromContext(r.Context()).Error("failed to list sales history", "error", err)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list sales history", requestID)
		return
	}

	items := make([]salesResponse, 0, len(records))
	for i := range records {
		items = append(items, toSalesResponse(&records[i]))
	}

	response.SuccessList(w, http.StatusOK, items, total, page.Number, page.Limit, requestID)
}

// Import handles POST /sales-history/import. Unknown SKUs and marketplaces
// are created on the fly and counted in the result.
func (h *SalesHandler) Import(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	scope, ok := requireScope(w, r)
	if !ok {
		return
	}

	rows, ok := parseImport(w, r, h.maxImport)
	if !ok {
		return
	}

	def := importer.SalesDefinition(h.repo)
	res, err := importer.Run(r.Context(), def, h.resolvers, scope.TenantID, scope.ShopID, rows)
	if err != nil {
		logging.FromContext(r.Context()).Error("failed to import sales history", "error", err)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Import failed", requestID)
		return
	}

	h.recorder.RecordImport(def.Entity, res.Created, res.Updated, len(res.Errors), res.AutoCreated)
	response.Success(w, http.StatusOK, res, requestID)
}

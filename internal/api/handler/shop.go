package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/stockline/stockline/internal/api/middleware"
	"github.com/stockline/stockline/internal/api/response"
	"github.com/stockline/stockline/internal/api/validation"
	"github.com/stockline/stockline/internal/logging"
	"github.com/stockline/stockline/internal/tenant"
)

// ShopRepository is the part of tenant.Repository the shop endpoints use.
type ShopRepository interface {
	CreateShop(ctx context.Context, s *tenant.Shop) error
	ListShops(ctx context.Context, tenantID int64) ([]tenant.Shop, error)
}

type createShopRequest struct {
	Title string `json:"title"`
}

type shopResponse struct {
	ID        int64  `json:"id"`
	TenantID  int64  `json:"tenantId"`
	Title     string `json:"title"`
	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt"`
}

func toShopResponse(s *tenant.Shop) shopResponse {
	return shopResponse{
		ID:        s.ID,
		TenantID:  s.TenantID,
		Title:     s.Title,
		CreatedAt: formatTime(s.CreatedAt),
		UpdatedAt: formatTime(s.UpdatedAt),
	}
}

// ShopHandler handles shop endpoints.
type ShopHandler struct {
	repo ShopRepository
}

// NewShopHandler creates a new ShopHandler.
func NewShopHandler(repo ShopRepository) *ShopHandler {
	return &ShopHandler{repo: repo}
}

// List handles GET /shops?tenant_id=. Any member of the tenant may list its
// shops.
func (h *ShopHandler) List(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	tenantID, ok := middleware.QueryID(r, "tenant_id")
	if !ok {
		response.Err(w, http.StatusBadRequest, "BAD_REQUEST", "tenant_id must be a positive integer", requestID)
		return
	}

	id := middleware.GetPrincipal(r.Context()).Identity
	if !id.IsSystemAdmin() && !id.HasTenant(tenantID) {
		response.Err(w, http.StatusForbidden, "FORBIDDEN", "Insufficient permissions", requestID)
		return
	}

	shops, err := h.repo.ListShops(r.Context(), tenantID)
	if err != nil {
		logging.FromContext(r.Context()).Error("failed to list shops", "error", err, "tenant_id", tenantID)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list shops", requestID)
		return
	}

	items := make([]shopResponse, 0, len(shops))
	for i := range shops {
		items = append(items, toShopResponse(&shops[i]))
	}

	response.SuccessList(w, http.StatusOK, items, len(items), 1, len(items), requestID)
}

// Create handles POST /shops?tenant_id=. The tenant admin guard runs first.
func (h *ShopHandler) Create(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	tenantID, ok := middleware.QueryID(r, "tenant_id")
	if !ok {
		response.Err(w, http.StatusBadRequest, "BAD_REQUEST", "tenant_id must be a positive integer", requestID)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	var req createShopRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Err(w, http.StatusBadRequest, "INVALID_JSON", "Request body must be valid JSON", requestID)
		return
	}

	if fieldErrors := validation.ValidateCreateShopRequest(req.Title); len(fieldErrors) > 0 {
		response.ErrWithDetails(w, http.StatusBadRequest, "VALIDATION_ERROR", "Input validation failed", fieldErrors, requestID)
		return
	}

	s := &tenant.Shop{TenantID: tenantID, Title: strings.TrimSpace(req.Title)}
	if err := h.repo.CreateShop(r.Context(), s); err != nil {
		if errors.Is(err, tenant.ErrTenantNotFound) {
			response.Err(w, http.StatusNotFound, "NOT_FOUND", "Tenant not found", requestID)
			return
		}
		logging.FromContext(r.Context()).Error("failed to create shop", "error", err, "tenant_id", tenantID)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create shop", requestID)
		return
	}

	response.Success(w, http.StatusCreated, toShopResponse(s), requestID)
}

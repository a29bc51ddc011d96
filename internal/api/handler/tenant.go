package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/stockline/stockline/internal/api/middleware"
	"github.com/stockline/stockline/internal/api/response"
	"github.com/stockline/stockline/internal/api/validation"
	"github.com/stockline/stockline/internal/logging"
	"github.com/stockline/stockline/internal/tenant"
)

// TenantDirectory lists tenants.
type TenantDirectory interface {
	ListTenants(ctx context.Context, ids []int64) ([]tenant.Tenant, error)
	ListAllTenants(ctx context.Context) ([]tenant.Tenant, error)
}

// Provisioner creates a tenant with its owner, default shop and key.
type Provisioner interface {
	Provision(ctx context.Context, req tenant.ProvisionRequest, createdBy *int64) (*tenant.Provisioned, error)
}

type provisionRequest struct {
	Title      string `json:"title"`
	OwnerEmail string `json:"ownerEmail"`
	OwnerName  string `json:"ownerName"`
	ShopTitle  string `json:"shopTitle"`
}

type tenantResponse struct {
	ID        int64  `json:"id"`
	Title     string `json:"title"`
	OwnerID   *int64 `json:"ownerId"`
	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt"`
}

type provisionResponse struct {
	Tenant tenantResponse `json:"tenant"`
	Shop   shopResponse   `json:"shop"`
	Owner  userResponse   `json:"owner"`
	APIKey string         `json:"apiKey"`
}

func toTenantResponse(t *tenant.Tenant) tenantResponse {
	return tenantResponse{
		ID:        t.ID,
		Title:     t.Title,
		OwnerID:   t.OwnerID,
		CreatedAt: formatTime(t.CreatedAt),
		UpdatedAt: formatTime(t.UpdatedAt),
	}
}

// TenantHandler handles tenant endpoints.
type TenantHandler struct {
	tenants     TenantDirectory
	provisioner Provisioner
}

// NewTenantHandler creates a new TenantHandler.
func NewTenantHandler(tenants TenantDirectory, provisioner Provisioner) *TenantHandler {
	return &TenantHandler{tenants: tenants, provisioner: provisioner}
}

// List handles GET /tenants. System admins see every tenant, everyone else
// sees the tenants they own or hold a role in.
func (h *TenantHandler) List(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	p := middleware.GetPrincipal(r.Context())

	var (
		tenants []tenant.Tenant
		err     error
	)
	if p.Identity.IsSystemAdmin() {
		tenants, err = h.tenants.ListAllTenants(r.Context())
	} else {
		tenants, err = h.tenants.ListTenants(r.Context(), p.Identity.TenantIDs())
	}
	if err != nil {
		logging.FromContext(r.Context()).Error("failed to list tenants", "error", err)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list tenants", requestID)
		return
	}

	items := make([]tenantResponse, 0, len(tenants))
	for i := range tenants {
		items = append(items, toTenantResponse(&tenants[i]))
	}

	response.SuccessList(w, http.StatusOK, items, len(items), 1, len(items), requestID)
}

// Create handles POST /tenants. The owner's raw API key is returned once.
func (h *TenantHandler) Create(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	var req provisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Err(w, http.StatusBadRequest, "INVALID_JSON", "Request body must be valid JSON", requestID)
		return
	}

	fieldErrors := validation.ValidateProvisionRequest(validation.ProvisionRequest{
		TenantTitle: req.Title,
		OwnerEmail:  req.OwnerEmail,
		OwnerName:   req.OwnerName,
		ShopTitle:   req.ShopTitle,
	})
	if len(fieldErrors) > 0 {
		response.ErrWithDetails(w, http.StatusBadRequest, "VALIDATION_ERROR", "Input validation failed", fieldErrors, requestID)
		return
	}

	var createdBy *int64
	if p := middleware.GetPrincipal(r.Context()); p != nil {
		createdBy = &p.User.ID
	}

	out, err := h.provisioner.Provision(r.Context(), tenant.ProvisionRequest{
		TenantTitle: strings.TrimSpace(req.Title),
		OwnerEmail:  strings.TrimSpace(req.OwnerEmail),
		OwnerName:   strings.TrimSpace(req.OwnerName),
		ShopTitle:   strings.TrimSpace(req.ShopTitle),
	}, createdBy)
	if err != nil {
		logging.FromContext(r.Context()).Error("failed to provision tenant", "error", err)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to provision tenant", requestID)
		return
	}

	response.Success(w, http.StatusCreated, provisionResponse{
		Tenant: toTenantResponse(&out.Tenant),
		Shop:   toShopResponse(&out.Shop),
		Owner: userResponse{
			ID:        out.Owner.ID,
			Email:     out.Owner.Email,
			Name:      out.Owner.Name,
			CreatedAt: formatTime(out.Owner.CreatedAt),
		},
		APIKey: out.APIKey,
	}, requestID)
}

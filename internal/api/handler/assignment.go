package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/stockline/stockline/internal/access"
	"github.com/stockline/stockline/internal/api/middleware"
	"github.com/stockline/stockline/internal/api/response"
	"github.com/stockline/stockline/internal/api/validation"
	"github.com/stockline/stockline/internal/auth"
	"github.com/stockline/stockline/internal/logging"
	"github.com/stockline/stockline/internal/tenant"
)

type createAssignmentRequest struct {
	UserID   int64  `json:"userId"`
	Role     string `json:"role"`
	TenantID int64  `json:"tenantId"`
	ShopID   *int64 `json:"shopId"`
}

type assignmentResponse struct {
	ID        int64  `json:"id"`
	UserID    int64  `json:"userId"`
	Role      string `json:"role"`
	TenantID  *int64 `json:"tenantId"`
	ShopID    *int64 `json:"shopId"`
	CreatedAt string `json:"createdAt"`
}

func toAssignmentResponse(a *tenant.Assignment) assignmentResponse {
	return assignmentResponse{
		ID:        a.ID,
		UserID:    a.UserID,
		Role:      string(a.Role),
		TenantID:  a.TenantID,
		ShopID:    a.ShopID,
		CreatedAt: formatTime(a.CreatedAt),
	}
}

// AssignmentHandler handles role assignment endpoints.
type AssignmentHandler struct {
	repo tenant.AssignmentRepository
}

// NewAssignmentHandler creates a new AssignmentHandler.
func NewAssignmentHandler(repo tenant.AssignmentRepository) *AssignmentHandler {
	return &AssignmentHandler{repo: repo}
}

// List handles GET /role-assignments?tenant_id=.
func (h *AssignmentHandler) List(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	tenantID, ok := middleware.QueryID(r, "tenant_id")
	if !ok {
		response.Err(w, http.StatusBadRequest, "BAD_REQUEST", "tenant_id must be a positive integer", requestID)
		return
	}

	assignments, err := h.repo.ListForTenant(r.Context(), tenantID)
	if err != nil {
		logging.FromContext(r.Context()).Error("failed to list role assignments", "error", err, "tenant_id", tenantID)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list role assignments", requestID)
		return
	}

	items := make([]assignmentResponse, 0, len(assignments))
	for i := range assignments {
		items = append(items, toAssignmentResponse(&assignments[i]))
	}

	response.SuccessList(w, http.StatusOK, items, len(items), 1, len(items), requestID)
}

// Create handles POST /role-assignments. The caller must be a tenant admin of
// the target tenant named in the body.
func (h *AssignmentHandler) Create(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	var req createAssignmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Err(w, http.StatusBadRequest, "INVALID_JSON", "Request body must be valid JSON", requestID)
		return
	}

	fieldErrors := validation.ValidateAssignmentRequest(validation.AssignmentRequest{
		UserID:   req.UserID,
		Role:     req.Role,
		TenantID: req.TenantID,
		ShopID:   req.ShopID,
	})
	if len(fieldErrors) > 0 {
		response.ErrWithDetails(w, http.StatusBadRequest, "VALIDATION_ERROR", "Input validation failed", fieldErrors, requestID)
		return
	}

	p := middleware.GetPrincipal(r.Context())
	if err := p.Identity.ValidateTenantAdminAccess(req.TenantID); err != nil {
		response.Err(w, http.StatusForbidden, "FORBIDDEN", "Tenant admin access required", requestID)
		return
	}

	tenantID := req.TenantID
	a := &tenant.Assignment{
		UserID:   req.UserID,
		Role:     access.Role(req.Role),
		TenantID: &tenantID,
		ShopID:   req.ShopID,
	}

	if err := h.repo.Create(r.Context(), a); err != nil {
		switch {
		case errors.Is(err, tenant.ErrInvalidScope):
			response.Err(w, http.StatusBadRequest, "VALIDATION_ERROR", "shopId must name a shop of the tenant", requestID)
		case errors.Is(err, tenant.ErrUnknownRole):
			response.Err(w, http.StatusBadRequest, "VALIDATION_ERROR", "Unknown role", requestID)
		case errors.Is(err, auth.ErrUserNotFound):
			response.Err(w, http.StatusNotFound, "NOT_FOUND", "User not found", requestID)
		case errors.Is(err, tenant.ErrTenantNotFound):
			response.Err(w, http.StatusNotFound, "NOT_FOUND", "Tenant not found", requestID)
		default:
			logging.FromContext(r.Context()).Error("failed to create role assignment", "error", err)
			response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create role assignment", requestID)
		}
		return
	}

	response.Success(w, http.StatusCreated, toAssignmentResponse(a), requestID)
}

// Delete handles DELETE /role-assignments/{id}?tenant_id=.
func (h *AssignmentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	id, ok := pathID(w, r)
	if !ok {
		return
	}
	tenantID, ok := middleware.QueryID(r, "tenant_id")
	if !ok {
		response.Err(w, http.StatusBadRequest, "BAD_REQUEST", "tenant_id must be a positive integer", requestID)
		return
	}

	if err := h.repo.Delete(r.Context(), id, tenantID); err != nil {
		if errors.Is(err, tenant.ErrAssignmentNotFound) {
			response.Err(w, http.StatusNotFound, "NOT_FOUND", "Role assignment not found", requestID)
			return
		}
		logging.FromContext(r.Context()).Error("failed to delete role assignment", "error", err, "id", id)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to delete role assignment", requestID)
		return
	}

	response.NoContent(w)
}

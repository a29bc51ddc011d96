package middleware

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/stockline/stockline/internal/access"
	"github.com/stockline/stockline/internal/api/response"
	"github.com/stockline/stockline/internal/logging"
	"github.com/stockline/stockline/internal/store"
)

const scopeKey contextKey = "scope"

const forbiddenMessage = "Insufficient permissions"

// ShopDirectory answers whether a shop belongs to a tenant.
type ShopDirectory interface {
	ShopBelongsTo(ctx context.Context, shopID, tenantID int64) (bool, error)
}

// RequireAccess returns middleware that enforces level on the shop_id and
// tenant_id query parameters, then checks that the shop belongs to the
// tenant. LevelNone passes every authenticated request. On success the
// parsed scope is stored in the context.
func RequireAccess(level access.Level, shops ShopDirectory) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if level == access.LevelNone {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			requestID := GetRequestID(ctx)

			p := GetPrincipal(ctx)
			if p == nil {
				response.Err(w, http.StatusUnauthorized, "UNAUTHORIZED", "API key is required", requestID)
				return
			}

			tenantID, ok := QueryID(r, "tenant_id")
			if !ok {
				response.Err(w, http.StatusBadRequest, "BAD_REQUEST", "tenant_id must be a positive integer", requestID)
				return
			}
			shopID, ok := QueryID(r, "shop_id")
			if !ok {
				response.Err(w, http.StatusBadRequest, "BAD_REQUEST", "shop_id must be a positive integer", requestID)
				return
			}

			// Roles before the shop lookup; both denials share one message.
			if err := p.Identity.Authorize(level, shopID, tenantID); err != nil {
				response.Err(w, http.StatusForbidden, "FORBIDDEN", forbiddenMessage, requestID)
				return
			}

			belongs, err := shops.ShopBelongsTo(ctx, shopID, tenantID)
			if err != nil {
				logging.FromContext(ctx).Error("failed to check shop tenant", "error", err)
				response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to check access", requestID)
				return
			}
			if !belongs {
				response.Err(w, http.StatusForbidden, "FORBIDDEN", forbiddenMessage, requestID)
				return
			}

			scope := store.Scope{TenantID: tenantID, ShopID: shopID}
			next.ServeHTTP(w, r.WithContext(WithScope(ctx, scope)))
		})
	}
}

// RequireSystemAdmin returns middleware that rejects non-admin principals with 403.
func RequireSystemAdmin() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := GetRequestID(r.Context())

			p := GetPrincipal(r.Context())
			if p == nil {
				response.Err(w, http.StatusUnauthorized, "UNAUTHORIZED", "API key is required", requestID)
				return
			}

			if !p.Identity.IsSystemAdmin() {
				response.Err(w, http.StatusForbidden, "FORBIDDEN", "System admin access required", requestID)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireTenantAdmin returns middleware that requires tenant access to the
// tenant_id query parameter.
func RequireTenantAdmin() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := GetRequestID(r.Context())

			p := GetPrincipal(r.Context())
			if p == nil {
				response.Err(w, http.StatusUnauthorized, "UNAUTHORIZED", "API key is required", requestID)
				return
			}

			tenantID, ok := QueryID(r, "tenant_id")
			if !ok {
				response.Err(w, http.StatusBadRequest, "BAD_REQUEST", "tenant_id must be a positive integer", requestID)
				return
			}

			if err := p.Identity.ValidateTenantAdminAccess(tenantID); err != nil {
				if errors.Is(err, access.ErrForbidden) {
					response.Err(w, http.StatusForbidden, "FORBIDDEN", "Tenant admin access required", requestID)
					return
				}
				response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to check access", requestID)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// WithScope returns a copy of ctx carrying scope.
func WithScope(ctx context.Context, scope store.Scope) context.Context {
	return context.WithValue(ctx, scopeKey, scope)
}

// GetScope returns the scope RequireAccess validated for this request.
func GetScope(ctx context.Context) (store.Scope, bool) {
	s, ok := ctx.Value(scopeKey).(store.Scope)
	return s, ok
}

// QueryID parses a positive integer query parameter.
func QueryID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(r.URL.Query().Get(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

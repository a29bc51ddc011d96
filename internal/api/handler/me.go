package handler

import (
	"net/http"

	"github.com/stockline/stockline/internal/access"
	"github.com/stockline/stockline/internal/api/middleware"
	"github.com/stockline/stockline/internal/api/response"
)

type userResponse struct {
	ID        int64  `json:"id"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	CreatedAt string `json:"createdAt"`
}

type meResponse struct {
	User     userResponse     `json:"user"`
	KeyID    int64            `json:"keyId"`
	Identity *access.Identity `json:"identity"`
}

// Me handles GET /me and returns the caller with its resolved identity.
func Me(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	p := middleware.GetPrincipal(r.Context())
	if p == nil {
		response.Err(w, http.StatusUnauthorized, "UNAUTHORIZED", "API key is required", requestID)
		return
	}

	response.Success(w, http.StatusOK, meResponse{
		User: userResponse{
			ID:        p.User.ID,
			Email:     p.User.Email,
			Name:      p.User.Name,
			CreatedAt: formatTime(p.User.CreatedAt),
		},
		KeyID:    p.KeyID,
		Identity: p.Identity,
	}, requestID)
}

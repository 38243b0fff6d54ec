package auth

import (
	"encoding/json"
	"net/http"
)

// Handler adapts the token service to the server's route registrar
// interface.
type Handler struct {
	tokens *TokenService
}

// NewHandler creates an auth handler over a token service.
func NewHandler(tokens *TokenService) *Handler {
	return &Handler{tokens: tokens}
}

// WhoamiResponse is the response for GET /api/v1/auth/whoami.
type WhoamiResponse struct {
	Subject string `json:"subject"`
	Role    string `json:"role"`
}

// RegisterRoutes registers auth routes on the server mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/auth/whoami", h.handleWhoami)
}

// Middleware returns the bearer-token middleware for the server chain.
func (h *Handler) Middleware() func(http.Handler) http.Handler {
	return Middleware(h.tokens)
}

// handleWhoami echoes the authenticated identity. The middleware has
// already validated the token by the time this runs.
func (h *Handler) handleWhoami(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFromContext(r.Context())
	if claims == nil {
		writeAuthError(w, http.StatusUnauthorized, "not authenticated")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(WhoamiResponse{
		Subject: claims.Subject,
		Role:    claims.Role,
	})
}

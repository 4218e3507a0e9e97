package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/attendsync/backend/internal/infrastructure/auth"
	"github.com/attendsync/backend/internal/interfaces/http/dto"
	"github.com/attendsync/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
)

// TokenRevoker revokes operator tokens
type TokenRevoker interface {
	Revoke(ctx context.Context, claims *auth.OperatorClaims) error
}

// OperatorResponse describes the caller's token
type OperatorResponse struct {
	Operator  string     `json:"operator"`
	TokenID   string     `json:"token_id"`
	IssuedAt  *time.Time `json:"issued_at,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// AuthHandler handles operator token requests
type AuthHandler struct {
	BaseHandler
	tokens TokenRevoker
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(tokens TokenRevoker) *AuthHandler {
	return &AuthHandler{tokens: tokens}
}

// Me returns the operator behind the bearer token
func (h *AuthHandler) Me(c *gin.Context) {
	claims := middleware.GetOperatorClaims(c)
	if claims == nil {
		h.Error(c, http.StatusUnauthorized, dto.ErrCodeUnauthorized, "Authentication required")
		return
	}

	resp := OperatorResponse{
		Operator: claims.Operator,
		TokenID:  claims.ID,
	}
	if claims.IssuedAt != nil {
		t := claims.IssuedAt.Time
		resp.IssuedAt = &t
	}
	if claims.ExpiresAt != nil {
		t := claims.ExpiresAt.Time
		resp.ExpiresAt = &t
	}
	h.Success(c, resp)
}

// Revoke invalidates the bearer token for the rest of its lifetime
func (h *AuthHandler) Revoke(c *gin.Context) {
	claims := middleware.GetOperatorClaims(c)
	if claims == nil {
		h.Error(c, http.StatusUnauthorized, dto.ErrCodeUnauthorized, "Authentication required")
		return
	}

	if err := h.tokens.Revoke(c.Request.Context(), claims); err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, gin.H{"revoked": true, "token_id": claims.ID})
}

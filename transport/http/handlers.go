package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/layer-3/walletauth/core"
	"github.com/layer-3/walletauth/service"
)

// AuthHandlers contains HTTP handlers for auth endpoints
type AuthHandlers struct {
	challenger  *service.Challenger
	authService *service.AuthService
}

// NewAuthHandlers creates new auth handlers
func NewAuthHandlers(challenger *service.Challenger, authService *service.AuthService) *AuthHandlers {
	return &AuthHandlers{
		challenger:  challenger,
		authService: authService,
	}
}

// Challenge issues a message for the wallet to sign
func (h *AuthHandlers) Challenge(c *gin.Context) {
	var req struct {
		Address string `json:"address" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	if !common.IsHexAddress(req.Address) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid address"})
		return
	}

	challenge, err := h.challenger.GenerateChallenge(c.Request.Context(), req.Address)
	if err != nil {
		c.JSON(storeStatus(err), gin.H{"error": "Failed to create challenge"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":    challenge.Message,
		"nonce":      challenge.Nonce,
		"expires_at": challenge.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

// Login handles the login request
func (h *AuthHandlers) Login(c *gin.Context) {
	var req struct {
		Address   string `json:"address" binding:"required"`
		Signature string `json:"signature" binding:"required"`
		Message   string `json:"message" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	accessToken, refreshToken, err := h.authService.Login(c.Request.Context(), req.Address, req.Signature, req.Message)
	if err != nil {
		// Expired, unknown and forged challenges are indistinguishable to the client
		if errors.Is(err, core.ErrInvalidSignature) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid signature"})
			return
		}

		c.JSON(storeStatus(err), gin.H{"error": "Authentication failed"})
		return
	}

	h.tokens(c, accessToken, refreshToken)
}

// Refresh handles token refresh
func (h *AuthHandlers) Refresh(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	accessToken, refreshToken, err := h.authService.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		switch {
		case errors.Is(err, core.ErrInvalidToken):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid refresh token"})
		case errors.Is(err, core.ErrTokenExpired):
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Refresh token expired"})
		case errors.Is(err, core.ErrTokenInvalidated):
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Refresh token has been invalidated"})
		default:
			c.JSON(storeStatus(err), gin.H{"error": "Failed to refresh token"})
		}
		return
	}

	h.tokens(c, accessToken, refreshToken)
}

// Logout handles session logout
func (h *AuthHandlers) Logout(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	err := h.authService.Logout(c.Request.Context(), req.RefreshToken)
	switch {
	case err == nil, errors.Is(err, core.ErrTokenExpired):
		c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
	case errors.Is(err, core.ErrInvalidToken):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid refresh token"})
	default:
		c.JSON(storeStatus(err), gin.H{"error": "Failed to logout"})
	}
}

// Me returns information about the authenticated user
func (h *AuthHandlers) Me(c *gin.Context) {
	address, exists := c.Get(userAddressKey)
	if !exists {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "User not found in context"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"address": address,
	})
}

// Authorize confirms the bearer token; the middleware already validated it
func (h *AuthHandlers) Authorize(c *gin.Context) {
	address, exists := c.Get(userAddressKey)
	if !exists {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "User not found in context"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"authorized": true,
		"address":    address,
	})
}

// Health reports liveness and the number of outstanding challenges
func (h *AuthHandlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":            "ok",
		"active_challenges": h.challenger.ActiveChallengeCount(c.Request.Context()),
	})
}

func (h *AuthHandlers) tokens(c *gin.Context, accessToken, refreshToken string) {
	c.JSON(http.StatusOK, gin.H{
		"access_token":  accessToken,
		"refresh_token": refreshToken,
		"token_type":    "Bearer",
		"expires_in":    int(h.authService.AccessTTL().Seconds()),
	})
}

func storeStatus(err error) int {
	if errors.Is(err, core.ErrStoreUnavailable) {
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

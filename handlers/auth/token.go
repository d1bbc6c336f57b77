package auth

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/nanogpt-proxy/api/services"
	"github.com/nanogpt-proxy/api/utils/auth"
	"github.com/nanogpt-proxy/api/utils/response"
)

// RefreshRequest represents a token refresh request
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

// RefreshResponse represents a token refresh response
type RefreshResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int    `json:"expires_in"`
}

// RefreshToken handles token refresh
func (h *AuthHandler) RefreshToken(c *fiber.Ctx) error {
	var req RefreshRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	if req.RefreshToken == "" {
		return response.BadRequest(c, "Refresh token is required")
	}

	pair, err := h.authService.Refresh(c.Context(), req.RefreshToken)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrWrongTokenType):
			// An access token presented to the refresh endpoint is a
			// caller bug, not an auth failure.
			return response.BadRequest(c, "Invalid token type")
		case errors.Is(err, auth.ErrExpiredToken):
			return response.Unauthorized(c, "Token expired")
		case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrInvalidClaims):
			return response.Unauthorized(c, "Invalid refresh token")
		case errors.Is(err, services.ErrAccountDisabled):
			return response.Unauthorized(c, "Account is disabled")
		default:
			return response.InternalServerError(c, "Failed to refresh tokens")
		}
	}

	return response.Success(c, RefreshResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresIn:    int(h.accessTTL.Seconds()),
	})
}

// Logout revokes the presented token's session. It succeeds no matter what
// was presented: a missing or malformed token simply clears nothing.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	authHeader := c.Get("Authorization")
	if token, ok := strings.CutPrefix(authHeader, "Bearer "); ok && token != "" {
		h.authService.Logout(c.Context(), token)
	}

	return response.Success(c, fiber.Map{
		"message": "Successfully logged out",
	})
}

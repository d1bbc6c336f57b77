package auth

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/nanogpt-proxy/api/services"
	"github.com/nanogpt-proxy/api/utils/response"
)

// LoginRequest represents a user login request
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse represents a successful login response
type LoginResponse struct {
	User         UserResponse `json:"user"`
	AccessToken  string       `json:"accessToken"`
	RefreshToken string       `json:"refreshToken"`
	ExpiresIn    int          `json:"expires_in"` // in seconds
}

// Login handles user login
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	ip := c.IP()

	user, pair, err := h.authService.Login(c.Context(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidCredentials):
			if h.bruteForce != nil {
				h.bruteForce.RecordFailedAttempt(c, ip)
			}
			return response.Unauthorized(c, "Invalid email or password")
		case errors.Is(err, services.ErrAccountDisabled):
			return response.Unauthorized(c, "Account is disabled")
		default:
			return response.InternalServerError(c, "Login failed")
		}
	}

	if h.bruteForce != nil {
		h.bruteForce.RecordSuccessfulAttempt(c, ip)
	}

	return response.Success(c, LoginResponse{
		User:         toUserResponse(user),
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresIn:    int(h.accessTTL.Seconds()),
	})
}

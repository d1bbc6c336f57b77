package auth

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/nanogpt-proxy/api/services"
	"github.com/nanogpt-proxy/api/utils/response"
)

// RegisterRequest represents a user registration request
type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

// RegisterResponse represents a successful registration response. Tokens are
// absent when the account awaits review.
type RegisterResponse struct {
	User          UserResponse `json:"user"`
	PendingReview bool         `json:"pending_review"`
	AccessToken   string       `json:"accessToken,omitempty"`
	RefreshToken  string       `json:"refreshToken,omitempty"`
}

// Register handles user registration
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	result, err := h.authService.Register(c.Context(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrRegistrationDisabled):
			return response.Forbidden(c, "Registration is disabled")
		case errors.Is(err, services.ErrEmailTaken):
			return response.Conflict(c, "Email is already registered")
		case errors.Is(err, services.ErrUserInconsistent):
			return response.InternalServerError(c, "Failed to load created user")
		default:
			return response.InternalServerError(c, "Registration failed")
		}
	}

	res := RegisterResponse{
		User:          toUserResponse(result.User),
		PendingReview: result.PendingReview,
	}
	if result.Tokens != nil {
		res.AccessToken = result.Tokens.AccessToken
		res.RefreshToken = result.Tokens.RefreshToken
	}

	return response.Created(c, res)
}

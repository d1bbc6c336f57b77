package auth

import (
	"time"

	"github.com/nanogpt-proxy/api/model"
	"github.com/nanogpt-proxy/api/services"
	"github.com/nanogpt-proxy/api/utils/middleware"
	"github.com/nanogpt-proxy/api/utils/validation"
)

// AuthHandler handles authentication endpoints
type AuthHandler struct {
	authService *services.AuthService
	bruteForce  *middleware.BruteForceProtection
	validator   *validation.Validator
	accessTTL   time.Duration
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(authService *services.AuthService, bruteForce *middleware.BruteForceProtection, accessTTL time.Duration) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		bruteForce:  bruteForce,
		validator:   validation.NewValidator(),
		accessTTL:   accessTTL,
	}
}

// UserResponse is the public view of a user record
type UserResponse struct {
	ID        uint      `json:"id"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	Enabled   bool      `json:"enabled"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toUserResponse(user *model.User) UserResponse {
	return UserResponse{
		ID:        user.ID,
		Email:     user.Email,
		Role:      user.Role,
		Enabled:   user.Enabled,
		CreatedAt: user.CreatedAt,
		UpdatedAt: user.UpdatedAt,
	}
}

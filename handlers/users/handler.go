package users

import (
	"time"

	"github.com/nanogpt-proxy/api/model"
	"github.com/nanogpt-proxy/api/services"
	"github.com/nanogpt-proxy/api/utils/validation"
)

// UsersHandler handles user administration endpoints
type UsersHandler struct {
	users     *services.UserService
	validator *validation.Validator
}

// NewUsersHandler creates a new users handler
func NewUsersHandler(users *services.UserService) *UsersHandler {
	return &UsersHandler{
		users:     users,
		validator: validation.NewValidator(),
	}
}

// UserResponse is the public view of a user record. The password hash and
// the encrypted upstream key never leave the server.
type UserResponse struct {
	ID        uint      `json:"id"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	Enabled   bool      `json:"enabled"`
	HasAPIKey bool      `json:"has_api_key"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toUserResponse(user *model.User) UserResponse {
	return UserResponse{
		ID:        user.ID,
		Email:     user.Email,
		Role:      user.Role,
		Enabled:   user.Enabled,
		HasAPIKey: user.APIKey != "",
		CreatedAt: user.CreatedAt,
		UpdatedAt: user.UpdatedAt,
	}
}

package users

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/nanogpt-proxy/api/model"
	"github.com/nanogpt-proxy/api/services"
	"github.com/nanogpt-proxy/api/utils/middleware"
	"github.com/nanogpt-proxy/api/utils/response"
)

// CreateUserRequest represents an admin user creation request
type CreateUserRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	Role     string `json:"role" validate:"omitempty,oneof=ADMIN USER"`
	Enabled  *bool  `json:"enabled"`
	APIKey   string `json:"apiKey"`
}

// UpdateUserRequest represents a user update request. All fields optional.
type UpdateUserRequest struct {
	Password *string `json:"password" validate:"omitempty,min=8"`
	Role     *string `json:"role" validate:"omitempty,oneof=ADMIN USER"`
	Enabled  *bool   `json:"enabled"`
}

// SetAPIKeyRequest represents an upstream key upsert for the caller
type SetAPIKeyRequest struct {
	APIKey string `json:"apiKey"`
}

// DeleteUserRequest identifies the account to remove
type DeleteUserRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// Create handles admin user creation
func (h *UsersHandler) Create(c *fiber.Ctx) error {
	var req CreateUserRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	role := req.Role
	if role == "" {
		role = model.RoleUser
	}
	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}

	user, err := h.users.Create(c.Context(), req.Email, req.Password, role, enabled)
	if err != nil {
		if errors.Is(err, services.ErrEmailTaken) {
			return response.Conflict(c, "Email is already registered")
		}
		return response.InternalServerError(c, "Failed to create user")
	}

	if req.APIKey != "" {
		if err := h.users.SetAPIKey(c.Context(), user.ID, req.APIKey); err != nil {
			return response.InternalServerError(c, "Failed to store API key")
		}
		user, err = h.users.GetByID(c.Context(), user.ID)
		if err != nil {
			return response.InternalServerError(c, "Failed to load created user")
		}
	}

	return response.Created(c, toUserResponse(user))
}

// List returns a page of users
func (h *UsersHandler) List(c *fiber.Ctx) error {
	page, _ := strconv.Atoi(c.Query("page", "1"))
	limit, _ := strconv.Atoi(c.Query("limit", "20"))

	users, total, err := h.users.List(c.Context(), page, limit)
	if err != nil {
		return response.InternalServerError(c, "Failed to list users")
	}

	items := make([]UserResponse, 0, len(users))
	for i := range users {
		items = append(items, toUserResponse(&users[i]))
	}

	return response.Paginated(c, items, response.CalculatePagination(page, limit, total))
}

// Get returns a single user by ID
func (h *UsersHandler) Get(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "Invalid user ID")
	}

	user, err := h.users.GetByID(c.Context(), uint(id))
	if err != nil {
		if errors.Is(err, services.ErrUserNotFound) {
			return response.NotFound(c, "User not found")
		}
		return response.InternalServerError(c, "Failed to load user")
	}

	return response.Success(c, toUserResponse(user))
}

// Update modifies a user. Admins may update anyone; a regular user may only
// change their own password.
func (h *UsersHandler) Update(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "Invalid user ID")
	}

	var req UpdateUserRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	caller, ok := middleware.GetUser(c)
	if !ok {
		return response.Unauthorized(c, "Not authenticated")
	}

	if !caller.IsAdmin() {
		if caller.ID != uint(id) || req.Role != nil || req.Enabled != nil {
			return response.Forbidden(c, "Insufficient permissions")
		}
	}

	if req.Password != nil {
		if err := h.users.SetPassword(c.Context(), uint(id), *req.Password); err != nil {
			if errors.Is(err, services.ErrUserNotFound) {
				return response.NotFound(c, "User not found")
			}
			return response.InternalServerError(c, "Failed to update password")
		}
	}

	updates := map[string]interface{}{}
	if req.Role != nil {
		updates["role"] = *req.Role
	}
	if req.Enabled != nil {
		updates["enabled"] = *req.Enabled
	}

	user, err := h.users.GetByID(c.Context(), uint(id))
	if len(updates) > 0 {
		user, err = h.users.Update(c.Context(), uint(id), updates)
	}
	if err != nil {
		if errors.Is(err, services.ErrUserNotFound) {
			return response.NotFound(c, "User not found")
		}
		return response.InternalServerError(c, "Failed to update user")
	}

	return response.Success(c, toUserResponse(user))
}

// SetAPIKey stores (or clears) the caller's upstream API key
func (h *UsersHandler) SetAPIKey(c *fiber.Ctx) error {
	var req SetAPIKeyRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	caller, ok := middleware.GetUser(c)
	if !ok {
		return response.Unauthorized(c, "Not authenticated")
	}

	if err := h.users.SetAPIKey(c.Context(), caller.ID, req.APIKey); err != nil {
		return response.InternalServerError(c, "Failed to store API key")
	}

	return response.SuccessWithMessage(c, "API key updated", fiber.Map{
		"has_api_key": req.APIKey != "",
	})
}

// Delete removes an account by email
func (h *UsersHandler) Delete(c *fiber.Ctx) error {
	var req DeleteUserRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	user, err := h.users.GetByEmail(c.Context(), req.Email)
	if err != nil {
		if errors.Is(err, services.ErrUserNotFound) {
			return response.NotFound(c, "User not found")
		}
		return response.InternalServerError(c, "Failed to load user")
	}

	if err := h.users.Delete(c.Context(), user.ID); err != nil {
		return response.InternalServerError(c, "Failed to delete user")
	}

	return response.NoContent(c)
}

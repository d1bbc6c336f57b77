package configuration

import (
	"github.com/gofiber/fiber/v2"
	"github.com/nanogpt-proxy/api/services"
	"github.com/nanogpt-proxy/api/utils/response"
)

// ConfigurationHandler exposes the runtime feature flags
type ConfigurationHandler struct {
	configuration *services.ConfigurationService
}

// NewConfigurationHandler creates a new configuration handler
func NewConfigurationHandler(configuration *services.ConfigurationService) *ConfigurationHandler {
	return &ConfigurationHandler{
		configuration: configuration,
	}
}

// Get returns the current feature flags. Public: frontends need the flags
// before anyone is logged in.
func (h *ConfigurationHandler) Get(c *fiber.Ctx) error {
	flags, err := h.configuration.GetFlags(c.Context())
	if err != nil {
		return response.InternalServerError(c, "Failed to load configuration")
	}

	return response.Success(c, flags)
}

// UpdateRequest carries the full flag set. Absent fields keep their current
// value.
type UpdateRequest struct {
	EnableForgetPassword            *bool `json:"enableForgetPassword"`
	EnableRegistration              *bool `json:"enableRegistration"`
	EnableReviewPendingRegistration *bool `json:"enableReviewPendingRegistration"`
}

// Update overwrites feature flags (admin only)
func (h *ConfigurationHandler) Update(c *fiber.Ctx) error {
	var req UpdateRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	flags, err := h.configuration.GetFlags(c.Context())
	if err != nil {
		return response.InternalServerError(c, "Failed to load configuration")
	}

	if req.EnableForgetPassword != nil {
		flags.EnableForgetPassword = *req.EnableForgetPassword
	}
	if req.EnableRegistration != nil {
		flags.EnableRegistration = *req.EnableRegistration
	}
	if req.EnableReviewPendingRegistration != nil {
		flags.EnableReviewPendingRegistration = *req.EnableReviewPendingRegistration
	}

	if err := h.configuration.SetFlags(c.Context(), flags); err != nil {
		return response.InternalServerError(c, "Failed to store configuration")
	}

	return response.Success(c, flags)
}

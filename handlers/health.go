package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/nanogpt-proxy/api/database"
)

// HandleCheckHealth reports liveness. The database ping is the one hard
// dependency checked here; Redis failures degrade individual features
// instead of taking the gateway down.
func HandleCheckHealth(c *fiber.Ctx, store database.Storage) error {
	if err := store.HealthCheck(); err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status":   "unhealthy",
			"database": err.Error(),
		})
	}

	return c.JSON(fiber.Map{"status": "ok"})
}

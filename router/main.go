package router

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/nanogpt-proxy/api/config"
	"github.com/nanogpt-proxy/api/database"
	"github.com/nanogpt-proxy/api/handlers"
	auth_handlers "github.com/nanogpt-proxy/api/handlers/auth"
	configuration_handlers "github.com/nanogpt-proxy/api/handlers/configuration"
	proxy_handlers "github.com/nanogpt-proxy/api/handlers/proxy"
	users_handlers "github.com/nanogpt-proxy/api/handlers/users"
	"github.com/nanogpt-proxy/api/services"
	"github.com/nanogpt-proxy/api/services/nanogpt"
	"github.com/nanogpt-proxy/api/utils/auth"
	"github.com/nanogpt-proxy/api/utils/cache"
	"github.com/nanogpt-proxy/api/utils/middleware"
	"gorm.io/gorm"
)

// SetupRoutes wires services, middleware and handlers onto the fiber app.
func SetupRoutes(
	app *fiber.App,
	store database.Storage,
	getEnv *config.EnviornmentVariable,
	db *gorm.DB,
	redisCache *cache.RedisCache,
	userService *services.UserService,
	upstream *nanogpt.Client,
) {
	jwtIssuer := getEnv.JWT_ISSUER
	if jwtIssuer == "" {
		jwtIssuer = "nanogpt-proxy-api"
	}

	tokenService := auth.NewTokenService(auth.TokenConfig{
		AccessSecret:  getEnv.JWT_SECRET,
		RefreshSecret: getEnv.JWT_REFRESH_SECRET,
		AccessExpiry:  getEnv.AccessTokenExpiry,
		RefreshExpiry: getEnv.RefreshTokenExpiry,
		BlacklistTTL:  getEnv.BlacklistTTL,
		Issuer:        jwtIssuer,
	}, redisCache)

	configurationService := services.NewConfigurationService(redisCache)
	authService := services.NewAuthService(userService, tokenService, configurationService, getEnv.ADMIN_EMAIL, getEnv.ADMIN_PASSWORD)

	bruteForce := middleware.NewBruteForceProtection(redisCache)
	authMiddleware := middleware.NewAuthMiddleware(tokenService, db)

	authHandler := auth_handlers.NewAuthHandler(authService, bruteForce, getEnv.AccessTokenExpiry)
	usersHandler := users_handlers.NewUsersHandler(userService)
	configurationHandler := configuration_handlers.NewConfigurationHandler(configurationService)
	proxyHandler := proxy_handlers.NewProxyHandler(upstream, userService)

	allowedOrigins := getEnv.ALLOWED_ORIGINS
	if allowedOrigins == "" {
		allowedOrigins = "http://localhost:3000,http://localhost:3001"
	}

	middleware.SetupSecurity(app, middleware.SecurityConfig{
		AllowedOrigins:    allowedOrigins,
		RateLimitRequests: 300,
		RateLimitWindow:   time.Minute,
	})

	app.Get("/health", func(c *fiber.Ctx) error {
		return handlers.HandleCheckHealth(c, store)
	})

	// Auth
	authGroup := app.Group("/v1/auth")
	authGroup.Post("/login", bruteForce.CheckLock(), authHandler.Login)
	authGroup.Post("/register", authHandler.Register)
	authGroup.Post("/refresh", authHandler.RefreshToken)
	authGroup.Post("/logout", authHandler.Logout)
	authGroup.Get("/me", authMiddleware.Required(), authHandler.Me)

	// Feature configuration
	app.Get("/v1/configuration", configurationHandler.Get)
	app.Put("/v1/configuration", append(authMiddleware.AdminOnly(), configurationHandler.Update)...)

	// User administration
	usersGroup := app.Group("/v1/users")
	usersGroup.Put("/apikey", authMiddleware.Required(), usersHandler.SetAPIKey)
	usersGroup.Post("/", append(authMiddleware.AdminOnly(), usersHandler.Create)...)
	usersGroup.Get("/", append(authMiddleware.AdminOnly(), usersHandler.List)...)
	usersGroup.Get("/:id", append(authMiddleware.AdminOnly(), usersHandler.Get)...)
	usersGroup.Put("/:id", authMiddleware.Required(), usersHandler.Update)
	usersGroup.Delete("/", append(authMiddleware.AdminOnly(), usersHandler.Delete)...)

	// Upstream proxy. The catch-all goes last so the routes above win.
	app.Get("/v1/models", proxyHandler.Models)
	app.All("/v1/*", proxyHandler.Forward)
}

package app

import (
	"fmt"
	"os"

	"github.com/nanogpt-proxy/api/api"
	"github.com/nanogpt-proxy/api/config"
	"github.com/nanogpt-proxy/api/database"
	"github.com/nanogpt-proxy/api/router"
	"github.com/nanogpt-proxy/api/services"
	"github.com/nanogpt-proxy/api/services/cron"
	"github.com/nanogpt-proxy/api/services/nanogpt"
	"github.com/nanogpt-proxy/api/utils/cache"
	"github.com/nanogpt-proxy/api/utils/crypto"
	"gorm.io/gorm"
)

func SetupAndRunServer() error {

	// Load ENV
	if err := config.LoadENV(); err != nil {
		return err
	}

	getEnv, err := config.Get()
	if err != nil {
		return err
	}

	// Initialize GORM database connection
	store, err := database.StartGORM()
	if err != nil {
		print("Check whether the Postgres is running or not\n")
		return err
	}

	if err := store.Init(); err != nil {
		print("Failed to initialize database tables\n")
		return err
	}

	db, ok := store.GetDB().(*gorm.DB)
	if !ok {
		return fmt.Errorf("failed to get GORM DB instance")
	}

	// Redis backs refresh slots, the blacklist, feature flags and
	// brute-force counters; the gateway cannot run without it.
	redisURL := getEnv.REDIS_URL
	if redisURL == "" {
		redisURL = "redis://localhost:6379/0"
	}
	redisCache, err := cache.NewRedisCache(redisURL)
	if err != nil {
		print("Check whether Redis is running or not\n")
		return err
	}

	// Credential vault for upstream API keys
	vault, err := crypto.NewVault(getEnv.DB_ENCRYPTION_KEY)
	if err != nil {
		return err
	}

	userService := services.NewUserService(db, vault)

	upstream := nanogpt.NewClient(nanogpt.Config{
		BaseURL: getEnv.NANOGPT_BASE_URL,
		Timeout: getEnv.UpstreamTimeout,
	})

	// Initialize Cron Manager (only if enabled via environment variable)
	var cronManager *cron.CronManager
	if os.Getenv("CRON_ENABLED") != "false" { // Default to enabled
		cronManager = cron.NewCronManager(userService, upstream)
		if err := cronManager.Start(); err != nil {
			print("Warning: Failed to start cron jobs\n")
			print("Error: ", err.Error(), "\n")
			// Don't fail the app, just log the warning
		}
	}

	// Defer Closing DB, Redis and stopping cron jobs
	defer func() {
		if cronManager != nil {
			cronManager.Stop()
		}
		redisCache.Close()
		store.Close()
	}()

	// Init API
	var server *api.APIServer = api.NewAPIServer(fmt.Sprintf(":%d", getEnv.PORT))
	app := server.GetEngine()

	// Setup Routes (attaches security middleware first)
	router.SetupRoutes(app, store, getEnv, db, redisCache, userService, upstream)

	// Get the PORT & Start the Server
	return server.Run()

}

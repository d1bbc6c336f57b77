package config

import (
	"errors"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Defaults applied when the corresponding environment variable is unset.
const (
	DefaultAccessTokenExpiry  = 1 * time.Hour
	DefaultRefreshTokenExpiry = 7 * 24 * time.Hour
	DefaultBlacklistTTL       = 86400 * time.Second
	DefaultUpstreamBaseURL    = "https://nano-gpt.com/api/v1"
	DefaultUpstreamTimeout    = 10 * time.Second
)

// This function will Load the ENVIORNMENT VARIABLES from .env if GO_ENV variable is not set
func LoadENV() error {
	goEnv := os.Getenv("GO_ENV")

	if goEnv == "" || goEnv == "development" {
		err := godotenv.Load()
		if err != nil {
			return err
		}
	}

	return nil
}

type EnviornmentVariable struct {
	// All variables
	GO_ENV       string
	DB_USER_NAME string
	DB_PASSWORD  string
	DB_NAME      string
	DB_HOST      string
	DB_PORT      string
	DB_SSL_MODE  string
	PORT         int
	// JWT Configuration
	JWT_SECRET         string
	JWT_REFRESH_SECRET string
	JWT_ISSUER         string
	AccessTokenExpiry  time.Duration
	RefreshTokenExpiry time.Duration
	BlacklistTTL       time.Duration
	// Redis Configuration
	REDIS_URL string
	// Credential vault
	DB_ENCRYPTION_KEY string
	// Bootstrap admin (optional)
	ADMIN_EMAIL    string
	ADMIN_PASSWORD string
	// NanoGPT upstream
	NANOGPT_BASE_URL string
	UpstreamTimeout  time.Duration
	// HTTP
	ALLOWED_ORIGINS string
}

func Get() (*EnviornmentVariable, error) {

	port, err := strconv.Atoi(os.Getenv("PORT"))
	if err != nil {
		port = 8080
	}

	// Database defaults
	dbHost := os.Getenv("DB_HOST")
	if dbHost == "" {
		dbHost = "localhost"
	}

	dbPort := os.Getenv("DB_PORT")
	if dbPort == "" {
		dbPort = "5432"
	}

	envVariables := &EnviornmentVariable{
		GO_ENV:       os.Getenv("GO_ENV"),
		DB_USER_NAME: os.Getenv("DB_USER_NAME"),
		DB_PASSWORD:  os.Getenv("DB_PASSWORD"),
		DB_NAME:      os.Getenv("DB_NAME"),
		DB_HOST:      dbHost,
		DB_PORT:      dbPort,
		DB_SSL_MODE:  os.Getenv("DB_SSL_MODE"),
		PORT:         port,
		// JWT
		JWT_SECRET:         os.Getenv("JWT_SECRET"),
		JWT_REFRESH_SECRET: os.Getenv("JWT_REFRESH_SECRET"),
		JWT_ISSUER:         os.Getenv("JWT_ISSUER"),
		AccessTokenExpiry:  getDuration("JWT_EXPIRY", DefaultAccessTokenExpiry),
		RefreshTokenExpiry: getDuration("JWT_REFRESH_EXPIRY", DefaultRefreshTokenExpiry),
		BlacklistTTL:       getSeconds("JWT_BLACKLIST_TTL_SECONDS", DefaultBlacklistTTL),
		// Redis
		REDIS_URL: os.Getenv("REDIS_URL"),
		// Vault
		DB_ENCRYPTION_KEY: os.Getenv("DB_ENCRYPTION_KEY"),
		// Bootstrap admin
		ADMIN_EMAIL:    os.Getenv("ADMIN_EMAIL"),
		ADMIN_PASSWORD: os.Getenv("ADMIN_PASSWORD"),
		// Upstream
		NANOGPT_BASE_URL: getString("NANOGPT_BASE_URL", DefaultUpstreamBaseURL),
		UpstreamTimeout:  getDuration("NANOGPT_TIMEOUT", DefaultUpstreamTimeout),
		// HTTP
		ALLOWED_ORIGINS: os.Getenv("ALLOWED_ORIGINS"),
	}

	if err := envVariables.Validate(); err != nil {
		return nil, err
	}

	return envVariables, nil
}

// Validate checks that the secrets the core cannot run without are present.
func (e *EnviornmentVariable) Validate() error {
	if e.JWT_SECRET == "" {
		return errors.New("JWT_SECRET environment variable is not set")
	}
	if e.JWT_REFRESH_SECRET == "" {
		return errors.New("JWT_REFRESH_SECRET environment variable is not set")
	}
	if e.DB_ENCRYPTION_KEY == "" {
		return errors.New("DB_ENCRYPTION_KEY environment variable is not set")
	}
	return nil
}

func getString(key string, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func getDuration(key string, fallback time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}

	v, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}
	return v
}

func getSeconds(key string, fallback time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}

	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return time.Duration(v) * time.Second
}

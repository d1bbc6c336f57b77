package services

import (
	"context"
	"fmt"
	"strings"
)

// featureFlagsKey is the Redis hash holding runtime feature toggles.
const featureFlagsKey = "config:nanogpt:features"

// Hash field names. Values are stored as strings and parsed leniently.
const (
	FlagForgetPassword            = "enableForgetPassword"
	FlagRegistration              = "enableRegistration"
	FlagReviewPendingRegistration = "enableReviewPendingRegistration"
)

// FeatureFlags are the runtime toggles that gate auth behaviour.
type FeatureFlags struct {
	EnableForgetPassword            bool `json:"enableForgetPassword"`
	EnableRegistration              bool `json:"enableRegistration"`
	EnableReviewPendingRegistration bool `json:"enableReviewPendingRegistration"`
}

// DefaultFeatureFlags returns the values used when a field is absent from
// the hash: registration is open but new accounts wait for review.
func DefaultFeatureFlags() FeatureFlags {
	return FeatureFlags{
		EnableForgetPassword:            false,
		EnableRegistration:              true,
		EnableReviewPendingRegistration: true,
	}
}

// FlagStore is the slice of the cache the configuration service needs.
type FlagStore interface {
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HSetAll(ctx context.Context, key string, fields map[string]string) error
}

// ConfigurationService reads and writes the feature flag hash
type ConfigurationService struct {
	store FlagStore
}

// NewConfigurationService creates a new configuration service
func NewConfigurationService(store FlagStore) *ConfigurationService {
	return &ConfigurationService{
		store: store,
	}
}

// GetFlags loads the flags, falling back to defaults for absent fields.
func (s *ConfigurationService) GetFlags(ctx context.Context) (FeatureFlags, error) {
	flags := DefaultFeatureFlags()

	fields, err := s.store.HGetAll(ctx, featureFlagsKey)
	if err != nil {
		return flags, fmt.Errorf("failed to load feature flags: %w", err)
	}

	if val, ok := fields[FlagForgetPassword]; ok {
		flags.EnableForgetPassword = parseBool(val)
	}
	if val, ok := fields[FlagRegistration]; ok {
		flags.EnableRegistration = parseBool(val)
	}
	if val, ok := fields[FlagReviewPendingRegistration]; ok {
		flags.EnableReviewPendingRegistration = parseBool(val)
	}

	return flags, nil
}

// SetFlags writes the full flag set to the hash
func (s *ConfigurationService) SetFlags(ctx context.Context, flags FeatureFlags) error {
	fields := map[string]string{
		FlagForgetPassword:            formatBool(flags.EnableForgetPassword),
		FlagRegistration:              formatBool(flags.EnableRegistration),
		FlagReviewPendingRegistration: formatBool(flags.EnableReviewPendingRegistration),
	}

	if err := s.store.HSetAll(ctx, featureFlagsKey, fields); err != nil {
		return fmt.Errorf("failed to store feature flags: %w", err)
	}
	return nil
}

// parseBool accepts the spellings operators actually write into the hash.
// Anything unrecognised is false.
func parseBool(val string) bool {
	switch strings.ToLower(strings.TrimSpace(val)) {
	case "true", "1", "yes", "y", "on", "enabled":
		return true
	default:
		return false
	}
}

func formatBool(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2/log"
	"github.com/nanogpt-proxy/api/model"
	"github.com/nanogpt-proxy/api/utils/auth"
)

var (
	ErrInvalidCredentials   = errors.New("invalid email or password")
	ErrAccountDisabled      = errors.New("account is disabled")
	ErrRegistrationDisabled = errors.New("registration is disabled")
	ErrUserInconsistent     = errors.New("user record missing after creation")
)

// UserStore is the persistence surface the auth service needs.
// UserService satisfies it.
type UserStore interface {
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	Create(ctx context.Context, email, password, role string, enabled bool) (*model.User, error)
	CountByRole(ctx context.Context, role string) (int64, error)
}

// FlagSource provides the runtime feature flags.
// ConfigurationService satisfies it.
type FlagSource interface {
	GetFlags(ctx context.Context) (FeatureFlags, error)
}

// AuthService orchestrates login, registration, token refresh and logout on
// top of the user store and the token service.
type AuthService struct {
	users  UserStore
	tokens *auth.TokenService
	flags  FlagSource

	adminEmail    string
	adminPassword string
}

// NewAuthService creates a new auth service
func NewAuthService(users UserStore, tokens *auth.TokenService, flags FlagSource, adminEmail, adminPassword string) *AuthService {
	return &AuthService{
		users:         users,
		tokens:        tokens,
		flags:         flags,
		adminEmail:    adminEmail,
		adminPassword: adminPassword,
	}
}

// RegisterResult carries the outcome of a registration. Tokens is nil when
// the account was created in pending-review state.
type RegisterResult struct {
	User          *model.User
	Tokens        *auth.TokenPair
	PendingReview bool
}

// Login verifies credentials and issues a token pair. Before the lookup it
// makes sure a bootstrap admin exists, so a fresh deployment can always be
// entered with the configured admin credentials.
func (s *AuthService) Login(ctx context.Context, email, password string) (*model.User, auth.TokenPair, error) {
	s.ensureBootstrapAdmin(ctx)

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, auth.TokenPair{}, ErrInvalidCredentials
		}
		return nil, auth.TokenPair{}, err
	}

	// Disabled accounts are rejected before the password is checked, so
	// the caller learns the account state rather than a credential error.
	if !user.Enabled {
		return nil, auth.TokenPair{}, ErrAccountDisabled
	}

	if err := auth.VerifyPassword(user.PasswordHash, password); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			return nil, auth.TokenPair{}, ErrInvalidCredentials
		}
		return nil, auth.TokenPair{}, err
	}

	pair, err := s.tokens.RotateTokens(ctx, user.Email, user.Role)
	if err != nil {
		return nil, auth.TokenPair{}, fmt.Errorf("failed to issue tokens: %w", err)
	}

	return user, pair, nil
}

// Refresh validates a refresh token against the stored slot and rotates the
// pair. auth.ErrWrongTokenType surfaces unchanged so handlers can report a
// bad request rather than an auth failure.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (auth.TokenPair, error) {
	claims, err := s.tokens.VerifyRefreshToken(ctx, refreshToken)
	if err != nil {
		return auth.TokenPair{}, err
	}

	user, err := s.users.GetByEmail(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return auth.TokenPair{}, auth.ErrInvalidToken
		}
		return auth.TokenPair{}, err
	}

	if !user.Enabled {
		return auth.TokenPair{}, ErrAccountDisabled
	}

	pair, err := s.tokens.RotateTokens(ctx, user.Email, user.Role)
	if err != nil {
		return auth.TokenPair{}, fmt.Errorf("failed to issue tokens: %w", err)
	}

	return pair, nil
}

// Register creates a user account. When review of new registrations is
// enabled the account starts disabled and no tokens are issued.
func (s *AuthService) Register(ctx context.Context, email, password string) (*RegisterResult, error) {
	flags, err := s.flags.GetFlags(ctx)
	if err != nil {
		// Flags falling back to defaults is better than blocking signup
		// on a cache hiccup.
		log.Warnf("feature flags unavailable, using defaults: %v", err)
		flags = DefaultFeatureFlags()
	}

	if !flags.EnableRegistration {
		return nil, ErrRegistrationDisabled
	}

	pendingReview := flags.EnableReviewPendingRegistration

	if _, err := s.users.Create(ctx, email, password, model.RoleUser, !pendingReview); err != nil {
		return nil, err
	}

	// Re-read what was actually persisted. A miss here means the store is
	// inconsistent and has to surface as a server error.
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrUserInconsistent
		}
		return nil, err
	}

	result := &RegisterResult{
		User:          user,
		PendingReview: pendingReview,
	}

	if !pendingReview {
		pair, err := s.tokens.RotateTokens(ctx, user.Email, user.Role)
		if err != nil {
			return nil, fmt.Errorf("failed to issue tokens: %w", err)
		}
		result.Tokens = &pair
	}

	return result, nil
}

// Logout best-effort revokes the presented access token and the user's
// refresh slot. The token is decoded without verification so an expired or
// even tampered token still clears server-side state. Logout never fails.
func (s *AuthService) Logout(ctx context.Context, accessToken string) {
	claims, err := s.tokens.DecodeUnverified(accessToken)
	if err != nil {
		log.Debugf("logout: undecodable token ignored: %v", err)
		return
	}

	var exp int64
	if claims.ExpiresAt != nil {
		exp = claims.ExpiresAt.Unix()
	}

	if claims.ID != "" {
		if err := s.tokens.BlacklistAccessToken(ctx, claims.ID, exp); err != nil {
			log.Warnf("logout: failed to blacklist token %s: %v", claims.ID, err)
		}
	}

	if claims.Subject != "" {
		if err := s.tokens.RevokeRefreshForUser(ctx, claims.Subject); err != nil {
			log.Warnf("logout: failed to revoke refresh slot for %s: %v", claims.Subject, err)
		}
	}
}

// ensureBootstrapAdmin creates the configured admin account when no admin
// exists yet. Failures are logged, never fatal: login should not break
// because bootstrap could not run.
func (s *AuthService) ensureBootstrapAdmin(ctx context.Context) {
	count, err := s.users.CountByRole(ctx, model.RoleAdmin)
	if err != nil {
		log.Warnf("bootstrap admin check failed: %v", err)
		return
	}
	if count > 0 {
		return
	}

	if s.adminEmail == "" || s.adminPassword == "" {
		log.Warn("no admin account exists and ADMIN_EMAIL/ADMIN_PASSWORD are not set")
		return
	}

	if _, err := s.users.Create(ctx, s.adminEmail, s.adminPassword, model.RoleAdmin, true); err != nil {
		if !errors.Is(err, ErrEmailTaken) {
			log.Warnf("failed to create bootstrap admin: %v", err)
		}
		return
	}

	log.Infof("bootstrap admin account created for %s", s.adminEmail)
}

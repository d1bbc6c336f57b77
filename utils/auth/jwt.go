package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/nanogpt-proxy/api/utils/cache"
)

// Token types carried in the "type" claim.
const (
	TokenTypeAccess  = "ACCESS"
	TokenTypeRefresh = "REFRESH"
)

// Key layout shared with every other consumer of the token store. Do not
// change: operational tooling matches on these prefixes.
const (
	blacklistKeyPrefix = "jwt:nanogpt:blacklist:"
	refreshKeyPrefix   = "jwt:nanogpt:refresh:"
	blacklistSentinel  = "1"
)

var (
	ErrInvalidToken   = errors.New("invalid token")
	ErrExpiredToken   = errors.New("token has expired")
	ErrWrongTokenType = errors.New("wrong token type")
	ErrInvalidClaims  = errors.New("invalid token claims")
)

// Store is the slice of the shared key-value store the token service needs:
// atomic per-key get/set/delete with TTL. cache.RedisCache satisfies it.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// AccessClaims is the access-token payload: subject email, role list under
// the short "r" key, a unique jti and the ACCESS type marker.
type AccessClaims struct {
	Roles     []string `json:"r"`
	TokenType string   `json:"type"`
	jwt.RegisteredClaims
}

// RefreshClaims is the refresh-token payload. It deliberately carries no
// role: the subject is re-loaded on every refresh.
type RefreshClaims struct {
	TokenType string `json:"type"`
	jwt.RegisteredClaims
}

// TokenPair bundles the two tokens issued together on login, registration
// and refresh.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// TokenConfig holds token service configuration
type TokenConfig struct {
	AccessSecret  string
	RefreshSecret string
	AccessExpiry  time.Duration
	RefreshExpiry time.Duration
	BlacklistTTL  time.Duration
	Issuer        string
}

// TokenService issues and verifies the signed access/refresh token pair and
// keeps the refresh slots and revocation blacklist in the shared store.
type TokenService struct {
	config TokenConfig
	store  Store
}

// NewTokenService creates a new token service
func NewTokenService(config TokenConfig, store Store) *TokenService {
	return &TokenService{
		config: config,
		store:  store,
	}
}

// CreateAccessToken signs a stateless access token for the identity. Nothing
// is persisted; revocation happens via the jti blacklist.
func (s *TokenService) CreateAccessToken(email string, role string) (string, error) {
	now := time.Now()

	claims := AccessClaims{
		Roles:     []string{role},
		TokenType: TokenTypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Subject:   email,
			ExpiresAt: jwt.NewNumericDate(now.Add(s.config.AccessExpiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    s.config.Issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.config.AccessSecret))
}

// VerifyAccessToken validates signature, expiry and token type.
// Expiry is reported distinctly so callers can tell the client to refresh.
func (s *TokenService) VerifyAccessToken(tokenString string) (*AccessClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &AccessClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return []byte(s.config.AccessSecret), nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*AccessClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidClaims
	}

	if claims.TokenType != TokenTypeAccess {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

// CreateRefreshToken signs a refresh token with the separate refresh secret
// and persists the raw signed string under the user's refresh slot with the
// refresh TTL. Writing the slot supersedes any previous refresh token.
func (s *TokenService) CreateRefreshToken(ctx context.Context, email string) (string, error) {
	now := time.Now()

	claims := RefreshClaims{
		TokenType: TokenTypeRefresh,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   email,
			ExpiresAt: jwt.NewNumericDate(now.Add(s.config.RefreshExpiry)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.config.RefreshSecret))
	if err != nil {
		return "", err
	}

	if err := s.store.Set(ctx, refreshKeyFor(email), signed, s.config.RefreshExpiry); err != nil {
		return "", err
	}

	return signed, nil
}

// VerifyRefreshToken validates the signature, the REFRESH type and that the
// presented token is byte-identical to the stored slot for its subject. A
// cryptographically valid token that has been rotated out fails here.
func (s *TokenService) VerifyRefreshToken(ctx context.Context, tokenString string) (*RefreshClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &RefreshClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return []byte(s.config.RefreshSecret), nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*RefreshClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidClaims
	}

	if claims.TokenType != TokenTypeRefresh {
		return nil, ErrWrongTokenType
	}

	stored, err := s.store.Get(ctx, refreshKeyFor(claims.Subject))
	if err != nil {
		if errors.Is(err, cache.ErrNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}

	if stored != tokenString {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

// RotateTokens issues a fresh pair. The new refresh token overwrites the
// stored slot, invalidating any previously issued refresh token for the
// same user.
func (s *TokenService) RotateTokens(ctx context.Context, email string, role string) (TokenPair, error) {
	accessToken, err := s.CreateAccessToken(email, role)
	if err != nil {
		return TokenPair{}, err
	}

	refreshToken, err := s.CreateRefreshToken(ctx, email)
	if err != nil {
		return TokenPair{}, err
	}

	return TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	}, nil
}

// BlacklistAccessToken records a revoked jti. When the token expiry is known
// (unix seconds) the entry lives only for the token's remaining lifetime,
// capped at the configured default; otherwise the default TTL applies.
func (s *TokenService) BlacklistAccessToken(ctx context.Context, jti string, expUnixSeconds int64) error {
	ttl := s.config.BlacklistTTL

	if expUnixSeconds > 0 {
		remaining := time.Until(time.Unix(expUnixSeconds, 0))
		if remaining < 0 {
			remaining = 0
		}
		if remaining < ttl {
			ttl = remaining
		}
	}

	// A zero TTL would make the key permanent in Redis.
	if ttl <= 0 {
		ttl = time.Second
	}

	return s.store.Set(ctx, blacklistKeyFor(jti), blacklistSentinel, ttl)
}

// IsBlacklisted reports whether the jti has been revoked.
func (s *TokenService) IsBlacklisted(ctx context.Context, jti string) (bool, error) {
	val, err := s.store.Get(ctx, blacklistKeyFor(jti))
	if err != nil {
		if errors.Is(err, cache.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return val == blacklistSentinel, nil
}

// RevokeRefreshForUser deletes the user's refresh slot.
func (s *TokenService) RevokeRefreshForUser(ctx context.Context, email string) error {
	return s.store.Delete(ctx, refreshKeyFor(email))
}

// DecodeUnverified extracts claims without any signature or expiry check.
// It exists for best-effort cleanup (logout) only; never use it where
// VerifyAccessToken is meant.
func (s *TokenService) DecodeUnverified(tokenString string) (*AccessClaims, error) {
	token, _, err := jwt.NewParser().ParseUnverified(tokenString, &AccessClaims{})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*AccessClaims)
	if !ok {
		return nil, ErrInvalidClaims
	}

	return claims, nil
}

func blacklistKeyFor(jti string) string {
	return blacklistKeyPrefix + jti
}

// Refresh slots are keyed by lowercased email: the identity header on
// proxied requests is matched case-insensitively against stored keys.
func refreshKeyFor(email string) string {
	return refreshKeyPrefix + strings.ToLower(email)
}

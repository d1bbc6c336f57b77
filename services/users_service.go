package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nanogpt-proxy/api/model"
	"github.com/nanogpt-proxy/api/utils/auth"
	"github.com/nanogpt-proxy/api/utils/crypto"
	"gorm.io/gorm"
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrEmailTaken   = errors.New("email is already registered")
)

// UserService handles user persistence. Upstream API keys pass through the
// vault on the way in and out; the database only ever sees ciphertext.
type UserService struct {
	db    *gorm.DB
	vault *crypto.Vault
}

// NewUserService creates a new user service
func NewUserService(db *gorm.DB, vault *crypto.Vault) *UserService {
	return &UserService{
		db:    db,
		vault: vault,
	}
}

// Create inserts a new user with a hashed password.
func (s *UserService) Create(ctx context.Context, email, password, role string, enabled bool) (*model.User, error) {
	existing, err := s.GetByEmail(ctx, email)
	if err != nil && !errors.Is(err, ErrUserNotFound) {
		return nil, err
	}
	if existing != nil {
		return nil, ErrEmailTaken
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, err
	}

	user := &model.User{
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		Enabled:      enabled,
	}

	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return user, nil
}

// GetByEmail retrieves a user by email
func (s *UserService) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	var user model.User
	if err := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

// GetByID retrieves a user by primary key
func (s *UserService) GetByID(ctx context.Context, id uint) (*model.User, error) {
	var user model.User
	if err := s.db.WithContext(ctx).First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

// List returns a page of users ordered by creation time
func (s *UserService) List(ctx context.Context, page, limit int) ([]model.User, int64, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}

	var total int64
	if err := s.db.WithContext(ctx).Model(&model.User{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count users: %w", err)
	}

	var users []model.User
	if err := s.db.WithContext(ctx).
		Order("created_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&users).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list users: %w", err)
	}

	return users, total, nil
}

// Update applies column updates to a user by ID
func (s *UserService) Update(ctx context.Context, id uint, updates map[string]interface{}) (*model.User, error) {
	result := s.db.WithContext(ctx).
		Model(&model.User{}).
		Where("id = ?", id).
		Updates(updates)

	if result.Error != nil {
		return nil, fmt.Errorf("failed to update user: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, ErrUserNotFound
	}

	return s.GetByID(ctx, id)
}

// SetPassword re-hashes and stores a new password for the user.
func (s *UserService) SetPassword(ctx context.Context, id uint, password string) error {
	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}

	_, err = s.Update(ctx, id, map[string]interface{}{"password_hash": hash})
	return err
}

// SetAPIKey encrypts and stores the user's upstream API key. An empty key
// clears the stored credential.
func (s *UserService) SetAPIKey(ctx context.Context, id uint, plainKey string) error {
	blob := ""
	if plainKey != "" {
		encrypted, err := s.vault.Encrypt(plainKey)
		if err != nil {
			return fmt.Errorf("failed to encrypt API key: %w", err)
		}
		blob = encrypted
	}

	_, err := s.Update(ctx, id, map[string]interface{}{"api_key": blob})
	return err
}

// DecryptAPIKey returns the user's upstream API key in plaintext. An empty
// string with a nil error means no key is stored. A decryption failure is a
// hard error and must never be treated as a missing key.
func (s *UserService) DecryptAPIKey(user *model.User) (string, error) {
	if user.APIKey == "" {
		return "", nil
	}
	return s.vault.Decrypt(user.APIKey)
}

// Delete soft-deletes a user and leaves the row for the retention purge.
func (s *UserService) Delete(ctx context.Context, id uint) error {
	result := s.db.WithContext(ctx).Delete(&model.User{}, id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete user: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

// CountByRole counts non-deleted users holding the role
func (s *UserService) CountByRole(ctx context.Context, role string) (int64, error) {
	var count int64
	if err := s.db.WithContext(ctx).
		Model(&model.User{}).
		Where("role = ?", role).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return count, nil
}

// PurgeDeletedBefore permanently removes users soft-deleted before the
// cutoff. Returns the number of rows purged.
func (s *UserService) PurgeDeletedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result := s.db.WithContext(ctx).
		Unscoped().
		Where("deleted_at IS NOT NULL AND deleted_at < ?", cutoff).
		Delete(&model.User{})

	if result.Error != nil {
		return 0, fmt.Errorf("failed to purge users: %w", result.Error)
	}
	return result.RowsAffected, nil
}

package model

import (
	"time"

	"gorm.io/gorm"
)

// Roles a user can hold. The gateway only distinguishes the two.
const (
	RoleAdmin = "ADMIN"
	RoleUser  = "USER"
)

// User represents a registered user of the gateway
type User struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
	Email        string         `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string         `gorm:"not null" json:"-"` // Never expose password in JSON
	Role         string         `gorm:"type:varchar(20);default:'USER'" json:"role"`
	Enabled      bool           `gorm:"default:true" json:"enabled"`

	// APIKey holds the user's NanoGPT key as an opaque ciphertext blob
	// produced by the vault. Empty means no upstream key has been set.
	// It is decrypted only inside the proxy request path.
	APIKey string `gorm:"type:text" json:"-"`
}

// TableName specifies the table name for User
func (User) TableName() string {
	return "users"
}

// IsAdmin reports whether the user holds the ADMIN role.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RefreshToken is a ledger record for one issued refresh token. Only the
// SHA-256 of the raw token is stored.
type RefreshToken struct {
	ID        uuid.UUID `gorm:"type:uuid;primarykey" json:"id"`
	TokenHash string    `gorm:"uniqueIndex;not null;size:128" json:"-"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`
	Family    uuid.UUID `gorm:"type:uuid;not null;index" json:"family"`
	ExpiresAt time.Time `gorm:"not null;index" json:"expires_at"`
	IsRevoked bool      `gorm:"not null;default:false" json:"is_revoked"`
	IPAddress *string   `gorm:"size:45" json:"ip_address,omitempty"`
	UserAgent *string   `gorm:"size:512" json:"user_agent,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	User      User      `gorm:"foreignKey:UserID" json:"-"`
}

// TableName overrides the table name
func (RefreshToken) TableName() string {
	return "refresh_tokens"
}

// BeforeCreate assigns a UUID when the caller did not
func (t *RefreshToken) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}


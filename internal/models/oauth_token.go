package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CalendlyOAuthToken caches the OAuth credential for outbound Calendly calls.
// Rows are append-only; the most recently updated row is the current one.
type CalendlyOAuthToken struct {
	ID           uuid.UUID  `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	AccessToken  string     `gorm:"column:access_token;not null" json:"-"`
	RefreshToken *string    `gorm:"column:refresh_token" json:"-"`
	TokenType    string     `gorm:"column:token_type;not null;default:Bearer" json:"token_type"`
	Scope        *string    `gorm:"column:scope" json:"scope"`
	ExpiresAt    *time.Time `gorm:"column:expires_at" json:"expires_at"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `gorm:"index" json:"updatedAt"`
}

func (CalendlyOAuthToken) TableName() string {
	return "CalendlyOAuthTokens"
}

func (t *CalendlyOAuthToken) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Role values for portal users.
const (
	RoleGuest  = "GUEST"
	RoleClient = "CLIENT"
	RoleAdmin  = "ADMIN"
)

// User is a portal account: clients booking consultations and the firm's
// admin staff. Appointments always belong to exactly one user.
type User struct {
	UserID       uuid.UUID `gorm:"column:user_id;type:uuid;primaryKey" json:"user_id"`
	Role         string    `gorm:"column:role;not null;default:GUEST" json:"role"`
	FirstName    string    `gorm:"column:first_name;not null" json:"first_name"`
	LastName     string    `gorm:"column:last_name;not null" json:"last_name"`
	Email        string    `gorm:"column:email;not null;uniqueIndex" json:"email"`
	PhoneNumber  *string   `gorm:"column:phone_number" json:"phone_number"`
	PasswordHash string    `gorm:"column:password_hash;not null" json:"-"`

	PaymentProvider    *string `gorm:"column:payment_provider" json:"payment_provider"`
	ProviderCustomerID *string `gorm:"column:provider_customer_id" json:"provider_customer_id"`
	RetainerCents      int64   `gorm:"column:retainer_cents;not null;default:0" json:"retainer_cents"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (User) TableName() string {
	return "Users"
}

// BeforeCreate sets UUID if not set (for DBs without gen_random_uuid).
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.UserID == uuid.Nil {
		u.UserID = uuid.New()
	}
	return nil
}

// IsAdmin reports whether the user may perform administrative operations.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

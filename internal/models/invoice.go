package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Invoice status values.
const (
	InvoiceStatusDraft  = "DRAFT"
	InvoiceStatusSent   = "SENT"
	InvoiceStatusPaid   = "PAID"
	InvoiceStatusFailed = "FAILED"
	InvoiceStatusVoided = "VOIDED"
)

// Invoice is a bill issued to a client. Amounts are in minor units (cents).
type Invoice struct {
	ID     uuid.UUID `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	UserID uuid.UUID `gorm:"column:user_id;type:uuid;not null;index" json:"user_id"`
	User   *User     `gorm:"foreignKey:UserID;constraint:OnDelete:RESTRICT" json:"-"`

	AmountCents int64   `gorm:"column:amount_cents;not null" json:"amount_cents"`
	Currency    string  `gorm:"column:currency;not null;default:USD" json:"currency"`
	Description *string `gorm:"column:description" json:"description"`

	Status string     `gorm:"column:status;not null;default:DRAFT;index" json:"status"`
	Paid   bool       `gorm:"column:paid;not null;default:false" json:"paid"`
	PaidAt *time.Time `gorm:"column:paid_at" json:"paid_at"`

	StripeInvoiceID *string `gorm:"column:stripe_invoice_id;uniqueIndex" json:"stripe_invoice_id"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (Invoice) TableName() string {
	return "Invoices"
}

func (i *Invoice) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}

// StripeWebhookEvent records every Stripe event we have accepted so that
// redeliveries are detected. EventID carries Stripe's unique event id; the
// unique index is the backstop if two deliveries race the get-or-create.
type StripeWebhookEvent struct {
	ID        uuid.UUID      `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	EventID   string         `gorm:"column:event_id;uniqueIndex;not null" json:"event_id"`
	EventType string         `gorm:"column:event_type;not null" json:"event_type"`
	Payload   datatypes.JSON `gorm:"column:payload;type:jsonb" json:"payload"`

	CreatedAt time.Time `json:"createdAt"`
}

func (StripeWebhookEvent) TableName() string {
	return "StripeWebhookEvents"
}

func (e *StripeWebhookEvent) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Notification channels and outcomes.
const (
	ChannelEmail = "EMAIL"
	ChannelSMS   = "SMS"

	NotificationSent   = "SENT"
	NotificationFailed = "FAILED"
)

// Notification types.
const (
	NotifyApptConfirm    = "APPT_CONFIRM"
	NotifyApptReminder   = "APPT_REMINDER"
	NotifyApptCancelled  = "APPT_CANCELLED"
	NotifyInvoiceIssued  = "INVOICE_ISSUED"
	NotifyPaymentReceipt = "PAYMENT_RECEIPT"
)

// Notification is an audit row for every outbound message attempt. Guest
// notifications (no account yet) keep a snapshot of the target address.
type Notification struct {
	ID     uuid.UUID  `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	UserID *uuid.UUID `gorm:"column:user_id;type:uuid;index" json:"user_id"`
	User   *User      `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`

	Channel string `gorm:"column:channel;not null" json:"channel"`
	Type    string `gorm:"column:type;not null;index" json:"type"`
	Status  string `gorm:"column:status;not null;default:SENT;index" json:"status"`

	Provider          *string        `gorm:"column:provider" json:"provider"`
	ProviderMessageID *string        `gorm:"column:provider_message_id" json:"provider_message_id"`
	ErrorMessage      *string        `gorm:"column:error_message" json:"error_message"`
	Payload           datatypes.JSON `gorm:"column:payload;type:jsonb" json:"payload"`

	TargetEmail *string `gorm:"column:target_email" json:"target_email"`
	TargetPhone *string `gorm:"column:target_phone" json:"target_phone"`

	SentAt time.Time `gorm:"column:sent_at;autoCreateTime;index" json:"sent_at"`
}

func (Notification) TableName() string {
	return "Notifications"
}

func (n *Notification) BeforeCreate(tx *gorm.DB) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	return nil
}

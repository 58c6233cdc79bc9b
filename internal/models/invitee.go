package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Invitee is the attendee record Calendly reports for an appointment. It is
// owned exclusively by its appointment and is never reassigned.
type Invitee struct {
	ID            uuid.UUID    `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	AppointmentID uuid.UUID    `gorm:"column:appointment_id;type:uuid;not null;index" json:"appointment_id"`
	Appointment   *Appointment `gorm:"foreignKey:AppointmentID;constraint:OnDelete:CASCADE" json:"-"`

	Name        string  `gorm:"column:name;not null" json:"name"`
	Email       string  `gorm:"column:email;not null" json:"email"`
	PhoneNumber *string `gorm:"column:phone_number" json:"phone_number"`
	Status      string  `gorm:"column:status;not null;default:active" json:"status"`

	Canceled           bool    `gorm:"column:canceled;not null;default:false" json:"canceled"`
	CancellationReason *string `gorm:"column:cancellation_reason" json:"cancellation_reason"`
	RescheduleURL      *string `gorm:"column:reschedule_url" json:"reschedule_url"`

	CalendlyInviteeURI *string    `gorm:"column:calendly_invitee_uri;uniqueIndex" json:"calendly_invitee_uri"`
	CalendlyCreatedAt  *time.Time `gorm:"column:calendly_created_at" json:"calendly_created_at"`
	CalendlyUpdatedAt  *time.Time `gorm:"column:calendly_updated_at" json:"calendly_updated_at"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (Invitee) TableName() string {
	return "Invitees"
}

func (i *Invitee) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}

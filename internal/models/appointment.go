package models

import (
	"crypto/rand"
	"math/big"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Appointment status values.
type AppointmentStatus string

const (
	StatusPending   AppointmentStatus = "PENDING"
	StatusConfirmed AppointmentStatus = "CONFIRMED"
	StatusCancelled AppointmentStatus = "CANCELLED"
	StatusNoShow    AppointmentStatus = "NO_SHOW"
	StatusCompleted AppointmentStatus = "COMPLETED"
)

// AppointmentStatuses lists every valid status.
var AppointmentStatuses = []AppointmentStatus{
	StatusPending, StatusConfirmed, StatusCancelled, StatusNoShow, StatusCompleted,
}

// allowedTransitions is the appointment lifecycle table. CANCELLED, NO_SHOW
// and COMPLETED are terminal.
var allowedTransitions = map[AppointmentStatus][]AppointmentStatus{
	StatusPending:   {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusCompleted, StatusNoShow, StatusCancelled},
	StatusCancelled: {},
	StatusNoShow:    {},
	StatusCompleted: {},
}

// CanTransition reports whether from -> to is a legal status change.
// Self-transitions are not in the table; callers treat "unchanged" as a
// separate no-op case before consulting this.
func CanTransition(from, to AppointmentStatus) bool {
	for _, t := range allowedTransitions[from] {
		if t == to {
			return true
		}
	}
	return false
}

// ParseAppointmentStatus returns the status for s, or "" if unrecognized.
func ParseAppointmentStatus(s string) (AppointmentStatus, bool) {
	for _, st := range AppointmentStatuses {
		if string(st) == s {
			return st, true
		}
	}
	return "", false
}

// Appointment is a consultation booked either locally or through Calendly.
// CalendlyEventURI uniquely identifies the external event; the webhook
// reconciler must never create two rows for the same URI.
type Appointment struct {
	ID     uuid.UUID `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	UserID uuid.UUID `gorm:"column:user_id;type:uuid;not null;index" json:"user_id"`
	User   *User     `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`

	StartTime time.Time         `gorm:"column:start_time;index" json:"start_time"`
	Duration  time.Duration     `gorm:"column:duration;not null;default:900000000000" json:"duration"`
	Comments  *string           `gorm:"column:comments" json:"comments"`
	Approved  bool              `gorm:"column:approved;not null;default:false" json:"approved"`
	Status    AppointmentStatus `gorm:"column:status;not null;default:PENDING;index" json:"status"`

	CancellationReason *string    `gorm:"column:cancellation_reason" json:"cancellation_reason"`
	CancelledAt        *time.Time `gorm:"column:cancelled_at" json:"cancelled_at"`

	// ConfirmationNumber is the user-facing identifier, generated once at
	// creation and never changed.
	ConfirmationNumber string `gorm:"column:confirmation_number;uniqueIndex;not null" json:"confirmation_number"`

	// Calendly mirror fields, denormalized from webhook payloads.
	CalendarAPIID           *string    `gorm:"column:calendar_api_id" json:"calendar_api_id"`
	CalendlyEventURI        *string    `gorm:"column:calendly_event_uri;uniqueIndex" json:"calendly_event_uri"`
	CalendlyEventName       *string    `gorm:"column:calendly_event_name" json:"calendly_event_name"`
	CalendlyEventStatus     *string    `gorm:"column:calendly_event_status" json:"calendly_event_status"`
	CalendlyCreatedAt       *time.Time `gorm:"column:calendly_created_at" json:"calendly_created_at"`
	CalendlyUpdatedAt       *time.Time `gorm:"column:calendly_updated_at" json:"calendly_updated_at"`
	CalendlyLocationType    *string    `gorm:"column:calendly_location_type" json:"calendly_location_type"`
	CalendlyJoinURL         *string    `gorm:"column:calendly_join_url" json:"calendly_join_url"`
	CalendlyOrganizationURI *string    `gorm:"column:calendly_organization_uri" json:"calendly_organization_uri"`
	CalendlyHostEmail       *string    `gorm:"column:calendly_host_email" json:"calendly_host_email"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (Appointment) TableName() string {
	return "Appointments"
}

func (a *Appointment) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.ConfirmationNumber == "" {
		n, err := NewConfirmationNumber()
		if err != nil {
			return err
		}
		a.ConfirmationNumber = n
	}
	if a.Duration == 0 {
		a.Duration = 15 * time.Minute
	}
	if a.Status == "" {
		a.Status = StatusPending
	}
	return nil
}

const confirmationAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
const confirmationLength = 8

// NewConfirmationNumber generates an 8-char uppercase alphanumeric code.
func NewConfirmationNumber() (string, error) {
	b := make([]byte, confirmationLength)
	max := big.NewInt(int64(len(confirmationAlphabet)))
	for i := range b {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b[i] = confirmationAlphabet[n.Int64()]
	}
	return string(b), nil
}

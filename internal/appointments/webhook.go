package appointments

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"lexportal-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// prepareQuestionMarker identifies the booking-form question whose answer is
// stored as the appointment comment.
const prepareQuestionMarker = "help prepare for our meeting"

const defaultWebhookDuration = 30 * time.Minute

// ConfirmNotifier sends the booking-confirmation notice. Best effort; nil
// disables it.
type ConfirmNotifier interface {
	AppointmentConfirmed(ctx context.Context, appt *models.Appointment)
}

// WebhookHandler ingests Calendly webhook notifications. Deliveries are
// retried and may be duplicated; reconciliation is idempotent, keyed on the
// external event and invitee URIs.
type WebhookHandler struct {
	DB       *gorm.DB
	Notifier ConfirmNotifier
}

type webhookEvent struct {
	Event   string         `json:"event"`
	Payload inviteePayload `json:"payload"`
}

type inviteePayload struct {
	URI                 string           `json:"uri"`
	Name                string           `json:"name"`
	Email               string           `json:"email"`
	TextReminderNumber  *string          `json:"text_reminder_number"`
	Status              string           `json:"status"`
	Rescheduled         bool             `json:"rescheduled"`
	RescheduleURL       *string          `json:"reschedule_url"`
	CreatedAt           *time.Time       `json:"created_at"`
	UpdatedAt           *time.Time       `json:"updated_at"`
	QuestionsAndAnswers []questionAnswer `json:"questions_and_answers"`
	ScheduledEvent      *scheduledEvent  `json:"scheduled_event"`
}

type questionAnswer struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

type scheduledEvent struct {
	URI              string            `json:"uri"`
	Name             *string           `json:"name"`
	Status           string            `json:"status"`
	StartTime        *time.Time        `json:"start_time"`
	EndTime          *time.Time        `json:"end_time"`
	CreatedAt        *time.Time        `json:"created_at"`
	UpdatedAt        *time.Time        `json:"updated_at"`
	Location         *eventLocation    `json:"location"`
	EventMemberships []eventMembership `json:"event_memberships"`
}

type eventLocation struct {
	Type    *string `json:"type"`
	JoinURL *string `json:"join_url"`
}

type eventMembership struct {
	UserEmail string `json:"user_email"`
}

// HandleCalendlyWebhook POST /webhooks/calendly.
func (wh *WebhookHandler) HandleCalendlyWebhook(c *fiber.Ctx) error {
	var event webhookEvent
	if err := json.Unmarshal(c.BodyRaw(), &event); err != nil {
		log.Warn().Err(err).Msg("Calendly webhook JSON parse failed")
		return c.Status(fiber.StatusBadRequest).SendString("Invalid JSON")
	}

	if event.Event != "invitee.created" {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "ignored", "reason": "unsupported event"})
	}

	data := event.Payload
	if data.ScheduledEvent == nil {
		return c.Status(fiber.StatusBadRequest).SendString("Missing scheduled_event data")
	}
	if data.ScheduledEvent.URI == "" {
		return c.Status(fiber.StatusBadRequest).SendString("Missing event uri")
	}

	owner, hostEmail, err := wh.resolveOwner(c, &data)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).SendString("No host user found; create an admin user with the Calendly host email.")
	}

	appt, created, err := wh.reconcileInviteeCreated(c, &data, owner, hostEmail)
	if isUniqueViolation(err) {
		// Lost a get-or-create race against a concurrent delivery; the row
		// exists now, so a second pass updates it.
		appt, created, err = wh.reconcileInviteeCreated(c, &data, owner, hostEmail)
	}
	if err != nil {
		log.Error().Err(err).Str("event_uri", data.ScheduledEvent.URI).Msg("Calendly webhook reconcile failed")
		return fiber.NewError(fiber.StatusInternalServerError, "webhook processing failed")
	}

	if created && wh.Notifier != nil {
		wh.Notifier.AppointmentConfirmed(c.Context(), appt)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "ok"})
}

// resolveOwner picks the local user the appointment belongs to. A host must
// resolve first (membership email, then the first admin account) or the
// delivery is rejected outright; given a host, a client account matching the
// invitee email takes precedence as owner.
func (wh *WebhookHandler) resolveOwner(c *fiber.Ctx, data *inviteePayload) (*models.User, *string, error) {
	var hostEmail *string
	if ms := data.ScheduledEvent.EventMemberships; len(ms) > 0 && ms[0].UserEmail != "" {
		e := ms[0].UserEmail
		hostEmail = &e
	}

	var host *models.User
	if hostEmail != nil {
		var u models.User
		if err := wh.DB.WithContext(c.Context()).Where("email = ?", *hostEmail).First(&u).Error; err == nil {
			host = &u
		}
	}
	if host == nil {
		var u models.User
		if err := wh.DB.WithContext(c.Context()).Where("role = ?", models.RoleAdmin).Order("created_at ASC").First(&u).Error; err == nil {
			host = &u
		}
	}
	if host == nil {
		return nil, nil, errors.New("no resolvable host user")
	}

	if data.Email != "" {
		var u models.User
		if err := wh.DB.WithContext(c.Context()).Where("email = ?", data.Email).First(&u).Error; err == nil {
			return &u, hostEmail, nil
		}
	}
	return host, hostEmail, nil
}

func (wh *WebhookHandler) reconcileInviteeCreated(c *fiber.Ctx, data *inviteePayload, owner *models.User, hostEmail *string) (*models.Appointment, bool, error) {
	se := data.ScheduledEvent

	var start time.Time
	duration := defaultWebhookDuration
	if se.StartTime != nil {
		start = *se.StartTime
		if se.EndTime != nil {
			duration = se.EndTime.Sub(*se.StartTime)
		}
	}

	comment := extractComment(data.QuestionsAndAnswers)

	var appt models.Appointment
	created := false
	err := wh.DB.WithContext(c.Context()).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("calendly_event_uri = ?", se.URI).First(&appt).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			appt = models.Appointment{
				UserID:    owner.UserID,
				StartTime: start,
				Duration:  duration,
				Status:    models.StatusConfirmed,
				Comments:  comment,
			}
			applyEventMirror(&appt, se, hostEmail)
			if err := tx.Create(&appt).Error; err != nil {
				return err
			}
			created = true
		case err != nil:
			return err
		default:
			appt.UserID = owner.UserID
			appt.StartTime = start
			appt.Duration = duration
			appt.Status = models.StatusConfirmed
			if comment != nil {
				appt.Comments = comment
			}
			applyEventMirror(&appt, se, hostEmail)
			if err := tx.Save(&appt).Error; err != nil {
				return err
			}
		}

		// Invitees are created once and never updated by this event. A
		// URI-less payload matches an existing NULL-URI row on the same
		// appointment, so redelivery still creates nothing.
		var existing models.Invitee
		var inviteeLookup *gorm.DB
		if data.URI != "" {
			inviteeLookup = tx.Where("calendly_invitee_uri = ?", data.URI)
		} else {
			inviteeLookup = tx.Where("appointment_id = ? AND calendly_invitee_uri IS NULL", appt.ID)
		}
		err = inviteeLookup.First(&existing).Error
		if err == nil {
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		inv := models.Invitee{
			AppointmentID:     appt.ID,
			Name:              data.Name,
			Email:             data.Email,
			PhoneNumber:       data.TextReminderNumber,
			Status:            defaultString(data.Status, "active"),
			Canceled:          data.Rescheduled,
			RescheduleURL:     data.RescheduleURL,
			CalendlyCreatedAt: data.CreatedAt,
			CalendlyUpdatedAt: data.UpdatedAt,
		}
		if data.URI != "" {
			uri := data.URI
			inv.CalendlyInviteeURI = &uri
		}
		return tx.Create(&inv).Error
	})
	if err != nil {
		return nil, false, err
	}
	return &appt, created, nil
}

// applyEventMirror copies the denormalized Calendly fields onto the
// appointment. One enumerated list, used for both create and update.
func applyEventMirror(appt *models.Appointment, se *scheduledEvent, hostEmail *string) {
	uri := se.URI
	appt.CalendlyEventURI = &uri
	appt.CalendarAPIID = &uri
	appt.CalendlyEventName = se.Name
	status := defaultString(se.Status, "active")
	appt.CalendlyEventStatus = &status
	appt.CalendlyCreatedAt = se.CreatedAt
	appt.CalendlyUpdatedAt = se.UpdatedAt
	if se.Location != nil {
		appt.CalendlyLocationType = se.Location.Type
		appt.CalendlyJoinURL = se.Location.JoinURL
	} else {
		appt.CalendlyLocationType = nil
		appt.CalendlyJoinURL = nil
	}
	appt.CalendlyOrganizationURI = nil
	appt.CalendlyHostEmail = hostEmail
}

// extractComment picks the answer to the prepare-for-meeting question, else
// the first available answer, else nil.
func extractComment(qas []questionAnswer) *string {
	for _, qa := range qas {
		if strings.Contains(strings.ToLower(qa.Question), prepareQuestionMarker) {
			a := qa.Answer
			return &a
		}
	}
	if len(qas) > 0 {
		a := qas[0].Answer
		return &a
	}
	return nil
}

func defaultString(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "UNIQUE constraint failed")
}

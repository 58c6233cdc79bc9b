package notifications

import (
	"context"
	"encoding/json"
	"fmt"

	"lexportal-backend/internal/models"

	"github.com/rs/zerolog/log"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Service sends best-effort notices and keeps an audit row for every
// attempt. Failures are recorded, never propagated — a broken mail provider
// must not break the operation that triggered the notice.
type Service struct {
	DB      *gorm.DB
	Emailer Emailer
}

// AppointmentCancelled emails every invitee on the appointment that it was
// cancelled, recording one Notification row per recipient.
func (s *Service) AppointmentCancelled(ctx context.Context, appt *models.Appointment, reason string) {
	subject := fmt.Sprintf("Appointment %s cancelled", appt.ConfirmationNumber)
	body := fmt.Sprintf("<p>Your appointment (confirmation %s) has been cancelled.</p><p>Reason: %s</p>",
		appt.ConfirmationNumber, reason)
	s.notifyInvitees(ctx, appt, models.NotifyApptCancelled, subject, body, reason)
}

// AppointmentConfirmed emails every invitee a booking confirmation with the
// confirmation number.
func (s *Service) AppointmentConfirmed(ctx context.Context, appt *models.Appointment) {
	subject := fmt.Sprintf("Appointment confirmed: %s", appt.ConfirmationNumber)
	body := fmt.Sprintf("<p>Your appointment is confirmed for %s.</p><p>Confirmation number: %s</p>",
		appt.StartTime.Format("Monday, January 2 2006 at 3:04 PM MST"), appt.ConfirmationNumber)
	s.notifyInvitees(ctx, appt, models.NotifyApptConfirm, subject, body, "")
}

func (s *Service) notifyInvitees(ctx context.Context, appt *models.Appointment, notifyType, subject, body, reason string) {
	var invitees []models.Invitee
	if err := s.DB.WithContext(ctx).Where("appointment_id = ?", appt.ID).Find(&invitees).Error; err != nil {
		log.Warn().Err(err).Str("appointment_id", appt.ID.String()).Msg("Notice: invitee lookup failed")
		return
	}
	for _, inv := range invitees {
		if inv.Email == "" {
			continue
		}
		s.sendAndRecord(ctx, appt, inv, notifyType, subject, body, reason)
	}
}

func (s *Service) sendAndRecord(ctx context.Context, appt *models.Appointment, inv models.Invitee, notifyType, subject, body, reason string) {
	var sendErr error
	if s.Emailer != nil {
		sendErr = s.Emailer.Send(ctx, inv.Email, inv.Name, subject, body)
	}

	payload, _ := json.Marshal(map[string]string{
		"subject":             subject,
		"confirmation_number": appt.ConfirmationNumber,
		"reason":              reason,
	})
	email := inv.Email
	provider := "brevo"
	n := models.Notification{
		UserID:      &appt.UserID,
		Channel:     models.ChannelEmail,
		Type:        notifyType,
		Status:      models.NotificationSent,
		Provider:    &provider,
		Payload:     datatypes.JSON(payload),
		TargetEmail: &email,
	}
	if sendErr != nil {
		msg := sendErr.Error()
		n.Status = models.NotificationFailed
		n.ErrorMessage = &msg
		log.Warn().Err(sendErr).Str("email", inv.Email).Str("type", notifyType).Msg("Notice send failed")
	}
	if err := s.DB.WithContext(ctx).Create(&n).Error; err != nil {
		log.Warn().Err(err).Msg("Failed to record notification")
	}
}

package appointments

import (
	"context"
	"errors"
	"strings"
	"time"

	"lexportal-backend/internal/calendly"
	"lexportal-backend/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// Canceller is the outbound Calendly surface the orchestrator needs. The
// concrete client lives in internal/calendly; tests inject fakes.
type Canceller interface {
	Enabled() bool
	CancelScheduledEvent(ctx context.Context, eventURI, reason string) error
}

// Notifier records/sends cancellation notices. Best effort; nil disables it.
type Notifier interface {
	AppointmentCancelled(ctx context.Context, appt *models.Appointment, reason string)
}

// Outcome is a user-visible result of a best-effort side effect.
type Outcome struct {
	Level   string // info | warning
	Message string
}

// Service owns appointment lifecycle mutations: the admin cancel and
// status-update operations, including the invitee cascade and the
// post-commit Calendly cancellation.
type Service struct {
	DB       *gorm.DB
	Calendly Canceller
	Notifier Notifier
}

// CancelResult reports a completed cancellation plus any best-effort
// external outcome (nil when the appointment has no Calendly event).
type CancelResult struct {
	Appointment *models.Appointment
	External    *Outcome
}

// UpdateResult reports a status-update operation. Changed is false when the
// requested target equals the current status (informational no-op).
type UpdateResult struct {
	Appointment *models.Appointment
	Changed     bool
	Cancelled   bool
	External    *Outcome
}

// Cancel cancels a PENDING or CONFIRMED appointment with a required reason,
// cascades to invitees and then best-effort-cancels the Calendly event.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID, reason string) (*CancelResult, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, ErrReasonRequired
	}

	appt, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if appt.Status != models.StatusPending && appt.Status != models.StatusConfirmed {
		return nil, ErrNotCancellable
	}

	if err := s.cancelLocally(ctx, appt, reason); err != nil {
		return nil, err
	}

	external := s.cancelExternal(ctx, appt, reason)
	s.notifyCancelled(ctx, appt, reason)
	return &CancelResult{Appointment: appt, External: external}, nil
}

// UpdateStatus transitions an appointment to target. Same-status requests
// are a no-op, illegal transitions (including out of terminal states) are
// rejected, and a CANCELLED target runs the full cancel path.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, target models.AppointmentStatus, reason string) (*UpdateResult, error) {
	appt, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	if target == appt.Status {
		return &UpdateResult{Appointment: appt, Changed: false}, nil
	}
	if !models.CanTransition(appt.Status, target) {
		return nil, ErrTransitionNotAllowed
	}

	if target == models.StatusCancelled {
		reason = strings.TrimSpace(reason)
		if reason == "" {
			return nil, ErrReasonRequired
		}
		if err := s.cancelLocally(ctx, appt, reason); err != nil {
			return nil, err
		}
		external := s.cancelExternal(ctx, appt, reason)
		s.notifyCancelled(ctx, appt, reason)
		return &UpdateResult{Appointment: appt, Changed: true, Cancelled: true, External: external}, nil
	}

	// Non-cancel transitions touch nothing but the status itself.
	if err := s.DB.WithContext(ctx).Model(&models.Appointment{}).
		Where("id = ?", appt.ID).
		Update("status", target).Error; err != nil {
		return nil, err
	}
	appt.Status = target
	return &UpdateResult{Appointment: appt, Changed: true}, nil
}

func (s *Service) load(ctx context.Context, id uuid.UUID) (*models.Appointment, error) {
	var appt models.Appointment
	if err := s.DB.WithContext(ctx).First(&appt, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &appt, nil
}

// cancelLocally commits the cancellation and the invitee cascade in one
// transaction. The invitee update is a single bulk statement to bound lock
// duration. The Calendly call happens after this commits, never inside it.
func (s *Service) cancelLocally(ctx context.Context, appt *models.Appointment, reason string) error {
	now := time.Now()
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Appointment{}).Where("id = ?", appt.ID).Updates(map[string]interface{}{
			"status":              models.StatusCancelled,
			"cancellation_reason": reason,
			"cancelled_at":        now,
		}).Error; err != nil {
			return err
		}
		return tx.Model(&models.Invitee{}).Where("appointment_id = ?", appt.ID).Updates(map[string]interface{}{
			"canceled":            true,
			"cancellation_reason": reason,
		}).Error
	})
	if err != nil {
		return err
	}
	appt.Status = models.StatusCancelled
	appt.CancellationReason = &reason
	appt.CancelledAt = &now
	return nil
}

// cancelExternal is the fire-after-commit side effect. Whatever happens out
// there, the local cancellation stands; everything is downgraded to an
// info or warning outcome.
func (s *Service) cancelExternal(ctx context.Context, appt *models.Appointment, reason string) (outcome *Outcome) {
	if appt.CalendlyEventURI == nil || *appt.CalendlyEventURI == "" {
		return nil
	}
	eventURI := *appt.CalendlyEventURI

	if s.Calendly == nil || !s.Calendly.Enabled() {
		log.Info().Str("event_uri", eventURI).Msg("Calendly cancellation skipped (integration disabled)")
		return &Outcome{Level: "info", Message: "Calendly cancellation skipped (integration disabled)."}
	}

	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Str("event_uri", eventURI).Msg("Calendly cancel panicked")
			outcome = &Outcome{Level: "warning", Message: "Calendly cancellation failed; the appointment remains cancelled locally."}
		}
	}()

	err := s.Calendly.CancelScheduledEvent(ctx, eventURI, reason)
	switch {
	case err == nil:
		return &Outcome{Level: "info", Message: "Calendly event cancelled."}
	case errors.Is(err, calendly.ErrNoCredentials):
		log.Warn().Str("event_uri", eventURI).Msg("Calendly API enabled but no access token configured; skipping cancellation")
		return &Outcome{Level: "warning", Message: "Calendly cancellation skipped (no credentials configured)."}
	default:
		log.Warn().Err(err).Str("event_uri", eventURI).Msg("Calendly cancellation failed")
		return &Outcome{Level: "warning", Message: "Calendly cancellation failed; the appointment remains cancelled locally."}
	}
}

func (s *Service) notifyCancelled(ctx context.Context, appt *models.Appointment, reason string) {
	if s.Notifier == nil {
		return
	}
	s.Notifier.AppointmentCancelled(ctx, appt, reason)
}

// UpcomingForUser returns the next limit non-cancelled appointments for one
// user, soonest first.
func (s *Service) UpcomingForUser(ctx context.Context, userID uuid.UUID, limit int) ([]models.Appointment, error) {
	var appts []models.Appointment
	err := s.DB.WithContext(ctx).
		Where("user_id = ? AND start_time >= ?", userID, time.Now()).
		Where("status <> ?", models.StatusCancelled).
		Order("start_time ASC").
		Limit(limit).
		Find(&appts).Error
	return appts, err
}

// UpcomingAll returns the next limit non-cancelled appointments across all
// users (admin dashboard).
func (s *Service) UpcomingAll(ctx context.Context, limit int) ([]models.Appointment, error) {
	var appts []models.Appointment
	err := s.DB.WithContext(ctx).
		Where("start_time >= ?", time.Now()).
		Where("status <> ?", models.StatusCancelled).
		Order("start_time ASC").
		Limit(limit).
		Find(&appts).Error
	return appts, err
}

package appointments

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"lexportal-backend/internal/models"

	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupWebhookTest(t *testing.T) (*fiber.App, *gorm.DB) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Appointment{}, &models.Invitee{}))

	wh := &WebhookHandler{DB: db}
	app := fiber.New()
	app.Post("/webhooks/calendly", wh.HandleCalendlyWebhook)
	return app, db
}

func createUser(t *testing.T, db *gorm.DB, email, role string) *models.User {
	u := &models.User{
		FirstName:    "Test",
		LastName:     "User",
		Email:        email,
		Role:         role,
		PasswordHash: "x",
	}
	require.NoError(t, db.Create(u).Error)
	return u
}

func inviteeCreatedPayload(eventURI, inviteeURI, inviteeEmail, hostEmail string) map[string]interface{} {
	return map[string]interface{}{
		"event": "invitee.created",
		"payload": map[string]interface{}{
			"uri":                  inviteeURI,
			"name":                 "Casey Client",
			"email":                inviteeEmail,
			"text_reminder_number": "+15551234567",
			"status":               "active",
			"rescheduled":          false,
			"reschedule_url":       "https://calendly.com/reschedulings/abc",
			"created_at":           "2026-08-01T10:00:00Z",
			"updated_at":           "2026-08-01T10:00:00Z",
			"questions_and_answers": []map[string]string{
				{"question": "Anything that would help prepare for our meeting?", "answer": "Guardianship case"},
			},
			"scheduled_event": map[string]interface{}{
				"uri":        eventURI,
				"name":       "Initial Consultation",
				"status":     "active",
				"start_time": "2026-09-01T15:00:00Z",
				"end_time":   "2026-09-01T15:30:00Z",
				"created_at": "2026-08-01T09:59:00Z",
				"updated_at": "2026-08-01T09:59:00Z",
				"location": map[string]interface{}{
					"type":     "zoom",
					"join_url": "https://zoom.us/j/123",
				},
				"event_memberships": []map[string]string{
					{"user_email": hostEmail},
				},
			},
		},
	}
}

func postWebhook(t *testing.T, app *fiber.App, body interface{}) *http.Response {
	var reader *strings.Reader
	switch b := body.(type) {
	case string:
		reader = strings.NewReader(b)
	default:
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = strings.NewReader(string(raw))
	}
	req := httptest.NewRequest("POST", "/webhooks/calendly", reader)
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func TestWebhook_InvalidJSON(t *testing.T) {
	app, _ := setupWebhookTest(t)
	resp := postWebhook(t, app, "{not json")
	assert.Equal(t, 400, resp.StatusCode)
}

func TestWebhook_UnsupportedEventIgnored(t *testing.T) {
	app, db := setupWebhookTest(t)
	resp := postWebhook(t, app, map[string]interface{}{
		"event":   "invitee.canceled",
		"payload": map[string]interface{}{},
	})
	assert.Equal(t, 200, resp.StatusCode)

	var count int64
	require.NoError(t, db.Model(&models.Appointment{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestWebhook_MissingScheduledEvent(t *testing.T) {
	app, _ := setupWebhookTest(t)
	resp := postWebhook(t, app, map[string]interface{}{
		"event":   "invitee.created",
		"payload": map[string]interface{}{"uri": "https://calendly.com/invitees/1"},
	})
	assert.Equal(t, 400, resp.StatusCode)
}

func TestWebhook_MissingEventURI(t *testing.T) {
	app, _ := setupWebhookTest(t)
	payload := inviteeCreatedPayload("", "https://calendly.com/invitees/1", "c@example.com", "host@example.com")
	resp := postWebhook(t, app, payload)
	assert.Equal(t, 400, resp.StatusCode)
}

func TestWebhook_NoResolvableOwner(t *testing.T) {
	app, _ := setupWebhookTest(t)
	// No users at all: host email unknown, no admin fallback.
	payload := inviteeCreatedPayload("https://provider/e/1", "https://provider/i/1", "nobody@example.com", "host@example.com")
	resp := postWebhook(t, app, payload)
	assert.Equal(t, 400, resp.StatusCode)
}

func TestWebhook_ClientMatchWithoutHostRejected(t *testing.T) {
	app, db := setupWebhookTest(t)
	// A client account matches the invitee email, but the host membership
	// email matches nobody and no admin exists to fall back to.
	createUser(t, db, "casey@example.com", models.RoleClient)

	payload := inviteeCreatedPayload("https://provider/e/nohost", "https://provider/i/nohost", "casey@example.com", "unknown@firm.example")
	resp := postWebhook(t, app, payload)
	assert.Equal(t, 400, resp.StatusCode, "host resolution failure rejects the delivery outright")

	var count int64
	require.NoError(t, db.Model(&models.Appointment{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestWebhook_AdminFallbackOwner(t *testing.T) {
	app, db := setupWebhookTest(t)
	admin := createUser(t, db, "lydia@firm.example", models.RoleAdmin)

	payload := inviteeCreatedPayload("https://provider/e/1", "https://provider/i/1", "nobody@example.com", "lydia@firm.example")
	resp := postWebhook(t, app, payload)
	require.Equal(t, 200, resp.StatusCode)

	var appt models.Appointment
	require.NoError(t, db.Where("calendly_event_uri = ?", "https://provider/e/1").First(&appt).Error)
	assert.Equal(t, admin.UserID, appt.UserID)
	assert.Equal(t, models.StatusConfirmed, appt.Status)
	assert.Equal(t, 30*time.Minute, appt.Duration)
	require.NotNil(t, appt.Comments)
	assert.Equal(t, "Guardianship case", *appt.Comments)
	assert.NotEmpty(t, appt.ConfirmationNumber)
	require.NotNil(t, appt.CalendlyHostEmail)
	assert.Equal(t, "lydia@firm.example", *appt.CalendlyHostEmail)
}

func TestWebhook_ClientOwnerPrecedence(t *testing.T) {
	app, db := setupWebhookTest(t)
	createUser(t, db, "lydia@firm.example", models.RoleAdmin)
	client := createUser(t, db, "casey@example.com", models.RoleClient)

	payload := inviteeCreatedPayload("https://provider/e/2", "https://provider/i/2", "casey@example.com", "lydia@firm.example")
	resp := postWebhook(t, app, payload)
	require.Equal(t, 200, resp.StatusCode)

	var appt models.Appointment
	require.NoError(t, db.Where("calendly_event_uri = ?", "https://provider/e/2").First(&appt).Error)
	assert.Equal(t, client.UserID, appt.UserID, "client account takes precedence over host")
}

func TestWebhook_Idempotent(t *testing.T) {
	app, db := setupWebhookTest(t)
	createUser(t, db, "lydia@firm.example", models.RoleAdmin)

	payload := inviteeCreatedPayload("https://provider/e/3", "https://provider/i/3", "nobody@example.com", "lydia@firm.example")
	resp := postWebhook(t, app, payload)
	require.Equal(t, 200, resp.StatusCode)

	var first models.Appointment
	require.NoError(t, db.Where("calendly_event_uri = ?", "https://provider/e/3").First(&first).Error)

	resp = postWebhook(t, app, payload)
	require.Equal(t, 200, resp.StatusCode)

	var apptCount, invCount int64
	require.NoError(t, db.Model(&models.Appointment{}).Count(&apptCount).Error)
	require.NoError(t, db.Model(&models.Invitee{}).Count(&invCount).Error)
	assert.Equal(t, int64(1), apptCount)
	assert.Equal(t, int64(1), invCount)

	var second models.Appointment
	require.NoError(t, db.Where("calendly_event_uri = ?", "https://provider/e/3").First(&second).Error)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.ConfirmationNumber, second.ConfirmationNumber)
	assert.Equal(t, first.StartTime.UTC(), second.StartTime.UTC())
}

func TestWebhook_NoInviteeURIRedeliveryCreatesOnce(t *testing.T) {
	app, db := setupWebhookTest(t)
	createUser(t, db, "lydia@firm.example", models.RoleAdmin)

	payload := inviteeCreatedPayload("https://provider/e/nouri", "", "nobody@example.com", "lydia@firm.example")
	resp := postWebhook(t, app, payload)
	require.Equal(t, 200, resp.StatusCode)

	resp = postWebhook(t, app, payload)
	require.Equal(t, 200, resp.StatusCode)

	var invCount int64
	require.NoError(t, db.Model(&models.Invitee{}).Count(&invCount).Error)
	assert.Equal(t, int64(1), invCount, "NULL-URI invitee matched on redelivery, not recreated")

	var inv models.Invitee
	require.NoError(t, db.First(&inv).Error)
	assert.Nil(t, inv.CalendlyInviteeURI)
	assert.Equal(t, "Casey Client", inv.Name)
}

func TestWebhook_RedeliveryWithoutAnswersKeepsComment(t *testing.T) {
	app, db := setupWebhookTest(t)
	createUser(t, db, "lydia@firm.example", models.RoleAdmin)

	payload := inviteeCreatedPayload("https://provider/e/4", "https://provider/i/4", "nobody@example.com", "lydia@firm.example")
	resp := postWebhook(t, app, payload)
	require.Equal(t, 200, resp.StatusCode)

	// Second delivery drops the questions entirely.
	inner := payload["payload"].(map[string]interface{})
	delete(inner, "questions_and_answers")
	resp = postWebhook(t, app, payload)
	require.Equal(t, 200, resp.StatusCode)

	var appt models.Appointment
	require.NoError(t, db.Where("calendly_event_uri = ?", "https://provider/e/4").First(&appt).Error)
	require.NotNil(t, appt.Comments)
	assert.Equal(t, "Guardianship case", *appt.Comments, "nil comment must not overwrite existing text")
}

func TestWebhook_FallbackToFirstAnswer(t *testing.T) {
	app, db := setupWebhookTest(t)
	createUser(t, db, "lydia@firm.example", models.RoleAdmin)

	payload := inviteeCreatedPayload("https://provider/e/5", "https://provider/i/5", "nobody@example.com", "lydia@firm.example")
	inner := payload["payload"].(map[string]interface{})
	inner["questions_and_answers"] = []map[string]string{
		{"question": "How did you hear about us?", "answer": "Referral"},
	}
	resp := postWebhook(t, app, payload)
	require.Equal(t, 200, resp.StatusCode)

	var appt models.Appointment
	require.NoError(t, db.Where("calendly_event_uri = ?", "https://provider/e/5").First(&appt).Error)
	require.NotNil(t, appt.Comments)
	assert.Equal(t, "Referral", *appt.Comments)
}

func TestWebhook_MissingEndTimeDefaultsDuration(t *testing.T) {
	app, db := setupWebhookTest(t)
	createUser(t, db, "lydia@firm.example", models.RoleAdmin)

	payload := inviteeCreatedPayload("https://provider/e/6", "https://provider/i/6", "nobody@example.com", "lydia@firm.example")
	se := payload["payload"].(map[string]interface{})["scheduled_event"].(map[string]interface{})
	delete(se, "end_time")
	resp := postWebhook(t, app, payload)
	require.Equal(t, 200, resp.StatusCode)

	var appt models.Appointment
	require.NoError(t, db.Where("calendly_event_uri = ?", "https://provider/e/6").First(&appt).Error)
	assert.Equal(t, 30*time.Minute, appt.Duration)
}

func TestWebhook_InviteeFieldsStored(t *testing.T) {
	app, db := setupWebhookTest(t)
	createUser(t, db, "lydia@firm.example", models.RoleAdmin)

	payload := inviteeCreatedPayload("https://provider/e/7", "https://provider/i/7", "casey@example.com", "lydia@firm.example")
	resp := postWebhook(t, app, payload)
	require.Equal(t, 200, resp.StatusCode)

	var inv models.Invitee
	require.NoError(t, db.Where("calendly_invitee_uri = ?", "https://provider/i/7").First(&inv).Error)
	assert.Equal(t, "Casey Client", inv.Name)
	assert.Equal(t, "casey@example.com", inv.Email)
	require.NotNil(t, inv.PhoneNumber)
	assert.Equal(t, "+15551234567", *inv.PhoneNumber)
	assert.False(t, inv.Canceled)

	var appt models.Appointment
	require.NoError(t, db.Where("calendly_event_uri = ?", "https://provider/e/7").First(&appt).Error)
	assert.Equal(t, appt.ID, inv.AppointmentID)
}

type fakeConfirmNotifier struct {
	confirmed []string
}

func (f *fakeConfirmNotifier) AppointmentConfirmed(ctx context.Context, appt *models.Appointment) {
	f.confirmed = append(f.confirmed, appt.ConfirmationNumber)
}

func TestWebhook_ConfirmationNoticeOnlyOnCreate(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Appointment{}, &models.Invitee{}))
	createUser(t, db, "lydia@firm.example", models.RoleAdmin)

	fake := &fakeConfirmNotifier{}
	app := fiber.New()
	wh := &WebhookHandler{DB: db, Notifier: fake}
	app.Post("/webhooks/calendly", wh.HandleCalendlyWebhook)

	payload := inviteeCreatedPayload("https://provider/e/notice", "https://provider/i/notice", "nobody@example.com", "lydia@firm.example")
	resp := postWebhook(t, app, payload)
	require.Equal(t, 200, resp.StatusCode)
	require.Len(t, fake.confirmed, 1)

	resp = postWebhook(t, app, payload)
	require.Equal(t, 200, resp.StatusCode)
	assert.Len(t, fake.confirmed, 1, "redelivery updates, no second notice")
}

func TestWebhook_ManyEventsManyAppointments(t *testing.T) {
	app, db := setupWebhookTest(t)
	createUser(t, db, "lydia@firm.example", models.RoleAdmin)

	for i := 0; i < 3; i++ {
		payload := inviteeCreatedPayload(
			fmt.Sprintf("https://provider/e/batch-%d", i),
			fmt.Sprintf("https://provider/i/batch-%d", i),
			"nobody@example.com", "lydia@firm.example")
		resp := postWebhook(t, app, payload)
		require.Equal(t, 200, resp.StatusCode)
	}

	var count int64
	require.NoError(t, db.Model(&models.Appointment{}).Count(&count).Error)
	assert.Equal(t, int64(3), count)
}

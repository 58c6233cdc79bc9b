package finances

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"lexportal-backend/internal/models"

	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const testWebhookSecret = "whsec_test_secret"

func setupWebhookTest(t *testing.T) (*fiber.App, *gorm.DB) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Invoice{}, &models.StripeWebhookEvent{}))

	app := fiber.New()
	wh := &WebhookHandler{DB: db, WebhookSecret: testWebhookSecret}
	app.Post("/webhooks/stripe", wh.HandleWebhook)
	return app, db
}

// signPayload builds a valid Stripe-Signature header for the payload.
func signPayload(payload []byte, secret string) string {
	timestamp := fmt.Sprintf("%d", time.Now().Unix())
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp + "." + string(payload)))
	return fmt.Sprintf("t=%s,v1=%s", timestamp, hex.EncodeToString(mac.Sum(nil)))
}

func postStripe(t *testing.T, app *fiber.App, payload []byte, sig string) *http.Response {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	if sig != "" {
		req.Header.Set("Stripe-Signature", sig)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func seedInvoice(t *testing.T, db *gorm.DB, stripeID string) *models.Invoice {
	u := &models.User{FirstName: "C", LastName: "D", Email: stripeID + "@example.com", Role: models.RoleClient, PasswordHash: "x"}
	require.NoError(t, db.Create(u).Error)
	inv := &models.Invoice{
		UserID:          u.UserID,
		AmountCents:     25000,
		Currency:        "USD",
		Status:          models.InvoiceStatusSent,
		StripeInvoiceID: &stripeID,
	}
	require.NoError(t, db.Create(inv).Error)
	return inv
}

func eventPayload(eventID, eventType, stripeInvoiceID, localInvoiceID string) []byte {
	meta := ""
	if localInvoiceID != "" {
		meta = fmt.Sprintf(`, "metadata": {"local_invoice_id": %q}`, localInvoiceID)
	}
	return []byte(fmt.Sprintf(`{
		"id": %q,
		"type": %q,
		"data": {"object": {"id": %q%s}}
	}`, eventID, eventType, stripeInvoiceID, meta))
}

func TestStripeWebhook_MissingSignature(t *testing.T) {
	app, _ := setupWebhookTest(t)

	resp := postStripe(t, app, eventPayload("evt_1", "invoice.paid", "in_1", ""), "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestStripeWebhook_BadSignature(t *testing.T) {
	app, db := setupWebhookTest(t)
	payload := eventPayload("evt_2", "invoice.paid", "in_2", "")

	resp := postStripe(t, app, payload, signPayload(payload, "whsec_wrong"))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var count int64
	require.NoError(t, db.Model(&models.StripeWebhookEvent{}).Count(&count).Error)
	assert.Zero(t, count, "unverified events are never recorded")
}

func TestStripeWebhook_StaleTimestamp(t *testing.T) {
	app, _ := setupWebhookTest(t)
	payload := eventPayload("evt_3", "invoice.paid", "in_3", "")

	timestamp := fmt.Sprintf("%d", time.Now().Add(-10*time.Minute).Unix())
	mac := hmac.New(sha256.New, []byte(testWebhookSecret))
	mac.Write([]byte(timestamp + "." + string(payload)))
	sig := fmt.Sprintf("t=%s,v1=%s", timestamp, hex.EncodeToString(mac.Sum(nil)))

	resp := postStripe(t, app, payload, sig)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestStripeWebhook_InvoicePaid(t *testing.T) {
	app, db := setupWebhookTest(t)
	inv := seedInvoice(t, db, "in_paid_1")
	payload := eventPayload("evt_4", "invoice.paid", "in_paid_1", "")

	resp := postStripe(t, app, payload, signPayload(payload, testWebhookSecret))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var reloaded models.Invoice
	require.NoError(t, db.First(&reloaded, "id = ?", inv.ID).Error)
	assert.Equal(t, models.InvoiceStatusPaid, reloaded.Status)
	assert.True(t, reloaded.Paid)
	assert.NotNil(t, reloaded.PaidAt)
}

func TestStripeWebhook_MetadataIDWins(t *testing.T) {
	app, db := setupWebhookTest(t)
	inv := seedInvoice(t, db, "in_meta_stored")
	payload := eventPayload("evt_5", "invoice.payment_failed", "in_unknown", inv.ID.String())

	resp := postStripe(t, app, payload, signPayload(payload, testWebhookSecret))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var reloaded models.Invoice
	require.NoError(t, db.First(&reloaded, "id = ?", inv.ID).Error)
	assert.Equal(t, models.InvoiceStatusFailed, reloaded.Status)
}

func TestStripeWebhook_DuplicateEvent(t *testing.T) {
	app, db := setupWebhookTest(t)
	inv := seedInvoice(t, db, "in_dup_1")
	payload := eventPayload("evt_6", "invoice.paid", "in_dup_1", "")

	first := postStripe(t, app, payload, signPayload(payload, testWebhookSecret))
	require.Equal(t, http.StatusOK, first.StatusCode)

	require.NoError(t, db.Model(&models.Invoice{}).Where("id = ?", inv.ID).
		Update("status", models.InvoiceStatusSent).Error)

	second := postStripe(t, app, payload, signPayload(payload, testWebhookSecret))
	require.Equal(t, http.StatusOK, second.StatusCode)

	var reloaded models.Invoice
	require.NoError(t, db.First(&reloaded, "id = ?", inv.ID).Error)
	assert.Equal(t, models.InvoiceStatusSent, reloaded.Status, "duplicate deliveries apply nothing")

	var count int64
	require.NoError(t, db.Model(&models.StripeWebhookEvent{}).Where("event_id = ?", "evt_6").Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestStripeWebhook_UnmatchedInvoiceStillAccepted(t *testing.T) {
	app, db := setupWebhookTest(t)
	payload := eventPayload("evt_7", "invoice.paid", "in_nobody", "")

	resp := postStripe(t, app, payload, signPayload(payload, testWebhookSecret))
	assert.Equal(t, http.StatusOK, resp.StatusCode, "unmatched events are acknowledged, not retried forever")

	var count int64
	require.NoError(t, db.Model(&models.StripeWebhookEvent{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

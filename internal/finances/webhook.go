package finances

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"lexportal-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// WebhookHandler ingests Stripe invoice events: signature verification,
// transactional event dedup, then invoice status updates.
type WebhookHandler struct {
	DB            *gorm.DB
	WebhookSecret string
}

type stripeEvent struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

type stripeInvoiceObject struct {
	ID       string            `json:"id"`
	Metadata map[string]string `json:"metadata"`
}

// HandleWebhook POST /webhooks/stripe — raw body, signature check, process.
func (wh *WebhookHandler) HandleWebhook(c *fiber.Ctx) error {
	rawBody := c.BodyRaw()
	sig := c.Get("Stripe-Signature")

	if wh.WebhookSecret == "" {
		log.Error().Msg("Stripe webhook secret not configured")
		return response500(c, "Webhook not configured")
	}
	if len(rawBody) == 0 {
		return c.Status(fiber.StatusBadRequest).SendString("Webhook Error: empty body")
	}
	if err := verifyStripeSignature(rawBody, sig, wh.WebhookSecret); err != nil {
		log.Warn().Err(err).Bool("has_sig", sig != "").Msg("Stripe webhook signature verification failed")
		return c.Status(fiber.StatusBadRequest).SendString(fmt.Sprintf("Webhook Error: %s", err.Error()))
	}

	var event stripeEvent
	if err := json.Unmarshal(rawBody, &event); err != nil {
		log.Warn().Err(err).Msg("Stripe webhook JSON parse failed")
		return c.Status(fiber.StatusBadRequest).SendString(fmt.Sprintf("Webhook Error: %s", err.Error()))
	}
	if event.ID == "" {
		return c.Status(fiber.StatusBadRequest).SendString("Webhook Error: missing event id")
	}

	// Dedup record create is transactional so check-and-create is atomic
	// under concurrent duplicate deliveries; the unique index on event_id is
	// the backstop if the race is lost anyway.
	created := true
	err := wh.DB.Transaction(func(tx *gorm.DB) error {
		var existing models.StripeWebhookEvent
		if err := tx.Where("event_id = ?", event.ID).First(&existing).Error; err == nil {
			created = false
			return nil
		}
		return tx.Create(&models.StripeWebhookEvent{
			EventID:   event.ID,
			EventType: event.Type,
			Payload:   datatypes.JSON(rawBody),
		}).Error
	})
	if err != nil {
		if isUniqueViolation(err) {
			created = false
		} else {
			log.Error().Err(err).Str("event_id", event.ID).Msg("Stripe webhook dedup failed")
			return response500(c, "webhook processing failed")
		}
	}
	if !created {
		log.Info().Str("event_id", event.ID).Msg("Duplicate Stripe event received")
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "duplicate"})
	}

	switch event.Type {
	case "invoice.paid", "invoice.payment_failed", "invoice.voided":
		if err := wh.applyInvoiceEvent(event.Type, event.Data.Object); err != nil {
			log.Warn().Err(err).Str("event_id", event.ID).Msg("Stripe invoice event not applied")
		}
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "ok"})
}

// applyInvoiceEvent resolves the local invoice (metadata id first, stored
// Stripe id second) and moves it to the status the event implies.
func (wh *WebhookHandler) applyInvoiceEvent(eventType string, object json.RawMessage) error {
	var obj stripeInvoiceObject
	if err := json.Unmarshal(object, &obj); err != nil {
		return err
	}

	var invoice models.Invoice
	found := false
	if localID := firstNonEmpty(obj.Metadata["local_invoice_id"], obj.Metadata["invoice_id"]); localID != "" {
		if err := wh.DB.Where("id = ?", localID).First(&invoice).Error; err == nil {
			found = true
		}
	}
	if !found && obj.ID != "" {
		if err := wh.DB.Where("stripe_invoice_id = ?", obj.ID).First(&invoice).Error; err == nil {
			found = true
		}
	}
	if !found {
		return errors.New("no matching local invoice")
	}

	updates := map[string]interface{}{}
	switch eventType {
	case "invoice.paid":
		updates["status"] = models.InvoiceStatusPaid
		updates["paid"] = true
		updates["paid_at"] = time.Now()
	case "invoice.payment_failed":
		updates["status"] = models.InvoiceStatusFailed
	case "invoice.voided":
		updates["status"] = models.InvoiceStatusVoided
	}
	return wh.DB.Model(&models.Invoice{}).Where("id = ?", invoice.ID).Updates(updates).Error
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
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

func response500(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": msg})
}

// verifyStripeSignature verifies the Stripe-Signature header using the
// webhook secret (t=timestamp, v1=hmac-sha256 of "timestamp.payload").
func verifyStripeSignature(payload []byte, sigHeader, secret string) error {
	if sigHeader == "" || secret == "" {
		return errors.New("missing signature or secret")
	}

	var timestamp string
	var signatures []string
	for _, part := range strings.Split(sigHeader, ",") {
		kv := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch kv[0] {
		case "t":
			timestamp = kv[1]
		case "v1":
			signatures = append(signatures, kv[1])
		}
	}
	if timestamp == "" || len(signatures) == 0 {
		return errors.New("invalid signature format")
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp + "." + string(payload)))
	expectedSig := hex.EncodeToString(mac.Sum(nil))

	for _, sig := range signatures {
		if hmac.Equal([]byte(sig), []byte(expectedSig)) {
			ts, err := strconv.ParseInt(timestamp, 10, 64)
			if err != nil {
				return errors.New("invalid timestamp")
			}
			diff := time.Now().Unix() - ts
			if diff < 0 {
				diff = -diff
			}
			if diff > 300 {
				return errors.New("timestamp too old")
			}
			return nil
		}
	}
	return errors.New("signature mismatch")
}

package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const brevoAPI = "https://api.brevo.com/v3/smtp/email"

// Emailer sends one transactional email. Nil means email is disabled.
type Emailer interface {
	Send(ctx context.Context, toEmail, toName, subject, html string) error
}

// BrevoClient sends transactional email via the Brevo API.
type BrevoClient struct {
	APIKey   string
	MailFrom string
	FromName string
	Client   *http.Client
}

type brevoSendRequest struct {
	Sender  brevoAddress   `json:"sender"`
	To      []brevoAddress `json:"to"`
	Subject string         `json:"subject"`
	HTML    string         `json:"htmlContent"`
}

type brevoAddress struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

func (c *BrevoClient) Send(ctx context.Context, toEmail, toName, subject, html string) error {
	if c.APIKey == "" {
		return nil
	}
	body := brevoSendRequest{
		Sender:  brevoAddress{Email: c.MailFrom, Name: c.FromName},
		To:      []brevoAddress{{Email: toEmail, Name: toName}},
		Subject: subject,
		HTML:    html,
	}
	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, brevoAPI, bytes.NewReader(bodyBytes))
	if err != nil {
		return err
	}
	req.Header.Set("api-key", c.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.Client == nil {
		c.Client = &http.Client{Timeout: 15 * time.Second}
	}
	resp, err := c.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("brevo send failed: status %d", resp.StatusCode)
	}
	return nil
}

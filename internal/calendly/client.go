package calendly

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"lexportal-backend/internal/models"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

const (
	oauthAuthorizeURL = "https://auth.calendly.com/oauth/authorize"
	oauthTokenURL     = "https://auth.calendly.com/oauth/token"
)

// ErrNoCredentials means the integration is enabled but no usable access
// token could be found. Callers downgrade this to a warning outcome.
var ErrNoCredentials = errors.New("calendly: no access token configured")

// Config is the injected integration configuration. Handlers and services
// receive it explicitly so tests can vary it per call.
type Config struct {
	Enabled      bool
	AccessToken  string // static override; DB-cached token used when empty
	ClientID     string
	ClientSecret string
}

// Client talks to the Calendly API. DB holds the cached OAuth token rows.
type Client struct {
	Config Config
	DB     *gorm.DB
	HTTP   *http.Client
}

func (c *Client) httpClient() *http.Client {
	if c.HTTP == nil {
		c.HTTP = &http.Client{Timeout: 15 * time.Second}
	}
	return c.HTTP
}

// Enabled reports whether outbound Calendly calls are administratively on.
func (c *Client) Enabled() bool {
	return c.Config.Enabled
}

// TokenResponse is the OAuth token endpoint response body.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	Scope        string `json:"scope"`
	ExpiresIn    int    `json:"expires_in"`
}

// AuthorizeURL builds the OAuth authorize redirect target.
func (c *Client) AuthorizeURL(redirectURI, state string) string {
	params := url.Values{}
	params.Set("client_id", c.Config.ClientID)
	params.Set("redirect_uri", redirectURI)
	params.Set("response_type", "code")
	if state != "" {
		params.Set("state", state)
	}
	return oauthAuthorizeURL + "?" + params.Encode()
}

// ExchangeCode trades an authorization code for a token.
func (c *Client) ExchangeCode(ctx context.Context, code, redirectURI string) (*TokenResponse, error) {
	return c.tokenRequest(ctx, url.Values{
		"grant_type":    {"authorization_code"},
		"client_id":     {c.Config.ClientID},
		"client_secret": {c.Config.ClientSecret},
		"code":          {code},
		"redirect_uri":  {redirectURI},
	})
}

// RefreshAccessToken trades a refresh token for a fresh access token.
func (c *Client) RefreshAccessToken(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	return c.tokenRequest(ctx, url.Values{
		"grant_type":    {"refresh_token"},
		"client_id":     {c.Config.ClientID},
		"client_secret": {c.Config.ClientSecret},
		"refresh_token": {refreshToken},
	})
}

func (c *Client) tokenRequest(ctx context.Context, form url.Values) (*TokenResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, oauthTokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("calendly token request failed: status %d", resp.StatusCode)
	}
	var tr TokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return nil, err
	}
	return &tr, nil
}

// StoreToken persists a token response as a new row (best effort; the latest
// row by updated_at wins on lookup).
func (c *Client) StoreToken(ctx context.Context, tr *TokenResponse) error {
	tok := models.CalendlyOAuthToken{
		AccessToken: tr.AccessToken,
		TokenType:   tr.TokenType,
	}
	if tok.TokenType == "" {
		tok.TokenType = "Bearer"
	}
	if tr.RefreshToken != "" {
		rt := tr.RefreshToken
		tok.RefreshToken = &rt
	}
	if tr.Scope != "" {
		s := tr.Scope
		tok.Scope = &s
	}
	if tr.ExpiresIn > 0 {
		exp := time.Now().Add(time.Duration(tr.ExpiresIn) * time.Second)
		tok.ExpiresAt = &exp
	}
	return c.DB.WithContext(ctx).Create(&tok).Error
}

// accessToken resolves a credential: static config token first, then the
// most recently updated DB row, refreshing it when expired (best effort —
// a failed refresh falls back to the stale token).
func (c *Client) accessToken(ctx context.Context) (string, error) {
	if c.Config.AccessToken != "" {
		return c.Config.AccessToken, nil
	}
	if c.DB == nil {
		return "", ErrNoCredentials
	}
	var tok models.CalendlyOAuthToken
	err := c.DB.WithContext(ctx).Order("updated_at DESC").First(&tok).Error
	if err != nil || tok.AccessToken == "" {
		return "", ErrNoCredentials
	}
	if tok.ExpiresAt != nil && !tok.ExpiresAt.After(time.Now()) && tok.RefreshToken != nil {
		tr, err := c.RefreshAccessToken(ctx, *tok.RefreshToken)
		if err != nil {
			log.Warn().Err(err).Msg("Calendly token refresh failed; using stale token")
			return tok.AccessToken, nil
		}
		if err := c.StoreToken(ctx, tr); err != nil {
			log.Warn().Err(err).Msg("Failed to persist refreshed Calendly token")
		}
		if tr.AccessToken != "" {
			return tr.AccessToken, nil
		}
	}
	return tok.AccessToken, nil
}

// CancelScheduledEvent cancels a Calendly event by POSTing to the event's
// cancellation sub-resource. The caller decides how failures surface; this
// only reports them.
func (c *Client) CancelScheduledEvent(ctx context.Context, eventURI, reason string) error {
	if eventURI == "" {
		return errors.New("calendly: empty event uri")
	}
	token, err := c.accessToken(ctx)
	if err != nil {
		return err
	}
	if reason == "" {
		reason = "Cancelled by admin"
	}
	body, err := json.Marshal(map[string]string{"reason": reason})
	if err != nil {
		return err
	}
	cancelURL := strings.TrimRight(eventURI, "/") + "/cancellation"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cancelURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("calendly cancel returned status %d", resp.StatusCode)
	}
	log.Info().Str("event_uri", eventURI).Msg("Calendly event cancelled via API")
	return nil
}

package config

import (
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config holds application configuration (env + Viper).
type Config struct {
	Env           string
	Port          string
	SessionSecret string
	DatabaseURL   string
	RedisURL      string

	// Calendly integration. CalendlyAPIEnabled gates all outbound Calendly
	// calls; when false the portal still records bookings from webhooks but
	// never calls back out (pre-launch mode).
	CalendlyAPIEnabled     bool
	CalendlyAccessToken    string // static token override; DB token used when empty
	CalendlyClientID       string
	CalendlyClientPassword string

	StripeSecretKey     string
	StripeWebhookSecret string

	BrevoAPIKey string // transactional email (appointment notices)
	MailFrom    string

	FrontendURLEndsWith string
	AllowCrossSiteDev   bool
}

// Load loads config from env and optional .env file.
func Load() (*Config, error) {
	viper.SetConfigFile(".env")
	_ = viper.ReadInConfig()

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	port := viper.GetString("PORT")
	if port == "" {
		port = "8080"
	}
	env := viper.GetString("APP_ENV")
	if env == "" {
		env = "development"
	}

	dbURL := viper.GetString("DATABASE_URL")
	if dbURL == "" {
		dbURL = os.Getenv("DATABASE_URL")
	}

	return &Config{
		Env:           env,
		Port:          port,
		SessionSecret: viper.GetString("SESSION_SECRET"),
		DatabaseURL:   dbURL,
		RedisURL:      viper.GetString("REDIS_URL"),

		CalendlyAPIEnabled:     truthy(viper.GetString("CALENDLY_API_ENABLED")),
		CalendlyAccessToken:    viper.GetString("CALENDLY_ACCESS_TOKEN"),
		CalendlyClientID:       viper.GetString("CALENDLY_CLIENT_ID"),
		CalendlyClientPassword: viper.GetString("CALENDLY_CLIENT_PASSWORD"),

		StripeSecretKey:     viper.GetString("STRIPE_SECRET_KEY"),
		StripeWebhookSecret: viper.GetString("STRIPE_WEBHOOK_SECRET"),

		BrevoAPIKey: viper.GetString("BREVO_API_KEY"),
		MailFrom:    viper.GetString("MAIL_FROM"),

		FrontendURLEndsWith: viper.GetString("FRONTEND_URL_ENDS_WITH"),
		AllowCrossSiteDev:   strings.EqualFold(viper.GetString("ALLOW_CROSS_SITE_DEV"), "true"),
	}, nil
}

// truthy matches the original flag parsing: 1/true/yes/y/on (any case).
func truthy(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "y", "on":
		return true
	}
	return false
}

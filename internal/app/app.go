package app

import (
	"lexportal-backend/internal/appointments"
	"lexportal-backend/internal/auth"
	"lexportal-backend/internal/calendly"
	"lexportal-backend/internal/config"
	"lexportal-backend/internal/database"
	"lexportal-backend/internal/finances"
	"lexportal-backend/internal/health"
	"lexportal-backend/internal/middleware"
	"lexportal-backend/internal/notifications"
	"lexportal-backend/internal/sitecontent"
	"lexportal-backend/internal/users"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// CreateApp builds the Fiber app with all global middleware and route
// registration. Returns the DB and Redis handles for startup checks.
func CreateApp(cfg *config.Config) (*fiber.App, *gorm.DB, *redis.Client, error) {
	app := fiber.New(fiber.Config{
		DisableStartupMessage:   true,
		ErrorHandler:            middleware.ErrorHandler,
		EnableTrustedProxyCheck: true,
	})

	app.Use(middleware.CORS(middleware.CORSConfig{
		AllowedSuffix:     cfg.FrontendURLEndsWith,
		AllowCrossSiteDev: cfg.AllowCrossSiteDev,
	}))

	var db *gorm.DB
	if cfg.DatabaseURL != "" {
		var err error
		db, err = database.Open(cfg.DatabaseURL)
		if err != nil {
			return nil, nil, nil, err
		}
	}

	notifier := &notifications.Service{
		DB: db,
		Emailer: &notifications.BrevoClient{
			APIKey:   cfg.BrevoAPIKey,
			MailFrom: cfg.MailFrom,
			FromName: "Law Office",
		},
	}

	// Webhooks mount before the session middleware: the senders are
	// machines, not browsers, and must not touch session state.
	calendlyWebhook := &appointments.WebhookHandler{DB: db, Notifier: notifier}
	app.Post("/webhooks/calendly", calendlyWebhook.HandleCalendlyWebhook)

	stripeWebhook := &finances.WebhookHandler{DB: db, WebhookSecret: cfg.StripeWebhookSecret}
	app.Post("/webhooks/stripe", stripeWebhook.HandleWebhook)

	sessionCfg := middleware.SessionConfig{
		Secret:            cfg.SessionSecret,
		RedisURL:          cfg.RedisURL,
		AllowCrossSiteDev: cfg.AllowCrossSiteDev,
		IsProduction:      cfg.Env == "production",
	}
	sessionHandler, rdb, err := middleware.Session(sessionCfg)
	if err != nil {
		return nil, nil, nil, err
	}
	app.Use(sessionHandler)
	app.Use(middleware.RequestID())
	app.Use(middleware.RouteLogger())

	healthHandlers := &health.Handlers{DB: db, Rdb: rdb}
	app.Get("/health/json", healthHandlers.JSON)

	var userFinder auth.UserFinder
	if db != nil {
		userFinder = &auth.GormUserFinder{DB: db}
	}
	authHandlers := &auth.Handlers{UserFinder: userFinder, Rdb: rdb, Config: sessionCfg}
	authGroup := app.Group("/api/v1/auth")
	authGroup.Post("/login", authHandlers.Login)
	authGroup.Get("/me", authHandlers.Me)
	authGroup.Delete("/logout", authHandlers.Logout)

	if db == nil {
		return app, db, rdb, nil
	}

	calendlyClient := &calendly.Client{
		Config: calendly.Config{
			Enabled:      cfg.CalendlyAPIEnabled,
			AccessToken:  cfg.CalendlyAccessToken,
			ClientID:     cfg.CalendlyClientID,
			ClientSecret: cfg.CalendlyClientPassword,
		},
		DB: db,
	}

	// Appointments module (admin lifecycle operations)
	apptService := &appointments.Service{DB: db, Calendly: calendlyClient, Notifier: notifier}
	apptHandlers := &appointments.Handlers{Service: apptService}
	apptGroup := app.Group("/api/v1/appointments", middleware.RequireAdmin())
	apptGroup.Get("/", apptHandlers.List)
	apptGroup.Post("/:id/cancel", apptHandlers.Cancel)
	apptGroup.Post("/:id/status", apptHandlers.UpdateStatus)

	// Calendly OAuth connect (admin)
	oauthHandlers := &calendly.OAuthHandlers{Client: calendlyClient, BaseURL: "https://portal.local"}
	if cfg.FrontendURLEndsWith != "" {
		oauthHandlers.BaseURL = "https://portal" + cfg.FrontendURLEndsWith
	}
	oauthGroup := app.Group("/api/v1/calendly/oauth", middleware.RequireAdmin())
	oauthGroup.Get("/start", oauthHandlers.Start)
	oauthGroup.Get("/callback", oauthHandlers.Callback)

	// Users module
	financeService := &finances.Service{DB: db}
	userService := &users.Service{DB: db}
	userHandlers := &users.Handlers{Service: userService, Appointments: apptService, Finances: financeService}
	userGroup := app.Group("/api/v1/users", middleware.RequireAuth())
	userGroup.Get("/dashboard", userHandlers.Dashboard)
	userGroup.Post("/", middleware.RequireAdmin(), userHandlers.CreateUser)
	userGroup.Get("/:id", middleware.RequireAdmin(), userHandlers.ViewUser)

	// Finances module
	financeHandlers := &finances.Handlers{Service: financeService}
	invoiceGroup := app.Group("/api/v1/invoices", middleware.RequireAuth())
	invoiceGroup.Get("/mine", financeHandlers.MyInvoices)
	invoiceGroup.Post("/", middleware.RequireAdmin(), financeHandlers.CreateInvoice)

	// Site content module
	contentService := &sitecontent.Service{DB: db}
	contentHandlers := &sitecontent.Handlers{Service: contentService}
	app.Get("/api/v1/content", contentHandlers.Latest)
	app.Post("/api/v1/content", middleware.RequireAdmin(), contentHandlers.Publish)

	return app, db, rdb, nil
}

package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/preop/preop/internal/config"
	"github.com/preop/preop/internal/domain/admin"
	"github.com/preop/preop/internal/domain/consentform"
	"github.com/preop/preop/internal/domain/patient"
	"github.com/preop/preop/internal/domain/preop"
	"github.com/preop/preop/internal/domain/professional"
	"github.com/preop/preop/internal/platform/ai"
	"github.com/preop/preop/internal/platform/apperr"
	"github.com/preop/preop/internal/platform/auth"
	"github.com/preop/preop/internal/platform/db"
	"github.com/preop/preop/internal/platform/middleware"
	"github.com/preop/preop/internal/platform/notification"
	"github.com/preop/preop/internal/platform/validate"
)

const version = "0.1.0"

func newLogger(env string) zerolog.Logger {
	if env == "development" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

// newMailer returns nil when SMTP is not fully configured.
func newMailer(cfg *config.Config) notification.EmailSender {
	if !cfg.MailEnabled() {
		return nil
	}
	return notification.NewSMTPSender(notification.SMTPConfig{
		Host:     cfg.EmailHost,
		Port:     cfg.EmailPort,
		User:     cfg.EmailUser,
		Password: cfg.EmailPass,
		From:     cfg.EmailFrom,
		FromName: cfg.EmailFromName,
	})
}

// app holds the wired services of one server process.
type app struct {
	admin         *admin.Service
	professionals *professional.Service
	forms         *consentform.Service
	patients      *patient.Service
	preop         *preop.Service
	reminders     notification.Store
	mailer        notification.EmailSender
	templates     *notification.TemplateEngine
}

func newApp(cfg *config.Config, pool *pgxpool.Pool, logger zerolog.Logger) *app {
	passwords := auth.NewBcryptVerifier()
	tokens := auth.NewTokenIssuer(cfg.JWTIssuer, cfg.SigningKey(), cfg.TokenTTL)
	withTx := db.Transactor(pool)

	a := &app{
		mailer:    newMailer(cfg),
		templates: notification.NewTemplateEngine(),
		reminders: notification.NewStorePG(pool),
	}

	patientRepo := patient.NewRepo(pool)
	a.admin = admin.NewService(admin.NewAdminRepo(pool), admin.NewProviderRepo(pool), passwords, tokens)
	a.professionals = professional.NewService(professional.NewRepo(pool), passwords, tokens, withTx)
	a.forms = consentform.NewService(consentform.NewRepo(pool))
	a.patients = patient.NewService(patientRepo, a.forms, a.professionals, tokens, patient.Options{
		ActionWindow:  cfg.ActionWindow,
		PublicBaseURL: cfg.PublicBaseURL,
		Mailer:        a.mailer,
		Templates:     a.templates,
		Logger:        logger,
	})

	suggester := ai.NewClient(ai.Config{
		APIKey:  cfg.GeminiAPIKey,
		Model:   cfg.GeminiModel,
		BaseURL: cfg.GeminiBaseURL,
	})
	a.preop = preop.NewService(preop.NewRepo(pool), patientRepo,
		notification.NewScheduler(a.reminders), suggester, logger)
	return a
}

// newEcho builds the HTTP server: global middleware, health checks and every
// domain's routes under /api.
func newEcho(cfg *config.Config, pool *pgxpool.Pool, a *app, logger zerolog.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = validate.New()
	e.HTTPErrorHandler = apperr.HTTPErrorHandler(logger)

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))
	e.Use(middleware.SecurityHeaders())
	e.Use(middleware.BodyLimit(cfg.BodyLimit))
	e.Use(middleware.RequestTimeout(cfg.RequestTimeout, "/api/ai/"))

	// Auth middleware
	jwtCfg := auth.JWTConfig{
		Issuer:     cfg.JWTIssuer,
		SigningKey: cfg.SigningKey(),
		Skipper:    auth.AuthSkipper,
	}
	if cfg.IsDev() {
		logger.Warn().Str("env", cfg.Env).
			Msg("DEVELOPMENT AUTH ENABLED: requests without a bearer token act as admin; never expose this server")
		e.Use(auth.DevAuthMiddleware(jwtCfg))
	} else {
		e.Use(auth.JWTMiddleware(jwtCfg))
	}

	e.Use(middleware.Audit(logger))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version,
		})
	})
	if pool != nil {
		e.GET("/health/db", db.HealthHandler(pool))
	}

	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}
	api := e.Group("/api", middleware.RateLimit(rateLimitCfg))
	loginLimit := middleware.RateLimit(middleware.LoginRateLimitConfig())

	admin.NewHandler(a.admin).RegisterRoutes(api, loginLimit)
	professional.NewHandler(a.professionals).RegisterRoutes(api, loginLimit)
	consentform.NewHandler(a.forms).RegisterRoutes(api)
	patient.NewHandler(a.patients).RegisterRoutes(api, loginLimit)
	preop.NewHandler(a.preop).RegisterRoutes(api)

	return e
}

func runServer() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := newLogger(cfg.Env)
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	// Database
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	a := newApp(cfg, pool, logger)
	e := newEcho(cfg, pool, a, logger)

	// Reminder delivery
	var dispatcher *notification.Dispatcher
	if a.mailer != nil {
		dispatcher = notification.NewDispatcher(a.reminders, a.mailer, a.templates,
			notification.DispatcherConfig{
				Schedule:    cfg.NotifyCron,
				BatchSize:   cfg.NotifyBatch,
				MaxAttempts: cfg.NotifyMaxAttempts,
			}, logger)
		if err := dispatcher.Start(); err != nil {
			logger.Fatal().Err(err).Msg("failed to start reminder dispatcher")
		}
	} else {
		logger.Warn().Msg("SMTP not configured: reminders are stored but not delivered, consent emails are disabled")
	}
	if !cfg.AIEnabled() {
		logger.Warn().Msg("GEMINI_API_KEY not set: medication suggestions are disabled")
	}

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
	}
	if dispatcher != nil {
		dispatcher.Stop(shutdownCtx)
	}
	logger.Info().Msg("server stopped")
	return nil
}

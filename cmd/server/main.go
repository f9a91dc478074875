package main

import (
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	sentryfiber "github.com/getsentry/sentry-go/fiber"

	"github.com/ahmetcoskunkizilkaya/restaurant-portal/internal/access"
	"github.com/ahmetcoskunkizilkaya/restaurant-portal/internal/backend"
	"github.com/ahmetcoskunkizilkaya/restaurant-portal/internal/config"
	"github.com/ahmetcoskunkizilkaya/restaurant-portal/internal/database"
	"github.com/ahmetcoskunkizilkaya/restaurant-portal/internal/dto"
	"github.com/ahmetcoskunkizilkaya/restaurant-portal/internal/handlers"
	"github.com/ahmetcoskunkizilkaya/restaurant-portal/internal/jobs"
	"github.com/ahmetcoskunkizilkaya/restaurant-portal/internal/logging"
	"github.com/ahmetcoskunkizilkaya/restaurant-portal/internal/middleware"
	"github.com/ahmetcoskunkizilkaya/restaurant-portal/internal/payment"
	"github.com/ahmetcoskunkizilkaya/restaurant-portal/internal/routes"
	"github.com/ahmetcoskunkizilkaya/restaurant-portal/internal/sessionstore"
	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
)

func main() {
	// Structured logging (JSON to stdout)
	logging.Setup()

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	sealer, err := sessionstore.NewSealer(cfg.SessionSecret)
	if err != nil {
		slog.Error("invalid SESSION_SECRET", "error", err)
		os.Exit(1)
	}

	// Session store
	var store sessionstore.Store
	var dbLogHandler *logging.DBHandler
	switch cfg.StoreDriver {
	case config.StoreDriverPostgres:
		if err := database.Connect(cfg); err != nil {
			slog.Error("database connection failed", "error", err)
			os.Exit(1)
		}
		if err := database.Migrate(); err != nil {
			slog.Error("migration failed", "error", err)
			os.Exit(1)
		}
		store = sessionstore.NewGormStore(database.DB)

		// PostgreSQL log handler (ERROR+ async batch)
		dbLogHandler = logging.NewDBHandler(database.DB)
		slog.SetDefault(slog.New(logging.NewMultiHandler(
			logging.NewJSONHandler(os.Stdout),
			dbLogHandler,
		)))
	default:
		slog.Warn("using in-memory session store; sessions are lost on restart")
		store = sessionstore.NewMemoryStore()
	}

	// Scheduled jobs: idle session purge, log retention
	scheduler := jobs.NewScheduler(
		jobs.NewJobs(store, database.DB, cfg.SessionIdleTimeout, slog.Default()),
		jobs.Schedules{SessionPurge: cfg.SessionPurgeSchedule, LogCleanup: cfg.LogCleanupSchedule},
		slog.Default(),
	)
	scheduler.Start()

	// Backend client and domain services
	client := backend.NewClient(cfg.APIBaseURL, cfg.APITimeout)
	checker := access.NewChecker(client)
	plan := payment.Plan{Amount: cfg.PlanAmount, Currency: cfg.PlanCurrency}
	initiator := payment.NewInitiator(client, plan, cfg.AlreadyActiveRedirectDelay, slog.Default())

	// Handlers
	authHandler := handlers.NewAuthHandler(client)
	healthHandler := handlers.NewHealthHandler(cfg.StoreDriver)
	sessionHandler := handlers.NewSessionHandler()
	subscribeHandler := handlers.NewSubscribeHandler(client, initiator, plan)
	pendingHandler := handlers.NewPendingHandler(client, cfg.PollInterval, time.Second)
	callbackHandler := handlers.NewPaymentCallbackHandler(client)
	billingHandler := handlers.NewBillingHandler(client)

	// Sentry error tracking
	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			EnableTracing:    true,
			TracesSampleRate: 0.2,
			Environment:      cfg.AppEnv,
		}); err != nil {
			slog.Error("sentry init failed", "error", err)
		} else {
			defer sentry.Flush(2 * time.Second)
		}
	}

	// Fiber app
	app := fiber.New(fiber.Config{
		BodyLimit:    1 * 1024 * 1024,
		ErrorHandler: customErrorHandler,
	})

	// Sentry middleware
	app.Use(sentryfiber.New(sentryfiber.Options{
		Repanic:         true,
		WaitForDelivery: false,
	}))

	// Global middleware
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		Format: "${time} | ${status} | ${latency} | ${ip} | ${method} | ${path}\n",
	}))
	app.Use(middleware.CORS(cfg))
	app.Use(func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("Referrer-Policy", "same-origin")
		return c.Next()
	})

	// Routes
	routes.Setup(app, cfg.StaticDir, middleware.SessionConfig{
		Store:       store,
		Sealer:      sealer,
		CookieName:  cfg.SessionCookieName,
		IdleTimeout: cfg.SessionIdleTimeout,
		Secure:      cfg.CookieSecure,
	}, checker, authHandler, healthHandler, sessionHandler, subscribeHandler, pendingHandler, callbackHandler, billingHandler)

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("server starting", "port", cfg.Port, "backend", cfg.APIBaseURL, "store", cfg.StoreDriver)
		if err := app.Listen(":" + cfg.Port); err != nil {
			slog.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	<-quit
	slog.Info("shutting down server...")

	<-scheduler.Stop().Done()
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		slog.Error("server shutdown error", "error", err)
	}
	if dbLogHandler != nil {
		dbLogHandler.Stop()
	}
	sentry.Flush(2 * time.Second)

	if err := database.Close(); err != nil {
		slog.Error("database close error", "error", err)
	}

	slog.Info("server stopped")
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal server error"
	var e *fiber.Error
	if errors.As(err, &e) {
		code = e.Code
		message = e.Message
	}

	// Only expose error details for client errors (4xx), not server errors (5xx)
	if code >= 500 {
		slog.Error("unhandled server error", "method", c.Method(), "path", c.Path(), "request_id", c.GetRespHeader(fiber.HeaderXRequestID), "error", err.Error())
		if hub := sentryfiber.GetHubFromContext(c); hub != nil {
			hub.CaptureException(err)
		}
		if code != fiber.StatusServiceUnavailable {
			message = "Internal server error"
		}
	}

	return c.Status(code).JSON(dto.ErrorResponse{
		Error:   true,
		Message: message,
	})
}

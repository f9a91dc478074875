package routes

import (
	"path/filepath"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/ahmetcoskunkizilkaya/restaurant-portal/internal/access"
	"github.com/ahmetcoskunkizilkaya/restaurant-portal/internal/handlers"
	"github.com/ahmetcoskunkizilkaya/restaurant-portal/internal/middleware"
)

// Setup registers the portal routes. Routes registered before the access
// gate answer without it; everything after it is a gated page.
func Setup(
	app *fiber.App,
	staticDir string,
	sessionCfg middleware.SessionConfig,
	checker *access.Checker,
	authHandler *handlers.AuthHandler,
	healthHandler *handlers.HealthHandler,
	sessionHandler *handlers.SessionHandler,
	subscribeHandler *handlers.SubscribeHandler,
	pendingHandler *handlers.PendingHandler,
	callbackHandler *handlers.PaymentCallbackHandler,
	billingHandler *handlers.BillingHandler,
) {
	// Health (no session)
	app.Get("/health", healthHandler.Check)

	app.Use(middleware.Session(sessionCfg))

	// Login rate limit: 10 req/min per IP
	loginLimiter := limiter.New(limiter.Config{
		Max:               10,
		Expiration:        1 * time.Minute,
		LimiterMiddleware: limiter.SlidingWindow{},
		KeyGenerator:      func(c *fiber.Ctx) string { return c.IP() },
	})

	app.Get("/login", authHandler.LoginPage)
	app.Post("/login", loginLimiter, authHandler.Login)
	app.Post("/logout", authHandler.Logout)

	app.Get("/subscribe", subscribeHandler.Page)
	app.Post("/subscribe/pay", subscribeHandler.Pay)
	app.Post("/subscribe/manual", subscribeHandler.Manual)

	// Gateway callbacks
	app.Get("/payment/success", callbackHandler.Success)
	app.Get("/payment/failure", callbackHandler.Failure)
	app.Get("/payment/pending/events", middleware.SessionRequired(), pendingHandler.Events)

	// SPA JSON API
	app.Get("/portal/api/session", sessionHandler.Get)
	api := app.Group("/portal/api", limiter.New(limiter.Config{
		Max:               60,
		Expiration:        1 * time.Minute,
		LimiterMiddleware: limiter.SlidingWindow{},
		KeyGenerator:      func(c *fiber.Ctx) string { return c.IP() },
	}), middleware.SessionRequired())

	billing := api.Group("/billing")
	billing.Get("/subscription", billingHandler.Subscription)
	billing.Get("/payment-history", billingHandler.PaymentHistory)
	billing.Get("/billing-history", billingHandler.BillingHistory)
	billing.Get("/refund-requests", billingHandler.RefundRequests)
	billing.Post("/refund-requests", billingHandler.CreateRefundRequest)

	// Gated pages
	app.Use(middleware.AccessGate(checker))
	app.Get(access.PathPending, pendingHandler.Page)

	app.Static("/", staticDir, fiber.Static{Index: "index.html"})
	index := filepath.Join(staticDir, "index.html")
	app.Get("/*", func(c *fiber.Ctx) error {
		c.Set(fiber.HeaderCacheControl, "no-store")
		return c.SendFile(index)
	})
}

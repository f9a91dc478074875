package middleware

import (
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/ahmetcoskunkizilkaya/restaurant-portal/internal/sessionstore"
)

const (
	localSession   = "session"
	localPrincipal = "principal"

	IdleExpiredMessage = "Your session expired. Please sign in again."
)

type SessionConfig struct {
	Store       sessionstore.Store
	Sealer      *sessionstore.Sealer
	CookieName  string
	IdleTimeout time.Duration
	Secure      bool
	// Now is replaced in tests.
	Now func() time.Time
}

// Session binds the browser's session cookie to a sessionstore.Session and
// loads its principal. Sessions idle past the timeout are logged out first.
func Session(cfg SessionConfig) fiber.Handler {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return func(c *fiber.Ctx) error {
		id := c.Cookies(cfg.CookieName)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		c.Cookie(&fiber.Cookie{
			Name:     cfg.CookieName,
			Value:    id,
			Path:     "/",
			HTTPOnly: true,
			Secure:   cfg.Secure,
			SameSite: fiber.CookieSameSiteLaxMode,
		})

		ctx := c.UserContext()
		sess := sessionstore.New(id, cfg.Store, cfg.Sealer)

		expired, err := sess.ExpireIfIdle(ctx, cfg.Now(), cfg.IdleTimeout)
		if err != nil {
			slog.Error("session load failed", "session_id", id, "path", c.Path(), "error", err)
			return fiber.NewError(fiber.StatusServiceUnavailable, "Session store unavailable")
		}
		if expired {
			slog.Info("session expired", "session_id", id)
			if err := sess.SetFlash(ctx, IdleExpiredMessage); err != nil {
				slog.Warn("failed to set flash", "session_id", id, "error", err)
			}
		}

		principal, err := sess.Principal(ctx)
		if err != nil {
			slog.Error("session load failed", "session_id", id, "path", c.Path(), "error", err)
			return fiber.NewError(fiber.StatusServiceUnavailable, "Session store unavailable")
		}

		c.Locals(localSession, sess)
		c.Locals(localPrincipal, principal)
		return c.Next()
	}
}

// CurrentSession returns the session bound by Session, or nil.
func CurrentSession(c *fiber.Ctx) *sessionstore.Session {
	sess, _ := c.Locals(localSession).(*sessionstore.Session)
	return sess
}

// CurrentPrincipal returns the logged-in principal, or nil.
func CurrentPrincipal(c *fiber.Ctx) *sessionstore.Principal {
	p, _ := c.Locals(localPrincipal).(*sessionstore.Principal)
	return p
}

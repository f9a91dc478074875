package middleware

import (
	"log/slog"
	"path"

	"github.com/gofiber/fiber/v2"

	"github.com/ahmetcoskunkizilkaya/restaurant-portal/internal/access"
)

// AccessGate runs the access check on every page navigation and redirects
// when the session may not open the page. Static assets are not gated.
func AccessGate(checker *access.Checker) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Method() != fiber.MethodGet && c.Method() != fiber.MethodHead {
			return c.Next()
		}
		p := c.Path()
		if checker.Skips(p) || path.Ext(p) != "" {
			return c.Next()
		}

		sess := CurrentSession(c)
		if sess == nil {
			return fiber.NewError(fiber.StatusInternalServerError, "session middleware not installed")
		}
		principal := CurrentPrincipal(c)

		d := checker.Check(c.UserContext(), access.Request{
			SessionID: sess.ID(),
			Path:      p,
			ReturnTo:  c.OriginalURL(),
			Principal: principal,
		})
		if d.Allowed() {
			return c.Next()
		}

		if d.Outcome == access.EmployeeDenied && !d.Stale {
			if err := sess.ForceLogout(c.UserContext()); err != nil {
				slog.Error("forced logout failed", "session_id", sess.ID(), "error", err)
			}
		}

		slog.Info("access denied",
			"session_id", sess.ID(),
			principal.LogAttr(),
			"path", p,
			"action", string(d.Outcome),
			"stale", d.Stale,
		)
		return c.Redirect(d.Location, fiber.StatusFound)
	}
}

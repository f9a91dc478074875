package handlers

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"github.com/ahmetcoskunkizilkaya/restaurant-portal/internal/dto"
	"github.com/ahmetcoskunkizilkaya/restaurant-portal/internal/middleware"
)

type SessionHandler struct{}

func NewSessionHandler() *SessionHandler {
	return &SessionHandler{}
}

// Get reports the current principal and consumes the one-shot UI flags.
func (h *SessionHandler) Get(c *fiber.Ctx) error {
	ctx := c.UserContext()
	sess := middleware.CurrentSession(c)
	principal := middleware.CurrentPrincipal(c)

	resp := dto.SessionResponse{Authenticated: principal != nil}
	if principal != nil {
		p := &dto.PrincipalResponse{
			Namespace:  string(principal.Namespace),
			Subject:    principal.Subject(),
			IsEmployee: principal.IsEmployee(),
		}
		if u := principal.User; u != nil {
			p.UserID, p.Email, p.Name = u.ID, u.Email, u.Name
		}
		resp.Principal = p

		show, err := sess.TakeWelcomeToast(ctx)
		if err != nil {
			slog.Warn("failed to read welcome toast", "session_id", sess.ID(), "error", err)
		}
		resp.ShowWelcomeToast = show
	}

	flash, err := sess.TakeFlash(ctx)
	if err != nil {
		slog.Warn("failed to read flash", "session_id", sess.ID(), "error", err)
	}
	resp.Flash = flash

	return c.JSON(resp)
}

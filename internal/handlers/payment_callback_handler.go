package handlers

import (
	"context"
	"log/slog"
	"net/url"

	"github.com/gofiber/fiber/v2"

	"github.com/ahmetcoskunkizilkaya/restaurant-portal/internal/access"
	"github.com/ahmetcoskunkizilkaya/restaurant-portal/internal/backend"
	"github.com/ahmetcoskunkizilkaya/restaurant-portal/internal/middleware"
)

const (
	msgPaymentSucceeded  = "Payment successful. Welcome back!"
	msgPaymentFailed     = "Payment was cancelled or failed. Please try again."
	msgPaymentUnverified = "We could not verify your payment. If you were charged, please contact support."
)

type VerifyAPI interface {
	VerifyPayment(ctx context.Context, token string, query url.Values) (*backend.VerifyResponse, error)
}

// PaymentCallbackHandler receives the browser back from the payment gateway.
type PaymentCallbackHandler struct {
	api VerifyAPI
}

func NewPaymentCallbackHandler(api VerifyAPI) *PaymentCallbackHandler {
	return &PaymentCallbackHandler{api: api}
}

// Success forwards the gateway's query to the backend for verification and
// sends the user to the dashboard, where the access gate runs again.
func (h *PaymentCallbackHandler) Success(c *fiber.Ctx) error {
	ctx := c.UserContext()
	sess := middleware.CurrentSession(c)
	principal := middleware.CurrentPrincipal(c)
	if principal == nil {
		return c.Redirect(loginRedirect(c.OriginalURL()), fiber.StatusFound)
	}

	query := url.Values{}
	for k, v := range c.Queries() {
		query.Set(k, v)
	}

	resp, err := h.api.VerifyPayment(ctx, principal.AccessToken, query)
	if err != nil || !resp.Success {
		msg := msgPaymentUnverified
		if err == nil && resp.Message != "" {
			msg = resp.Message
		} else if apiErr, ok := backend.AsAPIError(err); ok && apiErr.Status < 500 && apiErr.Message != "" {
			msg = apiErr.Message
		}
		slog.Warn("payment verification failed", "session_id", sess.ID(), "action", "verify_payment", "error", err)
		return c.Redirect(withError(access.PathSubscribe, msg), fiber.StatusFound)
	}

	if err := sess.SetFlash(ctx, msgPaymentSucceeded); err != nil {
		slog.Warn("failed to set flash", "session_id", sess.ID(), "error", err)
	}
	slog.Info("payment verified", "session_id", sess.ID(), principal.LogAttr(), "action", "verify_payment")
	return c.Redirect(access.PathDashboard, fiber.StatusFound)
}

func (h *PaymentCallbackHandler) Failure(c *fiber.Ctx) error {
	slog.Info("payment cancelled at gateway", "session_id", middleware.CurrentSession(c).ID())
	return c.Redirect(withError(access.PathSubscribe, msgPaymentFailed), fiber.StatusFound)
}

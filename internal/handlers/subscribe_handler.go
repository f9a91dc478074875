package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/ahmetcoskunkizilkaya/restaurant-portal/internal/access"
	"github.com/ahmetcoskunkizilkaya/restaurant-portal/internal/backend"
	"github.com/ahmetcoskunkizilkaya/restaurant-portal/internal/dto"
	"github.com/ahmetcoskunkizilkaya/restaurant-portal/internal/middleware"
	"github.com/ahmetcoskunkizilkaya/restaurant-portal/internal/payment"
)

const (
	msgReferenceRequired = "Please enter the payment reference number."
	msgManualFailed      = "Could not submit your payment for verification. Please try again."
)

type SubscribeAPI interface {
	SubscriptionStatus(ctx context.Context, token string) (*backend.SubscriptionStatus, error)
	SubmitManualPayment(ctx context.Context, token string, req backend.ManualPaymentRequest) (*backend.ManualPaymentResponse, error)
}

type SubscribeHandler struct {
	api       SubscribeAPI
	initiator *payment.Initiator
	plan      payment.Plan
}

func NewSubscribeHandler(api SubscribeAPI, initiator *payment.Initiator, plan payment.Plan) *SubscribeHandler {
	return &SubscribeHandler{api: api, initiator: initiator, plan: plan}
}

type subscribePage struct {
	Title           string
	Error           string
	Flash           string
	Status          *backend.SubscriptionStatus
	Amount          string
	Currency        string
	Employee        bool
	EmployeeMessage string
}

func loginRedirect(returnTo string) string {
	return access.PathLogin + "?redirect=" + url.QueryEscape(returnTo)
}

func (h *SubscribeHandler) Page(c *fiber.Ctx) error {
	principal := middleware.CurrentPrincipal(c)
	if principal == nil {
		return c.Redirect(loginRedirect(access.PathSubscribe), fiber.StatusFound)
	}

	ctx := c.UserContext()
	sess := middleware.CurrentSession(c)
	data := subscribePage{
		Title:           "Subscribe",
		Error:           c.Query("error"),
		Amount:          h.plan.Amount,
		Currency:        h.plan.Currency,
		Employee:        principal.IsEmployee(),
		EmployeeMessage: payment.EmployeeBlockedMessage,
	}

	flash, err := sess.TakeFlash(ctx)
	if err != nil {
		slog.Warn("failed to read flash", "session_id", sess.ID(), "error", err)
	}
	data.Flash = flash

	// Display only; the page renders without it.
	status, err := h.api.SubscriptionStatus(ctx, principal.AccessToken)
	if err != nil {
		slog.Warn("subscription status unavailable", "session_id", sess.ID(), "error", err)
	} else {
		data.Status = status
	}

	return render(c, fiber.StatusOK, "subscribe", data)
}

func (h *SubscribeHandler) Pay(c *fiber.Ctx) error {
	sess := middleware.CurrentSession(c)
	principal := middleware.CurrentPrincipal(c)

	result, err := h.initiator.Initiate(c.UserContext(), principal)
	if err != nil {
		return h.payFailed(c, err)
	}

	slog.Info("payment initiated", "session_id", sess.ID(), principal.LogAttr(), "action", "initiate_payment")
	if result.RedirectURL != "" {
		return c.Redirect(result.RedirectURL, fiber.StatusSeeOther)
	}

	c.Type("html", "utf-8")
	c.Set(fiber.HeaderCacheControl, "no-store")
	return result.Form.Render(c)
}

func (h *SubscribeHandler) payFailed(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, payment.ErrNotAuthenticated):
		return c.Redirect(loginRedirect(access.PathSubscribe), fiber.StatusSeeOther)
	case errors.Is(err, payment.ErrEmployeeBlocked):
		return render(c, fiber.StatusForbidden, "notice", noticePage{
			Title:    "Subscription",
			Message:  payment.EmployeeBlockedMessage,
			IsError:  true,
			Location: defaultLanding,
		})
	}

	var failure *payment.Failure
	if !errors.As(err, &failure) {
		slog.Error("payment initiation failed", "action", "initiate_payment", "error", err)
		return c.Redirect(withError(access.PathSubscribe, payment.GenericFailureMessage), fiber.StatusSeeOther)
	}
	if failure.Status == fiber.StatusUnauthorized {
		return c.Redirect(loginRedirect(access.PathSubscribe), fiber.StatusSeeOther)
	}
	if failure.RedirectAfter > 0 {
		return render(c, fiber.StatusOK, "notice", noticePage{
			Title:                "Subscription",
			Message:              failure.Message,
			Location:             defaultLanding,
			RedirectAfterSeconds: seconds(failure.RedirectAfter),
		})
	}
	return c.Redirect(withError(access.PathSubscribe, failure.Message), fiber.StatusSeeOther)
}

// Manual records an out-of-band payment for admin verification and sends
// the user to the pending screen.
func (h *SubscribeHandler) Manual(c *fiber.Ctx) error {
	ctx := c.UserContext()
	sess := middleware.CurrentSession(c)
	principal := middleware.CurrentPrincipal(c)
	if principal == nil {
		return c.Redirect(loginRedirect(access.PathSubscribe), fiber.StatusSeeOther)
	}
	if principal.IsEmployee() {
		return c.Redirect(withError(access.PathSubscribe, payment.EmployeeBlockedMessage), fiber.StatusSeeOther)
	}

	var form dto.ManualPaymentForm
	if err := c.BodyParser(&form); err != nil {
		return c.Redirect(withError(access.PathSubscribe, "Invalid request body"), fiber.StatusSeeOther)
	}
	form.ReferenceNumber = strings.TrimSpace(form.ReferenceNumber)
	if form.ReferenceNumber == "" {
		return c.Redirect(withError(access.PathSubscribe, msgReferenceRequired), fiber.StatusSeeOther)
	}

	resp, err := h.api.SubmitManualPayment(ctx, principal.AccessToken, backend.ManualPaymentRequest{
		Amount:          h.plan.Amount,
		Currency:        h.plan.Currency,
		ReferenceNumber: form.ReferenceNumber,
		Note:            strings.TrimSpace(form.Note),
	})
	if err != nil {
		msg := msgManualFailed
		if apiErr, ok := backend.AsAPIError(err); ok && apiErr.Status < 500 && apiErr.Message != "" {
			msg = apiErr.Message
		}
		slog.Warn("manual payment rejected", "session_id", sess.ID(), "action", "manual_payment", "error", err)
		return c.Redirect(withError(access.PathSubscribe, msg), fiber.StatusSeeOther)
	}

	if err := sess.SetManualTransactionID(ctx, string(resp.TransactionID)); err != nil {
		slog.Error("failed to store manual transaction", "session_id", sess.ID(), "error", err)
	}
	slog.Info("manual payment submitted", "session_id", sess.ID(), "transaction_id", resp.TransactionID)
	return c.Redirect(access.PathPending, fiber.StatusSeeOther)
}

func seconds(d time.Duration) int {
	s := int((d + time.Second - 1) / time.Second)
	if s < 1 {
		return 1
	}
	return s
}

package handlers

import (
	"context"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/gofiber/fiber/v2"

	"github.com/ahmetcoskunkizilkaya/restaurant-portal/internal/backend"
	"github.com/ahmetcoskunkizilkaya/restaurant-portal/internal/dto"
	"github.com/ahmetcoskunkizilkaya/restaurant-portal/internal/middleware"
)

const (
	maxRefundReason = 1000

	msgBillingUnavailable  = "Could not load billing data. Please try again later."
	msgRefundFieldsMissing = "Billing record and reason are required."
	msgRefundReasonTooLong = "Reason must be at most 1000 characters."
	msgRefundFailed        = "Could not submit the refund request. Please try again."
	msgAdminOnly           = "Only the restaurant owner can view all refund requests."
)

type BillingAPI interface {
	SubscriptionStatus(ctx context.Context, token string) (*backend.SubscriptionStatus, error)
	PaymentHistory(ctx context.Context, token string) ([]backend.PaymentRecord, error)
	BillingHistory(ctx context.Context, token string) ([]backend.BillingRecord, error)
	CreateRefundRequest(ctx context.Context, token string, req backend.CreateRefundRequest) (*backend.RefundRequest, error)
	RefundRequests(ctx context.Context, token string, all bool) ([]backend.RefundRequest, error)
}

// BillingHandler serves the display reads of the billing screens. Reads fail
// open: the section renders empty with an error message.
type BillingHandler struct {
	api BillingAPI
}

func NewBillingHandler(api BillingAPI) *BillingHandler {
	return &BillingHandler{api: api}
}

func (h *BillingHandler) Subscription(c *fiber.Ctx) error {
	principal := middleware.CurrentPrincipal(c)
	status, err := h.api.SubscriptionStatus(c.UserContext(), principal.AccessToken)
	if err != nil {
		logReadFailure(c, "subscription_status", err)
		return c.JSON(dto.SubscriptionResponse{Error: msgBillingUnavailable})
	}
	return c.JSON(dto.SubscriptionResponse{Subscription: status})
}

func (h *BillingHandler) PaymentHistory(c *fiber.Ctx) error {
	principal := middleware.CurrentPrincipal(c)
	items, err := h.api.PaymentHistory(c.UserContext(), principal.AccessToken)
	return listJSON(c, "payment_history", items, err)
}

func (h *BillingHandler) BillingHistory(c *fiber.Ctx) error {
	principal := middleware.CurrentPrincipal(c)
	items, err := h.api.BillingHistory(c.UserContext(), principal.AccessToken)
	return listJSON(c, "billing_history", items, err)
}

func (h *BillingHandler) RefundRequests(c *fiber.Ctx) error {
	principal := middleware.CurrentPrincipal(c)
	all := c.QueryBool("all", false)
	if all && principal.IsEmployee() {
		return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{Error: true, Message: msgAdminOnly})
	}
	items, err := h.api.RefundRequests(c.UserContext(), principal.AccessToken, all)
	return listJSON(c, "refund_requests", items, err)
}

func (h *BillingHandler) CreateRefundRequest(c *fiber.Ctx) error {
	principal := middleware.CurrentPrincipal(c)

	var form dto.RefundRequestForm
	if err := c.BodyParser(&form); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: true, Message: "Invalid request body"})
	}
	form.BillingRecordID = strings.TrimSpace(form.BillingRecordID)
	form.Reason = strings.TrimSpace(form.Reason)
	if form.BillingRecordID == "" || form.Reason == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: true, Message: msgRefundFieldsMissing})
	}
	if utf8.RuneCountInString(form.Reason) > maxRefundReason {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: true, Message: msgRefundReasonTooLong})
	}

	refund, err := h.api.CreateRefundRequest(c.UserContext(), principal.AccessToken, backend.CreateRefundRequest{
		BillingRecordID: form.BillingRecordID,
		Reason:          form.Reason,
	})
	if err != nil {
		if apiErr, ok := backend.AsAPIError(err); ok && apiErr.Status < 500 {
			msg := apiErr.Message
			if msg == "" {
				msg = msgRefundFailed
			}
			return c.Status(apiErr.Status).JSON(dto.ErrorResponse{Error: true, Message: msg})
		}
		slog.Error("refund request failed",
			"session_id", middleware.CurrentSession(c).ID(),
			principal.LogAttr(),
			"action", "create_refund_request",
			"error", err,
		)
		return c.Status(fiber.StatusBadGateway).JSON(dto.ErrorResponse{Error: true, Message: msgRefundFailed})
	}

	return c.Status(fiber.StatusCreated).JSON(refund)
}

func listJSON[T any](c *fiber.Ctx, action string, items []T, err error) error {
	if err != nil {
		logReadFailure(c, action, err)
		return c.JSON(dto.ListResponse[T]{Items: []T{}, Error: msgBillingUnavailable})
	}
	if items == nil {
		items = []T{}
	}
	return c.JSON(dto.ListResponse[T]{Items: items})
}

func logReadFailure(c *fiber.Ctx, action string, err error) {
	slog.Warn("billing read failed",
		"session_id", middleware.CurrentSession(c).ID(),
		"path", c.Path(),
		"action", action,
		"error", err,
	)
}

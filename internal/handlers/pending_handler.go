package handlers

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/ahmetcoskunkizilkaya/restaurant-portal/internal/access"
	"github.com/ahmetcoskunkizilkaya/restaurant-portal/internal/backend"
	"github.com/ahmetcoskunkizilkaya/restaurant-portal/internal/middleware"
	"github.com/ahmetcoskunkizilkaya/restaurant-portal/internal/pending"
)

const (
	supportEmail      = "support@restaurant-admin.app"
	msgPaymentGranted = "Payment confirmed. Your subscription is active."

	// EventSource reconnects on its own, so a stream never outlives this.
	maxStreamDuration = 30 * time.Minute
)

type PendingAPI interface {
	pending.AccessAPI
	ManualPayment(ctx context.Context, token, transactionID string) (*backend.ManualPayment, error)
}

type PendingHandler struct {
	api          PendingAPI
	pollInterval time.Duration
	tick         time.Duration
}

// NewPendingHandler polls access every pollInterval and pushes the elapsed
// time every tick.
func NewPendingHandler(api PendingAPI, pollInterval, tick time.Duration) *PendingHandler {
	return &PendingHandler{api: api, pollInterval: pollInterval, tick: tick}
}

type pendingPage struct {
	Title          string
	HasSubmittedAt bool
	Elapsed        string
	EventsURL      string
	ElapsedEvent   string
	GrantedEvent   string
	SupportEmail   string
}

// Page renders the pending screen. The submission time is looked up once
// here and handed to the event stream, which never refetches it.
func (h *PendingHandler) Page(c *fiber.Ctx) error {
	ctx := c.UserContext()
	sess := middleware.CurrentSession(c)
	principal := middleware.CurrentPrincipal(c)

	data := pendingPage{
		Title:        "Payment pending",
		EventsURL:    access.PathPending + "/events",
		ElapsedEvent: pending.EventElapsed,
		GrantedEvent: pending.EventGranted,
		SupportEmail: supportEmail,
	}

	txID, err := sess.ManualTransactionID(ctx)
	if err != nil {
		slog.Warn("failed to read manual transaction", "session_id", sess.ID(), "error", err)
	}
	if txID != "" && principal != nil {
		mp, err := h.api.ManualPayment(ctx, principal.AccessToken, txID)
		switch {
		case err != nil:
			slog.Warn("manual payment lookup failed", "session_id", sess.ID(), "transaction_id", txID, "error", err)
		case mp.PaymentSubmittedAt != nil:
			since := *mp.PaymentSubmittedAt
			data.HasSubmittedAt = true
			data.Elapsed = pending.NewClock(since).String()
			data.EventsURL += "?since=" + strconv.FormatInt(since.UnixMilli(), 10)
		}
	}

	return render(c, fiber.StatusOK, "pending", data)
}

// Events streams elapsed ticks and a single granted event over SSE.
func (h *PendingHandler) Events(c *fiber.Ctx) error {
	sess := middleware.CurrentSession(c)
	principal := middleware.CurrentPrincipal(c)

	var clock *pending.Clock
	if ms, err := strconv.ParseInt(c.Query("since"), 10, 64); err == nil && ms > 0 {
		clock = pending.NewClock(time.UnixMilli(ms))
	}

	poller := pending.Poller{
		Interval: h.pollInterval,
		Check:    pending.AccessCheck(h.api, principal.AccessToken),
		OnGranted: func() {
			slog.Info("pending payment granted", "session_id", sess.ID(), principal.LogAttr())
			if err := sess.SetFlash(context.Background(), msgPaymentGranted); err != nil {
				slog.Warn("failed to set flash", "session_id", sess.ID(), "error", err)
			}
		},
	}
	tick := h.tick

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		ctx, cancel := context.WithTimeout(context.Background(), maxStreamDuration)
		defer cancel()

		for ev := range pending.Stream(ctx, poller, clock, tick, access.PathDashboard) {
			if ev.Name == pending.EventHeartbeat {
				_, _ = w.WriteString(": ping\n\n")
			} else {
				fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Name, ev.Data)
			}
			if err := w.Flush(); err != nil {
				slog.Debug("pending stream closed by client", "session_id", sess.ID())
				return
			}
		}
	})
	return nil
}

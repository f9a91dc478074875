// Package access decides whether a portal session may open a protected page.
package access

import (
	"context"
	"errors"
	"log/slog"
	"net/url"

	"github.com/ahmetcoskunkizilkaya/restaurant-portal/internal/backend"
	"github.com/ahmetcoskunkizilkaya/restaurant-portal/internal/sessionstore"
)

type Outcome string

const (
	Allow             Outcome = "allow"
	RedirectLogin     Outcome = "redirect_login"
	RedirectSubscribe Outcome = "redirect_subscribe"
	RedirectPending   Outcome = "redirect_pending"
	EmployeeDenied    Outcome = "employee_denied"
)

const (
	PathLogin     = "/login"
	PathSubscribe = "/subscribe"
	PathPending   = "/payment/pending"
	PathDashboard = "/dashboard"

	DefaultEmployeeMessage  = "Your restaurant's subscription is inactive. Please contact the restaurant owner."
	DefaultSubscribeMessage = "An active subscription is required to use the admin panel."
)

// DefaultSkipPaths never trigger an access check.
var DefaultSkipPaths = []string{"/login", "/signup", "/forgot-password", "/subscribe", "/"}

// API is the backend call the checker depends on.
type API interface {
	CheckAccess(ctx context.Context, token string) (*backend.AccessResponse, error)
}

type Request struct {
	SessionID string
	// Path is matched against the skip list.
	Path string
	// ReturnTo is sent back as the login redirect target. Defaults to Path.
	ReturnTo  string
	Principal *sessionstore.Principal
}

type Decision struct {
	Outcome  Outcome
	Location string
	Message  string
	Seq      uint64
	// Stale is set when a newer check for the same session was issued
	// before this one resolved. Stale decisions must not mutate the session.
	Stale bool
}

func (d Decision) Allowed() bool { return d.Outcome == Allow }

type Checker struct {
	api    API
	skip   map[string]struct{}
	seq    *Sequencer
	logger *slog.Logger
}

type Option func(*Checker)

func WithSkipPaths(paths ...string) Option {
	return func(c *Checker) {
		c.skip = make(map[string]struct{}, len(paths))
		for _, p := range paths {
			c.skip[p] = struct{}{}
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Checker) { c.logger = logger }
}

func WithSequencer(seq *Sequencer) Option {
	return func(c *Checker) { c.seq = seq }
}

func NewChecker(api API, opts ...Option) *Checker {
	c := &Checker{api: api, seq: NewSequencer(), logger: slog.Default()}
	WithSkipPaths(DefaultSkipPaths...)(c)
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Skips reports whether path bypasses the check.
func (c *Checker) Skips(path string) bool {
	_, ok := c.skip[path]
	return ok
}

// Check decides the outcome for one page entry. It never fails: backend
// errors resolve to the restrictive outcome.
func (c *Checker) Check(ctx context.Context, req Request) Decision {
	if c.Skips(req.Path) {
		return Decision{Outcome: Allow}
	}

	if req.Principal == nil || req.Principal.AccessToken == "" {
		returnTo := req.ReturnTo
		if returnTo == "" {
			returnTo = req.Path
		}
		return Decision{
			Outcome:  RedirectLogin,
			Location: PathLogin + "?redirect=" + url.QueryEscape(returnTo),
		}
	}

	seq := c.seq.Next(req.SessionID)
	resp, err := c.api.CheckAccess(ctx, req.Principal.AccessToken)
	current := c.seq.Done(req.SessionID, seq)

	var d Decision
	if err != nil {
		d = c.failClosed(req, err)
	} else {
		d = interpret(resp)
	}
	d.Seq = seq
	d.Stale = !current

	// A page never redirects to itself; the pending screen is reached this way.
	if d.Outcome != Allow && d.Location == req.Path {
		d.Outcome = Allow
		d.Location = ""
	}
	return d
}

func interpret(resp *backend.AccessResponse) Decision {
	if resp.HasAccess {
		return Decision{Outcome: Allow}
	}
	if resp.UserType == backend.UserTypeEmployee {
		return employeeDenied(resp.Message)
	}
	if resp.SubscriptionStatus == backend.StatePendingPayment {
		return Decision{Outcome: RedirectPending, Location: PathPending, Message: resp.Message}
	}
	return mustSubscribe(resp.Message)
}

func (c *Checker) failClosed(req Request, err error) Decision {
	status := 0
	if apiErr, ok := backend.AsAPIError(err); ok {
		status = apiErr.Status
	}
	c.logger.Warn("access check failed, failing closed",
		"session_id", req.SessionID,
		"path", req.Path,
		"status", status,
		"transport", errors.Is(err, backend.ErrTransport),
		"error", err,
	)
	if req.Principal.IsEmployee() {
		return employeeDenied("")
	}
	return mustSubscribe("")
}

func employeeDenied(message string) Decision {
	if message == "" {
		message = DefaultEmployeeMessage
	}
	return Decision{
		Outcome:  EmployeeDenied,
		Location: PathLogin + "?error=" + url.QueryEscape(message),
		Message:  message,
	}
}

func mustSubscribe(message string) Decision {
	if message == "" {
		message = DefaultSubscribeMessage
	}
	return Decision{
		Outcome:  RedirectSubscribe,
		Location: PathSubscribe + "?error=" + url.QueryEscape(message),
		Message:  message,
	}
}

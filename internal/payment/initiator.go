// Package payment starts a subscription payment and hands the browser over
// to the payment gateway.
package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ahmetcoskunkizilkaya/restaurant-portal/internal/backend"
	"github.com/ahmetcoskunkizilkaya/restaurant-portal/internal/sessionstore"
)

const (
	PaymentTypeSubscription = "subscription"
	EmployeeBlockedMessage  = "Only the restaurant owner can manage the subscription. Please contact your restaurant admin."
)

var (
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrEmployeeBlocked  = errors.New(EmployeeBlockedMessage)
)

type API interface {
	InitiatePayment(ctx context.Context, token string, req backend.InitiatePaymentRequest) (*backend.InitiatePaymentResponse, error)
}

// Plan is the fixed monthly subscription price.
type Plan struct {
	Amount   string
	Currency string
}

// Result is a successful initiation: exactly one of RedirectURL and Form is set.
type Result struct {
	RedirectURL string
	Form        *GatewayForm
	Message     string
}

// Failure is an initiation the backend refused or that never reached it.
type Failure struct {
	Code    ErrorCode
	Message string
	// Status is the backend HTTP status, zero on transport failure.
	Status int
	// RedirectAfter is how long to show Message before going to the
	// dashboard. Zero means stay.
	RedirectAfter time.Duration
	Err           error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("payment initiation failed (%s): %s", f.Code, f.Message)
}

func (f *Failure) Unwrap() error { return f.Err }

type Initiator struct {
	api                API
	plan               Plan
	alreadyActiveDelay time.Duration
	logger             *slog.Logger
}

func NewInitiator(api API, plan Plan, alreadyActiveDelay time.Duration, logger *slog.Logger) *Initiator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Initiator{api: api, plan: plan, alreadyActiveDelay: alreadyActiveDelay, logger: logger}
}

// Initiate makes one payment attempt for principal. Employees and missing
// logins are refused before any backend call.
func (i *Initiator) Initiate(ctx context.Context, principal *sessionstore.Principal) (*Result, error) {
	if principal == nil || principal.AccessToken == "" {
		return nil, ErrNotAuthenticated
	}
	if principal.IsEmployee() {
		return nil, ErrEmployeeBlocked
	}

	resp, err := i.api.InitiatePayment(ctx, principal.AccessToken, backend.InitiatePaymentRequest{
		PaymentType: PaymentTypeSubscription,
		Amount:      i.plan.Amount,
		Currency:    i.plan.Currency,
	})
	if err != nil {
		return nil, i.failure(err)
	}

	if resp.RedirectURL != "" {
		return &Result{RedirectURL: resp.RedirectURL, Message: resp.Message}, nil
	}
	form, err := BuildGatewayForm(resp.EsewaURL, resp.PaymentData)
	if err != nil {
		i.logger.Error("payment initiation returned no usable gateway", "error", err, "esewa_url", resp.EsewaURL)
		return nil, &Failure{Code: CodeUnknown, Message: GenericFailureMessage, Status: 200, Err: err}
	}
	return &Result{Form: form, Message: resp.Message}, nil
}

func (i *Initiator) failure(err error) *Failure {
	apiErr, ok := backend.AsAPIError(err)
	if !ok {
		i.logger.Warn("payment initiation unreachable", "error", err)
		return &Failure{Code: CodeUnknown, Message: GenericFailureMessage, Err: err}
	}

	code := ParseErrorCode(apiErr.Code)
	f := &Failure{Code: code, Message: code.Message(), Status: apiErr.Status, Err: err}
	if code.Known() && apiErr.Message != "" {
		f.Message = apiErr.Message
	}
	if code.RedirectsToDashboard() {
		f.RedirectAfter = i.alreadyActiveDelay
	}
	if !code.Known() {
		i.logger.Warn("payment initiation failed", "status", apiErr.Status, "code", apiErr.Code, "error", err)
	}
	return f
}

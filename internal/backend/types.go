package backend

import (
	"encoding/json"
	"time"
)

// SubscriptionState is the backend's subscription state. Exactly one applies.
type SubscriptionState string

const (
	StateTrialActive        SubscriptionState = "trial_active"
	StateSubscriptionActive SubscriptionState = "subscription_active"
	StatePendingPayment     SubscriptionState = "pending_payment"
	StateExpired            SubscriptionState = "expired"
	StateNone               SubscriptionState = "none"
)

const (
	UserTypeEmployee = "employee"
	UserTypeAdmin    = "admin"
)

type AccessResponse struct {
	HasAccess          bool              `json:"has_access"`
	UserType           string            `json:"user_type,omitempty"`
	SubscriptionStatus SubscriptionState `json:"subscription_status,omitempty"`
	Message            string            `json:"message,omitempty"`
}

type InitiatePaymentRequest struct {
	PaymentType string `json:"payment_type"`
	Amount      string `json:"amount"`
	Currency    string `json:"currency"`
}

// InitiatePaymentResponse carries either a direct redirect or the gateway
// form fields to post.
type InitiatePaymentResponse struct {
	RedirectURL string         `json:"redirect_url,omitempty"`
	EsewaURL    string         `json:"esewa_url,omitempty"`
	PaymentData map[string]any `json:"payment_data,omitempty"`
	Message     string         `json:"message,omitempty"`
}

type SubscriptionStatus struct {
	State                 SubscriptionState `json:"status"`
	TrialStartDate        *time.Time        `json:"trial_start_date,omitempty"`
	TrialEndDate          *time.Time        `json:"trial_end_date,omitempty"`
	SubscriptionStartDate *time.Time        `json:"subscription_start_date,omitempty"`
	SubscriptionEndDate   *time.Time        `json:"subscription_end_date,omitempty"`
	MonthlyFee            json.Number       `json:"monthly_fee,omitempty"`
	LastPaymentDate       *time.Time        `json:"last_payment_date,omitempty"`
	NextPaymentDate       *time.Time        `json:"next_payment_date,omitempty"`
	DaysRemaining         *int              `json:"days_remaining,omitempty"`
}

type PaymentRecord struct {
	ID                  FlexibleID  `json:"id"`
	Amount              json.Number `json:"amount"`
	Success             bool        `json:"success"`
	PaymentType         string      `json:"payment_type,omitempty"`
	TransactionID       FlexibleID  `json:"transaction_id,omitempty"`
	GatewayResponseCode string      `json:"gateway_response_code,omitempty"`
	GatewayMessage      string      `json:"gateway_response_message,omitempty"`
	CreatedAt           time.Time   `json:"created_at"`
	CompletedAt         *time.Time  `json:"completed_at,omitempty"`
}

type BillingRecord struct {
	ID          FlexibleID  `json:"id"`
	Amount      json.Number `json:"amount"`
	Description string      `json:"description,omitempty"`
	PeriodStart *time.Time  `json:"period_start,omitempty"`
	PeriodEnd   *time.Time  `json:"period_end,omitempty"`
	Paid        bool        `json:"paid"`
	CreatedAt   time.Time   `json:"created_at"`
}

type RefundStatus string

const (
	RefundPending  RefundStatus = "pending"
	RefundApproved RefundStatus = "approved"
	RefundRejected RefundStatus = "rejected"
)

type CreateRefundRequest struct {
	BillingRecordID string `json:"billing_record_id"`
	Reason          string `json:"reason"`
}

type RefundRequest struct {
	ID              FlexibleID   `json:"id"`
	BillingRecordID FlexibleID   `json:"billing_record_id"`
	Reason          string       `json:"reason"`
	Status          RefundStatus `json:"status"`
	AdminNote       string       `json:"admin_note,omitempty"`
	CreatedAt       time.Time    `json:"created_at"`
	ProcessedAt     *time.Time   `json:"processed_at,omitempty"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// FlexibleID accepts both numeric and string identifiers.
type FlexibleID string

func (id *FlexibleID) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*id = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*id = FlexibleID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*id = FlexibleID(n.String())
	return nil
}

type LoginUser struct {
	ID           FlexibleID `json:"id"`
	Email        string     `json:"email"`
	Name         string     `json:"name,omitempty"`
	IsEmployee   bool       `json:"is_employee"`
	RestaurantID FlexibleID `json:"restaurant_id,omitempty"`
}

type LoginResponse struct {
	AccessToken  string    `json:"access"`
	RefreshToken string    `json:"refresh"`
	User         LoginUser `json:"user"`
	IsEmployee   bool      `json:"is_employee"`
}

type ManualPaymentRequest struct {
	Amount          string `json:"amount"`
	Currency        string `json:"currency"`
	ReferenceNumber string `json:"reference_number"`
	Note            string `json:"note,omitempty"`
}

type ManualPaymentResponse struct {
	TransactionID FlexibleID `json:"transaction_id"`
	Message       string     `json:"message,omitempty"`
}

type ManualPayment struct {
	TransactionID      FlexibleID `json:"transaction_id"`
	Status             string     `json:"status"`
	PaymentSubmittedAt *time.Time `json:"payment_submitted_at"`
}

type VerifyResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

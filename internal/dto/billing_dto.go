package dto

import "github.com/ahmetcoskunkizilkaya/restaurant-portal/internal/backend"

// ListResponse is a display read. Error is set, and Items empty, when the
// backend could not be read.
type ListResponse[T any] struct {
	Items []T    `json:"items"`
	Error string `json:"error,omitempty"`
}

type SubscriptionResponse struct {
	Subscription *backend.SubscriptionStatus `json:"subscription"`
	Error        string                      `json:"error,omitempty"`
}

type RefundRequestForm struct {
	BillingRecordID string `json:"billing_record_id" form:"billing_record_id"`
	Reason          string `json:"reason" form:"reason"`
}

type ManualPaymentForm struct {
	ReferenceNumber string `json:"reference_number" form:"reference_number"`
	Note            string `json:"note" form:"note"`
}

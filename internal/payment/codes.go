package payment

// ErrorCode is a failure code returned by the payment initiation endpoint.
// Codes the portal does not know collapse to CodeUnknown.
type ErrorCode string

const (
	CodeSubscriptionAlreadyActive ErrorCode = "subscription_already_active"
	CodeTrialStillActive          ErrorCode = "trial_still_active"
	CodeNoSubscription            ErrorCode = "no_subscription"
	CodeEsewaNotConfigured        ErrorCode = "esewa_not_configured"
	CodeEsewaNotEnabled           ErrorCode = "esewa_not_enabled"
	CodeUnknown                   ErrorCode = "unknown"
)

const GenericFailureMessage = "Payment initiation failed. Please try again."

func ParseErrorCode(s string) ErrorCode {
	switch c := ErrorCode(s); c {
	case CodeSubscriptionAlreadyActive,
		CodeTrialStillActive,
		CodeNoSubscription,
		CodeEsewaNotConfigured,
		CodeEsewaNotEnabled:
		return c
	default:
		return CodeUnknown
	}
}

// Message is shown when the backend sent no message of its own.
func (c ErrorCode) Message() string {
	switch c {
	case CodeSubscriptionAlreadyActive:
		return "Your subscription is already active."
	case CodeTrialStillActive:
		return "Your free trial is still active. You can subscribe once it ends."
	case CodeNoSubscription:
		return "No subscription was found for this restaurant."
	case CodeEsewaNotConfigured, CodeEsewaNotEnabled:
		return "Online payment is not available right now. Please use manual payment or contact support."
	case CodeUnknown:
		return GenericFailureMessage
	}
	return GenericFailureMessage
}

// Known reports whether the backend's own message may be shown for c.
func (c ErrorCode) Known() bool {
	return c != CodeUnknown
}

// RedirectsToDashboard reports whether the failure sends the user on to the
// dashboard after the message has been shown.
func (c ErrorCode) RedirectsToDashboard() bool {
	return c == CodeSubscriptionAlreadyActive
}

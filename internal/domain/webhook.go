package domain

import "time"

// Deliverable webhook event names.
const (
	EventFillExecuted  = "fill.executed"
	EventOrderCanceled = "order.canceled"
)

// KnownEvent reports whether name is a deliverable event type.
func KnownEvent(name string) bool {
	return name == EventFillExecuted || name == EventOrderCanceled
}

// Webhook is one account's subscription of one event to a delivery
// URL. An (account, event) pair carries at most one subscription;
// re-registering the pair replaces the URL in place and keeps the
// subscription's identity.
type Webhook struct {
	WebhookID string
	AccountID string
	Event     string
	URL       string
	CreatedAt time.Time
	UpdatedAt time.Time
}

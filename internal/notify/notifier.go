package notify

import "context"

// Message is an outbound merchant notification. Delivery is handled by an
// external push service behind a webhook; this package only hands the
// payload over.
type Message struct {
	MerchantID string `json:"merchant_id"`
	Title      string `json:"title"`
	Body       string `json:"body"`
	URL        string `json:"url,omitempty"`
}

// Notifier sends notifications.
type Notifier interface {
	Notify(ctx context.Context, msg Message) error
}

package notify

import (
	"context"
	"log"
)

// LogNotifier writes notifications to the service log. Used when no webhook
// URL is configured so notification emission stays observable.
type LogNotifier struct {
	logger *log.Logger
}

// NewLogNotifier constructs a logging notifier.
func NewLogNotifier(logger *log.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Notify logs the message.
func (n *LogNotifier) Notify(ctx context.Context, msg Message) error {
	_ = ctx
	if n == nil || n.logger == nil {
		return nil
	}
	n.logger.Printf("notify: merchant=%s title=%q body=%q", msg.MerchantID, msg.Title, msg.Body)
	return nil
}

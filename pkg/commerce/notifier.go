package commerce

import (
	"context"

	"github.com/rs/zerolog"
)

// LogNotifier is a Notifier that records the notification instead of
// delivering it. Used until an outbound WhatsApp channel is wired in.
type LogNotifier struct {
	logger zerolog.Logger
}

// NewLogNotifier creates a LogNotifier.
func NewLogNotifier(logger zerolog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// NotifySeller logs the paid-order notification and reports success.
func (n *LogNotifier) NotifySeller(ctx context.Context, orderID string) (bool, error) {
	n.logger.Info().
		Str("order_id", orderID).
		Msg("Seller notification: order confirmed")
	return true, nil
}

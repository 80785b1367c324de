package decision

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/sharpshop/sharpshop/pkg/commerce"
	"github.com/sharpshop/sharpshop/pkg/session"
)

// Apply writes a Decision's state effects into the session. NextState
// replaces the conversation state immediately; state updates are applied by
// key, with delivery details merged field-by-field so partial values
// collected across turns are never dropped. A transition into paid with an
// active order fires the seller notification.
func Apply(ctx context.Context, sess *session.Session, dec Decision, notifier commerce.Notifier, logger zerolog.Logger) {
	if dec.NextState != "" && dec.NextState.Valid() {
		sess.State = dec.NextState
	}

	for key, value := range dec.StateUpdates {
		switch key {
		case "delivery_details":
			sess.MergeDeliveryDetails(toDetailsMap(value))
		case "product_id":
			if s, ok := value.(string); ok {
				sess.ProductID = s
			}
		case "order_id":
			if s, ok := value.(string); ok {
				sess.OrderID = s
			}
		case "payment_link":
			if s, ok := value.(string); ok {
				sess.PaymentLink = s
			}
		case "fulfillment_type":
			if s, ok := value.(string); ok {
				sess.FulfillmentType = s
			}
		case "status":
			if s, ok := value.(string); ok && session.State(s).Valid() {
				sess.State = session.State(s)
			}
		default:
			logger.Debug().
				Str("session_id", sess.ID).
				Str("key", key).
				Msg("Ignoring unknown state update key")
		}
	}

	if dec.NextState == session.StatePaid && sess.OrderID != "" && notifier != nil {
		// Fire-and-forget: a failed notification never blocks state progress
		if _, err := notifier.NotifySeller(ctx, sess.OrderID); err != nil {
			logger.Warn().
				Err(err).
				Str("session_id", sess.ID).
				Str("order_id", sess.OrderID).
				Msg("Seller notification failed")
		}
	}
}

// toDetailsMap coerces the model's delivery_details payload into a string
// map. Models sometimes return a bare string instead of an object.
func toDetailsMap(value interface{}) map[string]string {
	switch v := value.(type) {
	case map[string]interface{}:
		out := make(map[string]string, len(v))
		for k, item := range v {
			if s, ok := item.(string); ok {
				out[k] = s
			}
		}
		return out
	case map[string]string:
		return v
	case string:
		if v == "" {
			return nil
		}
		return map[string]string{"raw": v}
	default:
		return nil
	}
}

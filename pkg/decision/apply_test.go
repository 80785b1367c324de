package decision

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/sharpshop/sharpshop/pkg/session"
)

type recordingNotifier struct {
	orderIDs []string
}

func (n *recordingNotifier) NotifySeller(ctx context.Context, orderID string) (bool, error) {
	n.orderIDs = append(n.orderIDs, orderID)
	return true, nil
}

func TestApply_NextState(t *testing.T) {
	sess := &session.Session{State: session.StateBrowsing}

	Apply(context.Background(), sess, Decision{NextState: session.StateAwaitingPayment}, nil, zerolog.Nop())
	assert.Equal(t, session.StateAwaitingPayment, sess.State)
}

func TestApply_InvalidNextStateIgnored(t *testing.T) {
	sess := &session.Session{State: session.StateBrowsing}

	Apply(context.Background(), sess, Decision{NextState: session.State("shipped")}, nil, zerolog.Nop())
	assert.Equal(t, session.StateBrowsing, sess.State)
}

func TestApply_DeliveryDetailsMergeAcrossTurns(t *testing.T) {
	sess := &session.Session{State: session.StateCollectingDeliveryDetails}

	Apply(context.Background(), sess, Decision{
		StateUpdates: map[string]interface{}{
			"delivery_details": map[string]interface{}{"name": "John"},
		},
	}, nil, zerolog.Nop())

	Apply(context.Background(), sess, Decision{
		StateUpdates: map[string]interface{}{
			"delivery_details": map[string]interface{}{"phone": "08012345678", "address": "12 Main St"},
		},
	}, nil, zerolog.Nop())

	assert.Equal(t, "John", sess.DeliveryDetails["name"])
	assert.Equal(t, "08012345678", sess.DeliveryDetails["phone"])
	assert.Equal(t, "12 Main St", sess.DeliveryDetails["address"])
}

func TestApply_DeliveryDetailsBareString(t *testing.T) {
	sess := &session.Session{}

	Apply(context.Background(), sess, Decision{
		StateUpdates: map[string]interface{}{
			"delivery_details": "John, 080, 12 Main St Lagos",
		},
	}, nil, zerolog.Nop())

	assert.Equal(t, "John, 080, 12 Main St Lagos", sess.DeliveryDetails["raw"])
}

func TestApply_ScalarUpdates(t *testing.T) {
	sess := &session.Session{}

	Apply(context.Background(), sess, Decision{
		StateUpdates: map[string]interface{}{
			"product_id":       "p1",
			"order_id":         "o1",
			"payment_link":     "https://pay.example/o1",
			"fulfillment_type": "pickup",
			"status":           "awaiting_payment",
			"unknown_key":      "ignored",
		},
	}, nil, zerolog.Nop())

	assert.Equal(t, "p1", sess.ProductID)
	assert.Equal(t, "o1", sess.OrderID)
	assert.Equal(t, "https://pay.example/o1", sess.PaymentLink)
	assert.Equal(t, "pickup", sess.FulfillmentType)
	assert.Equal(t, session.StateAwaitingPayment, sess.State)
}

func TestApply_PaidTransitionNotifiesSeller(t *testing.T) {
	notifier := &recordingNotifier{}
	sess := &session.Session{OrderID: "o1"}

	Apply(context.Background(), sess, Decision{NextState: session.StatePaid}, notifier, zerolog.Nop())
	assert.Equal(t, []string{"o1"}, notifier.orderIDs)
}

func TestApply_PaidWithoutOrderDoesNotNotify(t *testing.T) {
	notifier := &recordingNotifier{}
	sess := &session.Session{}

	Apply(context.Background(), sess, Decision{NextState: session.StatePaid}, notifier, zerolog.Nop())
	assert.Empty(t, notifier.orderIDs)
}

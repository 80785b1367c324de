// Package session owns the conversation session lifecycle: creation on
// first contact, lookup with dual expiry, update and background sweeping.
// The store is volatile by design; durability belongs to the collaborators.
package session

import (
	"time"
)

// State is the conversation state machine position.
type State string

const (
	StateBrowsing                  State = "browsing"
	StateAwaitingFulfillment       State = "awaiting_fulfillment"
	StateAwaitingPayment           State = "awaiting_payment"
	StateCollectingDeliveryDetails State = "collecting_delivery_details"
	StatePaid                      State = "paid"
	StateCompleted                 State = "completed"
)

// Valid reports whether s is a member of the enumerated state set.
func (s State) Valid() bool {
	switch s {
	case StateBrowsing, StateAwaitingFulfillment, StateAwaitingPayment,
		StateCollectingDeliveryDetails, StatePaid, StateCompleted:
		return true
	}
	return false
}

// Message represents a single conversation turn
type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// TurnContext is the transient scratch slot for the current turn. It holds
// the most recent decision and tool result and is never persisted beyond
// immediate use.
type TurnContext struct {
	Decision   interface{} `json:"-"`
	ToolResult interface{} `json:"-"`
}

// Session is one customer's ongoing conversation with a trader.
type Session struct {
	ID             string    `json:"session_id"`
	TraderID       string    `json:"trader_id"`
	TraderName     string    `json:"trader_name"`
	WhatsAppNumber string    `json:"whatsapp_number"`
	Messages       []Message `json:"messages"`
	CreatedAt      time.Time `json:"created_at"`
	LastActivity   time.Time `json:"last_activity"`

	State           State             `json:"status"`
	ProductID       string            `json:"product_id,omitempty"`
	OrderID         string            `json:"order_id,omitempty"`
	FulfillmentType string            `json:"fulfillment_type,omitempty"`
	DeliveryDetails map[string]string `json:"delivery_details,omitempty"`
	PaymentLink     string            `json:"payment_link,omitempty"`

	Context TurnContext `json:"-"`
}

// Append adds a message to the transcript. History is append-only.
func (s *Session) Append(role, content string) {
	s.Messages = append(s.Messages, Message{
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
	})
}

// LastMessages returns up to n of the most recent transcript turns.
func (s *Session) LastMessages(n int) []Message {
	if n <= 0 || len(s.Messages) <= n {
		return s.Messages
	}
	return s.Messages[len(s.Messages)-n:]
}

// MergeDeliveryDetails merges fields into any existing partial value.
// Details arrive across multiple turns; earlier fields are never dropped.
func (s *Session) MergeDeliveryDetails(update map[string]string) {
	if s.DeliveryDetails == nil {
		s.DeliveryDetails = make(map[string]string, len(update))
	}
	for k, v := range update {
		s.DeliveryDetails[k] = v
	}
}

// DeliveryDetailsLen returns the combined length of all collected detail
// values, used to judge whether details are substantial enough to skip
// re-collection.
func (s *Session) DeliveryDetailsLen() int {
	n := 0
	for _, v := range s.DeliveryDetails {
		n += len(v)
	}
	return n
}

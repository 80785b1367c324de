// Package dispatch executes a Decision's selected commerce operation,
// applies multi-step chaining (availability, order, payment link) and the
// automatic state transitions that go with it.
package dispatch

import (
	"github.com/sharpshop/sharpshop/pkg/commerce"
)

// Result is the tool output handed to the response synthesizer.
type Result struct {
	// Payload carries the raw tool output for the synthesis prompt.
	Payload map[string]interface{} `json:"payload,omitempty"`

	// Message, when set, already encodes the product/price/link formatting
	// and is used verbatim by the synthesizer.
	Message string `json:"message,omitempty"`

	// Products carries the structured listing for the transport layer.
	Products []commerce.Product `json:"products,omitempty"`
}

// ErrorResult converts a branch failure into an error-shaped result that is
// surfaced to the customer via synthesis instead of propagating.
func ErrorResult(msg string) *Result {
	return &Result{Payload: map[string]interface{}{"error": msg}}
}

// IsError reports whether the result is error-shaped.
func (r *Result) IsError() bool {
	if r == nil || r.Payload == nil {
		return false
	}
	_, ok := r.Payload["error"]
	return ok
}

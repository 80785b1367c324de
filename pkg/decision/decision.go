// Package decision turns an inbound message and the session state into a
// structured Decision via the completion service, with a deterministic
// corrector for the cases the model under-triggers.
package decision

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/sharpshop/sharpshop/pkg/session"
)

// Tool identifies a commerce operation the dispatcher can execute. The wire
// values are what the completion service is prompted to emit.
type Tool string

const (
	ToolNone              Tool = ""
	ToolCatalogSearch     Tool = "search_shop_products"
	ToolAvailabilityCheck Tool = "check_product_availability"
	ToolCreateOrder       Tool = "create_order"
	ToolPaymentLinkCreate Tool = "create_payment_link"
	ToolOrderStatusCheck  Tool = "check_order_status"
	ToolShopInfo          Tool = "get_shop_info"
)

// Known reports whether t is a member of the closed tool set.
func (t Tool) Known() bool {
	switch t {
	case ToolNone, ToolCatalogSearch, ToolAvailabilityCheck, ToolCreateOrder,
		ToolPaymentLinkCreate, ToolOrderStatusCheck, ToolShopInfo:
		return true
	}
	return false
}

// Decision is the engine's sole output contract, produced fresh each turn
// and never persisted beyond it.
type Decision struct {
	Tool         Tool                   `json:"tool"`
	Args         map[string]interface{} `json:"args,omitempty"`
	NextState    session.State          `json:"next_state,omitempty"`
	StateUpdates map[string]interface{} `json:"state_updates,omitempty"`
}

// NoOp is the degraded decision substituted on any failure: no tool, no
// state change, the turn falls through to chit-chat synthesis.
func NoOp() Decision {
	return Decision{}
}

// ArgString returns a string argument by key, empty when absent or not a
// string.
func (d Decision) ArgString(key string) string {
	if d.Args == nil {
		return ""
	}
	s, _ := d.Args[key].(string)
	return s
}

// decisionSchema constrains the completion service payload before any field
// is trusted.
const decisionSchema = `{
	"type": "object",
	"properties": {
		"tool": {"type": ["string", "null"]},
		"args": {"type": ["object", "null"]},
		"next_state": {
			"type": ["string", "null"],
			"enum": [
				"browsing",
				"awaiting_fulfillment",
				"awaiting_payment",
				"collecting_delivery_details",
				"paid",
				"completed",
				null
			]
		},
		"state_updates": {"type": ["object", "null"]}
	}
}`

var compiledSchema *gojsonschema.Schema

func init() {
	var err error
	compiledSchema, err = gojsonschema.NewSchema(gojsonschema.NewStringLoader(decisionSchema))
	if err != nil {
		panic(fmt.Sprintf("decision: invalid schema: %v", err))
	}
}

// wireDecision mirrors the JSON object the completion service emits.
type wireDecision struct {
	Tool         *string                `json:"tool"`
	Args         map[string]interface{} `json:"args"`
	NextState    *string                `json:"next_state"`
	StateUpdates map[string]interface{} `json:"state_updates"`
}

// Parse validates and decodes a raw completion payload into a Decision.
func Parse(raw string) (Decision, error) {
	raw = stripFences(strings.TrimSpace(raw))
	if raw == "" {
		return NoOp(), fmt.Errorf("empty decision payload")
	}

	res, err := compiledSchema.Validate(gojsonschema.NewStringLoader(raw))
	if err != nil {
		return NoOp(), fmt.Errorf("decision payload is not valid JSON: %w", err)
	}
	if !res.Valid() {
		return NoOp(), fmt.Errorf("decision payload failed validation: %v", res.Errors())
	}

	var wire wireDecision
	if err := json.Unmarshal([]byte(raw), &wire); err != nil {
		return NoOp(), fmt.Errorf("failed to decode decision payload: %w", err)
	}

	dec := Decision{
		Args:         wire.Args,
		StateUpdates: wire.StateUpdates,
	}
	if wire.Tool != nil {
		dec.Tool = Tool(*wire.Tool)
	}
	if wire.NextState != nil {
		dec.NextState = session.State(*wire.NextState)
	}

	return dec, nil
}

// stripFences removes a markdown code fence some models insist on wrapping
// JSON output in.
func stripFences(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

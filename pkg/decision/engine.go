package decision

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/sharpshop/sharpshop/internal/metrics"
	"github.com/sharpshop/sharpshop/pkg/completion"
	"github.com/sharpshop/sharpshop/pkg/session"
)

// DefaultHistoryWindow is how many transcript turns the decision call sees.
// Sending only the last user message makes the model default to tool=null
// too often.
const DefaultHistoryWindow = 8

// decisionTemperature keeps the state-management call near-deterministic.
const decisionTemperature = 0.1

const statePrompt = `You are the brain of a shopping assistant. Manage the conversation flow based on the current state.

Current State: %s
Current Product ID: %s
Current Order ID: %s

Rules by state:
1. browsing:
   - User expresses intent to buy a specific product OR just mentions a product keyword (e.g., "wired", "mouse")? -> Output tool="search_shop_products", args={"query": "keyword"}.
   - If the user sends a short message like "wired", "mouse", "solar", ASSUME IT IS A SEARCH QUERY.
   - EXCEPTION: if the user says "hi", "hello", "hey", "good morning", etc. -> Output tool=null (chit-chat). Do NOT search greetings.
   - Only treat messages as search queries while in browsing.
2. awaiting_payment:
   - User asks for the link again? -> Output tool="create_payment_link".
   - User says "paid"? -> Output tool="check_order_status".
3. collecting_delivery_details:
   - User says "cancel" or "stop"? -> Output next_state="browsing".
   - User provides Name, Phone AND Address (a substantial string)? -> Output state_updates={"delivery_details": {...}}, next_state="paid".
   - User provides short/incomplete text? -> Output next_state=null (stay in state). Do NOT search; just reject invalid input.
4. paid:
   - Conversation ends or loops back to browsing.

Output a single JSON object ONLY:
{
  "tool": "tool_name" or null,
  "args": {"arg": "value"},
  "next_state": "new_state_name" or null,
  "state_updates": {"key": "value"}
}`

// greetings are matched exactly or by prefix against the normalized inbound
// message before the search corrector may fire.
var greetings = []string{
	"hi",
	"hello",
	"hey",
	"good morning",
	"good afternoon",
	"good evening",
	"how far",
}

// Engine produces one Decision per inbound message.
type Engine struct {
	provider      completion.Provider
	historyWindow int
	logger        zerolog.Logger
}

// NewEngine creates a decision engine.
func NewEngine(provider completion.Provider, historyWindow int, logger zerolog.Logger) *Engine {
	metrics.EnsureRegistered()

	if historyWindow <= 0 {
		historyWindow = DefaultHistoryWindow
	}
	return &Engine{
		provider:      provider,
		historyWindow: historyWindow,
		logger:        logger,
	}
}

// Decide interprets the inbound message into a Decision. It never fails the
// turn: transport or parse failures degrade to a no-op Decision and the
// session state is left untouched.
func (e *Engine) Decide(ctx context.Context, sess *session.Session, inbound string) Decision {
	system := fmt.Sprintf(statePrompt, sess.State, orPlaceholder(sess.ProductID), orPlaceholder(sess.OrderID))

	history := sess.LastMessages(e.historyWindow)
	msgs := make([]completion.Message, 0, len(history))
	for _, m := range history {
		msgs = append(msgs, completion.Message{Role: m.Role, Content: m.Content})
	}

	start := time.Now()
	raw, err := e.provider.Complete(ctx, completion.Request{
		System:      system,
		Messages:    msgs,
		Temperature: decisionTemperature,
		JSONOnly:    true,
	})
	metrics.RecordCompletionCall("decision", time.Since(start), err)

	if err != nil {
		e.logger.Warn().
			Err(err).
			Str("session_id", sess.ID).
			Msg("Decision call failed, degrading to chit-chat")
		return NoOp()
	}

	dec, err := Parse(raw)
	if err != nil {
		metrics.RecordDecisionParseError()
		e.logger.Warn().
			Err(err).
			Str("session_id", sess.ID).
			Msg("Malformed decision, substituting no-op")
		return NoOp()
	}

	dec = e.correct(sess, dec, inbound)

	metrics.RecordDecision(toolLabel(dec.Tool))
	e.logger.Debug().
		Str("session_id", sess.ID).
		Str("status", string(sess.State)).
		Str("tool", string(dec.Tool)).
		Interface("args", dec.Args).
		Str("next_state", string(dec.NextState)).
		Msg("Decision produced")

	return dec
}

// correct applies the deterministic fallback: the completion service
// under-triggers search on short informal queries, so a tool-less decision
// while browsing is forced into a catalog search unless the message is a
// greeting or trivially short.
func (e *Engine) correct(sess *session.Session, dec Decision, inbound string) Decision {
	if dec.Tool != ToolNone || sess.State != session.StateBrowsing {
		return dec
	}

	query := strings.ToLower(strings.TrimSpace(inbound))
	if len(query) <= 2 || isGreeting(query) {
		return dec
	}

	metrics.RecordDecisionFallback()
	e.logger.Debug().
		Str("session_id", sess.ID).
		Str("query", query).
		Msg("Forcing catalog search for tool-less browsing decision")

	dec.Tool = ToolCatalogSearch
	if dec.Args == nil {
		dec.Args = make(map[string]interface{}, 1)
	}
	dec.Args["query"] = query
	return dec
}

func isGreeting(normalized string) bool {
	for _, g := range greetings {
		if normalized == g || strings.HasPrefix(normalized, g+" ") {
			return true
		}
	}
	return false
}

func orPlaceholder(s string) string {
	if s == "" {
		return "none"
	}
	return s
}

func toolLabel(t Tool) string {
	if t == ToolNone {
		return "none"
	}
	return string(t)
}

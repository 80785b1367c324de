// Package synthesis produces the user-facing reply from the tool output or
// the bare conversation state, and appends it to the transcript.
package synthesis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/sharpshop/sharpshop/internal/metrics"
	"github.com/sharpshop/sharpshop/pkg/completion"
	"github.com/sharpshop/sharpshop/pkg/dispatch"
	"github.com/sharpshop/sharpshop/pkg/session"
)

// DegradedReply is used when the completion service is unavailable. A turn
// always produces a reply; silence is a design bug.
const DegradedReply = "I'm experiencing high traffic right now. Please try again in a moment."

// noToolOutput marks chit-chat turns so state-appropriate prompts still
// fire (asking for delivery details, repeating the payment link).
const noToolOutput = "No specific tool output. Proceed based on status."

const responsePrompt = `You are a helpful sales assistant for "%s".
Your goal is to be friendly and persuade customers to buy.

CURRENT STATUS: %s
PAYMENT LINK: %s

GUIDELINES:
- Tone: friendly, human, and professional.
- Conciseness is vital. Do NOT list categories or generic welcome text when a specific product was found.
- If the user asked for X and you found X, talk ONLY about X.

INSTRUCTIONS BY STATUS:
- browsing:
  - If search results were found: name the product, stock and price, and include the buy link when one exists.
  - If no search ran (user said hi/hello): welcome them to %s and ask what they are looking for.
  - If nothing was found after a search: apologize and suggest browsing categories.
- awaiting_payment:
  - If a payment link exists: "Here is your link: [Pay Now](%s)".
  - If not: say the link is being generated.
- collecting_delivery_details:
  - If payment was just confirmed: "Payment received! Please give me your **Name**, **Phone**, and **Address**."
  - If the user sent gibberish or incomplete info: ask again for **Name**, **Phone**, and **Address**.
- paid: "Order confirmed! We will deliver to **%s**."

TOOL RESULTS:
%s`

// synthesisTemperature keeps replies conversational.
const synthesisTemperature = 0.7

// historyTail is how many recent turns accompany the synthesis call.
const historyTail = 3

// Synthesizer turns tool results into replies.
type Synthesizer struct {
	provider  completion.Provider
	maxTokens int
	logger    zerolog.Logger
}

// New creates a synthesizer.
func New(provider completion.Provider, maxTokens int, logger zerolog.Logger) *Synthesizer {
	metrics.EnsureRegistered()

	if maxTokens <= 0 {
		maxTokens = 500
	}
	return &Synthesizer{
		provider:  provider,
		maxTokens: maxTokens,
		logger:    logger,
	}
}

// Synthesize produces the reply for the turn and appends it to the
// transcript. A pre-formatted tool message is used verbatim; otherwise a
// completion call keyed by the current state generates the reply, degrading
// to a fixed message on transport failure.
func (s *Synthesizer) Synthesize(ctx context.Context, sess *session.Session, result *dispatch.Result) string {
	reply := s.compose(ctx, sess, result)
	sess.Append("assistant", reply)
	return reply
}

func (s *Synthesizer) compose(ctx context.Context, sess *session.Session, result *dispatch.Result) string {
	// The dispatcher already decided product/price/link formatting; it must
	// not be paraphrased.
	if result != nil && result.Message != "" {
		return result.Message
	}

	system := s.buildPrompt(sess, result)

	history := sess.LastMessages(historyTail)
	msgs := make([]completion.Message, 0, len(history))
	for _, m := range history {
		msgs = append(msgs, completion.Message{Role: m.Role, Content: m.Content})
	}

	start := time.Now()
	reply, err := s.provider.Complete(ctx, completion.Request{
		System:      system,
		Messages:    msgs,
		Temperature: synthesisTemperature,
		MaxTokens:   s.maxTokens,
	})
	metrics.RecordCompletionCall("synthesis", time.Since(start), err)

	if err != nil || reply == "" {
		s.logger.Warn().
			Err(err).
			Str("session_id", sess.ID).
			Msg("Synthesis call failed, using degraded reply")
		return DegradedReply
	}

	return reply
}

func (s *Synthesizer) buildPrompt(sess *session.Session, result *dispatch.Result) string {
	toolResults := noToolOutput
	if result != nil {
		if data, err := json.MarshalIndent(result.Payload, "", "  "); err == nil && len(result.Payload) > 0 {
			toolResults = string(data)
		}
	}

	paymentLink := sess.PaymentLink
	if paymentLink == "" {
		paymentLink = "Generating..."
	}

	address := sess.DeliveryDetails["address"]
	if address == "" {
		address = sess.DeliveryDetails["Address"]
	}
	if address == "" {
		address = "your address"
	}

	return fmt.Sprintf(responsePrompt,
		sess.TraderName,
		sess.State,
		paymentLink,
		sess.TraderName,
		paymentLink,
		address,
		toolResults,
	)
}

// Package orchestrator sequences one inbound message through the decision,
// dispatch and synthesis stages and returns the updated session.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/sharpshop/sharpshop/internal/metrics"
	"github.com/sharpshop/sharpshop/pkg/commerce"
	"github.com/sharpshop/sharpshop/pkg/decision"
	"github.com/sharpshop/sharpshop/pkg/dispatch"
	"github.com/sharpshop/sharpshop/pkg/session"
	"github.com/sharpshop/sharpshop/pkg/synthesis"
)

// ErrTraderNotFound is surfaced to the transport layer when first contact
// names an unknown trader. No session is created.
var ErrTraderNotFound = errors.New("orchestrator: trader not found")

// DefaultCallTimeout bounds each completion round trip. A timeout is a
// service failure handled by the degraded paths, never a cancellation of
// already-applied state.
const DefaultCallTimeout = 30 * time.Second

// TurnResult is returned to the hosting transport layer for each turn.
type TurnResult struct {
	SessionID string             `json:"session_id"`
	Reply     string             `json:"reply"`
	Products  []commerce.Product `json:"products,omitempty"`
}

// Options configures the orchestrator.
type Options struct {
	Store       *session.Store
	Engine      *decision.Engine
	Dispatcher  *dispatch.Dispatcher
	Synthesizer *synthesis.Synthesizer
	Shop        commerce.Shop
	Notifier    commerce.Notifier
	CallTimeout time.Duration
	Logger      zerolog.Logger
}

// Orchestrator drives the per-session conversation state machine.
type Orchestrator struct {
	store       *session.Store
	engine      *decision.Engine
	dispatcher  *dispatch.Dispatcher
	synth       *synthesis.Synthesizer
	shop        commerce.Shop
	notifier    commerce.Notifier
	lanes       *laneQueue
	callTimeout time.Duration
	logger      zerolog.Logger
}

// New creates an orchestrator.
func New(opts Options) (*Orchestrator, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("session store is required")
	}
	if opts.Engine == nil {
		return nil, fmt.Errorf("decision engine is required")
	}
	if opts.Dispatcher == nil {
		return nil, fmt.Errorf("tool dispatcher is required")
	}
	if opts.Synthesizer == nil {
		return nil, fmt.Errorf("response synthesizer is required")
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = DefaultCallTimeout
	}

	metrics.EnsureRegistered()

	return &Orchestrator{
		store:       opts.Store,
		engine:      opts.Engine,
		dispatcher:  opts.Dispatcher,
		synth:       opts.Synthesizer,
		shop:        opts.Shop,
		notifier:    opts.Notifier,
		lanes:       newLaneQueue(),
		callTimeout: opts.CallTimeout,
		logger:      opts.Logger,
	}, nil
}

// HandleTurn processes one inbound message. An empty sessionID means first
// contact: a session is created for the trader. Turns for the same session
// are strictly serialized; different sessions run concurrently.
func (o *Orchestrator) HandleTurn(ctx context.Context, sessionID, traderID, message string) (*TurnResult, error) {
	start := time.Now()

	if sessionID == "" {
		sess, err := o.createSession(ctx, traderID)
		if err != nil {
			metrics.RecordTurn("trader_not_found", time.Since(start))
			return nil, err
		}
		sessionID = sess.ID
	}

	var (
		result *TurnResult
		err    error
	)
	o.lanes.Do(sessionID, func() {
		result, err = o.runTurn(ctx, sessionID, message)
	})

	status := "ok"
	if err != nil {
		status = "not_found"
	}
	metrics.RecordTurn(status, time.Since(start))

	return result, err
}

func (o *Orchestrator) createSession(ctx context.Context, traderID string) (*session.Session, error) {
	traderName := "Shop"
	whatsapp := ""

	if o.shop != nil {
		info, err := o.shop.ShopInfo(ctx, traderID)
		if err != nil {
			if errors.Is(err, commerce.ErrNotFound) {
				return nil, ErrTraderNotFound
			}
			// A profile read failure should not block first contact
			o.logger.Warn().
				Err(err).
				Str("trader_id", traderID).
				Msg("Shop profile lookup failed, using defaults")
		} else {
			traderName = info.BusinessName
			whatsapp = info.WhatsAppNumber
		}
	}

	sess := o.store.Create(traderID, traderName, whatsapp)
	o.logger.Info().
		Str("session_id", sess.ID).
		Str("trader_id", traderID).
		Msg("Session created on first contact")
	return sess, nil
}

// runTurn executes a single decide -> dispatch -> synthesize pass. It runs
// inside the session's lane, so no other pass can interleave against this
// session's state.
func (o *Orchestrator) runTurn(ctx context.Context, sessionID, message string) (*TurnResult, error) {
	sess, err := o.store.Acquire(sessionID)
	if err != nil {
		return nil, err
	}
	defer o.store.Release(sessionID)

	sess.Append("user", message)

	decideCtx, cancel := context.WithTimeout(ctx, o.callTimeout)
	dec := o.engine.Decide(decideCtx, sess, message)
	cancel()

	sess.Context.Decision = dec
	decision.Apply(ctx, sess, dec, o.notifier, o.logger)

	var toolResult *dispatch.Result
	if dec.Tool != decision.ToolNone ||
		sess.State == session.StateAwaitingPayment ||
		sess.State == session.StatePaid {
		execCtx, cancel := context.WithTimeout(ctx, o.callTimeout)
		toolResult = o.dispatcher.Execute(execCtx, sess, dec)
		cancel()
	}
	sess.Context.ToolResult = toolResult

	synthCtx, cancel := context.WithTimeout(ctx, o.callTimeout)
	reply := o.synth.Synthesize(synthCtx, sess, toolResult)
	cancel()

	// The scratch slot does not outlive the turn
	sess.Context = session.TurnContext{}

	if err := o.store.Update(sessionID, sess); err != nil {
		// The session was closed while pinned; the reply still stands
		o.logger.Warn().
			Str("session_id", sessionID).
			Msg("Session vanished before final update")
	}

	result := &TurnResult{
		SessionID: sessionID,
		Reply:     reply,
	}
	if toolResult != nil {
		result.Products = toolResult.Products
	}
	return result, nil
}

// History returns a snapshot of a session's transcript. The read runs
// through the session's lane, so it can never interleave with a turn
// mutating the transcript, and the returned slice is a copy.
func (o *Orchestrator) History(sessionID string) ([]session.Message, error) {
	var (
		history []session.Message
		err     error
	)
	o.lanes.Do(sessionID, func() {
		var sess *session.Session
		sess, err = o.store.Get(sessionID)
		if err != nil {
			return
		}
		history = append([]session.Message(nil), sess.Messages...)
	})
	return history, err
}

// CloseSession removes a session explicitly, after any in-flight turn for
// it has completed. Reports whether it existed.
func (o *Orchestrator) CloseSession(sessionID string) bool {
	var existed bool
	o.lanes.Do(sessionID, func() {
		existed = o.store.Close(sessionID)
	})
	return existed
}

// Package dispatch turns one inbound chat message into exactly one routing
// decision: filter, rate gate, explicit command, model, fallback.
package dispatch

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/roelfdiedericks/gaiabot/internal/fallback"
	"github.com/roelfdiedericks/gaiabot/internal/filter"
	. "github.com/roelfdiedericks/gaiabot/internal/logging"
	. "github.com/roelfdiedericks/gaiabot/internal/metrics"
	"github.com/roelfdiedericks/gaiabot/internal/types"
)

// DefaultClassifyTimeout bounds one model round trip.
const DefaultClassifyTimeout = 15 * time.Second

var errNoClassifier = errors.New("no classifier configured")

// ContentFilter rejects messages with deny-listed terms.
type ContentFilter interface {
	Match(text string) (string, bool)
}

// RateGate is the per-sender cooldown.
type RateGate interface {
	Allow(sender types.SenderID, now time.Time) bool
}

// CommandMatcher resolves explicit "!" commands.
type CommandMatcher interface {
	Match(ctx context.Context, sender types.SenderID, normalized string) (types.Decision, bool)
}

// Classifier asks the model for a decision.
type Classifier interface {
	Classify(ctx context.Context, msg types.Message) (types.Decision, error)
}

// FallbackPolicy produces a canned reply after a model failure.
type FallbackPolicy interface {
	Decide(msg types.Message, cause error) types.Decision
}

// Deps are the routing stages. Any stage but Fallback may be nil and is then
// skipped; a nil Classifier sends every unmatched message to Fallback, and a
// nil Fallback selects fallback.Default.
type Deps struct {
	Filter     ContentFilter
	Limiter    RateGate
	Matcher    CommandMatcher
	Classifier Classifier
	Fallback   FallbackPolicy
}

// DispatchConfig holds dispatcher options.
type DispatchConfig struct {
	SelfName        string        // agent's own username; its messages are ignored
	ReplyLimit      int           // max reply characters
	ClassifyTimeout time.Duration // bound on the model call
	RedirectMessage string        // reply for filtered messages

	// BeforeClassify runs just before the model call, e.g. to send a
	// "thinking" notice. It must not block for long.
	BeforeClassify func(ctx context.Context, msg types.Message)

	// Now is the clock used by the rate gate. Defaults to time.Now.
	Now func() time.Time
}

// Dispatcher is safe for concurrent use; the only shared mutable state is
// inside the rate gate.
type Dispatcher struct {
	deps Deps
	cfg  DispatchConfig

	ready    atomic.Bool
	shutdown atomic.Bool
}

// New creates a dispatcher. It starts not ready; call MarkReady once the
// world has spawned the agent.
func New(deps Deps, cfg DispatchConfig) *Dispatcher {
	if cfg.ReplyLimit <= 0 {
		cfg.ReplyLimit = DefaultReplyLimit
	}
	if cfg.ClassifyTimeout <= 0 {
		cfg.ClassifyTimeout = DefaultClassifyTimeout
	}
	if cfg.RedirectMessage == "" {
		cfg.RedirectMessage = filter.DefaultRedirect
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if deps.Fallback == nil {
		deps.Fallback = fallback.Default()
	}
	return &Dispatcher{deps: deps, cfg: cfg}
}

// MarkReady opens the gate.
func (d *Dispatcher) MarkReady() {
	if !d.ready.Swap(true) {
		L_info("dispatch: ready")
	}
}

// MarkNotReady closes the gate until the next MarkReady.
func (d *Dispatcher) MarkNotReady() {
	if d.ready.Swap(false) {
		L_info("dispatch: not ready")
	}
}

// Ready reports whether messages are being routed.
func (d *Dispatcher) Ready() bool {
	return d.ready.Load()
}

// BeginShutdown makes every later message Suppressed(shutting_down).
func (d *Dispatcher) BeginShutdown() {
	d.shutdown.Store(true)
}

// ReplyLimit returns the effective reply cap.
func (d *Dispatcher) ReplyLimit() int {
	return d.cfg.ReplyLimit
}

// Dispatch routes msg to exactly one decision. It never fails; every stage
// error is recovered into a Reply or a Suppressed decision.
func (d *Dispatcher) Dispatch(ctx context.Context, msg types.Message) types.Decision {
	dec, _ := d.run(ctx, msg)
	return dec
}

// run walks the state machine and returns the decision plus the states
// visited, Idle first and Done last.
func (d *Dispatcher) run(ctx context.Context, msg types.Message) (types.Decision, []State) {
	trace := uuid.NewString()[:8]
	start := time.Now()
	path := []State{StateIdle}

	var dec types.Decision
	state := StateIdle
	for state != StateDone {
		var next State
		dec, next = d.step(ctx, state, msg, dec)
		if next == StateDone {
			path = append(path, StateDone)
			break
		}
		path = append(path, next)
		state = next
	}

	if dec.Kind == types.DecisionReply {
		dec.Text = Truncate(dec.Text, d.cfg.ReplyLimit)
	}

	MetricDuration("dispatch", "run", time.Since(start))
	MetricOutcome("dispatch", string(dec.Source), dec.Kind.String())
	L_debug("dispatch: decided",
		"trace", trace,
		"sender", msg.Sender,
		"decision", dec,
		"source", dec.Source,
		"states", len(path),
		"elapsed", time.Since(start))
	if dec.Err != nil {
		L_debug("dispatch: recovered error", "trace", trace, "error", dec.Err)
	}
	return dec, path
}

// step runs one state. It returns StateDone with the decision when the
// message is resolved, or the next state to enter. prev is the previous
// step's decision; FallingBack reads the model error from it.
func (d *Dispatcher) step(ctx context.Context, state State, msg types.Message, prev types.Decision) (types.Decision, State) {
	switch state {
	case StateIdle:
		if dec, ok := d.gate(msg); ok {
			return dec.From(types.SourceGate), StateDone
		}
		return types.Decision{}, StateFiltering

	case StateFiltering:
		if d.deps.Filter != nil {
			if term, hit := d.deps.Filter.Match(msg.Text); hit {
				L_info("dispatch: content rejected", "sender", msg.Sender)
				L_trace("dispatch: rejected term", "term", term)
				return types.Reply(d.cfg.RedirectMessage).From(types.SourceFilter), StateDone
			}
		}
		return types.Decision{}, StateRateGating

	case StateRateGating:
		if d.deps.Limiter != nil && !d.deps.Limiter.Allow(msg.Sender, d.cfg.Now()) {
			return types.Suppressed(types.SuppressRateLimited).From(types.SourceGate), StateDone
		}
		return types.Decision{}, StateMatching

	case StateMatching:
		if d.deps.Matcher != nil {
			if dec, ok := d.deps.Matcher.Match(ctx, msg.Sender, msg.Normalized()); ok {
				return dec.From(types.SourceCommand), StateDone
			}
		}
		return types.Decision{}, StateClassifying

	case StateClassifying:
		dec, err := d.classify(ctx, msg)
		if err != nil {
			return types.Decision{}.WithErr(err), StateFallingBack
		}
		return dec, StateDone

	case StateFallingBack:
		return d.deps.Fallback.Decide(msg, prev.Err).From(types.SourceFallback), StateDone
	}
	return types.Suppressed(types.SuppressEmpty).From(types.SourceGate), StateDone
}

// gate applies the readiness, shutdown, self and empty checks.
func (d *Dispatcher) gate(msg types.Message) (types.Decision, bool) {
	switch {
	case d.shutdown.Load() || IsShuttingDown():
		return types.Suppressed(types.SuppressShuttingDown), true
	case !d.ready.Load():
		return types.Suppressed(types.SuppressNotReady), true
	case d.cfg.SelfName != "" && strings.EqualFold(string(msg.Sender), d.cfg.SelfName):
		return types.Suppressed(types.SuppressSelf), true
	case strings.TrimSpace(msg.Text) == "":
		return types.Suppressed(types.SuppressEmpty), true
	}
	return types.Decision{}, false
}

func (d *Dispatcher) classify(ctx context.Context, msg types.Message) (types.Decision, error) {
	if d.deps.Classifier == nil {
		return types.Decision{}, errNoClassifier
	}
	if d.cfg.BeforeClassify != nil {
		d.cfg.BeforeClassify(ctx, msg)
	}

	cctx, cancel := context.WithTimeout(ctx, d.cfg.ClassifyTimeout)
	defer cancel()

	dec, err := d.deps.Classifier.Classify(cctx, msg)
	if err != nil {
		L_warn("dispatch: classification failed, falling back", "sender", msg.Sender, "error", err)
		return types.Decision{}, err
	}
	return dec.From(types.SourceModel), nil
}

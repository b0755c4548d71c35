// Package intent turns free-text chat into a routing decision with the help
// of a language model. It classifies only; executing an Invoke is left to
// the caller.
package intent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/roelfdiedericks/gaiabot/internal/actions"
	"github.com/roelfdiedericks/gaiabot/internal/llm"
	. "github.com/roelfdiedericks/gaiabot/internal/logging"
	. "github.com/roelfdiedericks/gaiabot/internal/metrics"
	"github.com/roelfdiedericks/gaiabot/internal/tokens"
	"github.com/roelfdiedericks/gaiabot/internal/types"
)

// Model failures. Callers recover all of them with the fallback policy.
var (
	ErrModel          = errors.New("model error")
	ErrModelTimeout   = errors.New("model timeout")
	ErrModelMalformed = errors.New("model response malformed")
	ErrModelExhausted = errors.New("model exhausted")
)

// DefaultExhaustionMarkers are substrings of a model response that mean the
// model gave up rather than answered.
var DefaultExhaustionMarkers = []string{
	"Agent stopped due to max iterations",
	"Agent stopped due to iteration limit",
}

// DefaultMaxInputTokens clamps the player text placed in the request.
const DefaultMaxInputTokens = 256

// BridgeConfig controls request building.
type BridgeConfig struct {
	AgentName         string
	Preamble          string // overrides the generated policy message
	ExhaustionMarkers []string
	MaxInputTokens    int
}

// Bridge classifies messages through a model provider.
type Bridge struct {
	provider llm.Provider
	registry *actions.Registry
	cfg      BridgeConfig
	preamble string
}

// New creates a bridge. The preamble is rendered once from the registry.
func New(provider llm.Provider, registry *actions.Registry, cfg BridgeConfig) *Bridge {
	if cfg.AgentName == "" {
		cfg.AgentName = "GaiaBot"
	}
	if len(cfg.ExhaustionMarkers) == 0 {
		cfg.ExhaustionMarkers = DefaultExhaustionMarkers
	}
	if cfg.MaxInputTokens <= 0 {
		cfg.MaxInputTokens = DefaultMaxInputTokens
	}
	preamble := cfg.Preamble
	if preamble == "" {
		preamble = BuildPreamble(cfg.AgentName, registry)
	}
	return &Bridge{
		provider: provider,
		registry: registry,
		cfg:      cfg,
		preamble: preamble,
	}
}

// Preamble returns the policy message sent with every request.
func (b *Bridge) Preamble() string {
	return b.preamble
}

// Classify asks the model what msg wants. The returned decision is an
// Invoke for a recognised action call and a Reply for anything else. A
// non-nil error wraps one of the ErrModel* sentinels.
func (b *Bridge) Classify(ctx context.Context, msg types.Message) (types.Decision, error) {
	if b.provider == nil {
		MetricOutcome("intent", "classify", "no_provider")
		return types.Decision{}, fmt.Errorf("%w: no provider configured", ErrModel)
	}

	text := tokens.Truncate(strings.TrimSpace(msg.Text), b.cfg.MaxInputTokens)
	req := buildRequest(b.preamble, msg, text)

	start := time.Now()
	resp, err := b.provider.Chat(ctx, req)
	MetricDuration("intent", "classify", time.Since(start))
	if err != nil {
		if llm.IsTimeoutError(err) || errors.Is(err, context.Canceled) {
			MetricOutcome("intent", "classify", "timeout")
			L_warn("intent: model timed out", "provider", b.provider.Name(), "sender", msg.Sender, "elapsed", time.Since(start))
			return types.Decision{}, fmt.Errorf("%w: %w", ErrModelTimeout, err)
		}
		errType := llm.ClassifyError(err.Error())
		MetricOutcome("intent", "classify", "error_"+string(errType))
		L_warn("intent: model failed", "provider", b.provider.Name(), "type", errType, "error", err)
		return types.Decision{}, fmt.Errorf("%w: %w", ErrModel, err)
	}

	resp = strings.TrimSpace(resp)
	L_trace("intent: model response", "sender", msg.Sender, "response", resp)

	if resp == "" {
		MetricOutcome("intent", "classify", "malformed")
		return types.Decision{}, fmt.Errorf("%w: empty response", ErrModelMalformed)
	}
	if marker, ok := b.exhausted(resp); ok {
		MetricOutcome("intent", "classify", "exhausted")
		L_warn("intent: model exhausted", "marker", marker, "sender", msg.Sender)
		return types.Decision{}, fmt.Errorf("%w: %q", ErrModelExhausted, marker)
	}

	d := b.decide(resp, msg.Sender).From(types.SourceModel)
	MetricOutcome("intent", "classify", d.Kind.String())
	L_debug("intent: classified", "sender", msg.Sender, "decision", d)
	return d, nil
}

func (b *Bridge) exhausted(resp string) (string, bool) {
	lower := strings.ToLower(resp)
	for _, m := range b.cfg.ExhaustionMarkers {
		if m != "" && strings.Contains(lower, strings.ToLower(m)) {
			return m, true
		}
	}
	return "", false
}

// decide maps a non-empty model response to a decision.
func (b *Bridge) decide(resp string, sender types.SenderID) types.Decision {
	call, ok := parseResponse(resp)
	if !ok {
		return types.Reply(resp)
	}
	name := types.ActionName(call.Name)
	if !b.registry.Has(name) {
		L_debug("intent: unknown action in model response", "action", call.Name)
		return types.Reply(resp)
	}
	return types.Invoke(name, b.resolveParams(name, call.params(), sender))
}

// resolveParams maps the call's single free-text value onto the parameter
// the action declares.
func (b *Bridge) resolveParams(name types.ActionName, args map[string]any, sender types.SenderID) types.Params {
	var p types.Params
	kind, ok := b.registry.AliasKind(name)
	if !ok {
		return p
	}

	value := aliasValue(args)
	switch kind {
	case actions.ParamBlockType:
		p.BlockType = value
	case actions.ParamPlayer:
		p.PlayerName = resolveIdentity(value, sender)
	}

	if name == types.ActionPlaceBlock {
		target := ""
		if _, hasBlock := stringArg(args, "blockType"); hasBlock {
			target, _ = stringArg(args, "playerName")
		}
		p.PlayerName = resolveIdentity(target, sender)
	}
	return p
}

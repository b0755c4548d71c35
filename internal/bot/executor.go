package bot

import (
	"context"

	"github.com/roelfdiedericks/gaiabot/internal/actions"
	"github.com/roelfdiedericks/gaiabot/internal/dispatch"
	. "github.com/roelfdiedericks/gaiabot/internal/logging"
	. "github.com/roelfdiedericks/gaiabot/internal/metrics"
	"github.com/roelfdiedericks/gaiabot/internal/types"
	"github.com/roelfdiedericks/gaiabot/internal/world"
)

// Executor carries out routing decisions: it says replies and runs invoked
// actions, reporting the outcome in chat.
type Executor struct {
	registry *actions.Registry
	chat     world.Chat
	limit    int
}

// NewExecutor creates an executor. limit caps every line sent.
func NewExecutor(registry *actions.Registry, chat world.Chat, limit int) *Executor {
	return &Executor{registry: registry, chat: chat, limit: limit}
}

// Execute acts on d. A Suppressed decision does nothing. For an Invoke the
// result text is sent whether the action succeeded or not; only the wording
// changes.
func (e *Executor) Execute(ctx context.Context, d types.Decision) {
	switch d.Kind {
	case types.DecisionSuppressed:
		MetricOutcome("bot", "execute", "suppressed_"+string(d.Reason))
		return

	case types.DecisionReply:
		e.Say(ctx, d.Text)

	case types.DecisionInvoke:
		text, err := e.registry.Execute(actions.WithNotifier(ctx, e.Say), d.Action, d.Params)
		if err != nil {
			text = actions.ReplyFor(err)
		}
		e.Say(ctx, text)
	}
	MetricOutcome("bot", "execute", d.Kind.String())
}

// Say sends text, truncated to the channel limit. Failures are logged.
func (e *Executor) Say(ctx context.Context, text string) {
	if text == "" || e.chat == nil {
		return
	}
	if err := e.chat.Say(ctx, dispatch.Truncate(text, e.limit)); err != nil {
		MetricFail("bot", "say")
		L_warn("bot: chat send failed", "error", err)
		return
	}
	MetricSuccess("bot", "say")
}

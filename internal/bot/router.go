package bot

import (
	"context"

	"github.com/roelfdiedericks/gaiabot/internal/actions"
	"github.com/roelfdiedericks/gaiabot/internal/commands"
	"github.com/roelfdiedericks/gaiabot/internal/config"
	"github.com/roelfdiedericks/gaiabot/internal/dispatch"
	"github.com/roelfdiedericks/gaiabot/internal/fallback"
	"github.com/roelfdiedericks/gaiabot/internal/filter"
	"github.com/roelfdiedericks/gaiabot/internal/intent"
	"github.com/roelfdiedericks/gaiabot/internal/llm"
	. "github.com/roelfdiedericks/gaiabot/internal/logging"
	"github.com/roelfdiedericks/gaiabot/internal/ratelimit"
	"github.com/roelfdiedericks/gaiabot/internal/types"
	"github.com/roelfdiedericks/gaiabot/internal/world"
)

// Router is the routing core wired from config: everything needed to turn a
// chat line into a decision and carry it out.
type Router struct {
	Registry   *actions.Registry
	Filter     *filter.Filter
	Dispatcher *dispatch.Dispatcher
	Executor   *Executor
}

// BuildRouter wires the routing stages over w. provider may be nil, in
// which case unmatched messages get the fallback replies.
func BuildRouter(cfg *config.Config, w world.World, chat world.Chat, provider llm.Provider) *Router {
	registry := actions.New(w, actions.SearchConfig{
		SearchRadius: cfg.Actions.SearchRadius,
		LookRadius:   cfg.Actions.LookRadius,
		LookSamples:  cfg.Actions.LookSamples,
		LookTypes:    cfg.Actions.LookTypes,
	})
	contentFilter := filter.New(cfg.Router.DenyList)

	deps := dispatch.Deps{
		Filter:   contentFilter,
		Limiter:  ratelimit.New(cfg.Cooldown()),
		Matcher:  commands.NewMatcher(w),
		Fallback: fallback.Default(),
	}
	if provider != nil {
		deps.Classifier = intent.New(provider, registry, intent.BridgeConfig{
			AgentName:         cfg.Agent.Name,
			ExhaustionMarkers: cfg.Router.ExhaustionMarkers,
			MaxInputTokens:    cfg.LLM.MaxInputTokens,
		})
	} else {
		L_warn("bot: no model provider, unmatched messages get fallback replies")
	}

	dcfg := dispatch.DispatchConfig{
		SelfName:        w.Username(),
		ReplyLimit:      cfg.Router.ReplyLimit,
		ClassifyTimeout: cfg.ClassifyTimeout(),
		RedirectMessage: cfg.Router.RedirectMessage,
	}
	if notice := cfg.Router.ThinkingNotice; notice != "" && chat != nil {
		dcfg.BeforeClassify = func(ctx context.Context, msg types.Message) {
			if err := chat.Say(ctx, dispatch.Truncate(notice, cfg.Router.ReplyLimit)); err != nil {
				L_debug("bot: thinking notice not sent", "error", err)
			}
		}
	}

	d := dispatch.New(deps, dcfg)
	return &Router{
		Registry:   registry,
		Filter:     contentFilter,
		Dispatcher: d,
		Executor:   NewExecutor(registry, chat, d.ReplyLimit()),
	}
}

// Package bot runs gaiabot: it serves the world connection, routes each
// chat line through the dispatcher and carries out the decision.
package bot

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/roelfdiedericks/gaiabot/internal/bus"
	"github.com/roelfdiedericks/gaiabot/internal/config"
	"github.com/roelfdiedericks/gaiabot/internal/llm"
	. "github.com/roelfdiedericks/gaiabot/internal/logging"
	. "github.com/roelfdiedericks/gaiabot/internal/metrics"
	"github.com/roelfdiedericks/gaiabot/internal/types"
	"github.com/roelfdiedericks/gaiabot/internal/world"
)

// Runtime is the world connection the bot serves. Satisfied by
// *world.Client.
type Runtime interface {
	world.World
	world.Chat
	// Run services the connection until ctx is done and closes Events
	// before returning.
	Run(ctx context.Context) error
	Events() <-chan world.Event
}

// DefaultDrainTimeout bounds how long shutdown waits for in-flight messages
// before the connection is closed under them.
const DefaultDrainTimeout = 10 * time.Second

// Bot ties a Runtime to a Router.
type Bot struct {
	cfg    *config.Config
	rt     Runtime
	bus    *bus.Bus
	router *Router

	// DrainTimeout overrides DefaultDrainTimeout when positive.
	DrainTimeout time.Duration

	inflight  sync.WaitGroup
	greetOnce sync.Once
}

// New creates a bot. provider may be nil.
func New(cfg *config.Config, rt Runtime, provider llm.Provider, b *bus.Bus) *Bot {
	if b == nil {
		b = bus.Default()
	}
	return &Bot{
		cfg:    cfg,
		rt:     rt,
		bus:    b,
		router: BuildRouter(cfg, rt, rt, provider),
	}
}

// Router returns the routing core.
func (b *Bot) Router() *Router {
	return b.router
}

// Run serves until ctx is done. Shutdown stops intake first, then lets
// in-flight messages finish over the still-open connection for up to
// DrainTimeout, then closes the connection.
func (b *Bot) Run(ctx context.Context) error {
	sub := b.bus.Subscribe(bus.TopicConfigReloaded, b.onConfigReloaded)
	defer b.bus.Unsubscribe(sub)

	connCtx, closeConn := context.WithCancel(context.WithoutCancel(ctx))
	defer closeConn()

	g := new(errgroup.Group)
	g.Go(func() error {
		return b.rt.Run(connCtx)
	})
	g.Go(func() error {
		b.consume(ctx, connCtx)
		b.drain()
		closeConn()
		return nil
	})

	err := g.Wait()
	b.inflight.Wait()

	if err != nil {
		L_error("bot: stopped with error", "error", err)
		return err
	}
	L_info("bot: stopped")
	return nil
}

// drain gates new messages and waits for in-flight ones, up to the drain
// timeout.
func (b *Bot) drain() {
	b.router.Dispatcher.BeginShutdown()

	timeout := b.DrainTimeout
	if timeout <= 0 {
		timeout = DefaultDrainTimeout
	}
	done := make(chan struct{})
	go func() {
		b.inflight.Wait()
		close(done)
	}()

	start := time.Now()
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-done:
		L_debug("bot: drained in-flight messages", "elapsed", time.Since(start))
	case <-timer.C:
		L_warn("bot: drain timed out, closing connection", "timeout", timeout)
	}
}

// consume reads world events until ctx is done or the stream closes.
// Message handling runs on connCtx so it outlives ctx during the drain.
func (b *Bot) consume(ctx, connCtx context.Context) {
	events := b.rt.Events()
	for {
		var ev world.Event
		var ok bool
		select {
		case <-ctx.Done():
			return
		case ev, ok = <-events:
			if !ok {
				return
			}
		}

		switch ev.Kind {
		case world.EventSpawn:
			L_info("bot: spawned", "username", b.rt.Username())
			MetricInc("bot", "spawn")
			b.router.Dispatcher.MarkReady()
			b.bus.Publish(bus.TopicWorldSpawned, b.rt.Username(), "world")
			b.greetOnce.Do(func() {
				b.router.Executor.Say(connCtx, b.cfg.Agent.Greeting)
			})

		case world.EventEnd:
			L_warn("bot: disconnected from world")
			MetricInc("bot", "end")
			b.router.Dispatcher.MarkNotReady()
			b.bus.Publish(bus.TopicWorldEnded, ev.Text, "world")

		case world.EventError:
			L_warn("bot: world error", "error", ev.Text)
			MetricInc("bot", "world_error")

		case world.EventChat:
			msg := types.Message{
				Sender:     types.SenderID(ev.Sender),
				Text:       ev.Text,
				ReceivedAt: ev.At,
			}
			if msg.ReceivedAt.IsZero() {
				msg.ReceivedAt = time.Now()
			}
			L_trace("bot: chat", "sender", msg.Sender, "text", msg.Text)

			b.inflight.Add(1)
			go func() {
				defer b.inflight.Done()
				b.handle(connCtx, msg)
			}()
		}
	}
}

// handle routes and executes one message. Messages are independent; no
// ordering holds between them.
func (b *Bot) handle(ctx context.Context, msg types.Message) {
	defer MetricTimer("bot", "handle")()
	d := b.router.Dispatcher.Dispatch(ctx, msg)
	b.router.Executor.Execute(ctx, d)
}

func (b *Bot) onConfigReloaded(ev bus.Event) {
	cfg, ok := ev.Data.(*config.Config)
	if !ok {
		return
	}
	b.router.Filter.SetTerms(cfg.Router.DenyList)
	L_info("bot: deny-list updated", "terms", len(cfg.Router.DenyList))
}

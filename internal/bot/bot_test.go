package bot

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/roelfdiedericks/gaiabot/internal/bus"
	"github.com/roelfdiedericks/gaiabot/internal/config"
	"github.com/roelfdiedericks/gaiabot/internal/llm/llmtest"
	"github.com/roelfdiedericks/gaiabot/internal/types"
	"github.com/roelfdiedericks/gaiabot/internal/world"
	"github.com/roelfdiedericks/gaiabot/internal/world/worldtest"
)

// fakeRuntime feeds scripted events over a worldtest.Fake. Once Run has
// returned, chat sends fail as they would on a closed connection.
type fakeRuntime struct {
	*worldtest.Fake
	events chan world.Event
	inject chan world.Event
	closed atomic.Bool

	// holdInventory, when set, is signalled on each Inventory call and the
	// call then waits for it to be closed.
	holdInventory chan struct{}
	inventoryHit  chan struct{}
}

func newFakeRuntime(self string) *fakeRuntime {
	return &fakeRuntime{
		Fake:   worldtest.New(self),
		events: make(chan world.Event),
		inject: make(chan world.Event),
	}
}

func (r *fakeRuntime) Events() <-chan world.Event { return r.events }

func (r *fakeRuntime) Say(ctx context.Context, text string) error {
	if r.closed.Load() {
		return world.ErrDisconnected
	}
	return r.Fake.Say(ctx, text)
}

func (r *fakeRuntime) Inventory(ctx context.Context) ([]world.Item, error) {
	if r.holdInventory != nil {
		r.inventoryHit <- struct{}{}
		<-r.holdInventory
	}
	return r.Fake.Inventory(ctx)
}

func (r *fakeRuntime) Run(ctx context.Context) error {
	defer close(r.events)
	defer r.closed.Store(true)
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-r.inject:
			select {
			case r.events <- ev:
			case <-ctx.Done():
				return nil
			}
		}
	}
}

func (r *fakeRuntime) send(t *testing.T, ev world.Event) {
	t.Helper()
	select {
	case r.inject <- ev:
	case <-time.After(2 * time.Second):
		t.Fatal("runtime not accepting events")
	}
}

func chat(sender, text string) world.Event {
	return world.Event{Kind: world.EventChat, Sender: sender, Text: text, At: time.Now()}
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Router.CooldownMs = 1
	return cfg
}

// start runs the bot and returns a stop func that cancels and waits.
func start(t *testing.T, b *Bot) func() {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- b.Run(ctx) }()
	return func() {
		cancel()
		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Fatal("bot did not stop")
		}
	}
}

func TestBotLifecycle(t *testing.T) {
	defer goleak.VerifyNone(t)

	rt := newFakeRuntime("gaia")
	rt.AddItem("dirt", 3)
	b := New(testConfig(), rt, nil, bus.New())
	stop := start(t, b)

	assert.False(t, b.Router().Dispatcher.Ready())
	rt.send(t, world.Event{Kind: world.EventSpawn})
	require.Eventually(t, b.Router().Dispatcher.Ready, 2*time.Second, 5*time.Millisecond)

	rt.send(t, chat("alice", "!inv"))
	rt.send(t, chat("gaia", "!inv"))

	require.Eventually(t, func() bool { return len(rt.Lines()) >= 2 }, 2*time.Second, 5*time.Millisecond)
	stop()

	assert.Equal(t, []string{
		"Hello! I'm online and ready to help with Minecraft tasks!",
		"I have: dirt x3",
	}, rt.Lines())
}

func TestBotGreetsOnlyOnFirstSpawn(t *testing.T) {
	defer goleak.VerifyNone(t)

	rt := newFakeRuntime("gaia")
	events := bus.New()
	var spawns atomic.Int32
	events.Subscribe(bus.TopicWorldSpawned, func(bus.Event) { spawns.Add(1) })

	b := New(testConfig(), rt, nil, events)
	stop := start(t, b)

	rt.send(t, world.Event{Kind: world.EventSpawn})
	rt.send(t, world.Event{Kind: world.EventEnd})
	rt.send(t, world.Event{Kind: world.EventSpawn})
	require.Eventually(t, func() bool { return spawns.Load() == 2 }, 2*time.Second, 5*time.Millisecond)
	stop()
	events.Wait()

	assert.Equal(t, []string{"Hello! I'm online and ready to help with Minecraft tasks!"}, rt.Lines())
}

func TestShutdownDrainsBeforeDisconnect(t *testing.T) {
	defer goleak.VerifyNone(t)

	rt := newFakeRuntime("gaia")
	rt.AddItem("dirt", 3)
	rt.holdInventory = make(chan struct{})
	rt.inventoryHit = make(chan struct{}, 1)

	b := New(testConfig(), rt, nil, bus.New())
	stop := start(t, b)

	rt.send(t, world.Event{Kind: world.EventSpawn})
	require.Eventually(t, b.Router().Dispatcher.Ready, 2*time.Second, 5*time.Millisecond)
	rt.send(t, chat("alice", "!inv"))

	select {
	case <-rt.inventoryHit:
	case <-time.After(2 * time.Second):
		t.Fatal("inventory never queried")
	}

	go func() {
		time.Sleep(50 * time.Millisecond)
		close(rt.holdInventory)
	}()
	stop()

	assert.Equal(t, []string{
		"Hello! I'm online and ready to help with Minecraft tasks!",
		"I have: dirt x3",
	}, rt.Lines())
	assert.True(t, rt.closed.Load())
}

func TestShutdownDrainTimeout(t *testing.T) {
	defer goleak.VerifyNone(t)

	rt := newFakeRuntime("gaia")
	rt.holdInventory = make(chan struct{})
	rt.inventoryHit = make(chan struct{}, 1)

	b := New(testConfig(), rt, nil, bus.New())
	b.DrainTimeout = 20 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- b.Run(ctx) }()

	rt.send(t, world.Event{Kind: world.EventSpawn})
	require.Eventually(t, b.Router().Dispatcher.Ready, 2*time.Second, 5*time.Millisecond)
	rt.send(t, chat("alice", "!inv"))
	<-rt.inventoryHit

	cancel()
	require.Eventually(t, rt.closed.Load, 2*time.Second, 5*time.Millisecond, "connection closed after the drain timeout")
	close(rt.holdInventory)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("bot did not stop")
	}
	assert.Equal(t, []string{"Hello! I'm online and ready to help with Minecraft tasks!"}, rt.Lines())
}

func TestBotNotReadyAfterEnd(t *testing.T) {
	defer goleak.VerifyNone(t)

	rt := newFakeRuntime("gaia")
	events := bus.New()
	ended := make(chan struct{}, 1)
	events.Subscribe(bus.TopicWorldEnded, func(bus.Event) { ended <- struct{}{} })

	b := New(testConfig(), rt, nil, events)
	stop := start(t, b)

	rt.send(t, world.Event{Kind: world.EventSpawn})
	rt.send(t, world.Event{Kind: world.EventEnd})
	select {
	case <-ended:
	case <-time.After(2 * time.Second):
		t.Fatal("no world.ended event")
	}
	assert.False(t, b.Router().Dispatcher.Ready())

	stop()
	events.Wait()
}

func TestBotFallbackAndActionErrors(t *testing.T) {
	defer goleak.VerifyNone(t)

	rt := newFakeRuntime("gaia")
	b := New(testConfig(), rt, nil, bus.New())
	stop := start(t, b)

	rt.send(t, world.Event{Kind: world.EventSpawn})
	require.Eventually(t, b.Router().Dispatcher.Ready, 2*time.Second, 5*time.Millisecond)

	rt.send(t, chat("alice", "!mine diamond"))
	require.Eventually(t, func() bool { return len(rt.Lines()) >= 2 }, 2*time.Second, 5*time.Millisecond)

	rt.send(t, chat("bob", "could you follow me"))
	require.Eventually(t, func() bool { return len(rt.Lines()) >= 3 }, 2*time.Second, 5*time.Millisecond)
	stop()

	assert.Equal(t, []string{
		"Hello! I'm online and ready to help with Minecraft tasks!",
		"Can't find any diamond nearby.",
		"I'll start following you now!",
	}, rt.Lines())
}

func TestConfigReloadSwapsDenyList(t *testing.T) {
	defer goleak.VerifyNone(t)

	rt := newFakeRuntime("gaia")
	events := bus.New()
	b := New(testConfig(), rt, nil, events)
	stop := start(t, b)

	require.Eventually(t, func() bool { return events.Subscribers(bus.TopicConfigReloaded) == 1 }, 2*time.Second, 5*time.Millisecond)

	cfg := testConfig()
	cfg.Router.DenyList = []string{"creeper"}
	events.Publish(bus.TopicConfigReloaded, cfg, "watcher")
	events.Wait()

	assert.Equal(t, []string{"creeper"}, b.Router().Filter.Terms())
	stop()
}

func TestExecutor(t *testing.T) {
	w := worldtest.New("gaia").AddPlayer("alice", types.Vec3{X: 1, Y: 64, Z: 1})
	r := BuildRouter(testConfig(), w, w, nil)
	e := r.Executor

	ctx := context.Background()
	e.Execute(ctx, types.Suppressed(types.SuppressRateLimited))
	assert.Empty(t, w.Lines())

	long := make([]byte, 150)
	for i := range long {
		long[i] = 'x'
	}
	e.Execute(ctx, types.Reply(string(long)))
	require.Len(t, w.Lines(), 1)
	assert.Len(t, w.Lines()[0], 100)

	e.Execute(ctx, types.Invoke(types.ActionFollowPlayer, types.Params{PlayerName: "alice"}))
	assert.Equal(t, "Following alice!", w.Lines()[1])
	goal, ok := w.LastGoal()
	require.True(t, ok)
	assert.Equal(t, world.GoalFollow, goal.Kind)

	e.Execute(ctx, types.Invoke(types.ActionFollowPlayer, types.Params{PlayerName: "zed"}))
	assert.Equal(t, "Could not find player zed.", w.Lines()[2])
}

func TestExecutorAnnouncesMining(t *testing.T) {
	ctx := context.Background()
	invoke := types.Invoke(types.ActionMineBlock, types.Params{BlockType: "diamond"})

	empty := worldtest.New("gaia")
	BuildRouter(testConfig(), empty, empty, nil).Executor.Execute(ctx, invoke)
	assert.Equal(t, []string{"Can't find any diamond nearby."}, empty.Lines())

	w := worldtest.New("gaia").AddBlock("diamond_ore", types.Vec3{X: 3, Y: 12, Z: 3})
	BuildRouter(testConfig(), w, w, nil).Executor.Execute(ctx, invoke)
	assert.Equal(t, []string{"Mining diamond...", "Mined diamond_ore!"}, w.Lines())
}

func TestExecutorChatFailure(t *testing.T) {
	w := worldtest.New("gaia").FailOn(world.OpChat, errors.New("socket closed"))
	r := BuildRouter(testConfig(), w, w, nil)
	r.Executor.Execute(context.Background(), types.Reply("hello"))
	assert.Empty(t, w.Lines())
}

func TestThinkingNotice(t *testing.T) {
	w := worldtest.New("gaia")
	cfg := testConfig()
	cfg.Router.ThinkingNotice = "Let me help you with that..."
	stub := llmtest.Reply("Glad you're having fun!")

	r := BuildRouter(cfg, w, w, stub)
	r.Dispatcher.MarkReady()

	d := r.Dispatcher.Dispatch(context.Background(), types.NewMessage("carol", "lol"))
	assert.Equal(t, "Glad you're having fun!", d.Text)
	assert.Equal(t, []string{"Let me help you with that..."}, w.Lines())
}

package dispatch

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roelfdiedericks/gaiabot/internal/actions"
	"github.com/roelfdiedericks/gaiabot/internal/commands"
	"github.com/roelfdiedericks/gaiabot/internal/fallback"
	"github.com/roelfdiedericks/gaiabot/internal/filter"
	"github.com/roelfdiedericks/gaiabot/internal/intent"
	"github.com/roelfdiedericks/gaiabot/internal/llm"
	"github.com/roelfdiedericks/gaiabot/internal/llm/llmtest"
	"github.com/roelfdiedericks/gaiabot/internal/ratelimit"
	"github.com/roelfdiedericks/gaiabot/internal/types"
	"github.com/roelfdiedericks/gaiabot/internal/world/worldtest"
)

// fixture wires a dispatcher the way the bot does, over a fake world and a
// stub model, with a controllable clock.
type fixture struct {
	world   *worldtest.Fake
	stub    *llmtest.Stub
	limiter *ratelimit.Limiter
	d       *Dispatcher

	mu  sync.Mutex
	now time.Time
}

func newFixture(t *testing.T, stub *llmtest.Stub, mod func(*DispatchConfig)) *fixture {
	t.Helper()
	f := &fixture{
		world:   worldtest.New("gaia"),
		stub:    stub,
		limiter: ratelimit.New(3 * time.Second),
		now:     time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC),
	}
	reg := actions.New(f.world, actions.SearchConfig{})

	var classifier Classifier
	if stub != nil {
		classifier = intent.New(stub, reg, intent.BridgeConfig{AgentName: "gaia"})
	}

	cfg := DispatchConfig{
		SelfName:        "gaia",
		ClassifyTimeout: time.Second,
		Now:             f.clock,
	}
	if mod != nil {
		mod(&cfg)
	}
	f.d = New(Deps{
		Filter:     filter.New(nil),
		Limiter:    f.limiter,
		Matcher:    commands.NewMatcher(f.world),
		Classifier: classifier,
		Fallback:   fallback.Default(),
	}, cfg)
	f.d.MarkReady()
	return f
}

func (f *fixture) clock() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fixture) advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

func (f *fixture) send(sender, text string) types.Decision {
	return f.d.Dispatch(context.Background(), types.NewMessage(sender, text))
}

func TestGates(t *testing.T) {
	f := newFixture(t, llmtest.Reply("hi"), nil)

	assert.Equal(t, types.Suppressed(types.SuppressSelf).From(types.SourceGate), f.send("gaia", "hello"))
	assert.Equal(t, types.Suppressed(types.SuppressSelf).From(types.SourceGate), f.send("Gaia", "hello"))
	assert.Equal(t, types.Suppressed(types.SuppressEmpty).From(types.SourceGate), f.send("alice", "   "))

	f.d.MarkNotReady()
	assert.False(t, f.d.Ready())
	assert.Equal(t, types.Suppressed(types.SuppressNotReady).From(types.SourceGate), f.send("alice", "!inv"))

	f.d.MarkReady()
	f.d.BeginShutdown()
	assert.Equal(t, types.Suppressed(types.SuppressShuttingDown).From(types.SourceGate), f.send("alice", "!inv"))

	assert.Zero(t, f.stub.CallCount())
}

func TestNotReadyUntilMarked(t *testing.T) {
	d := New(Deps{}, DispatchConfig{})
	dec, path := d.run(context.Background(), types.NewMessage("alice", "hello"))
	assert.Equal(t, types.Suppressed(types.SuppressNotReady).From(types.SourceGate), dec)
	assert.Equal(t, []State{StateIdle, StateDone}, path)
}

func TestContentFilterRedirects(t *testing.T) {
	f := newFixture(t, llmtest.Reply("hi"), nil)

	for _, text := range []string{"this is SHIT", "!mine damn stone", "follow me you crap bot"} {
		d := f.send("alice", text)
		assert.Equal(t, types.Reply(filter.DefaultRedirect).From(types.SourceFilter), d, text)
	}
	assert.Zero(t, f.stub.CallCount())
}

func TestFilterRunsBeforeRateGate(t *testing.T) {
	f := newFixture(t, llmtest.Reply("hi"), nil)

	f.send("alice", "damn")
	d := f.send("alice", "!inv")
	assert.Equal(t, types.DecisionInvoke, d.Kind, "a filtered message must not start the cooldown")
}

func TestRateLimit(t *testing.T) {
	f := newFixture(t, llmtest.Reply("hi"), nil)

	assert.Equal(t, types.DecisionInvoke, f.send("alice", "!inv").Kind)

	f.advance(2999 * time.Millisecond)
	assert.Equal(t, types.Suppressed(types.SuppressRateLimited).From(types.SourceGate), f.send("alice", "!inv"))
	assert.Equal(t, types.DecisionInvoke, f.send("bob", "!inv").Kind, "other senders are independent")

	f.advance(time.Millisecond)
	assert.Equal(t, types.DecisionInvoke, f.send("alice", "!inv").Kind)
}

func TestRateLimitConcurrentSameSender(t *testing.T) {
	f := newFixture(t, llmtest.Reply("hi"), nil)

	var passed atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if f.send("alice", "!inv").Kind == types.DecisionInvoke {
				passed.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), passed.Load())
}

func TestInventoryCommandsBypassModel(t *testing.T) {
	f := newFixture(t, llmtest.Reply("hi"), nil)

	for _, text := range []string{"!inventory", "!inv", "  !INV  "} {
		d := f.send(text, text) // distinct senders dodge the cooldown
		assert.Equal(t, types.Invoke(types.ActionCheckInventory, types.Params{}).From(types.SourceCommand), d, text)
	}
	assert.Zero(t, f.stub.CallCount())
}

func TestMineEmptyArgument(t *testing.T) {
	f := newFixture(t, llmtest.Reply("hi"), nil)

	d := f.send("alice", "!mine    ")
	assert.Equal(t, types.DecisionReply, d.Kind)
	assert.Equal(t, "Please specify a block type to mine!", d.Text)
	assert.ErrorIs(t, d.Err, actions.ErrEmptyArgument)
	assert.Equal(t, types.SourceCommand, d.Source)
	assert.Zero(t, f.stub.CallCount())
}

func TestComeHereScenario(t *testing.T) {
	f := newFixture(t, llmtest.Reply("hi"), nil)
	f.world.AddPlayer("Alice", types.Vec3{X: 10.4, Y: 64, Z: 20.9})

	d := f.send("Alice", "!come here")
	want := types.Invoke(types.ActionGoToPlayer, types.Params{
		PlayerName: "Alice",
		Target:     &types.Vec3{X: 10, Y: 64, Z: 20},
	}).From(types.SourceCommand)
	assert.Equal(t, want, d)
	assert.Zero(t, f.stub.CallCount())
}

func TestComeHereSenderNotVisible(t *testing.T) {
	f := newFixture(t, llmtest.Reply("hi"), nil)

	d := f.send("Alice", "!come here")
	assert.Equal(t, types.DecisionReply, d.Kind)
	assert.ErrorIs(t, d.Err, commands.ErrSenderNotVisible)
	assert.Zero(t, f.stub.CallCount())
}

func TestModelScenarios(t *testing.T) {
	t.Run("bob mines stone", func(t *testing.T) {
		f := newFixture(t, llmtest.Reply(`{"name": "mine_block", "parameters": {"blockType": "stone"}}`), nil)
		d := f.send("Bob", "mine some stone")
		assert.Equal(t, types.Invoke(types.ActionMineBlock, types.Params{BlockType: "stone"}).From(types.SourceModel), d)
	})
	t.Run("carol has fun", func(t *testing.T) {
		f := newFixture(t, llmtest.Reply("Glad you're having fun!"), nil)
		d := f.send("Carol", "lol")
		assert.Equal(t, types.Reply("Glad you're having fun!").From(types.SourceModel), d)
	})
}

func TestModelTimeoutFallsBack(t *testing.T) {
	stub := &llmtest.Stub{Response: "too late", Delay: 5 * time.Second}
	f := newFixture(t, stub, func(c *DispatchConfig) { c.ClassifyTimeout = 20 * time.Millisecond })

	start := time.Now()
	dec, path := f.d.run(context.Background(), types.NewMessage("alice", "can you follow me"))
	assert.Less(t, time.Since(start), 2*time.Second)

	assert.Equal(t, types.DecisionReply, dec.Kind)
	assert.Equal(t, "I'll start following you now!", dec.Text)
	assert.Equal(t, types.SourceFallback, dec.Source)
	assert.ErrorIs(t, dec.Err, intent.ErrModelTimeout)
	assert.Equal(t, []State{
		StateIdle, StateFiltering, StateRateGating, StateMatching,
		StateClassifying, StateFallingBack, StateDone,
	}, path)
}

func TestModelFailuresFallBack(t *testing.T) {
	tests := []struct {
		name string
		stub *llmtest.Stub
		text string
		want string
	}{
		{"error", llmtest.Fail(errors.New("503 service unavailable")), "mine some iron", "I'll look for that block to mine!"},
		{"exhausted", llmtest.Reply("Agent stopped due to max iterations."), "come here", "Coming to you!"},
		{"malformed", llmtest.Reply(""), "what now", fallback.GenericReply},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.stub, nil)
			d := f.send("alice", tt.text)
			assert.Equal(t, types.SourceFallback, d.Source)
			assert.Equal(t, tt.want, d.Text)
		})
	}
}

func TestFallbackRepliesFitOneLine(t *testing.T) {
	assert.LessOrEqual(t, len(fallback.GenericReply), DefaultReplyLimit)
	for _, r := range fallback.DefaultRules {
		assert.LessOrEqual(t, len(r.Reply), DefaultReplyLimit, r.Name)
	}

	f := newFixture(t, llmtest.Reply("Agent stopped due to max iterations."), nil)
	d := f.send("alice", "what can you do")
	assert.Equal(t, fallback.GenericReply, d.Text)
}

func TestNoClassifierFallsBack(t *testing.T) {
	f := newFixture(t, nil, nil)
	d := f.send("alice", "please stop")
	assert.Equal(t, types.Reply("Okay, I've stopped following you!").From(types.SourceFallback).WithErr(errNoClassifier), d)
}

func TestReplyTruncation(t *testing.T) {
	long := strings.Repeat("a", 150)
	f := newFixture(t, llmtest.Reply(long), nil)

	d := f.send("alice", "tell me a story")
	assert.Equal(t, strings.Repeat("a", 100), d.Text)

	exact := strings.Repeat("b", 100)
	f = newFixture(t, llmtest.Reply(exact), nil)
	assert.Equal(t, exact, f.send("alice", "tell me a story").Text)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "", Truncate("", 100))
	assert.Equal(t, "abc", Truncate("abc", 0))
	assert.Equal(t, "ab", Truncate("abc", 2))
	assert.Equal(t, "héé", Truncate("hééllo", 3))
	assert.Equal(t, 100, len([]rune(Truncate(strings.Repeat("é", 150), 100))))
}

func TestBeforeClassifyHook(t *testing.T) {
	var notices []string
	f := newFixture(t, llmtest.Reply("sure"), func(c *DispatchConfig) {
		c.BeforeClassify = func(_ context.Context, msg types.Message) {
			notices = append(notices, string(msg.Sender))
		}
	})

	f.send("alice", "!inv")
	assert.Empty(t, notices, "commands never reach the model")

	f.send("bob", "hello there")
	assert.Equal(t, []string{"bob"}, notices)
}

func TestModelRequestCarriesSender(t *testing.T) {
	stub := llmtest.Reply("hi")
	f := newFixture(t, stub, nil)
	f.send("dave", "how are you")

	calls := stub.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, llm.RoleUser, calls[0][1].Role)
	assert.Equal(t, "Player dave says: how are you", calls[0][1].Content)
}

func TestStatePaths(t *testing.T) {
	f := newFixture(t, llmtest.Reply("hi"), nil)

	_, path := f.d.run(context.Background(), types.NewMessage("alice", "damn"))
	assert.Equal(t, []State{StateIdle, StateFiltering, StateDone}, path)

	_, path = f.d.run(context.Background(), types.NewMessage("bob", "!stop"))
	assert.Equal(t, []State{StateIdle, StateFiltering, StateRateGating, StateMatching, StateDone}, path)

	_, path = f.d.run(context.Background(), types.NewMessage("bob", "!stop"))
	assert.Equal(t, []State{StateIdle, StateFiltering, StateRateGating, StateDone}, path)

	_, path = f.d.run(context.Background(), types.NewMessage("carol", "hello"))
	assert.Equal(t, []State{StateIdle, StateFiltering, StateRateGating, StateMatching, StateClassifying, StateDone}, path)
}

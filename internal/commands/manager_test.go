package commands

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roelfdiedericks/gaiabot/internal/actions"
	"github.com/roelfdiedericks/gaiabot/internal/metrics"
	"github.com/roelfdiedericks/gaiabot/internal/types"
	"github.com/roelfdiedericks/gaiabot/internal/world"
	"github.com/roelfdiedericks/gaiabot/internal/world/worldtest"
)

func TestMatch(t *testing.T) {
	fake := worldtest.New("gaia").AddPlayer("alice", types.Vec3{X: 10.6, Y: 64.2, Z: 20.9})
	m := NewMatcher(fake)
	target := types.Vec3{X: 10, Y: 64, Z: 20}

	tests := []struct {
		name   string
		sender types.SenderID
		text   string
		want   types.Decision
	}{
		{"inventory", "bob", "!inventory", types.Invoke(types.ActionCheckInventory, types.Params{})},
		{"inventory alias", "bob", "!inv", types.Invoke(types.ActionCheckInventory, types.Params{})},
		{"stop", "bob", "!stop", types.Invoke(types.ActionStopMovement, types.Params{})},
		{"follow me", "alice", "!follow me", types.Invoke(types.ActionFollowPlayer, types.Params{PlayerName: "alice"})},
		{"come", "alice", "!come", types.Invoke(types.ActionGoToPlayer, types.Params{PlayerName: "alice", Target: &target})},
		{"come here", "alice", "!come here", types.Invoke(types.ActionGoToPlayer, types.Params{PlayerName: "alice", Target: &target})},
		{"mine", "bob", "!mine diamond ore", types.Invoke(types.ActionMineBlock, types.Params{BlockType: "diamond ore"})},
		{"build", "bob", "!build cobblestone", types.Invoke(types.ActionPlaceBlock, types.Params{BlockType: "cobblestone", PlayerName: "bob"})},
		{"place", "bob", "!place  glass ", types.Invoke(types.ActionPlaceBlock, types.Params{BlockType: "glass", PlayerName: "bob"})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := m.Match(context.Background(), tt.sender, tt.text)
			require.True(t, ok)
			assert.Equal(t, types.SourceCommand, got.Source)
			got.Source = ""
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNoMatch(t *testing.T) {
	m := NewMatcher(worldtest.New("gaia"))

	for _, text := range []string{
		"mine some stone",
		"!follow",
		"!follow me please",
		"!inventory now",
		"!mineshaft",
		"!stopp",
		"",
	} {
		t.Run(text, func(t *testing.T) {
			_, ok := m.Match(context.Background(), "bob", text)
			assert.False(t, ok)
		})
	}
}

func TestEmptyArgument(t *testing.T) {
	m := NewMatcher(worldtest.New("gaia"))

	tests := []struct {
		text   string
		action types.ActionName
		reply  string
	}{
		{"!mine", types.ActionMineBlock, "Please specify a block type to mine!"},
		{"!build", types.ActionPlaceBlock, "Please specify a block type to place!"},
		{"!place", types.ActionPlaceBlock, "Please specify a block type to place!"},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			d, ok := m.Match(context.Background(), "bob", tt.text)
			require.True(t, ok)
			assert.Equal(t, types.DecisionReply, d.Kind)
			assert.Equal(t, tt.reply, d.Text)
			assert.ErrorIs(t, d.Err, actions.ErrEmptyArgument)

			var ae *actions.ActionError
			require.True(t, errors.As(d.Err, &ae))
			assert.Equal(t, tt.action, ae.Action)
		})
	}
}

func TestSenderNotVisible(t *testing.T) {
	m := NewMatcher(worldtest.New("gaia"))

	for _, text := range []string{"!follow me", "!come", "!come here"} {
		d, ok := m.Match(context.Background(), "ghost", text)
		require.True(t, ok, text)
		assert.Equal(t, types.DecisionReply, d.Kind)
		assert.Equal(t, notVisibleReply, d.Text)
		assert.ErrorIs(t, d.Err, ErrSenderNotVisible)
	}
}

func TestSenderLookupFailure(t *testing.T) {
	fake := worldtest.New("gaia").FailOn(world.OpPlayer, world.ErrDisconnected)
	m := NewMatcher(fake)

	d, ok := m.Match(context.Background(), "alice", "!follow me")
	require.True(t, ok)
	assert.Equal(t, lookupFailReply, d.Text)
	assert.ErrorIs(t, d.Err, ErrLookupFailed)
	assert.ErrorIs(t, d.Err, world.ErrDisconnected)
}

func TestPriorityOrder(t *testing.T) {
	m := NewMatcher(nil)
	var names []string
	for _, c := range m.List() {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"!inventory", "!stop", "!follow me", "!come", "!mine", "!build", "!help"}, names)

	d, ok := m.Match(context.Background(), "bob", "!help")
	require.True(t, ok)
	assert.Equal(t, "Commands: !inventory, !stop, !follow me, !come, !mine <block>, !build <block>, !help", d.Text)
	assert.LessOrEqual(t, len(d.Text), 100)
}

func TestIsCommand(t *testing.T) {
	assert.True(t, IsCommand("  !mine stone"))
	assert.False(t, IsCommand("mine stone"))
}

func unknownCommands() int64 {
	snap, ok := metrics.GetInstance().GetSnapshot()["commands/match"]
	if !ok {
		return 0
	}
	return snap.Data.(metrics.OutcomeSnapshot).Outcomes["unknown"]
}

func TestUnknownCommandCounted(t *testing.T) {
	m := NewMatcher(worldtest.New("gaia"))
	ctx := context.Background()

	before := unknownCommands()
	_, ok := m.Match(ctx, "bob", "!dance")
	assert.False(t, ok)
	assert.Equal(t, before+1, unknownCommands())

	_, ok = m.Match(ctx, "bob", "dance for me")
	assert.False(t, ok)
	assert.Equal(t, before+1, unknownCommands(), "plain chat is not an unknown command")
}

// Package world is the boundary to the game-agent runtime: actor and block
// lookups, movement goals, inventory, placement, collection and chat.
package world

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/roelfdiedericks/gaiabot/internal/types"
)

// Player is an actor visible to the agent.
type Player struct {
	Name     string     `json:"name"`
	Position types.Vec3 `json:"position"`
}

// Block is a single world block.
type Block struct {
	Name     string     `json:"name"`
	Position types.Vec3 `json:"position"`
}

// Item is one inventory stack.
type Item struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// GoalKind distinguishes continuous pursuit from a one-shot destination.
type GoalKind string

const (
	GoalFollow GoalKind = "follow" // keep within Range of Player until cleared
	GoalBlock  GoalKind = "block"  // walk to Position once
)

// Goal is a movement goal for the pathing engine.
type Goal struct {
	Kind     GoalKind   `json:"kind"`
	Player   string     `json:"player,omitempty"`
	Position types.Vec3 `json:"position,omitempty"`
	Range    float64    `json:"range,omitempty"`
}

// World is the set of world operations actions run against.
// Lookups report absence with ok=false rather than an error; errors are
// reserved for collaborator failures.
type World interface {
	// Username is the agent's own name in the world.
	Username() string

	Player(ctx context.Context, name string) (Player, bool, error)
	Players(ctx context.Context) ([]Player, error)

	// FindBlock returns the nearest block whose name contains match.
	FindBlock(ctx context.Context, match string, maxDistance int) (Block, bool, error)
	// FindBlocks samples up to count non-air blocks within maxDistance.
	FindBlocks(ctx context.Context, maxDistance, count int) ([]Block, error)
	BlockAt(ctx context.Context, pos types.Vec3) (Block, bool, error)

	Collect(ctx context.Context, block Block) error
	Inventory(ctx context.Context) ([]Item, error)
	Equip(ctx context.Context, item string) error
	Place(ctx context.Context, against Block, pos types.Vec3) error

	SetGoal(ctx context.Context, goal Goal) error
	ClearGoal(ctx context.Context) error
}

// Chat sends text to the shared chat channel.
type Chat interface {
	Say(ctx context.Context, text string) error
}

// EventKind tags an Event.
type EventKind string

const (
	EventSpawn EventKind = "spawn" // agent is in the world and ready
	EventChat  EventKind = "chat"
	EventEnd   EventKind = "end" // connection lost
	EventError EventKind = "error"
)

// Event is an inbound notification from the world.
type Event struct {
	Kind   EventKind
	Sender string
	Text   string
	At     time.Time
}

// ErrDisconnected is returned for calls made while no session is open, or
// pending when the session drops.
var ErrDisconnected = errors.New("world: not connected")

// RemoteError is a failure reported by the runtime for a request.
type RemoteError struct {
	Op      string
	Code    string
	Message string
}

func (e *RemoteError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("world: %s failed: %s", e.Op, e.Code)
	}
	return fmt.Sprintf("world: %s failed: %s", e.Op, e.Message)
}

// Reason is the short human-readable cause, suitable for chat.
func (e *RemoteError) Reason() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Code
}

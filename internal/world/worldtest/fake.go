// Package worldtest provides an in-memory World for tests.
package worldtest

import (
	"context"
	"strings"
	"sync"

	"github.com/roelfdiedericks/gaiabot/internal/types"
	"github.com/roelfdiedericks/gaiabot/internal/world"
)

// Placement records one Place call.
type Placement struct {
	Against  world.Block
	Position types.Vec3
}

// Fake is a scripted world.World and world.Chat. The zero value is not
// usable; construct with New.
type Fake struct {
	mu sync.Mutex

	Self    string
	players map[string]world.Player
	blocks  []world.Block
	items   []world.Item

	// Errs forces an error from the named op (world.Op* constants).
	Errs map[string]error

	Goals     []world.Goal
	Cleared   int
	Collected []world.Block
	Equipped  []string
	Placed    []Placement
	Said      []string
}

// New creates a fake whose agent is named self.
func New(self string) *Fake {
	return &Fake{
		Self:    self,
		players: make(map[string]world.Player),
		Errs:    make(map[string]error),
	}
}

// AddPlayer makes a player visible at pos.
func (f *Fake) AddPlayer(name string, pos types.Vec3) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.players[name] = world.Player{Name: name, Position: pos}
	return f
}

// AddBlock places a block in the world.
func (f *Fake) AddBlock(name string, pos types.Vec3) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.blocks = append(f.blocks, world.Block{Name: name, Position: pos})
	return f
}

// AddItem puts a stack into the inventory.
func (f *Fake) AddItem(name string, count int) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items = append(f.items, world.Item{Name: name, Count: count})
	return f
}

// FailOn makes op return err.
func (f *Fake) FailOn(op string, err error) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Errs[op] = err
	return f
}

// Lines returns a copy of every chat line sent.
func (f *Fake) Lines() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.Said...)
}

// LastGoal returns the most recent goal, if any.
func (f *Fake) LastGoal() (world.Goal, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.Goals) == 0 {
		return world.Goal{}, false
	}
	return f.Goals[len(f.Goals)-1], true
}

func (f *Fake) err(op string) error {
	return f.Errs[op]
}

func (f *Fake) Username() string { return f.Self }

func (f *Fake) Player(_ context.Context, name string) (world.Player, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.err(world.OpPlayer); err != nil {
		return world.Player{}, false, err
	}
	p, ok := f.players[name]
	return p, ok, nil
}

func (f *Fake) Players(_ context.Context) ([]world.Player, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.err(world.OpPlayers); err != nil {
		return nil, err
	}
	out := make([]world.Player, 0, len(f.players))
	for _, p := range f.players {
		out = append(out, p)
	}
	return out, nil
}

func (f *Fake) FindBlock(_ context.Context, match string, _ int) (world.Block, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.err(world.OpFindBlock); err != nil {
		return world.Block{}, false, err
	}
	for _, b := range f.blocks {
		if strings.Contains(b.Name, match) {
			return b, true, nil
		}
	}
	return world.Block{}, false, nil
}

func (f *Fake) FindBlocks(_ context.Context, _ int, count int) ([]world.Block, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.err(world.OpFindBlocks); err != nil {
		return nil, err
	}
	var out []world.Block
	for _, b := range f.blocks {
		if b.Name == "air" {
			continue
		}
		if len(out) == count {
			break
		}
		out = append(out, b)
	}
	return out, nil
}

func (f *Fake) BlockAt(_ context.Context, pos types.Vec3) (world.Block, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.err(world.OpBlockAt); err != nil {
		return world.Block{}, false, err
	}
	for _, b := range f.blocks {
		if b.Position == pos && b.Name != "air" {
			return b, true, nil
		}
	}
	return world.Block{}, false, nil
}

func (f *Fake) Collect(_ context.Context, block world.Block) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.err(world.OpCollect); err != nil {
		return err
	}
	f.Collected = append(f.Collected, block)
	return nil
}

func (f *Fake) Inventory(_ context.Context) ([]world.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.err(world.OpInventory); err != nil {
		return nil, err
	}
	return append([]world.Item(nil), f.items...), nil
}

func (f *Fake) Equip(_ context.Context, item string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.err(world.OpEquip); err != nil {
		return err
	}
	f.Equipped = append(f.Equipped, item)
	return nil
}

func (f *Fake) Place(_ context.Context, against world.Block, pos types.Vec3) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.err(world.OpPlace); err != nil {
		return err
	}
	f.Placed = append(f.Placed, Placement{Against: against, Position: pos})
	return nil
}

func (f *Fake) SetGoal(_ context.Context, goal world.Goal) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.err(world.OpSetGoal); err != nil {
		return err
	}
	f.Goals = append(f.Goals, goal)
	return nil
}

func (f *Fake) ClearGoal(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.err(world.OpClearGoal); err != nil {
		return err
	}
	f.Cleared++
	return nil
}

func (f *Fake) Say(_ context.Context, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.err(world.OpChat); err != nil {
		return err
	}
	f.Said = append(f.Said, text)
	return nil
}

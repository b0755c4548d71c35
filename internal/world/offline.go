package world

import (
	"context"

	"github.com/roelfdiedericks/gaiabot/internal/types"
)

// Offline is a World with no runtime behind it. Lookups find nothing and
// every operation fails with ErrDisconnected. Used for one-shot routing
// from the command line.
type Offline struct {
	Name string
}

var (
	_ World = Offline{}
	_ Chat  = Offline{}
)

func (o Offline) Username() string { return o.Name }

func (Offline) Player(context.Context, string) (Player, bool, error) {
	return Player{}, false, nil
}

func (Offline) Players(context.Context) ([]Player, error) {
	return nil, ErrDisconnected
}

func (Offline) FindBlock(context.Context, string, int) (Block, bool, error) {
	return Block{}, false, nil
}

func (Offline) FindBlocks(context.Context, int, int) ([]Block, error) {
	return nil, ErrDisconnected
}

func (Offline) BlockAt(context.Context, types.Vec3) (Block, bool, error) {
	return Block{}, false, nil
}

func (Offline) Collect(context.Context, Block) error { return ErrDisconnected }
func (Offline) Inventory(context.Context) ([]Item, error) { return nil, ErrDisconnected }
func (Offline) Equip(context.Context, string) error { return ErrDisconnected }
func (Offline) Place(context.Context, Block, types.Vec3) error { return ErrDisconnected }
func (Offline) SetGoal(context.Context, Goal) error { return ErrDisconnected }
func (Offline) ClearGoal(context.Context) error { return ErrDisconnected }
func (Offline) Say(context.Context, string) error { return ErrDisconnected }

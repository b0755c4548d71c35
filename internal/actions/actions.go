// Package actions is the fixed set of named agent actions and their
// execution against the world collaborator.
package actions

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	. "github.com/roelfdiedericks/gaiabot/internal/logging"
	"github.com/roelfdiedericks/gaiabot/internal/types"
	"github.com/roelfdiedericks/gaiabot/internal/world"
)

func builtinDefinitions() []*Definition {
	return []*Definition{
		{
			Name:        types.ActionMineBlock,
			Description: "Find the nearest block of a type and mine it",
			Params:      []ParamSpec{{Name: "blockType", Kind: ParamBlockType}},
			Announce: func(p types.Params) string {
				if bt := normalizeBlock(p.BlockType); bt != "" {
					return fmt.Sprintf("Mining %s...", bt)
				}
				return ""
			},
			Execute: mineBlock,
		},
		{
			Name:        types.ActionPlaceBlock,
			Description: "Place a block from inventory next to a player",
			Params:      []ParamSpec{{Name: "blockType", Kind: ParamBlockType}},
			Execute:     placeBlock,
		},
		{
			Name:        types.ActionFollowPlayer,
			Description: "Keep following a player until told to stop",
			Params:      []ParamSpec{{Name: "playerName", Kind: ParamPlayer}},
			Execute:     followPlayer,
		},
		{
			Name:        types.ActionGoToPlayer,
			Description: "Walk to where a player is standing",
			Params:      []ParamSpec{{Name: "playerName", Kind: ParamPlayer}},
			Execute:     goToPlayer,
		},
		{
			Name:        types.ActionStopMovement,
			Description: "Stop all movement",
			Execute:     stopMovement,
		},
		{
			Name:        types.ActionCheckInventory,
			Description: "List the items the agent is carrying",
			Execute:     checkInventory,
		},
		{
			Name:        types.ActionLookAround,
			Description: "Describe nearby blocks and players",
			Execute:     lookAround,
		},
	}
}

func normalizeBlock(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// unavailable maps a lookup failure to ErrWorldUnavailable.
func unavailable(action types.ActionName, subject string, err error) error {
	return newError(ErrWorldUnavailable, action, subject, err)
}

func mineBlock(ctx context.Context, r *Registry, p types.Params) (string, error) {
	name := types.ActionMineBlock
	blockType := normalizeBlock(p.BlockType)
	if blockType == "" {
		return "", newError(ErrEmptyArgument, name, "", nil)
	}

	block, ok, err := r.world.FindBlock(ctx, blockType, r.cfg.SearchRadius)
	if err != nil {
		return "", unavailable(name, blockType, err)
	}
	if !ok {
		return "", newError(ErrNotFound, name, blockType, nil)
	}

	r.announce(ctx, name, p)
	if err := r.world.Collect(ctx, block); err != nil {
		return "", newError(ErrCollectionFailed, name, blockType, err)
	}
	return fmt.Sprintf("Mined %s!", block.Name), nil
}

func placeBlock(ctx context.Context, r *Registry, p types.Params) (string, error) {
	name := types.ActionPlaceBlock
	blockType := normalizeBlock(p.BlockType)
	if blockType == "" {
		return "", newError(ErrEmptyArgument, name, "", nil)
	}

	items, err := r.world.Inventory(ctx)
	if err != nil {
		return "", unavailable(name, blockType, err)
	}
	var item world.Item
	found := false
	for _, it := range items {
		if strings.Contains(strings.ToLower(it.Name), blockType) {
			item, found = it, true
			break
		}
	}
	if !found {
		return "", newError(ErrItemNotFound, name, blockType, nil)
	}

	if p.PlayerName == "" {
		return "", newError(ErrNoTarget, name, blockType, nil)
	}
	player, ok, err := r.world.Player(ctx, p.PlayerName)
	if err != nil {
		return "", unavailable(name, blockType, err)
	}
	if !ok {
		return "", newError(ErrNoTarget, name, blockType, nil)
	}

	// One block to the side of the player, resting on whatever is below it.
	pos := player.Position.Floor().Offset(1, 0, 0)
	support, ok, err := r.world.BlockAt(ctx, pos.Offset(0, -1, 0))
	if err != nil {
		return "", unavailable(name, blockType, err)
	}
	if !ok {
		return "", newError(ErrSurfaceNotFound, name, blockType, nil)
	}

	if err := r.world.Equip(ctx, item.Name); err != nil {
		return "", newError(ErrPlacementFailed, name, item.Name, err)
	}
	if err := r.world.Place(ctx, support, pos); err != nil {
		return "", newError(ErrPlacementFailed, name, item.Name, err)
	}
	return fmt.Sprintf("Placed %s!", item.Name), nil
}

func resolvePlayer(ctx context.Context, r *Registry, action types.ActionName, playerName string) (world.Player, error) {
	if playerName == "" {
		return world.Player{}, newError(ErrActorNotFound, action, "", nil)
	}
	player, ok, err := r.world.Player(ctx, playerName)
	if err != nil {
		return world.Player{}, unavailable(action, playerName, err)
	}
	if !ok {
		return world.Player{}, newError(ErrActorNotFound, action, playerName, nil)
	}
	return player, nil
}

func followPlayer(ctx context.Context, r *Registry, p types.Params) (string, error) {
	player, err := resolvePlayer(ctx, r, types.ActionFollowPlayer, p.PlayerName)
	if err != nil {
		return "", err
	}
	goal := world.Goal{Kind: world.GoalFollow, Player: player.Name, Range: r.cfg.FollowRange}
	if err := r.world.SetGoal(ctx, goal); err != nil {
		return "", unavailable(types.ActionFollowPlayer, player.Name, err)
	}
	return fmt.Sprintf("Following %s!", player.Name), nil
}

func goToPlayer(ctx context.Context, r *Registry, p types.Params) (string, error) {
	name := types.ActionGoToPlayer

	// The command matcher resolves the position up front.
	if p.Target != nil {
		goal := world.Goal{Kind: world.GoalBlock, Player: p.PlayerName, Position: p.Target.Floor()}
		if err := r.world.SetGoal(ctx, goal); err != nil {
			return "", unavailable(name, p.PlayerName, err)
		}
		return "Coming to you!", nil
	}

	player, err := resolvePlayer(ctx, r, name, p.PlayerName)
	if err != nil {
		return "", err
	}
	goal := world.Goal{Kind: world.GoalBlock, Player: player.Name, Position: player.Position.Floor()}
	if err := r.world.SetGoal(ctx, goal); err != nil {
		return "", unavailable(name, player.Name, err)
	}
	return fmt.Sprintf("Moving to %s!", player.Name), nil
}

func stopMovement(ctx context.Context, r *Registry, _ types.Params) (string, error) {
	if err := r.world.ClearGoal(ctx); err != nil {
		L_warn("actions: clear goal failed", "error", err)
	}
	return "Stopped moving!", nil
}

func checkInventory(ctx context.Context, r *Registry, _ types.Params) (string, error) {
	items, err := r.world.Inventory(ctx)
	if err != nil {
		L_warn("actions: inventory query failed", "error", err)
		return "I can't check my inventory right now.", nil
	}
	if len(items) == 0 {
		return "My inventory is empty.", nil
	}
	parts := make([]string, 0, len(items))
	for _, it := range items {
		parts = append(parts, fmt.Sprintf("%s x%d", it.Name, it.Count))
	}
	return "I have: " + strings.Join(parts, ", "), nil
}

func lookAround(ctx context.Context, r *Registry, _ types.Params) (string, error) {
	var blockTypes []string
	blocks, err := r.world.FindBlocks(ctx, r.cfg.LookRadius, r.cfg.LookSamples)
	if err != nil {
		L_warn("actions: block scan failed", "error", err)
	}
	seen := make(map[string]bool)
	for _, b := range blocks {
		if b.Name == "" || b.Name == "air" || seen[b.Name] {
			continue
		}
		seen[b.Name] = true
		blockTypes = append(blockTypes, b.Name)
		if len(blockTypes) == r.cfg.LookTypes {
			break
		}
	}

	var others []string
	players, err := r.world.Players(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		L_warn("actions: player scan failed", "error", err)
	}
	self := r.world.Username()
	for _, pl := range players {
		if pl.Name != self {
			others = append(others, pl.Name)
		}
	}
	sort.Strings(others)

	desc := "I don't see anything interesting"
	if len(blockTypes) > 0 {
		desc = "I see: " + strings.Join(blockTypes, ", ")
	}
	if len(others) > 0 {
		desc += ". Players: " + strings.Join(others, ", ")
	}
	return desc, nil
}

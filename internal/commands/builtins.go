package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/roelfdiedericks/gaiabot/internal/actions"
	. "github.com/roelfdiedericks/gaiabot/internal/logging"
	"github.com/roelfdiedericks/gaiabot/internal/types"
	"github.com/roelfdiedericks/gaiabot/internal/world"
)

// Apology texts for commands that need to see the sender.
const (
	notVisibleReply = "I can't see you right now! Come closer and try again."
	lookupFailReply = "I can't reach the world right now, try again in a moment."
)

// registerBuiltins registers the built-in commands in priority order.
func registerBuiltins(m *Matcher) {
	m.Register(&Command{
		Name:        "!inventory",
		Aliases:     []string{"!inv"},
		Mode:        MatchExact,
		Description: "List what I'm carrying",
		Handler: func(context.Context, *CommandArgs) types.Decision {
			return types.Invoke(types.ActionCheckInventory, types.Params{})
		},
	})

	m.Register(&Command{
		Name:        "!stop",
		Mode:        MatchExact,
		Description: "Stop moving",
		Handler: func(context.Context, *CommandArgs) types.Decision {
			return types.Invoke(types.ActionStopMovement, types.Params{})
		},
	})

	m.Register(&Command{
		Name:        "!follow me",
		Mode:        MatchExact,
		Description: "Follow you around",
		Handler:     handleFollow,
	})

	m.Register(&Command{
		Name:        "!come",
		Aliases:     []string{"!come here"},
		Mode:        MatchExact,
		Description: "Walk to where you are",
		Handler:     handleCome,
	})

	m.Register(&Command{
		Name:        "!mine",
		Mode:        MatchPrefix,
		Usage:       "<block>",
		Description: "Mine the nearest block of a type",
		Handler:     handleMine,
	})

	m.Register(&Command{
		Name:        "!build",
		Aliases:     []string{"!place"},
		Mode:        MatchPrefix,
		Usage:       "<block>",
		Description: "Place a block next to you",
		Handler:     handleBuild,
	})

	m.Register(&Command{
		Name:        "!help",
		Mode:        MatchExact,
		Description: "Show commands",
		Handler:     handleHelp,
	})
}

// resolveSender looks up the sender's actor, or returns the apology reply.
func resolveSender(ctx context.Context, args *CommandArgs) (world.Player, *types.Decision) {
	if args.Resolver == nil {
		d := types.Reply(notVisibleReply).WithErr(ErrSenderNotVisible)
		return world.Player{}, &d
	}
	player, ok, err := args.Resolver.Player(ctx, string(args.Sender))
	if err != nil {
		L_warn("commands: sender lookup failed", "command", args.Command.Name, "sender", args.Sender, "error", err)
		d := types.Reply(lookupFailReply).WithErr(fmt.Errorf("%w: %w", ErrLookupFailed, err))
		return world.Player{}, &d
	}
	if !ok {
		d := types.Reply(notVisibleReply).WithErr(ErrSenderNotVisible)
		return world.Player{}, &d
	}
	return player, nil
}

func handleFollow(ctx context.Context, args *CommandArgs) types.Decision {
	player, apology := resolveSender(ctx, args)
	if apology != nil {
		return *apology
	}
	return types.Invoke(types.ActionFollowPlayer, types.Params{PlayerName: player.Name})
}

func handleCome(ctx context.Context, args *CommandArgs) types.Decision {
	player, apology := resolveSender(ctx, args)
	if apology != nil {
		return *apology
	}
	target := player.Position.Floor()
	return types.Invoke(types.ActionGoToPlayer, types.Params{PlayerName: player.Name, Target: &target})
}

// emptyArgument is the reply for a prefix command with nothing after it.
func emptyArgument(action types.ActionName) types.Decision {
	err := &actions.ActionError{Kind: actions.ErrEmptyArgument, Action: action}
	return types.Reply(err.Reply()).WithErr(err)
}

func handleMine(_ context.Context, args *CommandArgs) types.Decision {
	if args.RawArgs == "" {
		return emptyArgument(types.ActionMineBlock)
	}
	return types.Invoke(types.ActionMineBlock, types.Params{BlockType: args.RawArgs})
}

func handleBuild(_ context.Context, args *CommandArgs) types.Decision {
	if args.RawArgs == "" {
		return emptyArgument(types.ActionPlaceBlock)
	}
	return types.Invoke(types.ActionPlaceBlock, types.Params{
		BlockType:  args.RawArgs,
		PlayerName: string(args.Sender),
	})
}

func handleHelp(_ context.Context, args *CommandArgs) types.Decision {
	var forms []string
	for _, cmd := range args.Matcher.List() {
		form := cmd.Name
		if cmd.Usage != "" {
			form += " " + cmd.Usage
		}
		forms = append(forms, form)
	}
	return types.Reply("Commands: " + strings.Join(forms, ", "))
}

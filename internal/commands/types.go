package commands

import (
	"context"
	"errors"

	"github.com/roelfdiedericks/gaiabot/internal/types"
	"github.com/roelfdiedericks/gaiabot/internal/world"
)

// MatchMode selects how a command form is compared to the message.
type MatchMode int

const (
	// MatchExact requires the whole normalized message to equal the form.
	MatchExact MatchMode = iota
	// MatchPrefix accepts the form alone or followed by a space and
	// arguments; the trimmed remainder becomes RawArgs.
	MatchPrefix
)

// Resolver looks up a player's position. Satisfied by world.World.
type Resolver interface {
	Player(ctx context.Context, name string) (world.Player, bool, error)
}

// Errors recorded on apology replies.
var (
	ErrSenderNotVisible = errors.New("sender not visible")
	ErrLookupFailed     = errors.New("sender lookup failed")
)

// Command is one explicit chat command.
type Command struct {
	Name        string   // e.g. "!mine"
	Aliases     []string // e.g. ["!inv"]
	Mode        MatchMode
	Usage       string // argument hint for help, e.g. "<block>"
	Description string
	Handler     CommandHandler
}

// CommandHandler turns a matched command into a routing decision.
type CommandHandler func(ctx context.Context, args *CommandArgs) types.Decision

// CommandArgs contains the arguments passed to a command handler
type CommandArgs struct {
	Sender   types.SenderID
	RawArgs  string // trimmed remainder after a prefix form
	Resolver Resolver
	Command  *Command
	Matcher  *Matcher
}

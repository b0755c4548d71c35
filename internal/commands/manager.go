// Package commands matches explicit "!" chat commands to routing decisions
// without consulting the model.
package commands

import (
	"context"
	"strings"

	. "github.com/roelfdiedericks/gaiabot/internal/logging"
	. "github.com/roelfdiedericks/gaiabot/internal/metrics"
	"github.com/roelfdiedericks/gaiabot/internal/types"
)

// Matcher is an ordered, first-match-wins command list. The order is fixed
// at construction; Match is safe for concurrent use.
type Matcher struct {
	commands []*Command
	resolver Resolver
}

// NewMatcher creates a matcher with the built-in commands. resolver is
// consulted for commands that need the sender's position.
func NewMatcher(resolver Resolver) *Matcher {
	m := &Matcher{resolver: resolver}
	registerBuiltins(m)
	return m
}

// Register appends cmd at the lowest priority.
func (m *Matcher) Register(cmd *Command) {
	m.commands = append(m.commands, cmd)
}

// List returns the commands in priority order.
func (m *Matcher) List() []*Command {
	return append([]*Command(nil), m.commands...)
}

// Match checks normalized text (lowercase, trimmed) against each command in
// priority order. ok is false when nothing matched; the caller should then
// consult the model.
func (m *Matcher) Match(ctx context.Context, sender types.SenderID, normalized string) (types.Decision, bool) {
	for _, cmd := range m.commands {
		rawArgs, ok := cmd.match(normalized)
		if !ok {
			continue
		}

		L_debug("commands: matched", "command", cmd.Name, "sender", sender, "args", rawArgs)
		MetricOutcome("commands", "match", cmd.Name)

		d := cmd.Handler(ctx, &CommandArgs{
			Sender:   sender,
			RawArgs:  rawArgs,
			Resolver: m.resolver,
			Command:  cmd,
			Matcher:  m,
		})
		return d.From(types.SourceCommand), true
	}
	if IsCommand(normalized) {
		L_debug("commands: unknown command, passing to classifier", "sender", sender, "text", normalized)
		MetricOutcome("commands", "match", "unknown")
	}
	return types.Decision{}, false
}

// match tests text against the command's forms.
func (c *Command) match(text string) (string, bool) {
	forms := append([]string{c.Name}, c.Aliases...)
	for _, form := range forms {
		switch c.Mode {
		case MatchExact:
			if text == form {
				return "", true
			}
		case MatchPrefix:
			if text == form {
				return "", true
			}
			if strings.HasPrefix(text, form+" ") {
				return strings.TrimSpace(text[len(form):]), true
			}
		}
	}
	return "", false
}

// IsCommand reports whether text uses the "!" command prefix.
func IsCommand(text string) bool {
	return strings.HasPrefix(strings.TrimSpace(text), "!")
}

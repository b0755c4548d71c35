// Package fallback picks a canned reply when the model cannot be used.
// It only ever produces text; it never runs an action.
package fallback

import (
	"strings"

	. "github.com/roelfdiedericks/gaiabot/internal/metrics"
	"github.com/roelfdiedericks/gaiabot/internal/types"
)

// Rule maps any of Keywords, found in the normalized message, to Reply.
type Rule struct {
	Name     string
	Keywords []string
	Reply    string
}

// GenericReply is sent when no rule matches. It fits in one chat line.
const GenericReply = "I understand! I can mine, build, follow you, check my inventory, and help with Minecraft tasks."

// DefaultRules are checked in order; the first hit wins. Stop comes before
// follow so "stop following" is not read as a follow request.
var DefaultRules = []Rule{
	{Name: "stop", Keywords: []string{"stop", "following"}, Reply: "Okay, I've stopped following you!"},
	{Name: "follow", Keywords: []string{"follow"}, Reply: "I'll start following you now!"},
	{Name: "mine", Keywords: []string{"mine"}, Reply: "I'll look for that block to mine!"},
	{Name: "come", Keywords: []string{"come", "here"}, Reply: "Coming to you!"},
	{Name: "inventory", Keywords: []string{"inventory"}, Reply: "Let me check my inventory for you!"},
}

// Policy is an ordered keyword table. Immutable after construction.
type Policy struct {
	rules   []Rule
	generic string
}

// New creates a policy over rules. Nil rules use DefaultRules; an empty
// generic uses GenericReply.
func New(rules []Rule, generic string) *Policy {
	if rules == nil {
		rules = DefaultRules
	}
	if generic == "" {
		generic = GenericReply
	}
	return &Policy{rules: append([]Rule(nil), rules...), generic: generic}
}

// Default returns the stock policy.
func Default() *Policy {
	return New(nil, "")
}

// Decide returns the canned reply for msg. cause is the model failure that
// led here and is kept on the decision for logging.
func (p *Policy) Decide(msg types.Message, cause error) types.Decision {
	text := msg.Normalized()
	for _, r := range p.rules {
		for _, kw := range r.Keywords {
			if kw != "" && strings.Contains(text, kw) {
				MetricOutcome("fallback", "decide", r.Name)
				return types.Reply(r.Reply).From(types.SourceFallback).WithErr(cause)
			}
		}
	}
	MetricOutcome("fallback", "decide", "generic")
	return types.Reply(p.generic).From(types.SourceFallback).WithErr(cause)
}

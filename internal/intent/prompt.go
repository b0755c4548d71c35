package intent

import (
	"fmt"
	"strings"

	"github.com/roelfdiedericks/gaiabot/internal/actions"
	"github.com/roelfdiedericks/gaiabot/internal/llm"
	"github.com/roelfdiedericks/gaiabot/internal/types"
)

// promptExample is one worked example in the policy preamble.
type promptExample struct {
	Says   string
	Answer string
}

var promptExamples = []promptExample{
	{"mine some stone", `{"name": "mine_block", "parameters": {"blockType": "stone"}}`},
	{"follow me", `{"name": "follow_player", "parameters": {"playerName": "username"}}`},
	{"build with dirt", `{"name": "place_block", "parameters": {"blockType": "dirt"}}`},
	{"what do you have?", `{"name": "check_inventory", "parameters": {}}`},
	{"lol", "Glad you're having fun!"},
	{"wtf", "What's up? Need help with something?"},
}

// BuildPreamble renders the fixed policy message from the registry.
func BuildPreamble(agentName string, reg *actions.Registry) string {
	var b strings.Builder

	fmt.Fprintf(&b, "You are %s, a helpful assistant bot in a Minecraft world. ", agentName)
	b.WriteString("Players talk to you in chat. Answer every message in exactly one of two ways:\n\n")
	b.WriteString("1. To perform an action, reply with ONLY a single JSON object on one line:\n")
	b.WriteString(`   {"name": "<action>", "parameters": {...}}` + "\n")
	b.WriteString("2. Otherwise reply with a short, friendly chat message (under 100 characters). No JSON.\n\n")

	b.WriteString("Available actions:\n")
	for _, d := range reg.Definitions() {
		fmt.Fprintf(&b, "- %s", d.Name)
		if len(d.Params) > 0 {
			names := make([]string, 0, len(d.Params))
			for _, p := range d.Params {
				names = append(names, p.Kind.String())
			}
			fmt.Fprintf(&b, "(%s)", strings.Join(names, ", "))
		}
		if d.Description != "" {
			fmt.Fprintf(&b, ": %s", d.Description)
		}
		b.WriteString("\n")
	}

	b.WriteString("\nUse \"username\" as playerName when the player means themselves.\n")
	b.WriteString("Never perform more than one action per message.\n\nExamples:\n")
	for _, ex := range promptExamples {
		fmt.Fprintf(&b, "Player says: %s\nYou: %s\n", ex.Says, ex.Answer)
	}
	return b.String()
}

// userLine attributes text to its sender.
func userLine(sender types.SenderID, text string) string {
	return fmt.Sprintf("Player %s says: %s", sender, text)
}

func buildRequest(preamble string, msg types.Message, text string) []llm.Message {
	return []llm.Message{
		{Role: llm.RoleSystem, Content: preamble},
		{Role: llm.RoleUser, Content: userLine(msg.Sender, text)},
	}
}

package fallback

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roelfdiedericks/gaiabot/internal/types"
)

func TestDecide(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"please STOP following me", "Okay, I've stopped following you!"},
		{"stop", "Okay, I've stopped following you!"},
		{"can you follow me around", "I'll start following you now!"},
		{"mine some iron", "I'll look for that block to mine!"},
		{"come over", "Coming to you!"},
		{"I'm over here", "Coming to you!"},
		{"what's in your inventory", "Let me check my inventory for you!"},
		{"tell me a joke", GenericReply},
		{"", GenericReply},
	}
	p := Default()
	cause := errors.New("model timeout")
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			d := p.Decide(types.NewMessage("alice", tt.text), cause)
			assert.Equal(t, types.DecisionReply, d.Kind)
			assert.Equal(t, tt.want, d.Text)
			assert.Equal(t, types.SourceFallback, d.Source)
			assert.ErrorIs(t, d.Err, cause)
		})
	}
}

func TestFirstRuleWins(t *testing.T) {
	p := Default()
	d := p.Decide(types.NewMessage("alice", "follow me and mine stone"), nil)
	assert.Equal(t, "I'll start following you now!", d.Text)
}

func TestCustomRules(t *testing.T) {
	p := New([]Rule{{Name: "hi", Keywords: []string{"hello"}, Reply: "Hey!"}}, "Huh?")

	assert.Equal(t, "Hey!", p.Decide(types.NewMessage("a", "Hello there"), nil).Text)
	assert.Equal(t, "Huh?", p.Decide(types.NewMessage("a", "follow me"), nil).Text)
}

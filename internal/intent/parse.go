package intent

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/roelfdiedericks/gaiabot/internal/types"
)

//go:embed action_call.schema.json
var actionCallSchema string

var callSchema = jsonschema.MustCompileString("action_call.schema.json", actionCallSchema)

// actionCall is the structured record the model emits to request an action.
// Some models say "arguments" instead of "parameters"; both are accepted.
type actionCall struct {
	Name       string         `json:"name"`
	Parameters map[string]any `json:"parameters"`
	Arguments  map[string]any `json:"arguments"`
}

func (c actionCall) params() map[string]any {
	if len(c.Parameters) > 0 {
		return c.Parameters
	}
	return c.Arguments
}

// extractRecord returns the first balanced {...} substring of s. Braces
// inside JSON string literals do not count.
func extractRecord(s string) (string, bool) {
	for start := strings.IndexByte(s, '{'); start >= 0; {
		if end, ok := balancedEnd(s, start); ok {
			return s[start : end+1], true
		}
		next := strings.IndexByte(s[start+1:], '{')
		if next < 0 {
			break
		}
		start += next + 1
	}
	return "", false
}

func balancedEnd(s string, start int) (int, bool) {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i, true
			}
		}
	}
	return 0, false
}

// decodeCall decodes and validates a record against the action-call schema.
func decodeCall(record string) (actionCall, error) {
	var raw any
	if err := json.Unmarshal([]byte(record), &raw); err != nil {
		return actionCall{}, fmt.Errorf("decode action call: %w", err)
	}
	if err := callSchema.Validate(raw); err != nil {
		return actionCall{}, fmt.Errorf("validate action call: %w", err)
	}
	var call actionCall
	if err := json.Unmarshal([]byte(record), &call); err != nil {
		return actionCall{}, fmt.Errorf("decode action call: %w", err)
	}
	call.Name = strings.TrimSpace(call.Name)
	return call, nil
}

// parseResponse finds and decodes the action call in a model response.
// ok is false when the response should be treated as free text.
func parseResponse(text string) (actionCall, bool) {
	record, found := extractRecord(text)
	if !found {
		return actionCall{}, false
	}
	call, err := decodeCall(record)
	if err != nil {
		return actionCall{}, false
	}
	return call, call.Name != ""
}

// stringArg returns args[key] when it holds a non-blank string.
func stringArg(args map[string]any, key string) (string, bool) {
	v, ok := args[key].(string)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

// aliasValue picks the single free-text value of a call: blockType first,
// then playerName, then the only string parameter if there is exactly one.
func aliasValue(args map[string]any) string {
	if v, ok := stringArg(args, "blockType"); ok {
		return v
	}
	if v, ok := stringArg(args, "playerName"); ok {
		return v
	}
	var only string
	n := 0
	for _, v := range args {
		if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
			only = strings.TrimSpace(s)
			n++
		}
	}
	if n == 1 {
		return only
	}
	return ""
}

var selfPlaceholders = map[string]bool{
	"":         true,
	"me":       true,
	"myself":   true,
	"username": true,
	"player":   true,
	"sender":   true,
}

// resolveIdentity maps placeholder identities from the model to sender.
func resolveIdentity(name string, sender types.SenderID) string {
	name = strings.TrimSpace(name)
	if selfPlaceholders[strings.ToLower(name)] {
		return string(sender)
	}
	return name
}

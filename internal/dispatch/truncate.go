package dispatch

import "unicode/utf8"

// DefaultReplyLimit is the chat channel's line length, in characters.
const DefaultReplyLimit = 100

// Truncate cuts text to at most limit characters (runes). Non-positive
// limit returns text unchanged.
func Truncate(text string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(text) <= limit {
		return text
	}
	runes := []rune(text)
	return string(runes[:limit])
}

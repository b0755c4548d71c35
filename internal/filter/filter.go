// Package filter rejects chat messages that contain deny-listed terms.
//
// Matching is a case-insensitive substring test against a short,
// configuration-supplied term list. The default list is illustrative only and
// is not a profanity database; substring matching also means a short term
// will hit inside longer, innocent words.
package filter

import (
	"strings"
	"sync/atomic"

	. "github.com/roelfdiedericks/gaiabot/internal/logging"
)

// DefaultTerms is the built-in deny-list.
var DefaultTerms = []string{"fuck", "bitch", "shit", "damn", "crap"}

// DefaultRedirect is sent in place of routing when a message is rejected.
const DefaultRedirect = "Let's keep chat friendly! How can I help you?"

// Filter is safe for concurrent use. The term list can be swapped at runtime
// (config hot reload) without blocking readers.
type Filter struct {
	terms atomic.Pointer[[]string]
}

// New creates a Filter. A nil list selects DefaultTerms; an empty non-nil
// list disables filtering.
func New(terms []string) *Filter {
	f := &Filter{}
	if terms == nil {
		terms = DefaultTerms
	}
	f.SetTerms(terms)
	return f
}

// SetTerms replaces the deny-list. Terms are lowercased and blanks dropped.
func (f *Filter) SetTerms(terms []string) {
	normalized := make([]string, 0, len(terms))
	for _, t := range terms {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" {
			normalized = append(normalized, t)
		}
	}
	f.terms.Store(&normalized)
	L_debug("filter: deny-list set", "terms", len(normalized))
}

// Terms returns a copy of the active deny-list.
func (f *Filter) Terms() []string {
	terms := *f.terms.Load()
	out := make([]string, len(terms))
	copy(out, terms)
	return out
}

// IsClean reports whether text contains none of the deny-listed terms.
func (f *Filter) IsClean(text string) bool {
	_, hit := f.Match(text)
	return !hit
}

// Match returns the first deny-listed term found in text.
func (f *Filter) Match(text string) (string, bool) {
	lower := strings.ToLower(text)
	for _, term := range *f.terms.Load() {
		if strings.Contains(lower, term) {
			return term, true
		}
	}
	return "", false
}

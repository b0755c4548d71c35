// Package tokens provides token estimation utilities using tiktoken.
package tokens

import (
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"

	. "github.com/roelfdiedericks/gaiabot/internal/logging"
)

// Estimator provides token estimation using tiktoken
type Estimator struct {
	encoding *tiktoken.Tiktoken
	mu       sync.RWMutex
}

// DefaultEncoding is cl100k_base, close enough for the chat models in use
const DefaultEncoding = "cl100k_base"

// charsPerToken is the fallback ratio when tiktoken is unavailable.
const charsPerToken = 4

var (
	globalEstimator     *Estimator
	globalEstimatorOnce sync.Once
)

// Get returns the global token estimator (singleton)
func Get() *Estimator {
	globalEstimatorOnce.Do(func() {
		var err error
		globalEstimator, err = New()
		if err != nil {
			L_warn("tokens: failed to create estimator, using fallback", "error", err)
			globalEstimator = &Estimator{} // fallback to char-based estimation
		}
	})
	return globalEstimator
}

// New creates a new token estimator
func New() (*Estimator, error) {
	enc, err := tiktoken.GetEncoding(DefaultEncoding)
	if err != nil {
		return nil, err
	}
	return &Estimator{encoding: enc}, nil
}

// Count returns the token count for a string.
// Falls back to chars/4 if tiktoken unavailable.
func (e *Estimator) Count(text string) int {
	if e == nil || e.encoding == nil {
		return len(text) / charsPerToken
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	return len(e.encoding.Encode(text, nil, nil))
}

// Truncate clamps text to at most maxTokens tokens. Non-positive maxTokens
// disables the limit.
func (e *Estimator) Truncate(text string, maxTokens int) string {
	if maxTokens <= 0 || text == "" {
		return text
	}

	if e == nil || e.encoding == nil {
		return truncateRunes(text, maxTokens*charsPerToken)
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	toks := e.encoding.Encode(text, nil, nil)
	if len(toks) <= maxTokens {
		return text
	}
	out := e.encoding.Decode(toks[:maxTokens])
	// A cut inside a multi-byte rune leaves a partial sequence; drop it.
	return strings.ToValidUTF8(out, "")
}

func truncateRunes(text string, limit int) string {
	if utf8.RuneCountInString(text) <= limit {
		return text
	}
	runes := []rune(text)
	return string(runes[:limit])
}

// Estimate is a convenience function using the global estimator.
func Estimate(text string) int {
	return Get().Count(text)
}

// Truncate is a convenience function using the global estimator.
func Truncate(text string, maxTokens int) string {
	return Get().Truncate(text, maxTokens)
}

// Package llmtest provides a scripted llm.Provider for tests.
package llmtest

import (
	"context"
	"sync"
	"time"

	"github.com/roelfdiedericks/gaiabot/internal/llm"
)

// Stub returns a fixed response or error. With Delay set, Chat blocks for
// that long or until ctx is done, whichever comes first.
type Stub struct {
	Response string
	Err      error
	Delay    time.Duration

	mu    sync.Mutex
	calls [][]llm.Message
}

var _ llm.Provider = (*Stub)(nil)

// Reply creates a stub answering text.
func Reply(text string) *Stub {
	return &Stub{Response: text}
}

// Fail creates a stub failing with err.
func Fail(err error) *Stub {
	return &Stub{Err: err}
}

func (s *Stub) Name() string  { return "stub" }
func (s *Stub) Type() string  { return "stub" }
func (s *Stub) Model() string { return "stub-model" }

func (s *Stub) Chat(ctx context.Context, messages []llm.Message) (string, error) {
	s.mu.Lock()
	s.calls = append(s.calls, append([]llm.Message(nil), messages...))
	s.mu.Unlock()

	if s.Delay > 0 {
		select {
		case <-time.After(s.Delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if s.Err != nil {
		return "", s.Err
	}
	return s.Response, nil
}

// Calls returns every request received.
func (s *Stub) Calls() [][]llm.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]llm.Message(nil), s.calls...)
}

// CallCount returns the number of requests received.
func (s *Stub) CallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

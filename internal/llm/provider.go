// Package llm provides the model collaborator: a single request/response
// chat call over OpenAI-compatible or Anthropic endpoints.
package llm

import (
	"context"
)

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Provider is the unified interface for all model backends.
// Implementations: OpenAIProvider, AnthropicProvider
type Provider interface {
	Name() string  // Provider instance name (e.g., "fireworks")
	Type() string  // Provider type (e.g., "openai", "anthropic")
	Model() string // Model name sent with each request

	// Chat sends an ordered list of role-tagged messages and returns the
	// model's text. System messages are hoisted where the API requires it.
	Chat(ctx context.Context, messages []Message) (string, error)
}

// Message is one role-tagged chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ProviderConfig is the configuration for a single provider instance
type ProviderConfig struct {
	Type           string  `json:"type" yaml:"type"`                     // "openai", "fireworks", "anthropic"
	Model          string  `json:"model" yaml:"model"`                   // provider model id
	APIKey         string  `json:"apiKey" yaml:"apiKey"`                 // For cloud providers
	BaseURL        string  `json:"baseURL" yaml:"baseURL"`               // For OpenAI-compatible endpoints
	Temperature    float64 `json:"temperature" yaml:"temperature"`       // sampling temperature
	MaxTokens      int     `json:"maxTokens" yaml:"maxTokens"`           // Output limit
	TimeoutSeconds int     `json:"timeoutSeconds" yaml:"timeoutSeconds"` // Request timeout
}

// ErrUnavailable is returned when a provider is not available
type ErrUnavailable struct {
	Provider string
	Reason   string
}

func (e ErrUnavailable) Error() string {
	if e.Reason != "" {
		return e.Provider + " is unavailable: " + e.Reason
	}
	return e.Provider + " is unavailable"
}

// splitSystem separates system messages from the conversation.
func splitSystem(messages []Message) (system string, rest []Message) {
	for _, m := range messages {
		if m.Role == RoleSystem {
			if system != "" {
				system += "\n\n"
			}
			system += m.Content
			continue
		}
		rest = append(rest, m)
	}
	return system, rest
}

// Package llm - Provider factory
package llm

import "fmt"

// NewProvider creates a provider instance from config.
// Dispatches to the appropriate constructor based on cfg.Type.
func NewProvider(name string, cfg ProviderConfig) (Provider, error) {
	switch cfg.Type {
	case "anthropic":
		return NewAnthropicProvider(name, cfg)
	case "", "openai", "fireworks":
		return NewOpenAIProvider(name, cfg)
	default:
		return nil, fmt.Errorf("unknown provider type: %s", cfg.Type)
	}
}

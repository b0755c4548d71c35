// Package config loads gaiabot's settings from a JSON or YAML file, fills
// gaps from built-in defaults and applies environment overrides.
package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/roelfdiedericks/gaiabot/internal/llm"
)

// Config is the full gaiabot configuration.
type Config struct {
	LogLevel string        `json:"logLevel,omitempty" yaml:"logLevel,omitempty"`
	Agent    AgentConfig   `json:"agent" yaml:"agent"`
	Router   RouterConfig  `json:"router" yaml:"router"`
	Actions  ActionsConfig `json:"actions" yaml:"actions"`
	LLM      LLMConfig     `json:"llm" yaml:"llm"`
	World    WorldConfig   `json:"world" yaml:"world"`
	Metrics  MetricsConfig `json:"metrics" yaml:"metrics"`
}

// AgentConfig describes the bot itself.
type AgentConfig struct {
	Name     string `json:"name" yaml:"name"`         // shown to the model
	Greeting string `json:"greeting" yaml:"greeting"` // said on spawn
}

// RouterConfig holds the message routing options. DenyList is the only
// option applied on hot reload.
type RouterConfig struct {
	CooldownMs        int      `json:"cooldownMs" yaml:"cooldownMs"`
	ReplyLimit        int      `json:"replyLimit" yaml:"replyLimit"`
	DenyList          []string `json:"denyList" yaml:"denyList"`
	RedirectMessage   string   `json:"redirectMessage" yaml:"redirectMessage"`
	ThinkingNotice    string   `json:"thinkingNotice,omitempty" yaml:"thinkingNotice,omitempty"` // empty disables
	ExhaustionMarkers []string `json:"exhaustionMarkers" yaml:"exhaustionMarkers"`
}

// ActionsConfig bounds world searches.
type ActionsConfig struct {
	SearchRadius int `json:"searchRadius" yaml:"searchRadius"`
	LookRadius   int `json:"lookRadius" yaml:"lookRadius"`
	LookSamples  int `json:"lookSamples" yaml:"lookSamples"`
	LookTypes    int `json:"lookTypes" yaml:"lookTypes"`
}

// LLMConfig is the model provider plus request shaping.
type LLMConfig struct {
	llm.ProviderConfig `yaml:",inline"`
	MaxInputTokens     int `json:"maxInputTokens" yaml:"maxInputTokens"`
}

// WorldConfig locates the game-agent runtime.
type WorldConfig struct {
	URL              string `json:"url" yaml:"url"`
	Token            string `json:"token,omitempty" yaml:"token,omitempty"`
	Username         string `json:"username" yaml:"username"`
	Insecure         bool   `json:"insecure,omitempty" yaml:"insecure,omitempty"`
	ReconnectDelayMs int    `json:"reconnectDelayMs" yaml:"reconnectDelayMs"`
	RequestTimeoutMs int    `json:"requestTimeoutMs" yaml:"requestTimeoutMs"`
}

// MetricsConfig controls metrics persistence. An empty DBPath selects
// ~/.gaiabot/metrics.db; "off" disables persistence.
type MetricsConfig struct {
	DBPath string `json:"dbPath,omitempty" yaml:"dbPath,omitempty"`
	Flush  string `json:"flush" yaml:"flush"` // cron spec
}

// MetricsDisabled is the DBPath value that turns persistence off.
const MetricsDisabled = "off"

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		LogLevel: "info",
		Agent: AgentConfig{
			Name:     "GaiaBot",
			Greeting: "Hello! I'm online and ready to help with Minecraft tasks!",
		},
		Router: RouterConfig{
			CooldownMs:        3000,
			ReplyLimit:        100,
			DenyList:          []string{"fuck", "bitch", "shit", "damn", "crap"},
			RedirectMessage:   "Let's keep chat friendly! How can I help you?",
			ExhaustionMarkers: []string{"Agent stopped due to max iterations", "Agent stopped due to iteration limit"},
		},
		Actions: ActionsConfig{
			SearchRadius: 32,
			LookRadius:   10,
			LookSamples:  20,
			LookTypes:    5,
		},
		LLM: LLMConfig{
			ProviderConfig: llm.ProviderConfig{
				Type:           "fireworks", // model and base URL default per provider
				Temperature:    0.2,
				MaxTokens:      500,
				TimeoutSeconds: 15,
			},
			MaxInputTokens: 256,
		},
		World: WorldConfig{
			URL:              "ws://localhost:3000/agent",
			Username:         "GaiaBot",
			ReconnectDelayMs: 5000,
			RequestTimeoutMs: 30000,
		},
		Metrics: MetricsConfig{
			Flush: "@every 5m",
		},
	}
}

// Cooldown returns the rate-limit window.
func (c *Config) Cooldown() time.Duration {
	return time.Duration(c.Router.CooldownMs) * time.Millisecond
}

// ClassifyTimeout returns the model call bound.
func (c *Config) ClassifyTimeout() time.Duration {
	return time.Duration(c.LLM.TimeoutSeconds) * time.Second
}

// Validate checks values that defaults cannot repair.
func (c *Config) Validate() error {
	switch c.LLM.Type {
	case "", "openai", "fireworks", "anthropic":
	default:
		return fmt.Errorf("llm.type %q: want openai, fireworks or anthropic", c.LLM.Type)
	}
	if c.Router.CooldownMs < 0 {
		return fmt.Errorf("router.cooldownMs must not be negative")
	}
	if c.Router.ReplyLimit < 0 {
		return fmt.Errorf("router.replyLimit must not be negative")
	}
	if c.World.URL != "" {
		u, err := url.Parse(c.World.URL)
		if err != nil {
			return fmt.Errorf("world.url: %w", err)
		}
		if u.Scheme != "ws" && u.Scheme != "wss" {
			return fmt.Errorf("world.url %q: scheme must be ws or wss", c.World.URL)
		}
	}
	return nil
}

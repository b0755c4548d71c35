package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roelfdiedericks/gaiabot/internal/bus"
)

// isolate points the config search at an empty home and clears overrides.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("GAIABOT_HOME", home)
	for _, k := range []string{
		"GAIABOT_WORLD_URL", "GAIABOT_WORLD_TOKEN", "GAIABOT_WORLD_USERNAME",
		"GAIABOT_LLM_TYPE", "GAIABOT_LLM_API_KEY", "FIREWORKS_API_KEY",
		"GAIABOT_LLM_MODEL", "GAIABOT_LLM_BASE_URL", "GAIABOT_LOG_LEVEL",
	} {
		t.Setenv(k, "")
	}
	return home
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
}

func TestLoadDefaultsWhenNoFile(t *testing.T) {
	isolate(t)

	cfg, path, err := Load("")
	require.NoError(t, err)
	assert.Empty(t, path)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, 3*time.Second, cfg.Cooldown())
	assert.Equal(t, 15*time.Second, cfg.ClassifyTimeout())
}

func TestLoadExplicitMissingFile(t *testing.T) {
	isolate(t)
	_, _, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}

func TestLoadJSONMergesDefaults(t *testing.T) {
	home := isolate(t)
	path := filepath.Join(home, "gaiabot.json")
	writeFile(t, path, `{
		"router": {"cooldownMs": 1500, "denyList": ["heck"]},
		"llm": {"type": "anthropic", "model": "claude-haiku", "apiKey": "k"},
		"world": {"url": "wss://mc.example/agent", "username": "Gaia"}
	}`)

	cfg, found, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, path, found)

	assert.Equal(t, 1500, cfg.Router.CooldownMs)
	assert.Equal(t, []string{"heck"}, cfg.Router.DenyList)
	assert.Equal(t, 100, cfg.Router.ReplyLimit)
	assert.Equal(t, Default().Router.RedirectMessage, cfg.Router.RedirectMessage)

	assert.Equal(t, "anthropic", cfg.LLM.Type)
	assert.Equal(t, "claude-haiku", cfg.LLM.Model)
	assert.Equal(t, 500, cfg.LLM.MaxTokens)
	assert.Equal(t, 256, cfg.LLM.MaxInputTokens)

	assert.Equal(t, "wss://mc.example/agent", cfg.World.URL)
	assert.Equal(t, "Gaia", cfg.World.Username)
	assert.Equal(t, 5000, cfg.World.ReconnectDelayMs)
	assert.Equal(t, 32, cfg.Actions.SearchRadius)
}

func TestLoadYAML(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "bot.yaml")
	writeFile(t, path, `
logLevel: debug
router:
  replyLimit: 80
  thinkingNotice: "Let me help you with that..."
llm:
  type: openai
  model: llama-3
  baseURL: http://localhost:1234
actions:
  lookRadius: 6
`)

	cfg, _, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 80, cfg.Router.ReplyLimit)
	assert.Equal(t, "Let me help you with that...", cfg.Router.ThinkingNotice)
	assert.Equal(t, "openai", cfg.LLM.Type)
	assert.Equal(t, "llama-3", cfg.LLM.Model)
	assert.Equal(t, "http://localhost:1234", cfg.LLM.BaseURL)
	assert.Equal(t, 6, cfg.Actions.LookRadius)
	assert.Equal(t, 20, cfg.Actions.LookSamples)
}

func TestEnvOverrides(t *testing.T) {
	isolate(t)
	t.Setenv("GAIABOT_WORLD_URL", "ws://10.0.0.5:3000/agent")
	t.Setenv("GAIABOT_WORLD_TOKEN", "tok")
	t.Setenv("FIREWORKS_API_KEY", "fw-key")
	t.Setenv("GAIABOT_LOG_LEVEL", "trace")

	cfg, _, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "ws://10.0.0.5:3000/agent", cfg.World.URL)
	assert.Equal(t, "tok", cfg.World.Token)
	assert.Equal(t, "fw-key", cfg.LLM.APIKey)
	assert.Equal(t, "trace", cfg.LogLevel)

	t.Setenv("GAIABOT_LLM_API_KEY", "explicit")
	cfg, _, err = Load("")
	require.NoError(t, err)
	assert.Equal(t, "explicit", cfg.LLM.APIKey)
}

func TestFireworksKeyIgnoredForOtherProviders(t *testing.T) {
	isolate(t)
	t.Setenv("FIREWORKS_API_KEY", "fw-key")
	t.Setenv("GAIABOT_LLM_TYPE", "anthropic")

	cfg, _, err := Load("")
	require.NoError(t, err)
	assert.Empty(t, cfg.LLM.APIKey)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		mod  func(*Config)
	}{
		{"llm type", func(c *Config) { c.LLM.Type = "carrier-pigeon" }},
		{"negative cooldown", func(c *Config) { c.Router.CooldownMs = -1 }},
		{"negative reply limit", func(c *Config) { c.Router.ReplyLimit = -5 }},
		{"http world url", func(c *Config) { c.World.URL = "http://localhost:3000" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mod(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
	assert.NoError(t, Default().Validate())
}

func TestSaveRoundTripAndBackup(t *testing.T) {
	isolate(t)
	dir := t.TempDir()

	for _, name := range []string{"gaiabot.json", "gaiabot.yaml"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			cfg := Default()
			cfg.Router.CooldownMs = 1234

			require.NoError(t, Save(path, cfg))
			require.NoError(t, Save(path, cfg))
			assert.FileExists(t, path+".bak")

			loaded, _, err := Load(path)
			require.NoError(t, err)
			assert.Equal(t, cfg, loaded)
		})
	}
}

func TestRotateBackups(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gaiabot.json")
	for i := 0; i < 4; i++ {
		require.NoError(t, BackupAndWrite(path, []byte(`{}`), 3))
	}
	assert.FileExists(t, path+".bak")
	assert.FileExists(t, path+".bak.1")
	assert.FileExists(t, path+".bak.2")
	assert.NoFileExists(t, path+".bak.3")
}

func TestWatcherPublishesReload(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "gaiabot.json")
	writeFile(t, path, `{"router": {"denyList": ["heck"]}}`)

	b := bus.New()
	got := make(chan *Config, 4)
	b.Subscribe(bus.TopicConfigReloaded, func(ev bus.Event) {
		got <- ev.Data.(*Config)
	})

	w, err := NewWatcher(path, b, 20*time.Millisecond)
	require.NoError(t, err)
	w.Start()
	defer w.Stop()

	writeFile(t, path, `{"router": {"denyList": ["darn"]}}`)

	select {
	case cfg := <-got:
		assert.Equal(t, []string{"darn"}, cfg.Router.DenyList)
	case <-time.After(5 * time.Second):
		t.Fatal("no reload published")
	}
	assert.GreaterOrEqual(t, w.Reloads(), 1)
}

func TestWatcherKeepsOldConfigOnBadFile(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "gaiabot.json")
	writeFile(t, path, `{}`)

	b := bus.New()
	published := make(chan struct{}, 1)
	b.Subscribe(bus.TopicConfigReloaded, func(bus.Event) { published <- struct{}{} })

	w, err := NewWatcher(path, b, 20*time.Millisecond)
	require.NoError(t, err)
	w.Start()

	writeFile(t, path, `{not json`)
	time.Sleep(200 * time.Millisecond)
	require.NoError(t, w.Stop())

	assert.Empty(t, published)
	assert.Equal(t, 0, w.Reloads())
}

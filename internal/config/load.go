package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"dario.cat/mergo"
	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/roelfdiedericks/gaiabot/internal/logging"
	"github.com/roelfdiedericks/gaiabot/internal/paths"
)

// envOverrides are applied after the file and defaults. Empty values leave
// the loaded setting alone.
type envOverrides struct {
	WorldURL        string `env:"GAIABOT_WORLD_URL"`
	WorldToken      string `env:"GAIABOT_WORLD_TOKEN"`
	WorldUsername   string `env:"GAIABOT_WORLD_USERNAME"`
	LLMType         string `env:"GAIABOT_LLM_TYPE"`
	LLMAPIKey       string `env:"GAIABOT_LLM_API_KEY"`
	FireworksAPIKey string `env:"FIREWORKS_API_KEY"`
	LLMModel        string `env:"GAIABOT_LLM_MODEL"`
	LLMBaseURL      string `env:"GAIABOT_LLM_BASE_URL"`
	LogLevel        string `env:"GAIABOT_LOG_LEVEL"`
}

// Load reads the config at path. An empty path searches the standard
// locations (see paths.ConfigPath); finding nothing there is not an error
// and yields the defaults. The returned string is the file actually read,
// or "" when none was.
func Load(path string) (*Config, string, error) {
	explicit := path != ""
	if !explicit {
		found, err := paths.ConfigPath()
		if err != nil {
			return nil, "", err
		}
		path = found
	}

	cfg := &Config{}
	if path != "" {
		if err := readFile(path, cfg); err != nil {
			if explicit || !errors.Is(err, os.ErrNotExist) {
				return nil, "", err
			}
			path = ""
		}
	}

	if err := mergo.Merge(cfg, Default()); err != nil {
		return nil, "", fmt.Errorf("merge defaults: %w", err)
	}
	if err := applyEnv(cfg); err != nil {
		return nil, "", err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", fmt.Errorf("invalid config %s: %w", path, err)
	}

	if path == "" {
		logging.L_debug("config: no file found, using defaults")
	} else {
		logging.L_debug("config: loaded", "path", path)
	}
	return cfg, path, nil
}

// readFile decodes path into cfg, choosing the format by extension.
func readFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	if isYAML(path) {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
		return nil
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

func applyEnv(cfg *Config) error {
	var o envOverrides
	if err := env.Parse(&o); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}

	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&cfg.World.URL, o.WorldURL)
	set(&cfg.World.Token, o.WorldToken)
	set(&cfg.World.Username, o.WorldUsername)
	set(&cfg.LLM.Type, o.LLMType)
	set(&cfg.LLM.Model, o.LLMModel)
	set(&cfg.LLM.BaseURL, o.LLMBaseURL)
	set(&cfg.LogLevel, o.LogLevel)

	if cfg.LLM.APIKey == "" && (cfg.LLM.Type == "" || cfg.LLM.Type == "fireworks") {
		set(&cfg.LLM.APIKey, o.FireworksAPIKey)
	}
	set(&cfg.LLM.APIKey, o.LLMAPIKey)
	return nil
}

// Save writes cfg to path in the format its extension selects, keeping a
// rotated backup of any existing file.
func Save(path string, cfg *Config) error {
	if isYAML(path) {
		data, err := yaml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("marshal yaml: %w", err)
		}
		return BackupAndWrite(path, data, DefaultBackupCount)
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	return BackupAndWrite(path, append(data, '\n'), DefaultBackupCount)
}

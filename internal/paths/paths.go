// Package paths provides centralized path resolution for gaiabot.
// This package has NO internal imports (only stdlib) to avoid import cycles.
// All functions return errors to allow callers to log appropriately.
package paths

import (
	"fmt"
	"os"
	"path/filepath"
)

// HomeEnv overrides the base directory when set.
const HomeEnv = "GAIABOT_HOME"

// configNames are tried in order, locally and then under BaseDir.
var configNames = []string{"gaiabot.json", "gaiabot.yaml", "gaiabot.yml"}

// BaseDir returns the gaiabot base directory ($GAIABOT_HOME or ~/.gaiabot).
func BaseDir() (string, error) {
	if dir := os.Getenv(HomeEnv); dir != "" {
		return ExpandTilde(dir)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".gaiabot"), nil
}

// DataPath returns a path within the gaiabot data directory.
func DataPath(subpath string) (string, error) {
	base, err := BaseDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, subpath), nil
}

// DefaultConfigFile is where `gaiabot init` writes: <base>/gaiabot.json.
func DefaultConfigFile() (string, error) {
	return DataPath(configNames[0])
}

// ConfigPath returns the active config file path.
// Priority: ./gaiabot.{json,yaml,yml} > <base>/gaiabot.{json,yaml,yml}
// Returns ("", nil) if no config exists - this is a valid state, not an error.
func ConfigPath() (string, error) {
	for _, name := range configNames {
		if _, err := os.Stat(name); err == nil {
			absPath, err := filepath.Abs(name)
			if err != nil {
				return "", fmt.Errorf("failed to get absolute path: %w", err)
			}
			return absPath, nil
		}
	}

	for _, name := range configNames {
		globalPath, err := DataPath(name)
		if err != nil {
			return "", err
		}
		if _, err := os.Stat(globalPath); err == nil {
			return globalPath, nil
		}
	}

	return "", nil
}

// EnsureDir creates a directory if it doesn't exist.
func EnsureDir(path string) error {
	if err := os.MkdirAll(path, 0750); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", path, err)
	}
	return nil
}

// EnsureParentDir creates the parent directory of a file path if it doesn't exist.
func EnsureParentDir(filePath string) error {
	return EnsureDir(filepath.Dir(filePath))
}

// ExpandTilde expands a path that starts with ~ to the user's home directory.
// Returns the path unchanged if it doesn't start with ~.
func ExpandTilde(path string) (string, error) {
	if len(path) == 0 || path[0] != '~' {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	if len(path) == 1 {
		return home, nil
	}
	return filepath.Join(home, path[1:]), nil
}

package config

import (
	"os"
	"path/filepath"
)

// HelmsmanPath returns the root directory for Helmsman data.
// It uses $HELMSMAN_PATH if set, otherwise defaults to ~/.helmsman.
func HelmsmanPath() string {
	if v := os.Getenv("HELMSMAN_PATH"); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".helmsman")
	}
	return filepath.Join(home, ".helmsman")
}

// ConfigPath returns the path to the Helmsman config file.
func ConfigPath() string {
	return filepath.Join(HelmsmanPath(), "config.jsonc")
}

// DotenvPath returns the path to the Helmsman .env file.
func DotenvPath() string {
	return filepath.Join(HelmsmanPath(), ".env")
}

package config

import (
	"os"
	"path/filepath"
)

// DataPath returns the root directory for shiftcheck data.
// It uses $SHIFTCHECK_PATH if set, otherwise defaults to ./.shiftcheck.
func DataPath() string {
	if v := os.Getenv("SHIFTCHECK_PATH"); v != "" {
		return v
	}
	return ".shiftcheck"
}

// ConfigPath returns the default config file path.
func ConfigPath() string {
	return filepath.Join(DataPath(), "config.jsonc")
}

// DotenvPath returns the default .env file path.
func DotenvPath() string {
	return filepath.Join(DataPath(), ".env")
}

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/joho/godotenv"
	jsoniter "github.com/json-iterator/go"
	"github.com/tailscale/hujson"
	"gopkg.in/yaml.v3"
)

var envTemplateRe = regexp.MustCompile(`\$\{\{\s*\.Env\.(\w+)\s*\}\}`)

// Load reads a config file, expands ${{ .Env.VAR }} templates, unmarshals it
// into Config and applies defaults. Files ending in .yaml or .yml are YAML;
// anything else is JSON with comments and trailing commas allowed. An empty
// path yields the defaults.
func Load(path string) (*Config, error) {
	var cfg Config
	if path == "" {
		applyDefaults(&cfg)
		return &cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	// Expand environment variable templates (before parsing, since templates are in strings)
	expanded := []byte(expandEnvTemplates(string(data)))

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(expanded, &cfg); err != nil {
			return nil, fmt.Errorf("unmarshal config: %w", err)
		}
	default:
		standard, err := hujson.Standardize(expanded)
		if err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
		if err := jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal(standard, &cfg); err != nil {
			return nil, fmt.Errorf("unmarshal config: %w", err)
		}
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

// LoadDotenv reads a .env file and sets environment variables that are not
// already defined. A missing file is silently ignored.
func LoadDotenv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load dotenv: %w", err)
	}
	return nil
}

// expandEnvTemplates replaces ${{ .Env.VAR }} with the env var value.
func expandEnvTemplates(s string) string {
	return envTemplateRe.ReplaceAllStringFunc(s, func(match string) string {
		parts := envTemplateRe.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}
		return os.Getenv(parts[1])
	})
}

// applyDefaults fills in zero-value fields with sensible defaults.
func applyDefaults(cfg *Config) {
	if cfg.DBPath == "" {
		cfg.DBPath = filepath.Join(DataPath(), "shiftcheck.db")
	}
	if cfg.DefaultTimezone == "" {
		cfg.DefaultTimezone = "UTC"
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "127.0.0.1"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Auth.JWTSecret == "" {
		cfg.Auth.JWTSecret = os.Getenv("SHIFTCHECK_JWT_SECRET")
	}
	if cfg.Auth.Issuer == "" {
		cfg.Auth.Issuer = "shiftcheck"
	}
	if cfg.Auth.TokenTTL == 0 {
		cfg.Auth.TokenTTL = Duration(12 * time.Hour)
	}
	if cfg.Geofence.NearMultiplier < 1 {
		cfg.Geofence.NearMultiplier = 1.5
	}
	if cfg.Checkin.TTL == 0 {
		cfg.Checkin.TTL = Duration(8 * time.Hour)
	}
	if cfg.Events.BufferSize == 0 {
		cfg.Events.BufferSize = 1024
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}

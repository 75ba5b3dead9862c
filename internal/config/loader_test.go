package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadJSONC(t *testing.T) {
	path := writeFile(t, "config.jsonc", `{
	// This is a JSONC comment
	"db_path": "/var/lib/shiftcheck/data.db",
	"server": {
		"host": "0.0.0.0",
		"port": 9999,
	},
	"auth": {
		"jwt_secret": "${{ .Env.SHIFTCHECK_TEST_SECRET }}"
	},
	"checkin": {"ttl": "90m"},
	"sweep": {"schedule": "*/15 * * * *"},
}`)

	t.Setenv("SHIFTCHECK_TEST_SECRET", "s3cret")

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	if cfg.DBPath != "/var/lib/shiftcheck/data.db" {
		t.Errorf("expected db_path override, got %s", cfg.DBPath)
	}
	if cfg.Server.Addr() != "0.0.0.0:9999" {
		t.Errorf("expected addr 0.0.0.0:9999, got %s", cfg.Server.Addr())
	}
	if cfg.Auth.JWTSecret != "s3cret" {
		t.Errorf("expected expanded secret, got %q", cfg.Auth.JWTSecret)
	}
	if cfg.Checkin.TTL.Duration() != 90*time.Minute {
		t.Errorf("expected ttl 90m, got %s", cfg.Checkin.TTL.Duration())
	}
	if cfg.Sweep.Schedule != "*/15 * * * *" {
		t.Errorf("expected sweep schedule, got %q", cfg.Sweep.Schedule)
	}
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, "config.yaml", `
default_timezone: America/Chicago
geofence:
  near_multiplier: 2
checkin:
  ttl: 30m
log:
  level: debug
  format: json
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Geofence.NearMultiplier != 2 {
		t.Errorf("expected multiplier 2, got %v", cfg.Geofence.NearMultiplier)
	}
	if cfg.Checkin.TTL.Duration() != 30*time.Minute {
		t.Errorf("expected ttl 30m, got %s", cfg.Checkin.TTL.Duration())
	}
	if cfg.Location().String() != "America/Chicago" {
		t.Errorf("expected America/Chicago, got %s", cfg.Location())
	}
	if cfg.Log.Format != "json" || cfg.Log.Level != "debug" {
		t.Errorf("unexpected log config %+v", cfg.Log)
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("SHIFTCHECK_PATH", "/tmp/sc")
	t.Setenv("SHIFTCHECK_JWT_SECRET", "from-env")

	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}

	if cfg.DBPath != filepath.Join("/tmp/sc", "shiftcheck.db") {
		t.Errorf("expected default db path, got %s", cfg.DBPath)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 8080 {
		t.Errorf("expected default server 127.0.0.1:8080, got %s", cfg.Server.Addr())
	}
	if cfg.Auth.JWTSecret != "from-env" {
		t.Errorf("expected secret from env, got %q", cfg.Auth.JWTSecret)
	}
	if cfg.Geofence.NearMultiplier != 1.5 {
		t.Errorf("expected default multiplier 1.5, got %v", cfg.Geofence.NearMultiplier)
	}
	if cfg.Checkin.TTL.Duration() != 8*time.Hour {
		t.Errorf("expected default ttl 8h, got %s", cfg.Checkin.TTL.Duration())
	}
	if cfg.Events.BufferSize != 1024 {
		t.Errorf("expected default buffer 1024, got %d", cfg.Events.BufferSize)
	}
	if cfg.Sweep.Schedule != "" {
		t.Errorf("expected sweep disabled by default, got %q", cfg.Sweep.Schedule)
	}
	if cfg.Location() != time.UTC {
		t.Errorf("expected UTC, got %s", cfg.Location())
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.jsonc")); err == nil {
		t.Error("expected error for missing file")
	}
	if _, err := Load(writeFile(t, "bad.jsonc", `{"server": `)); err == nil {
		t.Error("expected error for malformed JSONC")
	}
	if _, err := Load(writeFile(t, "bad.yaml", "checkin:\n  ttl: soon\n")); err == nil {
		t.Error("expected error for malformed duration")
	}
}

func TestExpandEnvTemplates(t *testing.T) {
	t.Setenv("SC_A", "alpha")

	got := expandEnvTemplates(`x=${{ .Env.SC_A }} y=${{.Env.SC_UNSET_VAR}}`)
	if got != "x=alpha y=" {
		t.Errorf("unexpected expansion %q", got)
	}
}

func TestLoadDotenv(t *testing.T) {
	path := writeFile(t, ".env", "SC_DOTENV_KEY=from-file\nSC_DOTENV_KEEP=file\n")
	os.Unsetenv("SC_DOTENV_KEY")
	t.Cleanup(func() { os.Unsetenv("SC_DOTENV_KEY") })
	t.Setenv("SC_DOTENV_KEEP", "env")

	if err := LoadDotenv(path); err != nil {
		t.Fatal(err)
	}
	if got := os.Getenv("SC_DOTENV_KEY"); got != "from-file" {
		t.Errorf("expected from-file, got %q", got)
	}
	if got := os.Getenv("SC_DOTENV_KEEP"); got != "env" {
		t.Errorf("expected existing env to win, got %q", got)
	}

	if err := LoadDotenv(filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Errorf("expected missing file to be ignored, got %v", err)
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := LogConfig{Level: "warn", Format: "json"}.NewLogger(&buf)

	logger.Info("hidden")
	logger.Warn("shown", "task_id", "t-1")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("expected info to be filtered at warn level")
	}
	if !strings.Contains(out, `"task_id":"t-1"`) {
		t.Errorf("expected JSON attribute, got %s", out)
	}
}

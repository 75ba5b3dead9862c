package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration for shiftcheck.
type Config struct {
	DBPath          string         `json:"db_path" yaml:"db_path"`
	SnapshotPath    string         `json:"snapshot_path" yaml:"snapshot_path"` // empty disables auto snapshots
	DefaultTimezone string         `json:"default_timezone" yaml:"default_timezone"`
	Server          ServerConfig   `json:"server" yaml:"server"`
	Auth            AuthConfig     `json:"auth" yaml:"auth"`
	Geofence        GeofenceConfig `json:"geofence" yaml:"geofence"`
	Checkin         CheckinConfig  `json:"checkin" yaml:"checkin"`
	Sweep           SweepConfig    `json:"sweep" yaml:"sweep"`
	Events          EventsConfig   `json:"events" yaml:"events"`
	Log             LogConfig      `json:"log" yaml:"log"`
}

// ServerConfig holds the HTTP API settings.
type ServerConfig struct {
	Host string `json:"host" yaml:"host"`
	Port int    `json:"port" yaml:"port"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// AuthConfig configures bearer token verification.
type AuthConfig struct {
	JWTSecret string   `json:"jwt_secret" yaml:"jwt_secret"` // direct value or ${{ .Env.VAR }} template
	Issuer    string   `json:"issuer" yaml:"issuer"`
	TokenTTL  Duration `json:"token_ttl" yaml:"token_ttl"`
}

type GeofenceConfig struct {
	NearMultiplier float64 `json:"near_multiplier" yaml:"near_multiplier"`
}

type CheckinConfig struct {
	TTL Duration `json:"ttl" yaml:"ttl"`
}

// SweepConfig schedules the overdue audit sweep. An empty schedule disables it.
type SweepConfig struct {
	Schedule string `json:"schedule" yaml:"schedule"`
}

// EventsConfig holds event bus settings.
type EventsConfig struct {
	BufferSize int `json:"buffer_size" yaml:"buffer_size"`
}

type LogConfig struct {
	Level  string `json:"level" yaml:"level"`   // debug, info, warn, error
	Format string `json:"format" yaml:"format"` // text or json
}

// Location resolves DefaultTimezone, falling back to UTC.
func (c *Config) Location() *time.Location {
	if c.DefaultTimezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.DefaultTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Duration wraps time.Duration for JSON and YAML unmarshaling.
type Duration time.Duration

func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	// Remove quotes
	s := string(b)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return []byte(`"` + time.Duration(d).String() + `"`), nil
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	dur, err := time.ParseDuration(value.Value)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

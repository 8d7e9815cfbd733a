// Package config loads the pulse.yaml project file.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// FileName is the project configuration file looked up in the app
// directory.
const FileName = "pulse.yaml"

// Config is the pulse.yaml schema.
type Config struct {
	// App is the project name, used by scaffolding.
	App string `yaml:"app"`

	// OutDir receives compiled page modules.
	OutDir string `yaml:"out_dir,omitempty"`

	// EventEndpoint is the URL events are submitted to.
	EventEndpoint string `yaml:"event_endpoint,omitempty"`

	Dev     *DevConfig     `yaml:"dev,omitempty"`
	Session *SessionConfig `yaml:"session,omitempty"`
}

// DevConfig configures the development server.
type DevConfig struct {
	Host string `yaml:"host,omitempty"`
	Port int    `yaml:"port,omitempty"`
}

// SessionConfig configures session storage.
type SessionConfig struct {
	// TTL evicts idle in-memory sessions, e.g. "30m". Empty keeps
	// them forever.
	TTL string `yaml:"ttl,omitempty"`

	// DB switches to a persistent bbolt database at this path.
	DB string `yaml:"db,omitempty"`
}

// DefaultConfig returns the configuration used when pulse.yaml is
// missing.
func DefaultConfig() *Config {
	return &Config{
		App:           "app",
		OutDir:        ".pulse/pages",
		EventEndpoint: "/_event",
		Dev:           &DevConfig{Host: "localhost", Port: 8000},
	}
}

// Load reads pulse.yaml from dir, filling unset fields with defaults.
func Load(dir string) (*Config, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if cfg.OutDir == "" {
		cfg.OutDir = ".pulse/pages"
	}
	if cfg.EventEndpoint == "" {
		cfg.EventEndpoint = "/_event"
	}
	if cfg.Dev == nil {
		cfg.Dev = &DevConfig{}
	}
	if cfg.Dev.Host == "" {
		cfg.Dev.Host = "localhost"
	}
	if cfg.Dev.Port == 0 {
		cfg.Dev.Port = 8000
	}
	return cfg, nil
}

// Save writes the configuration to dir/pulse.yaml.
func (c *Config) Save(dir string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("config: encode: %w", err)
	}
	return os.WriteFile(filepath.Join(dir, FileName), data, 0o644)
}

// Addr returns the dev server listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Dev.Host, c.Dev.Port)
}

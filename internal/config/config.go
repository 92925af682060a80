// Package config loads gazed configuration from defaults, an optional YAML
// file and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/teslashibe/go-gaze/pkg/engine"
	"github.com/teslashibe/go-gaze/pkg/remote"
	"github.com/teslashibe/go-gaze/pkg/web"
	"gopkg.in/yaml.v3"
)

// ErrInvalid is wrapped by every Validate failure.
var ErrInvalid = errors.New("config: invalid")

// Log configures the global logger.
type Log struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json; empty follows GO_ENV
}

// Config is the complete gazed configuration.
type Config struct {
	Server web.Config    `yaml:"server"`
	Log    Log           `yaml:"log"`
	Engine engine.Config `yaml:"engine"`
	Remote remote.Config `yaml:"remote"`
}

// Default returns the stock configuration.
func Default() Config {
	return Config{
		Server: web.DefaultConfig(),
		Log:    Log{Level: "info"},
		Engine: engine.DefaultConfig(),
		Remote: remote.DefaultConfig(),
	}
}

// Path returns the config file named by GAZE_CONFIG, or fallback.
func Path(fallback string) string {
	if p := os.Getenv("GAZE_CONFIG"); p != "" {
		return p
	}
	return fallback
}

// Load reads path over the defaults and applies environment overrides. An
// empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: PORT %q", ErrInvalid, v)
		}
		c.Server.Port = port
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	return nil
}

// Validate checks the aggregated configuration.
func (c Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: server port %d", ErrInvalid, c.Server.Port)
	}
	if c.Server.CallTimeout <= 0 {
		return fmt.Errorf("%w: server call_timeout must be positive", ErrInvalid)
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: log level %q", ErrInvalid, c.Log.Level)
	}
	switch c.Log.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("%w: log format %q", ErrInvalid, c.Log.Format)
	}
	if c.Engine.Viewport.Width <= 0 || c.Engine.Viewport.Height <= 0 {
		return fmt.Errorf("%w: engine viewport must be positive", ErrInvalid)
	}
	if c.Remote.StartTimeout < 0 {
		return fmt.Errorf("%w: remote start_timeout is negative", ErrInvalid)
	}
	if err := c.Engine.Session.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return nil
}

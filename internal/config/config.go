// Package config loads taskboard settings from a YAML file, TASKBOARD_*
// environment variables and built-in defaults, in that order of
// precedence (environment wins).
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g.
// TASKBOARD_DATABASE_PATH for database.path.
const EnvPrefix = "TASKBOARD"

// Config is the full taskboard configuration
type Config struct {
	Database  DatabaseConfig  `yaml:"database" mapstructure:"database"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
	Subscribe SubscribeConfig `yaml:"subscribe" mapstructure:"subscribe"`
	Realtime  RealtimeConfig  `yaml:"realtime" mapstructure:"realtime"`
	Watch     WatchConfig     `yaml:"watch" mapstructure:"watch"`
	Reconnect ReconnectConfig `yaml:"reconnect" mapstructure:"reconnect"`
}

// DatabaseConfig locates the sqlite file. An empty path means the XDG
// data directory default.
type DatabaseConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// LogConfig configures the rotating log file
type LogConfig struct {
	// File is the log path; empty means taskboard.log next to the database
	File       string `yaml:"file" mapstructure:"file"`
	Level      string `yaml:"level" mapstructure:"level"`
	MaxSizeMB  int    `yaml:"max_size_mb" mapstructure:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups" mapstructure:"max_backups"`
}

// SubscribeConfig selects which collections follow a live change feed
type SubscribeConfig struct {
	Tasks    bool `yaml:"tasks" mapstructure:"tasks"`
	Projects bool `yaml:"projects" mapstructure:"projects"`
}

// RealtimeConfig configures the websocket change feed. With URL set the
// TUI takes change events from that feed server instead of the
// in-process hub.
type RealtimeConfig struct {
	URL    string `yaml:"url" mapstructure:"url"`
	Listen string `yaml:"listen" mapstructure:"listen"`
}

// WatchConfig controls detection of writes made by other processes
type WatchConfig struct {
	External bool `yaml:"external" mapstructure:"external"`
}

// ReconnectConfig is the backoff for a dropped change feed
type ReconnectConfig struct {
	Initial time.Duration `yaml:"initial" mapstructure:"initial"`
	Max     time.Duration `yaml:"max" mapstructure:"max"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
		Subscribe: SubscribeConfig{Tasks: true},
		Realtime:  RealtimeConfig{Listen: "127.0.0.1:7420"},
		Watch:     WatchConfig{External: true},
		Reconnect: ReconnectConfig{
			Initial: time.Second,
			Max:     30 * time.Second,
		},
	}
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("database.path", d.Database.Path)
	v.SetDefault("log.file", d.Log.File)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.max_size_mb", d.Log.MaxSizeMB)
	v.SetDefault("log.max_backups", d.Log.MaxBackups)
	v.SetDefault("subscribe.tasks", d.Subscribe.Tasks)
	v.SetDefault("subscribe.projects", d.Subscribe.Projects)
	v.SetDefault("realtime.url", d.Realtime.URL)
	v.SetDefault("realtime.listen", d.Realtime.Listen)
	v.SetDefault("watch.external", d.Watch.External)
	v.SetDefault("reconnect.initial", d.Reconnect.Initial)
	v.SetDefault("reconnect.max", d.Reconnect.Max)
}

// Load reads the configuration. An explicit path must exist; with an
// empty path the file at DefaultPath is used when present.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	} else if def := DefaultPath(); def != "" {
		if _, err := os.Stat(def); err == nil {
			v.SetConfigFile(def)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("failed to read config %s: %w", def, err)
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values viper cannot type-check
func (c *Config) Validate() error {
	var errs []error
	if c.Reconnect.Initial <= 0 {
		errs = append(errs, fmt.Errorf("reconnect.initial must be positive, got %s", c.Reconnect.Initial))
	}
	if c.Reconnect.Max < c.Reconnect.Initial {
		errs = append(errs, fmt.Errorf("reconnect.max (%s) is below reconnect.initial (%s)", c.Reconnect.Max, c.Reconnect.Initial))
	}
	if c.Log.MaxSizeMB < 0 || c.Log.MaxBackups < 0 {
		errs = append(errs, errors.New("log.max_size_mb and log.max_backups cannot be negative"))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// LogPath returns the log file, defaulting to the database's directory
func (c *Config) LogPath(dbPath string) string {
	if c.Log.File != "" {
		return c.Log.File
	}
	return filepath.Join(filepath.Dir(dbPath), "taskboard.log")
}

// DefaultPath returns $XDG_CONFIG_HOME/taskboard/config.yaml, falling
// back to ~/.config. Empty when no home directory is known.
func DefaultPath() string {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		configDir = filepath.Join(home, ".config")
	}
	return filepath.Join(configDir, "taskboard", "config.yaml")
}

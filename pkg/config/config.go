// Package config provides configuration management for userdb processes
package config

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/nive-cms/userdb/pkg/interfaces"
	"github.com/nive-cms/userdb/pkg/invalidation"
	"github.com/nive-cms/userdb/pkg/logger"
	"github.com/nive-cms/userdb/pkg/sessionuser"
	"github.com/nive-cms/userdb/pkg/users"
)

// EnvPrefix prefixes environment overrides, e.g. USERDB_SESSION_USER_TTL
const EnvPrefix = "USERDB"

// LogConfig represents logging configuration
type LogConfig struct {
	Level  string `yaml:"level" json:"level" mapstructure:"level" validate:"omitempty,oneof=debug info warn error"`
	Format string `yaml:"format" json:"format" mapstructure:"format" validate:"omitempty,oneof=console json"`
	File   string `yaml:"file,omitempty" json:"file,omitempty" mapstructure:"file"`
}

// MetricsConfig represents the metrics endpoint configuration
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled" json:"enabled" mapstructure:"enabled"`
	Addr      string `yaml:"addr" json:"addr" mapstructure:"addr" validate:"required_if=Enabled true"`
	Namespace string `yaml:"namespace" json:"namespace" mapstructure:"namespace"`
}

// Config is the complete process configuration
type Config struct {
	UserDB      *users.Config       `yaml:"userdb" json:"userdb" mapstructure:"userdb" validate:"required"`
	SessionUser sessionuser.Config  `yaml:"session_user" json:"session_user" mapstructure:"session_user"`
	Bus         invalidation.Config `yaml:"bus" json:"bus" mapstructure:"bus"`
	Log         LogConfig           `yaml:"log" json:"log" mapstructure:"log"`
	Metrics     MetricsConfig       `yaml:"metrics" json:"metrics" mapstructure:"metrics"`
}

// DefaultConfig returns the default process configuration
func DefaultConfig() *Config {
	return &Config{
		UserDB:      users.DefaultConfig(),
		SessionUser: sessionuser.DefaultConfig(),
		Bus:         invalidation.DefaultConfig(),
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		Metrics: MetricsConfig{
			Enabled:   false,
			Addr:      ":9090",
			Namespace: "userdb",
		},
	}
}

// Validate validates the struct tags and every section
func (c *Config) Validate() error {
	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if err := c.UserDB.Validate(); err != nil {
		return fmt.Errorf("invalid userdb configuration: %w", err)
	}
	if err := c.SessionUser.Validate(); err != nil {
		return fmt.Errorf("invalid session_user configuration: %w", err)
	}
	if err := c.Bus.Validate(); err != nil {
		return fmt.Errorf("invalid bus configuration: %w", err)
	}
	return nil
}

// Load reads the configuration file at path on top of the defaults and
// applies USERDB_ environment overrides. An empty path loads defaults and
// environment only. The file type follows the extension.
func Load(path string) (*Config, error) {
	v, err := newViper()
	if err != nil {
		return nil, err
	}

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType(strings.TrimPrefix(filepath.Ext(path), "."))
		if err := v.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newViper returns a viper instance that knows every key of DefaultConfig,
// so environment variables can override keys absent from the file
func newViper() (*viper.Viper, error) {
	defaults, err := yaml.Marshal(DefaultConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to marshal defaults: %w", err)
	}

	v := viper.New()
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(defaults)); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v, nil
}

// ToYAMLFile saves configuration to a YAML file
func (c *Config) ToYAMLFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0644)
}

// Watch reloads the file at path whenever it changes and passes the result
// to fn. Invalid files are passed as errors and the previous configuration
// stays in effect. Callbacks stop once ctx is done.
func Watch(ctx context.Context, path string, fn func(*Config, error)) error {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		if ctx.Err() != nil {
			return
		}
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		fn(Load(path))
	})
	v.WatchConfig()
	return nil
}

// NewLogger builds the configured logger
func (c LogConfig) NewLogger() (interfaces.Logger, error) {
	if c.Format == "json" || c.File != "" {
		return logger.NewJSONLogger(c.Level, c.File)
	}
	return logger.NewConsoleLogger(c.Level), nil
}

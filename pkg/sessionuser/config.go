package sessionuser

import (
	"fmt"
	"time"
)

// Default values for the session user cache
const (
	DefaultTTL           = 20 * time.Minute
	DefaultPurgeInterval = time.Minute
)

// Config configures the session user cache
type Config struct {
	// TTL is the age after which Purge removes an entry. Zero never expires.
	TTL time.Duration `yaml:"ttl" json:"ttl" mapstructure:"ttl" validate:"gte=0"`

	// PurgeInterval is the janitor period used by Module.Run
	PurgeInterval time.Duration `yaml:"purge_interval" json:"purge_interval" mapstructure:"purge_interval" validate:"gte=0"`

	// Fields lists the record attributes copied into a session view
	Fields []string `yaml:"fields,omitempty" json:"fields,omitempty" mapstructure:"fields"`
}

// DefaultConfig returns the default cache configuration
func DefaultConfig() Config {
	return Config{
		TTL:           DefaultTTL,
		PurgeInterval: DefaultPurgeInterval,
		Fields:        append([]string(nil), DefaultFields...),
	}
}

// Validate checks the configuration
func (c Config) Validate() error {
	if c.TTL < 0 {
		return fmt.Errorf("ttl must not be negative, got %s", c.TTL)
	}
	if c.PurgeInterval < 0 {
		return fmt.Errorf("purge interval must not be negative, got %s", c.PurgeInterval)
	}
	for _, f := range c.Fields {
		if f == "" {
			return fmt.Errorf("empty field name in session fields")
		}
	}
	return nil
}

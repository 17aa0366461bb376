// Package invalidation shares session cache invalidations between userdb
// processes that use the same user database.
package invalidation

import (
	"fmt"
	"time"
)

// Driver names
const (
	DriverNone   = "none"
	DriverMemory = "memory"
	DriverRedis  = "redis"
	DriverNATS   = "nats"
)

// Default channel and subject names
const (
	DefaultRedisChannel = "userdb:sessionuser:invalidate"
	DefaultNATSSubject  = "userdb.sessionuser.invalidate"
)

// Config selects and configures the invalidation transport
type Config struct {
	Driver string `yaml:"driver" json:"driver" mapstructure:"driver" validate:"omitempty,oneof=none memory redis nats"`

	RedisAddr     string `yaml:"redis_addr,omitempty" json:"redis_addr,omitempty" mapstructure:"redis_addr"`
	RedisPassword string `yaml:"redis_password" json:"redis_password,omitempty" mapstructure:"redis_password"`
	RedisDB       int    `yaml:"redis_db" json:"redis_db,omitempty" mapstructure:"redis_db" validate:"gte=0"`
	RedisPoolSize int    `yaml:"redis_pool_size,omitempty" json:"redis_pool_size,omitempty" mapstructure:"redis_pool_size" validate:"gte=0"`
	Channel       string `yaml:"channel,omitempty" json:"channel,omitempty" mapstructure:"channel"`

	NATSURL       string        `yaml:"nats_url,omitempty" json:"nats_url,omitempty" mapstructure:"nats_url"`
	Subject       string        `yaml:"subject,omitempty" json:"subject,omitempty" mapstructure:"subject"`
	MaxReconnect  int           `yaml:"max_reconnect,omitempty" json:"max_reconnect,omitempty" mapstructure:"max_reconnect"`
	ReconnectWait time.Duration `yaml:"reconnect_wait,omitempty" json:"reconnect_wait,omitempty" mapstructure:"reconnect_wait"`

	ConnectTimeout   time.Duration `yaml:"connect_timeout,omitempty" json:"connect_timeout,omitempty" mapstructure:"connect_timeout"`
	PublishAttempts  uint          `yaml:"publish_attempts,omitempty" json:"publish_attempts,omitempty" mapstructure:"publish_attempts"`
	PublishRetryWait time.Duration `yaml:"publish_retry_wait,omitempty" json:"publish_retry_wait,omitempty" mapstructure:"publish_retry_wait"`
}

// DefaultConfig returns a configuration with invalidation sharing disabled
func DefaultConfig() Config {
	return Config{
		Driver:           DriverNone,
		RedisAddr:        "localhost:6379",
		RedisPoolSize:    10,
		Channel:          DefaultRedisChannel,
		NATSURL:          "nats://localhost:4222",
		Subject:          DefaultNATSSubject,
		MaxReconnect:     -1,
		ReconnectWait:    2 * time.Second,
		ConnectTimeout:   5 * time.Second,
		PublishAttempts:  3,
		PublishRetryWait: 100 * time.Millisecond,
	}
}

// Validate checks the fields the selected driver needs
func (c Config) Validate() error {
	switch c.Driver {
	case "", DriverNone, DriverMemory:
		return nil
	case DriverRedis:
		if c.RedisAddr == "" {
			return fmt.Errorf("redis_addr is required for the redis driver")
		}
	case DriverNATS:
		if c.NATSURL == "" {
			return fmt.Errorf("nats_url is required for the nats driver")
		}
	default:
		return fmt.Errorf("unknown invalidation driver: %s", c.Driver)
	}
	return nil
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Channel == "" {
		c.Channel = d.Channel
	}
	if c.Subject == "" {
		c.Subject = d.Subject
	}
	if c.RedisPoolSize == 0 {
		c.RedisPoolSize = d.RedisPoolSize
	}
	if c.ReconnectWait == 0 {
		c.ReconnectWait = d.ReconnectWait
	}
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = d.ConnectTimeout
	}
	if c.PublishAttempts == 0 {
		c.PublishAttempts = d.PublishAttempts
	}
	if c.PublishRetryWait == 0 {
		c.PublishRetryWait = d.PublishRetryWait
	}
	return c
}

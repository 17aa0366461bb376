// Package interfaces defines the core interfaces for userdb components
package interfaces

import (
	"context"
	"time"
)

// AuthenticatedUser is what identity resolution hands to request code.
// It is either a cached session view, a stored user record or the
// configuration admin.
type AuthenticatedUser interface {
	// Identity returns the stable string used for sessions and cache keys
	Identity() string

	// ID returns the store's primary identifier
	ID() string

	// Groups returns the global group memberships
	Groups() []string

	// InGroups reports whether the user belongs to any of the groups
	InGroups(groups ...string) bool

	// DisplayName returns a human readable name
	DisplayName() string

	String() string
}

// UserRecord is a persisted user as seen by the session cache
type UserRecord interface {
	// Identity returns the stable identity string
	Identity() string

	// InternalID returns the store's primary identifier
	InternalID() string

	// DataField returns a data attribute such as name, email or groups
	DataField(name string) (interface{}, bool)

	// MetaField returns a record metadata attribute such as id, title or pool_state
	MetaField(name string) (interface{}, bool)
}

// InvalidationBus broadcasts cache invalidations between processes
type InvalidationBus interface {
	// Publish announces that the cached view for identity is stale
	Publish(ctx context.Context, identity string) error

	// Subscribe calls fn for every identity published by another process.
	// It returns once the subscription is established.
	Subscribe(ctx context.Context, fn func(identity string)) error

	// Close releases the connection
	Close() error
}

// Logger defines the interface for logging implementations
type Logger interface {
	// Debug logs debug level messages
	Debug(msg string, fields ...map[string]interface{})

	// Info logs info level messages
	Info(msg string, fields ...map[string]interface{})

	// Warn logs warning level messages
	Warn(msg string, fields ...map[string]interface{})

	// Error logs error level messages
	Error(msg string, err error, fields ...map[string]interface{})

	// Fatal logs fatal level messages and exits
	Fatal(msg string, err error, fields ...map[string]interface{})

	// WithFields returns a logger with additional fields
	WithFields(fields map[string]interface{}) Logger
}

// Metrics defines the interface for metrics collection
type Metrics interface {
	// Counter increments a counter metric
	Counter(name string, value float64, labels map[string]string)

	// Gauge sets a gauge metric
	Gauge(name string, value float64, labels map[string]string)

	// Histogram records a histogram metric
	Histogram(name string, value float64, labels map[string]string)

	// Timer records timing metrics
	Timer(name string, duration float64, labels map[string]string)
}

// Mailer hands a rendered message to the mail transport
type Mailer interface {
	Send(ctx context.Context, msg MailMessage) error
}

// MailMessage is a transport-neutral mail
type MailMessage struct {
	Template  string                 `json:"template"`
	Subject   string                 `json:"subject"`
	To        []string               `json:"to"`
	Variables map[string]interface{} `json:"variables,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
}

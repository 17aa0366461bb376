// Package types defines the shared enums used across userdb packages
package types

// Error types for better error handling
type ErrorType string

const (
	ErrorTypeValidation   ErrorType = "validation"
	ErrorTypeNotFound     ErrorType = "not_found"
	ErrorTypeUnauthorized ErrorType = "unauthorized"
	ErrorTypeInternal     ErrorType = "internal"
	ErrorTypeExternal     ErrorType = "external"
)

// UserState is the activation state of a stored user record
type UserState int

const (
	UserStateInactive UserState = 0 // Signed up, waiting for activation
	UserStateActive   UserState = 1 // Allowed to log in
)

// IsActive reports whether the state allows a login
func (s UserState) IsActive() bool {
	return s == UserStateActive
}

// String returns the string representation of UserState
func (s UserState) String() string {
	switch s {
	case UserStateActive:
		return "active"
	case UserStateInactive:
		return "inactive"
	default:
		return "unknown"
	}
}

// InvalidateReason tells a cache listener why a record's cached view is stale
type InvalidateReason string

const (
	InvalidateCommit InvalidateReason = "commit"
	InvalidateLogout InvalidateReason = "logout"
	InvalidateDelete InvalidateReason = "delete"
	InvalidateRemote InvalidateReason = "remote"
)

// Context keys for request context
type ContextKey string

const (
	ContextKeyRequestCache ContextKey = "userdb_request_cache"
)

// Package errors provides structured error handling for userdb
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/nive-cms/userdb/pkg/types"
)

// ErrorCode represents specific error codes
type ErrorCode string

const (
	// Validation errors
	ErrCodeValidation   ErrorCode = "VALIDATION_ERROR"
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
	ErrCodeMissingField ErrorCode = "MISSING_FIELD"
	ErrCodeReservedName ErrorCode = "RESERVED_NAME"
	ErrCodeWeakPassword ErrorCode = "WEAK_PASSWORD"

	// Authentication/Authorization errors
	ErrCodeUnauthorized ErrorCode = "UNAUTHORIZED"
	ErrCodeForbidden    ErrorCode = "FORBIDDEN"
	ErrCodeInvalidToken ErrorCode = "INVALID_TOKEN"
	ErrCodeInactive     ErrorCode = "USER_INACTIVE"

	// Resource errors
	ErrCodeNotFound      ErrorCode = "NOT_FOUND"
	ErrCodeAlreadyExists ErrorCode = "ALREADY_EXISTS"
	ErrCodeAmbiguous     ErrorCode = "AMBIGUOUS"

	// System errors
	ErrCodeInternal    ErrorCode = "INTERNAL_ERROR"
	ErrCodeUnavailable ErrorCode = "SERVICE_UNAVAILABLE"

	// Database errors
	ErrCodeDatabaseError ErrorCode = "DATABASE_ERROR"

	// Configuration errors
	ErrCodeConfigInvalid ErrorCode = "CONFIG_INVALID"
)

// UserDBError represents a structured error in userdb
type UserDBError struct {
	Type    types.ErrorType        `json:"type"`
	Code    ErrorCode              `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
	Cause   error                  `json:"-"`
}

// Error implements the error interface
func (e *UserDBError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %s (caused by: %v)", e.Code, e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Type, e.Message)
}

// Unwrap returns the underlying error
func (e *UserDBError) Unwrap() error {
	return e.Cause
}

// WithDetail adds a detail to the error
func (e *UserDBError) WithDetail(key string, value interface{}) *UserDBError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// NewUserDBError creates a new error
func NewUserDBError(errType types.ErrorType, code ErrorCode, message string) *UserDBError {
	return &UserDBError{
		Type:    errType,
		Code:    code,
		Message: message,
	}
}

// NewUserDBErrorWithCause creates a new error with a cause
func NewUserDBErrorWithCause(errType types.ErrorType, code ErrorCode, message string, cause error) *UserDBError {
	return &UserDBError{
		Type:    errType,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// Validation error constructors
func NewValidationError(message string) *UserDBError {
	return NewUserDBError(types.ErrorTypeValidation, ErrCodeValidation, message)
}

func NewInvalidInputError(message string) *UserDBError {
	return NewUserDBError(types.ErrorTypeValidation, ErrCodeInvalidInput, message)
}

func NewMissingFieldError(field string) *UserDBError {
	return NewUserDBError(types.ErrorTypeValidation, ErrCodeMissingField,
		fmt.Sprintf("missing required field: %s", field)).WithDetail("field", field)
}

func NewReservedNameError(name string) *UserDBError {
	return NewUserDBError(types.ErrorTypeValidation, ErrCodeReservedName,
		fmt.Sprintf("name '%s' is reserved or already in use", name)).WithDetail("name", name)
}

func NewWeakPasswordError(message string) *UserDBError {
	return NewUserDBError(types.ErrorTypeValidation, ErrCodeWeakPassword, message)
}

// Authentication/Authorization error constructors
func NewUnauthorizedError(message string) *UserDBError {
	return NewUserDBError(types.ErrorTypeUnauthorized, ErrCodeUnauthorized, message)
}

func NewForbiddenError(message string) *UserDBError {
	return NewUserDBError(types.ErrorTypeUnauthorized, ErrCodeForbidden, message)
}

func NewInvalidTokenError() *UserDBError {
	return NewUserDBError(types.ErrorTypeUnauthorized, ErrCodeInvalidToken, "invalid token")
}

func NewInactiveUserError(identity string) *UserDBError {
	return NewUserDBError(types.ErrorTypeUnauthorized, ErrCodeInactive,
		"user account is not active").WithDetail("identity", identity)
}

// Resource error constructors
func NewNotFoundError(resource string) *UserDBError {
	return NewUserDBError(types.ErrorTypeNotFound, ErrCodeNotFound,
		fmt.Sprintf("%s not found", resource)).WithDetail("resource", resource)
}

func NewAlreadyExistsError(resource string) *UserDBError {
	return NewUserDBError(types.ErrorTypeValidation, ErrCodeAlreadyExists,
		fmt.Sprintf("%s already exists", resource)).WithDetail("resource", resource)
}

func NewAmbiguousError(resource string) *UserDBError {
	return NewUserDBError(types.ErrorTypeValidation, ErrCodeAmbiguous,
		fmt.Sprintf("%s is not unique", resource)).WithDetail("resource", resource)
}

// System error constructors
func NewInternalErrorWithCause(message string, cause error) *UserDBError {
	return NewUserDBErrorWithCause(types.ErrorTypeInternal, ErrCodeInternal, message, cause)
}

func NewServiceUnavailableError(service string) *UserDBError {
	return NewUserDBError(types.ErrorTypeExternal, ErrCodeUnavailable,
		fmt.Sprintf("%s service is unavailable", service)).WithDetail("service", service)
}

func NewDatabaseErrorWithCause(message string, cause error) *UserDBError {
	return NewUserDBErrorWithCause(types.ErrorTypeInternal, ErrCodeDatabaseError, message, cause)
}

func NewConfigInvalidError(message string) *UserDBError {
	return NewUserDBError(types.ErrorTypeValidation, ErrCodeConfigInvalid, message)
}

// AsUserDBError extracts a UserDBError from an error chain
func AsUserDBError(err error) *UserDBError {
	var target *UserDBError
	if stderrors.As(err, &target) {
		return target
	}
	return nil
}

// IsType reports whether any UserDBError in the chain has the given type
func IsType(err error, errType types.ErrorType) bool {
	e := AsUserDBError(err)
	return e != nil && e.Type == errType
}

// IsCode reports whether any UserDBError in the chain has the given code
func IsCode(err error, code ErrorCode) bool {
	e := AsUserDBError(err)
	return e != nil && e.Code == code
}

func IsNotFound(err error) bool     { return IsType(err, types.ErrorTypeNotFound) }
func IsUnauthorized(err error) bool { return IsType(err, types.ErrorTypeUnauthorized) }
func IsValidation(err error) bool   { return IsType(err, types.ErrorTypeValidation) }

// ErrorList represents a list of errors
type ErrorList struct {
	Errors []*UserDBError `json:"errors"`
}

// Error implements the error interface
func (el *ErrorList) Error() string {
	var messages []string
	for _, err := range el.Errors {
		messages = append(messages, err.Error())
	}
	return strings.Join(messages, "; ")
}

// Add adds an error to the list
func (el *ErrorList) Add(err *UserDBError) {
	if err != nil {
		el.Errors = append(el.Errors, err)
	}
}

// HasErrors returns true if there are errors
func (el *ErrorList) HasErrors() bool {
	return len(el.Errors) > 0
}

// ToError returns the ErrorList as an error if it has errors, otherwise nil
func (el *ErrorList) ToError() error {
	if el.HasErrors() {
		return el
	}
	return nil
}

// NewErrorList creates a new error list
func NewErrorList() *ErrorList {
	return &ErrorList{
		Errors: make([]*UserDBError, 0),
	}
}

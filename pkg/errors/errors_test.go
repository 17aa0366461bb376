package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nive-cms/userdb/pkg/types"
)

func TestUserDBError(t *testing.T) {
	t.Run("NewUserDBError", func(t *testing.T) {
		err := NewUserDBError(types.ErrorTypeValidation, ErrCodeValidation, "test error")

		assert.Equal(t, types.ErrorTypeValidation, err.Type)
		assert.Equal(t, ErrCodeValidation, err.Code)
		assert.Equal(t, "test error", err.Message)
		assert.Nil(t, err.Cause)
		assert.Empty(t, err.Details)
	})

	t.Run("Error", func(t *testing.T) {
		err := NewUserDBError(types.ErrorTypeValidation, ErrCodeValidation, "test error")
		assert.Equal(t, "[VALIDATION_ERROR] validation: test error", err.Error())

		cause := errors.New("underlying error")
		errWithCause := NewUserDBErrorWithCause(types.ErrorTypeInternal, ErrCodeInternal, "wrapped error", cause)
		assert.Equal(t, "[INTERNAL_ERROR] internal: wrapped error (caused by: underlying error)", errWithCause.Error())
	})

	t.Run("Unwrap", func(t *testing.T) {
		cause := errors.New("underlying error")
		err := NewDatabaseErrorWithCause("save failed", cause)
		assert.Equal(t, cause, err.Unwrap())
		assert.True(t, errors.Is(err, cause))
	})

	t.Run("WithDetail", func(t *testing.T) {
		err := NewMissingFieldError("email")
		assert.Equal(t, "email", err.Details["field"])
	})
}

func TestPredicates(t *testing.T) {
	wrapped := fmt.Errorf("login: %w", NewUnauthorizedError("login failed"))

	assert.True(t, IsUnauthorized(wrapped))
	assert.False(t, IsNotFound(wrapped))
	assert.True(t, IsCode(wrapped, ErrCodeUnauthorized))

	assert.True(t, IsNotFound(NewNotFoundError("user")))
	assert.True(t, IsValidation(NewReservedNameError("group:admin")))
	assert.False(t, IsValidation(errors.New("plain")))

	e := AsUserDBError(wrapped)
	require.NotNil(t, e)
	assert.Equal(t, "login failed", e.Message)
}

func TestErrorList(t *testing.T) {
	el := NewErrorList()
	assert.False(t, el.HasErrors())
	assert.Nil(t, el.ToError())

	el.Add(NewMissingFieldError("name"))
	el.Add(nil)
	el.Add(NewWeakPasswordError("too short"))

	require.True(t, el.HasErrors())
	assert.Len(t, el.Errors, 2)
	assert.Contains(t, el.ToError().Error(), "missing required field: name")
	assert.Contains(t, el.Error(), "too short")
}

package users

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"

	"github.com/nive-cms/userdb/pkg/errors"
	"github.com/nive-cms/userdb/pkg/types"
)

// Username length limits
const (
	UsernameMinLength = 5
	UsernameMaxLength = 40
)

// AddUserParams carries signup data. Groups and activation state are not
// taken from client data; see AddUserOptions.
type AddUserParams struct {
	Name         string `json:"name" validate:"omitempty,username"`
	Email        string `json:"email" validate:"required,email,max=255"`
	Password     string `json:"password"`
	Surname      string `json:"surname" validate:"max=100"`
	Lastname     string `json:"lastname" validate:"max=100"`
	Organisation string `json:"organisation" validate:"max=255"`
	Notify       *bool  `json:"notify,omitempty"`
}

// UpdateUserParams carries self service profile changes. Name, email,
// groups, state and token are read-only here.
type UpdateUserParams struct {
	Surname      *string `json:"surname,omitempty" validate:"omitempty,max=100"`
	Lastname     *string `json:"lastname,omitempty" validate:"omitempty,max=100"`
	Organisation *string `json:"organisation,omitempty" validate:"omitempty,max=255"`
	Notify       *bool   `json:"notify,omitempty"`
	Password     *string `json:"password,omitempty"`
}

// IsReservedUserName reports whether name cannot be used for an account:
// empty names and group ids
func IsReservedUserName(name string) bool {
	name = strings.TrimSpace(name)
	if name == "" {
		return true
	}
	return strings.HasPrefix(strings.ToLower(name), "group:")
}

// newValidator returns a validator with the username rule registered
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("username", validateUsername)
	return v
}

func validateUsername(fl validator.FieldLevel) bool {
	return checkUsername(fl.Field().String()) == nil
}

func checkUsername(name string) error {
	length := len([]rune(name))
	if length < UsernameMinLength || length > UsernameMaxLength {
		return errors.NewValidationError(fmt.Sprintf("username must be between %d and %d characters", UsernameMinLength, UsernameMaxLength))
	}
	for _, r := range name {
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			return errors.NewValidationError("username must not contain whitespace")
		}
	}
	if IsReservedUserName(name) {
		return errors.NewReservedNameError(name)
	}
	return nil
}

// validationErrors converts validator errors into a UserDBError
func validationErrors(err error) error {
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return errors.NewValidationError(err.Error())
	}
	list := errors.NewErrorList()
	for _, fe := range verrs {
		field := strings.ToLower(fe.Field())
		switch fe.Tag() {
		case "required":
			list.Add(errors.NewMissingFieldError(field))
		case "username":
			if cerr := checkUsername(fe.Value().(string)); cerr != nil {
				list.Add(errors.AsUserDBError(cerr))
			}
		case "email":
			list.Add(errors.NewInvalidInputError(fmt.Sprintf("%s is not a valid email address", field)))
		default:
			list.Add(errors.NewInvalidInputError(fmt.Sprintf("%s failed %s validation", field, fe.Tag())))
		}
	}
	if len(list.Errors) == 1 {
		return list.Errors[0]
	}
	return errors.NewUserDBErrorWithCause(types.ErrorTypeValidation, errors.ErrCodeValidation, "invalid user data", list.ToError())
}

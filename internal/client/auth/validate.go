package auth

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
)

// LoginInput and RegisterInput carry the same rules the server enforces, so
// obviously bad input is rejected without a round trip.
type LoginInput struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required"`
}

type RegisterInput struct {
	Name     string `validate:"required,min=3"`
	Email    string `validate:"required,email"`
	Password string `validate:"required,min=8"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// ValidateLogin trims the email and checks both fields. The first failing
// field is reported as a *ValidationError.
func ValidateLogin(in *LoginInput) error {
	in.Email = strings.TrimSpace(in.Email)
	return validationError(validate.Struct(in))
}

func ValidateRegister(in *RegisterInput) error {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.TrimSpace(in.Email)
	return validationError(validate.Struct(in))
}

func validationError(err error) error {
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return err
	}

	fe := fieldErrs[0]
	field := strings.ToLower(fe.Field())
	switch field + "/" + fe.Tag() {
	case "email/required":
		return &ValidationError{Field: field, Err: ErrEmailRequired}
	case "email/email":
		return &ValidationError{Field: field, Err: ErrInvalidEmail}
	case "password/required":
		return &ValidationError{Field: field, Err: ErrPasswordRequired}
	case "password/min":
		return &ValidationError{Field: field, Err: ErrPasswordTooShort}
	case "name/required":
		return &ValidationError{Field: field, Err: ErrNameRequired}
	case "name/min":
		return &ValidationError{Field: field, Err: ErrNameTooShort}
	}
	return &ValidationError{Field: field, Err: fe}
}

package app

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/gildora/gildora/internal/apperror"
)

// requestValidator adapts go-playground/validator to Echo's Validator
// interface. Handlers call c.Validate(&req) after binding; validation
// failures come back as 400 AppErrors with a message the client can show.
type requestValidator struct {
	validate *validator.Validate
}

func newValidator() *requestValidator {
	return &requestValidator{validate: validator.New()}
}

// Validate checks the struct's `validate` tags and translates the first
// failure into a user-facing message. Field names come from the struct,
// lowercased, which matches the JSON field names in the request DTOs.
func (v *requestValidator) Validate(i any) error {
	err := v.validate.Struct(i)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		// Non-struct input or an invalid validation setup.
		return apperror.NewInternal(fmt.Errorf("request validation: %w", err))
	}

	return apperror.NewValidation(fieldMessage(fieldErrs[0]))
}

// fieldMessage builds a human-readable message for a single failed field.
func fieldMessage(fe validator.FieldError) string {
	field := strings.ToLower(fe.Field())

	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "email":
		return fmt.Sprintf("%s must be a valid email address", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}

package handler

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

// capabilityPattern is the shape of a capability tag, e.g. "business.read".
var capabilityPattern = regexp.MustCompile(`^[a-z][a-z0-9._-]*$`)

// ValidationError describes one failed field.
type ValidationError struct {
	FailedField string `json:"field"`
	Tag         string `json:"tag"`
	Value       any    `json:"-"`
}

// Validator wraps a shared validator instance.
type Validator struct {
	validate *validator.Validate
}

// NewValidator creates a Validator. Besides the built in tags it knows "capability",
// which accepts a well formed capability tag.
func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())

	_ = v.RegisterValidation("capability", func(fl validator.FieldLevel) bool {
		return capabilityPattern.MatchString(fl.Field().String())
	})

	return &Validator{validate: v}
}

// Validate checks data and returns the failed fields, or nil.
func (v *Validator) Validate(data any) []ValidationError {
	var out []ValidationError

	err := v.validate.Struct(data)
	if err == nil {
		return nil
	}

	errs, ok := err.(validator.ValidationErrors) //nolint:errorlint // validator returns the concrete type
	if !ok {
		return []ValidationError{{FailedField: "request", Tag: "invalid"}}
	}

	for _, fe := range errs {
		out = append(out, ValidationError{
			FailedField: fe.Field(),
			Tag:         fe.Tag(),
			Value:       fe.Value(),
		})
	}

	return out
}

// Message renders failed fields for the response message.
func Message(errs []ValidationError) string {
	parts := make([]string, 0, len(errs))
	for _, e := range errs {
		parts = append(parts, fmt.Sprintf("%s failed on '%s'", e.FailedField, e.Tag))
	}

	return "Validation failed: " + strings.Join(parts, ", ")
}

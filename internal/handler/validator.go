package handler

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
)

// RequestValidator plugs go-playground/validator into echo's c.Validate.
// Only the first violation is reported; clients fix one thing at a time
// anyway.
type RequestValidator struct {
	validate *validator.Validate
}

func NewRequestValidator() *RequestValidator {
	return &RequestValidator{validate: validator.New(validator.WithRequiredStructEnabled())}
}

func (v *RequestValidator) Validate(i interface{}) error {
	err := v.validate.Struct(i)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}
	return errors.New(fieldMessage(verrs[0]))
}

func fieldMessage(ve validator.FieldError) string {
	field := snakeCase(ve.Field())
	switch ve.Tag() {
	case "required":
		return field + " is required"
	case "min", "gte":
		return field + " is too small"
	case "max", "lte":
		return field + " is too large"
	case "email":
		return field + " must be a valid email address"
	case "oneof":
		return field + " must be one of " + ve.Param()
	default:
		return field + " is invalid"
	}
}

// snakeCase maps the Go field name to its JSON spelling so error messages
// match what the client actually sent.  Acronym runs like "ID" stay glued
// together: EventID becomes event_id, not event_i_d.
func snakeCase(s string) string {
	rs := []rune(s)
	var b strings.Builder
	for i, r := range rs {
		if r < 'A' || r > 'Z' {
			b.WriteRune(r)
			continue
		}
		prevLower := i > 0 && rs[i-1] >= 'a' && rs[i-1] <= 'z'
		prevUpper := i > 0 && rs[i-1] >= 'A' && rs[i-1] <= 'Z'
		nextLower := i+1 < len(rs) && rs[i+1] >= 'a' && rs[i+1] <= 'z'
		if prevLower || (prevUpper && nextLower) {
			b.WriteByte('_')
		}
		b.WriteRune(r + ('a' - 'A'))
	}
	return b.String()
}

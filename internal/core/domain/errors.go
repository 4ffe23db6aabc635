package domain

import (
	"errors"
	"fmt"
)

var (
	ErrValidation             = errors.New("validation failed")
	ErrRutInvalid             = errors.New("invalid rut")
	ErrEmailAlreadyRegistered = errors.New("email already registered")
	ErrRutAlreadyRegistered   = errors.New("rut already registered")
	ErrItemAlreadyReserved    = errors.New("item already reserved")
	ErrUserNotFound           = errors.New("user not found")
	ErrItemNotFound           = errors.New("item not found")
	ErrNotYetAvailable        = errors.New("item not yet available for sale")
	ErrNotPreorderable        = errors.New("item is not on pre-sale")
	ErrInsufficientStock      = errors.New("insufficient stock")
)

type Rule string

const (
	RuleRequired    Rule = "required"
	RuleNonNegative Rule = "non_negative"
	RuleEmailFormat Rule = "email_format"
	RulePhoneFormat Rule = "phone_format"
	RuleSingleLine  Rule = "single_line"
)

// ValidationError names the field and the rule it broke. It matches ErrValidation.
type ValidationError struct {
	Field string
	Rule  Rule
}

func NewValidationError(field string, rule Rule) *ValidationError {
	return &ValidationError{Field: field, Rule: rule}
}

func (e *ValidationError) Error() string {
	switch e.Rule {
	case RuleRequired:
		return fmt.Sprintf("field %q must not be empty", e.Field)
	case RuleNonNegative:
		return fmt.Sprintf("field %q must not be negative", e.Field)
	case RuleEmailFormat:
		return fmt.Sprintf("field %q is not a valid email", e.Field)
	case RulePhoneFormat:
		return fmt.Sprintf("field %q must have exactly 8 digits", e.Field)
	case RuleSingleLine:
		return fmt.Sprintf("field %q must not contain '|' or line breaks", e.Field)
	}
	return fmt.Sprintf("field %q is invalid", e.Field)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

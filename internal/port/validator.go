package port

import "github.com/shopspring/decimal"

// Validator checks field syntax. Every method returns nil or a named failure.
type Validator interface {
	Rut(rut string) error
	Email(email string) error
	Phone(phone string) error
	NotEmpty(field, value string) error
	// SingleLine rejects the record separator and line breaks used by the flat-file logs
	SingleLine(field, value string) error
	NonNegative(field string, value int) error
	NonNegativeAmount(field string, value decimal.Decimal) error
}

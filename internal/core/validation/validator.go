// Package validation holds the stateless field checks used before any mutation.
package validation

import (
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/rl1809/comic-store/internal/core/domain"
)

var (
	// 1.234.567-8 or 12.345.678-k
	rutPattern        = regexp.MustCompile(`^\d{1,2}\.\d{3}\.\d{3}-[\dkK]$`)
	emailPattern      = regexp.MustCompile(`^[\w.-]+@[\w.-]+\.\w{2,}$`)
	phonePattern      = regexp.MustCompile(`^\d{8}$`)
	singleLinePattern = regexp.MustCompile(`^[^|\r\n]*$`)
)

const (
	tagRut        = "rut"
	tagEmail      = "contact_email"
	tagPhone      = "phone"
	tagSingleLine = "single_line"
)

type Validator struct {
	validate *validator.Validate
}

func New() *Validator {
	v := validator.New()
	mustRegisterPattern(v, tagRut, rutPattern)
	mustRegisterPattern(v, tagEmail, emailPattern)
	mustRegisterPattern(v, tagPhone, phonePattern)
	mustRegisterPattern(v, tagSingleLine, singleLinePattern)
	return &Validator{validate: v}
}

func mustRegisterPattern(v *validator.Validate, tag string, pattern *regexp.Regexp) {
	err := v.RegisterValidation(tag, func(fl validator.FieldLevel) bool {
		return pattern.MatchString(fl.Field().String())
	})
	if err != nil {
		panic(err)
	}
}

func (v *Validator) Rut(rut string) error {
	if v.validate.Var(rut, "required,"+tagRut) != nil {
		return domain.ErrRutInvalid
	}
	return nil
}

func (v *Validator) Email(email string) error {
	if v.validate.Var(email, "required,"+tagEmail) != nil {
		return domain.NewValidationError("email", domain.RuleEmailFormat)
	}
	return nil
}

func (v *Validator) Phone(phone string) error {
	if v.validate.Var(phone, "required,"+tagPhone) != nil {
		return domain.NewValidationError("phone", domain.RulePhoneFormat)
	}
	return nil
}

func (v *Validator) NotEmpty(field, value string) error {
	if v.validate.Var(strings.TrimSpace(value), "required") != nil {
		return domain.NewValidationError(field, domain.RuleRequired)
	}
	return nil
}

func (v *Validator) SingleLine(field, value string) error {
	if v.validate.Var(value, tagSingleLine) != nil {
		return domain.NewValidationError(field, domain.RuleSingleLine)
	}
	return nil
}

func (v *Validator) NonNegative(field string, value int) error {
	if v.validate.Var(value, "gte=0") != nil {
		return domain.NewValidationError(field, domain.RuleNonNegative)
	}
	return nil
}

func (v *Validator) NonNegativeAmount(field string, value decimal.Decimal) error {
	if value.IsNegative() {
		return domain.NewValidationError(field, domain.RuleNonNegative)
	}
	return nil
}

var (
	upper = cases.Upper(language.Und)
	lower = cases.Lower(language.Und)
)

// FormatName lower-cases the name, capitalizes the first letter of every
// whitespace-separated word and joins the words with single spaces.
func FormatName(name string) string {
	words := strings.Fields(lower.String(name))
	for i, w := range words {
		r := []rune(w)
		words[i] = upper.String(string(r[0])) + string(r[1:])
	}
	return strings.Join(words, " ")
}

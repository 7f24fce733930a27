// Package customervalidator turns untrusted customer input into validated create and update params.
package customervalidator

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/go-petr/customer-ledger/internal/domain"
)

var (
	// ErrMissingField indicates an absent, null or blank required field.
	ErrMissingField = errors.New("missing field")
	// ErrInvalidField indicates a present field with an unacceptable value.
	ErrInvalidField = errors.New("invalid field")
)

// Column limits of the customer tables.
const (
	minNameLen     = 3
	maxNameLen     = 200
	maxEmailLen    = 150
	maxCategoryLen = 50
	moneyPlaces    = 2
	moneyDigits    = 15
)

// maxAmount is the smallest magnitude that no longer fits NUMERIC(15,2).
var maxAmount = decimal.New(1, moneyDigits-moneyPlaces)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[A-Za-z]{2,}$`)

var nonDigits = regexp.MustCompile(`\D`)

// FieldError describes the problem with a single input field.
type FieldError struct {
	Field  string
	Reason string
	Err    error
}

func (e *FieldError) Error() string {
	return e.Field + ": " + e.Reason
}

func (e *FieldError) Unwrap() error {
	return e.Err
}

// ValidationErrors is the list of field errors of one input.
type ValidationErrors []*FieldError

func (ve ValidationErrors) Error() string {
	msgs := make([]string, len(ve))
	for i, fe := range ve {
		msgs[i] = fe.Error()
	}

	return strings.Join(msgs, "; ")
}

func (ve ValidationErrors) Unwrap() []error {
	errs := make([]error, len(ve))
	for i, fe := range ve {
		errs[i] = fe
	}

	return errs
}

func missing(field, reason string) *FieldError {
	return &FieldError{Field: field, Reason: reason, Err: ErrMissingField}
}

func invalid(field, reason string) *FieldError {
	return &FieldError{Field: field, Reason: reason, Err: ErrInvalidField}
}

// ValidEmail validates the email against the accepted local-part@domain.tld pattern.
var ValidEmail validator.Func = func(fl validator.FieldLevel) bool {
	if s, ok := fl.Field().Interface().(string); ok {
		return emailPattern.MatchString(s)
	}
	return false
}

// ValidPhone validates that the phone is a normalized 10 or 11 digits string.
var ValidPhone validator.Func = func(fl validator.FieldLevel) bool {
	s, ok := fl.Field().Interface().(string)
	if !ok {
		return false
	}

	return (len(s) == 10 || len(s) == 11) && !nonDigits.MatchString(s)
}

// NormalizePhone strips every non digit character from the phone.
func NormalizePhone(phone string) string {
	return nonDigits.ReplaceAllString(phone, "")
}

// Validator validates input of one customer kind.
type Validator struct {
	kind     domain.Kind
	validate *validator.Validate
}

// New returns a validator for the given kind.
func New(kind domain.Kind) *Validator {
	v := validator.New()

	// Both registrations only fail on an empty tag or a nil func.
	_ = v.RegisterValidation("email_pattern", ValidEmail)
	_ = v.RegisterValidation("phone_digits", ValidPhone)

	return &Validator{kind: kind, validate: v}
}

// Create validates the raw creation input.
//
// Presence of every required field is checked first; when all fields are
// present their values are checked. All problems found in a stage are reported
// together.
func (v *Validator) Create(raw map[string]any) (domain.CreateCustomerParams, error) {
	var (
		p    domain.CreateCustomerParams
		errs ValidationErrors
	)

	for _, f := range domain.RequiredFields {
		key := v.kind.Key(f)

		val, ok := raw[key]
		switch {
		case !ok:
			errs = append(errs, missing(key, "field is required"))
		case val == nil:
			errs = append(errs, missing(key, "must not be null"))
		case isBlank(val):
			errs = append(errs, missing(key, "must not be empty"))
		}
	}

	if len(errs) > 0 {
		return p, errs
	}

	var fe *FieldError

	if p.Age, fe = v.age(raw[v.kind.Key(domain.FieldAge)]); fe != nil {
		errs = append(errs, fe)
	}

	if p.Email, fe = v.email(raw[v.kind.EmailField]); fe != nil {
		errs = append(errs, fe)
	}

	if p.Name, fe = v.name(raw[v.kind.NameField]); fe != nil {
		errs = append(errs, fe)
	}

	if p.Phone, fe = v.phone(raw[v.kind.Key(domain.FieldPhone)]); fe != nil {
		errs = append(errs, fe)
	}

	if p.Income, fe = v.money(v.kind.IncomeField, raw[v.kind.IncomeField]); fe != nil {
		errs = append(errs, fe)
	}

	balanceKey := v.kind.Key(domain.FieldBalance)
	if p.Balance, fe = v.money(balanceKey, raw[balanceKey]); fe != nil {
		errs = append(errs, fe)
	}

	if p.Category, fe = v.category(raw[v.kind.Key(domain.FieldCategory)]); fe != nil {
		errs = append(errs, fe)
	}

	if len(errs) > 0 {
		return domain.CreateCustomerParams{}, errs
	}

	return p, nil
}

// Update validates the raw partial update input.
//
// Only the updatable fields are read. Any other key, including the id, the
// balance and the timestamps, is ignored.
func (v *Validator) Update(raw map[string]any) (domain.UpdateCustomerParams, error) {
	var (
		p    domain.UpdateCustomerParams
		errs ValidationErrors
	)

	for _, f := range domain.UpdatableFields {
		key := v.kind.Key(f)

		val, ok := raw[key]
		if !ok {
			continue
		}

		if val == nil {
			errs = append(errs, invalid(key, "must not be null"))
			continue
		}

		var fe *FieldError

		switch f {
		case domain.FieldName:
			var s string
			if s, fe = v.name(val); fe == nil {
				p.Name = &s
			}
		case domain.FieldEmail:
			var s string
			if s, fe = v.email(val); fe == nil {
				p.Email = &s
			}
		case domain.FieldPhone:
			var s string
			if s, fe = v.phone(val); fe == nil {
				p.Phone = &s
			}
		case domain.FieldAge:
			var n int32
			if n, fe = v.age(val); fe == nil {
				p.Age = &n
			}
		case domain.FieldIncome:
			var d decimal.Decimal
			if d, fe = v.money(key, val); fe == nil {
				p.Income = &d
			}
		case domain.FieldCategory:
			var s string
			if s, fe = v.category(val); fe == nil {
				p.Category = &s
			}
		}

		if fe != nil {
			errs = append(errs, fe)
		}
	}

	if len(errs) > 0 {
		return domain.UpdateCustomerParams{}, errs
	}

	return p, nil
}

func (v *Validator) age(val any) (int32, *FieldError) {
	key := v.kind.Key(domain.FieldAge)

	n, ok := toInt(val)
	if !ok {
		return 0, invalid(key, "must be an integer")
	}

	tag := fmt.Sprintf("min=%d,max=%d", v.kind.MinAge, v.kind.MaxAge)
	if n > math.MaxInt32 || n < math.MinInt32 || v.validate.Var(n, tag) != nil {
		return 0, invalid(key, fmt.Sprintf("must be between %d and %d", v.kind.MinAge, v.kind.MaxAge))
	}

	return int32(n), nil
}

func (v *Validator) email(val any) (string, *FieldError) {
	key := v.kind.EmailField

	s, ok := val.(string)
	if !ok {
		return "", invalid(key, "must be a string")
	}

	s = strings.TrimSpace(s)

	if v.validate.Var(s, "email_pattern") != nil {
		return "", invalid(key, "must be a valid email address")
	}

	if v.validate.Var(s, fmt.Sprintf("max=%d", maxEmailLen)) != nil {
		return "", invalid(key, fmt.Sprintf("must have at most %d characters", maxEmailLen))
	}

	return s, nil
}

func (v *Validator) name(val any) (string, *FieldError) {
	key := v.kind.NameField

	s, ok := val.(string)
	if !ok {
		return "", invalid(key, "must be a string")
	}

	s = strings.TrimSpace(s)

	if v.validate.Var(s, fmt.Sprintf("min=%d", minNameLen)) != nil {
		return "", invalid(key, fmt.Sprintf("must have at least %d characters", minNameLen))
	}

	if v.validate.Var(s, fmt.Sprintf("max=%d", maxNameLen)) != nil {
		return "", invalid(key, fmt.Sprintf("must have at most %d characters", maxNameLen))
	}

	return s, nil
}

func (v *Validator) phone(val any) (string, *FieldError) {
	key := v.kind.Key(domain.FieldPhone)

	var s string

	switch t := val.(type) {
	case string:
		s = t
	case json.Number:
		s = t.String()
	default:
		return "", invalid(key, "must be a string")
	}

	digits := NormalizePhone(s)

	if v.validate.Var(digits, "phone_digits") != nil {
		return "", invalid(key, "must have 10 or 11 digits")
	}

	return digits, nil
}

func (v *Validator) money(key string, val any) (decimal.Decimal, *FieldError) {
	d, err := ParseAmount(val)
	if err != nil {
		return decimal.Decimal{}, invalid(key, "must be a valid numeric value")
	}

	if d.IsNegative() {
		return decimal.Decimal{}, invalid(key, "cannot be negative")
	}

	switch err := CheckAmount(d); {
	case errors.Is(err, domain.ErrAmountPrecision):
		return decimal.Decimal{}, invalid(key, fmt.Sprintf("must have at most %d decimal places", moneyPlaces))
	case errors.Is(err, domain.ErrAmountOutOfRange):
		return decimal.Decimal{}, invalid(key, "is out of range")
	}

	return d, nil
}

func (v *Validator) category(val any) (string, *FieldError) {
	key := v.kind.Key(domain.FieldCategory)

	s, ok := val.(string)
	if !ok {
		return "", invalid(key, "must be a string")
	}

	s = strings.TrimSpace(s)

	if v.validate.Var(s, "required") != nil {
		return "", invalid(key, "must not be empty")
	}

	if v.validate.Var(s, fmt.Sprintf("max=%d", maxCategoryLen)) != nil {
		return "", invalid(key, fmt.Sprintf("must have at most %d characters", maxCategoryLen))
	}

	return s, nil
}

// ParseAmount converts a loosely typed monetary value into a decimal.
func ParseAmount(val any) (decimal.Decimal, error) {
	switch t := val.(type) {
	case decimal.Decimal:
		return t, nil
	case json.Number:
		return decimal.NewFromString(t.String())
	case string:
		return decimal.NewFromString(strings.TrimSpace(t))
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return decimal.Decimal{}, errors.New("not a finite number")
		}
		return decimal.NewFromFloat(t), nil
	case float32:
		return decimal.NewFromFloat32(t), nil
	case int:
		return decimal.NewFromInt(int64(t)), nil
	case int32:
		return decimal.NewFromInt32(t), nil
	case int64:
		return decimal.NewFromInt(t), nil
	}

	return decimal.Decimal{}, fmt.Errorf("unsupported numeric type %T", val)
}

// CheckAmount reports whether d fits the NUMERIC(15,2) money columns.
//
// The exponent is bounded before d is rounded or compared, so values like
// 1e999999999 are rejected without being expanded.
func CheckAmount(d decimal.Decimal) error {
	coefficient := d.Coefficient()
	digits := int32(len(coefficient.Abs(coefficient).String()))

	switch exp := d.Exponent(); {
	case exp > moneyDigits-moneyPlaces:
		return domain.ErrAmountOutOfRange
	case exp < -moneyPlaces-digits:
		return domain.ErrAmountPrecision
	}

	if !d.Equal(d.Round(moneyPlaces)) {
		return domain.ErrAmountPrecision
	}

	if d.Abs().Cmp(maxAmount) >= 0 {
		return domain.ErrAmountOutOfRange
	}

	return nil
}

func toInt(val any) (int64, bool) {
	switch t := val.(type) {
	case int:
		return int64(t), true
	case int32:
		return int64(t), true
	case int64:
		return t, true
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return n, true
		}

		f, err := t.Float64()
		if err != nil {
			return 0, false
		}

		return integral(f)
	case float64:
		return integral(t)
	}

	return 0, false
}

// integral accepts floats holding an exact integer, like 30.0.
func integral(f float64) (int64, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) || math.Abs(f) > 1<<53 {
		return 0, false
	}

	return int64(f), true
}

func isBlank(val any) bool {
	s, ok := val.(string)
	return ok && strings.TrimSpace(s) == ""
}

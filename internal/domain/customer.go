// Package domain provides defenitions of all entities.
package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrEmailTaken indicates that the email is already used by another customer of the same kind.
	ErrEmailTaken = errors.New("email already registered")
	// ErrPhoneTaken indicates that the phone is already used by another customer of the same kind.
	ErrPhoneTaken = errors.New("phone already registered")
	// ErrDuplicate indicates any other unique constraint violation.
	ErrDuplicate = errors.New("duplicate data")
	// ErrInvalidAmount indicates a non positive ledger amount.
	ErrInvalidAmount = errors.New("amount must be positive")
	// ErrInsufficientFunds indicates that the balance does not cover the withdrawal.
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrRecordNotFound indicates that the customer is not found.
	ErrRecordNotFound = errors.New("record not found")
	// ErrNoRecords indicates that no customer of the kind is registered.
	ErrNoRecords = errors.New("no records registered")
	// ErrAmountOutOfRange indicates an amount beyond the storage precision.
	ErrAmountOutOfRange = errors.New("amount out of range")
	// ErrAmountPrecision indicates an amount with more than two decimal places.
	ErrAmountPrecision = errors.New("amount must have at most 2 decimal places")
	// ErrInvalidSearch indicates a search without exactly one criterion.
	ErrInvalidSearch = errors.New("exactly one search criterion is required")
	// ErrUnsupportedFilter indicates a search criterion the kind does not support.
	ErrUnsupportedFilter = errors.New("unsupported search criterion")
)

// NotFoundError reports a missing customer.
type NotFoundError struct {
	Kind string
	ID   int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s with id %d not found", e.Kind, e.ID)
}

// Is makes errors.Is(err, ErrRecordNotFound) hold.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrRecordNotFound
}

// InsufficientFundsError reports a withdrawal larger than the balance.
type InsufficientFundsError struct {
	Balance decimal.Decimal
	Amount  decimal.Decimal
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds: balance %s, withdrawal %s",
		e.Balance.StringFixed(2), e.Amount.StringFixed(2))
}

// Is makes errors.Is(err, ErrInsufficientFunds) hold.
func (e *InsufficientFundsError) Is(target error) bool {
	return target == ErrInsufficientFunds
}

// EmptyListError reports that a kind has no registered customers.
type EmptyListError struct {
	Kind string
}

func (e *EmptyListError) Error() string {
	return fmt.Sprintf("no %s registered", e.Kind)
}

// Is makes errors.Is(err, ErrNoRecords) hold.
func (e *EmptyListError) Is(target error) bool {
	return target == ErrNoRecords
}

// Customer holds one customer account of either kind.
type Customer struct {
	ID        int64
	Name      string
	Email     string
	Phone     string // digits only
	Age       int32
	Income    decimal.Decimal
	Category  string
	Balance   decimal.Decimal
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CreateCustomerParams is the validated input data to create a customer.
type CreateCustomerParams struct {
	Name     string
	Email    string
	Phone    string
	Age      int32
	Income   decimal.Decimal
	Category string
	Balance  decimal.Decimal
}

// UpdateCustomerParams is the validated input data to update a customer.
//
// Nil fields are left unchanged. There is no way to express a change of the
// id, the balance or the timestamps.
type UpdateCustomerParams struct {
	Name     *string
	Email    *string
	Phone    *string
	Age      *int32
	Income   *decimal.Decimal
	Category *string
}

// Empty reports whether the params change nothing.
func (p UpdateCustomerParams) Empty() bool {
	return p.Name == nil && p.Email == nil && p.Phone == nil &&
		p.Age == nil && p.Income == nil && p.Category == nil
}

// Statement is the fixed projection of a customer returned by a statement request.
type Statement struct {
	ID        int64
	Name      string
	Email     string
	Balance   decimal.Decimal
	Category  string
	Age       int32
	CreatedAt time.Time
	UpdatedAt time.Time
}

// SearchParams holds exactly one customer search criterion.
type SearchParams struct {
	Category     *string
	BalanceAbove *decimal.Decimal
	IncomeAbove  *decimal.Decimal
	AgeMin       *int32
	AgeMax       *int32
	Email        *string
	Phone        *string
}

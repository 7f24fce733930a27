package test

import (
	"time"

	"github.com/go-petr/customer-ledger/internal/domain"
	"github.com/go-petr/customer-ledger/pkg/randompkg"
)

// RandomCustomer returns random customer of the given kind.
func RandomCustomer(kind domain.Kind) domain.Customer {
	now := time.Now().Truncate(time.Second).UTC()

	return domain.Customer{
		ID:        int64(randompkg.IntBetween(1, 1000)),
		Name:      randompkg.Name(),
		Email:     randompkg.Email(),
		Phone:     randompkg.Phone(),
		Age:       randompkg.IntBetween(int(kind.MinAge), int(kind.MaxAge)),
		Income:    randompkg.MoneyAmountBetween(0, 100_000),
		Category:  randompkg.Category(),
		Balance:   randompkg.MoneyAmountBetween(1000, 10_000),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// CreateParams returns the create params matching c.
func CreateParams(c domain.Customer) domain.CreateCustomerParams {
	return domain.CreateCustomerParams{
		Name:     c.Name,
		Email:    c.Email,
		Phone:    c.Phone,
		Age:      c.Age,
		Income:   c.Income,
		Category: c.Category,
		Balance:  c.Balance,
	}
}

// CreateInput returns the raw request body that creates c as a customer of kind.
func CreateInput(kind domain.Kind, c domain.Customer) map[string]any {
	return map[string]any{
		kind.Key(domain.FieldName):     c.Name,
		kind.Key(domain.FieldEmail):    c.Email,
		kind.Key(domain.FieldPhone):    c.Phone,
		kind.Key(domain.FieldAge):      c.Age,
		kind.Key(domain.FieldIncome):   c.Income.StringFixed(2),
		kind.Key(domain.FieldCategory): c.Category,
		kind.Key(domain.FieldBalance):  c.Balance.StringFixed(2),
	}
}

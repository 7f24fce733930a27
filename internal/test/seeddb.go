// Package test provides shared test helpers.
package test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/go-petr/customer-ledger/internal/customerrepo"
	"github.com/go-petr/customer-ledger/internal/domain"
	"github.com/go-petr/customer-ledger/pkg/dbpkg"
)

// SeedCustomer creates random customer of the kind with the given balance.
func SeedCustomer(t *testing.T, db dbpkg.TxBeginner, kind domain.Kind, balance string) domain.Customer {
	t.Helper()

	arg := CreateParams(RandomCustomer(kind))
	arg.Balance = decimal.RequireFromString(balance)

	customer, err := customerrepo.NewRepoPGS(db, kind, nil).Create(context.Background(), arg)
	if err != nil {
		t.Fatalf("customerRepo.Create(context.Background(), %+v) returned error: %v", arg, err)
	}

	return customer
}

// SeedCustomerWith1000Balance creates random customer of the kind with 1000 on balance.
func SeedCustomerWith1000Balance(t *testing.T, db dbpkg.TxBeginner, kind domain.Kind) domain.Customer {
	t.Helper()

	return SeedCustomer(t, db, kind, "1000.00")
}

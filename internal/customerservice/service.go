// Package customerservice manages business logic layer of customer accounts.
package customerservice

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/go-petr/customer-ledger/internal/customervalidator"
	"github.com/go-petr/customer-ledger/internal/domain"
	"github.com/go-petr/customer-ledger/internal/telemetry"
)

// Repo provides data access layer interface needed by customer service layer.
//
//go:generate mockgen -source service.go -destination service_mock.go -package customerservice
type Repo interface {
	Create(ctx context.Context, arg domain.CreateCustomerParams) (domain.Customer, error)
	Get(ctx context.Context, id int64) (domain.Customer, bool, error)
	GetByEmail(ctx context.Context, email string) (domain.Customer, bool, error)
	GetByPhone(ctx context.Context, phone string) (domain.Customer, bool, error)
	ListAll(ctx context.Context) ([]domain.Customer, error)
	ListByCategory(ctx context.Context, category string) ([]domain.Customer, error)
	ListByBalanceAbove(ctx context.Context, threshold decimal.Decimal) ([]domain.Customer, error)
	ListByIncomeAbove(ctx context.Context, threshold decimal.Decimal) ([]domain.Customer, error)
	ListByAgeRange(ctx context.Context, minAge, maxAge int32) ([]domain.Customer, error)
	Update(ctx context.Context, id int64, arg domain.UpdateCustomerParams) (domain.Customer, bool, error)
	Delete(ctx context.Context, id int64) (bool, error)
	Withdraw(ctx context.Context, id int64, amount decimal.Decimal) (decimal.Decimal, error)
	Deposit(ctx context.Context, id int64, amount decimal.Decimal) (decimal.Decimal, error)
	Balance(ctx context.Context, id int64) (decimal.Decimal, error)
	Statement(ctx context.Context, id int64) (domain.Statement, error)
}

// Service facilitates customer service layer logic for one kind.
type Service struct {
	kind      domain.Kind
	repo      Repo
	validator *customervalidator.Validator
	metrics   *telemetry.Metrics
}

// New returns customer service struct to manage customer bussines logic. metrics may be nil.
func New(kind domain.Kind, repo Repo, metrics *telemetry.Metrics) *Service {
	return &Service{
		kind:      kind,
		repo:      repo,
		validator: customervalidator.New(kind),
		metrics:   metrics,
	}
}

// Kind returns the customer kind managed by the service.
func (s *Service) Kind() domain.Kind {
	return s.kind
}

func (s *Service) notFound(id int64) error {
	return &domain.NotFoundError{Kind: s.kind.Label, ID: id}
}

// Create validates the raw input and creates the customer.
func (s *Service) Create(ctx context.Context, raw map[string]any) (domain.Customer, error) {
	l := zerolog.Ctx(ctx)

	arg, err := s.validator.Create(raw)
	if err != nil {
		l.Info().Err(err).Send()
		return domain.Customer{}, err
	}

	customer, err := s.repo.Create(ctx, arg)
	if err != nil {
		return domain.Customer{}, err
	}

	return customer, nil
}

// List returns all customers of the kind.
//
// An empty store is reported as *domain.EmptyListError rather than an empty slice.
func (s *Service) List(ctx context.Context) ([]domain.Customer, error) {
	customers, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	if len(customers) == 0 {
		return nil, &domain.EmptyListError{Kind: s.kind.Label + "s"}
	}

	return customers, nil
}

// Get returns the customer with the given id.
func (s *Service) Get(ctx context.Context, id int64) (domain.Customer, error) {
	customer, found, err := s.repo.Get(ctx, id)
	if err != nil {
		return domain.Customer{}, err
	}

	if !found {
		return domain.Customer{}, s.notFound(id)
	}

	return customer, nil
}

// Update validates the raw partial input and applies it to the customer.
func (s *Service) Update(ctx context.Context, id int64, raw map[string]any) (domain.Customer, error) {
	l := zerolog.Ctx(ctx)

	arg, err := s.validator.Update(raw)
	if err != nil {
		l.Info().Err(err).Send()
		return domain.Customer{}, err
	}

	customer, found, err := s.repo.Update(ctx, id, arg)
	if err != nil {
		return domain.Customer{}, err
	}

	if !found {
		return domain.Customer{}, s.notFound(id)
	}

	return customer, nil
}

// Delete removes the customer with the given id.
func (s *Service) Delete(ctx context.Context, id int64) error {
	deleted, err := s.repo.Delete(ctx, id)
	if err != nil {
		return err
	}

	if !deleted {
		return s.notFound(id)
	}

	return nil
}

func checkAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return domain.ErrInvalidAmount
	}

	return customervalidator.CheckAmount(amount)
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrInvalidAmount), errors.Is(err, domain.ErrAmountPrecision),
		errors.Is(err, domain.ErrAmountOutOfRange):
		return "invalid_amount"
	case errors.Is(err, domain.ErrRecordNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrInsufficientFunds):
		return "insufficient_funds"
	}

	return "error"
}

// Withdraw takes amount from the customer's balance and returns the new balance.
func (s *Service) Withdraw(ctx context.Context, id int64, amount decimal.Decimal) (balance decimal.Decimal, err error) {
	l := zerolog.Ctx(ctx)

	defer func() { s.metrics.ObserveLedger(s.kind.Path, "withdraw", outcome(err)) }()

	if err = checkAmount(amount); err != nil {
		l.Info().Err(err).Str("amount", amount.String()).Send()
		return decimal.Decimal{}, err
	}

	balance, err = s.repo.Withdraw(ctx, id, amount)
	if err != nil {
		l.Info().Err(err).Int64("id", id).Send()
		return decimal.Decimal{}, err
	}

	return balance, nil
}

// Deposit adds amount to the customer's balance and returns the new balance.
func (s *Service) Deposit(ctx context.Context, id int64, amount decimal.Decimal) (balance decimal.Decimal, err error) {
	l := zerolog.Ctx(ctx)

	defer func() { s.metrics.ObserveLedger(s.kind.Path, "deposit", outcome(err)) }()

	if err = checkAmount(amount); err != nil {
		l.Info().Err(err).Str("amount", amount.String()).Send()
		return decimal.Decimal{}, err
	}

	balance, err = s.repo.Deposit(ctx, id, amount)
	if err != nil {
		l.Info().Err(err).Int64("id", id).Send()
		return decimal.Decimal{}, err
	}

	return balance, nil
}

// Balance returns the customer's current balance.
func (s *Service) Balance(ctx context.Context, id int64) (decimal.Decimal, error) {
	return s.repo.Balance(ctx, id)
}

// Statement returns the customer's statement.
func (s *Service) Statement(ctx context.Context, id int64) (domain.Statement, error) {
	return s.repo.Statement(ctx, id)
}

// Search returns the customers matching the single criterion set in arg.
// No match is an empty slice, not an error.
func (s *Service) Search(ctx context.Context, arg domain.SearchParams) ([]domain.Customer, error) {
	l := zerolog.Ctx(ctx)

	criteria := 0
	for _, set := range []bool{
		arg.Category != nil,
		arg.BalanceAbove != nil,
		arg.IncomeAbove != nil,
		arg.AgeMin != nil || arg.AgeMax != nil,
		arg.Email != nil,
		arg.Phone != nil,
	} {
		if set {
			criteria++
		}
	}

	if criteria != 1 {
		l.Info().Int("criteria", criteria).Err(domain.ErrInvalidSearch).Send()
		return nil, domain.ErrInvalidSearch
	}

	if !s.kind.ExtendedSearch && (arg.IncomeAbove != nil || arg.AgeMin != nil || arg.AgeMax != nil) {
		l.Info().Err(domain.ErrUnsupportedFilter).Str("kind", s.kind.Path).Send()
		return nil, domain.ErrUnsupportedFilter
	}

	switch {
	case arg.Category != nil:
		return s.repo.ListByCategory(ctx, strings.TrimSpace(*arg.Category))
	case arg.BalanceAbove != nil:
		return s.repo.ListByBalanceAbove(ctx, *arg.BalanceAbove)
	case arg.IncomeAbove != nil:
		return s.repo.ListByIncomeAbove(ctx, *arg.IncomeAbove)
	case arg.Email != nil:
		return s.single(s.repo.GetByEmail(ctx, strings.TrimSpace(*arg.Email)))
	case arg.Phone != nil:
		return s.single(s.repo.GetByPhone(ctx, customervalidator.NormalizePhone(*arg.Phone)))
	}

	minAge, maxAge := s.kind.MinAge, s.kind.MaxAge
	if arg.AgeMin != nil {
		minAge = *arg.AgeMin
	}

	if arg.AgeMax != nil {
		maxAge = *arg.AgeMax
	}

	return s.repo.ListByAgeRange(ctx, minAge, maxAge)
}

func (s *Service) single(c domain.Customer, found bool, err error) ([]domain.Customer, error) {
	if err != nil {
		return nil, err
	}

	if !found {
		return []domain.Customer{}, nil
	}

	return []domain.Customer{c}, nil
}

package customerservice

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/go-petr/customer-ledger/internal/customervalidator"
	"github.com/go-petr/customer-ledger/internal/domain"
	"github.com/go-petr/customer-ledger/pkg/errorspkg"
)

func randomCustomer(id int64, balance string) domain.Customer {
	return domain.Customer{
		ID:        id,
		Name:      "Shaun Murphy",
		Email:     "shaun@gmail.com",
		Phone:     "32903191239",
		Age:       30,
		Income:    decimal.RequireFromString("5000.00"),
		Category:  "premium",
		Balance:   decimal.RequireFromString(balance),
		CreatedAt: time.Now().Truncate(time.Second).UTC(),
		UpdatedAt: time.Now().Truncate(time.Second).UTC(),
	}
}

func createInput() map[string]any {
	return map[string]any{
		"full_name":      "Shaun Murphy",
		"email":          "shaun@gmail.com",
		"phone":          "(32) 9 0319-1239",
		"age":            json.Number("30"),
		"monthly_income": "5000.00",
		"category":       "premium",
		"balance":        "1000.00",
	}
}

func TestCreate(t *testing.T) {
	testCustomer := randomCustomer(1, "1000.00")

	testCases := []struct {
		name          string
		input         map[string]any
		buildStubs    func(repo *MockRepo)
		checkResponse func(res domain.Customer, err error)
	}{
		{
			name:  "OK",
			input: createInput(),
			buildStubs: func(repo *MockRepo) {
				repo.EXPECT().Create(gomock.Any(), gomock.Any()).
					Times(1).
					DoAndReturn(func(_ context.Context, arg domain.CreateCustomerParams) (domain.Customer, error) {
						require.Equal(t, "32903191239", arg.Phone)
						require.True(t, arg.Balance.Equal(decimal.RequireFromString("1000")))
						return testCustomer, nil
					})
			},
			checkResponse: func(res domain.Customer, err error) {
				require.NoError(t, err)
				require.Equal(t, testCustomer, res)
			},
		},
		{
			name: "MissingField",
			input: func() map[string]any {
				in := createInput()
				delete(in, "category")
				return in
			}(),
			buildStubs: func(repo *MockRepo) {
				repo.EXPECT().Create(gomock.Any(), gomock.Any()).Times(0)
			},
			checkResponse: func(res domain.Customer, err error) {
				require.Empty(t, res)
				require.ErrorIs(t, err, customervalidator.ErrMissingField)
				require.EqualError(t, err, "category: field is required")
			},
		},
		{
			name:  "EmailTaken",
			input: createInput(),
			buildStubs: func(repo *MockRepo) {
				repo.EXPECT().Create(gomock.Any(), gomock.Any()).
					Times(1).
					Return(domain.Customer{}, domain.ErrEmailTaken)
			},
			checkResponse: func(res domain.Customer, err error) {
				require.Empty(t, res)
				require.ErrorIs(t, err, domain.ErrEmailTaken)
			},
		},
	}

	for i := range testCases {
		tc := testCases[i]

		t.Run(tc.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			repo := NewMockRepo(ctrl)
			tc.buildStubs(repo)

			res, err := New(domain.Individual, repo, nil).Create(context.Background(), tc.input)
			tc.checkResponse(res, err)
		})
	}
}

func TestList(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := NewMockRepo(ctrl)
	s := New(domain.Corporate, repo, nil)

	t.Run("Empty", func(t *testing.T) {
		repo.EXPECT().ListAll(gomock.Any()).Times(1).Return([]domain.Customer{}, nil)

		res, err := s.List(context.Background())
		require.Nil(t, res)
		require.ErrorIs(t, err, domain.ErrNoRecords)
		require.EqualError(t, err, "no Corporate Accounts registered")
	})

	t.Run("OK", func(t *testing.T) {
		want := []domain.Customer{randomCustomer(1, "10"), randomCustomer(2, "20")}
		repo.EXPECT().ListAll(gomock.Any()).Times(1).Return(want, nil)

		res, err := s.List(context.Background())
		require.NoError(t, err)
		require.Equal(t, want, res)
	})

	t.Run("RepoError", func(t *testing.T) {
		repo.EXPECT().ListAll(gomock.Any()).Times(1).Return(nil, errorspkg.ErrInternal)

		_, err := s.List(context.Background())
		require.ErrorIs(t, err, errorspkg.ErrInternal)
	})
}

func TestGetAndDeleteNotFound(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := NewMockRepo(ctrl)
	s := New(domain.Individual, repo, nil)

	repo.EXPECT().Get(gomock.Any(), gomock.Eq(int64(42))).Times(1).Return(domain.Customer{}, false, nil)
	repo.EXPECT().Delete(gomock.Any(), gomock.Eq(int64(42))).Times(1).Return(false, nil)

	_, err := s.Get(context.Background(), 42)
	require.ErrorIs(t, err, domain.ErrRecordNotFound)
	require.Contains(t, err.Error(), "42")

	err = s.Delete(context.Background(), 42)
	require.ErrorIs(t, err, domain.ErrRecordNotFound)
}

func TestUpdateIgnoresForbiddenFields(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := NewMockRepo(ctrl)
	s := New(domain.Individual, repo, nil)

	updated := randomCustomer(7, "1000.00")
	updated.Email = "new@mail.com"

	repo.EXPECT().Update(gomock.Any(), gomock.Eq(int64(7)), gomock.Any()).
		Times(1).
		DoAndReturn(func(_ context.Context, _ int64, arg domain.UpdateCustomerParams) (domain.Customer, bool, error) {
			require.NotNil(t, arg.Email)
			require.Equal(t, "new@mail.com", *arg.Email)
			require.Nil(t, arg.Name)
			return updated, true, nil
		})

	res, err := s.Update(context.Background(), 7, map[string]any{
		"id":      json.Number("1"),
		"balance": "0",
		"email":   "new@mail.com",
	})
	require.NoError(t, err)
	require.Equal(t, updated, res)
}

func TestWithdraw(t *testing.T) {
	balance := decimal.RequireFromString("1000.00")

	testCases := []struct {
		name       string
		amount     decimal.Decimal
		buildStubs func(repo *MockRepo, amount decimal.Decimal)
		wantErr    error
		wantResult decimal.Decimal
	}{
		{
			name:   "OK",
			amount: decimal.RequireFromString("500.00"),
			buildStubs: func(repo *MockRepo, amount decimal.Decimal) {
				repo.EXPECT().Withdraw(gomock.Any(), gomock.Eq(int64(1)), gomock.Eq(amount)).
					Times(1).
					Return(balance.Sub(amount), nil)
			},
			wantResult: decimal.RequireFromString("500.00"),
		},
		{
			name:   "Zero",
			amount: decimal.Zero,
			buildStubs: func(repo *MockRepo, amount decimal.Decimal) {
				repo.EXPECT().Withdraw(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)
			},
			wantErr: domain.ErrInvalidAmount,
		},
		{
			name:   "Negative",
			amount: decimal.RequireFromString("-10"),
			buildStubs: func(repo *MockRepo, amount decimal.Decimal) {
				repo.EXPECT().Withdraw(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)
			},
			wantErr: domain.ErrInvalidAmount,
		},
		{
			name:   "Precision",
			amount: decimal.RequireFromString("0.001"),
			buildStubs: func(repo *MockRepo, amount decimal.Decimal) {
				repo.EXPECT().Withdraw(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)
			},
			wantErr: domain.ErrAmountPrecision,
		},
		{
			name:   "OutOfRange",
			amount: decimal.RequireFromString("1e400"),
			buildStubs: func(repo *MockRepo, amount decimal.Decimal) {
				repo.EXPECT().Withdraw(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)
			},
			wantErr: domain.ErrAmountOutOfRange,
		},
		{
			name:   "HugeExponent",
			amount: decimal.RequireFromString("1e999999999"),
			buildStubs: func(repo *MockRepo, amount decimal.Decimal) {
				repo.EXPECT().Withdraw(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)
			},
			wantErr: domain.ErrAmountOutOfRange,
		},
		{
			name:   "InsufficientFunds",
			amount: decimal.RequireFromString("1000.01"),
			buildStubs: func(repo *MockRepo, amount decimal.Decimal) {
				repo.EXPECT().Withdraw(gomock.Any(), gomock.Eq(int64(1)), gomock.Eq(amount)).
					Times(1).
					Return(decimal.Decimal{}, &domain.InsufficientFundsError{Balance: balance, Amount: amount})
			},
			wantErr: domain.ErrInsufficientFunds,
		},
	}

	for i := range testCases {
		tc := testCases[i]

		t.Run(tc.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			repo := NewMockRepo(ctrl)
			tc.buildStubs(repo, tc.amount)

			res, err := New(domain.Individual, repo, nil).Withdraw(context.Background(), 1, tc.amount)
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
				return
			}

			require.NoError(t, err)
			require.True(t, tc.wantResult.Equal(res), "got %s", res)
		})
	}
}

func TestDeposit(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := NewMockRepo(ctrl)
	s := New(domain.Corporate, repo, nil)

	amount := decimal.RequireFromString("500.00")

	repo.EXPECT().Deposit(gomock.Any(), gomock.Eq(int64(1)), gomock.Eq(amount)).
		Times(1).
		Return(decimal.RequireFromString("1500.00"), nil)
	repo.EXPECT().Deposit(gomock.Any(), gomock.Eq(int64(99)), gomock.Eq(amount)).
		Times(1).
		Return(decimal.Decimal{}, &domain.NotFoundError{Kind: domain.Corporate.Label, ID: 99})

	res, err := s.Deposit(context.Background(), 1, amount)
	require.NoError(t, err)
	require.Equal(t, "1500.00", res.StringFixed(2))

	_, err = s.Deposit(context.Background(), 99, amount)
	require.ErrorIs(t, err, domain.ErrRecordNotFound)
	require.EqualError(t, err, "Corporate Account with id 99 not found")

	_, err = s.Deposit(context.Background(), 1, decimal.Zero)
	require.ErrorIs(t, err, domain.ErrInvalidAmount)
}

func TestSearch(t *testing.T) {
	category := "retail"
	threshold := decimal.RequireFromString("100")
	minAge := int32(5)
	email := " shaun@gmail.com "
	phone := "(32) 9 0319-1239"
	found := []domain.Customer{randomCustomer(1, "200")}

	testCases := []struct {
		name       string
		kind       domain.Kind
		arg        domain.SearchParams
		buildStubs func(repo *MockRepo)
		wantErr    error
		wantLen    int
	}{
		{
			name: "Category",
			kind: domain.Individual,
			arg:  domain.SearchParams{Category: &category},
			buildStubs: func(repo *MockRepo) {
				repo.EXPECT().ListByCategory(gomock.Any(), gomock.Eq("retail")).Times(1).Return(found, nil)
			},
			wantLen: 1,
		},
		{
			name: "BalanceAbove",
			kind: domain.Individual,
			arg:  domain.SearchParams{BalanceAbove: &threshold},
			buildStubs: func(repo *MockRepo) {
				repo.EXPECT().ListByBalanceAbove(gomock.Any(), gomock.Eq(threshold)).Times(1).Return([]domain.Customer{}, nil)
			},
			wantLen: 0,
		},
		{
			name: "IncomeAboveCorporate",
			kind: domain.Corporate,
			arg:  domain.SearchParams{IncomeAbove: &threshold},
			buildStubs: func(repo *MockRepo) {
				repo.EXPECT().ListByIncomeAbove(gomock.Any(), gomock.Eq(threshold)).Times(1).Return(found, nil)
			},
			wantLen: 1,
		},
		{
			name: "AgeRangeDefaultsMax",
			kind: domain.Corporate,
			arg:  domain.SearchParams{AgeMin: &minAge},
			buildStubs: func(repo *MockRepo) {
				repo.EXPECT().ListByAgeRange(gomock.Any(), gomock.Eq(int32(5)), gomock.Eq(int32(200))).Times(1).Return(found, nil)
			},
			wantLen: 1,
		},
		{
			name:    "IncomeAboveIndividual",
			kind:    domain.Individual,
			arg:     domain.SearchParams{IncomeAbove: &threshold},
			wantErr: domain.ErrUnsupportedFilter,
		},
		{
			name:    "NoCriterion",
			kind:    domain.Individual,
			wantErr: domain.ErrInvalidSearch,
		},
		{
			name:    "TwoCriteria",
			kind:    domain.Individual,
			arg:     domain.SearchParams{Category: &category, Email: &email},
			wantErr: domain.ErrInvalidSearch,
		},
		{
			name: "EmailMissing",
			kind: domain.Individual,
			arg:  domain.SearchParams{Email: &email},
			buildStubs: func(repo *MockRepo) {
				repo.EXPECT().GetByEmail(gomock.Any(), gomock.Eq("shaun@gmail.com")).Times(1).Return(domain.Customer{}, false, nil)
			},
			wantLen: 0,
		},
		{
			name: "PhoneNormalized",
			kind: domain.Individual,
			arg:  domain.SearchParams{Phone: &phone},
			buildStubs: func(repo *MockRepo) {
				repo.EXPECT().GetByPhone(gomock.Any(), gomock.Eq("32903191239")).Times(1).Return(found[0], true, nil)
			},
			wantLen: 1,
		},
		{
			name: "RepoError",
			kind: domain.Individual,
			arg:  domain.SearchParams{Phone: &phone},
			buildStubs: func(repo *MockRepo) {
				repo.EXPECT().GetByPhone(gomock.Any(), gomock.Any()).Times(1).Return(domain.Customer{}, false, errorspkg.ErrInternal)
			},
			wantErr: errorspkg.ErrInternal,
		},
	}

	for i := range testCases {
		tc := testCases[i]

		t.Run(tc.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			repo := NewMockRepo(ctrl)
			if tc.buildStubs != nil {
				tc.buildStubs(repo)
			}

			res, err := New(tc.kind, repo, nil).Search(context.Background(), tc.arg)
			if tc.wantErr != nil {
				require.True(t, errors.Is(err, tc.wantErr), "got %v", err)
				return
			}

			require.NoError(t, err)
			require.Len(t, res, tc.wantLen)
		})
	}
}

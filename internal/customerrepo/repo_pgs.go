// Package customerrepo manages repository layer of customer accounts.
package customerrepo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/go-petr/customer-ledger/internal/domain"
	"github.com/go-petr/customer-ledger/internal/telemetry"
	"github.com/go-petr/customer-ledger/pkg/dbpkg"
	"github.com/go-petr/customer-ledger/pkg/errorspkg"
)

// RepoPGS facilitates customer repository layer logic for one kind.
//
// Every method runs in its own transaction, released on every exit path.
type RepoPGS struct {
	db      dbpkg.TxBeginner
	kind    domain.Kind
	q       queries
	metrics *telemetry.Metrics
}

// NewRepoPGS returns customer RepoPGS for the given kind. metrics may be nil.
func NewRepoPGS(db dbpkg.TxBeginner, kind domain.Kind, metrics *telemetry.Metrics) *RepoPGS {
	return &RepoPGS{
		db:      db,
		kind:    kind,
		q:       buildQueries(kind),
		metrics: metrics,
	}
}

// Kind returns the customer kind served by the repository.
func (r *RepoPGS) Kind() domain.Kind {
	return r.kind
}

type queries struct {
	create       string
	get          string
	getByEmail   string
	getByPhone   string
	listAll      string
	listCategory string
	listBalance  string
	listIncome   string
	listAgeRange string
	update       string
	delete       string
	lockBalance  string
	addBalance   string
	balance      string
	statement    string
}

func buildQueries(k domain.Kind) queries {
	cols := fmt.Sprintf(
		"id, %s, %s, phone, age, %s, category, balance, created_at, updated_at",
		k.NameField, k.EmailField, k.IncomeField,
	)
	sel := "SELECT " + cols + " FROM " + k.Table

	return queries{
		create: fmt.Sprintf(`
INSERT INTO %s
    (%s, %s, phone, age, %s, category, balance)
VALUES
    ($1, $2, $3, $4, $5, $6, $7)
RETURNING %s`, k.Table, k.NameField, k.EmailField, k.IncomeField, cols),

		get:          sel + " WHERE id = $1",
		getByEmail:   sel + " WHERE " + k.EmailField + " = $1",
		getByPhone:   sel + " WHERE phone = $1",
		listAll:      sel + " ORDER BY id",
		listCategory: sel + " WHERE category = $1 ORDER BY id",
		listBalance:  sel + " WHERE balance > $1 ORDER BY id",
		listIncome:   sel + " WHERE " + k.IncomeField + " > $1 ORDER BY id",
		listAgeRange: sel + " WHERE age >= $1 AND age <= $2 ORDER BY id",

		update: fmt.Sprintf(`
UPDATE %[1]s
SET
    %[2]s = COALESCE($2, %[2]s),
    %[3]s = COALESCE($3, %[3]s),
    phone = COALESCE($4, phone),
    age = COALESCE($5, age),
    %[4]s = COALESCE($6, %[4]s),
    category = COALESCE($7, category),
    updated_at = now()
WHERE id = $1
RETURNING %[5]s`, k.Table, k.NameField, k.EmailField, k.IncomeField, cols),

		delete:      "DELETE FROM " + k.Table + " WHERE id = $1",
		lockBalance: "SELECT balance FROM " + k.Table + " WHERE id = $1 FOR UPDATE",
		addBalance: `
UPDATE ` + k.Table + `
SET balance = balance + $1, updated_at = now()
WHERE id = $2
RETURNING balance`,
		balance: "SELECT balance FROM " + k.Table + " WHERE id = $1",
		statement: fmt.Sprintf(
			"SELECT id, %s, %s, balance, category, age, created_at, updated_at FROM %s WHERE id = $1",
			k.NameField, k.EmailField, k.Table,
		),
	}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCustomer(row scanner) (domain.Customer, error) {
	var c domain.Customer

	err := row.Scan(
		&c.ID,
		&c.Name,
		&c.Email,
		&c.Phone,
		&c.Age,
		&c.Income,
		&c.Category,
		&c.Balance,
		&c.CreatedAt,
		&c.UpdatedAt,
	)

	return c, err
}

func (r *RepoPGS) observe(method string, start time.Time, err error) {
	status := "ok"

	switch {
	case err == nil:
	case errors.Is(err, domain.ErrRecordNotFound):
		status = "not_found"
	case errors.Is(err, domain.ErrEmailTaken), errors.Is(err, domain.ErrPhoneTaken), errors.Is(err, domain.ErrDuplicate):
		status = "conflict"
	case errors.Is(err, domain.ErrInsufficientFunds), errors.Is(err, domain.ErrInvalidAmount), errors.Is(err, domain.ErrAmountOutOfRange):
		status = "rejected"
	default:
		status = "error"
	}

	r.metrics.ObserveDB(r.kind.Path+"/"+method, status, time.Since(start))
}

// mapError translates a driver error into a domain error.
func (r *RepoPGS) mapError(ctx context.Context, err error) error {
	l := zerolog.Ctx(ctx)

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code.Name() {
		case "unique_violation":
			l.Info().Err(err).Str("constraint", pqErr.Constraint).Send()

			switch pqErr.Constraint {
			case r.kind.EmailConstraint():
				return domain.ErrEmailTaken
			case r.kind.PhoneConstraint():
				return domain.ErrPhoneTaken
			}

			return domain.ErrDuplicate
		case "numeric_value_out_of_range":
			l.Info().Err(err).Send()
			return domain.ErrAmountOutOfRange
		}
	}

	l.Error().Err(err).Send()

	return errorspkg.ErrInternal
}

func (r *RepoPGS) notFound(id int64) error {
	return &domain.NotFoundError{Kind: r.kind.Label, ID: id}
}

// Create creates the customer and then returns it.
func (r *RepoPGS) Create(ctx context.Context, arg domain.CreateCustomerParams) (c domain.Customer, err error) {
	defer func(start time.Time) { r.observe("create", start, err) }(time.Now())

	err = dbpkg.WithTx(ctx, r.db, func(tx dbpkg.SQLInterface) error {
		row := tx.QueryRowContext(ctx, r.q.create,
			arg.Name,
			arg.Email,
			arg.Phone,
			arg.Age,
			arg.Income,
			arg.Category,
			arg.Balance,
		)

		var err error
		if c, err = scanCustomer(row); err != nil {
			return r.mapError(ctx, err)
		}

		return nil
	})

	if err != nil {
		return domain.Customer{}, err
	}

	return c, nil
}

func (r *RepoPGS) getOne(ctx context.Context, method, query string, arg any) (c domain.Customer, found bool, err error) {
	defer func(start time.Time) { r.observe(method, start, err) }(time.Now())

	err = dbpkg.WithTx(ctx, r.db, func(tx dbpkg.SQLInterface) error {
		var err error

		c, err = scanCustomer(tx.QueryRowContext(ctx, query, arg))
		switch {
		case err == nil:
			found = true
		case errors.Is(err, sql.ErrNoRows):
			c = domain.Customer{}
		default:
			return r.mapError(ctx, err)
		}

		return nil
	})

	if err != nil {
		return domain.Customer{}, false, err
	}

	return c, found, nil
}

// Get returns the customer with the given id. found is false when there is no such customer.
func (r *RepoPGS) Get(ctx context.Context, id int64) (domain.Customer, bool, error) {
	return r.getOne(ctx, "get", r.q.get, id)
}

// GetByEmail returns the customer with the given email.
func (r *RepoPGS) GetByEmail(ctx context.Context, email string) (domain.Customer, bool, error) {
	return r.getOne(ctx, "get_by_email", r.q.getByEmail, email)
}

// GetByPhone returns the customer with the given normalized phone.
func (r *RepoPGS) GetByPhone(ctx context.Context, phone string) (domain.Customer, bool, error) {
	return r.getOne(ctx, "get_by_phone", r.q.getByPhone, phone)
}

func (r *RepoPGS) list(ctx context.Context, method, query string, args ...any) (items []domain.Customer, err error) {
	defer func(start time.Time) { r.observe(method, start, err) }(time.Now())

	items = []domain.Customer{}

	err = dbpkg.WithTx(ctx, r.db, func(tx dbpkg.SQLInterface) error {
		rows, err := tx.QueryContext(ctx, query, args...)
		if err != nil {
			return r.mapError(ctx, err)
		}
		defer rows.Close()

		for rows.Next() {
			c, err := scanCustomer(rows)
			if err != nil {
				return r.mapError(ctx, err)
			}

			items = append(items, c)
		}

		if err := rows.Close(); err != nil {
			return r.mapError(ctx, err)
		}

		if err := rows.Err(); err != nil {
			return r.mapError(ctx, err)
		}

		return nil
	})

	if err != nil {
		return nil, err
	}

	return items, nil
}

// ListAll returns every customer ordered by id. It returns an empty slice when there are none.
func (r *RepoPGS) ListAll(ctx context.Context) ([]domain.Customer, error) {
	return r.list(ctx, "list_all", r.q.listAll)
}

// ListByCategory returns the customers of the given category.
func (r *RepoPGS) ListByCategory(ctx context.Context, category string) ([]domain.Customer, error) {
	return r.list(ctx, "list_by_category", r.q.listCategory, category)
}

// ListByBalanceAbove returns the customers with a balance strictly greater than threshold.
func (r *RepoPGS) ListByBalanceAbove(ctx context.Context, threshold decimal.Decimal) ([]domain.Customer, error) {
	return r.list(ctx, "list_by_balance_above", r.q.listBalance, threshold)
}

// ListByIncomeAbove returns the customers with an income or revenue strictly greater than threshold.
func (r *RepoPGS) ListByIncomeAbove(ctx context.Context, threshold decimal.Decimal) ([]domain.Customer, error) {
	return r.list(ctx, "list_by_income_above", r.q.listIncome, threshold)
}

// ListByAgeRange returns the customers whose age lies in [minAge, maxAge].
func (r *RepoPGS) ListByAgeRange(ctx context.Context, minAge, maxAge int32) ([]domain.Customer, error) {
	return r.list(ctx, "list_by_age_range", r.q.listAgeRange, minAge, maxAge)
}

// Update applies the non nil params to the customer with the given id and returns it.
// found is false when there is no such customer.
func (r *RepoPGS) Update(ctx context.Context, id int64, arg domain.UpdateCustomerParams) (c domain.Customer, found bool, err error) {
	if arg.Empty() {
		return r.Get(ctx, id)
	}

	defer func(start time.Time) { r.observe("update", start, err) }(time.Now())

	err = dbpkg.WithTx(ctx, r.db, func(tx dbpkg.SQLInterface) error {
		row := tx.QueryRowContext(ctx, r.q.update,
			id,
			arg.Name,
			arg.Email,
			arg.Phone,
			arg.Age,
			arg.Income,
			arg.Category,
		)

		var err error

		c, err = scanCustomer(row)
		switch {
		case err == nil:
			found = true
		case errors.Is(err, sql.ErrNoRows):
			c = domain.Customer{}
		default:
			return r.mapError(ctx, err)
		}

		return nil
	})

	if err != nil {
		return domain.Customer{}, false, err
	}

	return c, found, nil
}

// Delete removes the customer with the given id. It reports whether a row was removed.
func (r *RepoPGS) Delete(ctx context.Context, id int64) (deleted bool, err error) {
	defer func(start time.Time) { r.observe("delete", start, err) }(time.Now())

	err = dbpkg.WithTx(ctx, r.db, func(tx dbpkg.SQLInterface) error {
		res, err := tx.ExecContext(ctx, r.q.delete, id)
		if err != nil {
			return r.mapError(ctx, err)
		}

		n, err := res.RowsAffected()
		if err != nil {
			return r.mapError(ctx, err)
		}

		deleted = n > 0

		return nil
	})

	if err != nil {
		return false, err
	}

	return deleted, nil
}

// Withdraw takes amount from the customer's balance and returns the new balance.
func (r *RepoPGS) Withdraw(ctx context.Context, id int64, amount decimal.Decimal) (balance decimal.Decimal, err error) {
	defer func(start time.Time) { r.observe("withdraw", start, err) }(time.Now())

	if !amount.IsPositive() {
		return decimal.Decimal{}, domain.ErrInvalidAmount
	}

	err = dbpkg.WithTx(ctx, r.db, func(tx dbpkg.SQLInterface) error {
		current, err := r.lockBalance(ctx, tx, id)
		if err != nil {
			return err
		}

		if current.LessThan(amount) {
			return &domain.InsufficientFundsError{Balance: current, Amount: amount}
		}

		balance, err = r.addBalance(ctx, tx, id, amount.Neg())

		return err
	})

	if err != nil {
		return decimal.Decimal{}, err
	}

	return balance, nil
}

// Deposit adds amount to the customer's balance and returns the new balance.
func (r *RepoPGS) Deposit(ctx context.Context, id int64, amount decimal.Decimal) (balance decimal.Decimal, err error) {
	defer func(start time.Time) { r.observe("deposit", start, err) }(time.Now())

	if !amount.IsPositive() {
		return decimal.Decimal{}, domain.ErrInvalidAmount
	}

	err = dbpkg.WithTx(ctx, r.db, func(tx dbpkg.SQLInterface) error {
		if _, err := r.lockBalance(ctx, tx, id); err != nil {
			return err
		}

		var err error
		balance, err = r.addBalance(ctx, tx, id, amount)

		return err
	})

	if err != nil {
		return decimal.Decimal{}, err
	}

	return balance, nil
}

func (r *RepoPGS) lockBalance(ctx context.Context, tx dbpkg.SQLInterface, id int64) (decimal.Decimal, error) {
	var balance decimal.Decimal

	err := tx.QueryRowContext(ctx, r.q.lockBalance, id).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return balance, r.notFound(id)
	}

	if err != nil {
		return balance, r.mapError(ctx, err)
	}

	return balance, nil
}

func (r *RepoPGS) addBalance(ctx context.Context, tx dbpkg.SQLInterface, id int64, delta decimal.Decimal) (decimal.Decimal, error) {
	var balance decimal.Decimal

	if err := tx.QueryRowContext(ctx, r.q.addBalance, delta, id).Scan(&balance); err != nil {
		return balance, r.mapError(ctx, err)
	}

	return balance, nil
}

// Balance returns the current balance of the customer.
func (r *RepoPGS) Balance(ctx context.Context, id int64) (balance decimal.Decimal, err error) {
	defer func(start time.Time) { r.observe("balance", start, err) }(time.Now())

	err = dbpkg.WithTx(ctx, r.db, func(tx dbpkg.SQLInterface) error {
		err := tx.QueryRowContext(ctx, r.q.balance, id).Scan(&balance)
		if errors.Is(err, sql.ErrNoRows) {
			return r.notFound(id)
		}

		if err != nil {
			return r.mapError(ctx, err)
		}

		return nil
	})

	if err != nil {
		return decimal.Decimal{}, err
	}

	return balance, nil
}

// Statement returns the statement projection of the customer.
func (r *RepoPGS) Statement(ctx context.Context, id int64) (s domain.Statement, err error) {
	defer func(start time.Time) { r.observe("statement", start, err) }(time.Now())

	err = dbpkg.WithTx(ctx, r.db, func(tx dbpkg.SQLInterface) error {
		err := tx.QueryRowContext(ctx, r.q.statement, id).Scan(
			&s.ID,
			&s.Name,
			&s.Email,
			&s.Balance,
			&s.Category,
			&s.Age,
			&s.CreatedAt,
			&s.UpdatedAt,
		)
		if errors.Is(err, sql.ErrNoRows) {
			return r.notFound(id)
		}

		if err != nil {
			return r.mapError(ctx, err)
		}

		return nil
	})

	if err != nil {
		return domain.Statement{}, err
	}

	return s, nil
}

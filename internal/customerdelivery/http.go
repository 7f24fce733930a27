// Package customerdelivery manages delivery layer of customer accounts.
package customerdelivery

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/go-petr/customer-ledger/internal/customervalidator"
	"github.com/go-petr/customer-ledger/internal/domain"
	"github.com/go-petr/customer-ledger/pkg/errorspkg"
	"github.com/go-petr/customer-ledger/pkg/web"
)

// Service provides service layer interface needed by customer delivery layer.
//
//go:generate mockgen -source http.go -destination http_mock.go -package customerdelivery
type Service interface {
	Create(ctx context.Context, raw map[string]any) (domain.Customer, error)
	List(ctx context.Context) ([]domain.Customer, error)
	Get(ctx context.Context, id int64) (domain.Customer, error)
	Update(ctx context.Context, id int64, raw map[string]any) (domain.Customer, error)
	Delete(ctx context.Context, id int64) error
	Withdraw(ctx context.Context, id int64, amount decimal.Decimal) (decimal.Decimal, error)
	Deposit(ctx context.Context, id int64, amount decimal.Decimal) (decimal.Decimal, error)
	Balance(ctx context.Context, id int64) (decimal.Decimal, error)
	Statement(ctx context.Context, id int64) (domain.Statement, error)
	Search(ctx context.Context, arg domain.SearchParams) ([]domain.Customer, error)
}

// Handler facilitates customer delivery layer logic for one kind.
type Handler struct {
	kind    domain.Kind
	service Service
}

// NewHandler returns customer handler of the given kind.
func NewHandler(kind domain.Kind, cs Service) Handler {
	return Handler{kind: kind, service: cs}
}

// Register mounts the kind routes on r under the kind path.
func (h *Handler) Register(r gin.IRouter) {
	g := r.Group("/" + h.kind.Path)

	g.POST("", h.Create)
	g.GET("", h.List)
	g.GET("/search", h.Search)
	g.GET("/:id", h.Get)
	g.PATCH("/:id", h.Update)
	g.DELETE("/:id", h.Delete)
	g.POST("/:id/withdraw", h.Withdraw)
	g.POST("/:id/deposit", h.Deposit)
	g.GET("/:id/balance", h.Balance)
	g.GET("/:id/statement", h.Statement)
}

func money(d decimal.Decimal) json.Number {
	return json.Number(d.StringFixed(2))
}

func (h *Handler) view(c domain.Customer) map[string]any {
	return map[string]any{
		h.kind.Key(domain.FieldName):     c.Name,
		h.kind.Key(domain.FieldEmail):    c.Email,
		h.kind.Key(domain.FieldPhone):    c.Phone,
		h.kind.Key(domain.FieldAge):      c.Age,
		h.kind.Key(domain.FieldIncome):   money(c.Income),
		h.kind.Key(domain.FieldCategory): c.Category,
		h.kind.Key(domain.FieldBalance):  money(c.Balance),
	}
}

func (h *Handler) record(c domain.Customer) map[string]any {
	attrs := h.view(c)
	attrs["id"] = c.ID
	attrs["created_at"] = c.CreatedAt.UTC().Format(time.RFC3339)
	attrs["updated_at"] = c.UpdatedAt.UTC().Format(time.RFC3339)

	return attrs
}

func (h *Handler) views(customers []domain.Customer) []map[string]any {
	attrs := make([]map[string]any, len(customers))
	for i, c := range customers {
		attrs[i] = h.view(c)
	}

	return attrs
}

func (h *Handler) ok(gctx *gin.Context, status, count int, attributes any) {
	gctx.JSON(status, web.Success(h.kind.Label, count, attributes))
}

// fail translates err into an error response. It is the only place where
// errors of lower layers get their HTTP status.
func (h *Handler) fail(gctx *gin.Context, err error) {
	l := zerolog.Ctx(gctx.Request.Context())

	var ve customervalidator.ValidationErrors

	status := http.StatusInternalServerError

	switch {
	case errors.As(err, &ve),
		errors.Is(err, errorspkg.ErrMalformedBody),
		errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrAmountPrecision),
		errors.Is(err, domain.ErrAmountOutOfRange),
		errors.Is(err, domain.ErrInvalidSearch),
		errors.Is(err, domain.ErrUnsupportedFilter),
		errors.Is(err, domain.ErrNoRecords):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrEmailTaken),
		errors.Is(err, domain.ErrPhoneTaken),
		errors.Is(err, domain.ErrDuplicate),
		errors.Is(err, domain.ErrInsufficientFunds):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrRecordNotFound):
		status = http.StatusNotFound
	}

	if status == http.StatusInternalServerError {
		l.Error().Err(err).Send()
		err = errorspkg.ErrInternal
	} else {
		l.Info().Err(err).Int("status", status).Send()
	}

	gctx.AbortWithStatusJSON(status, web.Error(err))
}

func fieldError(field, reason string) customervalidator.ValidationErrors {
	return customervalidator.ValidationErrors{{
		Field:  field,
		Reason: reason,
		Err:    customervalidator.ErrInvalidField,
	}}
}

// RegisterFieldNames makes v report fields by their uri, form or json name.
func RegisterFieldNames(v *validator.Validate) {
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		for _, key := range []string{"uri", "form", "json"} {
			name, _, _ := strings.Cut(f.Tag.Get(key), ",")
			if name != "" && name != "-" {
				return name
			}
		}

		return strings.ToLower(f.Name)
	})
}

// bindError turns a gin binding error into field errors. Errors raised
// before validation, like a malformed number, are reported as fallback.
func bindError(err, fallback error) error {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return fallback
	}

	errs := make(customervalidator.ValidationErrors, len(ve))
	for i, fe := range ve {
		reason := "is invalid"

		switch fe.Tag() {
		case "required":
			reason = "field is required"
		case "min":
			reason = "must be at least " + fe.Param()
		}

		errs[i] = &customervalidator.FieldError{
			Field:  fe.Field(),
			Reason: reason,
			Err:    customervalidator.ErrInvalidField,
		}
	}

	return errs
}

func decodeBody(gctx *gin.Context) (map[string]any, error) {
	dec := json.NewDecoder(gctx.Request.Body)
	dec.UseNumber()

	var raw map[string]any
	if err := dec.Decode(&raw); err != nil || raw == nil {
		return nil, errorspkg.ErrMalformedBody
	}

	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errorspkg.ErrMalformedBody
	}

	return raw, nil
}

type uriRequest struct {
	ID int64 `uri:"id" binding:"required,min=1"`
}

func (h *Handler) bindID(gctx *gin.Context) (int64, bool) {
	var req uriRequest
	if err := gctx.ShouldBindUri(&req); err != nil {
		h.fail(gctx, bindError(err, fieldError("id", "must be a positive integer")))
		return 0, false
	}

	return req.ID, true
}

// Create handles http request to create customer.
func (h *Handler) Create(gctx *gin.Context) {
	ctx := gctx.Request.Context()

	raw, err := decodeBody(gctx)
	if err != nil {
		h.fail(gctx, err)
		return
	}

	customer, err := h.service.Create(ctx, raw)
	if err != nil {
		h.fail(gctx, err)
		return
	}

	h.ok(gctx, http.StatusCreated, 1, h.record(customer))
}

// List handles http request to list all customers of the kind.
func (h *Handler) List(gctx *gin.Context) {
	customers, err := h.service.List(gctx.Request.Context())
	if err != nil {
		h.fail(gctx, err)
		return
	}

	h.ok(gctx, http.StatusOK, len(customers), h.views(customers))
}

// Get handles http request to get customer.
func (h *Handler) Get(gctx *gin.Context) {
	id, ok := h.bindID(gctx)
	if !ok {
		return
	}

	customer, err := h.service.Get(gctx.Request.Context(), id)
	if err != nil {
		h.fail(gctx, err)
		return
	}

	h.ok(gctx, http.StatusOK, 1, h.view(customer))
}

// Update handles http request to partially update customer.
func (h *Handler) Update(gctx *gin.Context) {
	id, ok := h.bindID(gctx)
	if !ok {
		return
	}

	raw, err := decodeBody(gctx)
	if err != nil {
		h.fail(gctx, err)
		return
	}

	customer, err := h.service.Update(gctx.Request.Context(), id, raw)
	if err != nil {
		h.fail(gctx, err)
		return
	}

	h.ok(gctx, http.StatusOK, 1, h.view(customer))
}

// Delete handles http request to delete customer.
func (h *Handler) Delete(gctx *gin.Context) {
	id, ok := h.bindID(gctx)
	if !ok {
		return
	}

	if err := h.service.Delete(gctx.Request.Context(), id); err != nil {
		h.fail(gctx, err)
		return
	}

	h.ok(gctx, http.StatusOK, 1, map[string]any{"id": id, "deleted": true})
}

type amountRequest struct {
	Amount *decimal.Decimal `json:"amount" binding:"required"`
}

func (h *Handler) ledger(gctx *gin.Context, op func(ctx context.Context, id int64, amount decimal.Decimal) (decimal.Decimal, error)) {
	id, ok := h.bindID(gctx)
	if !ok {
		return
	}

	var req amountRequest
	if err := gctx.ShouldBindJSON(&req); err != nil {
		h.fail(gctx, bindError(err, fieldError("amount", "must be a valid numeric value")))
		return
	}

	balance, err := op(gctx.Request.Context(), id, *req.Amount)
	if err != nil {
		h.fail(gctx, err)
		return
	}

	h.ok(gctx, http.StatusOK, 1, map[string]any{"id": id, "balance": money(balance)})
}

// Withdraw handles http request to take money from customer balance.
func (h *Handler) Withdraw(gctx *gin.Context) {
	h.ledger(gctx, h.service.Withdraw)
}

// Deposit handles http request to add money to customer balance.
func (h *Handler) Deposit(gctx *gin.Context) {
	h.ledger(gctx, h.service.Deposit)
}

// Balance handles http request to get customer balance.
func (h *Handler) Balance(gctx *gin.Context) {
	id, ok := h.bindID(gctx)
	if !ok {
		return
	}

	balance, err := h.service.Balance(gctx.Request.Context(), id)
	if err != nil {
		h.fail(gctx, err)
		return
	}

	h.ok(gctx, http.StatusOK, 1, map[string]any{"id": id, "balance": money(balance)})
}

// Statement handles http request to get customer statement.
func (h *Handler) Statement(gctx *gin.Context) {
	id, ok := h.bindID(gctx)
	if !ok {
		return
	}

	st, err := h.service.Statement(gctx.Request.Context(), id)
	if err != nil {
		h.fail(gctx, err)
		return
	}

	attrs := map[string]any{
		"id":                          st.ID,
		h.kind.Key(domain.FieldName):  st.Name,
		h.kind.Key(domain.FieldEmail): st.Email,
		"balance":                     money(st.Balance),
		"category":                    st.Category,
		"created_at":                  st.CreatedAt.UTC().Format(time.RFC3339),
		"updated_at":                  st.UpdatedAt.UTC().Format(time.RFC3339),
	}

	if h.kind.StatementAge {
		attrs["age"] = st.Age
	}

	h.ok(gctx, http.StatusOK, 1, attrs)
}

type searchRequest struct {
	Category     *string `form:"category"`
	BalanceAbove *string `form:"balance_above"`
	IncomeAbove  *string `form:"income_above"`
	AgeMin       *string `form:"age_min"`
	AgeMax       *string `form:"age_max"`
	Email        *string `form:"email"`
	Phone        *string `form:"phone"`
}

func parseThreshold(field string, val *string) (*decimal.Decimal, error) {
	if val == nil {
		return nil, nil
	}

	d, err := customervalidator.ParseAmount(*val)
	if err != nil {
		return nil, fieldError(field, "must be a valid numeric value")
	}

	switch err := customervalidator.CheckAmount(d); {
	case errors.Is(err, domain.ErrAmountPrecision):
		return nil, fieldError(field, "must have at most 2 decimal places")
	case err != nil:
		return nil, fieldError(field, "is out of range")
	}

	return &d, nil
}

func parseAge(field string, val *string) (*int32, error) {
	if val == nil {
		return nil, nil
	}

	n, err := strconv.ParseInt(strings.TrimSpace(*val), 10, 32)
	if err != nil || n < 0 {
		return nil, fieldError(field, "must be a non-negative integer")
	}

	age := int32(n)

	return &age, nil
}

// Search handles http request to find customers by a single criterion.
func (h *Handler) Search(gctx *gin.Context) {
	var req searchRequest
	if err := gctx.ShouldBindQuery(&req); err != nil {
		h.fail(gctx, bindError(err, fieldError("query", "is invalid")))
		return
	}

	balanceAbove, err := parseThreshold("balance_above", req.BalanceAbove)
	if err != nil {
		h.fail(gctx, err)
		return
	}

	incomeAbove, err := parseThreshold("income_above", req.IncomeAbove)
	if err != nil {
		h.fail(gctx, err)
		return
	}

	ageMin, err := parseAge("age_min", req.AgeMin)
	if err != nil {
		h.fail(gctx, err)
		return
	}

	ageMax, err := parseAge("age_max", req.AgeMax)
	if err != nil {
		h.fail(gctx, err)
		return
	}

	customers, err := h.service.Search(gctx.Request.Context(), domain.SearchParams{
		Category:     req.Category,
		BalanceAbove: balanceAbove,
		IncomeAbove:  incomeAbove,
		AgeMin:       ageMin,
		AgeMax:       ageMax,
		Email:        req.Email,
		Phone:        req.Phone,
	})
	if err != nil {
		h.fail(gctx, err)
		return
	}

	h.ok(gctx, http.StatusOK, len(customers), h.views(customers))
}

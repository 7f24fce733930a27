//go:build integration

package tests

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/go-petr/customer-ledger/internal/domain"
	"github.com/go-petr/customer-ledger/internal/integrationtest"
	"github.com/go-petr/customer-ledger/internal/test"
)

type response struct {
	Success bool `json:"success"`
	Data    *struct {
		Type       string          `json:"type"`
		Count      int             `json:"count"`
		Attributes json.RawMessage `json:"attributes"`
	} `json:"data"`
	Error string `json:"error"`
}

func do(t *testing.T, method, url string, body any) (int, response) {
	t.Helper()

	var reader io.Reader = http.NoBody

	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)

		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)

	recorder := httptest.NewRecorder()
	server.ServeHTTP(recorder, req)

	var res response
	require.NoError(t, json.NewDecoder(recorder.Body).Decode(&res), recorder.Body.String())

	return recorder.Code, res
}

func attributes(t *testing.T, res response) map[string]any {
	t.Helper()

	require.NotNil(t, res.Data)

	dec := json.NewDecoder(bytes.NewReader(res.Data.Attributes))
	dec.UseNumber()

	var attrs map[string]any
	require.NoError(t, dec.Decode(&attrs))

	return attrs
}

func TestCustomerLifecycleAPI(t *testing.T) {
	defer integrationtest.Flush(t, server.DB)

	for _, kind := range domain.Kinds {
		t.Run(kind.Path, func(t *testing.T) {
			base := "/" + kind.Path

			code, res := do(t, http.MethodGet, base, nil)
			require.Equal(t, http.StatusBadRequest, code)
			require.False(t, res.Success)
			require.Equal(t, fmt.Sprintf("no %ss registered", kind.Label), res.Error)

			customer := test.RandomCustomer(kind)
			input := test.CreateInput(kind, customer)
			input[kind.Key(domain.FieldPhone)] = "(" + customer.Phone[:2] + ") " + customer.Phone[2:]
			input[kind.Key(domain.FieldBalance)] = "1000.00"

			code, res = do(t, http.MethodPost, base, input)
			require.Equal(t, http.StatusCreated, code, res.Error)
			require.True(t, res.Success)
			require.Equal(t, kind.Label, res.Data.Type)

			created := attributes(t, res)
			require.Equal(t, customer.Phone, created["phone"])
			require.Equal(t, json.Number("1000.00"), created["balance"])
			require.Contains(t, created, "created_at")

			id, err := created["id"].(json.Number).Int64()
			require.NoError(t, err)

			url := fmt.Sprintf("%s/%d", base, id)

			code, res = do(t, http.MethodPost, base, input)
			require.Equal(t, http.StatusUnprocessableEntity, code)
			require.Equal(t, "email already registered", res.Error)

			code, res = do(t, http.MethodGet, url, nil)
			require.Equal(t, http.StatusOK, code)
			require.NotContains(t, attributes(t, res), "id")

			code, res = do(t, http.MethodPatch, url, map[string]any{"category": "vip", "balance": "999999"})
			require.Equal(t, http.StatusOK, code, res.Error)
			updated := attributes(t, res)
			require.Equal(t, "vip", updated["category"])
			require.Equal(t, json.Number("1000.00"), updated["balance"])

			code, res = do(t, http.MethodPost, url+"/withdraw", map[string]any{"amount": "500.00"})
			require.Equal(t, http.StatusOK, code, res.Error)
			require.Equal(t, json.Number("500.00"), attributes(t, res)["balance"])

			code, res = do(t, http.MethodPost, url+"/withdraw", map[string]any{"amount": "500.01"})
			require.Equal(t, http.StatusUnprocessableEntity, code)
			require.Equal(t, "insufficient funds: balance 500.00, withdrawal 500.01", res.Error)

			code, res = do(t, http.MethodPost, url+"/withdraw", map[string]any{"amount": 0})
			require.Equal(t, http.StatusBadRequest, code)
			require.Equal(t, domain.ErrInvalidAmount.Error(), res.Error)

			code, res = do(t, http.MethodPost, url+"/deposit", map[string]any{"amount": 1000})
			require.Equal(t, http.StatusOK, code, res.Error)
			require.Equal(t, json.Number("1500.00"), attributes(t, res)["balance"])

			code, res = do(t, http.MethodGet, url+"/balance", nil)
			require.Equal(t, http.StatusOK, code)
			require.Equal(t, json.Number("1500.00"), attributes(t, res)["balance"])

			code, res = do(t, http.MethodGet, url+"/statement", nil)
			require.Equal(t, http.StatusOK, code)
			statement := attributes(t, res)
			require.Equal(t, customer.Name, statement[kind.Key(domain.FieldName)])
			require.Equal(t, "vip", statement["category"])

			code, res = do(t, http.MethodGet, base+"/search?category=vip", nil)
			require.Equal(t, http.StatusOK, code, res.Error)
			require.Equal(t, 1, res.Data.Count)

			code, res = do(t, http.MethodGet, base+"/search?phone="+customer.Phone, nil)
			require.Equal(t, http.StatusOK, code, res.Error)
			require.Equal(t, 1, res.Data.Count)

			code, res = do(t, http.MethodGet, base, nil)
			require.Equal(t, http.StatusOK, code)
			require.Equal(t, 1, res.Data.Count)

			code, res = do(t, http.MethodDelete, url, nil)
			require.Equal(t, http.StatusOK, code)

			code, res = do(t, http.MethodDelete, url, nil)
			require.Equal(t, http.StatusNotFound, code)
			require.Equal(t, fmt.Sprintf("%s with id %d not found", kind.Label, id), res.Error)

			code, res = do(t, http.MethodPost, url+"/deposit", map[string]any{"amount": 1})
			require.Equal(t, http.StatusNotFound, code)
			require.Contains(t, res.Error, fmt.Sprint(id))
		})
	}
}

func TestCreateValidationAPI(t *testing.T) {
	defer integrationtest.Flush(t, server.DB)

	kind := domain.Individual
	input := test.CreateInput(kind, test.RandomCustomer(kind))
	delete(input, "monthly_income")

	code, res := do(t, http.MethodPost, "/individuals", input)
	require.Equal(t, http.StatusBadRequest, code)
	require.Equal(t, "monthly_income: field is required", res.Error)

	input = test.CreateInput(kind, test.RandomCustomer(kind))
	input["age"] = 17

	code, res = do(t, http.MethodPost, "/individuals", input)
	require.Equal(t, http.StatusBadRequest, code)
	require.Equal(t, "age: must be between 18 and 120", res.Error)
}

func TestSearchUnsupportedAPI(t *testing.T) {
	code, res := do(t, http.MethodGet, "/individuals/search?income_above=10", nil)
	require.Equal(t, http.StatusBadRequest, code)
	require.Equal(t, domain.ErrUnsupportedFilter.Error(), res.Error)
}

func TestMetricsAPI(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, server.Config.MetricsPath, nil)
	recorder := httptest.NewRecorder()
	server.ServeHTTP(recorder, req)

	require.Equal(t, http.StatusOK, recorder.Code)
	require.True(t, strings.Contains(recorder.Body.String(), "ledger_db_pool_open_connections"))
}

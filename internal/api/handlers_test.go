package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/punchamoorthee/creditledger/internal/notify"
	"github.com/punchamoorthee/creditledger/internal/service"
	"github.com/punchamoorthee/creditledger/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testToken = "s3cret"

func newTestServer(t *testing.T) http.Handler {
	t.Helper()
	ctx := context.Background()
	s, err := store.NewSQLite(ctx, ":memory:")
	require.NoError(t, err)
	require.NoError(t, s.Migrate(ctx))
	t.Cleanup(func() { s.Close() })

	h := NewHandler(
		service.NewLedgerService(s, time.UTC),
		service.NewSaleService(s, notify.LogNotifier{CountryCode: "55"}, time.UTC),
		service.NewCatalogService(s),
	)
	return NewRouter(h, RouterConfig{APIToken: testToken, CORSOrigins: []string{"*"}})
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+testToken)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

// seed creates a client, a product and one sale per value, returning their ids.
func seed(t *testing.T, h http.Handler, values ...float64) (clientID int64, purchaseIDs []int64) {
	t.Helper()
	rec := do(t, h, http.MethodPost, "/api/clients", map[string]any{
		"name": "Ana", "level": "CAP", "contact": "(11) 99999-0000",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	clientID = int64(decode(t, rec)["id"].(float64))

	rec = do(t, h, http.MethodPost, "/api/products", map[string]any{"name": "Soda", "price": 1, "stock": 100})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	productID := int64(decode(t, rec)["id"].(float64))

	for _, v := range values {
		rec = do(t, h, http.MethodPost, "/api/sales", map[string]any{
			"client_id": clientID,
			"value":     v,
			"products":  []map[string]any{{"product_id": productID, "quantity": 1, "price": v}},
		})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		purchaseIDs = append(purchaseIDs, int64(decode(t, rec)["id"].(float64)))
	}
	return clientID, purchaseIDs
}

func TestHealthIsOpen(t *testing.T) {
	h := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "ok", body["status"])
	assert.Contains(t, body, "uptime")
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestAuth(t *testing.T) {
	h := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/clients", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/clients", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/clients", nil)
	req.Header.Set("X-API-Key", testToken)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	h := newTestServer(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/clients/1/partial-payment", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestClearDebtEndpoint(t *testing.T) {
	h := newTestServer(t)
	clientID, _ := seed(t, h, 10, 20.5)

	rec := do(t, h, http.MethodPost, fmt.Sprintf("/api/clients/%d/clear-debt", clientID), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.EqualValues(t, 0, body["debit"])
	for _, p := range body["purchases"].([]any) {
		assert.Equal(t, true, p.(map[string]any)["paid"])
	}

	rec = do(t, h, http.MethodPost, "/api/clients/999/clear-debt", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Client not found", decode(t, rec)["error"])
}

func TestPartialPaymentEndpoint(t *testing.T) {
	h := newTestServer(t)
	clientID, ids := seed(t, h, 50, 30, 80)
	path := fmt.Sprintf("/api/clients/%d/partial-payment", clientID)

	// Amount mode.
	rec := do(t, h, http.MethodPost, path, map[string]any{"amount": 90})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.EqualValues(t, 90, body["paidAmount"])
	assert.Len(t, body["paidPurchases"], 2)
	assert.NotContains(t, body, "paidPurchaseIds")
	assert.EqualValues(t, 70, body["client"].(map[string]any)["debit"])

	// Selection mode.
	rec = do(t, h, http.MethodPost, path, map[string]any{"purchaseIds": []int64{ids[2]}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body = decode(t, rec)
	assert.EqualValues(t, 80, body["paidAmount"])
	assert.Equal(t, []any{float64(ids[2])}, body["paidPurchaseIds"])
	assert.EqualValues(t, -10, body["client"].(map[string]any)["debit"])
}

func TestPartialPaymentValidation(t *testing.T) {
	h := newTestServer(t)
	clientID, _ := seed(t, h, 10)
	path := fmt.Sprintf("/api/clients/%d/partial-payment", clientID)

	tests := []struct {
		name string
		body any
		code int
	}{
		{"empty object", map[string]any{}, http.StatusBadRequest},
		{"empty list", map[string]any{"purchaseIds": []int64{}}, http.StatusBadRequest},
		{"negative amount", map[string]any{"amount": -1}, http.StatusBadRequest},
		{"unknown field", map[string]any{"amount": 5, "tip": 1}, http.StatusBadRequest},
		{"malformed json", `{"amount":`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, path, tt.body)
			assert.Equal(t, tt.code, rec.Code, rec.Body.String())
		})
	}

	rec := do(t, h, http.MethodPost, "/api/clients/404/partial-payment", map[string]any{"amount": 5})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestClientPurchasesEndpoint(t *testing.T) {
	h := newTestServer(t)
	clientID, ids := seed(t, h, 5, 7)
	base := fmt.Sprintf("/api/clients/%d/purchases", clientID)

	rec := do(t, h, http.MethodPatch, fmt.Sprintf("/api/purchases/%d/pay", ids[0]), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(t, h, http.MethodGet, base, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.Len(t, body["purchases"], 2)
	assert.EqualValues(t, 12, body["totalValue"])
	assert.Contains(t, body["period"], "start")

	rec = do(t, h, http.MethodGet, base+"?paid=false", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 7, decode(t, rec)["totalValue"])

	rec = do(t, h, http.MethodGet, base+"?startDate=2000-01-01&endDate=2000-12-31", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode(t, rec)["purchases"])

	for _, q := range []string{"?paid=maybe", "?startDate=yesterday", "?endDate=2025-13-01"} {
		rec = do(t, h, http.MethodGet, base+q, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, q)
	}

	rec = do(t, h, http.MethodGet, "/api/clients/999/purchases", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSaleEndpointErrors(t *testing.T) {
	h := newTestServer(t)
	clientID, _ := seed(t, h)

	rec := do(t, h, http.MethodPost, "/api/sales", map[string]any{
		"client_id": clientID, "value": 3,
		"products": []map[string]any{{"product_id": 999, "quantity": 1, "price": 3}},
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/sales", map[string]any{"value": 3})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "client_id is required", decode(t, rec)["error"])
}

func TestProductEndpoints(t *testing.T) {
	h := newTestServer(t)
	seed(t, h, 2)

	rec := do(t, h, http.MethodGet, "/api/products", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var products []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &products))
	require.Len(t, products, 1)
	id := int64(products[0]["id"].(float64))
	assert.EqualValues(t, 99, products[0]["stock"])

	rec = do(t, h, http.MethodPut, fmt.Sprintf("/api/products/%d", id), map[string]any{"name": "Soda Zero", "price": 1.5, "stock": 10})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.EqualValues(t, 1.5, decode(t, rec)["price"])

	rec = do(t, h, http.MethodDelete, fmt.Sprintf("/api/products/%d", id), nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/products/12345", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestOperationalEndpoints(t *testing.T) {
	h := newTestServer(t)
	clientID, _ := seed(t, h, 20)

	rec := do(t, h, http.MethodPost, fmt.Sprintf("/api/clients/%d/debt-message", clientID), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, true, body["delivered"])
	assert.Contains(t, body["message"], "R$ 20,00")

	rec = do(t, h, http.MethodGet, "/api/audit/debit", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode(t, rec)["drifts"])

	rec = do(t, h, http.MethodGet, "/api/notifications/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "disabled", decode(t, rec)["state"])

	rec = do(t, h, http.MethodGet, "/api/sales", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var sales []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sales))
	assert.Len(t, sales, 1)
}

func TestParseDate(t *testing.T) {
	lo, err := parseDate("2025-03-10", false, time.UTC)
	require.NoError(t, err)
	assert.Equal(t, 0, lo.Hour())

	hi, err := parseDate("2025-03-10", true, time.UTC)
	require.NoError(t, err)
	assert.Equal(t, 23, hi.Hour())
	assert.Equal(t, 999999999, hi.Nanosecond())

	ts, err := parseDate("2025-03-10T12:00:00-03:00", true, time.UTC)
	require.NoError(t, err)
	assert.Equal(t, 15, ts.UTC().Hour())

	zero, err := parseDate("", false, time.UTC)
	require.NoError(t, err)
	assert.True(t, zero.IsZero())

	_, err = parseDate("10/03/2025", false, time.UTC)
	assert.Error(t, err)

	saoPaulo, err := time.LoadLocation("America/Sao_Paulo")
	require.NoError(t, err)
	day, err := parseDate("2025-03-10", false, saoPaulo)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 3, 10, 3, 0, 0, 0, time.UTC), day.UTC())
}

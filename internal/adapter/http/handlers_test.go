package adapthttp_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	adapthttp "library/internal/adapter/http"
	"library/internal/adapter/memory"
	"library/internal/app"
	"library/internal/domain"
)

// ---------------------------------------------------------------------------
// Mock store (function-fields pattern)
// ---------------------------------------------------------------------------

type mockStore struct {
	domain.Store
	inTxFn func(ctx context.Context, fn func(tx domain.Store) error) error
}

func (m *mockStore) InTx(ctx context.Context, fn func(tx domain.Store) error) error {
	if m.inTxFn != nil {
		return m.inTxFn(ctx, fn)
	}
	return m.Store.InTx(ctx, fn)
}

// ---------------------------------------------------------------------------
// Test-server helper
// ---------------------------------------------------------------------------

type testServer struct {
	*httptest.Server
	logs *observer.ObservedLogs
}

func newTestServer(t *testing.T, store domain.Store, opts ...app.ReservationOption) *testServer {
	t.Helper()
	if store == nil {
		store = memory.New()
	}
	core, logs := observer.New(zapcore.InfoLevel)
	log := zap.New(core)

	rs := app.NewReservationService(store, domain.DefaultFeePolicy(), log, opts...)
	bs := app.NewBookService(store, log)
	us := app.NewUserService(store, log)

	ts := httptest.NewServer(adapthttp.New(rs, bs, us, log).Handler())
	t.Cleanup(ts.Close)
	return &testServer{Server: ts, logs: logs}
}

func (ts *testServer) do(t *testing.T, method, path string, body any) (*http.Response, []byte) {
	t.Helper()
	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = bytes.NewBufferString(b)
	default:
		buf, err := json.Marshal(b)
		require.NoError(t, err)
		r = bytes.NewReader(buf)
	}
	req, err := http.NewRequest(method, ts.URL+path, r)
	require.NoError(t, err)
	if r != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, raw
}

func decodeBody(t *testing.T, raw []byte) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(raw, &m), "body: %s", raw)
	return m
}

func decodeList(t *testing.T, raw []byte) []map[string]any {
	t.Helper()
	var l []map[string]any
	require.NoError(t, json.Unmarshal(raw, &l), "body: %s", raw)
	return l
}

// seed creates a user (id 1) and a book (external id 258027) through the API.
func (ts *testServer) seed(t *testing.T, stock int) {
	t.Helper()
	resp, raw := ts.do(t, http.MethodPost, "/api/users", map[string]any{
		"name": "Juan Pérez", "email": "juan@example.com", "phone": "555-0101",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(raw))

	resp, raw = ts.do(t, http.MethodPost, "/api/books", map[string]any{
		"externalId": 258027, "title": "The Lord of the Rings", "author": "J. R. R. Tolkien",
		"price": 15.99, "stockQuantity": stock, "availableQuantity": stock,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(raw))
}

func (ts *testServer) reserve(t *testing.T, start string, days int) (*http.Response, map[string]any) {
	t.Helper()
	resp, raw := ts.do(t, http.MethodPost, "/api/reservations", map[string]any{
		"userId": 1, "bookExternalId": 258027, "rentalDays": days, "startDate": start,
	})
	return resp, decodeBody(t, raw)
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestHealthEndpoint(t *testing.T) {
	ts := newTestServer(t, nil)

	resp, raw := ts.do(t, http.MethodGet, "/api/health", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, decodeBody(t, raw)["ok"])
}

func TestReservationLifecycle(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.seed(t, 1)

	resp, created := ts.reserve(t, "2024-01-15", 7)
	require.Equal(t, http.StatusCreated, resp.StatusCode, created)
	assert.Equal(t, "application/json; charset=utf-8", resp.Header.Get("Content-Type"))
	assert.Equal(t, float64(1), created["id"])
	assert.Equal(t, "Juan Pérez", created["userName"])
	assert.Equal(t, float64(258027), created["bookExternalId"])
	assert.Equal(t, "The Lord of the Rings", created["bookTitle"])
	assert.Equal(t, "2024-01-15", created["startDate"])
	assert.Equal(t, "2024-01-22", created["expectedReturnDate"])
	assert.Nil(t, created["actualReturnDate"])
	assert.Equal(t, 15.99, created["dailyRate"])
	assert.Equal(t, 111.93, created["totalFee"])
	assert.Equal(t, float64(0), created["lateFee"])
	assert.Equal(t, "ACTIVE", created["status"])

	resp, raw := ts.do(t, http.MethodGet, "/api/reservations/1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, created, decodeBody(t, raw))

	resp, raw = ts.do(t, http.MethodGet, "/api/books/258027", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(0), decodeBody(t, raw)["availableQuantity"])

	resp, raw = ts.do(t, http.MethodPost, "/api/reservations/1/return", map[string]any{"returnDate": "2024-01-25"})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))
	returned := decodeBody(t, raw)
	assert.Equal(t, "RETURNED", returned["status"])
	assert.Equal(t, "2024-01-25", returned["actualReturnDate"])
	assert.Equal(t, 7.2, returned["lateFee"])

	resp, raw = ts.do(t, http.MethodPost, "/api/reservations/1/return", map[string]any{"returnDate": "2024-01-26"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Contains(t, decodeBody(t, raw)["error"], "already returned")

	resp, raw = ts.do(t, http.MethodGet, "/api/books/258027", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(1), decodeBody(t, raw)["availableQuantity"])
}

func TestCreateReservationErrors(t *testing.T) {
	tests := []struct {
		name       string
		stock      int
		body       any
		wantStatus int
	}{
		{"out of stock", 0, map[string]any{"userId": 1, "bookExternalId": 258027, "rentalDays": 7, "startDate": "2024-01-15"}, http.StatusConflict},
		{"unknown user", 1, map[string]any{"userId": 99, "bookExternalId": 258027, "rentalDays": 7, "startDate": "2024-01-15"}, http.StatusNotFound},
		{"unknown book", 1, map[string]any{"userId": 1, "bookExternalId": 1, "rentalDays": 7, "startDate": "2024-01-15"}, http.StatusNotFound},
		{"zero rental days", 1, map[string]any{"userId": 1, "bookExternalId": 258027, "rentalDays": 0, "startDate": "2024-01-15"}, http.StatusBadRequest},
		{"missing start date", 1, map[string]any{"userId": 1, "bookExternalId": 258027, "rentalDays": 7}, http.StatusBadRequest},
		{"malformed start date", 1, map[string]any{"userId": 1, "bookExternalId": 258027, "rentalDays": 7, "startDate": "15/01/2024"}, http.StatusBadRequest},
		{"malformed json", 1, `{"userId":`, http.StatusBadRequest},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ts := newTestServer(t, nil)
			ts.seed(t, tc.stock)

			resp, raw := ts.do(t, http.MethodPost, "/api/reservations", tc.body)
			assert.Equal(t, tc.wantStatus, resp.StatusCode, string(raw))
			assert.NotEmpty(t, decodeBody(t, raw)["error"])

			resp, raw = ts.do(t, http.MethodGet, "/api/reservations", nil)
			require.Equal(t, http.StatusOK, resp.StatusCode)
			assert.JSONEq(t, "[]", string(raw))
		})
	}
}

func TestReservationPathErrors(t *testing.T) {
	ts := newTestServer(t, nil)

	resp, _ := ts.do(t, http.MethodGet, "/api/reservations/abc", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = ts.do(t, http.MethodGet, "/api/reservations/42", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = ts.do(t, http.MethodPost, "/api/reservations/42/return", map[string]any{"returnDate": "2024-01-25"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = ts.do(t, http.MethodPost, "/api/reservations/42/return", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = ts.do(t, http.MethodGet, "/api/reservations?userId=abc", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestReservationQueries(t *testing.T) {
	today := time.Date(2024, time.January, 22, 9, 0, 0, 0, time.UTC)
	ts := newTestServer(t, nil, app.WithClock(func() time.Time { return today }))
	ts.seed(t, 5)

	_, r1 := ts.reserve(t, "2024-01-10", 7) // due 2024-01-17, overdue
	_, r2 := ts.reserve(t, "2024-01-15", 7) // due today
	_, r3 := ts.reserve(t, "2024-01-01", 3)
	resp, _ := ts.do(t, http.MethodPost, "/api/reservations/3/return", map[string]any{"returnDate": "2024-01-04"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, raw := ts.do(t, http.MethodGet, "/api/reservations", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	all := decodeList(t, raw)
	require.Len(t, all, 3)
	assert.Equal(t, []any{r1["id"], r2["id"], r3["id"]}, []any{all[0]["id"], all[1]["id"], all[2]["id"]})

	resp, raw = ts.do(t, http.MethodGet, "/api/reservations?userId=1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decodeList(t, raw), 3)

	resp, raw = ts.do(t, http.MethodGet, "/api/reservations?userId=2", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, "[]", string(raw))

	resp, raw = ts.do(t, http.MethodGet, "/api/reservations/active", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decodeList(t, raw), 2)

	resp, raw = ts.do(t, http.MethodGet, "/api/reservations/overdue", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	overdue := decodeList(t, raw)
	require.Len(t, overdue, 1)
	assert.Equal(t, r1["id"], overdue[0]["id"])
}

func TestUserEndpoints(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.seed(t, 1)

	resp, _ := ts.do(t, http.MethodPost, "/api/users", map[string]any{"name": "Other", "email": "JUAN@example.com"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, _ = ts.do(t, http.MethodPost, "/api/users", map[string]any{"name": "No email"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, raw := ts.do(t, http.MethodGet, "/api/users/1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "juan@example.com", decodeBody(t, raw)["email"])

	resp, _ = ts.do(t, http.MethodGet, "/api/users/99", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, raw = ts.do(t, http.MethodPut, "/api/users/1", map[string]any{"name": "Juan P.", "email": "juan@example.com"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Juan P.", decodeBody(t, raw)["name"])

	resp, raw = ts.do(t, http.MethodGet, "/api/users", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decodeList(t, raw), 1)

	resp, _ = ts.reserve(t, "2024-01-15", 7)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp, _ = ts.do(t, http.MethodDelete, "/api/users/1", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, _ = ts.do(t, http.MethodPost, "/api/users", map[string]any{"name": "Ana", "email": "ana@example.com"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp, _ = ts.do(t, http.MethodDelete, "/api/users/2", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp, _ = ts.do(t, http.MethodDelete, "/api/users/2", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestBookEndpoints(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.seed(t, 1)

	resp, _ := ts.do(t, http.MethodPost, "/api/books", map[string]any{
		"externalId": 258027, "title": "Copy", "price": 1, "stockQuantity": 1, "availableQuantity": 1,
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, _ = ts.do(t, http.MethodPost, "/api/books", map[string]any{
		"externalId": 7, "title": "Too many", "price": 1, "stockQuantity": 1, "availableQuantity": 2,
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, raw := ts.do(t, http.MethodGet, "/api/books/258027", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	book := decodeBody(t, raw)
	assert.Equal(t, 15.99, book["price"])
	assert.NotContains(t, book, "id")

	resp, _ = ts.do(t, http.MethodGet, "/api/books/1", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, raw = ts.do(t, http.MethodPut, "/api/books/258027", map[string]any{
		"title": "The Hobbit", "price": "9.50", "stockQuantity": 2, "availableQuantity": 2,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))
	assert.Equal(t, 9.5, decodeBody(t, raw)["price"])

	resp, raw = ts.do(t, http.MethodPost, "/api/books/258027/decrease", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(1), decodeBody(t, raw)["availableQuantity"])
	resp, raw = ts.do(t, http.MethodPost, "/api/books/258027/increase", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(2), decodeBody(t, raw)["availableQuantity"])

	resp, raw = ts.do(t, http.MethodGet, "/api/books", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decodeList(t, raw), 1)

	resp, _ = ts.reserve(t, "2024-01-15", 7)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp, _ = ts.do(t, http.MethodDelete, "/api/books/258027", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestStoreFailureIsHidden(t *testing.T) {
	store := &mockStore{
		Store: memory.New(),
		inTxFn: func(context.Context, func(tx domain.Store) error) error {
			return errors.New("connection refused")
		},
	}
	ts := newTestServer(t, store)

	resp, raw := ts.do(t, http.MethodGet, "/api/reservations", nil)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "internal error", decodeBody(t, raw)["error"])

	failures := ts.logs.FilterMessage("request failed").All()
	require.Len(t, failures, 1)
	assert.Contains(t, failures[0].ContextMap()["error"], "connection refused")
}

func TestUnknownRoute(t *testing.T) {
	ts := newTestServer(t, nil)

	resp, raw := ts.do(t, http.MethodGet, "/api/nope", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "route not found", decodeBody(t, raw)["error"])
}

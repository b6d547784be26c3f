package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mvtrinh/sneaker-market/internal/adapter/storage"
	"github.com/mvtrinh/sneaker-market/internal/core/domain"
	"github.com/mvtrinh/sneaker-market/internal/core/service"
)

func newTestServer(t *testing.T) (*httptest.Server, *storage.MemoryStore) {
	t.Helper()

	store := storage.NewMemoryStore()
	store.SeedVariant(domain.Variant{
		ID:        "v1",
		ProductID: "p1",
		SizeLabel: "42",
		SKU:       "SNKR-42-EU",
		Price:     decimal.RequireFromString("199.99"),
		Stock:     10,
	})

	h := NewHTTPHandler(
		service.NewAvailability(store),
		service.NewReservationManager(store, service.ReservationConfig{}),
		service.NewCart(store),
		service.NewCheckout(store, nil, nil),
		service.NewExpiredCartArchive(store, 0),
	)

	srv := httptest.NewServer(h.Router())
	t.Cleanup(srv.Close)
	return srv, store
}

func doJSON(t *testing.T, method, url string, headers map[string]string, body any) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestReserve_Success(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/reservations",
		map[string]string{"X-Session-ID": "sess-1"},
		map[string]any{"variant_id": "v1", "quantity": 3})

	require.Equal(t, http.StatusCreated, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Equal(t, "v1", body["variant_id"])
	assert.EqualValues(t, 3, body["quantity"])
	assert.NotEmpty(t, body["id"])
	assert.NotEmpty(t, body["expires_at"])
}

func TestReserve_InsufficientStockPayload(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/reservations",
		map[string]string{"X-Session-ID": "sess-1"},
		map[string]any{"variant_id": "v1", "quantity": 11})

	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Equal(t, "insufficient_stock", body["kind"])
	assert.EqualValues(t, 10, body["available_stock"])
	assert.Equal(t, "v1", body["variant_id"])
}

func TestReserve_BothIdentityHeaders(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/reservations",
		map[string]string{"X-User-ID": "u1", "X-Session-ID": "sess-1"},
		map[string]any{"variant_id": "v1", "quantity": 1})

	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestReserve_UnknownVariant(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/reservations",
		map[string]string{"X-Session-ID": "sess-1"},
		map[string]any{"variant_id": "nope", "quantity": 1})

	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAvailableStock_ReflectsReservations(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/reservations",
		map[string]string{"X-Session-ID": "sess-1"},
		map[string]any{"variant_id": "v1", "quantity": 4})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/variants/v1/available-stock",
		map[string]string{"X-Session-ID": "sess-2"}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.EqualValues(t, 6, body["available_stock"])
}

func TestExtend_NoHoldIsBadRequest(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/reservations/extend",
		map[string]string{"X-Session-ID": "sess-1"},
		map[string]any{"variant_id": "v1", "extra_seconds": 600})

	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Equal(t, "not_found", body["kind"])
}

func TestCleanupReservations_AdminOnly(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/reservations/cleanup",
		map[string]string{"X-User-ID": "u1"}, nil)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = doJSON(t, http.MethodPost, srv.URL+"/api/reservations/cleanup",
		map[string]string{"X-User-ID": "u1", "X-User-Role": "admin"}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestCheckout_FullFlow(t *testing.T) {
	srv, store := newTestServer(t)
	auth := map[string]string{"X-User-ID": "u1"}

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/cart/items", auth,
		map[string]any{"variant_id": "v1", "quantity": 2})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = doJSON(t, http.MethodPost, srv.URL+"/api/checkout", auth,
		map[string]any{"shipping_address": "1 Main St", "payment_method": "card"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, "pending", body["status"])
	assert.Equal(t, "399.98", body["total_amount"])
	orderID, _ := body["id"].(string)
	require.NotEmpty(t, orderID)

	assert.Equal(t, 8, store.VariantStock("v1"))

	// cart was consumed
	resp = doJSON(t, http.MethodGet, srv.URL+"/api/cart", auth, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	cart := decodeBody(t, resp)
	assert.Empty(t, cart["items"])

	// owner cancels, stock comes back
	resp = doJSON(t, http.MethodPut, srv.URL+"/api/orders/"+orderID+"/status", auth,
		map[string]any{"status": "cancelled"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 10, store.VariantStock("v1"))
}

func TestCheckout_EmptyCart(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/checkout",
		map[string]string{"X-User-ID": "u1"}, map[string]any{})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCheckout_AnonymousRejected(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/checkout",
		map[string]string{"X-Session-ID": "sess-1"}, map[string]any{})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestOrder_HiddenFromStrangers(t *testing.T) {
	srv, _ := newTestServer(t)
	owner := map[string]string{"X-User-ID": "u1"}

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/cart/items", owner,
		map[string]any{"variant_id": "v1", "quantity": 1})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp = doJSON(t, http.MethodPost, srv.URL+"/api/checkout", owner, map[string]any{})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	orderID := decodeBody(t, resp)["id"].(string)

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/orders/"+orderID,
		map[string]string{"X-User-ID": "stranger"}, nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/orders/"+orderID,
		map[string]string{"X-User-ID": "ops", "X-User-Role": "admin"}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestUpdateOrderStatus_CustomerCannotAdvance(t *testing.T) {
	srv, _ := newTestServer(t)
	owner := map[string]string{"X-User-ID": "u1"}

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/cart/items", owner,
		map[string]any{"variant_id": "v1", "quantity": 1})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp = doJSON(t, http.MethodPost, srv.URL+"/api/checkout", owner, map[string]any{})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	orderID := decodeBody(t, resp)["id"].(string)

	resp = doJSON(t, http.MethodPut, srv.URL+"/api/orders/"+orderID+"/status", owner,
		map[string]any{"status": "confirmed"})
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = doJSON(t, http.MethodPut, srv.URL+"/api/orders/"+orderID+"/status",
		map[string]string{"X-User-ID": "seller", "X-User-Role": "seller"},
		map[string]any{"status": "confirmed"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "confirmed", decodeBody(t, resp)["status"])
}

func TestUpdateOrderStatus_InvalidTransition(t *testing.T) {
	srv, _ := newTestServer(t)
	owner := map[string]string{"X-User-ID": "u1"}
	seller := map[string]string{"X-User-ID": "s1", "X-User-Role": "seller"}

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/cart/items", owner,
		map[string]any{"variant_id": "v1", "quantity": 1})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp = doJSON(t, http.MethodPost, srv.URL+"/api/checkout", owner, map[string]any{})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	orderID := decodeBody(t, resp)["id"].(string)

	// pending cannot jump straight to shipped
	resp = doJSON(t, http.MethodPut, srv.URL+"/api/orders/"+orderID+"/status", seller,
		map[string]any{"status": "shipped"})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCartUpdateAndRemove(t *testing.T) {
	srv, _ := newTestServer(t)
	auth := map[string]string{"X-User-ID": "u1"}

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/cart/items", auth,
		map[string]any{"variant_id": "v1", "quantity": 2})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = doJSON(t, http.MethodPut, srv.URL+"/api/cart/items/v1", auth,
		map[string]any{"quantity": 5})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 5, decodeBody(t, resp)["quantity"])

	resp = doJSON(t, http.MethodDelete, srv.URL+"/api/cart/items/v1", auth, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/cart", auth, nil)
	assert.Empty(t, decodeBody(t, resp)["items"])
}

func TestExpiredCart_SaveHistoryReorder(t *testing.T) {
	srv, _ := newTestServer(t)
	auth := map[string]string{"X-User-ID": "u1"}

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/expired-cart/save", auth,
		map[string]any{"items": []map[string]any{{"variant_id": "v1", "quantity": 2}}})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/expired-cart/history", auth, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	records := decodeBody(t, resp)["records"].([]any)
	require.Len(t, records, 1)
	rec := records[0].(map[string]any)
	assert.Equal(t, "199.99", rec["unit_price"])
	recordID := rec["id"].(string)

	resp = doJSON(t, http.MethodPost, srv.URL+"/api/expired-cart/reorder-to-cart/"+recordID, auth, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 2, decodeBody(t, resp)["quantity"])

	// record is gone after reorder
	resp = doJSON(t, http.MethodPost, srv.URL+"/api/expired-cart/reorder-to-cart/"+recordID, auth, nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestExpiredCartCleanup_AdminOnly(t *testing.T) {
	srv, _ := newTestServer(t)

	req, err := http.NewRequest(http.MethodDelete, srv.URL+"/api/expired-cart/cleanup?daysOld=30", nil)
	require.NoError(t, err)
	req.Header.Set("X-User-ID", "u1")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	req2, err := http.NewRequest(http.MethodDelete, srv.URL+"/api/expired-cart/cleanup?daysOld=30", nil)
	require.NoError(t, err)
	req2.Header.Set("X-User-ID", "u1")
	req2.Header.Set("X-User-Role", "admin")
	resp2, err := http.DefaultClient.Do(req2)
	require.NoError(t, err)
	defer resp2.Body.Close()
	require.Equal(t, http.StatusOK, resp2.StatusCode)
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

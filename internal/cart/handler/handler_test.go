package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"storefront/internal/auth"
	cartservice "storefront/internal/cart/service"
	"storefront/internal/cart/store/snapshot"
	"storefront/internal/checkout"
	"storefront/internal/settings"
)

// HandlerSuite exercises the HTTP surface against real components: a real
// cart service over a memory store, a real coordinator, and an httptest
// order backend.
type HandlerSuite struct {
	suite.Suite
	router http.Handler
	cart   *cartservice.Service
	store  *snapshot.MemoryStore

	backend      *httptest.Server
	backendMu    sync.Mutex
	backendCalls int
	backendCode  int
	backendBody  string
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))

	s.backendCode = http.StatusCreated
	s.backendBody = `{"orderId":"o-1","clientSecret":"cs"}`
	s.backendCalls = 0
	s.backend = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.backendMu.Lock()
		s.backendCalls++
		code, body := s.backendCode, s.backendBody
		s.backendMu.Unlock()
		w.WriteHeader(code)
		_, _ = w.Write([]byte(body))
	}))
	s.T().Cleanup(s.backend.Close)

	defaults := settings.Snapshot{
		VATRatePercent:        decimal.NewFromInt(22),
		ShippingCost:          decimal.NewFromInt(10),
		FreeShippingThreshold: decimal.NewFromInt(100),
	}
	// No settings endpoint in these tests; defaults apply throughout.
	provider := settings.NewProvider("http://127.0.0.1:1/settings/", defaults, settings.WithLogger(logger))

	s.store = snapshot.NewMemory(logger)
	cart, err := cartservice.New(context.Background(), s.store, provider, cartservice.WithLogger(logger))
	s.Require().NoError(err)
	s.cart = cart

	orders := checkout.NewHTTPOrderService(s.backend.URL, checkout.WithClientLogger(logger))
	coordinator, err := checkout.NewCoordinator(cart, auth.Vetted(auth.FromRequest()), orders, checkout.WithLogger(logger))
	s.Require().NoError(err)

	r := chi.NewRouter()
	New(cart, coordinator, logger).Register(r)
	s.router = r
}

func (s *HandlerSuite) do(method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, bytes.NewReader([]byte(body)))
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *HandlerSuite) decodeCart(rec *httptest.ResponseRecorder) map[string]any {
	var view map[string]any
	s.Require().NoError(json.NewDecoder(rec.Body).Decode(&view))
	return view
}

func (s *HandlerSuite) TestGetEmptyCart() {
	rec := s.do(http.MethodGet, "/cart", "", nil)
	s.Equal(http.StatusOK, rec.Code)

	view := s.decodeCart(rec)
	s.Empty(view["items"])
	s.Equal("0", view["subtotal"])
	s.Equal("0", view["shipping"])
	s.Equal("0", view["total"])
}

func (s *HandlerSuite) TestAddItem() {
	rec := s.do(http.MethodPost, "/cart/items",
		`{"product":{"id":"p1","name":"Cream","price":"€10.00","image":"cream.jpg","type":"skincare"},"quantity":2}`, nil)
	s.Require().Equal(http.StatusOK, rec.Code)

	view := s.decodeCart(rec)
	items := view["items"].([]any)
	s.Require().Len(items, 1)
	item := items[0].(map[string]any)
	s.Equal("p1", item["id"])
	s.Equal("12.2", item["price"], "net 10.00 at default VAT 22%")
	s.Equal(float64(2), item["quantity"])
	s.Equal(true, view["is_open"])
	s.Equal("24.4", view["subtotal"])
	s.Equal("10", view["shipping"])
	s.Equal("34.4", view["total"])
}

func (s *HandlerSuite) TestAddItemInvalidJSON() {
	rec := s.do(http.MethodPost, "/cart/items", `{"product":`, nil)
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *HandlerSuite) TestRemoveItem() {
	s.do(http.MethodPost, "/cart/items", `{"product":{"id":"p1","name":"Cream","price":10},"quantity":1}`, nil)

	rec := s.do(http.MethodDelete, "/cart/items/p1", "", nil)
	s.Equal(http.StatusOK, rec.Code)
	s.Empty(s.decodeCart(rec)["items"])
}

func (s *HandlerSuite) TestIncrementDecrement() {
	s.do(http.MethodPost, "/cart/items", `{"product":{"id":"p1","name":"Cream","price":10},"quantity":1}`, nil)

	rec := s.do(http.MethodPost, "/cart/items/p1/increment", "", nil)
	items := s.decodeCart(rec)["items"].([]any)
	s.Equal(float64(2), items[0].(map[string]any)["quantity"])

	rec = s.do(http.MethodPost, "/cart/items/p1/decrement", "", nil)
	items = s.decodeCart(rec)["items"].([]any)
	s.Equal(float64(1), items[0].(map[string]any)["quantity"])

	rec = s.do(http.MethodPost, "/cart/items/p1/decrement", "", nil)
	s.Empty(s.decodeCart(rec)["items"], "decrementing quantity 1 removes the line")
}

func (s *HandlerSuite) TestToggle() {
	rec := s.do(http.MethodPost, "/cart/toggle", "", nil)
	s.Equal(true, s.decodeCart(rec)["is_open"])

	rec = s.do(http.MethodPost, "/cart/toggle", "", nil)
	s.Equal(false, s.decodeCart(rec)["is_open"])
}

func (s *HandlerSuite) TestCheckoutWithoutCredential() {
	s.do(http.MethodPost, "/cart/items", `{"product":{"id":"p1","name":"Cream","price":10},"quantity":1}`, nil)

	rec := s.do(http.MethodPost, "/cart/checkout", `{"shipping_address":{},"billing_address":{}}`, nil)
	s.Equal(http.StatusUnauthorized, rec.Code)

	s.backendMu.Lock()
	calls := s.backendCalls
	s.backendMu.Unlock()
	s.Zero(calls, "order service must receive zero calls")
	s.Len(s.cart.Lines(), 1, "cart untouched")
}

func (s *HandlerSuite) TestCheckoutSuccess() {
	s.do(http.MethodPost, "/cart/items", `{"product":{"id":"p1","name":"Cream","price":10},"quantity":1}`, nil)

	rec := s.do(http.MethodPost, "/cart/checkout",
		`{"shipping_address":{"street":"Via Roma 1","city":"Milano"},"billing_address":{"street":"Via Roma 1","city":"Milano"}}`,
		map[string]string{"Authorization": "Bearer tok-1"})
	s.Require().Equal(http.StatusCreated, rec.Code)

	var confirmation map[string]any
	s.Require().NoError(json.NewDecoder(rec.Body).Decode(&confirmation))
	s.Equal("o-1", confirmation["orderId"])

	s.Empty(s.cart.Lines(), "confirmed checkout clears the cart")
	persisted, err := s.store.Load(context.Background())
	s.Require().NoError(err)
	s.Empty(persisted)
}

func (s *HandlerSuite) TestCheckoutRejected() {
	s.do(http.MethodPost, "/cart/items", `{"product":{"id":"p1","name":"Cream","price":10},"quantity":1}`, nil)

	s.backendMu.Lock()
	s.backendCode = http.StatusBadRequest
	s.backendBody = `{"detail":"insufficient stock"}`
	s.backendMu.Unlock()

	rec := s.do(http.MethodPost, "/cart/checkout", `{"shipping_address":{},"billing_address":{}}`,
		map[string]string{"Authorization": "Bearer tok-1"})
	s.Equal(http.StatusUnprocessableEntity, rec.Code)

	var body map[string]string
	s.Require().NoError(json.NewDecoder(rec.Body).Decode(&body))
	s.Equal("checkout_rejected", body["error"])
	s.Equal("insufficient stock", body["error_description"])

	s.Len(s.cart.Lines(), 1, "cart unchanged on rejection")
}

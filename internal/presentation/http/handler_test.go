package httppresentation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	appOrder "github.com/Zhima-Mochi/minishop-fulfillment/internal/application/order"
	"github.com/Zhima-Mochi/minishop-fulfillment/internal/domain/account"
	"github.com/Zhima-Mochi/minishop-fulfillment/internal/domain/inventory"
	domainOrder "github.com/Zhima-Mochi/minishop-fulfillment/internal/domain/order"
	"github.com/Zhima-Mochi/minishop-fulfillment/internal/domain/product"
	"github.com/Zhima-Mochi/minishop-fulfillment/internal/infrastructure/memory"
	"github.com/Zhima-Mochi/minishop-fulfillment/internal/infrastructure/observability/prometrics"
	"github.com/Zhima-Mochi/minishop-fulfillment/internal/infrastructure/observability/telemetry"
	"github.com/Zhima-Mochi/minishop-fulfillment/internal/infrastructure/observability/zaplogger"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type server struct {
	*httptest.Server
	products *memory.ProductCatalog
	reg      *prometheus.Registry
	logs     *observer.ObservedLogs
}

func newServer(t *testing.T) *server {
	t.Helper()

	core, logs := observer.New(zap.InfoLevel)
	logger := zaplogger.New(zap.New(core))
	reg := prometheus.NewRegistry()
	counters, histograms := prometrics.Standard(prometrics.New(reg, "minishop", ""))
	tel := telemetry.New(nil, logger, counters, histograms)

	accounts := memory.NewAccountDirectory()
	accounts.Put(1, account.StatusActive)
	accounts.Put(2, account.StatusInactive)
	products := memory.NewProductCatalog(
		product.Snapshot{ID: 10, Name: "Pen", Price: decimal.RequireFromString("1.50"), SaleStatus: product.SaleStatusSellable, StockQty: 10, Version: 1},
		product.Snapshot{ID: 20, Name: "Ink", Price: decimal.RequireFromString("2.00"), SaleStatus: product.SaleStatusSellable, StockQty: 5, Version: 1},
	)

	svc := appOrder.NewService(memory.NewOrderRepository(), accounts, products, nil, tel)
	h := NewHandler(svc, logger, tel)
	srv := httptest.NewServer(h.Router(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))
	t.Cleanup(srv.Close)

	return &server{Server: srv, products: products, reg: reg, logs: logs}
}

func (s *server) do(t *testing.T, method, path, body string) (*http.Response, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, s.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	}
	return resp, out
}

func (s *server) stock(t *testing.T, id int64) int {
	t.Helper()
	p, ok := s.products.Get(id)
	require.True(t, ok)
	return p.StockQty
}

func TestOrderLifecycleOverHTTP(t *testing.T) {
	s := newServer(t)

	resp, body := s.do(t, http.MethodPost, "/orders",
		`{"account_id":1,"items":[{"product_id":10,"quantity":2},{"product_id":20,"quantity":1}]}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
	orderID := int64(body["order_id"].(float64))
	assert.Equal(t, fmt.Sprintf("/orders/%d", orderID), resp.Header.Get("Location"))
	assert.Equal(t, 8, s.stock(t, 10))
	assert.Equal(t, 4, s.stock(t, 20))

	resp, body = s.do(t, http.MethodGet, fmt.Sprintf("/orders/%d", orderID), "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "5", body["total"])
	assert.Len(t, body["lines"], 2)

	resp, body = s.do(t, http.MethodPut, fmt.Sprintf("/orders/%d", orderID),
		fmt.Sprintf(`{"status":%d,"items":[{"product_id":10,"quantity":5}]}`, domainOrder.StatusPending))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(2), body["version"])
	assert.Equal(t, 5, s.stock(t, 10))
	assert.Equal(t, 5, s.stock(t, 20))

	resp, body = s.do(t, http.MethodGet, "/accounts/1/orders", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, body["orders"], 1)

	resp, body = s.do(t, http.MethodDelete, fmt.Sprintf("/orders/%d", orderID), "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, body["restored"], 1)
	assert.Equal(t, 10, s.stock(t, 10))

	resp, _ = s.do(t, http.MethodGet, fmt.Sprintf("/orders/%d", orderID), "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, body = s.do(t, http.MethodGet, "/accounts/1/orders", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, body["orders"])
}

func TestCreateOrderErrorStatuses(t *testing.T) {
	tests := []struct {
		name string
		body string
		want int
	}{
		{name: "malformed", body: `{"account_id":`, want: http.StatusBadRequest},
		{name: "unknown field", body: `{"account_id":1,"sku":"x"}`, want: http.StatusBadRequest},
		{name: "no items", body: `{"account_id":1,"items":[]}`, want: http.StatusBadRequest},
		{name: "unknown account", body: `{"account_id":9,"items":[{"product_id":10,"quantity":1}]}`, want: http.StatusNotFound},
		{name: "inactive account", body: `{"account_id":2,"items":[{"product_id":10,"quantity":1}]}`, want: http.StatusUnprocessableEntity},
		{name: "no known products", body: `{"account_id":1,"items":[{"product_id":99,"quantity":1}]}`, want: http.StatusNotFound},
		{name: "insufficient stock", body: `{"account_id":1,"items":[{"product_id":20,"quantity":6}]}`, want: http.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newServer(t)
			resp, body := s.do(t, http.MethodPost, "/orders", tt.body)
			assert.Equal(t, tt.want, resp.StatusCode)
			assert.NotEmpty(t, body["error"])
			assert.Equal(t, 10, s.stock(t, 10))
			assert.Equal(t, 5, s.stock(t, 20))
		})
	}
}

func TestInvalidPathIDs(t *testing.T) {
	s := newServer(t)

	resp, _ := s.do(t, http.MethodGet, "/orders/abc", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = s.do(t, http.MethodDelete, "/orders/0", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = s.do(t, http.MethodGet, "/accounts/-1/orders", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestMiddlewareRecordsRouteTemplate(t *testing.T) {
	s := newServer(t)

	resp, _ := s.do(t, http.MethodGet, "/orders/12345", "")
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	expected := `
# HELP minishop_http_requests_total Total number of HTTP requests.
# TYPE minishop_http_requests_total counter
minishop_http_requests_total{method="GET",route="/orders/{orderID}",status="404"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(s.reg, strings.NewReader(expected), "minishop_http_requests_total"))

	access := s.logs.FilterMessage("http_access").All()
	require.Len(t, access, 1)
	fields := access[0].ContextMap()
	assert.Equal(t, "/orders/{orderID}", fields["route"])
	assert.Equal(t, "/orders/12345", fields["path"])
	assert.NotEmpty(t, fields["request_id"])
}

func TestRequestIDIsEchoed(t *testing.T) {
	s := newServer(t)
	req, err := http.NewRequest(http.MethodGet, s.URL+"/accounts/1/orders", nil)
	require.NoError(t, err)
	req.Header.Set(headerRequestID, "req-42")

	resp, err := s.Client().Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "req-42", resp.Header.Get(headerRequestID))
}

func TestHealthAndMetrics(t *testing.T) {
	s := newServer(t)

	resp, _ := s.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = s.do(t, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestStatusOf(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("x: %w", domainOrder.ErrInvalidRequest), http.StatusBadRequest},
		{inventory.ErrInvalidQuantity, http.StatusBadRequest},
		{domainOrder.ErrNotFound, http.StatusNotFound},
		{product.ErrNotFound, http.StatusNotFound},
		{account.ErrNotFound, http.StatusNotFound},
		{account.ErrInactive, http.StatusUnprocessableEntity},
		{product.ErrNotSellable, http.StatusUnprocessableEntity},
		{&inventory.InsufficientStockError{ProductID: 1}, http.StatusConflict},
		{domainOrder.ErrInvalidState, http.StatusConflict},
		{domainOrder.ErrConflict, http.StatusConflict},
		{product.ErrStockConflict, http.StatusConflict},
		{fmt.Errorf("%w: %w", appOrder.ErrGateway, errors.New("dial")), http.StatusBadGateway},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		{fmt.Errorf("%w: %w", appOrder.ErrRepository, errors.New("disk")), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusOf(tt.err), tt.err.Error())
	}
}

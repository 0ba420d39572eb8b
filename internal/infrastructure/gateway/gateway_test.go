package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/Zhima-Mochi/minishop-fulfillment/internal/domain/account"
	"github.com/Zhima-Mochi/minishop-fulfillment/internal/domain/product"
	"github.com/Zhima-Mochi/minishop-fulfillment/internal/infrastructure/observability/prometrics"
	"github.com/Zhima-Mochi/minishop-fulfillment/internal/infrastructure/observability/telemetry"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccountClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/accounts/1":
			_ = json.NewEncoder(w).Encode(map[string]any{"id": 1, "status": "active"})
		case "/accounts/2":
			_ = json.NewEncoder(w).Encode(map[string]any{"id": 2, "status": "inactive"})
		case "/accounts/3":
			_ = json.NewEncoder(w).Encode(map[string]any{"id": 3, "status": "frozen"})
		case "/accounts/500":
			http.Error(w, "boom", http.StatusInternalServerError)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := NewAccountClient(srv.URL+"/", srv.Client(), nil)
	ctx := context.Background()

	st, err := c.GetAccountStatus(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, account.StatusActive, st)

	st, err = c.GetAccountStatus(ctx, 2)
	require.NoError(t, err)
	assert.False(t, st.Active())

	_, err = c.GetAccountStatus(ctx, 9)
	assert.ErrorIs(t, err, account.ErrNotFound)

	_, err = c.GetAccountStatus(ctx, 3)
	assert.Error(t, err)

	_, err = c.GetAccountStatus(ctx, 500)
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusInternalServerError, se.Code)
	assert.Equal(t, "boom", se.Body)
}

func TestProductClientFetchesInChunks(t *testing.T) {
	var (
		mu    sync.Mutex
		calls []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/products", r.URL.Path)
		raw := r.URL.Query().Get("ids")
		mu.Lock()
		calls = append(calls, raw)
		mu.Unlock()

		var resp productsResponse
		for _, s := range strings.Split(raw, ",") {
			id, _ := strconv.ParseInt(s, 10, 64)
			if id%2 == 0 {
				continue // even ids do not exist
			}
			resp.Products = append(resp.Products, product.Snapshot{
				ID: id, Name: "p" + s, Price: decimal.NewFromInt(id),
				SaleStatus: product.SaleStatusSellable, StockQty: 1, Version: 1,
			})
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	reg := prometheus.NewRegistry()
	counters, histograms := prometrics.Standard(prometrics.New(reg, "", ""))
	c := NewProductClient(srv.URL, 2, srv.Client(), telemetry.New(nil, nil, counters, histograms))

	got, err := c.GetProductDetails(context.Background(), []int64{1, 2, 3, 4, 5})
	require.NoError(t, err)
	assert.Len(t, got, 3)
	assert.True(t, got[5].Price.Equal(decimal.NewFromInt(5)))

	sort.Strings(calls)
	assert.Equal(t, []string{"1,2", "3,4", "5"}, calls)

	expected := `
# HELP external_requests_total Total number of calls to external services.
# TYPE external_requests_total counter
external_requests_total{endpoint="GET /products",outcome="success",peer="product-service"} 3
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "external_requests_total"))
}

func TestProductClientApplyStockDeltas(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		wantErr error
	}{
		{"applied", http.StatusNoContent, nil},
		{"conflict", http.StatusConflict, product.ErrStockConflict},
		{"missing", http.StatusNotFound, product.ErrNotFound},
		{"negative", http.StatusUnprocessableEntity, product.ErrInvalidStock},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got stockRequest
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodPost, r.Method)
				assert.Equal(t, "/products/stock", r.URL.Path)
				assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
				assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			c := NewProductClient(srv.URL, 0, srv.Client(), nil)
			updates := []product.StockUpdate{{ProductID: 1, ExpectedVersion: 3, NewStock: 7}}
			err := c.ApplyStockDeltas(context.Background(), updates)
			if tt.wantErr == nil {
				require.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
			assert.Equal(t, updates, got.Updates)
		})
	}
}

func TestProductClientServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewProductClient(srv.URL, 0, srv.Client(), nil)
	_, err := c.GetProductDetails(context.Background(), []int64{1})
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusBadGateway, se.Code)

	empty, err := c.GetProductDetails(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

package gateway

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/Zhima-Mochi/minishop-fulfillment/internal/domain/product"
	"github.com/Zhima-Mochi/minishop-fulfillment/internal/observability"

	"golang.org/x/sync/errgroup"
)

const (
	peerProduct          = "product-service"
	endpointListProducts = "GET /products"
	endpointApplyStock   = "POST /products/stock"

	DefaultBatchSize = 50
)

// ProductClient reads products and writes stock on the product service.
// Large id sets are fetched in concurrent chunks of batchSize.
type ProductClient struct {
	client
	batchSize int
}

func NewProductClient(baseURL string, batchSize int, hc *http.Client, tel observability.Observability) *ProductClient {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &ProductClient{
		client:    newClient(baseURL, peerProduct, hc, tel),
		batchSize: batchSize,
	}
}

type productsResponse struct {
	Products []product.Snapshot `json:"products"`
}

type stockRequest struct {
	Updates []product.StockUpdate `json:"updates"`
}

func (c *ProductClient) GetProductDetails(ctx context.Context, ids []int64) (map[int64]product.Snapshot, error) {
	out := make(map[int64]product.Snapshot, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < len(ids); i += c.batchSize {
		end := i + c.batchSize
		if end > len(ids) {
			end = len(ids)
		}
		chunk := ids[i:end]

		g.Go(func() error {
			found, err := c.fetch(gctx, chunk)
			if err != nil {
				return err
			}
			mu.Lock()
			for _, p := range found {
				out[p.ID] = p
			}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *ProductClient) fetch(ctx context.Context, ids []int64) ([]product.Snapshot, error) {
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, strconv.FormatInt(id, 10))
	}
	q := url.Values{"ids": []string{strings.Join(parts, ",")}}

	var body productsResponse
	code, msg, err := c.do(ctx, http.MethodGet, endpointListProducts, "/products?"+q.Encode(), nil, &body)
	if err != nil {
		return nil, err
	}
	if code < 200 || code >= 300 {
		return nil, &StatusError{Endpoint: endpointListProducts, Code: code, Body: msg}
	}
	return body.Products, nil
}

func (c *ProductClient) ApplyStockDeltas(ctx context.Context, updates []product.StockUpdate) error {
	if len(updates) == 0 {
		return nil
	}
	code, msg, err := c.do(ctx, http.MethodPost, endpointApplyStock, "/products/stock", stockRequest{Updates: updates}, nil)
	if err != nil {
		return err
	}
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusNotFound:
		return fmt.Errorf("%w: %s", product.ErrNotFound, msg)
	case code == http.StatusConflict:
		return fmt.Errorf("%w: %s", product.ErrStockConflict, msg)
	case code == http.StatusUnprocessableEntity:
		return fmt.Errorf("%w: %s", product.ErrInvalidStock, msg)
	default:
		return &StatusError{Endpoint: endpointApplyStock, Code: code, Body: msg}
	}
}

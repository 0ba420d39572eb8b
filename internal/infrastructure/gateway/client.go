// Package gateway holds HTTP clients for the account and product services.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Zhima-Mochi/minishop-fulfillment/internal/observability"
	"github.com/Zhima-Mochi/minishop-fulfillment/internal/observability/logctx"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

const maxErrorBody = 4 << 10

// StatusError is returned for responses the client has no mapping for.
type StatusError struct {
	Endpoint string
	Code     int
	Body     string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("gateway: %s returned %d", e.Endpoint, e.Code)
	}
	return fmt.Sprintf("gateway: %s returned %d: %s", e.Endpoint, e.Code, e.Body)
}

// client is the shared JSON-over-HTTP plumbing of every gateway.
type client struct {
	baseURL string
	http    *http.Client
	peer    string
	log     observability.Logger

	extCounter   observability.Counter   // external_requests_total{peer,endpoint,outcome}
	extHistogram observability.Histogram // external_request_duration_seconds{peer,endpoint}
}

func newClient(baseURL, peer string, hc *http.Client, tel observability.Observability) client {
	if hc == nil {
		hc = &http.Client{Timeout: 5 * time.Second}
	}
	if tel == nil {
		tel = observability.Nop()
	}
	m := tel.Metrics()
	return client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		http:         hc,
		peer:         peer,
		log:          tel.Logger().With(observability.F("component", "gateway"), observability.F("peer", peer)),
		extCounter:   m.Counter(observability.MExternalRequests),
		extHistogram: m.Histogram(observability.MExternalRequestDuration),
	}
}

// do sends body (when non-nil) as JSON and returns the response status.
// 2xx bodies are decoded into out; other bodies are returned truncated.
func (c *client) do(ctx context.Context, method, endpoint, path string, body, out any) (status int, errBody string, err error) {
	start := time.Now()
	outcome := "success"
	defer func() {
		c.extCounter.Add(1,
			observability.L("peer", c.peer),
			observability.L("endpoint", endpoint),
			observability.L("outcome", outcome),
		)
		c.extHistogram.Observe(time.Since(start).Seconds(),
			observability.L("peer", c.peer),
			observability.L("endpoint", endpoint),
		)
	}()

	var rdr io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			outcome = "error"
			return 0, "", fmt.Errorf("gateway: encode %s: %w", endpoint, err)
		}
		rdr = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		outcome = "error"
		return 0, "", fmt.Errorf("gateway: build %s: %w", endpoint, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := c.http.Do(req)
	if err != nil {
		outcome = "error"
		if ctx.Err() != nil {
			outcome = "canceled"
		}
		logctx.FromOr(ctx, c.log).Warn("gateway_request_failed",
			observability.F("endpoint", endpoint),
			observability.F("error", err.Error()),
		)
		return 0, "", fmt.Errorf("gateway: %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		outcome = "rejected"
		if resp.StatusCode >= 500 {
			outcome = "error"
		}
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return resp.StatusCode, strings.TrimSpace(string(b)), nil
	}

	if out != nil && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			outcome = "error"
			return resp.StatusCode, "", fmt.Errorf("gateway: decode %s: %w", endpoint, err)
		}
	}
	return resp.StatusCode, "", nil
}

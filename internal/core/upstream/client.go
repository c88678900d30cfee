package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/tidwall/gjson"
	"github.com/vektah/gqlparser/v2/gqlerror"
	"go.uber.org/zap"

	"github.com/xzzpig/graph-gateway/internal/core/errs"
	"github.com/xzzpig/graph-gateway/internal/core/logger"
)

// ErrUpstreamStatus is wrapped when an upstream answers with an HTTP error and
// no GraphQL payload.
var ErrUpstreamStatus = fmt.Errorf("%w: upstream returned an error status", errs.ErrUnavailable)

// maxResponseBytes caps how much of an upstream response is read.
const maxResponseBytes = 32 << 20

// Request is the GraphQL-over-HTTP body sent upstream.
type Request struct {
	Query         string         `json:"query"`
	OperationName string         `json:"operationName,omitempty"`
	Variables     map[string]any `json:"variables,omitempty"`
}

// Result is an upstream GraphQL response. Data is nil when the upstream
// returned no data or null.
type Result struct {
	Data   json.RawMessage
	Errors gqlerror.List
}

// Client posts GraphQL requests to upstream services.
type Client struct {
	http   *http.Client
	logger *zap.Logger
}

// NewHTTPClient builds the pooled HTTP client used for upstream calls.
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: timeout,
	}
	return &http.Client{Transport: transport, Timeout: timeout}
}

// NewClient creates a Client. A nil httpClient uses NewHTTPClient(0).
func NewClient(httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = NewHTTPClient(0)
	}
	return &Client{
		http:   httpClient,
		logger: logger.Named("core.upstream"),
	}
}

// Do sends req to svc and decodes the GraphQL response.
func (c *Client) Do(ctx context.Context, svc Service, req Request) (*Result, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request for %s: %w", svc.Name, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, svc.URL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build request for %s: %w", svc.Name, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/graphql-response+json, application/json")

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", errs.ErrUnavailable, svc.Name, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: reading response of %s: %v", errs.ErrUnavailable, svc.Name, err)
	}

	c.logger.Debug("Upstream call finished",
		zap.String("service", svc.Name),
		zap.Int("status", resp.StatusCode),
		zap.Duration("latency", time.Since(start)),
	)

	result, err := decodeResult(payload)
	if resp.StatusCode >= http.StatusBadRequest && (err != nil || (result.Data == nil && len(result.Errors) == 0)) {
		return nil, fmt.Errorf("%w: %s answered %d", ErrUpstreamStatus, svc.Name, resp.StatusCode)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s sent an unreadable response: %v", errs.ErrUnavailable, svc.Name, err)
	}
	return result, nil
}

func decodeResult(payload []byte) (*Result, error) {
	if !gjson.ValidBytes(payload) {
		return &Result{}, fmt.Errorf("%w: invalid JSON", errs.ErrInvalidInput)
	}

	result := &Result{}
	if data := gjson.GetBytes(payload, "data"); data.Exists() && data.Type != gjson.Null {
		result.Data = json.RawMessage(data.Raw)
	}
	if list := gjson.GetBytes(payload, "errors"); list.IsArray() {
		if err := json.Unmarshal([]byte(list.Raw), &result.Errors); err != nil {
			return result, fmt.Errorf("%w: malformed errors: %v", errs.ErrInvalidInput, err)
		}
	}
	return result, nil
}

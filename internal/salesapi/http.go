package salesapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/apotekpos/backend-pos/internal/common"
	"github.com/apotekpos/backend-pos/internal/resilience"
)

// HTTPClient is the production Client. Sale submission is deliberately
// single-attempt: the backend does not promise idempotent creates, so an
// ambiguous first attempt must surface as indeterminate rather than be
// replayed. Product lookups are read-only and retry freely.
type HTTPClient struct {
	BaseURL string
	Submit  resilience.HTTPClient
	Lookup  resilience.HTTPClient
	Logger  zerolog.Logger
}

// NewHTTPClient builds a client against baseURL. maxLookupAttempts governs
// retries on the read path only.
func NewHTTPClient(baseURL string, timeout time.Duration, maxLookupAttempts int, logger zerolog.Logger) *HTTPClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if maxLookupAttempts <= 0 {
		maxLookupAttempts = 3
	}
	base := &http.Client{
		Timeout:   timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
	return &HTTPClient{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Submit: resilience.HTTPClient{
			Client:      base,
			Breaker:     resilience.NewBreaker(10, 0.5, 30*time.Second).WithTarget("sales-api-submit").WithLogger(logger),
			MaxAttempts: 1,
			Timeout:     timeout,
		},
		Lookup: resilience.HTTPClient{
			Client:      base,
			Breaker:     resilience.NewBreaker(10, 0.5, 15*time.Second).WithTarget("sales-api-lookup").WithLogger(logger),
			MaxAttempts: maxLookupAttempts,
			BaseBackoff: 200 * time.Millisecond,
			Jitter:      0.2,
			Timeout:     timeout,
		},
		Logger: logger,
	}
}

type dataEnvelope struct {
	Data json.RawMessage `json:"data"`
}

type errorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *HTTPClient) CreateSale(ctx context.Context, req CreateSaleRequest) (CreateSaleResult, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return CreateSaleResult{}, fmt.Errorf("encode sale: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/sales", bytes.NewReader(body))
	if err != nil {
		return CreateSaleResult{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	c.authorize(ctx, httpReq)

	resp, err := c.Submit.Do(ctx, httpReq)
	if err != nil {
		return CreateSaleResult{}, fmt.Errorf("sales api unreachable: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	var result CreateSaleResult
	if err := decodeResponse(resp, &result); err != nil {
		return CreateSaleResult{}, err
	}
	c.Logger.Info().Str("sale_id", result.SaleID).Msg("sale committed")
	return result, nil
}

func (c *HTTPClient) SearchProducts(ctx context.Context, term string) ([]Product, error) {
	endpoint := c.BaseURL + "/products?search=" + url.QueryEscape(term)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	c.authorize(ctx, httpReq)

	resp, err := c.Lookup.Do(ctx, httpReq)
	if err != nil {
		return nil, fmt.Errorf("sales api unreachable: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	var products []Product
	if err := decodeResponse(resp, &products); err != nil {
		return nil, err
	}
	return products, nil
}

func (c *HTTPClient) authorize(ctx context.Context, req *http.Request) {
	if ac, ok := common.Auth(ctx); ok && ac.Token != "" {
		req.Header.Set("Authorization", "Bearer "+ac.Token)
	}
}

// decodeResponse unwraps the backend's {"data":...} envelope. A 4xx with a
// decodable error body becomes *APIError; a 5xx or an unreadable body stays a
// plain error so callers treat it as a transport-level failure.
func decodeResponse(resp *http.Response, out any) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		var env dataEnvelope
		if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
			return fmt.Errorf("decode sales api response: %w", err)
		}
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("decode sales api response: %w", err)
		}
		return nil
	}
	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		var env errorEnvelope
		if err := json.NewDecoder(resp.Body).Decode(&env); err == nil && env.Error.Message != "" {
			return &APIError{Code: env.Error.Code, Message: env.Error.Message, HTTPStatus: resp.StatusCode}
		}
		return &APIError{Code: "REJECTED", Message: "sale rejected by sales backend", HTTPStatus: resp.StatusCode}
	}
	return fmt.Errorf("sales api returned %s", resp.Status)
}

// Package provider implements the HTTP gateway to the inventory provider
// API. Every outbound call goes through Client.call, which owns the auth
// header, the per-attempt timeout and the retry policy. Callers never build
// provider requests themselves.
package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	tokenHeader = "X-API-Token"

	defaultTimeout    = 30 * time.Second
	defaultMaxRetries = 3
	defaultRetryDelay = time.Second
)

// ErrorKind classifies a failed provider call.
type ErrorKind int

const (
	// ErrTransport covers network failures, timeouts and non-2xx responses.
	ErrTransport ErrorKind = iota
	// ErrProviderRejected means the provider answered with a non-success status.
	ErrProviderRejected
	// ErrMalformedBody means the response body could not be parsed. Not retried.
	ErrMalformedBody
)

// CallError is the failure surfaced by Client after retries are exhausted.
type CallError struct {
	Kind   ErrorKind
	Method string
	Err    error
}

func (e *CallError) Error() string {
	switch e.Kind {
	case ErrProviderRejected:
		return fmt.Sprintf("provider: %s rejected: %v", e.Method, e.Err)
	case ErrMalformedBody:
		return fmt.Sprintf("provider: %s malformed response: %v", e.Method, e.Err)
	default:
		return fmt.Sprintf("provider: %s transport failure: %v", e.Method, e.Err)
	}
}

func (e *CallError) Unwrap() error { return e.Err }

// Config holds the gateway settings.
type Config struct {
	URL         string
	Token       string
	InventoryID int64

	// Timeout bounds a single attempt, MaxRetries the number of attempts and
	// RetryDelay the backoff base (delay = attempt * RetryDelay).
	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration
}

// Client is the remote call gateway.
type Client struct {
	httpClient  *http.Client
	logger      *slog.Logger
	url         string
	token       string
	inventoryID int64
	timeout     time.Duration
	maxRetries  int
	retryDelay  time.Duration
}

// NewClient constructs a Client with config defaults applied.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = defaultRetryDelay
	}
	return &Client{
		httpClient:  &http.Client{},
		logger:      logger,
		url:         cfg.URL,
		token:       cfg.Token,
		inventoryID: cfg.InventoryID,
		timeout:     cfg.Timeout,
		maxRetries:  cfg.MaxRetries,
		retryDelay:  cfg.RetryDelay,
	}
}

// Categories fetches the full category tree. The provider does not paginate
// this endpoint.
func (c *Client) Categories(ctx context.Context) ([]Category, error) {
	body, err := c.call(ctx, methodGetCategories, categoriesParams{InventoryID: c.inventoryID})
	if err != nil {
		return nil, err
	}
	var resp categoriesResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &CallError{Kind: ErrMalformedBody, Method: methodGetCategories, Err: err}
	}
	return resp.Categories, nil
}

// ProductIDs returns the provider ids of every product in the given category.
func (c *Client) ProductIDs(ctx context.Context, categoryID int64) ([]string, error) {
	body, err := c.call(ctx, methodGetProductsList, productsListParams{
		InventoryID:      c.inventoryID,
		FilterCategoryID: categoryID,
	})
	if err != nil {
		return nil, err
	}
	var resp productsListResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &CallError{Kind: ErrMalformedBody, Method: methodGetProductsList, Err: err}
	}
	ids, err := resp.ids()
	if err != nil {
		return nil, &CallError{Kind: ErrMalformedBody, Method: methodGetProductsList, Err: err}
	}
	return ids, nil
}

// ProductDetails fetches full product records for one chunk of ids.
func (c *Client) ProductDetails(ctx context.Context, ids []string) (map[string]ProductDetails, error) {
	body, err := c.call(ctx, methodGetProductsData, productsDataParams{
		InventoryID: c.inventoryID,
		Products:    ids,
	})
	if err != nil {
		return nil, err
	}
	var resp productsDataResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &CallError{Kind: ErrMalformedBody, Method: methodGetProductsData, Err: err}
	}
	return resp.Products, nil
}

// call issues one provider request with retries. Transport failures and
// provider-rejected calls retry with linearly increasing delay; a body that
// cannot be parsed fails immediately.
func (c *Client) call(ctx context.Context, method string, params any) ([]byte, error) {
	rawParams, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("provider: marshal %s parameters: %w", method, err)
	}

	form := url.Values{}
	form.Set("method", method)
	form.Set("parameters", string(rawParams))
	payload := form.Encode()

	var lastErr *CallError
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		body, callErr := c.attempt(ctx, method, payload)
		if callErr == nil {
			return body, nil
		}
		if callErr.Kind == ErrMalformedBody {
			return nil, callErr
		}
		lastErr = callErr
		c.logger.Warn("provider call failed",
			slog.String("method", method),
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", c.maxRetries),
			slog.Any("error", callErr.Err))

		if attempt < c.maxRetries {
			delay := time.Duration(attempt) * c.retryDelay
			select {
			case <-ctx.Done():
				return nil, &CallError{Kind: ErrTransport, Method: method, Err: ctx.Err()}
			case <-time.After(delay):
			}
		}
	}
	return nil, lastErr
}

func (c *Client) attempt(ctx context.Context, method, payload string) ([]byte, *CallError) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, c.url, strings.NewReader(payload))
	if err != nil {
		return nil, &CallError{Kind: ErrTransport, Method: method, Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set(tokenHeader, c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &CallError{Kind: ErrTransport, Method: method, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &CallError{Kind: ErrTransport, Method: method, Err: fmt.Errorf("http %d", resp.StatusCode)}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &CallError{Kind: ErrTransport, Method: method, Err: err}
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, &CallError{Kind: ErrMalformedBody, Method: method, Err: err}
	}
	if env.Status != statusSuccess {
		msg := env.ErrorMessage
		if msg == "" {
			msg = "unknown error"
		}
		return nil, &CallError{Kind: ErrProviderRejected, Method: method, Err: errors.New(msg)}
	}
	return body, nil
}

// IsKind reports whether err is a CallError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var callErr *CallError
	return errors.As(err, &callErr) && callErr.Kind == kind
}

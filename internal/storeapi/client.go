// Package storeapi is the client of the remote storefront backend: catalog,
// categories, orders and user login.
package storeapi

import (
	"bytes"
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

	"github.com/cenkalti/backoff/v5"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/egannguyen/go-kafka-ecommerce/storefront/internal/entity"
)

// IdempotencyHeader carries the checkout idempotency key on order posts.
const IdempotencyHeader = "Idempotency-Key"

// StatusError is an unexpected HTTP status from the backend.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend returned status %d", e.Code)
	}
	return fmt.Sprintf("backend returned status %d: %s", e.Code, e.Message)
}

// Client talks to the backend REST API. It is safe for concurrent use.
type Client struct {
	baseURL       string
	httpClient    *http.Client
	maxTries      uint
	retryInterval time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the traced default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithRetry sets how many attempts a GET gets and the first backoff interval.
func WithRetry(maxTries uint, initial time.Duration) Option {
	return func(c *Client) {
		if maxTries > 0 {
			c.maxTries = maxTries
		}
		if initial > 0 {
			c.retryInterval = initial
		}
	}
}

// New creates a client for the API rooted at baseURL, e.g.
// "http://localhost:8080/api".
func New(baseURL string, timeout time.Duration, opts ...Option) *Client {
	transport := &http.Transport{
		MaxIdleConns:        50,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Transport: otelhttp.NewTransport(transport),
			Timeout:   timeout,
		},
		maxTries:      3,
		retryInterval: 200 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ListProducts returns the catalog, optionally restricted to a category.
func (c *Client) ListProducts(ctx context.Context, category string) ([]entity.Product, error) {
	path := "/products"
	if category != "" {
		path += "?category=" + url.QueryEscape(category)
	}
	var dtos []productDTO
	if err := c.get(ctx, path, "", &dtos); err != nil {
		return nil, err
	}
	products := make([]entity.Product, 0, len(dtos))
	for _, d := range dtos {
		products = append(products, d.toEntity())
	}
	return products, nil
}

// GetProduct returns the current state of one product, variant stock
// included.
func (c *Client) GetProduct(ctx context.Context, id string) (*entity.Product, error) {
	var dto productDTO
	if err := c.get(ctx, "/products/"+url.PathEscape(id), "", &dto); err != nil {
		if errors.Is(err, entity.ErrNotFound) {
			return nil, &entity.NotFoundError{Kind: "product", Ref: id}
		}
		return nil, err
	}
	p := dto.toEntity()
	if p.ID == "" {
		p.ID = id
	}
	return &p, nil
}

// ListCategories returns the product categories.
func (c *Client) ListCategories(ctx context.Context) ([]entity.Category, error) {
	var dtos []categoryDTO
	if err := c.get(ctx, "/categories", "", &dtos); err != nil {
		return nil, err
	}
	out := make([]entity.Category, 0, len(dtos))
	for _, d := range dtos {
		out = append(out, entity.Category{ID: string(d.ID), Name: firstNonEmpty(d.Name, d.Nombre)})
	}
	return out, nil
}

// CreateOrder posts an order. With a token it goes to the authenticated
// endpoint, without one to the guest endpoint. It is never retried here; the
// caller retries with the same idempotency key.
func (c *Client) CreateOrder(ctx context.Context, req entity.OrderRequest, token, idempotencyKey string) (*entity.Order, error) {
	path := "/orders/guest"
	if token != "" {
		path = "/orders"
	}

	var dto orderDTO
	err := c.do(ctx, http.MethodPost, path, token, idempotencyKey, newOrderPayload(req), &dto)
	if err != nil {
		var se *StatusError
		if errors.As(err, &se) && se.Code == http.StatusConflict {
			slog.Info("Backend rejected order for stock", "message", se.Message)
			return nil, &entity.InsufficientStockError{}
		}
		if errors.As(err, &se) && se.Code == http.StatusBadRequest {
			return nil, &entity.ValidationError{Field: "order", Reason: se.Message}
		}
		return nil, err
	}

	order := dto.toEntity()
	if order.Total == 0 {
		order.Total = req.Total
	}
	if len(order.Lines) == 0 {
		order.Lines = req.Lines
	}
	if order.CreatedAt.IsZero() {
		order.CreatedAt = req.Timestamp
	}
	if order.Buyer == (entity.Buyer{}) {
		order.Buyer = req.Buyer
	}
	return &order, nil
}

// OrdersByEmail returns the orders placed with an e-mail address, guest
// purchases included.
func (c *Client) OrdersByEmail(ctx context.Context, email, token string) ([]entity.Order, error) {
	var dtos []orderDTO
	if err := c.get(ctx, "/orders/email/"+url.PathEscape(email), token, &dtos); err != nil {
		return nil, err
	}
	orders := make([]entity.Order, 0, len(dtos))
	for _, d := range dtos {
		orders = append(orders, d.toEntity())
	}
	return orders, nil
}

// LoginResult is a successful login.
type LoginResult struct {
	Token string
	User  entity.User
}

// Login exchanges credentials for a token and the user profile.
func (c *Client) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	var resp loginResponse
	err := c.do(ctx, http.MethodPost, "/users/login", "", "", loginRequest{Email: email, Password: password}, &resp)
	if err != nil {
		var se *StatusError
		if errors.As(err, &se) && se.Code == http.StatusBadRequest {
			return nil, fmt.Errorf("%w: %s", entity.ErrUnauthorized, se.Message)
		}
		return nil, err
	}
	if !resp.Success || resp.User == nil {
		msg := resp.Message
		if msg == "" {
			msg = "invalid email or password"
		}
		return nil, fmt.Errorf("%w: %s", entity.ErrUnauthorized, msg)
	}
	return &LoginResult{Token: resp.Token, User: resp.User.toEntity()}, nil
}

// get runs a GET with exponential backoff. Only network failures and 5xx
// answers are retried.
func (c *Client) get(ctx context.Context, path, token string, out any) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.retryInterval
	b.MaxInterval = 2 * time.Second

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		err := c.do(ctx, http.MethodGet, path, token, "", nil, out)
		if err != nil && !entity.IsRetryable(err) {
			return struct{}{}, backoff.Permanent(err)
		}
		if err != nil {
			slog.Info("Retrying backend request", "path", path, "err", err)
		}
		return struct{}{}, err
	}, backoff.WithBackOff(b), backoff.WithMaxTries(c.maxTries))
	return err
}

func (c *Client) do(ctx context.Context, method, path, token, idempotencyKey string, body, out any) error {
	op := method + " " + path

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request %s: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if idempotencyKey != "" {
		req.Header.Set(IdempotencyHeader, idempotencyKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &entity.NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return statusError(op, resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("failed to decode response of %s: %w", op, err)
	}
	return nil
}

func statusError(op string, resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var eb errorBody
	msg := strings.TrimSpace(string(raw))
	if json.Unmarshal(raw, &eb) == nil {
		msg = firstNonEmpty(eb.Message, eb.Error, msg)
	}
	se := &StatusError{Code: resp.StatusCode, Message: msg}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%s: %w", op, &entity.NotFoundError{Kind: "resource", Ref: resp.Request.URL.Path})
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%s: %w: %w", op, entity.ErrUnauthorized, se)
	case resp.StatusCode >= 500:
		return &entity.NetworkError{Op: op, Err: se}
	default:
		return fmt.Errorf("%s: %w", op, se)
	}
}

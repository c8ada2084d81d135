// Package confirmation notifies the internal order backend that a payment
// succeeded.
package confirmation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"PaymentGateway/internal/domain/event"
	"PaymentGateway/pkg/correlation"
)

const (
	HeaderInternalSecret = "X-INTERNAL-SECRET"

	maxErrorBody = 512
)

// Request is the body the order backend expects.
type Request struct {
	Reference       string  `json:"reference"`
	PaymentIntentID string  `json:"paymentIntentId"`
	Amount          float64 `json:"amount"`
	Currency        string  `json:"currency"`
	Status          string  `json:"status"`
}

func RequestFromEvent(evt event.NormalizedEvent) Request {
	return Request{
		Reference:       evt.Reference,
		PaymentIntentID: evt.PaymentIntentID,
		Amount:          evt.Amount,
		Currency:        strings.ToLower(evt.Currency),
		Status:          evt.Status,
	}
}

type Config struct {
	URL            string
	Secret         string
	Timeout        time.Duration
	RetryAttempts  int
	RetryBaseDelay time.Duration
}

type Client struct {
	url        string
	secret     string
	httpClient *http.Client
	retryCfg   RetryConfig
}

func NewClient(cfg Config) *Client {
	return &Client{
		url:        cfg.URL,
		secret:     cfg.Secret,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		retryCfg: RetryConfig{
			MaxAttempts: cfg.RetryAttempts,
			BaseDelay:   cfg.RetryBaseDelay,
			MaxDelay:    5 * time.Second,
		},
	}
}

// Confirm posts the confirmation, retrying while the backend is unavailable.
func (c *Client) Confirm(ctx context.Context, req Request) error {
	return DoWithRetry(ctx, c.retryCfg, func() error {
		return c.send(ctx, req)
	})
}

// NotifySucceeded confirms succeeded events in the background and ignores
// every other type. Failures are logged, never returned.
func (c *Client) NotifySucceeded(ctx context.Context, evt event.NormalizedEvent) {
	if evt.Type != event.TypePaymentSucceeded {
		return
	}

	ctx = context.WithoutCancel(ctx)
	go func() {
		if err := c.Confirm(ctx, RequestFromEvent(evt)); err != nil {
			slog.ErrorContext(ctx, "Failed to notify order backend",
				"payment_intent_id", evt.PaymentIntentID, "reference", evt.Reference, "error", err)
			return
		}
		slog.InfoContext(ctx, "Order backend notified",
			"payment_intent_id", evt.PaymentIntentID, "reference", evt.Reference)
	}()
}

func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

func (c *Client) send(ctx context.Context, body Request) error {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(jsonBody))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set(HeaderInternalSecret, c.secret)
	correlation.Inject(ctx, httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	return handleResponse(resp)
}

func handleResponse(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return ErrUnauthorized
	case resp.StatusCode == http.StatusTooManyRequests, resp.StatusCode >= 500:
		return fmt.Errorf("%w: status %d, body: %s", ErrServiceUnavailable, resp.StatusCode, string(body))
	default:
		return fmt.Errorf("%w: status %d, body: %s", ErrRejected, resp.StatusCode, string(body))
	}
}

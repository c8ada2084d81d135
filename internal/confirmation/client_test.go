package confirmation

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"PaymentGateway/internal/domain/event"
	"PaymentGateway/pkg/correlation"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClient(url string, attempts int) *Client {
	return NewClient(Config{
		URL:            url,
		Secret:         "internal",
		Timeout:        time.Second,
		RetryAttempts:  attempts,
		RetryBaseDelay: time.Millisecond,
	})
}

func TestClient_Confirm(t *testing.T) {
	t.Run("posts body with internal secret", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/api/pagos/confirmar/", r.URL.Path)
			assert.Equal(t, "internal", r.Header.Get(HeaderInternalSecret))
			assert.Equal(t, "corr-9", r.Header.Get(correlation.HeaderName))

			var req Request
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, Request{
				Reference:       "ORDER-1",
				PaymentIntentID: "pi_1",
				Amount:          49.99,
				Currency:        "usd",
				Status:          "succeeded",
			}, req)

			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		client := newClient(server.URL+"/api/pagos/confirmar/", 1)
		ctx := correlation.WithID(context.Background(), "corr-9")

		err := client.Confirm(ctx, RequestFromEvent(event.NormalizedEvent{
			Type:            event.TypePaymentSucceeded,
			Reference:       "ORDER-1",
			PaymentIntentID: "pi_1",
			Amount:          49.99,
			Currency:        "USD",
			Status:          event.StatusSucceeded,
		}))

		assert.NoError(t, err)
	})

	t.Run("retries while unavailable", func(t *testing.T) {
		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) < 3 {
				w.WriteHeader(http.StatusBadGateway)
				return
			}
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		err := newClient(server.URL, 3).Confirm(context.Background(), Request{})

		require.NoError(t, err)
		assert.Equal(t, int32(3), calls.Load())
	})

	t.Run("does not retry rejected secret", func(t *testing.T) {
		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusForbidden)
		}))
		defer server.Close()

		err := newClient(server.URL, 3).Confirm(context.Background(), Request{})

		assert.ErrorIs(t, err, ErrUnauthorized)
		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("returns ErrRejected on 400", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"detail":"unknown reference"}`))
		}))
		defer server.Close()

		err := newClient(server.URL, 1).Confirm(context.Background(), Request{})

		require.ErrorIs(t, err, ErrRejected)
		assert.Contains(t, err.Error(), "unknown reference")
	})

	t.Run("gives up after max attempts", func(t *testing.T) {
		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer server.Close()

		err := newClient(server.URL, 2).Confirm(context.Background(), Request{})

		assert.ErrorIs(t, err, ErrServiceUnavailable)
		assert.Equal(t, int32(2), calls.Load())
	})
}

func TestClient_NotifySucceeded(t *testing.T) {
	received := make(chan Request, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req Request
		_ = json.NewDecoder(r.Body).Decode(&req)
		received <- req
	}))
	defer server.Close()

	client := newClient(server.URL, 1)

	client.NotifySucceeded(context.Background(), event.NormalizedEvent{Type: event.TypePaymentFailed, PaymentIntentID: "pi_failed"})

	ctx, cancel := context.WithCancel(context.Background())
	client.NotifySucceeded(ctx, event.NormalizedEvent{Type: event.TypePaymentSucceeded, PaymentIntentID: "pi_ok"})
	cancel()

	select {
	case req := <-received:
		assert.Equal(t, "pi_ok", req.PaymentIntentID)
	case <-time.After(2 * time.Second):
		t.Fatal("confirmation was not sent")
	}

	select {
	case req := <-received:
		t.Fatalf("unexpected confirmation for %s", req.PaymentIntentID)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBackoff(t *testing.T) {
	for attempt := range 10 {
		d := backoff(attempt, 100*time.Millisecond, time.Second)
		assert.LessOrEqual(t, d, time.Second)
		assert.Greater(t, d, time.Duration(0))
	}
}

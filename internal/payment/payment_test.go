package payment

import (
	"context"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"PaymentGateway/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v79"
)

func stripeBackends(t *testing.T, handler http.HandlerFunc) *stripe.Backends {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	backend := stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
		URL:               stripe.String(srv.URL),
		MaxNetworkRetries: stripe.Int64(0),
		LeveledLogger:     &stripe.LeveledLogger{Level: stripe.LevelNull},
	})
	return &stripe.Backends{API: backend, Connect: backend, Uploads: backend}
}

func TestStripeAdapter_CreatePayment(t *testing.T) {
	t.Run("creates payment intent in minor units with reference metadata", func(t *testing.T) {
		var form map[string]string
		backends := stripeBackends(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/v1/payment_intents", r.URL.Path)
			assert.Equal(t, "Bearer sk_test_123", r.Header.Get("Authorization"))

			assert.NoError(t, r.ParseForm())
			form = map[string]string{
				"amount":   r.PostForm.Get("amount"),
				"currency": r.PostForm.Get("currency"),
				"apm":      r.PostForm.Get("automatic_payment_methods[enabled]"),
				"ref":      r.PostForm.Get("metadata[reference]"),
			}

			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"id":"pi_123","object":"payment_intent","client_secret":"pi_123_secret_abc","amount":1050,"currency":"usd","status":"requires_payment_method"}`))
		})

		adapter := NewStripeAdapter("sk_test_123", "USD", backends)

		intent, err := adapter.CreatePayment(context.Background(), 10.5, "ORDER-1")

		require.NoError(t, err)
		assert.Equal(t, Intent{ClientSecret: "pi_123_secret_abc", PaymentIntentID: "pi_123"}, intent)
		assert.Equal(t, map[string]string{"amount": "1050", "currency": "usd", "apm": "true", "ref": "ORDER-1"}, form)
	})

	t.Run("maps provider rejection to ErrProvider", func(t *testing.T) {
		backends := stripeBackends(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusPaymentRequired)
			_, _ = w.Write([]byte(`{"error":{"type":"card_error","code":"card_declined","message":"Your card was declined."}}`))
		})

		adapter := NewStripeAdapter("sk_test_123", "usd", backends)

		_, err := adapter.CreatePayment(context.Background(), 10, "ORDER-1")

		require.ErrorIs(t, err, ErrProvider)
		assert.Contains(t, err.Error(), "card_declined")
	})

	t.Run("rejects amounts that round to zero cents without calling stripe", func(t *testing.T) {
		backends := stripeBackends(t, func(w http.ResponseWriter, r *http.Request) {
			t.Error("stripe must not be called")
		})

		adapter := NewStripeAdapter("sk_test_123", "usd", backends)

		_, err := adapter.CreatePayment(context.Background(), 0.004, "ORDER-1")

		assert.ErrorIs(t, err, ErrInvalidAmount)
	})
}

func TestValidate(t *testing.T) {
	testCases := []struct {
		name      string
		amount    float64
		reference string
		expected  error
	}{
		{name: "zero amount", amount: 0, reference: "ORDER-1", expected: ErrInvalidAmount},
		{name: "negative amount", amount: -1, reference: "ORDER-1", expected: ErrInvalidAmount},
		{name: "NaN amount", amount: math.NaN(), reference: "ORDER-1", expected: ErrInvalidAmount},
		{name: "infinite amount", amount: math.Inf(1), reference: "ORDER-1", expected: ErrInvalidAmount},
		{name: "blank reference", amount: 1, reference: "  ", expected: ErrInvalidReference},
		{name: "valid", amount: 0.01, reference: "ORDER-1"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := validate(tc.amount, tc.reference)
			if tc.expected == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tc.expected)
		})
	}
}

func TestSimulatedAdapter_CreatePayment(t *testing.T) {
	t.Run("returns unique ids derived from reference", func(t *testing.T) {
		adapter := NewSimulatedAdapter(0)

		first, err := adapter.CreatePayment(context.Background(), 25, "ORDER 1/x")
		require.NoError(t, err)
		second, err := adapter.CreatePayment(context.Background(), 25, "ORDER 1/x")
		require.NoError(t, err)

		assert.True(t, strings.HasPrefix(first.PaymentIntentID, "mock_pi_"))
		assert.Contains(t, first.PaymentIntentID, "_ORDER_1_x_")
		assert.True(t, strings.HasPrefix(first.ClientSecret, first.PaymentIntentID+"_secret_"))
		assert.NotEqual(t, first.PaymentIntentID, second.PaymentIntentID)
	})

	t.Run("rejects zero amount", func(t *testing.T) {
		_, err := NewSimulatedAdapter(0).CreatePayment(context.Background(), 0, "ORDER-1")
		assert.ErrorIs(t, err, ErrInvalidAmount)
	})

	t.Run("honours context cancellation during latency", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()

		_, err := NewSimulatedAdapter(time.Minute).CreatePayment(ctx, 1, "ORDER-1")

		assert.ErrorIs(t, err, ErrProvider)
	})
}

func TestNewAdapter(t *testing.T) {
	stripeAdapter, err := NewAdapter(config.Config{PaymentProvider: config.ProviderStripe, StripeSecretKey: "sk", StripeCurrency: "usd"})
	require.NoError(t, err)
	assert.IsType(t, &StripeAdapter{}, stripeAdapter)

	mockAdapter, err := NewAdapter(config.Config{PaymentProvider: config.ProviderMock})
	require.NoError(t, err)
	assert.IsType(t, &SimulatedAdapter{}, mockAdapter)

	_, err = NewAdapter(config.Config{PaymentProvider: "paypal"})
	assert.Error(t, err)
}

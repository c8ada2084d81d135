package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Defaults(t *testing.T) {
	t.Setenv("PAYMENT_PROVIDER", "mock")
	t.Setenv("INTERNAL_SECRET", "internal")

	cfg, err := New()
	require.NoError(t, err)

	assert.Equal(t, 4000, cfg.Port)
	assert.Equal(t, ProviderMock, cfg.PaymentProvider)
	assert.Equal(t, StoreMemory, cfg.PartnerStore)
	assert.Equal(t, 3, cfg.DispatchMaxAttempts)
	assert.Equal(t, time.Second, cfg.DispatchRetryDelay)
	assert.Equal(t, 5*time.Second, cfg.DispatchTimeout)
	assert.True(t, cfg.DispatchDeactivateOnGone)
	assert.Equal(t, "usd", cfg.StripeCurrency)
	assert.False(t, cfg.KafkaEnabled())
	assert.False(t, cfg.EnableDebugRoutes)
}

func TestNew_KafkaBrokers(t *testing.T) {
	t.Setenv("PAYMENT_PROVIDER", "mock")
	t.Setenv("INTERNAL_SECRET", "internal")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")

	cfg, err := New()
	require.NoError(t, err)

	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.True(t, cfg.KafkaEnabled())
}

func TestValidate(t *testing.T) {
	valid := Config{
		PaymentProvider:     ProviderStripe,
		StripeSecretKey:     "sk_test",
		StripeWebhookSecret: "whsec_test",
		InternalSecret:      "internal",
		PartnerStore:        StoreMemory,
		DispatchMaxAttempts: 1,
		DispatchMaxInFlight: 1,
	}

	testCases := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{
			name:   "valid stripe config",
			mutate: func(c *Config) {},
		},
		{
			name:    "stripe without keys",
			mutate:  func(c *Config) { c.StripeSecretKey = ""; c.StripeWebhookSecret = "" },
			wantErr: "STRIPE_SECRET_KEY is required",
		},
		{
			name:   "mock does not need stripe keys",
			mutate: func(c *Config) { c.PaymentProvider = ProviderMock; c.StripeSecretKey = "" },
		},
		{
			name:    "unknown provider",
			mutate:  func(c *Config) { c.PaymentProvider = "paypal" },
			wantErr: `unsupported PAYMENT_PROVIDER "paypal"`,
		},
		{
			name:    "missing internal secret",
			mutate:  func(c *Config) { c.InternalSecret = "" },
			wantErr: "INTERNAL_SECRET is required",
		},
		{
			name:    "postgres without url",
			mutate:  func(c *Config) { c.PartnerStore = StorePostgres },
			wantErr: "PG_URL is required",
		},
		{
			name:    "redis without addr",
			mutate:  func(c *Config) { c.PartnerStore = StoreRedis },
			wantErr: "REDIS_ADDR is required",
		},
		{
			name:    "zero attempts",
			mutate:  func(c *Config) { c.DispatchMaxAttempts = 0 },
			wantErr: "DISPATCH_MAX_ATTEMPTS must be at least 1",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := valid
			tc.mutate(&cfg)

			err := cfg.Validate()
			if tc.wantErr == "" {
				assert.NoError(t, err)
			} else {
				assert.ErrorContains(t, err, tc.wantErr)
			}
		})
	}
}

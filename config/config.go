package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

const (
	ProviderStripe = "stripe"
	ProviderMock   = "mock"

	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreRedis    = "redis"
)

type Config struct {
	Port      int    `env:"PORT" envDefault:"4000"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	// Payment provider: "stripe" (real) or "mock" (simulated)
	PaymentProvider     string        `env:"PAYMENT_PROVIDER" envDefault:"stripe"`
	StripeSecretKey     string        `env:"STRIPE_SECRET_KEY"`
	StripeWebhookSecret string        `env:"STRIPE_WEBHOOK_SECRET"`
	StripeCurrency      string        `env:"STRIPE_CURRENCY" envDefault:"usd"`
	MockLatency         time.Duration `env:"MOCK_LATENCY" envDefault:"100ms"`

	// Internal confirmation endpoint (order backend)
	InternalSecret             string        `env:"INTERNAL_SECRET"`
	ConfirmationURL            string        `env:"CONFIRMATION_URL" envDefault:"http://localhost:8000/api/pagos/confirmar/"`
	ConfirmationTimeout        time.Duration `env:"CONFIRMATION_TIMEOUT" envDefault:"5s"`
	ConfirmationRetryAttempts  int           `env:"CONFIRMATION_RETRY_ATTEMPTS" envDefault:"1"`
	ConfirmationRetryBaseDelay time.Duration `env:"CONFIRMATION_RETRY_BASE_DELAY" envDefault:"200ms"`

	// Partner fan-out
	DispatchMaxAttempts int           `env:"DISPATCH_MAX_ATTEMPTS" envDefault:"3"`
	DispatchRetryDelay  time.Duration `env:"DISPATCH_RETRY_DELAY" envDefault:"1s"`
	DispatchTimeout     time.Duration `env:"DISPATCH_TIMEOUT" envDefault:"5s"`
	DispatchMaxInFlight int64         `env:"DISPATCH_MAX_IN_FLIGHT" envDefault:"64"`
	DispatchSource      string        `env:"DISPATCH_SOURCE" envDefault:"SalumedX2-PaymentService"`
	// DispatchDeactivateOnGone disables a partner whose endpoint answers 410.
	DispatchDeactivateOnGone bool `env:"DISPATCH_DEACTIVATE_ON_GONE" envDefault:"true"`

	// Partner store backend: "memory", "postgres" or "redis"
	PartnerStore  string `env:"PARTNER_STORE" envDefault:"memory"`
	PgURL         string `env:"PG_URL"`
	PgPoolMax     int    `env:"PG_POOL_MAX" envDefault:"10"`
	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	// Kafka configuration (empty brokers disables the event stream)
	KafkaBrokers      []string `env:"KAFKA_BROKERS" envSeparator:","`
	KafkaEventsTopic  string   `env:"KAFKA_EVENTS_TOPIC" envDefault:"gateway.events"`
	KafkaDLQTopic     string   `env:"KAFKA_DLQ_TOPIC" envDefault:"gateway.deliveries.dlq"`
	KafkaInboundTopic string   `env:"KAFKA_INBOUND_TOPIC" envDefault:"gateway.partner.inbound"`

	EnableDebugRoutes bool `env:"ENABLE_DEBUG_ROUTES" envDefault:"false"`
}

func New() (Config, error) {
	c, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, err
	}

	if err = c.Validate(); err != nil {
		return Config{}, err
	}

	return c, nil
}

// Validate enforces cross-field requirements env tags cannot express.
func (c Config) Validate() error {
	var errs []error

	switch c.PaymentProvider {
	case ProviderStripe:
		if c.StripeSecretKey == "" {
			errs = append(errs, errors.New("STRIPE_SECRET_KEY is required when PAYMENT_PROVIDER=stripe"))
		}
		if c.StripeWebhookSecret == "" {
			errs = append(errs, errors.New("STRIPE_WEBHOOK_SECRET is required when PAYMENT_PROVIDER=stripe"))
		}
	case ProviderMock:
	default:
		errs = append(errs, fmt.Errorf("unsupported PAYMENT_PROVIDER %q", c.PaymentProvider))
	}

	if c.InternalSecret == "" {
		errs = append(errs, errors.New("INTERNAL_SECRET is required"))
	}

	switch c.PartnerStore {
	case StoreMemory:
	case StorePostgres:
		if c.PgURL == "" {
			errs = append(errs, errors.New("PG_URL is required when PARTNER_STORE=postgres"))
		}
	case StoreRedis:
		if c.RedisAddr == "" {
			errs = append(errs, errors.New("REDIS_ADDR is required when PARTNER_STORE=redis"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported PARTNER_STORE %q", c.PartnerStore))
	}

	if c.DispatchMaxAttempts < 1 {
		errs = append(errs, errors.New("DISPATCH_MAX_ATTEMPTS must be at least 1"))
	}
	if c.DispatchMaxInFlight < 1 {
		errs = append(errs, errors.New("DISPATCH_MAX_IN_FLIGHT must be at least 1"))
	}

	return errors.Join(errs...)
}

// KafkaEnabled reports whether the optional event stream is configured.
func (c Config) KafkaEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

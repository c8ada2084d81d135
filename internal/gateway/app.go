package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"PaymentGateway/config"
	"PaymentGateway/internal/confirmation"
	"PaymentGateway/internal/dispatcher"
	"PaymentGateway/internal/domain/partner"
	"PaymentGateway/internal/events"
	"PaymentGateway/internal/gateway/handlers"
	"PaymentGateway/internal/gateway/migrations"
	"PaymentGateway/internal/inbound"
	"PaymentGateway/internal/normalizer"
	"PaymentGateway/internal/payment"
	partner_repo "PaymentGateway/internal/repo/partner"
	"PaymentGateway/pkg/health"
	"PaymentGateway/pkg/logger"
	"PaymentGateway/pkg/postgres"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 15 * time.Second

// App is the wired gateway: HTTP engine plus the components that outlive a
// single request.
type App struct {
	Engine     *gin.Engine
	Registry   *partner.Registry
	Dispatcher *dispatcher.Dispatcher

	closers []closer
}

type closer struct {
	name string
	fn   func() error
}

func New(ctx context.Context, cfg config.Config, l *slog.Logger) (*App, error) {
	app := &App{}
	healthRegistry := health.NewRegistry()

	store, err := app.openPartnerStore(ctx, cfg, healthRegistry)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("gateway - New - openPartnerStore: %w", err)
	}
	app.Registry = partner.NewRegistry(store)
	if err := app.Registry.SyncMetrics(ctx); err != nil {
		l.Warn("Partner gauge not seeded", "error", err)
	}

	adapter, err := payment.NewAdapter(cfg)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("gateway - New - payment.NewAdapter: %w", err)
	}

	reporters := dispatcher.Reporters{dispatcher.LogReporter{}, dispatcher.MetricsReporter{}}
	var publisher events.EventPublisher = events.Nop{}
	var sink inbound.Sink = inbound.LogSink{}

	if cfg.KafkaEnabled() {
		l.Info("Kafka streaming enabled", "brokers", cfg.KafkaBrokers)
		healthRegistry.Add(health.Optional(health.NewKafkaChecker(cfg.KafkaBrokers)))

		dlq := events.NewDLQPublisher(cfg.KafkaBrokers, cfg.KafkaDLQTopic)
		app.onClose("dlq publisher", dlq.Close)
		reporters = append(reporters, dlq)

		eventsPub := events.NewPublisher(cfg.KafkaBrokers, cfg.KafkaEventsTopic)
		app.onClose("events publisher", eventsPub.Close)
		publisher = eventsPub

		inboundPub := events.NewPublisher(cfg.KafkaBrokers, cfg.KafkaInboundTopic)
		app.onClose("inbound publisher", inboundPub.Close)
		sink = inboundPub
	}

	app.Dispatcher = dispatcher.New(app.Registry, dispatcher.Config{
		MaxAttempts:      cfg.DispatchMaxAttempts,
		RetryDelay:       cfg.DispatchRetryDelay,
		Timeout:          cfg.DispatchTimeout,
		MaxInFlight:      cfg.DispatchMaxInFlight,
		Source:           cfg.DispatchSource,
		DeactivateOnGone: cfg.DispatchDeactivateOnGone,
	}, dispatcher.WithReporter(reporters))

	confirmer := confirmation.NewClient(confirmation.Config{
		URL:            cfg.ConfirmationURL,
		Secret:         cfg.InternalSecret,
		Timeout:        cfg.ConfirmationTimeout,
		RetryAttempts:  cfg.ConfirmationRetryAttempts,
		RetryBaseDelay: cfg.ConfirmationRetryBaseDelay,
	})
	app.onClose("confirmation client", confirmer.Close)

	app.Engine = NewGinEngine(l)
	router := NewRouter(
		handlers.NewPaymentHandler(adapter),
		handlers.NewWebhookHandler(normalizer.New(), app.Dispatcher, confirmer, publisher, cfg.StripeWebhookSecret),
		handlers.NewPartnerHandler(app.Registry),
		handlers.NewInboundHandler(inbound.NewVerifier(app.Registry, sink)),
		handlers.NewHMACHandler(),
		healthRegistry,
		cfg.PaymentProvider == config.ProviderMock,
		cfg.EnableDebugRoutes,
	)
	router.SetUp(app.Engine)

	return app, nil
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		c := a.closers[i]
		if err := c.fn(); err != nil {
			slog.Warn("Close failed", "component", c.name, "error", err)
		}
	}
	a.closers = nil
}

func (a *App) onClose(name string, fn func() error) {
	a.closers = append(a.closers, closer{name: name, fn: fn})
}

func Run(cfg config.Config) error {
	l := logger.Setup(logger.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	app, err := New(ctx, cfg, l)
	if err != nil {
		return err
	}
	defer app.Close()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           app.Engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		l.Info("Starting gateway HTTP server",
			"port", cfg.Port, "provider", cfg.PaymentProvider, "partner_store", cfg.PartnerStore)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		l.Info("Shutting down gateway gracefully...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		if err := app.Dispatcher.Wait(shutdownCtx); err != nil {
			l.Warn("Pending partner deliveries abandoned", "error", err)
		}
		return nil
	})

	return g.Wait()
}

func (a *App) openPartnerStore(ctx context.Context, cfg config.Config, hr *health.Registry) (partner.Store, error) {
	switch cfg.PartnerStore {
	case config.StorePostgres:
		if err := migrations.Apply(cfg.PgURL); err != nil {
			return nil, fmt.Errorf("apply migrations: %w", err)
		}

		pool, err := postgres.New(cfg.PgURL, postgres.MaxPoolSize(cfg.PgPoolMax))
		if err != nil {
			return nil, fmt.Errorf("postgres.New: %w", err)
		}
		a.onClose("postgres", func() error { pool.Close(); return nil })
		hr.Add(health.NewPostgresChecker(pool))

		return partner_repo.NewPgStore(pool), nil

	case config.StoreRedis:
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		a.onClose("redis", rdb.Close)
		if err := rdb.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("redis ping: %w", err)
		}
		hr.Add(health.NewRedisChecker(rdb))

		return partner_repo.NewRedisStore(rdb, ""), nil

	default:
		return partner_repo.NewMemoryStore(), nil
	}
}

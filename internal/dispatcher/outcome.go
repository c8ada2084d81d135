package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"PaymentGateway/pkg/metrics"
)

var ErrDelivery = errors.New("partner delivery failed")

type Status string

const (
	StatusDelivered Status = "delivered"
	// StatusRejected means the partner answered with a non-retryable 4xx.
	StatusRejected Status = "rejected"
	// StatusExhausted means every attempt failed transiently.
	StatusExhausted Status = "exhausted"
	// StatusGone means the partner answered 410 and was deactivated.
	StatusGone Status = "gone"
)

// Outcome is the final result of delivering one event to one partner.
type Outcome struct {
	PartnerID       string
	PartnerName     string
	WebhookURL      string
	EventType       string
	PaymentIntentID string
	Reference       string
	CorrelationID   string
	Status          Status
	Attempts        int
	StatusCode      int
	LastError       string
	Duration        time.Duration
	// Payload is the signed body that was sent.
	Payload   []byte
	Signature string
}

func (o Outcome) Delivered() bool {
	return o.Status == StatusDelivered
}

// Err is nil for delivered outcomes and wraps ErrDelivery otherwise.
func (o Outcome) Err() error {
	if o.Delivered() {
		return nil
	}
	if o.LastError != "" {
		return fmt.Errorf("%w: partner %s %s after %d attempt(s): %s", ErrDelivery, o.PartnerID, o.Status, o.Attempts, o.LastError)
	}
	return fmt.Errorf("%w: partner %s %s after %d attempt(s): status %d", ErrDelivery, o.PartnerID, o.Status, o.Attempts, o.StatusCode)
}

// OutcomeReporter observes finished deliveries. Implementations must be safe
// for concurrent use.
type OutcomeReporter interface {
	Report(ctx context.Context, o Outcome)
}

type ReporterFunc func(ctx context.Context, o Outcome)

func (f ReporterFunc) Report(ctx context.Context, o Outcome) { f(ctx, o) }

// Reporters fans one outcome out to every reporter in order.
type Reporters []OutcomeReporter

func (rs Reporters) Report(ctx context.Context, o Outcome) {
	for _, r := range rs {
		r.Report(ctx, o)
	}
}

type LogReporter struct{}

func (LogReporter) Report(ctx context.Context, o Outcome) {
	attrs := []any{
		"partner_id", o.PartnerID,
		"event_type", o.EventType,
		"payment_intent_id", o.PaymentIntentID,
		"status", o.Status,
		"attempts", o.Attempts,
		"status_code", o.StatusCode,
		"duration_ms", o.Duration.Milliseconds(),
	}

	if o.Delivered() {
		slog.InfoContext(ctx, "Partner webhook delivered", attrs...)
		return
	}
	slog.ErrorContext(ctx, "Partner webhook delivery failed", append(attrs, "error", o.LastError)...)
}

type MetricsReporter struct{}

func (MetricsReporter) Report(_ context.Context, o Outcome) {
	metrics.DeliveryOutcomes.WithLabelValues(o.EventType, string(o.Status)).Inc()
	metrics.DeliveryDuration.WithLabelValues(o.EventType, string(o.Status)).Observe(o.Duration.Seconds())
}

// Package dispatcher fans canonical events out to subscribed partners over
// signed HTTP webhooks.
package dispatcher

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"PaymentGateway/internal/domain/event"
	"PaymentGateway/internal/domain/partner"
	"PaymentGateway/internal/signature"
	"PaymentGateway/pkg/correlation"
	"PaymentGateway/pkg/metrics"

	"golang.org/x/sync/semaphore"
)

const (
	HeaderEventType       = "X-Event-Type"
	HeaderSource          = "X-Source"
	HeaderDeliveryAttempt = "X-Delivery-Attempt"

	maxResponseBody = 1024
)

// Registry is the part of the partner registry the dispatcher needs.
type Registry interface {
	GetActiveSubscribers(ctx context.Context, eventType string) ([]partner.Partner, error)
	SetActive(ctx context.Context, id string, active bool) (partner.Summary, error)
}

type Config struct {
	// MaxAttempts is the total number of attempts per partner, first included.
	MaxAttempts int
	RetryDelay  time.Duration
	// Timeout bounds each attempt separately.
	Timeout     time.Duration
	MaxInFlight int64
	Source      string
	// DeactivateOnGone marks a partner inactive when its endpoint answers 410.
	DeactivateOnGone bool
}

type Dispatcher struct {
	registry Registry
	client   *http.Client
	cfg      Config
	sem      *semaphore.Weighted
	reporter OutcomeReporter
	now      func() time.Time
	wg       sync.WaitGroup
}

type Option func(*Dispatcher)

func WithHTTPClient(c *http.Client) Option {
	return func(d *Dispatcher) { d.client = c }
}

// WithReporter replaces the default log and metrics reporters.
func WithReporter(r OutcomeReporter) Option {
	return func(d *Dispatcher) { d.reporter = r }
}

func New(registry Registry, cfg Config, opts ...Option) *Dispatcher {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.MaxInFlight < 1 {
		cfg.MaxInFlight = 1
	}

	d := &Dispatcher{
		registry: registry,
		client:   &http.Client{},
		cfg:      cfg,
		sem:      semaphore.NewWeighted(cfg.MaxInFlight),
		reporter: Reporters{LogReporter{}, MetricsReporter{}},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch looks up the active subscribers of evt.Type and starts one
// delivery per partner. It returns once the lookup is done; deliveries keep
// running after ctx is cancelled.
func (d *Dispatcher) Dispatch(ctx context.Context, evt event.NormalizedEvent) (int, error) {
	subscribers, err := d.registry.GetActiveSubscribers(ctx, evt.Type)
	if err != nil {
		return 0, fmt.Errorf("lookup subscribers: %w", err)
	}

	if len(subscribers) == 0 {
		slog.InfoContext(ctx, "No partners subscribed to event", "event_type", evt.Type)
		return 0, nil
	}

	slog.InfoContext(ctx, "Dispatching event to partners",
		"event_type", evt.Type, "payment_intent_id", evt.PaymentIntentID, "partners", len(subscribers))

	detached := context.WithoutCancel(ctx)
	for _, p := range subscribers {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			d.deliver(detached, evt, p)
		}()
	}

	return len(subscribers), nil
}

// DispatchTest dispatches a synthetic event of eventType.
func (d *Dispatcher) DispatchTest(ctx context.Context, eventType string) (event.NormalizedEvent, int, error) {
	if eventType == "" {
		eventType = event.TypePaymentSucceeded
	}

	now := d.now()
	status, ok := event.StatusForType(eventType)
	if !ok {
		status = event.StatusSucceeded
	}

	evt := event.NormalizedEvent{
		Type:            eventType,
		Reference:       fmt.Sprintf("TEST-%d", now.UnixMilli()),
		Amount:          99.99,
		Currency:        "USD",
		PaymentIntentID: fmt.Sprintf("test_pi_%d", now.UnixMilli()),
		Status:          status,
		Source:          event.SourceMock,
		Timestamp:       now.UnixMilli(),
		Metadata: map[string]any{
			"isTestEvent": true,
			"generatedAt": now.UTC().Format(time.RFC3339Nano),
		},
	}

	n, err := d.Dispatch(ctx, evt)
	return evt, n, err
}

// Wait blocks until every started delivery has finished or ctx is done.
func (d *Dispatcher) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) deliver(ctx context.Context, evt event.NormalizedEvent, p partner.Partner) {
	if err := d.sem.Acquire(ctx, 1); err != nil {
		return
	}
	defer d.sem.Release(1)

	metrics.DeliveriesInFlight.Inc()
	defer metrics.DeliveriesInFlight.Dec()

	start := d.now()
	out := Outcome{
		PartnerID:       p.ID,
		PartnerName:     p.Name,
		WebhookURL:      p.WebhookURL,
		EventType:       evt.Type,
		PaymentIntentID: evt.PaymentIntentID,
		Reference:       evt.Reference,
		CorrelationID:   correlation.FromContext(ctx),
	}

	body, err := signature.Canonicalize(evt.ForPartner(p.ID))
	if err != nil {
		out.Status = StatusRejected
		out.LastError = fmt.Sprintf("encode payload: %v", err)
		d.finish(ctx, out, start)
		return
	}
	sig, err := signature.Sign(body, p.HMACSecret)
	if err != nil {
		out.Status = StatusRejected
		out.LastError = fmt.Sprintf("sign payload: %v", err)
		d.finish(ctx, out, start)
		return
	}
	out.Payload = body
	out.Signature = sig

	for attempt := 1; attempt <= d.cfg.MaxAttempts; attempt++ {
		statusCode, err := d.attempt(ctx, p.WebhookURL, evt.Type, body, sig, attempt)
		next := classify(statusCode, err)
		metrics.DeliveryAttempts.WithLabelValues(evt.Type, next.attemptLabel()).Inc()

		out.Attempts = attempt
		out.StatusCode = statusCode
		out.LastError = ""
		if err != nil {
			out.LastError = err.Error()
		}

		switch next {
		case decisionDelivered:
			out.Status = StatusDelivered
			d.finish(ctx, out, start)
			return
		case decisionGone:
			out.Status = StatusGone
			d.retire(ctx, p)
			d.finish(ctx, out, start)
			return
		case decisionReject:
			out.Status = StatusRejected
			d.finish(ctx, out, start)
			return
		}

		if attempt < d.cfg.MaxAttempts {
			slog.WarnContext(ctx, "Partner webhook attempt failed, retrying",
				"partner_id", p.ID, "attempt", attempt, "max_attempts", d.cfg.MaxAttempts,
				"status_code", statusCode, "error", out.LastError)
			time.Sleep(d.cfg.RetryDelay)
		}
	}

	out.Status = StatusExhausted
	d.finish(ctx, out, start)
}

// retire handles a partner endpoint that answered 410 Gone. The partner then
// stops receiving deliveries and its inbound webhooks are refused.
func (d *Dispatcher) retire(ctx context.Context, p partner.Partner) {
	if !d.cfg.DeactivateOnGone {
		slog.WarnContext(ctx, "Partner endpoint answered 410 Gone, keeping partner active",
			"partner_id", p.ID, "webhook_url", p.WebhookURL)
		return
	}

	if _, err := d.registry.SetActive(ctx, p.ID, false); err != nil {
		slog.WarnContext(ctx, "Failed to deactivate gone partner", "partner_id", p.ID, "error", err)
		return
	}

	metrics.PartnersDeactivated.WithLabelValues("gone").Inc()
	slog.WarnContext(ctx, "Partner deactivated after 410 Gone",
		"partner_id", p.ID, "partner_name", p.Name, "webhook_url", p.WebhookURL)
}

func (d *Dispatcher) finish(ctx context.Context, out Outcome, start time.Time) {
	out.Duration = d.now().Sub(start)
	d.reporter.Report(ctx, out)
}

func (d *Dispatcher) attempt(ctx context.Context, url, eventType string, body []byte, sig string, attempt int) (int, error) {
	if d.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.cfg.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(signature.HeaderName, sig)
	req.Header.Set(HeaderEventType, eventType)
	req.Header.Set(HeaderSource, d.cfg.Source)
	req.Header.Set(HeaderDeliveryAttempt, strconv.Itoa(attempt))
	correlation.Inject(ctx, req)

	resp, err := d.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBody))
	return resp.StatusCode, nil
}

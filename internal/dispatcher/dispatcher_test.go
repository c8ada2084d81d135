package dispatcher

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"PaymentGateway/internal/domain/event"
	"PaymentGateway/internal/domain/partner"
	"PaymentGateway/internal/signature"
	"PaymentGateway/pkg/correlation"
	"PaymentGateway/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRegistry struct {
	mu          sync.Mutex
	partners    []partner.Partner
	err         error
	deactivated []string
}

func (r *fakeRegistry) GetActiveSubscribers(_ context.Context, eventType string) ([]partner.Partner, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.err != nil {
		return nil, r.err
	}
	var out []partner.Partner
	for _, p := range r.partners {
		if p.IsActive && p.SubscribedTo(eventType) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *fakeRegistry) SetActive(_ context.Context, id string, active bool) (partner.Summary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.deactivated = append(r.deactivated, id)
	return partner.Summary{ID: id, IsActive: active}, nil
}

type collector struct {
	mu       sync.Mutex
	outcomes map[string]Outcome
}

func newCollector() *collector {
	return &collector{outcomes: make(map[string]Outcome)}
}

func (c *collector) Report(_ context.Context, o Outcome) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.outcomes[o.PartnerID] = o
}

func (c *collector) get(id string) Outcome {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.outcomes[id]
}

func testConfig() Config {
	return Config{
		MaxAttempts: 3,
		RetryDelay:  time.Millisecond,
		Timeout:     time.Second,
		MaxInFlight: 8,
		Source:      "test-gateway",
	}
}

func succeededEvent() event.NormalizedEvent {
	return event.NormalizedEvent{
		Type:            event.TypePaymentSucceeded,
		Reference:       "ORDER-1",
		Amount:          10.5,
		Currency:        "USD",
		PaymentIntentID: "pi_1",
		Status:          event.StatusSucceeded,
		Source:          event.SourceStripe,
		Timestamp:       1700000000000,
	}
}

func waitAll(t *testing.T, d *Dispatcher) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, d.Wait(ctx))
}

func TestDispatch_DeliversSignedPayload(t *testing.T) {
	const secret = "partner-secret"

	var (
		mu       sync.Mutex
		received []*http.Request
		bodies   [][]byte
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		received = append(received, r)
		bodies = append(bodies, body)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	registry := &fakeRegistry{partners: []partner.Partner{{
		ID:                 "acme",
		WebhookURL:         srv.URL,
		EventSubscriptions: []string{event.TypePaymentSucceeded},
		HMACSecret:         secret,
		IsActive:           true,
	}}}
	outcomes := newCollector()
	d := New(registry, testConfig(), WithReporter(outcomes))

	ctx := correlation.WithID(context.Background(), "corr-1")
	n, err := d.Dispatch(ctx, succeededEvent())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	waitAll(t, d)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, received, 1)
	req := received[0]
	assert.Equal(t, "application/json", req.Header.Get("Content-Type"))
	assert.Equal(t, event.TypePaymentSucceeded, req.Header.Get(HeaderEventType))
	assert.Equal(t, "test-gateway", req.Header.Get(HeaderSource))
	assert.Equal(t, "1", req.Header.Get(HeaderDeliveryAttempt))
	assert.Equal(t, "corr-1", req.Header.Get(correlation.HeaderName))

	var payload map[string]any
	require.NoError(t, json.Unmarshal(bodies[0], &payload))
	assert.Equal(t, "acme", payload["partnerId"])
	assert.Equal(t, "ORDER-1", payload["reference"])

	assert.True(t, signature.Verify(payload, req.Header.Get(signature.HeaderName), secret))
	assert.False(t, signature.Verify(payload, req.Header.Get(signature.HeaderName), "other-secret"))

	o := outcomes.get("acme")
	assert.Equal(t, StatusDelivered, o.Status)
	assert.Equal(t, 1, o.Attempts)
	assert.NoError(t, o.Err())
}

func TestDispatch_SubscriptionFiltering(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	registry := &fakeRegistry{partners: []partner.Partner{
		{ID: "failed-only", WebhookURL: srv.URL, EventSubscriptions: []string{event.TypePaymentFailed}, IsActive: true},
		{ID: "inactive", WebhookURL: srv.URL, EventSubscriptions: []string{event.TypePaymentSucceeded}, IsActive: false},
	}}
	d := New(registry, testConfig(), WithReporter(newCollector()))

	n, err := d.Dispatch(context.Background(), succeededEvent())
	require.NoError(t, err)
	waitAll(t, d)

	assert.Zero(t, n)
	assert.Zero(t, calls.Load())
}

func TestDispatch_FanOutIndependence(t *testing.T) {
	var healthyCalls atomic.Int32
	healthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		healthyCalls.Add(1)
	}))
	defer healthy.Close()

	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	downURL := down.URL
	down.Close()

	registry := &fakeRegistry{partners: []partner.Partner{
		{ID: "a", WebhookURL: downURL, EventSubscriptions: []string{event.TypePaymentSucceeded}, HMACSecret: "a", IsActive: true},
		{ID: "b", WebhookURL: healthy.URL, EventSubscriptions: []string{event.TypePaymentSucceeded}, HMACSecret: "b", IsActive: true},
	}}
	outcomes := newCollector()
	d := New(registry, testConfig(), WithReporter(outcomes))

	n, err := d.Dispatch(context.Background(), succeededEvent())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	waitAll(t, d)

	assert.Equal(t, int32(1), healthyCalls.Load())
	assert.Equal(t, StatusDelivered, outcomes.get("b").Status)

	failed := outcomes.get("a")
	assert.Equal(t, StatusExhausted, failed.Status)
	assert.Equal(t, 3, failed.Attempts)
	assert.ErrorIs(t, failed.Err(), ErrDelivery)
}

func TestDispatch_RetryBound(t *testing.T) {
	var calls atomic.Int32
	var attempts sync.Map
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		attempts.Store(n, r.Header.Get(HeaderDeliveryAttempt))
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	registry := &fakeRegistry{partners: []partner.Partner{
		{ID: "flaky", WebhookURL: srv.URL, EventSubscriptions: []string{event.TypePaymentSucceeded}, IsActive: true},
	}}
	outcomes := newCollector()
	d := New(registry, testConfig(), WithReporter(outcomes))

	_, err := d.Dispatch(context.Background(), succeededEvent())
	require.NoError(t, err)
	waitAll(t, d)

	assert.Equal(t, int32(3), calls.Load())
	last, _ := attempts.Load(int32(3))
	assert.Equal(t, "3", last)

	o := outcomes.get("flaky")
	assert.Equal(t, StatusExhausted, o.Status)
	assert.Equal(t, http.StatusServiceUnavailable, o.StatusCode)
	assert.NotEmpty(t, o.Payload)
}

func TestDispatch_ClientErrorStopsRetrying(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	registry := &fakeRegistry{partners: []partner.Partner{
		{ID: "strict", WebhookURL: srv.URL, EventSubscriptions: []string{event.TypePaymentSucceeded}, IsActive: true},
	}}
	outcomes := newCollector()
	d := New(registry, testConfig(), WithReporter(outcomes))

	_, err := d.Dispatch(context.Background(), succeededEvent())
	require.NoError(t, err)
	waitAll(t, d)

	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, StatusRejected, outcomes.get("strict").Status)
}

func TestDispatch_GoneDeactivatesPartner(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusGone)
	}))
	defer srv.Close()

	registry := &fakeRegistry{partners: []partner.Partner{
		{ID: "retired", WebhookURL: srv.URL, EventSubscriptions: []string{event.TypePaymentSucceeded}, IsActive: true},
	}}
	outcomes := newCollector()
	cfg := testConfig()
	cfg.DeactivateOnGone = true
	d := New(registry, cfg, WithReporter(outcomes))
	before := testutil.ToFloat64(metrics.PartnersDeactivated.WithLabelValues("gone"))

	_, err := d.Dispatch(context.Background(), succeededEvent())
	require.NoError(t, err)
	waitAll(t, d)

	assert.Equal(t, StatusGone, outcomes.get("retired").Status)
	assert.Equal(t, []string{"retired"}, registry.deactivated)
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.PartnersDeactivated.WithLabelValues("gone")))
}

func TestDispatch_GoneKeepsPartnerWhenDeactivationDisabled(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusGone)
	}))
	defer srv.Close()

	registry := &fakeRegistry{partners: []partner.Partner{
		{ID: "retired", WebhookURL: srv.URL, EventSubscriptions: []string{event.TypePaymentSucceeded}, IsActive: true},
	}}
	outcomes := newCollector()
	d := New(registry, testConfig(), WithReporter(outcomes))

	_, err := d.Dispatch(context.Background(), succeededEvent())
	require.NoError(t, err)
	waitAll(t, d)

	assert.Equal(t, StatusGone, outcomes.get("retired").Status)
	assert.Equal(t, int32(1), calls.Load())
	assert.Empty(t, registry.deactivated)
}

func TestDispatch_ReturnsBeforeDeliveriesFinish(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()

	registry := &fakeRegistry{partners: []partner.Partner{
		{ID: "slow", WebhookURL: srv.URL, EventSubscriptions: []string{event.TypePaymentSucceeded}, IsActive: true},
	}}
	outcomes := newCollector()
	d := New(registry, testConfig(), WithReporter(outcomes))

	ctx, cancel := context.WithCancel(context.Background())
	_, err := d.Dispatch(ctx, succeededEvent())
	require.NoError(t, err)
	// Cancelling the caller must not abort the delivery.
	cancel()

	assert.Empty(t, outcomes.get("slow").Status)
	close(release)
	waitAll(t, d)

	assert.Equal(t, StatusDelivered, outcomes.get("slow").Status)
}

func TestDispatch_LookupError(t *testing.T) {
	d := New(&fakeRegistry{err: errors.New("store down")}, testConfig())

	_, err := d.Dispatch(context.Background(), succeededEvent())

	assert.EqualError(t, err, "lookup subscribers: store down")
}

func TestDispatchTest(t *testing.T) {
	received := make(chan map[string]any, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]any
		_ = json.NewDecoder(r.Body).Decode(&payload)
		received <- payload
	}))
	defer srv.Close()

	registry := &fakeRegistry{partners: []partner.Partner{
		{ID: "demo", WebhookURL: srv.URL, EventSubscriptions: []string{event.TypePaymentFailed}, IsActive: true},
	}}
	d := New(registry, testConfig(), WithReporter(newCollector()))

	evt, n, err := d.DispatchTest(context.Background(), event.TypePaymentFailed)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	waitAll(t, d)

	assert.Equal(t, event.StatusFailed, evt.Status)
	assert.Equal(t, 99.99, evt.Amount)
	assert.Equal(t, event.SourceMock, evt.Source)

	payload := <-received
	assert.Equal(t, true, payload["metadata"].(map[string]any)["isTestEvent"])
	assert.Equal(t, evt.Reference, payload["reference"])
}

func TestClassify(t *testing.T) {
	testCases := []struct {
		name     string
		code     int
		err      error
		expected decision
	}{
		{"ok", 200, nil, decisionDelivered},
		{"accepted", 202, nil, decisionDelivered},
		{"network error", 0, errors.New("dial tcp"), decisionRetry},
		{"server error", 502, nil, decisionRetry},
		{"rate limited", 429, nil, decisionRetry},
		{"gone", 410, nil, decisionGone},
		{"unauthorized", 401, nil, decisionReject},
		{"not found", 404, nil, decisionReject},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, classify(tc.code, tc.err))
		})
	}
}

// Package normalizer translates provider webhook payloads into the gateway's
// canonical event.
package normalizer

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"PaymentGateway/internal/domain/event"

	"github.com/stripe/stripe-go/v79"
)

var ErrNormalization = errors.New("normalization failed")

const (
	stripeSucceeded = stripe.EventTypePaymentIntentSucceeded
	stripeFailed    = stripe.EventTypePaymentIntentPaymentFailed

	defaultReference     = "N/A"
	defaultMockReference = "MOCK-REF"
	defaultMockCurrency  = "USD"
)

// Result distinguishes a produced event from a payload that was understood
// but intentionally ignored. Ignored payloads must still be acknowledged.
type Result struct {
	Event      event.NormalizedEvent
	Normalized bool
	Reason     string
}

type Normalizer struct {
	now func() time.Time
}

func New() *Normalizer {
	return &Normalizer{now: time.Now}
}

// Normalize has no side effects; the same input always yields the same
// result except for the mock timestamp default.
func (n *Normalizer) Normalize(source event.Source, raw []byte) (Result, error) {
	switch source {
	case event.SourceStripe:
		return normalizeStripe(raw)
	case event.SourceMock:
		return n.normalizeMock(raw)
	default:
		return Result{}, fmt.Errorf("%w: %w: %q", ErrNormalization, event.ErrUnknownSource, source)
	}
}

func normalizeStripe(raw []byte) (Result, error) {
	var evt stripe.Event
	if err := json.Unmarshal(raw, &evt); err != nil {
		return Result{}, fmt.Errorf("%w: decode stripe event: %v", ErrNormalization, err)
	}

	if evt.Type != stripeSucceeded && evt.Type != stripeFailed {
		return Result{Reason: fmt.Sprintf("stripe event type %q not supported for normalization", evt.Type)}, nil
	}
	if evt.Data == nil || len(evt.Data.Raw) == 0 {
		return Result{}, fmt.Errorf("%w: stripe event %s has no data object", ErrNormalization, evt.ID)
	}

	var pi stripe.PaymentIntent
	if err := json.Unmarshal(evt.Data.Raw, &pi); err != nil {
		return Result{}, fmt.Errorf("%w: decode payment intent: %v", ErrNormalization, err)
	}

	reference := pi.Metadata["reference"]
	if reference == "" {
		reference = defaultReference
	}

	out := event.NormalizedEvent{
		Reference:       reference,
		Currency:        strings.ToUpper(string(pi.Currency)),
		PaymentIntentID: pi.ID,
		Source:          event.SourceStripe,
		Timestamp:       evt.Created * 1000,
		Metadata: map[string]any{
			"stripeEventId":   evt.ID,
			"stripeEventType": string(evt.Type),
		},
	}

	if evt.Type == stripeSucceeded {
		out.Type = event.TypePaymentSucceeded
		out.Status = event.StatusSucceeded
		out.Amount = float64(pi.AmountReceived) / 100
		out.Metadata["paymentMethod"] = paymentMethodID(pi.PaymentMethod)
		out.Metadata["customer"] = customerID(pi.Customer)
	} else {
		out.Type = event.TypePaymentFailed
		out.Status = event.StatusFailed
		out.Amount = float64(pi.Amount) / 100
		out.Metadata["lastPaymentError"] = lastPaymentError(pi.LastPaymentError)
	}

	return Result{Event: out, Normalized: true}, nil
}

// nil stays nil so the canonical JSON carries null like the provider did.
func paymentMethodID(pm *stripe.PaymentMethod) any {
	if pm == nil || pm.ID == "" {
		return nil
	}
	return pm.ID
}

func customerID(c *stripe.Customer) any {
	if c == nil || c.ID == "" {
		return nil
	}
	return c.ID
}

func lastPaymentError(e *stripe.Error) any {
	if e == nil {
		return nil
	}
	out := map[string]any{
		"type":    string(e.Type),
		"message": e.Msg,
	}
	if e.Code != "" {
		out["code"] = string(e.Code)
	}
	if e.DeclineCode != "" {
		out["declineCode"] = string(e.DeclineCode)
	}
	return out
}

type mockPayload struct {
	Type            string         `json:"type"`
	PaymentIntentID string         `json:"paymentIntentId"`
	Reference       string         `json:"reference"`
	Amount          float64        `json:"amount"`
	Currency        string         `json:"currency"`
	Status          string         `json:"status"`
	Timestamp       int64          `json:"timestamp"`
	Metadata        map[string]any `json:"metadata"`
}

func (n *Normalizer) normalizeMock(raw []byte) (Result, error) {
	var p mockPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return Result{}, fmt.Errorf("%w: decode mock event: %v", ErrNormalization, err)
	}

	if p.Type == "" || p.PaymentIntentID == "" {
		return Result{}, fmt.Errorf("%w: mock event requires type and paymentIntentId", ErrNormalization)
	}

	out := event.NormalizedEvent{
		Type:            p.Type,
		Reference:       p.Reference,
		Amount:          p.Amount,
		Currency:        strings.ToUpper(p.Currency),
		PaymentIntentID: p.PaymentIntentID,
		Status:          p.Status,
		Source:          event.SourceMock,
		Timestamp:       p.Timestamp,
		Metadata:        p.Metadata,
	}

	if out.Reference == "" {
		out.Reference = defaultMockReference
	}
	if out.Currency == "" {
		out.Currency = defaultMockCurrency
	}
	if out.Status == "" {
		status, ok := event.StatusForType(p.Type)
		if !ok {
			status = event.StatusSucceeded
		}
		out.Status = status
	}
	if out.Timestamp == 0 {
		out.Timestamp = n.now().UnixMilli()
	}
	if out.Metadata == nil {
		out.Metadata = map[string]any{}
	}

	return Result{Event: out, Normalized: true}, nil
}

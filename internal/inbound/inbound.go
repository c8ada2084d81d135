// Package inbound authenticates webhooks sent by registered partners.
package inbound

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"PaymentGateway/internal/domain/partner"
	"PaymentGateway/internal/signature"
)

var (
	ErrMalformed        = errors.New("body must be a JSON object")
	ErrMissingPartnerID = errors.New("partnerId is required")
	ErrInactive         = errors.New("partner is inactive")
	ErrSignature        = errors.New("signature verification failed")
	ErrNotSubscribed    = errors.New("partner is not subscribed to this event type")
)

// SignatureError carries the diagnostic reason of a failed verification.
type SignatureError struct {
	Reason string
}

func (e *SignatureError) Error() string { return e.Reason }

func (e *SignatureError) Is(target error) bool { return target == ErrSignature }

// Event is an authenticated partner webhook.
type Event struct {
	PartnerID   string          `json:"partnerId"`
	PartnerName string          `json:"partnerName"`
	Type        string          `json:"type"`
	Payload     json.RawMessage `json:"payload"`
	ReceivedAt  time.Time       `json:"receivedAt"`
}

// Sink receives accepted partner events.
type Sink interface {
	Accept(ctx context.Context, evt Event) error
}

type Registry interface {
	GetByID(ctx context.Context, id string) (partner.Partner, error)
}

type envelope struct {
	PartnerID string `json:"partnerId"`
	Type      string `json:"type"`
}

type Verifier struct {
	registry Registry
	sink     Sink
	now      func() time.Time
}

func NewVerifier(registry Registry, sink Sink) *Verifier {
	return &Verifier{registry: registry, sink: sink, now: time.Now}
}

// Handle runs the checks in order and stops at the first failure: body shape,
// partner lookup, active flag, signature, then subscription. The accepted
// event carries the canonical bytes that were authenticated, not the raw body.
func (v *Verifier) Handle(ctx context.Context, headers http.Header, raw []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if env.PartnerID == "" {
		return Event{}, ErrMissingPartnerID
	}

	p, err := v.registry.GetByID(ctx, env.PartnerID)
	if err != nil {
		return Event{}, err
	}

	if !p.IsActive {
		return Event{}, ErrInactive
	}

	canonical, err := signature.Canonicalize(json.RawMessage(raw))
	if err != nil {
		return Event{}, fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	if res := signature.VerifyRequest(headers, json.RawMessage(canonical), p.HMACSecret); !res.Valid {
		slog.WarnContext(ctx, "Partner webhook rejected", "partner_id", p.ID, "reason", res.Reason)
		return Event{}, &SignatureError{Reason: res.Reason}
	}

	if !p.SubscribedTo(env.Type) {
		return Event{}, fmt.Errorf("%w: %q", ErrNotSubscribed, env.Type)
	}

	evt := Event{
		PartnerID:   p.ID,
		PartnerName: p.Name,
		Type:        env.Type,
		Payload:     json.RawMessage(canonical),
		ReceivedAt:  v.now().UTC(),
	}

	if err := v.sink.Accept(ctx, evt); err != nil {
		return Event{}, fmt.Errorf("hand off partner event: %w", err)
	}
	return evt, nil
}

// LogSink records accepted events and does nothing else.
type LogSink struct{}

func (LogSink) Accept(ctx context.Context, evt Event) error {
	slog.InfoContext(ctx, "Partner webhook accepted",
		"partner_id", evt.PartnerID, "event_type", evt.Type, "bytes", len(evt.Payload))
	return nil
}

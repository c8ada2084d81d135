package event

import (
	"errors"
	"maps"
	"slices"
)

type Source string

const (
	SourceStripe Source = "stripe"
	SourceMock   Source = "mock"
)

var AvailableSources = []Source{SourceStripe, SourceMock}

var ErrUnknownSource = errors.New("unknown event source")

func NewSource(raw string) (Source, error) {
	if slices.Contains(AvailableSources, Source(raw)) {
		return Source(raw), nil
	}
	return "", ErrUnknownSource
}

const (
	TypePaymentSucceeded = "payment.succeeded"
	TypePaymentFailed    = "payment.failed"
)

const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// StatusForType returns the terminal status mirrored by a canonical type.
func StatusForType(eventType string) (string, bool) {
	switch eventType {
	case TypePaymentSucceeded:
		return StatusSucceeded, true
	case TypePaymentFailed:
		return StatusFailed, true
	default:
		return "", false
	}
}

// NormalizedEvent is the canonical shape of a payment occurrence. Values are
// produced by the normalizer and treated as read-only afterwards.
type NormalizedEvent struct {
	Type            string         `json:"type"`
	Reference       string         `json:"reference"`
	Amount          float64        `json:"amount"`
	Currency        string         `json:"currency"`
	PaymentIntentID string         `json:"paymentIntentId"`
	Status          string         `json:"status"`
	Source          Source         `json:"source"`
	Timestamp       int64          `json:"timestamp"`
	Metadata        map[string]any `json:"metadata,omitempty"`
}

// Clone returns a copy that shares no mutable state with e.
func (e NormalizedEvent) Clone() NormalizedEvent {
	out := e
	if e.Metadata != nil {
		out.Metadata = maps.Clone(e.Metadata)
	}
	return out
}

// ForPartner builds the outbound payload sent to one partner.
func (e NormalizedEvent) ForPartner(partnerID string) PartnerPayload {
	return PartnerPayload{NormalizedEvent: e.Clone(), PartnerID: partnerID}
}

// PartnerPayload is a NormalizedEvent plus the receiving partner's id.
type PartnerPayload struct {
	NormalizedEvent
	PartnerID string `json:"partnerId"`
}

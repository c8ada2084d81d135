package events

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"PaymentGateway/internal/dispatcher"
	"PaymentGateway/pkg/correlation"

	"github.com/segmentio/kafka-go"
)

// DLQPublisher dead-letters partner deliveries that did not succeed. The
// message value is the exact signed body, so it can be replayed as is.
type DLQPublisher struct {
	writer messageWriter
	topic  string
	now    func() time.Time
}

func NewDLQPublisher(brokers []string, dlqTopic string) *DLQPublisher {
	return &DLQPublisher{writer: newWriter(brokers, dlqTopic), topic: dlqTopic, now: time.Now}
}

// Report implements dispatcher.OutcomeReporter.
func (p *DLQPublisher) Report(ctx context.Context, o dispatcher.Outcome) {
	if o.Delivered() || len(o.Payload) == 0 {
		return
	}

	msg := kafka.Message{
		Key:   []byte(o.PartnerID),
		Value: o.Payload,
		Headers: []kafka.Header{
			{Key: "error", Value: []byte(o.Err().Error())},
			{Key: "failed_at", Value: []byte(p.now().UTC().Format(time.RFC3339))},
			{Key: "partner_id", Value: []byte(o.PartnerID)},
			{Key: "webhook_url", Value: []byte(o.WebhookURL)},
			{Key: "event_type", Value: []byte(o.EventType)},
			{Key: "outcome", Value: []byte(o.Status)},
			{Key: "attempts", Value: []byte(strconv.Itoa(o.Attempts))},
			{Key: "status_code", Value: []byte(strconv.Itoa(o.StatusCode))},
			{Key: "signature", Value: []byte(o.Signature)},
		},
	}
	if o.CorrelationID != "" {
		msg.Headers = append(msg.Headers, kafka.Header{Key: correlation.KafkaHeaderName, Value: []byte(o.CorrelationID)})
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		slog.ErrorContext(ctx, "Failed to publish to DLQ",
			"topic", p.topic,
			"partner_id", o.PartnerID,
			slog.Any("error", err),
			slog.Any("original_error", o.Err()))
		return
	}

	slog.WarnContext(ctx, "Delivery sent to DLQ",
		"topic", p.topic,
		"partner_id", o.PartnerID,
		"payment_intent_id", o.PaymentIntentID,
		slog.Any("error", o.Err()))
}

func (p *DLQPublisher) Close() error {
	return p.writer.Close()
}

package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"PaymentGateway/internal/domain/event"
	"PaymentGateway/internal/inbound"
	"PaymentGateway/pkg/correlation"

	"github.com/segmentio/kafka-go"
)

const TypeInboundPartnerEvent = "partner.inbound"

// defaultAcceptTimeout bounds the broker write made while a partner waits
// for its inbound webhook response.
const defaultAcceptTimeout = 2 * time.Second

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

func newWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
		WriteTimeout:           defaultAcceptTimeout,
	}
}

// Publisher writes envelopes to one topic.
type Publisher struct {
	writer        messageWriter
	topic         string
	acceptTimeout time.Duration
}

func NewPublisher(brokers []string, topic string) *Publisher {
	return &Publisher{
		writer:        newWriter(brokers, topic),
		topic:         topic,
		acceptTimeout: defaultAcceptTimeout,
	}
}

func (p *Publisher) Publish(ctx context.Context, env Envelope) error {
	value, err := json.Marshal(env)
	if err != nil {
		return err
	}

	msg := kafka.Message{
		Key:   []byte(env.Key),
		Value: value,
	}

	if corrID := correlation.FromContext(ctx); corrID != "" {
		msg.Headers = append(msg.Headers, kafka.Header{
			Key:   correlation.KafkaHeaderName,
			Value: []byte(corrID),
		})
	}

	if err = p.writer.WriteMessages(ctx, msg); err != nil {
		slog.ErrorContext(ctx, "Failed to publish message",
			"topic", p.topic, "key", env.Key, "error", err)
		return err
	}

	slog.DebugContext(ctx, "Message published",
		"topic", p.topic, "key", env.Key, "event_id", env.EventID)
	return nil
}

// PublishEvent streams a normalized payment event keyed by payment intent.
func (p *Publisher) PublishEvent(ctx context.Context, evt event.NormalizedEvent) error {
	env, err := NewEnvelope(evt.PaymentIntentID, evt.Type, evt)
	if err != nil {
		return err
	}
	return p.Publish(ctx, env)
}

// Accept hands an authenticated partner webhook to the inbound topic. The
// write runs inside the partner's request, so it gives up after
// acceptTimeout instead of waiting on an unreachable broker.
func (p *Publisher) Accept(ctx context.Context, evt inbound.Event) error {
	env, err := NewEnvelope(evt.PartnerID, TypeInboundPartnerEvent, evt)
	if err != nil {
		return err
	}

	timeout := p.acceptTimeout
	if timeout <= 0 {
		timeout = defaultAcceptTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	return p.Publish(ctx, env)
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

// EventPublisher is what the webhook handlers depend on.
type EventPublisher interface {
	PublishEvent(ctx context.Context, evt event.NormalizedEvent) error
}

// Nop drops every event. It is used when Kafka is not configured.
type Nop struct{}

func (Nop) PublishEvent(context.Context, event.NormalizedEvent) error { return nil }

//go:build integration
// +build integration

package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"PaymentGateway/internal/dispatcher"
	"PaymentGateway/internal/domain/event"
	"PaymentGateway/internal/testinfra"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readOne(t *testing.T, brokers []string, topic string) kafka.Message {
	t.Helper()

	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     brokers,
		Topic:       topic,
		Partition:   0,
		StartOffset: kafka.FirstOffset,
		MaxWait:     500 * time.Millisecond,
	})
	defer r.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	msg, err := r.ReadMessage(ctx)
	require.NoError(t, err)
	return msg
}

func TestKafka_PublishAndDeadLetter(t *testing.T) {
	ctx := context.Background()

	kc, err := testinfra.NewKafka(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { kc.Cleanup(ctx) })

	pub := NewPublisher(kc.Brokers, kc.EventsTopic)
	t.Cleanup(func() { _ = pub.Close() })

	require.NoError(t, pub.PublishEvent(ctx, event.NormalizedEvent{
		Type:            event.TypePaymentSucceeded,
		PaymentIntentID: "pi_int_1",
		Amount:          12.5,
		Currency:        "USD",
	}))

	msg := readOne(t, kc.Brokers, kc.EventsTopic)
	assert.Equal(t, "pi_int_1", string(msg.Key))

	var env Envelope
	require.NoError(t, json.Unmarshal(msg.Value, &env))
	assert.Equal(t, event.TypePaymentSucceeded, env.Type)

	dlq := NewDLQPublisher(kc.Brokers, kc.DLQTopic)
	t.Cleanup(func() { _ = dlq.Close() })

	dlq.Report(ctx, dispatcher.Outcome{
		PartnerID: "acme",
		Status:    dispatcher.StatusRejected,
		Attempts:  1,
		Payload:   []byte(`{"partnerId":"acme"}`),
	})

	dead := readOne(t, kc.Brokers, kc.DLQTopic)
	assert.Equal(t, "acme", string(dead.Key))
	assert.JSONEq(t, `{"partnerId":"acme"}`, string(dead.Value))
}

package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"PaymentGateway/internal/domain/event"
	"PaymentGateway/internal/events"
	"PaymentGateway/internal/normalizer"
	"PaymentGateway/pkg/metrics"

	"github.com/gin-gonic/gin"
	"github.com/stripe/stripe-go/v79/webhook"
)

const stripeSignatureHeader = "Stripe-Signature"

type Dispatcher interface {
	Dispatch(ctx context.Context, evt event.NormalizedEvent) (int, error)
	DispatchTest(ctx context.Context, eventType string) (event.NormalizedEvent, int, error)
}

type Confirmer interface {
	NotifySucceeded(ctx context.Context, evt event.NormalizedEvent)
}

// WebhookHandler receives provider webhooks. Once the provider signature is
// valid the answer is always 200, so the provider stops retrying.
type WebhookHandler struct {
	normalizer   *normalizer.Normalizer
	dispatcher   Dispatcher
	confirmer    Confirmer
	publisher    events.EventPublisher
	stripeSecret string
}

func NewWebhookHandler(
	n *normalizer.Normalizer,
	d Dispatcher,
	confirmer Confirmer,
	publisher events.EventPublisher,
	stripeSecret string,
) *WebhookHandler {
	return &WebhookHandler{
		normalizer:   n,
		dispatcher:   d,
		confirmer:    confirmer,
		publisher:    publisher,
		stripeSecret: stripeSecret,
	}
}

func (h *WebhookHandler) Stripe(c *gin.Context) {
	sigHeader := c.GetHeader(stripeSignatureHeader)
	if sigHeader == "" {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Missing stripe-signature header"})
		return
	}

	payload, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Unable to read body"})
		return
	}

	if _, err := webhook.ConstructEventWithOptions(payload, sigHeader, h.stripeSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true}); err != nil {
		slog.WarnContext(c.Request.Context(), "Stripe webhook signature verification failed", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"message": "Webhook Error: signature verification failed"})
		return
	}

	h.process(c, event.SourceStripe, payload)
}

func (h *WebhookHandler) Mock(c *gin.Context) {
	payload, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Unable to read body"})
		return
	}

	h.process(c, event.SourceMock, payload)
}

func (h *WebhookHandler) process(c *gin.Context, source event.Source, payload []byte) {
	ctx := c.Request.Context()

	res, err := h.normalizer.Normalize(source, payload)
	if err != nil {
		metrics.NormalizationsTotal.WithLabelValues(string(source), "error").Inc()
		slog.ErrorContext(ctx, "Webhook normalization failed", "source", source, "error", err)
		c.JSON(http.StatusOK, gin.H{"received": true, "normalized": false, "message": err.Error()})
		return
	}

	if !res.Normalized {
		metrics.NormalizationsTotal.WithLabelValues(string(source), "ignored").Inc()
		slog.InfoContext(ctx, "Webhook acknowledged without normalization", "source", source, "reason", res.Reason)
		c.JSON(http.StatusOK, gin.H{"received": true, "normalized": false, "message": res.Reason})
		return
	}
	metrics.NormalizationsTotal.WithLabelValues(string(source), "normalized").Inc()

	evt := res.Event
	slog.InfoContext(ctx, "Webhook normalized",
		"source", source, "event_type", evt.Type, "payment_intent_id", evt.PaymentIntentID, "reference", evt.Reference)

	partners, err := h.dispatcher.Dispatch(ctx, evt)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to dispatch event", "event_type", evt.Type, "error", err)
	}

	h.confirmer.NotifySucceeded(ctx, evt)

	detached := context.WithoutCancel(ctx)
	go func() {
		if err := h.publisher.PublishEvent(detached, evt); err != nil {
			slog.WarnContext(detached, "Failed to stream normalized event", "payment_intent_id", evt.PaymentIntentID, "error", err)
		}
	}()

	c.JSON(http.StatusOK, gin.H{
		"received":   true,
		"normalized": true,
		"type":       evt.Type,
		"partners":   partners,
	})
}

type testEventRequest struct {
	Type string `json:"type"`
}

// TriggerTest dispatches a synthetic event to subscribed partners.
func (h *WebhookHandler) TriggerTest(c *gin.Context) {
	var req testEventRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
			return
		}
	}

	evt, partners, err := h.dispatcher.DispatchTest(c.Request.Context(), req.Type)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"message":  "Test event dispatched",
		"event":    evt,
		"partners": partners,
	})
}

package gateway

import (
	"PaymentGateway/internal/gateway/handlers"
	"PaymentGateway/pkg/health"
	"PaymentGateway/pkg/metrics"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const serviceName = "payment-gateway"

type Router struct {
	payment        *handlers.PaymentHandler
	webhook        *handlers.WebhookHandler
	partner        *handlers.PartnerHandler
	inbound        *handlers.InboundHandler
	hmac           *handlers.HMACHandler
	healthRegistry *health.Registry

	mockWebhook bool
	debugRoutes bool
}

func (r *Router) SetUp(engine *gin.Engine) {
	engine.GET("/health/live", health.LivenessHandler(serviceName))
	engine.GET("/health/ready", health.ReadinessHandler(r.healthRegistry, health.DefaultTimeout))

	engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{})))

	engine.POST("/pay", r.payment.Pay)

	// Provider webhooks
	engine.POST("/webhooks/stripe", r.webhook.Stripe)
	if r.mockWebhook || r.debugRoutes {
		engine.POST("/webhooks/mock", r.webhook.Mock)
	}

	// Partner registry
	engine.POST("/partners/register", r.partner.Register)
	engine.GET("/partners", r.partner.List)
	engine.GET("/partners/:partner_id", r.partner.Get)
	engine.DELETE("/partners/:partner_id", r.partner.Delete)
	engine.PATCH("/partners/:partner_id/status", r.partner.SetStatus)

	engine.POST("/webhooks/partner", r.inbound.Receive)

	if r.debugRoutes {
		engine.POST("/hmac/sign", r.hmac.Sign)
		engine.POST("/hmac/verify", r.hmac.Verify)
		engine.POST("/webhooks/test", r.webhook.TriggerTest)
	}
}

func NewRouter(
	payment *handlers.PaymentHandler,
	webhook *handlers.WebhookHandler,
	partner *handlers.PartnerHandler,
	inbound *handlers.InboundHandler,
	hmac *handlers.HMACHandler,
	healthRegistry *health.Registry,
	mockWebhook bool,
	debugRoutes bool,
) *Router {
	return &Router{
		payment:        payment,
		webhook:        webhook,
		partner:        partner,
		inbound:        inbound,
		hmac:           hmac,
		healthRegistry: healthRegistry,
		mockWebhook:    mockWebhook,
		debugRoutes:    debugRoutes,
	}
}

package payment

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"PaymentGateway/config"
)

//go:generate mockgen -source adapter.go -destination mock_adapter.go -package payment

var (
	ErrInvalidAmount    = errors.New("amount must be a positive number")
	ErrInvalidReference = errors.New("reference is required")
	ErrProvider         = errors.New("payment provider error")
)

// Intent is what a caller needs to complete a payment on the client side.
type Intent struct {
	ClientSecret    string `json:"clientSecret"`
	PaymentIntentID string `json:"paymentIntentId"`
}

// Adapter creates payments on one provider.
type Adapter interface {
	CreatePayment(ctx context.Context, amount float64, reference string) (Intent, error)
}

// NewAdapter selects the provider adapter configured by PAYMENT_PROVIDER.
func NewAdapter(cfg config.Config) (Adapter, error) {
	switch cfg.PaymentProvider {
	case config.ProviderStripe:
		return NewStripeAdapter(cfg.StripeSecretKey, cfg.StripeCurrency, nil), nil
	case config.ProviderMock:
		return NewSimulatedAdapter(cfg.MockLatency), nil
	default:
		return nil, fmt.Errorf("unsupported payment provider %q", cfg.PaymentProvider)
	}
}

func validate(amount float64, reference string) error {
	if math.IsNaN(amount) || math.IsInf(amount, 0) || amount <= 0 {
		return ErrInvalidAmount
	}
	if strings.TrimSpace(reference) == "" {
		return ErrInvalidReference
	}
	return nil
}

package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"
)

const referenceMetadataKey = "reference"

// StripeAdapter creates PaymentIntents with automatic payment methods and the
// caller's reference stored in metadata.
type StripeAdapter struct {
	client   *client.API
	currency string
}

// NewStripeAdapter builds an adapter on its own client.API. A nil backends
// uses stripe's defaults.
func NewStripeAdapter(secretKey, currency string, backends *stripe.Backends) *StripeAdapter {
	sc := &client.API{}
	sc.Init(secretKey, backends)

	if currency == "" {
		currency = string(stripe.CurrencyUSD)
	}
	return &StripeAdapter{client: sc, currency: strings.ToLower(currency)}
}

func (a *StripeAdapter) CreatePayment(ctx context.Context, amount float64, reference string) (Intent, error) {
	if err := validate(amount, reference); err != nil {
		return Intent{}, err
	}

	cents := int64(math.Round(amount * 100))
	if cents <= 0 {
		return Intent{}, ErrInvalidAmount
	}

	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(cents),
		Currency: stripe.String(a.currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.AddMetadata(referenceMetadataKey, reference)
	params.Context = ctx

	pi, err := a.client.PaymentIntents.New(params)
	if err != nil {
		return Intent{}, mapStripeError(err)
	}

	slog.InfoContext(ctx, "Stripe payment intent created",
		"payment_intent_id", pi.ID, "reference", reference, "amount_cents", cents)

	return Intent{ClientSecret: pi.ClientSecret, PaymentIntentID: pi.ID}, nil
}

// mapStripeError keeps stripe types out of the callers.
func mapStripeError(err error) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		return fmt.Errorf("%w: stripe %d %s: %s", ErrProvider, stripeErr.HTTPStatusCode, stripeErr.Code, stripeErr.Msg)
	}
	return fmt.Errorf("%w: %v", ErrProvider, err)
}

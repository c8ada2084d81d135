package payment

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/google/uuid"
)

var unsafeIDChars = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

// SimulatedAdapter fabricates intents locally after an optional delay. It
// backs PAYMENT_PROVIDER=mock and never talks to the network.
type SimulatedAdapter struct {
	latency time.Duration
	now     func() time.Time
}

func NewSimulatedAdapter(latency time.Duration) *SimulatedAdapter {
	return &SimulatedAdapter{latency: latency, now: time.Now}
}

func (a *SimulatedAdapter) CreatePayment(ctx context.Context, amount float64, reference string) (Intent, error) {
	if err := validate(amount, reference); err != nil {
		return Intent{}, err
	}

	if a.latency > 0 {
		timer := time.NewTimer(a.latency)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return Intent{}, fmt.Errorf("%w: %v", ErrProvider, ctx.Err())
		case <-timer.C:
		}
	}

	suffix := uuid.NewString()[:8]
	id := fmt.Sprintf("mock_pi_%d_%s_%s", a.now().UnixMilli(), unsafeIDChars.ReplaceAllString(reference, "_"), suffix)
	secret := fmt.Sprintf("%s_secret_%s", id, uuid.NewString()[:12])

	slog.InfoContext(ctx, "Simulated payment intent created",
		"payment_intent_id", id, "reference", reference, "amount", amount)

	return Intent{ClientSecret: secret, PaymentIntentID: id}, nil
}

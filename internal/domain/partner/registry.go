package partner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"slices"
	"strings"
	"time"

	"PaymentGateway/internal/signature"
	"PaymentGateway/pkg/metrics"

	"github.com/google/uuid"
)

// Registry owns partner lifetime. It is constructed once by the composition
// root and shared by the HTTP handlers, the dispatcher and the inbound verifier.
type Registry struct {
	store     Store
	newID     func() string
	newSecret func() string
	now       func() time.Time
}

type RegistryOption func(*Registry)

func WithIDGenerator(fn func() string) RegistryOption {
	return func(r *Registry) { r.newID = fn }
}

func WithSecretGenerator(fn func() string) RegistryOption {
	return func(r *Registry) { r.newSecret = fn }
}

func WithClock(fn func() time.Time) RegistryOption {
	return func(r *Registry) { r.now = fn }
}

func NewRegistry(store Store, opts ...RegistryOption) *Registry {
	r := &Registry{
		store:     store,
		newID:     func() string { return "partner_" + uuid.NewString() },
		newSecret: signature.GenerateSecret,
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register validates the request, generates id and secret and stores the
// partner. The returned Partner is the only place the secret is exposed.
func (r *Registry) Register(ctx context.Context, req NewPartner) (Partner, error) {
	events := normalizeEvents(req.Events)
	if len(events) == 0 {
		return Partner{}, ErrNoSubscriptions
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return Partner{}, fmt.Errorf("%w: name is required", ErrInvalidPartner)
	}

	if err := validateWebhookURL(req.WebhookURL); err != nil {
		return Partner{}, err
	}

	p := Partner{
		ID:                 r.newID(),
		Name:               name,
		WebhookURL:         req.WebhookURL,
		EventSubscriptions: events,
		HMACSecret:         r.newSecret(),
		IsActive:           true,
		CreatedAt:          r.now(),
	}

	if err := r.store.Save(ctx, p); err != nil {
		return Partner{}, fmt.Errorf("save partner: %w", err)
	}

	metrics.PartnersRegistered.Inc()
	slog.InfoContext(ctx, "Partner registered",
		"partner_id", p.ID, "name", p.Name, "events", p.EventSubscriptions)

	return p, nil
}

func (r *Registry) List(ctx context.Context) ([]Summary, error) {
	partners, err := r.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list partners: %w", err)
	}

	out := make([]Summary, 0, len(partners))
	for _, p := range partners {
		out = append(out, p.Summary())
	}
	return out, nil
}

// Find lists partners matching q. The zero query matches everyone.
func (r *Registry) Find(ctx context.Context, q ListQuery) ([]Summary, error) {
	all, err := r.List(ctx)
	if err != nil {
		return nil, err
	}

	out := all[:0]
	for _, s := range all {
		if q.Match(s) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *Registry) GetByID(ctx context.Context, id string) (Partner, error) {
	p, err := r.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Partner{}, ErrNotFound
		}
		return Partner{}, fmt.Errorf("get partner: %w", err)
	}
	return p, nil
}

// Delete hard-deletes the partner and reports whether one was removed.
func (r *Registry) Delete(ctx context.Context, id string) (bool, error) {
	removed, err := r.store.Delete(ctx, id)
	if err != nil {
		return false, fmt.Errorf("delete partner: %w", err)
	}

	if removed {
		metrics.PartnersRegistered.Dec()
		slog.InfoContext(ctx, "Partner deleted", "partner_id", id)
	}
	return removed, nil
}

// SubscriberFinder is implemented by stores that can filter subscribers
// themselves, such as the Postgres store using its subscriptions index.
type SubscriberFinder interface {
	ActiveSubscribers(ctx context.Context, eventType string) ([]Partner, error)
}

// SyncMetrics sets the registered-partners gauge from the store. Persistent
// stores survive restarts, so the gauge is seeded once at boot.
func (r *Registry) SyncMetrics(ctx context.Context) error {
	partners, err := r.store.List(ctx)
	if err != nil {
		return fmt.Errorf("list partners: %w", err)
	}

	metrics.PartnersRegistered.Set(float64(len(partners)))
	return nil
}

// GetActiveSubscribers returns active partners subscribed to eventType.
func (r *Registry) GetActiveSubscribers(ctx context.Context, eventType string) ([]Partner, error) {
	if finder, ok := r.store.(SubscriberFinder); ok {
		subs, err := finder.ActiveSubscribers(ctx, eventType)
		if err != nil {
			return nil, fmt.Errorf("find subscribers: %w", err)
		}
		return subs, nil
	}

	partners, err := r.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list partners: %w", err)
	}

	out := make([]Partner, 0, len(partners))
	for _, p := range partners {
		if p.IsActive && p.SubscribedTo(eventType) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *Registry) SetActive(ctx context.Context, id string, active bool) (Summary, error) {
	p, err := r.store.SetActive(ctx, id, active)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Summary{}, ErrNotFound
		}
		return Summary{}, fmt.Errorf("set partner active: %w", err)
	}

	slog.InfoContext(ctx, "Partner status changed", "partner_id", id, "is_active", active)
	return p.Summary(), nil
}

// normalizeEvents trims, drops blanks and de-duplicates while keeping order.
func normalizeEvents(events []string) []string {
	out := make([]string, 0, len(events))
	for _, e := range events {
		e = strings.TrimSpace(e)
		if e == "" || slices.Contains(out, e) {
			continue
		}
		out = append(out, e)
	}
	return out
}

func validateWebhookURL(raw string) error {
	u, err := url.ParseRequestURI(raw)
	if err != nil {
		return fmt.Errorf("%w: webhookUrl: %v", ErrInvalidPartner, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: webhookUrl must use http or https", ErrInvalidPartner)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: webhookUrl must include a host", ErrInvalidPartner)
	}
	return nil
}

package partner

import (
	"slices"
	"time"
)

// Partner is a registered downstream subscriber. HMACSecret leaves the
// gateway only once, in the registration response.
type Partner struct {
	ID                 string    `json:"id"`
	Name               string    `json:"name"`
	WebhookURL         string    `json:"webhookUrl"`
	EventSubscriptions []string  `json:"eventosSuscritos"`
	HMACSecret         string    `json:"hmacSecret"`
	IsActive           bool      `json:"isActive"`
	CreatedAt          time.Time `json:"createdAt"`
}

// Summary is the listing view of a Partner, without the secret.
type Summary struct {
	ID                 string    `json:"id"`
	Name               string    `json:"name"`
	WebhookURL         string    `json:"webhookUrl"`
	EventSubscriptions []string  `json:"eventosSuscritos"`
	IsActive           bool      `json:"isActive"`
	CreatedAt          time.Time `json:"createdAt"`
}

func (p Partner) Summary() Summary {
	return Summary{
		ID:                 p.ID,
		Name:               p.Name,
		WebhookURL:         p.WebhookURL,
		EventSubscriptions: slices.Clone(p.EventSubscriptions),
		IsActive:           p.IsActive,
		CreatedAt:          p.CreatedAt,
	}
}

func (p Partner) SubscribedTo(eventType string) bool {
	return slices.Contains(p.EventSubscriptions, eventType)
}

// Clone returns a deep copy, so callers never share the subscription slice
// with the store.
func (p Partner) Clone() Partner {
	p.EventSubscriptions = slices.Clone(p.EventSubscriptions)
	return p
}

type NewPartner struct {
	Name       string
	WebhookURL string
	Events     []string
}

type ListQuery struct {
	Active *bool  `json:"active,omitempty" url:"active,omitempty" form:"active"`
	Event  string `json:"event,omitempty" url:"event,omitempty" form:"event"`
}

func (q ListQuery) Match(s Summary) bool {
	if q.Active != nil && s.IsActive != *q.Active {
		return false
	}
	if q.Event != "" && !slices.Contains(s.EventSubscriptions, q.Event) {
		return false
	}
	return true
}

package partner_repo

import (
	"context"
	"slices"
	"strings"
	"sync"

	"PaymentGateway/internal/domain/partner"
)

// MemoryStore keeps partners for the lifetime of the process.
type MemoryStore struct {
	mu       sync.RWMutex
	partners map[string]partner.Partner
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{partners: make(map[string]partner.Partner)}
}

func (s *MemoryStore) Save(_ context.Context, p partner.Partner) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.partners[p.ID]; ok {
		return partner.ErrAlreadyExists
	}
	s.partners[p.ID] = p.Clone()
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (partner.Partner, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.partners[id]
	if !ok {
		return partner.Partner{}, partner.ErrNotFound
	}
	return p.Clone(), nil
}

// List returns partners ordered by creation time, then id.
func (s *MemoryStore) List(_ context.Context) ([]partner.Partner, error) {
	s.mu.RLock()
	out := make([]partner.Partner, 0, len(s.partners))
	for _, p := range s.partners {
		out = append(out, p.Clone())
	}
	s.mu.RUnlock()

	slices.SortFunc(out, func(a, b partner.Partner) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out, nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.partners[id]; !ok {
		return false, nil
	}
	delete(s.partners, id)
	return true, nil
}

func (s *MemoryStore) SetActive(_ context.Context, id string, active bool) (partner.Partner, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.partners[id]
	if !ok {
		return partner.Partner{}, partner.ErrNotFound
	}
	p.IsActive = active
	s.partners[id] = p
	return p.Clone(), nil
}

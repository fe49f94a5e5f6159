package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"

	authcore "github.com/croftbar/authcore"
)

// Store is an in-memory credential store implementing
// [authcore.PrincipalProvider].
type Store struct {
	mu      sync.RWMutex
	byID    map[string]*authcore.Principal
	byEmail map[string]string
}

// New returns an empty store.
func New() *Store {
	return &Store{
		byID:    make(map[string]*authcore.Principal),
		byEmail: make(map[string]string),
	}
}

func clonePrincipal(p *authcore.Principal) *authcore.Principal {
	cp := *p
	return &cp
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *Store) FindByID(_ context.Context, id string) (*authcore.Principal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.byID[id]
	if !ok {
		return nil, authcore.ErrPrincipalNotFound
	}
	return clonePrincipal(p), nil
}

func (s *Store) FindByEmail(_ context.Context, email string) (*authcore.Principal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[normalizeEmail(email)]
	if !ok {
		return nil, authcore.ErrPrincipalNotFound
	}
	return clonePrincipal(s.byID[id]), nil
}

func (s *Store) Create(_ context.Context, p *authcore.Principal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	email := normalizeEmail(p.Email)
	if _, exists := s.byEmail[email]; exists {
		return authcore.ErrPrincipalExists
	}
	if _, exists := s.byID[p.ID]; exists {
		return authcore.ErrPrincipalExists
	}

	cp := clonePrincipal(p)
	cp.Email = email
	s.byID[cp.ID] = cp
	s.byEmail[email] = cp.ID

	return nil
}

func (s *Store) Update(_ context.Context, p *authcore.Principal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.byID[p.ID]
	if !ok {
		return authcore.ErrPrincipalNotFound
	}

	email := normalizeEmail(p.Email)
	if other, taken := s.byEmail[email]; taken && other != p.ID {
		return authcore.ErrPrincipalExists
	}

	delete(s.byEmail, existing.Email)
	cp := clonePrincipal(p)
	cp.Email = email
	s.byID[cp.ID] = cp
	s.byEmail[email] = cp.ID

	return nil
}

func (s *Store) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.byID[id]
	if !ok {
		return authcore.ErrPrincipalNotFound
	}

	delete(s.byEmail, p.Email)
	delete(s.byID, id)

	return nil
}

// List returns principals ordered by creation time, oldest first, with
// email as a tiebreaker. Negative offsets read from the start; limit <= 0
// means no cap.
func (s *Store) List(_ context.Context, offset, limit int) ([]*authcore.Principal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]*authcore.Principal, 0, len(s.byID))
	for _, p := range s.byID {
		all = append(all, clonePrincipal(p))
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.Before(all[j].CreatedAt)
		}
		return all[i].Email < all[j].Email
	})

	if offset < 0 {
		offset = 0
	}
	if offset >= len(all) {
		return []*authcore.Principal{}, nil
	}
	all = all[offset:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}

	return all, nil
}

// Len reports how many principals are stored.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

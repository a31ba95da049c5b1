package storage

import (
	"context"
	"sync"
	"time"

	"github.com/m3rciful/appleidbot/bot/domain"
)

// MemoryStore is an in-memory PairStore implementation for tests and
// development. Identity keys are case-folded to mirror the database's
// case-insensitive uniqueness.
type MemoryStore struct {
	mu       sync.RWMutex
	nextID   int64
	pairs    map[string]*domain.RegisteredPair
	order    []string
	verified map[int64]domain.VerifiedUser
}

// NewMemoryStore constructs an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		pairs:    make(map[string]*domain.RegisteredPair),
		verified: make(map[int64]domain.VerifiedUser),
	}
}

// AddPair stores a new pair, reporting false on a duplicate identity.
func (s *MemoryStore) AddPair(_ context.Context, id domain.Identity, phone, addedBy string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := id.Fold()
	if _, exists := s.pairs[key]; exists {
		return false, nil
	}
	s.nextID++
	s.pairs[key] = &domain.RegisteredPair{
		ID:      s.nextID,
		AppleID: id.String(),
		Phone:   phone,
		AddedBy: addedBy,
		AddedAt: time.Now().UTC(),
	}
	s.order = append(s.order, key)
	return true, nil
}

// UpdatePhone replaces the phone for an existing identity.
func (s *MemoryStore) UpdatePhone(_ context.Context, id domain.Identity, newPhone string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pair, ok := s.pairs[id.Fold()]
	if !ok {
		return false, nil
	}
	now := time.Now().UTC()
	pair.Phone = newPhone
	pair.LastUpdated = &now
	return true, nil
}

// RemovePair deletes the pair for the identity.
func (s *MemoryStore) RemovePair(_ context.Context, id domain.Identity) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := id.Fold()
	if _, ok := s.pairs[key]; !ok {
		return false, nil
	}
	delete(s.pairs, key)
	for i, k := range s.order {
		if k == key {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true, nil
}

// ListPairs returns all registered pairs in insertion order.
func (s *MemoryStore) ListPairs(_ context.Context) ([]domain.RegisteredPair, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.RegisteredPair, 0, len(s.order))
	for _, key := range s.order {
		if pair, ok := s.pairs[key]; ok {
			out = append(out, *pair)
		}
	}
	return out, nil
}

// IdentityExists reports whether the identity is registered.
func (s *MemoryStore) IdentityExists(_ context.Context, id domain.Identity) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.pairs[id.Fold()]
	return ok, nil
}

// PhoneForIdentity resolves the registered phone for an identity.
func (s *MemoryStore) PhoneForIdentity(_ context.Context, id domain.Identity) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pair, ok := s.pairs[id.Fold()]
	if !ok {
		return "", false, nil
	}
	return pair.Phone, true, nil
}

// SetVerifiedUser records the verified identity for a chat.
func (s *MemoryStore) SetVerifiedUser(_ context.Context, chatID int64, id domain.Identity) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.verified[chatID] = domain.VerifiedUser{
		ChatID:     chatID,
		AppleID:    id.String(),
		VerifiedAt: time.Now().UTC(),
	}
	return true, nil
}

// VerifiedIdentity returns the verified identity recorded for a chat.
func (s *MemoryStore) VerifiedIdentity(_ context.Context, chatID int64) (domain.Identity, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	vu, ok := s.verified[chatID]
	if !ok {
		return "", false, nil
	}
	return domain.Identity(vu.AppleID), true, nil
}

// RemoveVerified deletes the verified-user record for a chat.
func (s *MemoryStore) RemoveVerified(_ context.Context, chatID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.verified[chatID]; !ok {
		return false, nil
	}
	delete(s.verified, chatID)
	return true, nil
}

var _ PairStore = (*MemoryStore)(nil)

package users

import (
	"context"
	"sync"

	"voxgate/pkg/model"
)

// MemoryStore is an in-memory Store. Used in tests and when no database
// path is configured; profiles do not survive restarts.
type MemoryStore struct {
	mu       sync.RWMutex
	profiles map[string]model.UserProfile
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		profiles: make(map[string]model.UserProfile),
	}
}

// Get returns the profile for userID, or ErrNotFound.
func (s *MemoryStore) Get(_ context.Context, userID string) (*model.UserProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.profiles[userID]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

// Put inserts or replaces a profile.
func (s *MemoryStore) Put(_ context.Context, profile *model.UserProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.profiles[profile.UserID] = *profile
	return nil
}

// All returns every stored profile.
func (s *MemoryStore) All(_ context.Context) ([]*model.UserProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*model.UserProfile, 0, len(s.profiles))
	for _, p := range s.profiles {
		cp := p
		out = append(out, &cp)
	}
	return out, nil
}

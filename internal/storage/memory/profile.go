// Package memory provides process-local stores for profiles and cart sessions.
package memory

import (
	"context"
	"sync"

	"github.com/xenking/kart-ledger/internal/domain/profile"
)

var _ profile.Store = (*ProfileStore)(nil)

// ProfileStore keeps the single profile in memory.
type ProfileStore struct {
	mu      sync.RWMutex
	profile *profile.Profile
}

// NewProfileStore returns an empty ProfileStore.
func NewProfileStore() *ProfileStore {
	return &ProfileStore{}
}

// Get returns a copy of the stored profile.
func (s *ProfileStore) Get(_ context.Context) (*profile.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.profile == nil {
		return nil, profile.ErrNotFound
	}
	p := *s.profile
	return &p, nil
}

// Put replaces the stored profile with a copy of p.
func (s *ProfileStore) Put(_ context.Context, p *profile.Profile) error {
	cp := *p

	s.mu.Lock()
	s.profile = &cp
	s.mu.Unlock()
	return nil
}

// Delete clears the stored profile.
func (s *ProfileStore) Delete(_ context.Context) error {
	s.mu.Lock()
	s.profile = nil
	s.mu.Unlock()
	return nil
}

// Ping always succeeds.
func (s *ProfileStore) Ping(context.Context) error {
	return nil
}

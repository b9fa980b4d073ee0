// Package store provides storage backends for NIRO.
//
// This file implements the in-memory store used by tests and
// single-process deployments without a database.
package store

import (
	"sync"
	"time"

	"github.com/nirolabs/niro/internal/models"
)

// InMemoryStore keeps all state in process memory, guarded by a mutex.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*models.ConversationState
	profiles map[string]*models.AstroProfile
	transits map[string]*models.AstroTransits
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		sessions: make(map[string]*models.ConversationState),
		profiles: make(map[string]*models.AstroProfile),
		transits: make(map[string]*models.AstroTransits),
	}
}

func (s *InMemoryStore) GetSession(sessionID string) (*models.ConversationState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.sessions[sessionID]
	if !ok {
		return nil, nil
	}
	copied := *state
	return &copied, nil
}

func (s *InMemoryStore) SaveSession(state *models.ConversationState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *state
	s.sessions[state.SessionID] = &copied
	return nil
}

func (s *InMemoryStore) DeleteSession(sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
	return nil
}

func (s *InMemoryStore) GetOrCreateSession(sessionID string) (*models.ConversationState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if state, ok := s.sessions[sessionID]; ok {
		copied := *state
		return &copied, nil
	}
	state := models.NewConversationState(sessionID)
	copied := *state
	s.sessions[sessionID] = &copied
	return state, nil
}

func (s *InMemoryStore) GetProfile(userID string) (*models.AstroProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	profile, ok := s.profiles[userID]
	if !ok {
		return nil, nil
	}
	copied := *profile
	return &copied, nil
}

func (s *InMemoryStore) SaveProfile(profile *models.AstroProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *profile
	s.profiles[profile.UserID] = &copied
	return nil
}

func (s *InMemoryStore) GetTransits(userID string) (*models.AstroTransits, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	transits, ok := s.transits[userID]
	if !ok {
		return nil, nil
	}
	copied := *transits
	return &copied, nil
}

func (s *InMemoryStore) SaveTransits(transits *models.AstroTransits) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *transits
	s.transits[transits.UserID] = &copied
	return nil
}

func (s *InMemoryStore) DeleteTransits(userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.transits, userID)
	return nil
}

func (s *InMemoryStore) PurgeTransitsBefore(cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var purged int64
	for userID, transits := range s.transits {
		if transits.ComputedAt.Before(cutoff) {
			delete(s.transits, userID)
			purged++
		}
	}
	return purged, nil
}

func (s *InMemoryStore) Close() error {
	return nil
}

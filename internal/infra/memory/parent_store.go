package memory

import (
	"context"
	"sync"

	"quizzly-service/internal/domain"
)

// ParentStore is an in-memory implementation of app.ParentRepository.
type ParentStore struct {
	mu         sync.RWMutex
	byUsername map[string]domain.Parent
}

func NewParentStore() *ParentStore {
	return &ParentStore{byUsername: make(map[string]domain.Parent)}
}

func (s *ParentStore) InsertParent(_ context.Context, parent domain.Parent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byUsername[parent.Username]; ok {
		return domain.ErrUsernameTaken
	}
	s.byUsername[parent.Username] = parent
	return nil
}

func (s *ParentStore) FindByUsername(_ context.Context, username string) (domain.Parent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	parent, ok := s.byUsername[username]
	if !ok {
		return domain.Parent{}, domain.ErrParentNotFound
	}
	return parent, nil
}

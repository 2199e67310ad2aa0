package router

import (
	"context"
	"sync"
	"time"

	"github.com/iliyamo/insurance-quoting/internal/model"
	"github.com/iliyamo/insurance-quoting/internal/repository"
)

type memStore struct {
	mu     sync.Mutex
	users  map[string]model.User
	quotes map[string]model.Quote
	apps   map[string]model.Application
}

func newMemStore() *memStore {
	return &memStore{
		users:  map[string]model.User{},
		quotes: map[string]model.Quote{},
		apps:   map[string]model.Application{},
	}
}

func (m *memStore) FindByUsername(_ context.Context, username string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[username]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (m *memStore) Create(_ context.Context, fullName, username, hash string) (model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[username]; ok {
		return model.User{}, repository.ErrUsernameExists
	}
	u := model.User{ID: "id-" + username, FullName: fullName, Username: username, Password: hash, CreatedAt: time.Now()}
	m.users[username] = u
	return u, nil
}

type quoteStore struct{ *memStore }

func (s quoteStore) Create(_ context.Context, q model.Quote) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quotes[q.ID] = q
	return nil
}

func (s quoteStore) GetByID(_ context.Context, id string) (model.Quote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.quotes[id]
	if !ok {
		return model.Quote{}, repository.ErrNotFound
	}
	return q, nil
}

type applicationStore struct{ *memStore }

func (s applicationStore) Create(_ context.Context, a model.Application) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.apps[a.ID] = a
	return nil
}

func (s applicationStore) GetForOwner(_ context.Context, id, ownerID string) (model.Application, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.apps[id]
	if !ok || a.OwnerID != ownerID {
		return model.Application{}, repository.ErrNotFound
	}
	return a, nil
}

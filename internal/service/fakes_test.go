package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/insurance-quoting/internal/model"
	"github.com/iliyamo/insurance-quoting/internal/queue"
	"github.com/iliyamo/insurance-quoting/internal/repository"
	"github.com/iliyamo/insurance-quoting/internal/security"
)

type memUsers struct {
	mu      sync.Mutex
	byName  map[string]model.User
	findErr error
	lookups int
}

func newMemUsers() *memUsers { return &memUsers{byName: map[string]model.User{}} }

func (m *memUsers) FindByUsername(_ context.Context, username string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lookups++
	if m.findErr != nil {
		return nil, m.findErr
	}
	u, ok := m.byName[username]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (m *memUsers) Create(_ context.Context, fullName, username, hash string) (model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byName[username]; ok {
		return model.User{}, repository.ErrUsernameExists
	}
	u := model.User{ID: "id-" + username, FullName: fullName, Username: username, Password: hash, CreatedAt: time.Now()}
	m.byName[username] = u
	return u, nil
}

type memQuotes struct {
	mu     sync.Mutex
	quotes map[string]model.Quote
	err    error
}

func newMemQuotes() *memQuotes { return &memQuotes{quotes: map[string]model.Quote{}} }

func (m *memQuotes) Create(_ context.Context, q model.Quote) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.quotes[q.ID] = q
	return nil
}

func (m *memQuotes) GetByID(_ context.Context, id string) (model.Quote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return model.Quote{}, m.err
	}
	q, ok := m.quotes[id]
	if !ok {
		return model.Quote{}, repository.ErrNotFound
	}
	return q, nil
}

type memApplications struct {
	mu   sync.Mutex
	apps map[string]model.Application
}

func newMemApplications() *memApplications {
	return &memApplications{apps: map[string]model.Application{}}
}

func (m *memApplications) Create(_ context.Context, a model.Application) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.apps[a.ID] = a
	return nil
}

func (m *memApplications) GetForOwner(_ context.Context, id, ownerID string) (model.Application, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.apps[id]
	if !ok || a.OwnerID != ownerID {
		return model.Application{}, repository.ErrNotFound
	}
	return a, nil
}

type recordingPublisher struct {
	events []queue.ApplicationCreatedEvent
	err    error
}

func (p *recordingPublisher) PublishApplicationCreated(_ context.Context, ev queue.ApplicationCreatedEvent) error {
	p.events = append(p.events, ev)
	return p.err
}

var errStoreDown = errors.New("store down")

func newTokenService(t *testing.T) *security.TokenService {
	t.Helper()
	ts, err := security.NewTokenService(security.TokenOptions{
		Secret:     "test-secret",
		Algorithm:  "HS256",
		AccessTTL:  30 * time.Minute,
		RefreshTTL: 7 * 24 * time.Hour,
	}, nil)
	require.NoError(t, err)
	return ts
}

func newRevocations(t *testing.T) *repository.RevocationRepo {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return repository.NewRevocationRepo(rdb, "")
}

type authFixture struct {
	svc    *AuthService
	users  *memUsers
	tokens *security.TokenService
}

func newAuth(t *testing.T, rotate bool, withRevocations bool) authFixture {
	t.Helper()
	users := newMemUsers()
	tokens := newTokenService(t)
	deps := AuthDeps{
		Users:         users,
		Hasher:        security.NewPasswordHasher(bcrypt.MinCost),
		Tokens:        tokens,
		RotateRefresh: rotate,
	}
	if withRevocations {
		deps.Revocations = newRevocations(t)
	}
	return authFixture{svc: NewAuthService(deps), users: users, tokens: tokens}
}

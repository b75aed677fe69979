package application

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/bnema/account-broker/internal/domain"
)

type inMemoryAccountRepo struct {
	mu       sync.Mutex
	accounts []domain.Account
	saveErr  error
}

func (r *inMemoryAccountRepo) GetByID(_ context.Context, id domain.AccountID) (domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, account := range r.accounts {
		if account.ID == id {
			return account, nil
		}
	}
	return domain.Account{}, domain.ErrAccountNotFound
}

func (r *inMemoryAccountRepo) List(_ context.Context) ([]domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]domain.Account, len(r.accounts))
	copy(out, r.accounts)
	return out, nil
}

func (r *inMemoryAccountRepo) Save(_ context.Context, account domain.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.saveErr != nil {
		return r.saveErr
	}

	for i := range r.accounts {
		if r.accounts[i].ID == account.ID {
			r.accounts[i] = account
			return nil
		}
	}
	r.accounts = append(r.accounts, account)
	return nil
}

func (r *inMemoryAccountRepo) Delete(_ context.Context, id domain.AccountID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.accounts {
		if r.accounts[i].ID == id {
			r.accounts = append(r.accounts[:i], r.accounts[i+1:]...)
			return nil
		}
	}
	return domain.ErrAccountNotFound
}

type inMemorySecretStore struct {
	mu      sync.Mutex
	secrets map[string]string
	putErr  error
	delErr  error
}

func newInMemorySecretStore() *inMemorySecretStore {
	return &inMemorySecretStore{secrets: map[string]string{}}
}

func (s *inMemorySecretStore) Get(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	value, ok := s.secrets[key]
	if !ok {
		return "", domain.ErrSecretNotFound
	}
	return value, nil
}

func (s *inMemorySecretStore) Put(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.putErr != nil {
		return s.putErr
	}
	s.secrets[key] = value
	return nil
}

func (s *inMemorySecretStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.delErr != nil {
		return s.delErr
	}
	delete(s.secrets, key)
	return nil
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(now time.Time) *fakeClock {
	return &fakeClock{now: now}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = c.now.Add(d)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var errBoom = errors.New("boom")

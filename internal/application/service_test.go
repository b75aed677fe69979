package application

import (
	"context"
	"testing"
	"time"

	"github.com/bnema/account-broker/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddAccountStoresCredentialAndDescriptor(t *testing.T) {
	t.Parallel()

	repo := &inMemoryAccountRepo{}
	store := newInMemorySecretStore()
	svc := NewService(repo, store, nil)

	expires := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	account, err := svc.AddAccount(context.Background(), AddAccountCommand{
		ID:        "acc-1",
		Session:   "sess-cookie-value",
		ConfigID:  "cfg-9",
		ExpiresAt: &expires,
	})
	require.NoError(t, err)
	assert.Equal(t, "Account acc-1", account.Name, "empty name falls back to a default")
	assert.Equal(t, "account-broker/acc-1/session", account.Credential.SecretRef)

	secret, err := svc.SessionCredential(context.Background(), "acc-1")
	require.NoError(t, err)
	assert.Equal(t, "sess-cookie-value", secret)

	saved, err := repo.GetByID(context.Background(), "acc-1")
	require.NoError(t, err)
	require.NotNil(t, saved.ExpiresAt)
	assert.True(t, saved.ExpiresAt.Equal(expires))
}

func TestAddAccountRejectsDuplicates(t *testing.T) {
	t.Parallel()

	repo := &inMemoryAccountRepo{accounts: []domain.Account{{ID: "acc-1"}}}
	svc := NewService(repo, newInMemorySecretStore(), nil)

	_, err := svc.AddAccount(context.Background(), AddAccountCommand{ID: "acc-1", Session: "s"})
	require.ErrorIs(t, err, domain.ErrAccountExists)
}

func TestAddAccountRollsBackSecretWhenSaveFails(t *testing.T) {
	t.Parallel()

	repo := &inMemoryAccountRepo{saveErr: errBoom}
	store := newInMemorySecretStore()
	svc := NewService(repo, store, nil)

	_, err := svc.AddAccount(context.Background(), AddAccountCommand{ID: "acc-1", Session: "s"})
	require.Error(t, err)

	_, err = store.Get(context.Background(), SecretRefFor("acc-1"))
	assert.ErrorIs(t, err, domain.ErrSecretNotFound, "stored secret rolled back after save failure")
}

func TestRemoveAccountDeletesCredential(t *testing.T) {
	t.Parallel()

	repo := &inMemoryAccountRepo{}
	store := newInMemorySecretStore()
	svc := NewService(repo, store, nil)

	_, err := svc.AddAccount(context.Background(), AddAccountCommand{ID: "acc-1", Session: "s"})
	require.NoError(t, err)

	require.NoError(t, svc.RemoveAccount(context.Background(), "acc-1"))

	_, err = repo.GetByID(context.Background(), "acc-1")
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)
	_, err = store.Get(context.Background(), SecretRefFor("acc-1"))
	assert.ErrorIs(t, err, domain.ErrSecretNotFound)
}

func TestRemoveAccountRestoresDescriptorWhenSecretDeleteFails(t *testing.T) {
	t.Parallel()

	repo := &inMemoryAccountRepo{}
	store := newInMemorySecretStore()
	svc := NewService(repo, store, nil)

	_, err := svc.AddAccount(context.Background(), AddAccountCommand{ID: "acc-1", Session: "s"})
	require.NoError(t, err)

	store.delErr = errBoom
	err = svc.RemoveAccount(context.Background(), "acc-1")
	require.Error(t, err)

	_, err = repo.GetByID(context.Background(), "acc-1")
	assert.NoError(t, err, "descriptor restored so credential is not orphaned")
}

func TestAddAccountValidation(t *testing.T) {
	t.Parallel()

	svc := NewService(&inMemoryAccountRepo{}, newInMemorySecretStore(), nil)

	_, err := svc.AddAccount(context.Background(), AddAccountCommand{Session: "s"})
	require.Error(t, err)

	_, err = svc.AddAccount(context.Background(), AddAccountCommand{ID: "acc-1"})
	require.Error(t, err)
}

func TestLogicalSessionKeyIsStable(t *testing.T) {
	t.Parallel()

	first := LogicalSessionKey("/home/dev/project", "tty-1")
	second := LogicalSessionKey("/home/dev/project", "tty-1")
	other := LogicalSessionKey("/home/dev/project", "tty-2")

	assert.Equal(t, first, second)
	assert.NotEqual(t, first, other)
	assert.Len(t, first, 40)
}

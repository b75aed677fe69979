package toml

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bnema/account-broker/internal/domain"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepository(t *testing.T) *Repository {
	t.Helper()
	t.Setenv("HOME", t.TempDir())

	cfg := viper.New()
	cfg.Set(accountsPathKey, filepath.Join(t.TempDir(), "accounts.toml"))

	repo, err := NewRepository(cfg)
	require.NoError(t, err)
	return repo
}

func TestRepositorySaveAndGetRoundTrip(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	expires := time.Date(2026, 6, 1, 12, 30, 0, 0, time.Local)
	account := domain.Account{
		ID:   "acc-1",
		Name: "Primary",
		Credential: domain.Credential{
			SecretRef: "account-broker/acc-1/session",
			ConfigID:  "cfg-9",
		},
		ExpiresAt: &expires,
	}

	require.NoError(t, repo.Save(ctx, account))

	loaded, err := repo.GetByID(ctx, "acc-1")
	require.NoError(t, err)
	assert.Equal(t, account.Name, loaded.Name)
	assert.Equal(t, account.Credential, loaded.Credential)
	require.NotNil(t, loaded.ExpiresAt)
	assert.True(t, loaded.ExpiresAt.Equal(expires))
	assert.False(t, loaded.Disabled)
}

func TestRepositorySaveUpdatesExistingAccount(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, domain.Account{ID: "acc-1", Name: "Old"}))
	require.NoError(t, repo.Save(ctx, domain.Account{ID: "acc-1", Name: "New", Disabled: true}))

	accounts, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.Equal(t, "New", accounts[0].Name)
	assert.True(t, accounts[0].Disabled)
}

func TestRepositoryListPreservesOrder(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	for _, id := range []domain.AccountID{"c", "a", "b"} {
		require.NoError(t, repo.Save(ctx, domain.Account{ID: id}))
	}

	accounts, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, accounts, 3)
	assert.Equal(t, domain.AccountID("c"), accounts[0].ID)
	assert.Equal(t, domain.AccountID("a"), accounts[1].ID)
	assert.Equal(t, domain.AccountID("b"), accounts[2].ID)
}

func TestRepositoryDelete(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, domain.Account{ID: "acc-1"}))
	require.NoError(t, repo.Delete(ctx, "acc-1"))

	_, err := repo.GetByID(ctx, "acc-1")
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)

	assert.ErrorIs(t, repo.Delete(ctx, "acc-1"), domain.ErrAccountNotFound)
}

func TestRepositoryMissingFileReadsAsEmpty(t *testing.T) {
	repo := newTestRepository(t)

	accounts, err := repo.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, accounts)

	_, err = repo.GetByID(context.Background(), "ghost")
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)
}

func TestRepositoryWritesRestrictiveFileMode(t *testing.T) {
	repo := newTestRepository(t)

	require.NoError(t, repo.Save(context.Background(), domain.Account{ID: "acc-1"}))

	info, err := os.Stat(repo.AccountsPath())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestRepositoryRejectsNewerSchemaVersion(t *testing.T) {
	repo := newTestRepository(t)

	require.NoError(t, os.MkdirAll(filepath.Dir(repo.AccountsPath()), 0o700))
	require.NoError(t, os.WriteFile(repo.AccountsPath(), []byte("version = 99\n"), 0o600))

	_, err := repo.List(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported accounts schema version")
}

func TestSchemaMalformedExpiryLoadsAsNoExpiry(t *testing.T) {
	account := fromSchema(accountSchema{ID: "acc-1", ExpiresAt: "not-a-timestamp"})
	assert.Nil(t, account.ExpiresAt)
}

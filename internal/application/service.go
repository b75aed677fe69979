package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bnema/account-broker/internal/domain"
	"github.com/bnema/account-broker/internal/ports"
)

// Service is the account admin surface: descriptor lifecycle and credential
// material. The broker owns runtime health; this owns what is persisted.
type Service struct {
	repo  ports.AccountRepository
	store ports.SecretStore
	clock ports.Clock
}

func NewService(repo ports.AccountRepository, store ports.SecretStore, clock ports.Clock) *Service {
	if clock == nil {
		clock = ports.SystemClock{}
	}

	return &Service{
		repo:  repo,
		store: store,
		clock: clock,
	}
}

type AddAccountCommand struct {
	ID        domain.AccountID
	Name      string
	Session   string
	ConfigID  string
	ExpiresAt *time.Time
}

func (c AddAccountCommand) validate() error {
	if strings.TrimSpace(string(c.ID)) == "" {
		return errors.New("account id is required")
	}
	if strings.TrimSpace(c.Session) == "" {
		return errors.New("session credential is required")
	}

	return nil
}

func SecretRefFor(id domain.AccountID) string {
	return fmt.Sprintf("account-broker/%s/session", id)
}

// AddAccount stores the credential material first, then the descriptor. A
// failed descriptor save rolls the stored secret back so the two never
// drift apart.
func (s *Service) AddAccount(ctx context.Context, cmd AddAccountCommand) (domain.Account, error) {
	if err := cmd.validate(); err != nil {
		return domain.Account{}, err
	}

	if _, err := s.repo.GetByID(ctx, cmd.ID); err == nil {
		return domain.Account{}, fmt.Errorf("account %s: %w", cmd.ID, domain.ErrAccountExists)
	} else if !errors.Is(err, domain.ErrAccountNotFound) {
		return domain.Account{}, fmt.Errorf("get account by id: %w", err)
	}

	secretRef := SecretRefFor(cmd.ID)
	if err := s.store.Put(ctx, secretRef, cmd.Session); err != nil {
		return domain.Account{}, fmt.Errorf("store session credential: %w", err)
	}

	name := strings.TrimSpace(cmd.Name)
	if name == "" {
		name = fmt.Sprintf("Account %s", cmd.ID)
	}

	account := domain.Account{
		ID:   cmd.ID,
		Name: name,
		Credential: domain.Credential{
			SecretRef: secretRef,
			ConfigID:  cmd.ConfigID,
		},
		ExpiresAt: cmd.ExpiresAt,
	}

	if err := s.repo.Save(ctx, account); err != nil {
		if rollbackErr := s.store.Delete(ctx, secretRef); rollbackErr != nil {
			return domain.Account{}, fmt.Errorf("save account and rollback stored credential: %w", errors.Join(err, rollbackErr))
		}

		return domain.Account{}, fmt.Errorf("save account: %w", err)
	}

	return account, nil
}

// RemoveAccount deletes the descriptor and then its credential material.
// A failed secret delete restores the descriptor so nothing is orphaned.
func (s *Service) RemoveAccount(ctx context.Context, id domain.AccountID) error {
	account, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("get account by id: %w", err)
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete account: %w", err)
	}

	if account.Credential.SecretRef == "" {
		return nil
	}

	if err := s.store.Delete(ctx, account.Credential.SecretRef); err != nil {
		if restoreErr := s.repo.Save(ctx, account); restoreErr != nil {
			return fmt.Errorf("delete session credential and restore account: %w", errors.Join(err, restoreErr))
		}

		return fmt.Errorf("delete session credential: %w", err)
	}

	return nil
}

// SessionCredential resolves the stored credential material for an account.
func (s *Service) SessionCredential(ctx context.Context, id domain.AccountID) (string, error) {
	account, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return "", fmt.Errorf("get account by id: %w", err)
	}

	if account.Credential.SecretRef == "" {
		return "", fmt.Errorf("account %s has no credential: %w", id, domain.ErrSecretNotFound)
	}

	secret, err := s.store.Get(ctx, account.Credential.SecretRef)
	if err != nil {
		return "", fmt.Errorf("read session credential: %w", err)
	}

	return secret, nil
}

func (s *Service) ListAccounts(ctx context.Context) ([]domain.Account, error) {
	accounts, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}

	return accounts, nil
}

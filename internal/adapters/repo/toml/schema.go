package toml

import (
	"fmt"
	"time"

	"github.com/bnema/account-broker/internal/domain"
)

const currentSchemaVersion = 1

// expiresAtLayout matches the upstream dashboard's timestamp format.
const expiresAtLayout = "2006-01-02 15:04:05"

type fileSchema struct {
	Version  int             `toml:"version"`
	Accounts []accountSchema `toml:"accounts"`
}

func (s *fileSchema) applyDefaults() {
	if s.Version == 0 {
		s.Version = currentSchemaVersion
	}
}

func (s fileSchema) validateVersion() error {
	if s.Version > currentSchemaVersion {
		return fmt.Errorf("unsupported accounts schema version %d (current %d)", s.Version, currentSchemaVersion)
	}

	return nil
}

type accountSchema struct {
	ID         string           `toml:"id"`
	Name       string           `toml:"name,omitempty"`
	Credential credentialSchema `toml:"credential"`
	ExpiresAt  string           `toml:"expires_at,omitempty"`
	Disabled   bool             `toml:"disabled,omitempty"`
}

type credentialSchema struct {
	SecretRef string `toml:"secret_ref"`
	ConfigID  string `toml:"config_id,omitempty"`
}

func toSchema(account domain.Account) accountSchema {
	encoded := accountSchema{
		ID:   string(account.ID),
		Name: account.Name,
		Credential: credentialSchema{
			SecretRef: account.Credential.SecretRef,
			ConfigID:  account.Credential.ConfigID,
		},
		Disabled: account.Disabled,
	}
	if account.ExpiresAt != nil {
		encoded.ExpiresAt = account.ExpiresAt.Format(expiresAtLayout)
	}

	return encoded
}

func fromSchema(entry accountSchema) domain.Account {
	account := domain.Account{
		ID:   domain.AccountID(entry.ID),
		Name: entry.Name,
		Credential: domain.Credential{
			SecretRef: entry.Credential.SecretRef,
			ConfigID:  entry.Credential.ConfigID,
		},
		Disabled: entry.Disabled,
	}
	if entry.ExpiresAt != "" {
		// A malformed timestamp loads as "no expiry" rather than failing
		// the whole file; expiry is advisory.
		if expires, err := time.ParseInLocation(expiresAtLayout, entry.ExpiresAt, time.Local); err == nil {
			account.ExpiresAt = &expires
		}
	}

	return account
}

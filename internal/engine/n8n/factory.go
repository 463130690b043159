package n8n

import (
	"fmt"

	"github.com/AMvdBM19/monoliet-portal/internal/pkg/secrets"
	"github.com/AMvdBM19/monoliet-portal/internal/platform/config"
	"github.com/AMvdBM19/monoliet-portal/internal/platform/models"
	"github.com/AMvdBM19/monoliet-portal/internal/platform/repositories"
)

// CredentialStore is the slice of the credential repository the
// factory needs.
type CredentialStore interface {
	GetActiveByClientService(clientID, serviceName string) (*models.Credential, error)
}

// Factory builds per-client engine clients. The client's stored
// credential is opened here, at point of use, and the plaintext lives
// only inside the returned Client for the duration of one run.
type Factory struct {
	cfg      config.EngineConfig
	creds    CredentialStore
	keychain *secrets.Keychain
}

func NewFactory(cfg config.EngineConfig, creds CredentialStore, keychain *secrets.Keychain) *Factory {
	return &Factory{cfg: cfg, creds: creds, keychain: keychain}
}

// ForClient resolves the bearer token for one client and returns a
// client bound to it. A client with no active credential falls back to
// the portal-wide key; having neither is an auth failure, as is an
// unopenable ciphertext.
func (f *Factory) ForClient(clientID string) (*Client, error) {
	const op = "resolve credential"

	cred, err := f.creds.GetActiveByClientService(clientID, f.cfg.ServiceName)
	if err != nil {
		return nil, fmt.Errorf("load credential for client %s: %w", clientID, err)
	}

	if cred == nil {
		if f.cfg.APIKey == "" {
			return nil, &Error{Kind: KindAuthFailed, Op: op,
				Err: fmt.Errorf("client %s has no active credential and no portal key is configured", clientID)}
		}
		return NewClient(f.cfg, f.cfg.APIKey), nil
	}

	token, err := f.keychain.Open(cred.EncryptedData)
	if err != nil {
		return nil, &Error{Kind: KindAuthFailed, Op: op,
			Err: fmt.Errorf("open credential %s: %w", cred.ID, err)}
	}
	return NewClient(f.cfg, token), nil
}

var _ CredentialStore = (*repositories.CredentialRepository)(nil)

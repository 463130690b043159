package n8n

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/AMvdBM19/monoliet-portal/internal/pkg/secrets"
	"github.com/AMvdBM19/monoliet-portal/internal/platform/models"
)

type stubCreds struct {
	cred *models.Credential
	err  error
}

func (s stubCreds) GetActiveByClientService(clientID, serviceName string) (*models.Credential, error) {
	return s.cred, s.err
}

const factoryTestKey = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

func TestFactoryUsesClientCredential(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		fmt.Fprint(w, `{"id": "x", "active": true}`)
	}))
	defer server.Close()

	keychain, err := secrets.NewKeychain(factoryTestKey)
	if err != nil {
		t.Fatalf("keychain: %v", err)
	}
	sealed, err := keychain.Seal("client-specific-token")
	if err != nil {
		t.Fatalf("seal: %v", err)
	}

	cfg := testConfig(server.URL)
	cfg.APIKey = "portal-wide-key"
	factory := NewFactory(cfg, stubCreds{cred: &models.Credential{
		ID:            "cred_1",
		ClientID:      "cl_1",
		EncryptedData: sealed,
		Status:        models.CredentialActive,
	}}, keychain)

	client, err := factory.ForClient("cl_1")
	if err != nil {
		t.Fatalf("ForClient: %v", err)
	}
	if _, err := client.GetWorkflow(context.Background(), "x"); err != nil {
		t.Fatalf("GetWorkflow: %v", err)
	}
	if gotAuth != "Bearer client-specific-token" {
		t.Errorf("Authorization = %q, want the opened client credential", gotAuth)
	}
}

func TestFactoryFallsBackToPortalKey(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		fmt.Fprint(w, `{"id": "x", "active": true}`)
	}))
	defer server.Close()

	keychain, _ := secrets.NewKeychain(factoryTestKey)
	cfg := testConfig(server.URL)
	cfg.APIKey = "portal-wide-key"
	factory := NewFactory(cfg, stubCreds{}, keychain)

	client, err := factory.ForClient("cl_1")
	if err != nil {
		t.Fatalf("ForClient: %v", err)
	}
	if _, err := client.GetWorkflow(context.Background(), "x"); err != nil {
		t.Fatalf("GetWorkflow: %v", err)
	}
	if gotAuth != "Bearer portal-wide-key" {
		t.Errorf("Authorization = %q, want the portal key", gotAuth)
	}
}

func TestFactoryAuthFailures(t *testing.T) {
	keychain, _ := secrets.NewKeychain(factoryTestKey)

	t.Run("no credential and no portal key", func(t *testing.T) {
		cfg := testConfig("http://engine.local")
		cfg.APIKey = ""
		factory := NewFactory(cfg, stubCreds{}, keychain)

		_, err := factory.ForClient("cl_1")
		if !IsAuthFailed(err) {
			t.Errorf("error = %v, want auth failure", err)
		}
	})

	t.Run("unopenable ciphertext", func(t *testing.T) {
		factory := NewFactory(testConfig("http://engine.local"), stubCreds{cred: &models.Credential{
			ID:            "cred_1",
			EncryptedData: "not-a-valid-box",
		}}, keychain)

		_, err := factory.ForClient("cl_1")
		if !IsAuthFailed(err) {
			t.Errorf("error = %v, want auth failure", err)
		}
	})
}

package vault

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dwarvesf/escrow-backend/internal/utils/config"
)

func newVaultServer(t *testing.T) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/v1/auth/kubernetes/login":
			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			if body["jwt"] != "sa-token" || body["role"] != "escrow" {
				w.WriteHeader(http.StatusForbidden)
				w.Write([]byte(`{"errors":["permission denied"]}`))
				return
			}
			w.Write([]byte(`{"auth":{"client_token":"vault-token"}}`))
		case "/v1/secret/data/escrow":
			if r.Header.Get("X-Vault-Token") != "vault-token" {
				w.WriteHeader(http.StatusForbidden)
				return
			}
			w.Write([]byte(`{"data":{"data":{"ADMIN_TOKEN":"from-vault","DB_PASS":"pg-secret","IGNORED":42}}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func writeToken(t *testing.T, token string) string {
	path := filepath.Join(t.TempDir(), "token")
	require.NoError(t, os.WriteFile(path, []byte(token), 0o600))
	return path
}

func TestApplySecrets(t *testing.T) {
	srv := newVaultServer(t)
	defer srv.Close()

	cfg := &config.AppConfig{
		Vault: config.VaultConfig{
			Addr:         srv.URL,
			KVSecretPath: "secret/data/escrow",
			Role:         "escrow",
			TokenPath:    writeToken(t, "sa-token"),
		},
		Tron: config.TronConfig{APIKey: "from-env"},
	}

	require.NoError(t, ApplySecrets(cfg))
	assert.Equal(t, "from-vault", cfg.ApiServer.AdminToken)
	assert.Equal(t, "pg-secret", cfg.Postgres.Pass)
	assert.Equal(t, "from-env", cfg.Tron.APIKey)
}

func TestApplySecrets_Disabled(t *testing.T) {
	cfg := &config.AppConfig{ApiServer: config.ApiServerConfig{AdminToken: "env"}}
	require.NoError(t, ApplySecrets(cfg))
	assert.Equal(t, "env", cfg.ApiServer.AdminToken)
}

func TestNew_LoginRejected(t *testing.T) {
	srv := newVaultServer(t)
	defer srv.Close()

	_, err := New(config.VaultConfig{
		Addr:      srv.URL,
		Role:      "other",
		TokenPath: writeToken(t, "sa-token"),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}

func TestNew_MissingServiceAccountToken(t *testing.T) {
	_, err := New(config.VaultConfig{
		Addr:      "http://127.0.0.1:0",
		TokenPath: filepath.Join(t.TempDir(), "missing"),
	})
	assert.Error(t, err)
}

package vault

import (
	"fmt"
	"os"

	"github.com/go-resty/resty/v2"

	"github.com/dwarvesf/escrow-backend/internal/utils/config"
)

const defaultServiceAccountTokenPath = "/var/run/secrets/kubernetes.io/serviceaccount/token"

// Client reads deployment secrets from a Vault KV v2 mount using
// Kubernetes service-account authentication.
type Client struct {
	http         *resty.Client
	kvSecretPath string
	role         string
	token        string
}

type loginResponse struct {
	Errors []string `json:"errors"`
	Auth   *struct {
		ClientToken string `json:"client_token"`
	} `json:"auth"`
}

type kvResponse struct {
	Errors []string `json:"errors"`
	Data   *struct {
		Data map[string]interface{} `json:"data"`
	} `json:"data"`
}

// New logs in to Vault and returns a client holding the issued token
func New(cfg config.VaultConfig) (*Client, error) {
	tokenPath := cfg.TokenPath
	if tokenPath == "" {
		tokenPath = defaultServiceAccountTokenPath
	}

	c := &Client{
		http:         resty.New().SetBaseURL(cfg.Addr),
		kvSecretPath: cfg.KVSecretPath,
		role:         cfg.Role,
	}

	k8sToken, err := os.ReadFile(tokenPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read service account token: %w", err)
	}

	c.token, err = c.login(string(k8sToken))
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Client) login(jwt string) (string, error) {
	var result loginResponse
	resp, err := c.http.R().
		SetHeader("Content-Type", "application/json").
		SetBody(map[string]string{
			"jwt":  jwt,
			"role": c.role,
		}).
		SetResult(&result).
		SetError(&result).
		Post("/v1/auth/kubernetes/login")
	if err != nil {
		return "", err
	}

	if resp.StatusCode() != 200 {
		return "", fmt.Errorf("vault authentication failed with status %d: %v", resp.StatusCode(), result.Errors)
	}
	if result.Auth == nil || result.Auth.ClientToken == "" {
		return "", fmt.Errorf("vault returned empty client_token")
	}

	return result.Auth.ClientToken, nil
}

// GetKV retrieves every string secret under the configured KV path
func (c *Client) GetKV() (map[string]string, error) {
	var result kvResponse
	resp, err := c.http.R().
		SetHeader("X-Vault-Token", c.token).
		SetResult(&result).
		SetError(&result).
		Get("/v1/" + c.kvSecretPath)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("vault KV get failed with status %d: %v", resp.StatusCode(), result.Errors)
	}
	if result.Data == nil || result.Data.Data == nil {
		return nil, fmt.Errorf("vault response missing nested 'data' field")
	}

	secrets := make(map[string]string, len(result.Data.Data))
	for k, v := range result.Data.Data {
		if s, ok := v.(string); ok {
			secrets[k] = s
		}
	}
	return secrets, nil
}

// ApplySecrets overrides credentials in cfg with the values stored in
// Vault. Keys missing from the KV entry leave the env value in place.
func ApplySecrets(cfg *config.AppConfig) error {
	if cfg.Vault.Addr == "" {
		return nil
	}

	client, err := New(cfg.Vault)
	if err != nil {
		return err
	}

	secrets, err := client.GetKV()
	if err != nil {
		return err
	}

	targets := map[string]*string{
		"DB_PASS":             &cfg.Postgres.Pass,
		"ADMIN_TOKEN":         &cfg.ApiServer.AdminToken,
		"TRON_API_KEY":        &cfg.Tron.APIKey,
		"REDIS_URL":           &cfg.Redis.URL,
		"LEDGER_RPC_ENDPOINT": &cfg.Ledger.RPCEndpoint,
	}
	for key, target := range targets {
		if v, ok := secrets[key]; ok && v != "" {
			*target = v
		}
	}
	return nil
}

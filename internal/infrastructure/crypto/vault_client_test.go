package crypto

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/taskflow/internal/config"
	"github.com/turtacn/taskflow/pkg/errors"
	"github.com/turtacn/taskflow/pkg/logger"
)

func newFakeVault(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Vault-Token") != "root" {
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"errors":["permission denied"]}`))
			return
		}
		if r.URL.Path != "/v1/secret/data/taskflow/jwt" {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"errors":[]}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"data": map[string]interface{}{
				"data": map[string]interface{}{"secret": "from-vault-secret"},
			},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestLoadJWTSecretFromVault(t *testing.T) {
	srv := newFakeVault(t)
	vcfg := &config.VaultConfig{
		Enabled:    true,
		Address:    srv.URL,
		Token:      "root",
		MountPath:  "secret",
		SecretPath: "taskflow/jwt",
		SecretKey:  "secret",
	}
	client, err := NewVaultClient(vcfg, logger.NewNoopLogger())
	require.NoError(t, err)

	secret, err := LoadJWTSecret(context.Background(), client, vcfg, &config.JWTConfig{})
	require.NoError(t, err)
	assert.Equal(t, []byte("from-vault-secret"), secret)

	vcfg.SecretKey = "missing"
	_, err = LoadJWTSecret(context.Background(), client, vcfg, &config.JWTConfig{})
	assert.True(t, errors.HasCode(err, errors.ErrCodeNotFound))
}

func TestVaultClientMissingSecret(t *testing.T) {
	srv := newFakeVault(t)
	client, err := NewVaultClient(&config.VaultConfig{Address: srv.URL, Token: "root", MountPath: "secret"}, logger.NewNoopLogger())
	require.NoError(t, err)

	_, err = client.GetSecret(context.Background(), "other")
	assert.True(t, errors.HasCode(err, errors.ErrCodeNotFound))
}

func TestLoadJWTSecretStatic(t *testing.T) {
	secret, err := LoadJWTSecret(context.Background(), nil, &config.VaultConfig{}, &config.JWTConfig{Secret: "static"})
	require.NoError(t, err)
	assert.Equal(t, []byte("static"), secret)

	_, err = LoadJWTSecret(context.Background(), nil, &config.VaultConfig{}, &config.JWTConfig{})
	assert.Error(t, err)
}

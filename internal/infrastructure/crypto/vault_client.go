package crypto

import (
	"context"
	"fmt"
	"path"

	vault "github.com/hashicorp/vault/api"

	"github.com/turtacn/taskflow/internal/config"
	"github.com/turtacn/taskflow/pkg/errors"
	"github.com/turtacn/taskflow/pkg/logger"
)

// VaultClient reads secrets from a HashiCorp Vault KV v2 engine.
type VaultClient interface {
	GetSecret(ctx context.Context, secretPath string) (map[string]interface{}, error)
}

type vaultClientImpl struct {
	client    *vault.Client
	log       logger.Logger
	mountPath string
}

// NewVaultClient creates and configures a new Vault client.
func NewVaultClient(cfg *config.VaultConfig, log logger.Logger) (VaultClient, error) {
	vaultConfig := vault.DefaultConfig()
	vaultConfig.Address = cfg.Address

	client, err := vault.NewClient(vaultConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}
	client.SetToken(cfg.Token)

	return &vaultClientImpl{
		client:    client,
		log:       log.WithComponent("vault"),
		mountPath: cfg.MountPath,
	}, nil
}

// GetSecret returns the latest version of the secret stored at secretPath.
func (v *vaultClientImpl) GetSecret(ctx context.Context, secretPath string) (map[string]interface{}, error) {
	fullPath := v.getSecretPath(secretPath)
	secret, err := v.client.Logical().ReadWithContext(ctx, fullPath)
	if err != nil {
		v.log.Error(ctx, "Vault read failed", err, logger.String("path", fullPath))
		return nil, errors.ErrUnavailable("secret store unavailable").WithCause(err)
	}
	if secret == nil || secret.Data == nil {
		return nil, errors.ErrNotFound("secret " + secretPath)
	}
	data, ok := secret.Data["data"].(map[string]interface{})
	if !ok {
		return nil, errors.ErrNotFound("secret " + secretPath)
	}
	return data, nil
}

// getSecretPath constructs the full path for a secret in Vault's KVv2 engine.
func (v *vaultClientImpl) getSecretPath(secretPath string) string {
	return path.Join(v.mountPath, "data", secretPath)
}

// LoadJWTSecret resolves the token signing secret: from Vault when enabled, otherwise from
// the static configuration.
func LoadJWTSecret(ctx context.Context, client VaultClient, vcfg *config.VaultConfig, jcfg *config.JWTConfig) ([]byte, error) {
	if !vcfg.Enabled {
		if jcfg.Secret == "" {
			return nil, errors.ErrInternal("jwt secret is not configured")
		}
		return []byte(jcfg.Secret), nil
	}

	data, err := client.GetSecret(ctx, vcfg.SecretPath)
	if err != nil {
		return nil, err
	}
	secret, ok := data[vcfg.SecretKey].(string)
	if !ok || secret == "" {
		return nil, errors.ErrNotFound(fmt.Sprintf("key %q in secret %s", vcfg.SecretKey, vcfg.SecretPath))
	}
	return []byte(secret), nil
}

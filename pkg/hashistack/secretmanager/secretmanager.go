package secretmanager

import (
	"context"
	"fmt"
	"os"

	vault "github.com/hashicorp/vault-client-go"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("secretmanager", fx.Provide(ProvideStore))

const defaultMount = "secret"

// Store reads KV v2 secrets from vault.
type Store struct {
	client *vault.Client
	mount  string
}

// ProvideStore builds a Store from VAULT_ADDR, VAULT_TOKEN and the optional
// VAULT_MOUNT. It returns nil when VAULT_ADDR is unset so config skips the
// overlay.
func ProvideStore() (*Store, error) {
	if os.Getenv("VAULT_ADDR") == "" {
		zap.L().Info("VAULT_ADDR not set, secrets come from config only")
		return nil, nil
	}

	client, err := vault.New(vault.WithEnvironment())
	if err != nil {
		return nil, fmt.Errorf("vault client: %w", err)
	}

	mount := os.Getenv("VAULT_MOUNT")
	if mount == "" {
		mount = defaultMount
	}
	return &Store{client: client, mount: mount}, nil
}

// Read returns the string values stored at path. Non-string values are dropped.
func (s *Store) Read(ctx context.Context, path string) (map[string]string, error) {
	resp, err := s.client.Secrets.KvV2Read(ctx, path, vault.WithMountPath(s.mount))
	if err != nil {
		return nil, fmt.Errorf("read %s/%s: %w", s.mount, path, err)
	}

	out := make(map[string]string, len(resp.Data.Data))
	for k, v := range resp.Data.Data {
		if str, ok := v.(string); ok && str != "" {
			out[k] = str
		}
	}
	return out, nil
}

package config

import (
	"context"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
)

type fakeSecrets map[string]string

func (f fakeSecrets) Read(context.Context, string) (map[string]string, error) {
	return f, nil
}

func TestDefaultsUnmarshal(t *testing.T) {
	v := viper.New()
	setDefaults(v)

	var cfg Config
	require.NoError(t, v.Unmarshal(&cfg))
	require.Equal(t, "127.0.0.1:6379", cfg.Redis.Addr)
	require.Equal(t, 30*time.Minute, cfg.Detection.StaleAfter)
	require.Equal(t, 200*time.Millisecond, cfg.Database.SlowQuery)
	require.Equal(t, "DETECTION_TASK_QUEUE", cfg.Temporal.TaskQueue)
}

func TestOverlaySecretsKeepsUnsetValues(t *testing.T) {
	cfg := &Config{AppEnv: "staging"}
	cfg.Database.User = "app"
	cfg.Redis.Password = "from-file"

	overlaySecrets(cfg, fakeSecrets{
		"database_password": "vault-db",
		"jwt_secret":        "vault-jwt",
		"redis_password":    "",
	})

	require.Equal(t, "app", cfg.Database.User)
	require.Equal(t, "vault-db", cfg.Database.Password)
	require.Equal(t, "vault-jwt", cfg.Auth.JWTSecret)
	require.Equal(t, "from-file", cfg.Redis.Password)
}

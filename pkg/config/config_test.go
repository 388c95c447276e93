package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/fleetrelay/pkg/models"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "broker.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfigFile(t, `{
		"listen_addr": ":9090",
		"nats_url": "nats://localhost:4222",
		"auth": {"jwt_secret": "s3cret"},
		"docstore": {"region": "eu-west-1", "robots_table": "robots", "missions_table": "missions"}
	}`)

	var cfg models.BrokerConfig

	require.NoError(t, NewConfig(nil).Load(context.Background(), path, &cfg))
	assert.Equal(t, ":9090", cfg.ListenAddr)
	assert.Equal(t, "nats://localhost:4222", cfg.NATSURL)
	assert.Equal(t, "s3cret", cfg.Auth.JWTSecret)
	assert.Equal(t, "eu-west-1", cfg.DocStore.Region)
}

func TestLoadMissingFileTolerated(t *testing.T) {
	var cfg models.BrokerConfig

	err := NewConfig(nil).Load(context.Background(), "/no/such/file.json", &cfg)
	require.NoError(t, err)
}

func TestLoadMalformedFile(t *testing.T) {
	path := writeConfigFile(t, `{not json`)

	var cfg models.BrokerConfig

	err := NewConfig(nil).Load(context.Background(), path, &cfg)
	require.Error(t, err)
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeConfigFile(t, `{"listen_addr": ":9090", "nats_url": "nats://localhost:4222"}`)

	t.Setenv("FLEETRELAY_LISTEN_ADDR", ":7070")
	t.Setenv("FLEETRELAY_AUTH_JWT_SECRET", "from-env")
	t.Setenv("FLEETRELAY_CORS_ALLOW_CREDENTIALS", "true")
	t.Setenv("FLEETRELAY_CORS_ALLOWED_ORIGINS", "https://a.example.com,https://b.example.com")
	t.Setenv("FLEETRELAY_DOCSTORE_REGION", "us-east-2")

	var cfg models.BrokerConfig

	require.NoError(t, NewConfig(nil).Load(context.Background(), path, &cfg))
	assert.Equal(t, ":7070", cfg.ListenAddr)
	assert.Equal(t, "nats://localhost:4222", cfg.NATSURL, "file value survives when no override is set")
	assert.Equal(t, "from-env", cfg.Auth.JWTSecret)
	assert.True(t, cfg.CORS.AllowCredentials)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.CORS.AllowedOrigins)
	assert.Equal(t, "us-east-2", cfg.DocStore.Region)
}

func TestConfigJSONEnvWinsOutright(t *testing.T) {
	t.Setenv("FLEETRELAY_CONFIG_JSON", `{"listen_addr": ":6060", "auth": {"jwt_secret": "inline"}}`)

	var cfg models.BrokerConfig

	require.NoError(t, NewConfig(nil).Load(context.Background(), "", &cfg))
	assert.Equal(t, ":6060", cfg.ListenAddr)
	assert.Equal(t, "inline", cfg.Auth.JWTSecret)
}

func TestEnvOverrideUnparseableValueIgnored(t *testing.T) {
	t.Setenv("FLEETRELAY_DEBUG", "definitely-not-a-bool")

	var cfg models.BrokerConfig

	require.NoError(t, NewConfig(nil).Load(context.Background(), "", &cfg))
	assert.False(t, cfg.Debug)
}

func TestLoadNilDestination(t *testing.T) {
	err := NewConfig(nil).Load(context.Background(), "", nil)
	require.Error(t, err)
}

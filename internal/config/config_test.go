package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solido-stake/internal/domain"
	"solido-stake/internal/solido"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("USE_MEMORY", "true")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.env"))
	require.NoError(t, err)

	assert.Equal(t, "https://api.mainnet-beta.solana.com", cfg.RPCEndpoint)
	assert.Equal(t, 5*time.Minute, cfg.RecordInterval)
	assert.Equal(t, 60*time.Second, cfg.ConfirmTimeout)

	addrs, err := cfg.Addresses()
	require.NoError(t, err)
	assert.Equal(t, solido.MainnetAddresses, addrs)
}

func TestLoad_DotEnvDoesNotOverrideEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	content := "USE_MEMORY=true\nHTTP_ADDR=:9999\nRECORD_INTERVAL=30s\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	t.Setenv("HTTP_ADDR", ":7000")
	t.Cleanup(func() {
		os.Unsetenv("USE_MEMORY")
		os.Unsetenv("RECORD_INTERVAL")
	})

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":7000", cfg.HTTPAddr)
	assert.Equal(t, 30*time.Second, cfg.RecordInterval)
	assert.True(t, cfg.UseMemory)
}

func TestLoad_RequiresDatabases(t *testing.T) {
	t.Setenv("USE_MEMORY", "false")
	t.Setenv("POSTGRES_DSN", "")

	_, err := Load(filepath.Join(t.TempDir(), "absent.env"))
	assert.Error(t, err)
}

func TestLoad_InvalidAddress(t *testing.T) {
	t.Setenv("USE_MEMORY", "true")
	t.Setenv("SOLIDO_INSTANCE_ID", "not-a-key")

	_, err := Load(filepath.Join(t.TempDir(), "absent.env"))
	assert.ErrorIs(t, err, domain.ErrInvalidKey)
}

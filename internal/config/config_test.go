package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadNodeConfig_Defaults(t *testing.T) {
	cfg, err := LoadNodeConfig("", t.TempDir())
	require.NoError(t, err)

	assert.False(t, cfg.Debug)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "7020000000000000000000", cfg.Contract.TokenStorageCost)
	assert.Equal(t, 30*time.Second, cfg.Contract.ReceiverTimeout)
}

func TestLoadNodeConfig_FromFile(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	content := `
debug: true
server:
  port: 9090
database:
  host: localhost
  user: cheddar
  password: secret
  dbname: nft
nats:
  url: nats://localhost:4222
contract:
  resolver_workers: 8
linkdrop:
  contract_id: linkdrop.near
  url: http://localhost:9999
`
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0o600))

	cfg, err := LoadNodeConfig(configPath, dir)
	require.NoError(t, err)

	assert.True(t, cfg.Debug)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "nats://localhost:4222", cfg.NATS.URL)
	assert.Equal(t, 8, cfg.Contract.ResolverWorkers)
	assert.Equal(t, "linkdrop.near", cfg.Linkdrop.ContractID)
	// Defaults still apply for unset keys
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, "host=localhost port=5432 user=cheddar password=secret dbname=nft sslmode=disable", cfg.Database.DSN())
}

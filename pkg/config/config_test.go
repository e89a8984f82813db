package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/testbedctl/actorcore/pkg/types"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "boltdb", cfg.Database.Driver)
	assert.Equal(t, 9090, cfg.Prometheus.Port)
	assert.Equal(t, 5, cfg.Kafka.RPCRetries)
}

func TestLoadOverridesDefaultsFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yamlDoc := `
actor:
  guid: broker1
  type: broker
  policy: calendar
database:
  data_dir: /var/lib/actorcore
  commit_batch_size: 50
peers:
  - guid: authority1
    type: authority
    inbound_topic: authority1.in
prometheus:
  port: 9100
`
	require.NoError(t, os.WriteFile(path, []byte(yamlDoc), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, types.RoleBroker, cfg.Actor.Type)
	assert.Equal(t, "/var/lib/actorcore", cfg.Database.DataDir)
	assert.Equal(t, 50, cfg.Database.CommitBatchSize)
	assert.Equal(t, 9100, cfg.Prometheus.Port)

	peers := cfg.PeerCatalog()
	require.Len(t, peers, 1)
	assert.Equal(t, "authority1", peers[0].GUID)
	assert.Equal(t, types.RoleAuthority, peers[0].Type)
}

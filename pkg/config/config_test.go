package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadFromEnvDefaults(t *testing.T) {
	c := LoadFromEnv()
	require.Equal(t, DefaultConfig().DataDir, c.DataDir)
	require.Equal(t, RoleMain, c.Role)
	require.Equal(t, 3, c.Durability.SnapshotRetention)
}

func TestLoadFromEnvOverrides(t *testing.T) {
	t.Setenv(EnvDataDir, "/var/lib/arbor")
	t.Setenv(EnvRole, "replica")
	t.Setenv(EnvSnapshotInterval, "90s")
	t.Setenv(EnvReplicationMode, "sync")

	c := LoadFromEnv()
	require.Equal(t, "/var/lib/arbor", c.DataDir)
	require.Equal(t, RoleReplica, c.Role)
	require.Equal(t, 90*time.Second, c.Durability.SnapshotInterval)
	require.Equal(t, "sync", c.Replication.Mode)
}

func TestValidateRejectsReplicaWithoutPeer(t *testing.T) {
	c := DefaultConfig()
	c.Role = RoleReplica
	require.Error(t, c.Validate())

	c.Replication.PeerAddr = "127.0.0.1:7687"
	require.NoError(t, c.Validate())
}

func TestValidateRejectsUnknownRole(t *testing.T) {
	c := DefaultConfig()
	c.Role = Role("bogus")
	require.Error(t, c.Validate())
}

func TestGetIntInvalidFallsBack(t *testing.T) {
	require.NoError(t, os.Setenv("ARBOR_TEST_INT", "not-a-number"))
	defer os.Unsetenv("ARBOR_TEST_INT")
	require.Equal(t, 7, GetInt("ARBOR_TEST_INT", 7))
}

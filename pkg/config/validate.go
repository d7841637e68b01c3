package config

import "fmt"

// Validate checks the fields engine.Open relies on being sane, returning the
// first problem found.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("config: data dir must not be empty")
	}
	switch c.Role {
	case RoleMain, RoleReplica:
	default:
		return fmt.Errorf("config: role must be %q or %q, got %q", RoleMain, RoleReplica, c.Role)
	}
	if c.Role == RoleReplica && c.Replication.PeerAddr == "" {
		return fmt.Errorf("config: replica role requires %s", EnvReplicationPeerAddr)
	}
	if c.Durability.SnapshotRetention < 1 {
		return fmt.Errorf("config: snapshot retention must be at least 1")
	}
	return nil
}

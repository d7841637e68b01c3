package config

import "time"

// Role selects whether an engine instance runs as a Main (accepts replica
// registrations and writes) or a Replica (streams from a Main) per spec 4.8.
type Role string

const (
	RoleMain    Role = "main"
	RoleReplica Role = "replica"
)

// DurabilityConfig configures WAL segmentation and snapshot scheduling
// (spec 4.7), named after pkg/durability's Writer/SnapshotScheduler knobs.
type DurabilityConfig struct {
	SegmentMaxBytes   int64
	SnapshotInterval  time.Duration
	SnapshotRetention int
}

// ReplicationConfig configures the Main/Replica wire protocol (spec 4.8).
type ReplicationConfig struct {
	Secret     string
	Mode       string // "sync" or "async"; see pkg/replication.Mode
	AckTimeout time.Duration
	PeerAddr   string // Replica only: address of the Main to dial
}

// Config is the effective, resolved configuration for one engine instance
// (spec 6's "<data_dir>/{snapshots,wal,auth}"), built by LoadFromEnv or by
// cmd/graphd's flag parsing.
type Config struct {
	NodeID  string
	DataDir string
	Role    Role
	Listen  string

	Durability  DurabilityConfig
	Replication ReplicationConfig
}

// Env var names, grouped the way the teacher's dbconfig/keys.go enumerates
// its allowed keys, even though this engine has no per-database override
// layer to validate against.
const (
	EnvNodeID              = "ARBOR_NODE_ID"
	EnvDataDir             = "ARBOR_DATA_DIR"
	EnvRole                = "ARBOR_ROLE"
	EnvListen              = "ARBOR_LISTEN"
	EnvSegmentMaxBytes     = "ARBOR_WAL_SEGMENT_MAX_BYTES"
	EnvSnapshotInterval    = "ARBOR_SNAPSHOT_INTERVAL"
	EnvSnapshotRetention   = "ARBOR_SNAPSHOT_RETENTION"
	EnvReplicationSecret   = "ARBOR_REPLICATION_SECRET"
	EnvReplicationMode     = "ARBOR_REPLICATION_MODE"
	EnvReplicationTimeout  = "ARBOR_REPLICATION_ACK_TIMEOUT"
	EnvReplicationPeerAddr = "ARBOR_REPLICATION_PEER_ADDR"
)

// LoadFromEnv resolves a Config from the process environment, applying the
// same defaults DefaultConfig does for anything unset.
func LoadFromEnv() *Config {
	d := DefaultConfig()
	c := &Config{
		NodeID:  GetString(EnvNodeID, d.NodeID),
		DataDir: GetString(EnvDataDir, d.DataDir),
		Role:    Role(GetString(EnvRole, string(d.Role))),
		Listen:  GetString(EnvListen, d.Listen),
		Durability: DurabilityConfig{
			SegmentMaxBytes:   int64(GetInt(EnvSegmentMaxBytes, int(d.Durability.SegmentMaxBytes))),
			SnapshotInterval:  GetDuration(EnvSnapshotInterval, d.Durability.SnapshotInterval),
			SnapshotRetention: GetInt(EnvSnapshotRetention, d.Durability.SnapshotRetention),
		},
		Replication: ReplicationConfig{
			Secret:     GetString(EnvReplicationSecret, d.Replication.Secret),
			Mode:       GetString(EnvReplicationMode, d.Replication.Mode),
			AckTimeout: GetDuration(EnvReplicationTimeout, d.Replication.AckTimeout),
			PeerAddr:   GetString(EnvReplicationPeerAddr, d.Replication.PeerAddr),
		},
	}
	return c
}

// DefaultConfig returns production defaults for every knob LoadFromEnv and
// cmd/graphd's flags can leave unset.
func DefaultConfig() Config {
	return Config{
		NodeID:  "node-1",
		DataDir: "./data",
		Role:    RoleMain,
		Listen:  ":7687",
		Durability: DurabilityConfig{
			SegmentMaxBytes:   64 << 20,
			SnapshotInterval:  10 * time.Minute,
			SnapshotRetention: 3,
		},
		Replication: ReplicationConfig{
			Mode:       "async",
			AckTimeout: 10 * time.Second,
		},
	}
}

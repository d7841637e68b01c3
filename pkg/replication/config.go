package replication

import "time"

// Mode selects whether a replica registration acknowledges synchronously
// or fire-and-forget (spec 4.8: "each replica has a mode").
type Mode string

const (
	SYNC  Mode = "sync"
	ASYNC Mode = "async"
)

// State is a replica's catch-up lifecycle state (spec 4.8).
type State string

const (
	StateReady       State = "ready"
	StateReplicating State = "replicating"
	StateRecovery    State = "recovery"
)

// Config configures a Conn's framing and authentication, mirroring the
// teacher's ClusterTransportConfig scoped to what Main/Replica streaming
// needs (no TLS/Raft knobs, since neither is part of this protocol).
type Config struct {
	NodeID            string
	ReplicationSecret string
	DialTimeout       time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	MaxMsgSize        int
	AuthMaxSkew       time.Duration
}

// DefaultConfig returns production defaults, the replication-scoped
// counterpart of the teacher's DefaultClusterTransportConfig.
func DefaultConfig() Config {
	return Config{
		DialTimeout:  5 * time.Second,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 10 * time.Second,
		MaxMsgSize:   64 * 1024 * 1024,
		AuthMaxSkew:  30 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.DialTimeout == 0 {
		c.DialTimeout = d.DialTimeout
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = d.ReadTimeout
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = d.WriteTimeout
	}
	if c.MaxMsgSize == 0 {
		c.MaxMsgSize = d.MaxMsgSize
	}
	if c.AuthMaxSkew == 0 {
		c.AuthMaxSkew = d.AuthMaxSkew
	}
	return c
}

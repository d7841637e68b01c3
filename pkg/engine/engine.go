// Package engine wires together storage, durability, and replication into
// the single top-level type a host process constructs (spec 5/6): Open
// creates the <data_dir>/{snapshots,wal,auth} layout, recovers the graph,
// starts the WAL writer and snapshot scheduler, and brings up whichever
// replication role the config selects.
package engine

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/arborgraph/arbor/pkg/authstore"
	"github.com/arborgraph/arbor/pkg/config"
	"github.com/arborgraph/arbor/pkg/durability"
	"github.com/arborgraph/arbor/pkg/replication"
	"github.com/arborgraph/arbor/pkg/storage"
)

// Engine is one running database instance: a storage.Graph plus everything
// that makes its state durable and, depending on Role, replicated.
type Engine struct {
	cfg    config.Config
	logger *log.Logger

	g    *storage.Graph
	auth *authstore.Store

	snapshotDir string
	wal         *durability.Writer
	scheduler   *durability.SnapshotScheduler

	main    *replication.MainReplicator
	replica *replication.ReplicaClient

	indexMu sync.Mutex
	indexes []durability.IndexDef

	closed bool
}

// Open creates the data directory layout if missing, recovers the graph
// from the newest snapshot plus WAL, and starts the background snapshot
// scheduler and, per cfg.Role, the replication side matching it.
func Open(cfg config.Config, logger *log.Logger) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.New(os.Stderr, "engine: ", log.LstdFlags)
	}

	snapshotDir := filepath.Join(cfg.DataDir, "snapshots")
	walDir := filepath.Join(cfg.DataDir, "wal")
	authDir := filepath.Join(cfg.DataDir, "auth")
	for _, dir := range []string{snapshotDir, walDir, authDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("engine: create %s: %w", dir, err)
		}
	}

	auth, err := authstore.Open(authDir)
	if err != nil {
		return nil, err
	}

	g := storage.NewGraph()
	indexes, err := durability.RecoverWithIndexes(cfg.DataDir, g, logger)
	if err != nil {
		auth.Close()
		return nil, fmt.Errorf("engine: recover: %w", err)
	}

	wal, err := durability.NewWriter(walDir, logger, nil)
	if err != nil {
		auth.Close()
		return nil, err
	}
	wal.SetRotateSize(cfg.Durability.SegmentMaxBytes)

	e := &Engine{
		cfg:         cfg,
		logger:      logger,
		g:           g,
		auth:        auth,
		wal:         wal,
		indexes:     indexes,
		snapshotDir: snapshotDir,
	}

	e.scheduler = durability.NewSnapshotScheduler(
		cfg.Durability.SnapshotInterval,
		cfg.Durability.SnapshotRetention,
		snapshotDir,
		e.takeSnapshot,
		logger,
	)
	e.scheduler.Start()

	switch cfg.Role {
	case config.RoleMain:
		e.main = replication.NewMainReplicator(cfg.NodeID, 1, snapshotDir, walDir, replicationConfig(cfg), logger)
		if cfg.Listen != "" {
			if _, err := e.main.Listen(cfg.Listen); err != nil {
				e.Close()
				return nil, fmt.Errorf("engine: listen %s: %w", cfg.Listen, err)
			}
			go func() {
				if err := e.main.Serve(cfg.Listen); err != nil {
					logger.Printf("replication listener stopped: %v", err)
				}
			}()
		}
	case config.RoleReplica:
		e.replica = replication.NewReplicaClient(cfg.NodeID, 1, cfg.DataDir, g, replicationConfig(cfg), logger)
		go e.runReplicaLoop()
	}

	return e, nil
}

func replicationConfig(cfg config.Config) replication.Config {
	return replication.Config{ReplicationSecret: cfg.Replication.Secret}
}

// runReplicaLoop dials the Main and reconnects with backoff whenever the
// stream drops, until the engine is closed.
func (e *Engine) runReplicaLoop() {
	mode := replication.ASYNC
	if e.cfg.Replication.Mode == "sync" {
		mode = replication.SYNC
	}
	for {
		if e.isClosed() {
			return
		}
		err := e.replica.Connect(e.cfg.Replication.PeerAddr, mode, e.cfg.Replication.AckTimeout)
		if e.isClosed() {
			return
		}
		e.logger.Printf("replica connection to %s ended: %v; retrying", e.cfg.Replication.PeerAddr, err)
		time.Sleep(2 * time.Second)
	}
}

func (e *Engine) isClosed() bool {
	e.indexMu.Lock()
	defer e.indexMu.Unlock()
	return e.closed
}

// Graph returns the underlying storage, for pkg/operators to read from
// directly through pkg/accessor.
func (e *Engine) Graph() *storage.Graph { return e.g }

// AuthStore returns the <data_dir>/auth/ key-value store.
func (e *Engine) AuthStore() *authstore.Store { return e.auth }

// Role reports whether this engine instance is acting as Main or Replica.
func (e *Engine) Role() config.Role { return e.cfg.Role }

// Replicas reports every registered replica's node id and lifecycle state,
// empty on a Replica-role engine.
func (e *Engine) Replicas() map[string]replication.State {
	if e.main == nil {
		return nil
	}
	return e.main.Registrations()
}

// Close stops the snapshot scheduler and replication, and closes every
// durable handle (WAL writer, authstore).
func (e *Engine) Close() error {
	e.indexMu.Lock()
	e.closed = true
	e.indexMu.Unlock()

	if e.scheduler != nil {
		e.scheduler.Stop()
	}
	if e.main != nil {
		e.main.Close()
	}
	if e.replica != nil {
		e.replica.Close()
	}
	var firstErr error
	if err := e.wal.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := e.auth.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

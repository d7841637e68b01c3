// Command graphd hosts one engine.Engine instance: it resolves Config from
// flags layered over the environment, opens the engine, and blocks until a
// termination signal triggers an orderly close (spec 6, "CLI host binary").
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/arborgraph/arbor/pkg/config"
	"github.com/arborgraph/arbor/pkg/engine"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "graphd:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.LoadFromEnv()

	dataDir := flag.String("data-dir", cfg.DataDir, "data directory ("+config.EnvDataDir+")")
	role := flag.String("role", string(cfg.Role), "main or replica ("+config.EnvRole+")")
	listen := flag.String("listen", cfg.Listen, "replication listen address, main only ("+config.EnvListen+")")
	nodeID := flag.String("node-id", cfg.NodeID, "this node's id ("+config.EnvNodeID+")")
	snapshotInterval := flag.Duration("snapshot-interval", cfg.Durability.SnapshotInterval, "snapshot scheduling interval")
	snapshotRetention := flag.Int("snapshot-retention", cfg.Durability.SnapshotRetention, "snapshots to retain")
	segmentMaxBytes := flag.Int64("wal-segment-max-bytes", cfg.Durability.SegmentMaxBytes, "WAL segment rotation size")
	replMode := flag.String("replication-mode", cfg.Replication.Mode, "sync or async")
	replSecret := flag.String("replication-secret", cfg.Replication.Secret, "shared replication secret")
	replPeer := flag.String("replication-peer", cfg.Replication.PeerAddr, "replica only: address of the main to dial")
	replAckTimeout := flag.Duration("replication-ack-timeout", cfg.Replication.AckTimeout, "sync replication ack timeout")
	flag.Parse()

	cfg.DataDir = *dataDir
	cfg.Role = config.Role(*role)
	cfg.Listen = *listen
	cfg.NodeID = *nodeID
	cfg.Durability.SnapshotInterval = *snapshotInterval
	cfg.Durability.SnapshotRetention = *snapshotRetention
	cfg.Durability.SegmentMaxBytes = *segmentMaxBytes
	cfg.Replication.Mode = *replMode
	cfg.Replication.Secret = *replSecret
	cfg.Replication.PeerAddr = *replPeer
	cfg.Replication.AckTimeout = *replAckTimeout

	logger := log.New(os.Stderr, fmt.Sprintf("graphd[%s]: ", cfg.NodeID), log.LstdFlags)

	e, err := engine.Open(*cfg, logger)
	if err != nil {
		return fmt.Errorf("open engine: %w", err)
	}
	logger.Printf("listening role=%s data_dir=%s", cfg.Role, cfg.DataDir)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	logger.Printf("shutting down")
	shutdownStart := time.Now()
	if err := e.Close(); err != nil {
		return fmt.Errorf("close engine: %w", err)
	}
	logger.Printf("shutdown complete in %s", time.Since(shutdownStart))
	return nil
}

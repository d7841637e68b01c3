package durability

import (
	"context"
	"fmt"
	"log"
	"os"
	"sort"
	"time"

	"github.com/arborgraph/arbor/pkg/storage"
)

// SnapshotFunc performs one complete snapshot cycle (build, write, and
// return the path written), supplied by pkg/engine which owns the data
// directory layout and worker id.
type SnapshotFunc func() (path string, err error)

// SnapshotScheduler periodically triggers a snapshot and prunes old ones
// beyond retention, the background-thread "[EXPANSION] Snapshot interval
// / retention" feature ungrounded in the teacher but present in the
// original Memgraph source's --storage-snapshot-interval-sec flag.
type SnapshotScheduler struct {
	interval  time.Duration
	retention int
	dir       string
	take      SnapshotFunc
	logger    *log.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

// NewSnapshotScheduler creates a scheduler that calls take every interval
// and keeps at most retention snapshots in dir (oldest pruned first).
func NewSnapshotScheduler(interval time.Duration, retention int, dir string, take SnapshotFunc, logger *log.Logger) *SnapshotScheduler {
	if logger == nil {
		logger = log.New(os.Stderr, "durability: ", log.LstdFlags)
	}
	return &SnapshotScheduler{interval: interval, retention: retention, dir: dir, take: take, logger: logger}
}

// Start launches the background goroutine. Stop must be called to release
// it.
func (s *SnapshotScheduler) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.run(ctx)
}

// Stop cancels the background goroutine and waits for it to exit.
func (s *SnapshotScheduler) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
}

func (s *SnapshotScheduler) run(ctx context.Context) {
	defer close(s.done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			path, err := s.take()
			if err != nil {
				s.logger.Printf("snapshot cycle failed: %v", err)
				continue
			}
			s.logger.Printf("wrote snapshot %s", path)
			if err := s.prune(); err != nil {
				s.logger.Printf("snapshot prune failed: %v", err)
			}
		}
	}
}

func (s *SnapshotScheduler) prune() error {
	paths, err := ListSnapshotsNewestFirst(s.dir)
	if err != nil {
		return err
	}
	if len(paths) <= s.retention {
		return nil
	}
	toRemove := paths[s.retention:]
	sort.Strings(toRemove)
	for _, p := range toRemove {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("durability: prune %s: %w", p, err)
		}
	}
	return nil
}

// TakeSnapshot builds and writes a snapshot of g as of a freshly begun
// transaction, the single-shot operation SnapshotScheduler's take closure
// wraps.
func TakeSnapshot(dir string, g *storage.Graph, workerID uint32, vertexCounter, edgeCounter uint64, indexes []IndexDef) (string, error) {
	snapshotter := g.Txns.Begin()
	defer g.Txns.Commit(snapshotter)

	snap, err := BuildSnapshot(g, snapshotter, g.Txns, workerID, vertexCounter, edgeCounter, indexes)
	if err != nil {
		return "", err
	}
	path := SnapshotPath(dir, uint64(snapshotter.ID))
	if err := WriteSnapshot(path, snap); err != nil {
		return "", err
	}
	return path, nil
}

package engine

import "github.com/arborgraph/arbor/pkg/durability"

// takeSnapshot is the SnapshotScheduler's SnapshotFunc: it builds and
// writes a point-in-time snapshot of the engine's graph, carrying the
// currently tracked index definitions (spec 6.4) so a later Recover
// rebuilds them too.
func (e *Engine) takeSnapshot() (string, error) {
	vertexSeq, edgeSeq := e.g.IDCounters()
	e.indexMu.Lock()
	indexes := append([]durability.IndexDef(nil), e.indexes...)
	e.indexMu.Unlock()

	return durability.TakeSnapshot(e.snapshotDir, e.g, 0, vertexSeq, edgeSeq, indexes)
}

// Snapshot triggers an out-of-schedule snapshot, returning the path
// written. Exposed for administrative tooling (e.g. before a planned
// shutdown) independent of the scheduler's interval.
func (e *Engine) Snapshot() (string, error) {
	return e.takeSnapshot()
}

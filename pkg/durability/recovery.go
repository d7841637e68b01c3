package durability

import (
	"fmt"
	"log"
	"path/filepath"

	"github.com/arborgraph/arbor/pkg/mvcc"
	"github.com/arborgraph/arbor/pkg/storage"
	"github.com/arborgraph/arbor/pkg/txn"
)

// Recover implements spec 4.7's four-step crash recovery algorithm
// against an empty g: load the newest valid snapshot (trying older ones
// on any read error), replay WAL records in lexicographic file order
// applying the skip/apply/buffer rule, advance id generators past every
// observed id, then rebuild indexes.
func Recover(dataDir string, g *storage.Graph, logger *log.Logger) error {
	_, err := RecoverWithIndexes(dataDir, g, logger)
	return err
}

// RecoverWithIndexes does exactly what Recover does, additionally
// returning the index definitions it rebuilt, so pkg/engine can seed its
// own in-memory index registry (needed for future TakeSnapshot calls)
// without rediscovering them by re-reading storage after the fact.
func RecoverWithIndexes(dataDir string, g *storage.Graph, logger *log.Logger) ([]IndexDef, error) {
	if logger == nil {
		logger = log.New(log.Writer(), "durability: ", log.LstdFlags)
	}

	snapshotsDir := filepath.Join(dataDir, "snapshots")
	walDir := filepath.Join(dataDir, "wal")

	frontier, activeAtSnapshot, indexDefs, loaded := loadNewestValidSnapshot(snapshotsDir, g, logger)
	if !loaded {
		logger.Printf("no valid snapshot found; recovering wal from the first record")
	}

	files, err := walFilesInOrder(walDir)
	if err != nil {
		return nil, fmt.Errorf("durability: list wal files: %w", err)
	}

	pending := make(map[uint64][]Record)
	var maxVertexID, maxEdgeID uint64
	var maxTxnID uint64

	for _, path := range files {
		recs, err := ReadAllRecords(path)
		if err != nil {
			return nil, fmt.Errorf("durability: read %s: %w", path, err)
		}
		for _, rec := range recs {
			if rec.TxnID > maxTxnID {
				maxTxnID = rec.TxnID
			}
			skip := rec.TxnID <= frontier && !activeAtSnapshot[rec.TxnID]

			switch rec.Type {
			case RecTxnBegin:
				if skip {
					continue
				}
				pending[rec.TxnID] = nil
			case RecTxnCommit:
				if skip {
					delete(pending, rec.TxnID)
					continue
				}
				applyTxn(g, pending[rec.TxnID], &maxVertexID, &maxEdgeID)
				delete(pending, rec.TxnID)
			case RecTxnAbort:
				delete(pending, rec.TxnID)
			default:
				if skip {
					continue
				}
				pending[rec.TxnID] = append(pending[rec.TxnID], rec)
			}
		}
	}

	g.EnsureIDsPastRecovery(maxVertexID, maxEdgeID)
	g.Txns.EnsureNextIDGreater(txn.ID(maxTxnID) + 1)

	rebuildIndexes(g, indexDefs)
	return indexDefs, nil
}

// loadNewestValidSnapshot tries every *.snap file newest-first, applying
// the first one that verifies (spec 4.7 step 1: "abort and try the next
// on any failure").
func loadNewestValidSnapshot(snapshotsDir string, g *storage.Graph, logger *log.Logger) (frontier uint64, activeAtSnapshot map[uint64]bool, indexDefs []IndexDef, loaded bool) {
	activeAtSnapshot = make(map[uint64]bool)
	paths, err := ListSnapshotsNewestFirst(snapshotsDir)
	if err != nil {
		logger.Printf("list snapshots: %v", err)
		return 0, activeAtSnapshot, nil, false
	}
	for _, path := range paths {
		snap, err := ReadSnapshot(path)
		if err != nil {
			logger.Printf("snapshot %s failed verification (%v); trying an older one", path, err)
			continue
		}
		ApplySnapshot(g, snap)
		for _, id := range snap.ActiveTxnIDs {
			activeAtSnapshot[id] = true
		}
		return snap.SnapshotterTxnID, activeAtSnapshot, snap.Indexes, true
	}
	return 0, activeAtSnapshot, nil, false
}

// ApplySnapshot installs every vertex/edge in snap into g, replaying its
// recorded labels/properties as committed MVCC deltas. Used by Recover and
// by pkg/replication when a replica catches up from a snapshot streamed by
// the primary.
func ApplySnapshot(g *storage.Graph, snap *Snapshot) {
	for _, vr := range snap.Vertices {
		v := g.InstallVertex(vr.GID)
		t := g.Txns.Begin()
		for _, label := range vr.Labels {
			v.Versions.Append(mvcc.OpSetVertexLabel, &mvcc.LabelPayload{Label: label}, t)
		}
		for key, encoded := range vr.Properties {
			val, err := DecodePropertyValue(PropertyPayload{Value: encoded})
			if err != nil {
				continue
			}
			v.Versions.Append(mvcc.OpSetProperty, &mvcc.PropertyPayload{Key: key, Value: val}, t)
		}
		if len(vr.Labels) == 0 && len(vr.Properties) == 0 {
			v.Versions.Append(mvcc.OpCreateVertex, nil, t)
		}
		g.Txns.Commit(t)
	}
	for _, er := range snap.Edges {
		edgeTypeID := g.EdgeTypes.Intern(er.EdgeType)
		e := g.InstallEdge(er.GID, er.From, er.To, edgeTypeID)
		t := g.Txns.Begin()
		e.Versions.Append(mvcc.OpCreateEdge, &mvcc.EdgePayload{EdgeGID: er.GID, FromGID: er.From, ToGID: er.To, EdgeType: er.EdgeType}, t)
		for key, encoded := range er.Properties {
			val, err := DecodePropertyValue(PropertyPayload{Value: encoded})
			if err != nil {
				continue
			}
			e.Versions.Append(mvcc.OpSetProperty, &mvcc.PropertyPayload{Key: key, Value: val}, t)
		}
		g.Txns.Commit(t)
	}
	g.EnsureIDsPastRecovery(snap.VertexIDCounter, snap.EdgeIDCounter)
}

func walFilesInOrder(walDir string) ([]string, error) {
	segs, err := ListSegmentsLexicographic(walDir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, s := range segs {
		files = append(files, s.Path)
	}
	files = append(files, activeSegmentPath(walDir))
	return files, nil
}

// ApplyWALRecords replays one transaction's worth of buffered WAL records
// against g as a freshly begun-and-committed transaction. Exported so
// pkg/replication can apply a streamed WAL batch with the same logic
// Recover uses for on-disk replay.
func ApplyWALRecords(g *storage.Graph, records []Record) {
	var maxVertexID, maxEdgeID uint64
	applyTxn(g, records, &maxVertexID, &maxEdgeID)
	g.EnsureIDsPastRecovery(maxVertexID, maxEdgeID)
}

// applyTxn replays one transaction's buffered records against g as a
// freshly begun-and-committed transaction, which both reconstructs the
// version chains and naturally preserves relative commit ordering among
// recovered transactions.
func applyTxn(g *storage.Graph, records []Record, maxVertexID, maxEdgeID *uint64) {
	t := g.Txns.Begin()
	for _, rec := range records {
		switch rec.Type {
		case RecCreateVertex:
			var p CreateVertexPayload
			if DecodePayload(rec, &p) != nil {
				continue
			}
			v := g.InstallVertex(p.GID)
			v.Versions.Append(mvcc.OpCreateVertex, nil, t)
			if p.GID > *maxVertexID {
				*maxVertexID = p.GID
			}
		case RecDeleteVertex:
			var p DeleteVertexPayload
			if DecodePayload(rec, &p) != nil {
				continue
			}
			if v := g.Vertex(p.GID); v != nil {
				v.Versions.MarkDeleted(t)
			}
		case RecSetVertexLabel:
			var p LabelPayload
			if DecodePayload(rec, &p) != nil {
				continue
			}
			if v := g.Vertex(p.GID); v != nil {
				v.Versions.Append(mvcc.OpSetVertexLabel, &mvcc.LabelPayload{Label: p.Label}, t)
			}
		case RecRemoveVertexLabel:
			var p LabelPayload
			if DecodePayload(rec, &p) != nil {
				continue
			}
			if v := g.Vertex(p.GID); v != nil {
				v.Versions.Append(mvcc.OpRemoveVertexLabel, &mvcc.LabelPayload{Label: p.Label}, t)
			}
		case RecSetProperty:
			var p PropertyPayload
			if DecodePayload(rec, &p) != nil {
				continue
			}
			val, err := DecodePropertyValue(p)
			if err != nil {
				continue
			}
			applyProperty(g, p, t, mvcc.OpSetProperty, val)
		case RecRemoveProperty:
			var p PropertyPayload
			if DecodePayload(rec, &p) != nil {
				continue
			}
			applyProperty(g, p, t, mvcc.OpRemoveProperty, nil)
		case RecCreateEdge:
			var p CreateEdgePayload
			if DecodePayload(rec, &p) != nil {
				continue
			}
			edgeTypeID := g.EdgeTypes.Intern(p.EdgeType)
			e := g.InstallEdge(p.GID, p.From, p.To, edgeTypeID)
			e.Versions.Append(mvcc.OpCreateEdge, &mvcc.EdgePayload{EdgeGID: p.GID, FromGID: p.From, ToGID: p.To, EdgeType: p.EdgeType}, t)
			if p.GID > *maxEdgeID {
				*maxEdgeID = p.GID
			}
		case RecDeleteEdge:
			var p DeleteEdgePayload
			if DecodePayload(rec, &p) != nil {
				continue
			}
			if e := g.Edge(p.GID); e != nil {
				e.Versions.MarkDeleted(t)
			}
		case RecBuildIndex, RecDropIndex:
			// Index DDL is not replayed from the WAL: rebuildIndexes, run
			// after all data is in place, restores only the indexes listed
			// in the loaded snapshot.
		}
	}
	g.Txns.Commit(t)
}

func applyProperty(g *storage.Graph, p PropertyPayload, t *txn.Transaction, op mvcc.DeltaOp, val any) {
	if p.IsEdge {
		if e := g.Edge(p.ElementGID); e != nil {
			e.Versions.Append(op, &mvcc.PropertyPayload{Key: p.Key, Value: val}, t)
		}
		return
	}
	if v := g.Vertex(p.ElementGID); v != nil {
		v.Versions.Append(op, &mvcc.PropertyPayload{Key: p.Key, Value: val}, t)
	}
}

func rebuildIndexes(g *storage.Graph, defs []IndexDef) {
	for _, def := range defs {
		labelID := g.Labels.Intern(def.Label)
		if def.Property == "" {
			g.CreateLabelIndex(labelID)
			continue
		}
		keyID := g.PropertyKeys.Intern(def.Property)
		g.CreatePropertyIndex(labelID, keyID)
	}
}

package durability

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/arborgraph/arbor/pkg/mvcc"
	"github.com/arborgraph/arbor/pkg/storage"
	"github.com/arborgraph/arbor/pkg/txn"
	"github.com/arborgraph/arbor/pkg/value"
)

// BuildSnapshot walks g under the visibility of snapshotter (itself a
// transaction, per spec 4.7: "replay into a fresh accessor") and produces
// the in-memory Snapshot ready for WriteSnapshot.
func BuildSnapshot(g *storage.Graph, snapshotter *txn.Transaction, engine *txn.Engine, workerID uint32, vertexCounter, edgeCounter uint64, indexes []IndexDef) (*Snapshot, error) {
	snap := &Snapshot{
		FormatVersion:    snapshotVersion,
		WorkerID:         workerID,
		VertexIDCounter:  vertexCounter,
		EdgeIDCounter:    edgeCounter,
		SnapshotterTxnID: uint64(snapshotter.ID),
		Indexes:          indexes,
	}
	for _, id := range engine.ActiveIDs() {
		snap.ActiveTxnIDs = append(snap.ActiveTxnIDs, uint64(id))
	}

	var walkErr error
	g.RangeVertices(func(v *storage.Vertex) bool {
		d := v.Versions.Visible(snapshotter, mvcc.OLD)
		if d == nil {
			return true
		}
		rec, err := vertexToRecord(v, snapshotter)
		if err != nil {
			walkErr = err
			return false
		}
		snap.Vertices = append(snap.Vertices, rec)
		return true
	})
	if walkErr != nil {
		return nil, walkErr
	}

	g.RangeEdges(func(e *storage.Edge) bool {
		d := e.Versions.Visible(snapshotter, mvcc.OLD)
		if d == nil {
			return true
		}
		rec, err := edgeToRecord(e, snapshotter, g)
		if err != nil {
			walkErr = err
			return false
		}
		snap.Edges = append(snap.Edges, rec)
		return true
	})
	if walkErr != nil {
		return nil, walkErr
	}
	return snap, nil
}

func vertexToRecord(v *storage.Vertex, reader *txn.Transaction) (VertexRecord, error) {
	labels := map[string]bool{}
	props := map[string]value.Value{}
	removed := map[string]bool{}
	for d := v.Versions.Head(); d != nil; d = d.Prev {
		if !mvcc.StampVisible(d.Creator, d.CreatedAtCmd, reader, mvcc.OLD) {
			continue
		}
		if d.Deletor != nil && mvcc.StampVisible(d.Deletor, d.DeletedAtCmd, reader, mvcc.OLD) {
			continue
		}
		switch d.Op {
		case mvcc.OpSetVertexLabel:
			lp := d.Payload.(*mvcc.LabelPayload)
			if _, seen := labels[lp.Label]; !seen {
				labels[lp.Label] = true
			}
		case mvcc.OpRemoveVertexLabel:
			lp := d.Payload.(*mvcc.LabelPayload)
			if _, seen := labels[lp.Label]; !seen {
				labels[lp.Label] = false
			}
		case mvcc.OpSetProperty:
			pp := d.Payload.(*mvcc.PropertyPayload)
			if _, seen := props[pp.Key]; !seen && !removed[pp.Key] {
				if val, ok := pp.Value.(value.Value); ok {
					props[pp.Key] = val
				}
			}
		case mvcc.OpRemoveProperty:
			pp := d.Payload.(*mvcc.PropertyPayload)
			if _, seen := props[pp.Key]; !seen {
				removed[pp.Key] = true
			}
		}
	}

	rec := VertexRecord{GID: v.GID, Properties: map[string][]byte{}}
	for name, present := range labels {
		if present {
			rec.Labels = append(rec.Labels, name)
		}
	}
	for key, val := range props {
		encoded, err := msgpack.Marshal(val)
		if err != nil {
			return VertexRecord{}, fmt.Errorf("durability: encode property %q: %w", key, err)
		}
		rec.Properties[key] = encoded
	}
	for _, e := range v.OutEdges() {
		rec.OutEdges = append(rec.OutEdges, e.GID)
	}
	for _, e := range v.InEdges() {
		rec.InEdges = append(rec.InEdges, e.GID)
	}
	return rec, nil
}

func edgeToRecord(e *storage.Edge, reader *txn.Transaction, g *storage.Graph) (EdgeRecord, error) {
	props := map[string]value.Value{}
	removed := map[string]bool{}
	for d := e.Versions.Head(); d != nil; d = d.Prev {
		if !mvcc.StampVisible(d.Creator, d.CreatedAtCmd, reader, mvcc.OLD) {
			continue
		}
		if d.Deletor != nil && mvcc.StampVisible(d.Deletor, d.DeletedAtCmd, reader, mvcc.OLD) {
			continue
		}
		switch d.Op {
		case mvcc.OpSetProperty:
			pp := d.Payload.(*mvcc.PropertyPayload)
			if _, seen := props[pp.Key]; !seen && !removed[pp.Key] {
				if val, ok := pp.Value.(value.Value); ok {
					props[pp.Key] = val
				}
			}
		case mvcc.OpRemoveProperty:
			pp := d.Payload.(*mvcc.PropertyPayload)
			if _, seen := props[pp.Key]; !seen {
				removed[pp.Key] = true
			}
		}
	}
	rec := EdgeRecord{GID: e.GID, From: e.FromGID, To: e.ToGID, EdgeType: g.EdgeTypes.Name(e.EdgeType), Properties: map[string][]byte{}}
	for key, val := range props {
		encoded, err := msgpack.Marshal(val)
		if err != nil {
			return EdgeRecord{}, fmt.Errorf("durability: encode edge property %q: %w", key, err)
		}
		rec.Properties[key] = encoded
	}
	return rec, nil
}

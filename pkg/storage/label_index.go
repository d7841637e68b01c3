package storage

import (
	"sync"

	"github.com/arborgraph/arbor/pkg/mvcc"
)

// LabelIndex tracks, for one interned label, every vertex id that currently
// carries (or has ever carried, pending MVCC visibility) that label. Spec
// 4.6: "label -> concurrent vertex-id set". Entries are added speculatively
// on write and never eagerly removed on label-removal or delete; a reader
// filters the set down to what its view can actually see.
type LabelIndex struct {
	mu  sync.RWMutex
	ids map[uint64]struct{}
}

// NewLabelIndex creates an empty label index.
func NewLabelIndex() *LabelIndex {
	return &LabelIndex{ids: make(map[uint64]struct{})}
}

// Add records gid as carrying this index's label. Called at SetVertexLabel
// time, before the delta is committed (speculative insertion per 4.6).
func (li *LabelIndex) Add(gid uint64) {
	li.mu.Lock()
	defer li.mu.Unlock()
	li.ids[gid] = struct{}{}
}

// Remove drops gid from the index outright. Used only by abort/GC paths,
// never by ordinary label removal (spec 4.6: "removal happens on
// abort/GC", not on RemoveVertexLabel itself, since another still-visible
// delta earlier in the chain might still carry the label).
func (li *LabelIndex) Remove(gid uint64) {
	li.mu.Lock()
	defer li.mu.Unlock()
	delete(li.ids, gid)
}

// Ids returns a snapshot of every id currently tracked. Callers apply MVCC
// visibility (and re-check the label is actually still set as of their
// view) themselves.
func (li *LabelIndex) Ids() []uint64 {
	li.mu.RLock()
	defer li.mu.RUnlock()
	out := make([]uint64, 0, len(li.ids))
	for id := range li.ids {
		out = append(out, id)
	}
	return out
}

// labelIndex returns (creating if absent) the LabelIndex for label.
func (g *Graph) labelIndex(label NameID) *LabelIndex {
	g.schemaMu.Lock()
	defer g.schemaMu.Unlock()
	li, ok := g.labelIdx[label]
	if !ok {
		li = NewLabelIndex()
		g.labelIdx[label] = li
	}
	return li
}

// LabelIndexFor returns the LabelIndex for label if one has been created
// (by CreateLabelIndex or by a prior write through labelIndex), or nil.
func (g *Graph) LabelIndexFor(label NameID) *LabelIndex {
	g.schemaMu.RLock()
	defer g.schemaMu.RUnlock()
	return g.labelIdx[label]
}

// CreateLabelIndex ensures an index exists for label and backfills it from
// every currently allocated vertex, per spec 4.5's CreateIndex DDL. Backfill
// walks raw allocation, not MVCC-filtered state, matching the speculative
// insertion policy the live write path uses.
func (g *Graph) CreateLabelIndex(label NameID) *LabelIndex {
	li := g.labelIndex(label)
	labelName := g.Labels.Name(label)
	g.RangeVertices(func(v *Vertex) bool {
		for d := v.Versions.Head(); d != nil; d = d.Prev {
			if d.Op != mvcc.OpSetVertexLabel {
				continue
			}
			if lp, ok := d.Payload.(*mvcc.LabelPayload); ok && lp.Label == labelName {
				li.Add(v.GID)
				break
			}
		}
		return true
	})
	return li
}

// DropLabelIndex removes the index for label entirely; future writes stop
// populating it until it is recreated.
func (g *Graph) DropLabelIndex(label NameID) {
	g.schemaMu.Lock()
	defer g.schemaMu.Unlock()
	delete(g.labelIdx, label)
}

// CreateLabelIndexIfTracked speculatively adds gid to label's index only
// if that index has already been created by DDL (spec I4: entries are
// added speculatively on write, but only for indexes that exist).
func (g *Graph) CreateLabelIndexIfTracked(label NameID, gid uint64) {
	if li := g.LabelIndexFor(label); li != nil {
		li.Add(gid)
	}
}

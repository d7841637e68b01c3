// Package accessor implements the transaction-scoped view over pkg/storage
// (spec 4.5): every read and write in a query goes through an Accessor
// bound to exactly one transaction, which enforces MVCC visibility and
// write discipline and translates storage-layer sentinels into the
// result-variant shape operators expect.
package accessor

import (
	"fmt"

	"github.com/arborgraph/arbor/pkg/mvcc"
	"github.com/arborgraph/arbor/pkg/storage"
	"github.com/arborgraph/arbor/pkg/txn"
	"github.com/arborgraph/arbor/pkg/value"
)

// Direction selects which adjacency list Expand walks.
type Direction int

const (
	DirOut Direction = iota
	DirIn
	DirBoth
)

// Accessor is acquired once per transaction via New and
// exposes the full spec 4.5 method list. It is not safe for concurrent use
// from multiple goroutines (spec 5: "each transaction is single-threaded
// within its own Accessor").
type Accessor struct {
	g    *storage.Graph
	Txn  *txn.Transaction
	view mvcc.View

	written []uint64 // vertex gids touched this txn, for constraint checking at commit
	done    bool
}

// New begins a transaction against g and returns its Accessor.
func New(g *storage.Graph) *Accessor {
	t := g.Txns.Begin()
	return &Accessor{g: g, Txn: t, view: mvcc.NEW}
}

// View returns the accessor's current default view (NEW, until switched by
// AdvanceCommand's effect on OLD reads; callers pass view explicitly to
// Find*/Vertices/Edges so this is mostly advisory bookkeeping).
func (a *Accessor) View() mvcc.View { return a.view }

// AdvanceCommand increments the bound transaction's command counter,
// making the transaction's own writes so far visible to subsequent OLD
// reads (spec 4.5).
func (a *Accessor) AdvanceCommand() {
	a.Txn.AdvanceCommand()
}

// CreateVertex allocates a new vertex and appends its creation delta.
func (a *Accessor) CreateVertex() (*VertexHandle, error) {
	gid, err := a.g.AllocateVertexID()
	if err != nil {
		return nil, err
	}
	if err := a.g.Txns.ClaimWrite(a.Txn, gid); err != nil {
		return nil, storage.ErrSerialization
	}
	v := a.g.Vertex(gid)
	v.Versions.Append(mvcc.OpCreateVertex, nil, a.Txn)
	a.written = append(a.written, gid)
	return &VertexHandle{a: a, gid: gid}, nil
}

// FindVertex resolves gid under view, or returns ErrNonexistentObject if
// the vertex was never allocated or is not visible.
func (a *Accessor) FindVertex(gid uint64, view mvcc.View) (*VertexHandle, error) {
	v, d := a.g.VisibleVertex(gid, a.Txn, view)
	if v == nil || d == nil {
		return nil, storage.ErrNonexistentObject
	}
	return &VertexHandle{a: a, gid: gid}, nil
}

// FindEdge resolves gid under view.
func (a *Accessor) FindEdge(gid uint64, view mvcc.View) (*EdgeHandle, error) {
	e, d := a.g.VisibleEdge(gid, a.Txn, view)
	if e == nil || d == nil {
		return nil, storage.ErrNonexistentObject
	}
	return &EdgeHandle{a: a, gid: gid}, nil
}

// Vertices enumerates every vertex visible under view, optionally filtered
// to a label via the label index when one is supplied (labelSet == true).
func (a *Accessor) Vertices(view mvcc.View, labelSet bool, label storage.NameID) []*VertexHandle {
	var out []*VertexHandle
	if labelSet {
		if li := a.g.LabelIndexFor(label); li != nil {
			labelName := a.g.Labels.Name(label)
			for _, gid := range li.Ids() {
				if a.vertexVisibleWithLabel(gid, view, labelName) {
					out = append(out, &VertexHandle{a: a, gid: gid})
				}
			}
			return out
		}
	}
	a.g.RangeVertices(func(v *storage.Vertex) bool {
		if _, d := a.g.VisibleVertex(v.GID, a.Txn, view); d != nil {
			if !labelSet || a.vertexVisibleWithLabel(v.GID, view, a.g.Labels.Name(label)) {
				out = append(out, &VertexHandle{a: a, gid: v.GID})
			}
		}
		return true
	})
	return out
}

func (a *Accessor) vertexVisibleWithLabel(gid uint64, view mvcc.View, labelName string) bool {
	v := a.g.Vertex(gid)
	if v == nil {
		return false
	}
	if _, d := a.g.VisibleVertex(gid, a.Txn, view); d == nil {
		return false
	}
	h := &VertexHandle{a: a, gid: gid}
	labels, err := h.Labels(view)
	if err != nil {
		return false
	}
	for _, l := range labels {
		if l == labelName {
			return true
		}
	}
	return false
}

// vertexVisibleWithProperty reports whether gid is visible under view and its
// *current* value for keyName still equals v, re-checking the live delta
// chain the same way vertexVisibleWithLabel re-checks labels: the property
// index is populated speculatively on write and never pruned on abort or on
// a later overwrite, so an index hit is only a candidate, not a guarantee.
func (a *Accessor) vertexVisibleWithProperty(gid uint64, view mvcc.View, keyName string, v value.Value) bool {
	if _, d := a.g.VisibleVertex(gid, a.Txn, view); d == nil {
		return false
	}
	h := &VertexHandle{a: a, gid: gid}
	cur, err := h.Property(view, keyName)
	if err != nil {
		return false
	}
	return cur.Equal(v)
}

// vertexVisibleWithPropertyInRange is vertexVisibleWithProperty's range
// counterpart: it re-reads the vertex's current value for keyName and
// confirms it still falls within [lo, hi] rather than trusting the index
// entry's recorded value.
func (a *Accessor) vertexVisibleWithPropertyInRange(gid uint64, view mvcc.View, keyName string, lo, hi value.Value, hasLo, hasHi bool) bool {
	if _, d := a.g.VisibleVertex(gid, a.Txn, view); d == nil {
		return false
	}
	h := &VertexHandle{a: a, gid: gid}
	cur, err := h.Property(view, keyName)
	if err != nil || cur.IsNull() {
		return false
	}
	if hasLo {
		if ord, ok := value.Compare(cur, lo); !ok || ord == value.Less {
			return false
		}
	}
	if hasHi {
		if ord, ok := value.Compare(cur, hi); !ok || ord == value.Greater {
			return false
		}
	}
	return true
}

// VerticesByProperty enumerates vertices via a (label, key) property index
// at equality (ScanAllByLabelPropertyValue).
func (a *Accessor) VerticesByProperty(view mvcc.View, label, key storage.NameID, v value.Value) []*VertexHandle {
	pi := a.g.PropertyIndexFor(label, key)
	if pi == nil {
		return nil
	}
	keyName := a.g.PropertyKeys.Name(key)
	var out []*VertexHandle
	for _, gid := range pi.ScanEqual(label, key, v) {
		if a.vertexVisibleWithProperty(gid, view, keyName, v) {
			out = append(out, &VertexHandle{a: a, gid: gid})
		}
	}
	return out
}

// VerticesByPropertyRange enumerates vertices via a (label, key) property
// index within [lo, hi] (ScanAllByLabelPropertyRange). hasLo or hasHi false
// leaves that side unbounded; with neither bound the result is empty. A null
// bound that is marked present matches no value. Each vertex is returned at
// most once.
func (a *Accessor) VerticesByPropertyRange(view mvcc.View, label, key storage.NameID, lo, hi value.Value, hasLo, hasHi bool) ([]*VertexHandle, error) {
	if !hasLo && !hasHi {
		return nil, nil
	}
	for _, b := range []value.Value{lo, hi} {
		if b.Kind == value.KindBool || b.IsContainer() {
			return nil, &storage.RangeBoundError{Detail: "bound must not be bool/list/map"}
		}
	}
	pi := a.g.PropertyIndexFor(label, key)
	if pi == nil {
		return nil, nil
	}
	keyName := a.g.PropertyKeys.Name(key)
	candidates := pi.All()
	if hasLo && hasHi {
		candidates = pi.ScanRange(label, key, lo, hi)
	}
	seen := make(map[uint64]bool)
	var out []*VertexHandle
	for _, gid := range candidates {
		if seen[gid] {
			continue
		}
		seen[gid] = true
		if a.vertexVisibleWithPropertyInRange(gid, view, keyName, lo, hi, hasLo, hasHi) {
			out = append(out, &VertexHandle{a: a, gid: gid})
		}
	}
	return out, nil
}

// CreateEdge creates an edge from->to of the given interned type,
// registering it in both endpoints' adjacency lists.
func (a *Accessor) CreateEdge(from, to uint64, edgeType storage.NameID) (*EdgeHandle, error) {
	if _, d := a.g.VisibleVertex(from, a.Txn, mvcc.NEW); d == nil {
		return nil, storage.ErrNonexistentObject
	}
	if _, d := a.g.VisibleVertex(to, a.Txn, mvcc.NEW); d == nil {
		return nil, storage.ErrNonexistentObject
	}
	gid, err := a.g.AllocateEdgeID()
	if err != nil {
		return nil, err
	}
	if err := a.g.Txns.ClaimWrite(a.Txn, gid); err != nil {
		return nil, storage.ErrSerialization
	}
	e := storage.NewEdge(gid, from, to, edgeType)
	e.Versions.Append(mvcc.OpCreateEdge, &mvcc.EdgePayload{EdgeGID: gid, FromGID: from, ToGID: to}, a.Txn)
	a.g.PutEdge(e)
	return &EdgeHandle{a: a, gid: gid}, nil
}

// DeleteEdge marks e deleted.
func (a *Accessor) DeleteEdge(gid uint64) error {
	e := a.g.Edge(gid)
	if e == nil {
		return storage.ErrNonexistentObject
	}
	if _, d := a.g.VisibleEdge(gid, a.Txn, mvcc.NEW); d == nil {
		return storage.ErrNonexistentObject
	}
	if err := a.g.Txns.ClaimWrite(a.Txn, gid); err != nil {
		return storage.ErrSerialization
	}
	e.Versions.MarkDeleted(a.Txn)
	return nil
}

// DeleteVertex deletes gid, failing with ErrVertexHasEdges unless the
// vertex has no incident edges visible under NEW (spec I6).
func (a *Accessor) DeleteVertex(gid uint64) error {
	v := a.g.Vertex(gid)
	if v == nil {
		return storage.ErrNonexistentObject
	}
	if _, d := a.g.VisibleVertex(gid, a.Txn, mvcc.NEW); d == nil {
		return storage.ErrNonexistentObject
	}
	if a.hasVisibleIncidentEdges(v) {
		return storage.ErrVertexHasEdges
	}
	return a.rawDeleteVertex(v)
}

// DetachDeleteVertex deletes gid and every incident edge first, in the
// same transaction (spec I6, DETACH semantics).
func (a *Accessor) DetachDeleteVertex(gid uint64) error {
	v := a.g.Vertex(gid)
	if v == nil {
		return storage.ErrNonexistentObject
	}
	if _, d := a.g.VisibleVertex(gid, a.Txn, mvcc.NEW); d == nil {
		return storage.ErrNonexistentObject
	}
	for _, e := range v.OutEdges() {
		if _, vd := a.g.VisibleEdge(e.GID, a.Txn, mvcc.NEW); vd != nil {
			if err := a.DeleteEdge(e.GID); err != nil {
				return err
			}
		}
	}
	for _, e := range v.InEdges() {
		if _, vd := a.g.VisibleEdge(e.GID, a.Txn, mvcc.NEW); vd != nil {
			if err := a.DeleteEdge(e.GID); err != nil {
				return err
			}
		}
	}
	return a.rawDeleteVertex(v)
}

func (a *Accessor) hasVisibleIncidentEdges(v *storage.Vertex) bool {
	for _, e := range append(v.OutEdges(), v.InEdges()...) {
		if _, d := a.g.VisibleEdge(e.GID, a.Txn, mvcc.NEW); d != nil {
			return true
		}
	}
	return false
}

func (a *Accessor) rawDeleteVertex(v *storage.Vertex) error {
	if err := a.g.Txns.ClaimWrite(a.Txn, v.GID); err != nil {
		return storage.ErrSerialization
	}
	v.Versions.MarkDeleted(a.Txn)
	a.written = append(a.written, v.GID)
	return nil
}

// Commit validates constraints over everything this accessor wrote, then
// commits the bound transaction.
func (a *Accessor) Commit() (uint64, error) {
	if a.done {
		return 0, fmt.Errorf("accessor: already finished")
	}
	if err := a.g.Schema.CheckCommit(a.g, a.written); err != nil {
		a.g.Txns.Abort(a.Txn)
		a.done = true
		return 0, err
	}
	stamp, err := a.g.Txns.Commit(a.Txn)
	a.done = true
	return stamp, err
}

// Abort aborts the bound transaction.
func (a *Accessor) Abort() {
	if a.done {
		return
	}
	a.g.Txns.Abort(a.Txn)
	a.done = true
}

// Graph exposes the underlying storage.Graph for DDL helpers and operators
// that need direct index/interner access alongside an Accessor.
func (a *Accessor) Graph() *storage.Graph { return a.g }

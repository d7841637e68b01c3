package storage

import (
	"sync"

	"github.com/arborgraph/arbor/pkg/mvcc"
)

// Vertex is the in-memory anchor for one graph vertex: a stable global id,
// the MVCC version chain that carries its labels/properties, and the two
// adjacency lists a traversal walks (spec 4.4, "a vertex stores in/out edge
// lists alongside its property version chain").
type Vertex struct {
	GID uint64

	Versions *mvcc.VersionList

	adjMu   sync.RWMutex
	out     []*Edge
	in      []*Edge
}

// NewVertex allocates an empty vertex shell; callers append the
// OpCreateVertex delta via Versions.Append once a creating transaction is
// known.
func NewVertex(gid uint64) *Vertex {
	return &Vertex{GID: gid, Versions: mvcc.NewVersionList()}
}

// addOut/addIn register an edge in the appropriate adjacency list. Both
// directions are tracked so Expand can walk either way without a reverse
// index lookup (spec 4.9, operator Expand).
func (v *Vertex) addOut(e *Edge) {
	v.adjMu.Lock()
	defer v.adjMu.Unlock()
	v.out = append(v.out, e)
}

func (v *Vertex) addIn(e *Edge) {
	v.adjMu.Lock()
	defer v.adjMu.Unlock()
	v.in = append(v.in, e)
}

// OutEdges returns a snapshot slice of the vertex's outgoing adjacency list.
// Callers still must apply MVCC visibility to each returned edge.
func (v *Vertex) OutEdges() []*Edge {
	v.adjMu.RLock()
	defer v.adjMu.RUnlock()
	out := make([]*Edge, len(v.out))
	copy(out, v.out)
	return out
}

// InEdges returns a snapshot slice of the vertex's incoming adjacency list.
func (v *Vertex) InEdges() []*Edge {
	v.adjMu.RLock()
	defer v.adjMu.RUnlock()
	out := make([]*Edge, len(v.in))
	copy(out, v.in)
	return out
}

// Edge is the in-memory anchor for one graph edge: endpoints are immutable
// once created (spec 3: "an edge's endpoints and type never change after
// creation; only its properties do").
type Edge struct {
	GID      uint64
	FromGID  uint64
	ToGID    uint64
	EdgeType NameID

	Versions *mvcc.VersionList
}

// NewEdge allocates an empty edge shell between from and to.
func NewEdge(gid uint64, from, to uint64, edgeType NameID) *Edge {
	return &Edge{
		GID:      gid,
		FromGID:  from,
		ToGID:    to,
		EdgeType: edgeType,
		Versions: mvcc.NewVersionList(),
	}
}

package storage

import (
	"fmt"
	"sync"

	"github.com/arborgraph/arbor/pkg/mvcc"
	"github.com/arborgraph/arbor/pkg/txn"
)

// Graph is the whole in-memory storage core for one database: concurrent
// vertex/edge containers keyed by global id, the three name interners, and
// the label/property indexes built over them (spec 4.4).
type Graph struct {
	vertices *shardedMap[*Vertex]
	edges    *shardedMap[*Edge]

	vgen *idGenerator
	egen *idGenerator

	Labels       *Interner
	EdgeTypes    *Interner
	PropertyKeys *Interner

	schemaMu sync.RWMutex
	labelIdx map[NameID]*LabelIndex
	propIdx  map[propIndexID]*PropertyIndex

	Schema *Schema

	Txns *txn.Engine

	// propertiesEnabled gates edge property writes (Design Note: "startup
	// only"). Set once in NewGraph/NewGraphWithOptions; flipping after
	// open is rejected by SetEdgePropertiesEnabled.
	edgePropertiesEnabled bool
	opened                bool
}

// propIndexID names a label+property composite index by its two interned
// components, the key a caller uses to look one up via Graph.propertyIndex.
type propIndexID struct {
	Label NameID
	Key   NameID
}

// NewGraph creates an empty graph ready to accept transactions.
func NewGraph() *Graph {
	return &Graph{
		vertices:              newShardedMap[*Vertex](),
		edges:                 newShardedMap[*Edge](),
		vgen:                  newIDGenerator(),
		egen:                  newIDGenerator(),
		Labels:                NewInterner(),
		EdgeTypes:             NewInterner(),
		PropertyKeys:          NewInterner(),
		labelIdx:              make(map[NameID]*LabelIndex),
		propIdx:               make(map[propIndexID]*PropertyIndex),
		Schema:                newSchema(),
		Txns:                  txn.New(),
		edgePropertiesEnabled: true,
		opened:                true,
	}
}

// NewGraphWithOptions creates an empty graph with edge-property storage
// set once at startup, per Design Note 9.3.
func NewGraphWithOptions(edgePropertiesEnabled bool) *Graph {
	g := NewGraph()
	g.edgePropertiesEnabled = edgePropertiesEnabled
	return g
}

// EdgePropertiesEnabled reports whether edges may carry properties.
func (g *Graph) EdgePropertiesEnabled() bool { return g.edgePropertiesEnabled }

// SetEdgePropertiesEnabled configures edge-property storage. Per Design
// Note 9.3 this is startup-only: once the graph has served any traffic
// (opened stays true for the lifetime of the process) a second call
// returns an error instead of silently flipping behavior mid-flight.
func (g *Graph) SetEdgePropertiesEnabled(enabled bool) error {
	if g.edgePropertiesEnabled == enabled {
		return nil
	}
	if g.opened {
		return fmt.Errorf("storage: edge property storage toggle is startup-only")
	}
	g.edgePropertiesEnabled = enabled
	return nil
}

// AllocateVertexID mints a fresh vertex id, retrying on collision up to
// maxIDRetries times (the "[EXPANSION] Creation retry" clause).
func (g *Graph) AllocateVertexID() (uint64, error) {
	for i := 0; i < maxIDRetries; i++ {
		id := g.vgen.next()
		if _, loaded := g.vertices.LoadOrStore(id, NewVertex(id)); !loaded {
			return id, nil
		}
	}
	return 0, ErrCreationFailure
}

// AllocateEdgeID mints a fresh edge id the same way.
func (g *Graph) AllocateEdgeID() (uint64, error) {
	for i := 0; i < maxIDRetries; i++ {
		id := g.egen.next()
		if _, loaded := g.edges.LoadOrStore(id, nil); !loaded {
			return id, nil
		}
	}
	return 0, ErrCreationFailure
}

// Vertex returns the vertex shell for gid, or nil if no such id was ever
// allocated. Callers must still resolve MVCC visibility via Vertex.Versions.
func (g *Graph) Vertex(gid uint64) *Vertex {
	v, _ := g.vertices.Load(gid)
	return v
}

// PutEdge installs e at its own gid, replacing the placeholder AllocateEdgeID
// stored, and wires up both endpoints' adjacency lists.
func (g *Graph) PutEdge(e *Edge) {
	g.edges.Store(e.GID, e)
	if from := g.Vertex(e.FromGID); from != nil {
		from.addOut(e)
	}
	if to := g.Vertex(e.ToGID); to != nil {
		to.addIn(e)
	}
}

// Edge returns the edge shell for gid, or nil.
func (g *Graph) Edge(gid uint64) *Edge {
	e, _ := g.edges.Load(gid)
	return e
}

// InstallVertex registers gid directly (bypassing id allocation), for use
// by pkg/durability recovery and snapshot load, which must reproduce the
// exact gids a crashed process had already handed out. Returns the
// existing vertex if gid was already installed.
func (g *Graph) InstallVertex(gid uint64) *Vertex {
	actual, _ := g.vertices.LoadOrStore(gid, NewVertex(gid))
	return actual
}

// InstallEdge registers e's gid directly and wires adjacency, the edge
// counterpart of InstallVertex.
func (g *Graph) InstallEdge(gid, from, to uint64, edgeType NameID) *Edge {
	if existing := g.Edge(gid); existing != nil {
		return existing
	}
	e := NewEdge(gid, from, to, edgeType)
	g.PutEdge(e)
	return e
}

// EnsureIDsPastRecovery advances both id generators past the worker-local
// sequence components observed during WAL/snapshot recovery (spec 4.7 step
// 3, invariant I5).
func (g *Graph) EnsureIDsPastRecovery(maxVertexID, maxEdgeID uint64) {
	g.vgen.ensureNextGreater(maxVertexID)
	g.egen.ensureNextGreater(maxEdgeID)
}

// VertexCount and EdgeCount give raw allocation counts, irrespective of
// MVCC visibility: objects created by aborted transactions or deleted by
// committed ones stay counted. Graph.String reports them.
func (g *Graph) VertexCount() int { return g.vertices.Len() }
func (g *Graph) EdgeCount() int   { return g.edges.Len() }

// IDCounters reports each generator's current sequence value, the
// vertexCounter/edgeCounter a snapshot header records so a restore resumes
// id allocation past everything already assigned (spec 6.4).
func (g *Graph) IDCounters() (vertexSeq, edgeSeq uint64) {
	return g.vgen.seq.Load(), g.egen.seq.Load()
}

// RangeVertices iterates every allocated vertex id, irrespective of
// visibility. Operators apply MVCC visibility themselves as they consume
// each vertex (spec 4.9, ScanAll*).
func (g *Graph) RangeVertices(fn func(v *Vertex) bool) {
	g.vertices.Range(func(_ uint64, v *Vertex) bool { return fn(v) })
}

// RangeEdges iterates every allocated edge id.
func (g *Graph) RangeEdges(fn func(e *Edge) bool) {
	g.edges.Range(func(_ uint64, e *Edge) bool {
		if e == nil {
			return true
		}
		return fn(e)
	})
}

// VisibleVertex resolves gid to its MVCC-visible *Delta for reader/view, or
// returns (nil, nil) if no such vertex was ever allocated, vs. (v, nil)
// deleted-or-uncommitted which callers distinguish by the returned delta.
func (g *Graph) VisibleVertex(gid uint64, reader *txn.Transaction, view mvcc.View) (*Vertex, *mvcc.Delta) {
	v := g.Vertex(gid)
	if v == nil {
		return nil, nil
	}
	return v, v.Versions.Visible(reader, view)
}

// VisibleEdge resolves gid the same way for edges.
func (g *Graph) VisibleEdge(gid uint64, reader *txn.Transaction, view mvcc.View) (*Edge, *mvcc.Delta) {
	e := g.Edge(gid)
	if e == nil {
		return nil, nil
	}
	return e, e.Versions.Visible(reader, view)
}

// String implements fmt.Stringer for diagnostic logging (the teacher logs
// storage engine summaries via %v on a top-level struct in several CLI
// commands).
func (g *Graph) String() string {
	return fmt.Sprintf("Graph{vertices=%d edges=%d labels=%d}", g.VertexCount(), g.EdgeCount(), len(g.labelIdx))
}

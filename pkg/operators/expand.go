package operators

import (
	"github.com/arborgraph/arbor/pkg/accessor"
	"github.com/arborgraph/arbor/pkg/mvcc"
	"github.com/arborgraph/arbor/pkg/storage"
	"github.com/arborgraph/arbor/pkg/value"
)

// Expand enumerates edges incident to the vertex bound at Source, matching
// Dir and an optional EdgeType filter, binding EdgeOut (and, when the
// target isn't already bound, VertexOut); if VertexOut is already bound on
// the frame, Expand filters to edges that terminate there (spec 4.9).
type Expand struct {
	Input     Cursor
	Source    int
	EdgeOut   int
	VertexOut int
	Dir       accessor.Direction
	EdgeTypes []storage.NameID // empty means "any type"
	View      mvcc.View

	// VertexOutBound reports whether VertexOut is already bound coming in
	// (the planner's job to tell us; a re-expand onto a known vertex
	// filters rather than binds).
	VertexOutBound bool

	pending []*accessor.EdgeHandle
	seenLoops map[uint64]bool
}

func NewExpand(input Cursor, source, edgeOut, vertexOut int, dir accessor.Direction, edgeTypes []storage.NameID, view mvcc.View, vertexOutBound bool) *Expand {
	return &Expand{
		Input: input, Source: source, EdgeOut: edgeOut, VertexOut: vertexOut,
		Dir: dir, EdgeTypes: edgeTypes, View: view, VertexOutBound: vertexOutBound,
	}
}

func (e *Expand) matchesType(et storage.NameID) bool {
	if len(e.EdgeTypes) == 0 {
		return true
	}
	for _, want := range e.EdgeTypes {
		if want == et {
			return true
		}
	}
	return false
}

// otherEnd returns the endpoint Expand should bind to VertexOut: for OUT,
// the edge's To; for IN, its From; for BOTH, whichever endpoint isn't the
// source (a self-loop resolves to the source itself). On BOTH a self-loop
// sits in both adjacency lists; Pull emits each self-loop edge once.
func otherEnd(h *accessor.EdgeHandle, source uint64) uint64 {
	if h.From() == source {
		return h.To()
	}
	return h.From()
}

func (e *Expand) Pull(ctx *ExecutionContext, frame *Frame) (bool, error) {
	for {
		if err := ctx.checkAbort(); err != nil {
			return false, err
		}
		if len(e.pending) == 0 {
			ok, err := e.Input.Pull(ctx, frame)
			if err != nil || !ok {
				return false, err
			}
			src := frame.Get(e.Source)
			if src.IsNull() {
				// Null source skips (spec 4.9).
				continue
			}
			ref := src.AsVertex()
			if ref == nil {
				return false, &RuntimeTypeError{Detail: "Expand source is not a vertex"}
			}
			h, err := ctx.Acc.FindVertex(ref.GID, e.View)
			if err != nil {
				continue
			}
			e.pending = e.edgesFor(h)
			e.seenLoops = nil
			continue
		}
		h := e.pending[0]
		e.pending = e.pending[1:]
		if !e.matchesType(h.EdgeType()) {
			continue
		}
		src := frame.Get(e.Source).AsVertex()
		target := otherEnd(h, src.GID)
		if e.Dir == accessor.DirBoth && h.From() == h.To() {
			if e.seenLoops[h.GID()] {
				continue
			}
			if e.seenLoops == nil {
				e.seenLoops = make(map[uint64]bool)
			}
			e.seenLoops[h.GID()] = true
		}
		if e.VertexOutBound {
			want := frame.Get(e.VertexOut).AsVertex()
			if want == nil || want.GID != target {
				continue
			}
		}
		frame.Set(e.EdgeOut, value.Edge(value.EdgeRef{GID: h.GID(), From: h.From(), To: h.To(), IsRev: h.From() != src.GID}))
		if !e.VertexOutBound {
			frame.Set(e.VertexOut, value.Vertex(value.VertexRef{GID: target}))
		}
		return true, nil
	}
}

func (e *Expand) edgesFor(h *accessor.VertexHandle) []*accessor.EdgeHandle {
	switch e.Dir {
	case accessor.DirOut:
		return h.OutEdges(e.View)
	case accessor.DirIn:
		return h.InEdges(e.View)
	default:
		out := append([]*accessor.EdgeHandle(nil), h.OutEdges(e.View)...)
		return append(out, h.InEdges(e.View)...)
	}
}

func (e *Expand) Reset()    { e.Input.Reset(); e.pending = nil; e.seenLoops = nil }
func (e *Expand) Shutdown() { e.Input.Shutdown() }

package value

// VertexRef, EdgeRef and PathRef are opaque handles a query evaluator
// attaches to a Value via the Ref field. pkg/value deliberately does not
// import pkg/storage (that would invert the dependency order from spec 2);
// instead it defines the minimal shape operators and the evaluator contract
// need, and pkg/storage's vertex/edge accessors are expected to satisfy it.

// VertexRef identifies a vertex on the evaluation frame.
type VertexRef struct {
	GID uint64
}

// EdgeRef identifies a directed edge on the evaluation frame.
type EdgeRef struct {
	GID   uint64
	From  uint64
	To    uint64
	IsRev bool // true when the edge was traversed against its stored direction
}

// PathRef is an alternating vertex/edge sequence built by ConstructNamedPath.
type PathRef struct {
	Vertices []VertexRef
	Edges    []EdgeRef
}

// Vertex wraps a VertexRef as a Value.
func Vertex(ref VertexRef) Value { return Value{Kind: KindVertexRef, Ref: &ref} }

// Edge wraps an EdgeRef as a Value.
func Edge(ref EdgeRef) Value { return Value{Kind: KindEdgeRef, Ref: &ref} }

// Path wraps a PathRef as a Value.
func Path(ref PathRef) Value { return Value{Kind: KindPathRef, Ref: &ref} }

// AsVertex extracts a *VertexRef, or nil if v is not a vertex reference.
func (v Value) AsVertex() *VertexRef {
	if v.Kind != KindVertexRef {
		return nil
	}
	r, _ := v.Ref.(*VertexRef)
	return r
}

// AsEdge extracts an *EdgeRef, or nil if v is not an edge reference.
func (v Value) AsEdge() *EdgeRef {
	if v.Kind != KindEdgeRef {
		return nil
	}
	r, _ := v.Ref.(*EdgeRef)
	return r
}

// AsPath extracts a *PathRef, or nil if v is not a path reference.
func (v Value) AsPath() *PathRef {
	if v.Kind != KindPathRef {
		return nil
	}
	r, _ := v.Ref.(*PathRef)
	return r
}

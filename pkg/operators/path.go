package operators

import "github.com/arborgraph/arbor/pkg/value"

// ConstructNamedPath combines a sequence of vertex/edge/edge-list frame
// entries into a single Path query-value (spec 4.9). Symbols must start
// and end on a vertex entry; an edge-list entry (as ExpandVariable's
// accumulated edge list produces) is flattened in place. Direction between
// consecutive vertex/edge pairs is inferred from endpoint equality, not
// assumed from the edge's stored From/To.
type ConstructNamedPath struct {
	Input   Cursor
	Output  int
	Symbols []int
}

func NewConstructNamedPath(input Cursor, output int, symbols []int) *ConstructNamedPath {
	return &ConstructNamedPath{Input: input, Output: output, Symbols: symbols}
}

func (c *ConstructNamedPath) Pull(ctx *ExecutionContext, frame *Frame) (bool, error) {
	ok, err := c.Input.Pull(ctx, frame)
	if err != nil || !ok {
		return false, err
	}
	path, err := buildPath(frame, c.Symbols)
	if err != nil {
		return false, err
	}
	frame.Set(c.Output, value.Path(path))
	return true, nil
}

func buildPath(frame *Frame, symbols []int) (value.PathRef, error) {
	var path value.PathRef
	var cur uint64
	haveCur := false
	for _, sym := range symbols {
		v := frame.Get(sym)
		switch v.Kind {
		case value.KindVertexRef:
			path.Vertices = append(path.Vertices, *v.AsVertex())
			cur, haveCur = v.AsVertex().GID, true
		case value.KindEdgeRef:
			oe := orientEdge(cur, haveCur, *v.AsEdge())
			path.Edges = append(path.Edges, oe)
			cur, haveCur = oe.To, true
		case value.KindList:
			for _, e := range v.L {
				if e.Kind != value.KindEdgeRef {
					return value.PathRef{}, &RuntimeTypeError{Detail: "path edge-list entry is not an edge"}
				}
				oe := orientEdge(cur, haveCur, *e.AsEdge())
				path.Edges = append(path.Edges, oe)
				cur, haveCur = oe.To, true
			}
		default:
			if !v.IsNull() {
				return value.PathRef{}, &RuntimeTypeError{Detail: "path symbol is neither vertex, edge, nor edge list"}
			}
		}
	}
	return path, nil
}

// orientEdge flips an edge's reported direction to match the vertex it
// continues from, since the frame only carries the edge's storage-level
// endpoints; the path's own walking order decides which end is "from".
func orientEdge(cur uint64, haveCur bool, e value.EdgeRef) value.EdgeRef {
	if !haveCur {
		return e
	}
	if e.From == cur {
		return value.EdgeRef{GID: e.GID, From: e.From, To: e.To}
	}
	return value.EdgeRef{GID: e.GID, From: e.To, To: e.From, IsRev: true}
}

func (c *ConstructNamedPath) Reset()    { c.Input.Reset() }
func (c *ConstructNamedPath) Shutdown() { c.Input.Shutdown() }

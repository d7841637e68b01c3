package operators

import "github.com/arborgraph/arbor/pkg/value"

// EdgeUniquenessFilter drops tuples whose newly-expanded edge (bound at
// New) equals any previously-bound edge symbol in Previous — scalar or
// list-valued (spec 4.9), the standard "no repeated edge in this path"
// guard placed after each Expand/ExpandVariable step.
type EdgeUniquenessFilter struct {
	Input    Cursor
	New      int
	Previous []int
}

func NewEdgeUniquenessFilter(input Cursor, newSym int, previous []int) *EdgeUniquenessFilter {
	return &EdgeUniquenessFilter{Input: input, New: newSym, Previous: previous}
}

func edgeGIDsIn(v value.Value) []uint64 {
	switch v.Kind {
	case value.KindEdgeRef:
		return []uint64{v.AsEdge().GID}
	case value.KindList:
		var out []uint64
		for _, e := range v.L {
			if e.Kind == value.KindEdgeRef {
				out = append(out, e.AsEdge().GID)
			}
		}
		return out
	default:
		return nil
	}
}

func (f *EdgeUniquenessFilter) Pull(ctx *ExecutionContext, frame *Frame) (bool, error) {
	for {
		if err := ctx.checkAbort(); err != nil {
			return false, err
		}
		ok, err := f.Input.Pull(ctx, frame)
		if err != nil || !ok {
			return false, err
		}
		newEdge := frame.Get(f.New)
		if newEdge.Kind != value.KindEdgeRef {
			return true, nil
		}
		gid := newEdge.AsEdge().GID
		dup := false
		for _, sym := range f.Previous {
			for _, seen := range edgeGIDsIn(frame.Get(sym)) {
				if seen == gid {
					dup = true
					break
				}
			}
			if dup {
				break
			}
		}
		if !dup {
			return true, nil
		}
	}
}

func (f *EdgeUniquenessFilter) Reset()    { f.Input.Reset() }
func (f *EdgeUniquenessFilter) Shutdown() { f.Input.Shutdown() }

package operators

import (
	"github.com/arborgraph/arbor/pkg/accessor"
	"github.com/arborgraph/arbor/pkg/mvcc"
	"github.com/arborgraph/arbor/pkg/storage"
	"github.com/arborgraph/arbor/pkg/value"
)

// ScanAll enumerates every vertex visible under View for each tuple its
// input produces, binding Output to that vertex (spec 4.9).
type ScanAll struct {
	Input  Cursor
	Output int
	View   mvcc.View

	pending []*accessor.VertexHandle
}

func NewScanAll(input Cursor, output int, view mvcc.View) *ScanAll {
	return &ScanAll{Input: input, Output: output, View: view}
}

func (s *ScanAll) Pull(ctx *ExecutionContext, frame *Frame) (bool, error) {
	for {
		if err := ctx.checkAbort(); err != nil {
			return false, err
		}
		if len(s.pending) == 0 {
			ok, err := s.Input.Pull(ctx, frame)
			if err != nil || !ok {
				return false, err
			}
			s.pending = ctx.Acc.Vertices(s.View, false, 0)
			continue
		}
		h := s.pending[0]
		s.pending = s.pending[1:]
		frame.Set(s.Output, value.Vertex(value.VertexRef{GID: h.GID()}))
		return true, nil
	}
}

func (s *ScanAll) Reset()    { s.Input.Reset(); s.pending = nil }
func (s *ScanAll) Shutdown() { s.Input.Shutdown() }

// ScanAllByLabel restricts ScanAll's enumeration to vertices carrying Label,
// reading the label index when one exists (spec 4.6/4.9).
type ScanAllByLabel struct {
	Input  Cursor
	Output int
	View   mvcc.View
	Label  storage.NameID

	pending []*accessor.VertexHandle
}

func NewScanAllByLabel(input Cursor, output int, view mvcc.View, label storage.NameID) *ScanAllByLabel {
	return &ScanAllByLabel{Input: input, Output: output, View: view, Label: label}
}

func (s *ScanAllByLabel) Pull(ctx *ExecutionContext, frame *Frame) (bool, error) {
	for {
		if err := ctx.checkAbort(); err != nil {
			return false, err
		}
		if len(s.pending) == 0 {
			ok, err := s.Input.Pull(ctx, frame)
			if err != nil || !ok {
				return false, err
			}
			s.pending = ctx.Acc.Vertices(s.View, true, s.Label)
			continue
		}
		h := s.pending[0]
		s.pending = s.pending[1:]
		frame.Set(s.Output, value.Vertex(value.VertexRef{GID: h.GID()}))
		return true, nil
	}
}

func (s *ScanAllByLabel) Reset()    { s.Input.Reset(); s.pending = nil }
func (s *ScanAllByLabel) Shutdown() { s.Input.Shutdown() }

// ScanAllByLabelProperty restricts enumeration to vertices of Label that
// carry a value for Property at all (property-existence scan backed by the
// property index's full key order, spec 4.9).
type ScanAllByLabelProperty struct {
	Input    Cursor
	Output   int
	View     mvcc.View
	Label    storage.NameID
	Property storage.NameID

	pending []uint64
}

func NewScanAllByLabelProperty(input Cursor, output int, view mvcc.View, label, property storage.NameID) *ScanAllByLabelProperty {
	return &ScanAllByLabelProperty{Input: input, Output: output, View: view, Label: label, Property: property}
}

func (s *ScanAllByLabelProperty) Pull(ctx *ExecutionContext, frame *Frame) (bool, error) {
	for {
		if err := ctx.checkAbort(); err != nil {
			return false, err
		}
		if len(s.pending) == 0 {
			ok, err := s.Input.Pull(ctx, frame)
			if err != nil || !ok {
				return false, err
			}
			s.pending = nil
			if pi := ctx.Acc.Graph().PropertyIndexFor(s.Label, s.Property); pi != nil {
				seen := make(map[uint64]bool)
				for _, gid := range pi.All() {
					if !seen[gid] {
						seen[gid] = true
						s.pending = append(s.pending, gid)
					}
				}
			}
			continue
		}
		gid := s.pending[0]
		s.pending = s.pending[1:]
		if !s.visible(ctx, gid) {
			continue
		}
		frame.Set(s.Output, value.Vertex(value.VertexRef{GID: gid}))
		return true, nil
	}
}

func (s *ScanAllByLabelProperty) visible(ctx *ExecutionContext, gid uint64) bool {
	h, err := ctx.Acc.FindVertex(gid, s.View)
	if err != nil {
		return false
	}
	cur, err := h.Property(s.View, ctx.Acc.Graph().PropertyKeys.Name(s.Property))
	if err != nil || cur.IsNull() {
		return false
	}
	labels, _ := h.Labels(s.View)
	labelName := ctx.Acc.Graph().Labels.Name(s.Label)
	for _, l := range labels {
		if l == labelName {
			return true
		}
	}
	return false
}

func (s *ScanAllByLabelProperty) Reset()    { s.Input.Reset(); s.pending = nil }
func (s *ScanAllByLabelProperty) Shutdown() { s.Input.Shutdown() }

// ScanAllByLabelPropertyValue restricts enumeration to vertices of Label
// whose Property equals Value (index equality lookup, spec 4.9).
type ScanAllByLabelPropertyValue struct {
	Input    Cursor
	Output   int
	View     mvcc.View
	Label    storage.NameID
	Property storage.NameID
	Value    Expression

	pending []*accessor.VertexHandle
}

func NewScanAllByLabelPropertyValue(input Cursor, output int, view mvcc.View, label, property storage.NameID, val Expression) *ScanAllByLabelPropertyValue {
	return &ScanAllByLabelPropertyValue{Input: input, Output: output, View: view, Label: label, Property: property, Value: val}
}

func (s *ScanAllByLabelPropertyValue) Pull(ctx *ExecutionContext, frame *Frame) (bool, error) {
	for {
		if err := ctx.checkAbort(); err != nil {
			return false, err
		}
		if len(s.pending) == 0 {
			ok, err := s.Input.Pull(ctx, frame)
			if err != nil || !ok {
				return false, err
			}
			v, err := s.Value(&EvalContext{Acc: ctx.Acc, View: s.View}, frame)
			if err != nil {
				return false, err
			}
			if v.IsNull() {
				continue
			}
			s.pending = ctx.Acc.VerticesByProperty(s.View, s.Label, s.Property, v)
			continue
		}
		h := s.pending[0]
		s.pending = s.pending[1:]
		frame.Set(s.Output, value.Vertex(value.VertexRef{GID: h.GID()}))
		return true, nil
	}
}

func (s *ScanAllByLabelPropertyValue) Reset()    { s.Input.Reset(); s.pending = nil }
func (s *ScanAllByLabelPropertyValue) Shutdown() { s.Input.Shutdown() }

// ScanAllByLabelPropertyRange restricts enumeration to vertices of Label
// whose Property falls within [Lo, Hi] (spec 4.9/4.6): HasLo or HasHi false
// leaves that side unbounded; with neither bound the result is empty; a
// supplied bound that evaluates to null yields no rows for that input tuple;
// a bool/list/map bound raises RangeBoundError.
type ScanAllByLabelPropertyRange struct {
	Input    Cursor
	Output   int
	View     mvcc.View
	Label    storage.NameID
	Property storage.NameID
	Lo, Hi   Expression
	HasLo, HasHi bool

	pending []*accessor.VertexHandle
}

func NewScanAllByLabelPropertyRange(input Cursor, output int, view mvcc.View, label, property storage.NameID, lo, hi Expression, hasLo, hasHi bool) *ScanAllByLabelPropertyRange {
	return &ScanAllByLabelPropertyRange{Input: input, Output: output, View: view, Label: label, Property: property, Lo: lo, Hi: hi, HasLo: hasLo, HasHi: hasHi}
}

func (s *ScanAllByLabelPropertyRange) Pull(ctx *ExecutionContext, frame *Frame) (bool, error) {
	for {
		if err := ctx.checkAbort(); err != nil {
			return false, err
		}
		if len(s.pending) == 0 {
			ok, err := s.Input.Pull(ctx, frame)
			if err != nil || !ok {
				return false, err
			}
			evalCtx := &EvalContext{Acc: ctx.Acc, View: s.View}
			lo, hi := value.Null(), value.Null()
			if s.HasLo {
				v, err := s.Lo(evalCtx, frame)
				if err != nil {
					return false, err
				}
				lo = v
			}
			if s.HasHi {
				v, err := s.Hi(evalCtx, frame)
				if err != nil {
					return false, err
				}
				hi = v
			}
			if (s.HasLo && lo.IsNull()) || (s.HasHi && hi.IsNull()) {
				continue
			}
			pending, err := ctx.Acc.VerticesByPropertyRange(s.View, s.Label, s.Property, lo, hi, s.HasLo, s.HasHi)
			if err != nil {
				return false, err
			}
			s.pending = pending
			continue
		}
		h := s.pending[0]
		s.pending = s.pending[1:]
		frame.Set(s.Output, value.Vertex(value.VertexRef{GID: h.GID()}))
		return true, nil
	}
}

func (s *ScanAllByLabelPropertyRange) Reset()    { s.Input.Reset(); s.pending = nil }
func (s *ScanAllByLabelPropertyRange) Shutdown() { s.Input.Shutdown() }

// ScanAllById resolves a single gid expression and emits the vertex once if
// it is visible, matching the zero-or-one-row shape a known-id lookup
// compiles to (spec 4.9).
type ScanAllById struct {
	Input  Cursor
	Output int
	View   mvcc.View
	ID     Expression

	tried bool
}

func NewScanAllById(input Cursor, output int, view mvcc.View, id Expression) *ScanAllById {
	return &ScanAllById{Input: input, Output: output, View: view, ID: id}
}

func (s *ScanAllById) Pull(ctx *ExecutionContext, frame *Frame) (bool, error) {
	for {
		if err := ctx.checkAbort(); err != nil {
			return false, err
		}
		if !s.tried {
			ok, err := s.Input.Pull(ctx, frame)
			if err != nil || !ok {
				return false, err
			}
			s.tried = true
			v, err := s.ID(&EvalContext{Acc: ctx.Acc, View: s.View}, frame)
			if err != nil {
				return false, err
			}
			if v.Kind != value.KindInt {
				continue
			}
			h, err := ctx.Acc.FindVertex(uint64(v.I), s.View)
			if err != nil {
				continue
			}
			frame.Set(s.Output, value.Vertex(value.VertexRef{GID: h.GID()}))
			return true, nil
		}
		s.tried = false
	}
}

func (s *ScanAllById) Reset()    { s.Input.Reset(); s.tried = false }
func (s *ScanAllById) Shutdown() { s.Input.Shutdown() }

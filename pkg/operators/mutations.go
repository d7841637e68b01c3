package operators

import (
	"github.com/arborgraph/arbor/pkg/accessor"
	"github.com/arborgraph/arbor/pkg/mvcc"
	"github.com/arborgraph/arbor/pkg/value"
)

// Mutator is the write surface every write operator calls through. It is
// satisfied structurally by engine.Session (durability- and replication-
// aware) and, for standalone/test execution with no durability layer, by
// AccessorMutator below. pkg/operators never imports pkg/engine — Session
// just happens to implement this shape.
type Mutator interface {
	SetVertexLabel(gid uint64, label string) error
	RemoveVertexLabel(gid uint64, label string) error
	SetVertexProperty(gid uint64, key string, val value.Value) error
	RemoveVertexProperty(gid uint64, key string) error
	SetEdgeProperty(gid uint64, key string, val value.Value) error
	RemoveEdgeProperty(gid uint64, key string) error
	DeleteVertex(gid uint64) error
	DetachDeleteVertex(gid uint64) error
	DeleteEdge(gid uint64) error
}

// AccessorMutator adapts a plain accessor.Accessor to Mutator, for plans
// run without an engine.Session (tests, or a host that accepts unlogged
// writes).
type AccessorMutator struct{ Acc *accessor.Accessor }

func (m AccessorMutator) SetVertexLabel(gid uint64, label string) error {
	h, err := m.Acc.FindVertex(gid, mvcc.NEW)
	if err != nil {
		return err
	}
	return h.SetLabel(label)
}

func (m AccessorMutator) RemoveVertexLabel(gid uint64, label string) error {
	h, err := m.Acc.FindVertex(gid, mvcc.NEW)
	if err != nil {
		return err
	}
	return h.RemoveLabel(label)
}

func (m AccessorMutator) SetVertexProperty(gid uint64, key string, val value.Value) error {
	h, err := m.Acc.FindVertex(gid, mvcc.NEW)
	if err != nil {
		return err
	}
	return h.SetProperty(key, val)
}

func (m AccessorMutator) RemoveVertexProperty(gid uint64, key string) error {
	h, err := m.Acc.FindVertex(gid, mvcc.NEW)
	if err != nil {
		return err
	}
	return h.RemoveProperty(key)
}

func (m AccessorMutator) SetEdgeProperty(gid uint64, key string, val value.Value) error {
	h, err := m.Acc.FindEdge(gid, mvcc.NEW)
	if err != nil {
		return err
	}
	return h.SetProperty(key, val)
}

func (m AccessorMutator) RemoveEdgeProperty(gid uint64, key string) error {
	h, err := m.Acc.FindEdge(gid, mvcc.NEW)
	if err != nil {
		return err
	}
	return h.RemoveProperty(key)
}

func (m AccessorMutator) DeleteVertex(gid uint64) error       { return m.Acc.DeleteVertex(gid) }
func (m AccessorMutator) DetachDeleteVertex(gid uint64) error { return m.Acc.DetachDeleteVertex(gid) }
func (m AccessorMutator) DeleteEdge(gid uint64) error         { return m.Acc.DeleteEdge(gid) }

// SetProperty sets Key on the element bound at Target (vertex or edge) to
// Value's result, evaluated under NEW so later expressions in the same
// clause see the write (spec 4.9).
type SetProperty struct {
	Input  Cursor
	Target int
	Key    string
	Value  Expression
	Mut    Mutator
}

func NewSetProperty(input Cursor, target int, key string, val Expression, mut Mutator) *SetProperty {
	return &SetProperty{Input: input, Target: target, Key: key, Value: val, Mut: mut}
}

func (s *SetProperty) Pull(ctx *ExecutionContext, frame *Frame) (bool, error) {
	ok, err := s.Input.Pull(ctx, frame)
	if err != nil || !ok {
		return false, err
	}
	target := frame.Get(s.Target)
	val, err := s.Value(&EvalContext{Acc: ctx.Acc, View: mvcc.NEW}, frame)
	if err != nil {
		return false, err
	}
	switch {
	case target.AsVertex() != nil:
		if err := s.Mut.SetVertexProperty(target.AsVertex().GID, s.Key, val); err != nil {
			return false, err
		}
	case target.AsEdge() != nil:
		if err := s.Mut.SetEdgeProperty(target.AsEdge().GID, s.Key, val); err != nil {
			return false, err
		}
	default:
		return false, &RuntimeTypeError{Detail: "SET target is neither vertex nor edge"}
	}
	return true, nil
}

func (s *SetProperty) Reset()    { s.Input.Reset() }
func (s *SetProperty) Shutdown() { s.Input.Shutdown() }

// SetPropertiesOp selects REPLACE (clear existing properties first) or
// UPDATE (merge) semantics for SetProperties.
type SetPropertiesOp int

const (
	SetPropertiesUpdate SetPropertiesOp = iota
	SetPropertiesReplace
)

// SetProperties assigns every key in Map's evaluated result onto Target,
// REPLACE first clearing every property currently on the element that Map
// doesn't also set (spec 4.9).
type SetProperties struct {
	Input  Cursor
	Target int
	Map    Expression
	Op     SetPropertiesOp
	Mut    Mutator
}

func NewSetProperties(input Cursor, target int, m Expression, op SetPropertiesOp, mut Mutator) *SetProperties {
	return &SetProperties{Input: input, Target: target, Map: m, Op: op, Mut: mut}
}

func (s *SetProperties) Pull(ctx *ExecutionContext, frame *Frame) (bool, error) {
	ok, err := s.Input.Pull(ctx, frame)
	if err != nil || !ok {
		return false, err
	}
	target := frame.Get(s.Target)
	m, err := s.Map(&EvalContext{Acc: ctx.Acc, View: mvcc.NEW}, frame)
	if err != nil {
		return false, err
	}
	if m.Kind != value.KindMap {
		return false, &RuntimeTypeError{Detail: "SET properties expression did not evaluate to a map"}
	}

	var gid uint64
	isEdge := false
	switch {
	case target.AsVertex() != nil:
		gid = target.AsVertex().GID
	case target.AsEdge() != nil:
		gid = target.AsEdge().GID
		isEdge = true
	default:
		return false, &RuntimeTypeError{Detail: "SET target is neither vertex nor edge"}
	}

	if s.Op == SetPropertiesReplace {
		existing, err := s.existingKeys(ctx, gid, isEdge)
		if err != nil {
			return false, err
		}
		for key := range existing {
			if _, keep := m.M[key]; keep {
				continue
			}
			if err := s.remove(gid, key, isEdge); err != nil {
				return false, err
			}
		}
	}
	for key, v := range m.M {
		if err := s.set(gid, key, v, isEdge); err != nil {
			return false, err
		}
	}
	return true, nil
}

func (s *SetProperties) set(gid uint64, key string, v value.Value, isEdge bool) error {
	if isEdge {
		return s.Mut.SetEdgeProperty(gid, key, v)
	}
	return s.Mut.SetVertexProperty(gid, key, v)
}

func (s *SetProperties) remove(gid uint64, key string, isEdge bool) error {
	if isEdge {
		return s.Mut.RemoveEdgeProperty(gid, key)
	}
	return s.Mut.RemoveVertexProperty(gid, key)
}

func (s *SetProperties) existingKeys(ctx *ExecutionContext, gid uint64, isEdge bool) (map[string]bool, error) {
	var keys []string
	var err error
	if isEdge {
		h, ferr := ctx.Acc.FindEdge(gid, mvcc.NEW)
		if ferr != nil {
			return nil, ferr
		}
		keys, err = h.PropertyKeys(mvcc.NEW)
	} else {
		h, ferr := ctx.Acc.FindVertex(gid, mvcc.NEW)
		if ferr != nil {
			return nil, ferr
		}
		keys, err = h.PropertyKeys(mvcc.NEW)
	}
	if err != nil {
		return nil, err
	}
	out := make(map[string]bool, len(keys))
	for _, k := range keys {
		out[k] = true
	}
	return out, nil
}

func (s *SetProperties) Reset()    { s.Input.Reset() }
func (s *SetProperties) Shutdown() { s.Input.Shutdown() }

// SetLabels adds every label in Labels to the vertex bound at Target.
type SetLabels struct {
	Input  Cursor
	Target int
	Labels []string
	Mut    Mutator
}

func NewSetLabels(input Cursor, target int, labels []string, mut Mutator) *SetLabels {
	return &SetLabels{Input: input, Target: target, Labels: labels, Mut: mut}
}

func (s *SetLabels) Pull(ctx *ExecutionContext, frame *Frame) (bool, error) {
	ok, err := s.Input.Pull(ctx, frame)
	if err != nil || !ok {
		return false, err
	}
	ref := frame.Get(s.Target).AsVertex()
	if ref == nil {
		return false, &RuntimeTypeError{Detail: "SET labels target is not a vertex"}
	}
	for _, label := range s.Labels {
		if err := s.Mut.SetVertexLabel(ref.GID, label); err != nil {
			return false, err
		}
	}
	return true, nil
}

func (s *SetLabels) Reset()    { s.Input.Reset() }
func (s *SetLabels) Shutdown() { s.Input.Shutdown() }

// RemoveProperty unsets Key on the element bound at Target.
type RemoveProperty struct {
	Input  Cursor
	Target int
	Key    string
	Mut    Mutator
}

func NewRemoveProperty(input Cursor, target int, key string, mut Mutator) *RemoveProperty {
	return &RemoveProperty{Input: input, Target: target, Key: key, Mut: mut}
}

func (r *RemoveProperty) Pull(ctx *ExecutionContext, frame *Frame) (bool, error) {
	ok, err := r.Input.Pull(ctx, frame)
	if err != nil || !ok {
		return false, err
	}
	target := frame.Get(r.Target)
	switch {
	case target.AsVertex() != nil:
		if err := r.Mut.RemoveVertexProperty(target.AsVertex().GID, r.Key); err != nil {
			return false, err
		}
	case target.AsEdge() != nil:
		if err := r.Mut.RemoveEdgeProperty(target.AsEdge().GID, r.Key); err != nil {
			return false, err
		}
	default:
		return false, &RuntimeTypeError{Detail: "REMOVE target is neither vertex nor edge"}
	}
	return true, nil
}

func (r *RemoveProperty) Reset()    { r.Input.Reset() }
func (r *RemoveProperty) Shutdown() { r.Input.Shutdown() }

// RemoveLabels removes every label in Labels from the vertex bound at
// Target.
type RemoveLabels struct {
	Input  Cursor
	Target int
	Labels []string
	Mut    Mutator
}

func NewRemoveLabels(input Cursor, target int, labels []string, mut Mutator) *RemoveLabels {
	return &RemoveLabels{Input: input, Target: target, Labels: labels, Mut: mut}
}

func (r *RemoveLabels) Pull(ctx *ExecutionContext, frame *Frame) (bool, error) {
	ok, err := r.Input.Pull(ctx, frame)
	if err != nil || !ok {
		return false, err
	}
	ref := frame.Get(r.Target).AsVertex()
	if ref == nil {
		return false, &RuntimeTypeError{Detail: "REMOVE labels target is not a vertex"}
	}
	for _, label := range r.Labels {
		if err := r.Mut.RemoveVertexLabel(ref.GID, label); err != nil {
			return false, err
		}
	}
	return true, nil
}

func (r *RemoveLabels) Reset()    { r.Input.Reset() }
func (r *RemoveLabels) Shutdown() { r.Input.Shutdown() }

// Delete removes the vertex or edge bound at Target; Detach selects
// DetachDeleteVertex over DeleteVertex for vertex targets (spec 4.9).
type Delete struct {
	Input  Cursor
	Target int
	Detach bool
	Mut    Mutator
}

func NewDelete(input Cursor, target int, detach bool, mut Mutator) *Delete {
	return &Delete{Input: input, Target: target, Detach: detach, Mut: mut}
}

func (d *Delete) Pull(ctx *ExecutionContext, frame *Frame) (bool, error) {
	ok, err := d.Input.Pull(ctx, frame)
	if err != nil || !ok {
		return false, err
	}
	target := frame.Get(d.Target)
	switch {
	case target.AsVertex() != nil:
		gid := target.AsVertex().GID
		if d.Detach {
			if err := d.Mut.DetachDeleteVertex(gid); err != nil {
				return false, err
			}
		} else if err := d.Mut.DeleteVertex(gid); err != nil {
			return false, err
		}
	case target.AsEdge() != nil:
		if err := d.Mut.DeleteEdge(target.AsEdge().GID); err != nil {
			return false, err
		}
	default:
		return false, &RuntimeTypeError{Detail: "DELETE target is neither vertex nor edge"}
	}
	return true, nil
}

func (d *Delete) Reset()    { d.Input.Reset() }
func (d *Delete) Shutdown() { d.Input.Shutdown() }

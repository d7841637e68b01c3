package storage

import (
	"fmt"
	"sync"

	"github.com/arborgraph/arbor/pkg/mvcc"
	"github.com/arborgraph/arbor/pkg/value"
)

// uniquenessConstraint enforces that no two vertices carrying label may
// share the same value for key, generalized (per SPEC_FULL 4.5) from the
// teacher's SchemaManager/constraint_validation.go into an in-memory check
// run at commit time rather than at Badger transaction scope.
type uniquenessConstraint struct {
	Label NameID
	Key   NameID
}

// existenceConstraint enforces that every vertex carrying label must have
// a value for key at commit.
type existenceConstraint struct {
	Label NameID
	Key   NameID
}

// Schema holds the DDL-managed constraint set for one Graph. Index
// definitions live alongside labelIdx/propIdx on Graph itself; Schema only
// tracks constraints, which need a distinct commit-time check rather than
// a populated-on-write structure.
type Schema struct {
	mu         sync.RWMutex
	uniqueness map[uniquenessConstraint]struct{}
	existence  map[existenceConstraint]struct{}
}

func newSchema() *Schema {
	return &Schema{
		uniqueness: make(map[uniquenessConstraint]struct{}),
		existence:  make(map[existenceConstraint]struct{}),
	}
}

// CreateUniquenessConstraint registers label+key as unique going forward.
func (s *Schema) CreateUniquenessConstraint(label, key NameID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uniqueness[uniquenessConstraint{label, key}] = struct{}{}
}

// DropUniquenessConstraint removes a previously registered constraint.
func (s *Schema) DropUniquenessConstraint(label, key NameID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.uniqueness, uniquenessConstraint{label, key})
}

// CreateExistenceConstraint registers label+key as required going forward.
func (s *Schema) CreateExistenceConstraint(label, key NameID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.existence[existenceConstraint{label, key}] = struct{}{}
}

// DropExistenceConstraint removes a previously registered constraint.
func (s *Schema) DropExistenceConstraint(label, key NameID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.existence, existenceConstraint{label, key})
}

// CheckCommit validates every registered constraint against the graph as
// of the committing transaction's own writes (view NEW), returning the
// first violation found. Called by the accessor layer immediately before
// calling txn.Engine.Commit.
func (s *Schema) CheckCommit(g *Graph, writtenVertices []uint64) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for ec := range s.existence {
		labelName := g.Labels.Name(ec.Label)
		keyName := g.PropertyKeys.Name(ec.Key)
		for _, gid := range writtenVertices {
			v := g.Vertex(gid)
			if v == nil || !vertexHasLabel(v, labelName) {
				continue
			}
			if !vertexHasProperty(v, keyName) {
				return &ConstraintViolationError{Kind: "existence", Label: labelName, Keys: []string{keyName}}
			}
		}
	}

	for uc := range s.uniqueness {
		labelName := g.Labels.Name(uc.Label)
		keyName := g.PropertyKeys.Name(uc.Key)
		seen := make(map[string]uint64)
		check := func(gid uint64) error {
			v := g.Vertex(gid)
			if v == nil || !vertexHasLabel(v, labelName) {
				return nil
			}
			val, ok := vertexPropertyValue(v, keyName)
			if !ok {
				return nil
			}
			sig := val.Kind.String() + ":" + valueSignature(val)
			if other, dup := seen[sig]; dup && other != gid {
				return &ConstraintViolationError{Kind: "uniqueness", Label: labelName, Keys: []string{keyName}}
			}
			seen[sig] = gid
			return nil
		}
		if pi := g.PropertyIndexFor(uc.Label, uc.Key); pi != nil {
			for _, gid := range pi.All() {
				if err := check(gid); err != nil {
					return err
				}
			}
		} else {
			var violation error
			g.RangeVertices(func(v *Vertex) bool {
				if err := check(v.GID); err != nil {
					violation = err
					return false
				}
				return true
			})
			if violation != nil {
				return violation
			}
		}
	}
	return nil
}

func vertexHasLabel(v *Vertex, label string) bool {
	labels := map[string]bool{}
	for d := v.Versions.Head(); d != nil; d = d.Prev {
		switch d.Op {
		case mvcc.OpSetVertexLabel:
			lp := d.Payload.(*mvcc.LabelPayload)
			if _, seen := labels[lp.Label]; !seen {
				labels[lp.Label] = true
			}
		case mvcc.OpRemoveVertexLabel:
			lp := d.Payload.(*mvcc.LabelPayload)
			if _, seen := labels[lp.Label]; !seen {
				labels[lp.Label] = false
			}
		}
	}
	return labels[label]
}

func vertexHasProperty(v *Vertex, key string) bool {
	_, ok := vertexPropertyValue(v, key)
	return ok
}

func vertexPropertyValue(v *Vertex, key string) (value.Value, bool) {
	for d := v.Versions.Head(); d != nil; d = d.Prev {
		switch d.Op {
		case mvcc.OpSetProperty:
			pp := d.Payload.(*mvcc.PropertyPayload)
			if pp.Key == key {
				val, _ := pp.Value.(value.Value)
				return val, true
			}
		case mvcc.OpRemoveProperty:
			pp := d.Payload.(*mvcc.PropertyPayload)
			if pp.Key == key {
				return value.Value{}, false
			}
		}
	}
	return value.Value{}, false
}

// valueSignature produces a comparable string for uniqueness bucketing;
// it only needs to distinguish values, not to be human-readable.
func valueSignature(v value.Value) string {
	switch v.Kind {
	case value.KindString:
		return v.S
	case value.KindInt:
		return fmt.Sprintf("i:%d", v.I)
	default:
		f, _ := v.AsFloat64()
		return fmt.Sprintf("f:%v", f)
	}
}

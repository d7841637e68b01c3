package storage

import (
	"sync"

	"github.com/tidwall/btree"

	"github.com/arborgraph/arbor/pkg/mvcc"
	"github.com/arborgraph/arbor/pkg/value"
)

// propertyIndexKey orders entries by (labelID, propKeyID, Value, gid), per
// spec 4.6. Value ordering follows value.Compare's numeric/string subset;
// keys whose Value is unordered against each other fall back to comparing
// their kind, which is enough to keep the btree a total order without
// claiming a semantic ordering the language itself doesn't define.
type propertyIndexKey struct {
	Label NameID
	Key   NameID
	Val   value.Value
	GID   uint64
}

func comparePropertyIndexKey(a, b propertyIndexKey) int {
	if a.Label != b.Label {
		return int(a.Label) - int(b.Label)
	}
	if a.Key != b.Key {
		return int(a.Key) - int(b.Key)
	}
	if ord, ok := value.Compare(a.Val, b.Val); ok {
		return int(ord)
	}
	if a.Val.Kind != b.Val.Kind {
		return int(a.Val.Kind) - int(b.Val.Kind)
	}
	if a.GID < b.GID {
		return -1
	}
	if a.GID > b.GID {
		return 1
	}
	return 0
}

// PropertyIndex is an ordered (label, propertyKey, value) -> vertex-id
// range index backed by a B-tree, supporting both equality lookups and
// range scans (spec 4.6, ScanAllByLabelPropertyRange/Value).
type PropertyIndex struct {
	mu   sync.RWMutex
	tree *btree.BTreeG[propertyIndexKey]
}

// NewPropertyIndex creates an empty property index for one (label,
// propertyKey) pair.
func NewPropertyIndex() *PropertyIndex {
	return &PropertyIndex{tree: btree.NewBTreeG(func(a, b propertyIndexKey) bool {
		return comparePropertyIndexKey(a, b) < 0
	})}
}

// Insert speculatively adds an entry for gid's current value of the
// indexed property. Null and List/Map values are never inserted (spec
// 4.6): callers (the write path) must check value.IsNull/IsContainer
// before calling Insert, but Insert also guards defensively.
func (pi *PropertyIndex) Insert(label, key NameID, v value.Value, gid uint64) {
	if v.IsNull() || v.IsContainer() {
		return
	}
	pi.mu.Lock()
	defer pi.mu.Unlock()
	pi.tree.Set(propertyIndexKey{Label: label, Key: key, Val: v, GID: gid})
}

// Remove drops a specific (value, gid) entry. Not called on ordinary
// property mutation: entries are inserted speculatively on write and never
// pruned when a later write supersedes them or a transaction aborts, the
// same policy LabelIndex follows. Callers must re-read the vertex's current
// value for the key (accessor.vertexVisibleWithProperty does this) before
// trusting a scan hit, since a stale entry's value may no longer match.
func (pi *PropertyIndex) Remove(label, key NameID, v value.Value, gid uint64) {
	pi.mu.Lock()
	defer pi.mu.Unlock()
	pi.tree.Delete(propertyIndexKey{Label: label, Key: key, Val: v, GID: gid})
}

// ScanEqual returns every gid indexed under exactly v.
func (pi *PropertyIndex) ScanEqual(label, key NameID, v value.Value) []uint64 {
	lo := propertyIndexKey{Label: label, Key: key, Val: v, GID: 0}
	hi := propertyIndexKey{Label: label, Key: key, Val: v, GID: ^uint64(0)}
	return pi.scanRange(lo, hi)
}

// ScanRange returns every gid indexed under a value v such that lo <= v <=
// hi (per value.Compare's ordering), used by ScanAllByLabelPropertyRange.
func (pi *PropertyIndex) ScanRange(label, key NameID, lo, hi value.Value) []uint64 {
	loKey := propertyIndexKey{Label: label, Key: key, Val: lo, GID: 0}
	hiKey := propertyIndexKey{Label: label, Key: key, Val: hi, GID: ^uint64(0)}
	return pi.scanRange(loKey, hiKey)
}

func (pi *PropertyIndex) scanRange(lo, hi propertyIndexKey) []uint64 {
	pi.mu.RLock()
	defer pi.mu.RUnlock()
	var out []uint64
	pi.tree.Ascend(lo, func(k propertyIndexKey) bool {
		if comparePropertyIndexKey(k, hi) > 0 {
			return false
		}
		out = append(out, k.GID)
		return true
	})
	return out
}

// All returns every gid in property-value order, used by ScanAllByLabel
// when a consumer wants to reuse the index for a sorted scan.
func (pi *PropertyIndex) All() []uint64 {
	pi.mu.RLock()
	defer pi.mu.RUnlock()
	var out []uint64
	pi.tree.Scan(func(k propertyIndexKey) bool {
		out = append(out, k.GID)
		return true
	})
	return out
}

// propertyIndex returns (creating if absent) the PropertyIndex for
// (label, key).
func (g *Graph) propertyIndex(label, key NameID) *PropertyIndex {
	id := propIndexID{Label: label, Key: key}
	g.schemaMu.Lock()
	defer g.schemaMu.Unlock()
	pi, ok := g.propIdx[id]
	if !ok {
		pi = NewPropertyIndex()
		g.propIdx[id] = pi
	}
	return pi
}

// PropertyIndexFor returns the PropertyIndex for (label, key) if one
// exists, or nil.
func (g *Graph) PropertyIndexFor(label, key NameID) *PropertyIndex {
	g.schemaMu.RLock()
	defer g.schemaMu.RUnlock()
	return g.propIdx[propIndexID{Label: label, Key: key}]
}

// CreatePropertyIndex ensures a (label, key) index exists and backfills it
// from every currently allocated vertex carrying a value for key (spec
// 4.5 CreateIndex DDL).
func (g *Graph) CreatePropertyIndex(label, key NameID) *PropertyIndex {
	pi := g.propertyIndex(label, key)
	keyName := g.PropertyKeys.Name(key)
	g.RangeVertices(func(v *Vertex) bool {
		for d := v.Versions.Head(); d != nil; d = d.Prev {
			if d.Op != mvcc.OpSetProperty {
				continue
			}
			pp, ok := d.Payload.(*mvcc.PropertyPayload)
			if !ok || pp.Key != keyName {
				continue
			}
			if val, ok := pp.Value.(value.Value); ok {
				pi.Insert(label, key, val, v.GID)
			}
			break
		}
		return true
	})
	return pi
}

// DropPropertyIndex removes the index for (label, key) entirely.
func (g *Graph) DropPropertyIndex(label, key NameID) {
	g.schemaMu.Lock()
	defer g.schemaMu.Unlock()
	delete(g.propIdx, propIndexID{Label: label, Key: key})
}

package storage

import "sync"

// NameID is a stable small integer assigned to an interned label,
// edge-type, or property-key name. Spec 4.4: "process-wide; never removed".
type NameID int32

// Interner is a concurrent, append-only two-way name<->id map. A single
// Graph owns three independent Interners (labels, edge-types, property
// keys), matching spec 3's "Label / EdgeType / PropertyKey" entity row.
type Interner struct {
	mu      sync.RWMutex
	byName  map[string]NameID
	byID    []string
}

// NewInterner creates an empty interner.
func NewInterner() *Interner {
	return &Interner{byName: make(map[string]NameID)}
}

// Intern returns the stable id for name, assigning a fresh one if name has
// not been seen before. Ids are never reused or removed.
func (it *Interner) Intern(name string) NameID {
	it.mu.RLock()
	if id, ok := it.byName[name]; ok {
		it.mu.RUnlock()
		return id
	}
	it.mu.RUnlock()

	it.mu.Lock()
	defer it.mu.Unlock()
	// Re-check under the write lock: another goroutine may have interned
	// the same name between the RUnlock above and this Lock.
	if id, ok := it.byName[name]; ok {
		return id
	}
	id := NameID(len(it.byID))
	it.byName[name] = id
	it.byID = append(it.byID, name)
	return id
}

// Lookup returns the id already assigned to name, if any, without
// assigning a new one.
func (it *Interner) Lookup(name string) (NameID, bool) {
	it.mu.RLock()
	defer it.mu.RUnlock()
	id, ok := it.byName[name]
	return id, ok
}

// Name returns the name previously interned under id, or "" if id is out
// of range.
func (it *Interner) Name(id NameID) string {
	it.mu.RLock()
	defer it.mu.RUnlock()
	if int(id) < 0 || int(id) >= len(it.byID) {
		return ""
	}
	return it.byID[id]
}

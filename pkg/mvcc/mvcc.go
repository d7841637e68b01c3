// Package mvcc implements the per-object version chain described in spec
// section 4.2: each vertex or edge owns a chain of deltas, newest first,
// and a reader walks from head toward the tail applying the visibility
// rule until it finds (or fails to find) a version it may observe.
package mvcc

import (
	"sync"

	"github.com/arborgraph/arbor/pkg/txn"
)

// View selects pre-command (OLD) or post-write (NEW) read visibility, per
// the glossary entry "View".
type View int

const (
	OLD View = iota
	NEW
)

// DeltaOp identifies the kind of mutation a Delta records. The vocabulary
// is shared with pkg/durability's WAL record types (spec 4.7) and
// pkg/replication's wire vocabulary (spec 4.8) — a delta IS the one unit
// that drives in-memory visibility, gets appended to the WAL, and gets
// streamed to replicas, per the Design Notes' "ordered sequence of deltas".
type DeltaOp uint8

const (
	OpCreateVertex DeltaOp = iota
	OpDeleteVertex
	OpSetVertexLabel
	OpRemoveVertexLabel
	OpCreateEdge
	OpDeleteEdge
	OpSetProperty
	OpRemoveProperty
)

func (op DeltaOp) String() string {
	switch op {
	case OpCreateVertex:
		return "CreateVertex"
	case OpDeleteVertex:
		return "DeleteVertex"
	case OpSetVertexLabel:
		return "SetVertexLabel"
	case OpRemoveVertexLabel:
		return "RemoveVertexLabel"
	case OpCreateEdge:
		return "CreateEdge"
	case OpDeleteEdge:
		return "DeleteEdge"
	case OpSetProperty:
		return "SetProperty"
	case OpRemoveProperty:
		return "RemoveProperty"
	default:
		return "Unknown"
	}
}

// Delta is one logical mutation appended to a version chain's head. It
// carries enough to both drive MVCC visibility (Creator, Deletor, Command
// counters) and to be replayed verbatim onto the WAL/replication stream.
type Delta struct {
	Op      DeltaOp
	Payload any // e.g. *PropertyPayload, *LabelPayload, *EdgePayload

	Creator        *txn.Transaction
	CreatedAtCmd   uint32 // creator's command counter when this delta was appended
	Deletor        *txn.Transaction
	DeletedAtCmd   uint32

	Prev *Delta
}

// PropertyPayload is the Delta.Payload for OpSetProperty/OpRemoveProperty.
type PropertyPayload struct {
	Key   string
	Value any // value.Value, kept as `any` here to avoid an import cycle
}

// LabelPayload is the Delta.Payload for OpSetVertexLabel/OpRemoveVertexLabel.
type LabelPayload struct {
	Label string
}

// EdgePayload is the Delta.Payload for OpCreateEdge/OpDeleteEdge.
type EdgePayload struct {
	EdgeGID  uint64
	FromGID  uint64
	ToGID    uint64
	EdgeType string
}

// VersionList is the MVCC chain owned by a single vertex or edge. The head
// is the newest delta; Prev pointers walk backward toward creation.
type VersionList struct {
	mu   sync.RWMutex
	head *Delta
}

// NewVersionList creates an empty chain; the first Append establishes the
// object's creation delta.
func NewVersionList() *VersionList {
	return &VersionList{}
}

// Append pushes a new delta onto the head of the chain, on behalf of
// creator at its current command counter. Callers must have already
// claimed the write-head via txn.Engine.ClaimWrite before calling Append.
func (vl *VersionList) Append(op DeltaOp, payload any, creator *txn.Transaction) *Delta {
	vl.mu.Lock()
	defer vl.mu.Unlock()

	d := &Delta{
		Op:           op,
		Payload:      payload,
		Creator:      creator,
		CreatedAtCmd: creator.CommandCounter(),
		Prev:         vl.head,
	}
	vl.head = d
	return d
}

// MarkDeleted sets a deletor stamp on the current head, per spec 4.2
// ("deletions set a deletor-id on the head"). It does not push a new delta;
// deletion is a property of the existing head.
func (vl *VersionList) MarkDeleted(deletor *txn.Transaction) {
	vl.mu.Lock()
	defer vl.mu.Unlock()
	if vl.head == nil {
		return
	}
	vl.head.Deletor = deletor
	vl.head.DeletedAtCmd = deletor.CommandCounter()
}

// Head returns the current head delta without applying visibility.
func (vl *VersionList) Head() *Delta {
	vl.mu.RLock()
	defer vl.mu.RUnlock()
	return vl.head
}

// Visible walks the chain from head toward tail and returns the newest
// delta visible to reader under view, or nil if the object is invisible
// (spec 4.2: "Returns null if the entity is invisible").
//
// The walk skips heads whose creator is aborted, or uncommitted from the
// reader's perspective (unless the reader is the creator itself under NEW,
// or under OLD once AdvanceCommand has moved the reader's command counter
// past the delta's creation command). It stops at the first version whose
// creator is visible-committed and whose deletor (if any) is not.
func (vl *VersionList) Visible(reader *txn.Transaction, view View) *Delta {
	vl.mu.RLock()
	defer vl.mu.RUnlock()

	for d := vl.head; d != nil; d = d.Prev {
		if !stampVisible(d.Creator, d.CreatedAtCmd, reader, view) {
			continue
		}
		if d.Deletor != nil && stampVisible(d.Deletor, d.DeletedAtCmd, reader, view) {
			// Deleted as of this view; the object has no visible version.
			return nil
		}
		return d
	}
	return nil
}

// StampVisible is the exported form of stampVisible, used by pkg/accessor
// to fold visibility over every delta in a chain (not just the head) when
// reconstructing multi-valued state like a vertex's current label set.
func StampVisible(actor *txn.Transaction, atCmd uint32, reader *txn.Transaction, view View) bool {
	return stampVisible(actor, atCmd, reader, view)
}

// stampVisible decides whether a single creator/deletor stamp is visible
// to reader under view, per spec 4.2's visibility rule and the glossary's
// OLD/NEW View semantics.
func stampVisible(actor *txn.Transaction, atCmd uint32, reader *txn.Transaction, view View) bool {
	if actor == nil {
		return false
	}
	if actor.State() == txn.Aborted {
		return false
	}
	if actor == reader {
		if view == NEW {
			return true
		}
		// OLD: the actor's own write is visible to itself only once its
		// command counter has advanced past the command the write was
		// made under.
		return reader.CommandCounter() > atCmd
	}
	if actor.State() != txn.Committed {
		return false
	}
	if reader.Active.Contains(actor.ID) {
		return false
	}
	return actor.CommitStamp() <= reader.Active.AsOf()
}

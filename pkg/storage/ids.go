// Package storage implements the storage core (spec 4.4): concurrent
// vertex/edge containers keyed by global id, label/edge-type/property-name
// interning, and the label and label+property indexes (spec 4.6).
package storage

import (
	"encoding/binary"
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
)

// VertexID and EdgeID are global ids assigned at creation (spec 3,
// "Global ids are monotonically increasing within a worker"). Both embed a
// worker component so ids never collide across workers without
// coordination, and a sequence component recovery advances past (I5).
type VertexID uint64
type EdgeID uint64

const workerShift = 40 // low 40 bits: per-worker sequence; high 24 bits: worker id

// packID combines a worker id and sequence number into a single global id.
func packID(workerID uint32, seq uint64) uint64 {
	return uint64(workerID)<<workerShift | (seq & ((1 << workerShift) - 1))
}

// SeqOf extracts the per-worker sequence component of a packed id.
func SeqOf(id uint64) uint64 { return id & ((1 << workerShift) - 1) }

// WorkerOf extracts the worker component of a packed id.
func WorkerOf(id uint64) uint32 { return uint32(id >> workerShift) }

// idGenerator issues monotonically increasing ids for one worker, retrying
// a bounded number of times against a predicate-checked collision (spec
// 4.4, "retry a bounded number of times on id collision").
type idGenerator struct {
	workerID uint32
	seq      atomic.Uint64
}

// maxIDRetries bounds the number of collision retries before a creation is
// abandoned as CreationFailure (spec 4.4 / error taxonomy CreationFailure).
const maxIDRetries = 8

// newIDGenerator derives a worker id from a fresh random UUID's low bits,
// matching the teacher's UUID-seeded node-id idiom while fitting the
// packed-id scheme this engine's recovery logic depends on.
func newIDGenerator() *idGenerator {
	u := uuid.New()
	workerID := binary.BigEndian.Uint32(u[:4]) & 0x00FFFFFF
	return &idGenerator{workerID: workerID}
}

// ErrCreationFailure is returned when id allocation could not find a free
// slot after maxIDRetries attempts.
var ErrCreationFailure = fmt.Errorf("storage: creation failed: exhausted id allocation retries")

// next allocates a candidate id; the caller is responsible for retrying
// against its own collision check (see Graph.AllocateVertexID/AllocateEdgeID).
func (g *idGenerator) next() uint64 {
	seq := g.seq.Add(1)
	return packID(g.workerID, seq)
}

// ensureNextGreater advances the sequence counter past the sequence
// component of id, used during recovery (spec 4.7 step 3 / I5).
func (g *idGenerator) ensureNextGreater(id uint64) {
	seq := SeqOf(id)
	for {
		cur := g.seq.Load()
		if cur >= seq {
			return
		}
		if g.seq.CompareAndSwap(cur, seq) {
			return
		}
	}
}

package engine

import (
	"fmt"

	"github.com/arborgraph/arbor/pkg/accessor"
	"github.com/arborgraph/arbor/pkg/durability"
	"github.com/arborgraph/arbor/pkg/mvcc"
	"github.com/arborgraph/arbor/pkg/storage"
	"github.com/arborgraph/arbor/pkg/value"
)

// bufferedOp is one mutation recorded against a Session, kept as its
// original payload struct rather than pre-encoded bytes: flushWAL hands it
// straight to durability.Writer.Append (which does its own msgpack
// encoding inside the on-disk CRC frame), while walRecords separately
// msgpack-encodes it for Broadcast's in-memory Record shape.
type bufferedOp struct {
	rt      durability.RecordType
	payload any
}

// Session is a write transaction: an accessor.Accessor with a durability
// and replication layer wrapped around it (spec 4.5/4.7/4.8 meeting
// point). Every mutating call also buffers the equivalent WAL record;
// Commit flushes TxnBegin..deltas..TxnCommit to the WAL writer and, on a
// Main, streams the same sequence to every registered replica.
type Session struct {
	e   *Engine
	a   *accessor.Accessor
	txn uint64

	ops []bufferedOp
}

// BeginWrite starts a new write transaction against the engine's graph.
func (e *Engine) BeginWrite() *Session {
	a := accessor.New(e.g)
	return &Session{e: e, a: a, txn: uint64(a.Txn.ID)}
}

// Accessor exposes the underlying accessor for read-only operator use
// within the same transaction (pkg/operators calls through this, never
// pkg/engine directly, per spec 4.5).
func (s *Session) Accessor() *accessor.Accessor { return s.a }

func (s *Session) buffer(rt durability.RecordType, payload any) error {
	s.ops = append(s.ops, bufferedOp{rt: rt, payload: payload})
	return nil
}

// CreateVertex creates a vertex and records its RecCreateVertex delta.
func (s *Session) CreateVertex() (*accessor.VertexHandle, error) {
	h, err := s.a.CreateVertex()
	if err != nil {
		return nil, err
	}
	if err := s.buffer(durability.RecCreateVertex, durability.CreateVertexPayload{GID: h.GID()}); err != nil {
		return nil, err
	}
	return h, nil
}

// SetVertexLabel sets label on the vertex identified by gid.
func (s *Session) SetVertexLabel(gid uint64, label string) error {
	h, err := s.a.FindVertex(gid, mvcc.NEW)
	if err != nil {
		return err
	}
	if err := h.SetLabel(label); err != nil {
		return err
	}
	return s.buffer(durability.RecSetVertexLabel, durability.LabelPayload{GID: gid, Label: label})
}

// RemoveVertexLabel removes label from the vertex identified by gid.
func (s *Session) RemoveVertexLabel(gid uint64, label string) error {
	h, err := s.a.FindVertex(gid, mvcc.NEW)
	if err != nil {
		return err
	}
	if err := h.RemoveLabel(label); err != nil {
		return err
	}
	return s.buffer(durability.RecRemoveVertexLabel, durability.LabelPayload{GID: gid, Label: label})
}

// SetVertexProperty sets key=val on the vertex identified by gid.
func (s *Session) SetVertexProperty(gid uint64, key string, val value.Value) error {
	h, err := s.a.FindVertex(gid, mvcc.NEW)
	if err != nil {
		return err
	}
	if err := h.SetProperty(key, val); err != nil {
		return err
	}
	payload, err := durability.NewPropertySetPayload(gid, false, key, val)
	if err != nil {
		return err
	}
	return s.buffer(durability.RecSetProperty, payload)
}

// RemoveVertexProperty unsets key on the vertex identified by gid.
func (s *Session) RemoveVertexProperty(gid uint64, key string) error {
	h, err := s.a.FindVertex(gid, mvcc.NEW)
	if err != nil {
		return err
	}
	if err := h.RemoveProperty(key); err != nil {
		return err
	}
	return s.buffer(durability.RecRemoveProperty, durability.PropertyPayload{ElementGID: gid, Key: key})
}

// CreateEdge creates an edge from->to of the named type.
func (s *Session) CreateEdge(from, to uint64, edgeType string) (*accessor.EdgeHandle, error) {
	typeID := s.e.g.EdgeTypes.Intern(edgeType)
	h, err := s.a.CreateEdge(from, to, typeID)
	if err != nil {
		return nil, err
	}
	if err := s.buffer(durability.RecCreateEdge, durability.CreateEdgePayload{GID: h.GID(), From: from, To: to, EdgeType: edgeType}); err != nil {
		return nil, err
	}
	return h, nil
}

// SetEdgeProperty sets key=val on the edge identified by gid.
func (s *Session) SetEdgeProperty(gid uint64, key string, val value.Value) error {
	h, err := s.a.FindEdge(gid, mvcc.NEW)
	if err != nil {
		return err
	}
	if err := h.SetProperty(key, val); err != nil {
		return err
	}
	payload, err := durability.NewPropertySetPayload(gid, true, key, val)
	if err != nil {
		return err
	}
	return s.buffer(durability.RecSetProperty, payload)
}

// RemoveEdgeProperty unsets key on the edge identified by gid.
func (s *Session) RemoveEdgeProperty(gid uint64, key string) error {
	h, err := s.a.FindEdge(gid, mvcc.NEW)
	if err != nil {
		return err
	}
	if err := h.RemoveProperty(key); err != nil {
		return err
	}
	return s.buffer(durability.RecRemoveProperty, durability.PropertyPayload{ElementGID: gid, IsEdge: true, Key: key})
}

// DeleteEdge deletes the edge identified by gid.
func (s *Session) DeleteEdge(gid uint64) error {
	if err := s.a.DeleteEdge(gid); err != nil {
		return err
	}
	return s.buffer(durability.RecDeleteEdge, durability.DeleteEdgePayload{GID: gid})
}

// DeleteVertex deletes the vertex identified by gid (spec I6: fails unless
// it has no incident edges).
func (s *Session) DeleteVertex(gid uint64) error {
	if err := s.a.DeleteVertex(gid); err != nil {
		return err
	}
	return s.buffer(durability.RecDeleteVertex, durability.DeleteVertexPayload{GID: gid})
}

// DetachDeleteVertex deletes gid and every incident edge in the same
// transaction, recording a delta for each edge removed plus the vertex.
func (s *Session) DetachDeleteVertex(gid uint64) error {
	v := s.e.g.Vertex(gid)
	if v == nil {
		return storage.ErrNonexistentObject
	}
	var incident []uint64
	for _, e := range append(v.OutEdges(), v.InEdges()...) {
		if _, d := s.e.g.VisibleEdge(e.GID, s.a.Txn, mvcc.NEW); d != nil {
			incident = append(incident, e.GID)
		}
	}
	if err := s.a.DetachDeleteVertex(gid); err != nil {
		return err
	}
	for _, eg := range incident {
		if err := s.buffer(durability.RecDeleteEdge, durability.DeleteEdgePayload{GID: eg}); err != nil {
			return err
		}
	}
	return s.buffer(durability.RecDeleteVertex, durability.DeleteVertexPayload{GID: gid})
}

// Commit flushes TxnBegin..deltas..TxnCommit to the WAL, then — on a Main
// — streams the same sequence to every registered replica before
// returning. A SYNC replica's ack failure (ErrReplicaTimeout) is returned
// to the caller exactly as spec 8 describes, even though the local commit
// has already succeeded; the caller decides whether to surface that as a
// user-visible failure.
func (s *Session) Commit() (uint64, error) {
	stamp, err := s.a.Commit()
	if err != nil {
		return 0, err
	}

	if err := s.flushWAL(); err != nil {
		return stamp, fmt.Errorf("engine: wal flush after commit: %w", err)
	}

	if s.e.main != nil {
		records, err := s.walRecords()
		if err != nil {
			return stamp, fmt.Errorf("engine: encode records for broadcast: %w", err)
		}
		if err := s.e.main.Broadcast(s.txn, records); err != nil {
			return stamp, err
		}
	}
	return stamp, nil
}

// Abort discards the transaction without writing anything durable.
func (s *Session) Abort() {
	s.a.Abort()
}

// walRecords builds the in-memory Record sequence Broadcast streams to
// replicas, encoding each buffered op's payload exactly once via
// durability.NewRecord — independent of whatever flushWAL already wrote to
// the WAL file.
func (s *Session) walRecords() ([]durability.Record, error) {
	out := make([]durability.Record, 0, len(s.ops)+2)
	out = append(out, durability.Record{Type: durability.RecTxnBegin, TxnID: s.txn})
	for _, op := range s.ops {
		rec, err := durability.NewRecord(op.rt, s.txn, op.payload)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	out = append(out, durability.Record{Type: durability.RecTxnCommit, TxnID: s.txn})
	return out, nil
}

func (s *Session) flushWAL() error {
	if err := s.e.wal.Append(durability.RecTxnBegin, s.txn, struct{}{}); err != nil {
		return err
	}
	for _, op := range s.ops {
		if err := s.e.wal.Append(op.rt, s.txn, op.payload); err != nil {
			return err
		}
	}
	return s.e.wal.Append(durability.RecTxnCommit, s.txn, struct{}{})
}

package replication

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/arborgraph/arbor/pkg/durability"
	"github.com/arborgraph/arbor/pkg/storage"
)

// ReplicaClient is the Replica-role side of spec 4.8: it dials a Main,
// performs the Hello/Ok handshake, applies whichever catch-up the Main
// selected, and then applies every subsequently streamed transaction to
// its local graph, acking each one back.
type ReplicaClient struct {
	nodeID string
	epoch  uint64
	cfg    Config
	g      *storage.Graph
	dir    string // data dir, for writing a catch-up snapshot file
	logger *log.Logger

	conn *Conn

	state       atomic.Value // State
	lastApplied atomic.Uint64
}

// NewReplicaClient creates a replica client bound to g, the graph it will
// apply every replicated mutation into.
func NewReplicaClient(nodeID string, epoch uint64, dataDir string, g *storage.Graph, cfg Config, logger *log.Logger) *ReplicaClient {
	if logger == nil {
		logger = log.New(os.Stderr, "replication: ", log.LstdFlags)
	}
	cfg.NodeID = nodeID
	r := &ReplicaClient{
		nodeID: nodeID,
		epoch:  epoch,
		cfg:    cfg.withDefaults(),
		g:      g,
		dir:    dataDir,
		logger: logger,
	}
	r.state.Store(StateRecovery)
	return r
}

// State reports the replica's current lifecycle state.
func (r *ReplicaClient) State() State { return r.state.Load().(State) }

// LastAppliedTxn reports the highest transaction id applied so far.
func (r *ReplicaClient) LastAppliedTxn() uint64 { return r.lastApplied.Load() }

// Connect dials addr, performs the handshake, applies catch-up, and begins
// the live-streaming loop, blocking until the connection is lost. Callers
// typically run it in a goroutine and reconnect on return.
func (r *ReplicaClient) Connect(addr string, mode Mode, ackTimeout time.Duration) error {
	conn, err := Dial(addr, r.cfg)
	if err != nil {
		return err
	}
	r.conn = conn

	hello := HelloRequest{
		NodeID:         r.nodeID,
		Epoch:          r.epoch,
		LastDurableTxn: r.lastApplied.Load(),
		Mode:           mode,
		AckTimeout:     ackTimeout,
	}
	payload, err := encodeGob(hello)
	if err != nil {
		conn.Close()
		return err
	}
	if err := conn.Send(&Message{Type: MsgHello, Epoch: r.epoch, Payload: payload}); err != nil {
		conn.Close()
		return err
	}

	ack, err := conn.Receive()
	if err != nil {
		conn.Close()
		return fmt.Errorf("replication: read hello ack: %w", err)
	}
	if ack.Type != MsgHelloAck {
		conn.Close()
		return fmt.Errorf("replication: expected HelloAck, got %s", ack.Type)
	}
	var resp HelloResponse
	if err := decodeGob(ack.Payload, &resp); err != nil {
		conn.Close()
		return err
	}
	if !resp.Accepted {
		conn.Close()
		return fmt.Errorf("replication: main rejected hello: %s", resp.Reason)
	}
	r.epoch = resp.Epoch

	if resp.ExpectedMode == CatchupSnapshot {
		if err := r.receiveSnapshot(conn); err != nil {
			conn.Close()
			return fmt.Errorf("replication: snapshot catch-up: %w", err)
		}
	}

	r.state.Store(StateReplicating)
	return r.streamLoop(conn)
}

func (r *ReplicaClient) receiveSnapshot(conn *Conn) error {
	msg, err := conn.Receive()
	if err != nil {
		return err
	}
	if msg.Type == MsgCatchupSnapshotDone {
		return nil // Main had nothing to ship; start clean.
	}
	if msg.Type != MsgSnapshotStart {
		return fmt.Errorf("replication: expected SnapshotStart, got %s", msg.Type)
	}

	path := filepath.Join(r.dir, "snapshots", "catchup.snap.tmp")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer os.Remove(path)

	for {
		msg, err := conn.Receive()
		if err != nil {
			f.Close()
			return err
		}
		if msg.Type == MsgCatchupSnapshotDone {
			break
		}
		if msg.Type != MsgCatchupSnapshotChunk {
			f.Close()
			return fmt.Errorf("replication: unexpected message %s mid-snapshot", msg.Type)
		}
		if _, err := f.Write(msg.Payload); err != nil {
			f.Close()
			return err
		}
	}
	if err := f.Close(); err != nil {
		return err
	}

	snap, err := durability.ReadSnapshot(path)
	if err != nil {
		return fmt.Errorf("replication: corrupt catch-up snapshot: %w", err)
	}
	durability.ApplySnapshot(r.g, snap)
	r.lastApplied.Store(snap.SnapshotterTxnID)
	return nil
}

// streamLoop applies live-streamed transactions until the connection
// fails, buffering a transaction's records between TxnBegin and
// TxnCommit/TxnAbort exactly as Recover does for on-disk replay.
func (r *ReplicaClient) streamLoop(conn *Conn) error {
	pending := make(map[uint64][]durability.Record)
	r.state.Store(StateReady)

	for {
		msg, err := conn.Receive()
		if err != nil {
			r.state.Store(StateRecovery)
			return err
		}

		switch msg.Type {
		case MsgHeartbeat:
			pong := HeartbeatPong{LastAppliedTxn: r.lastApplied.Load(), State: string(r.State())}
			data, _ := encodeGob(pong)
			conn.Send(&Message{Type: MsgHeartbeatAck, Epoch: r.epoch, Payload: data})
			continue
		}

		rec, err := decodeRecordPayload(msg.Payload)
		if err != nil {
			r.logger.Printf("replication: decode record: %v", err)
			continue
		}

		switch rec.Type {
		case durability.RecTxnBegin:
			pending[rec.TxnID] = []durability.Record{rec}
		case durability.RecTxnCommit:
			txn := append(pending[rec.TxnID], rec)
			delete(pending, rec.TxnID)
			durability.ApplyWALRecords(r.g, txn)
			r.lastApplied.Store(rec.TxnID)
			ackPayload, _ := encodeGob(AckPayload{TxnID: rec.TxnID})
			if err := conn.Send(&Message{Type: MsgAck, Epoch: r.epoch, Payload: ackPayload}); err != nil {
				return err
			}
		case durability.RecTxnAbort:
			delete(pending, rec.TxnID)
		default:
			pending[rec.TxnID] = append(pending[rec.TxnID], rec)
		}
	}
}

// Close closes the underlying connection, if any.
func (r *ReplicaClient) Close() error {
	if r.conn == nil {
		return nil
	}
	return r.conn.Close()
}

package replication

import (
	"fmt"
	"log"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/arborgraph/arbor/pkg/durability"
)

// Registration is one replica a MainReplicator streams to (spec 4.8: "a
// Main maintains zero or more replica registrations").
type Registration struct {
	NodeID  string
	conn    *Conn
	mode    Mode
	timeout time.Duration

	stateMu sync.Mutex
	state   State

	ackCh chan uint64
}

// State reports the registration's current catch-up lifecycle state.
func (r *Registration) State() State {
	r.stateMu.Lock()
	defer r.stateMu.Unlock()
	return r.state
}

func (r *Registration) setState(s State) {
	r.stateMu.Lock()
	r.state = s
	r.stateMu.Unlock()
}

// MainReplicator is the Main-role side of spec 4.8: it accepts replica
// connections, performs the Hello/Ok handshake, ships snapshot or WAL
// catch-up, and then streams every subsequent transaction's delta
// sequence to each registered replica, enforcing SYNC acknowledgement
// where configured.
type MainReplicator struct {
	nodeID      string
	cfg         Config
	epoch       uint64
	snapshotDir string
	walDir      string
	logger      *log.Logger

	mu       sync.RWMutex
	regs     map[string]*Registration
	listener net.Listener
	closed   atomic.Bool
}

// NewMainReplicator creates a Main replicator for the given epoch (spec
// 4.8: "On promotion of a replica to Main, a fresh epoch is issued").
func NewMainReplicator(nodeID string, epoch uint64, snapshotDir, walDir string, cfg Config, logger *log.Logger) *MainReplicator {
	if logger == nil {
		logger = log.New(os.Stderr, "replication: ", log.LstdFlags)
	}
	cfg.NodeID = nodeID
	return &MainReplicator{
		nodeID:      nodeID,
		cfg:         cfg.withDefaults(),
		epoch:       epoch,
		snapshotDir: snapshotDir,
		walDir:      walDir,
		logger:      logger,
		regs:        make(map[string]*Registration),
	}
}

// Epoch returns the Main's current epoch.
func (m *MainReplicator) Epoch() uint64 { return m.epoch }

// Registrations returns a snapshot of the currently registered replica ids
// and their states, for status reporting.
func (m *MainReplicator) Registrations() map[string]State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]State, len(m.regs))
	for id, r := range m.regs {
		out[id] = r.State()
	}
	return out
}

// Accept performs the Hello/Ok handshake on a freshly accepted connection,
// ships whichever catch-up the handshake selected, and — on success —
// registers the replica for future Broadcast calls.
func (m *MainReplicator) Accept(netConn net.Conn) error {
	conn := NewConn(netConn, m.cfg)

	msg, err := conn.Receive()
	if err != nil {
		conn.Close()
		return fmt.Errorf("replication: read hello: %w", err)
	}
	if msg.Type != MsgHello {
		conn.Close()
		return fmt.Errorf("replication: expected Hello, got %s", msg.Type)
	}
	var req HelloRequest
	if err := decodeGob(msg.Payload, &req); err != nil {
		conn.Close()
		return fmt.Errorf("replication: decode hello: %w", err)
	}

	mode := m.decideMode(req)
	resp := HelloResponse{Accepted: true, ExpectedMode: mode, Epoch: m.epoch}
	payload, err := encodeGob(resp)
	if err != nil {
		conn.Close()
		return err
	}
	if err := conn.Send(&Message{Type: MsgHelloAck, Epoch: m.epoch, Payload: payload}); err != nil {
		conn.Close()
		return err
	}

	replicaMode := req.Mode
	if replicaMode == "" {
		replicaMode = ASYNC
	}
	timeout := req.AckTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	reg := &Registration{
		NodeID:  req.NodeID,
		conn:    conn,
		mode:    replicaMode,
		timeout: timeout,
		state:   StateRecovery,
		ackCh:   make(chan uint64, 8),
	}

	if mode == CatchupSnapshot {
		if err := m.streamLatestSnapshot(conn); err != nil {
			conn.Close()
			return fmt.Errorf("replication: snapshot catch-up: %w", err)
		}
	} else {
		recs, err := walBacklog(m.walDir, req.LastDurableTxn)
		if err != nil {
			conn.Close()
			return fmt.Errorf("replication: wal backlog: %w", err)
		}
		if err := m.streamRecords(conn, recs); err != nil {
			conn.Close()
			return fmt.Errorf("replication: wal catch-up: %w", err)
		}
	}

	reg.setState(StateReady)
	m.mu.Lock()
	m.regs[req.NodeID] = reg
	m.mu.Unlock()

	go m.readLoop(reg)
	m.logger.Printf("replica %s registered (mode=%s, catchup=%s)", req.NodeID, replicaMode, mode)
	return nil
}

// decideMode chooses the catch-up strategy per spec 4.8's "Epochs" and
// "Recovery handshake": an epoch mismatch always forces a snapshot: a
// replica with no durable transactions and an existing snapshot is faster
// to bootstrap from that snapshot than from the full WAL history.
func (m *MainReplicator) decideMode(req HelloRequest) CatchupMode {
	if req.Epoch != 0 && req.Epoch != m.epoch {
		return CatchupSnapshot
	}
	if req.LastDurableTxn == 0 {
		if _, ok := latestSnapshotPath(m.snapshotDir); ok {
			return CatchupSnapshot
		}
	}
	return CatchupWAL
}

func latestSnapshotPath(dir string) (string, bool) {
	paths, err := durability.ListSnapshotsNewestFirst(dir)
	if err != nil || len(paths) == 0 {
		return "", false
	}
	return paths[0], true
}

const snapshotChunkSize = 1 << 20 // 1MiB

func (m *MainReplicator) streamLatestSnapshot(conn *Conn) error {
	path, ok := latestSnapshotPath(m.snapshotDir)
	if !ok {
		return conn.Send(&Message{Type: MsgCatchupSnapshotDone, Epoch: m.epoch})
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := conn.Send(&Message{Type: MsgSnapshotStart, Epoch: m.epoch}); err != nil {
		return err
	}
	for off := 0; off < len(data); off += snapshotChunkSize {
		end := off + snapshotChunkSize
		if end > len(data) {
			end = len(data)
		}
		chunk := &Message{Type: MsgCatchupSnapshotChunk, Epoch: m.epoch, Payload: data[off:end]}
		if err := conn.Send(chunk); err != nil {
			return err
		}
	}
	return conn.Send(&Message{Type: MsgCatchupSnapshotDone, Epoch: m.epoch})
}

func (m *MainReplicator) streamRecords(conn *Conn, recs []durability.Record) error {
	for _, rec := range recs {
		payload, err := encodeRecordPayload(rec)
		if err != nil {
			return err
		}
		if err := conn.Send(&Message{Type: recToMsgType(rec.Type), Epoch: m.epoch, Payload: payload}); err != nil {
			return err
		}
	}
	return nil
}

func recToMsgType(rt durability.RecordType) MessageType {
	switch rt {
	case durability.RecTxnBegin:
		return MsgTxnBegin
	case durability.RecTxnCommit:
		return MsgTxnCommit
	case durability.RecTxnAbort:
		return MsgTxnAbort
	default:
		return MsgDelta
	}
}

// Broadcast streams one committed transaction's full delta sequence
// (TxnBegin..deltas..TxnCommit, exactly as records was appended to the
// Main's own WAL) to every registered replica, per spec 4.8. A SYNC
// replica's ack is awaited up to its registration timeout; a timeout or
// write failure drops that replica to Recovery and unregisters it, and if
// the replica is SYNC the caller's commit is reported failed
// (ErrReplicaTimeout) exactly as spec 8 describes.
func (m *MainReplicator) Broadcast(txnID uint64, records []durability.Record) error {
	m.mu.RLock()
	regs := make([]*Registration, 0, len(m.regs))
	for _, r := range m.regs {
		regs = append(regs, r)
	}
	m.mu.RUnlock()

	var firstSyncErr error
	for _, reg := range regs {
		if err := m.sendTxn(reg, txnID, records); err != nil {
			m.logger.Printf("replica %s: %v, moving to recovery", reg.NodeID, err)
			m.dropRegistration(reg.NodeID)
			if reg.mode == SYNC && firstSyncErr == nil {
				firstSyncErr = err
			}
		}
	}
	return firstSyncErr
}

func (m *MainReplicator) sendTxn(reg *Registration, txnID uint64, records []durability.Record) error {
	for _, rec := range records {
		payload, err := encodeRecordPayload(rec)
		if err != nil {
			return err
		}
		if err := reg.conn.Send(&Message{Type: recToMsgType(rec.Type), Epoch: m.epoch, Payload: payload}); err != nil {
			return err
		}
	}
	if reg.mode != SYNC {
		return nil
	}
	select {
	case <-reg.ackCh:
		return nil
	case <-time.After(reg.timeout):
		reg.setState(StateRecovery)
		return ErrReplicaTimeout
	}
}

// dropRegistration removes and closes a replica's registration (spec 4.8:
// "A Main that drops a registration stops streaming to that replica").
func (m *MainReplicator) dropRegistration(nodeID string) {
	m.mu.Lock()
	reg, ok := m.regs[nodeID]
	if ok {
		delete(m.regs, nodeID)
	}
	m.mu.Unlock()
	if ok {
		reg.conn.Close()
	}
}

func (m *MainReplicator) readLoop(reg *Registration) {
	for {
		msg, err := reg.conn.Receive()
		if err != nil {
			m.dropRegistration(reg.NodeID)
			return
		}
		switch msg.Type {
		case MsgAck:
			var ack AckPayload
			if decodeGob(msg.Payload, &ack) == nil {
				select {
				case reg.ackCh <- ack.TxnID:
				default:
				}
			}
		case MsgHeartbeatAck:
			var pong HeartbeatPong
			if decodeGob(msg.Payload, &pong) == nil {
				m.logger.Printf("replica %s last applied txn %d (state=%s)", reg.NodeID, pong.LastAppliedTxn, pong.State)
			}
		}
	}
}

// Close drops every registration and stops the listener, if any.
func (m *MainReplicator) Close() {
	m.StopServing()
	m.mu.Lock()
	regs := m.regs
	m.regs = make(map[string]*Registration)
	m.mu.Unlock()
	for _, reg := range regs {
		reg.conn.Close()
	}
}

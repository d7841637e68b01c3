// Package replication implements Main/Replica state-delta streaming (spec
// 4.8): a length-prefixed, HMAC-signed wire protocol grounded in the
// teacher's ClusterTransport, generalized with a Hello/Ok handshake and
// snapshot catch-up streaming in place of the teacher's Raft-specific
// message types.
package replication

import (
	"bufio"
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"encoding/gob"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"time"
)

// MessageType identifies replication protocol messages, one enum mirroring
// the teacher's ClusterMessageType but scoped to Main/Replica streaming
// instead of Raft consensus.
type MessageType uint8

const (
	MsgHello MessageType = iota + 1
	MsgHelloAck
	MsgTxnBegin
	MsgDelta
	MsgTxnCommit
	MsgTxnAbort
	MsgSnapshotStart
	MsgCatchupSnapshotChunk
	MsgCatchupSnapshotDone
	MsgHeartbeat
	MsgHeartbeatAck
	MsgAck
)

func (t MessageType) String() string {
	switch t {
	case MsgHello:
		return "Hello"
	case MsgHelloAck:
		return "HelloAck"
	case MsgTxnBegin:
		return "TxnBegin"
	case MsgDelta:
		return "Delta"
	case MsgTxnCommit:
		return "TxnCommit"
	case MsgTxnAbort:
		return "TxnAbort"
	case MsgSnapshotStart:
		return "SnapshotStart"
	case MsgCatchupSnapshotChunk:
		return "CatchupSnapshotChunk"
	case MsgCatchupSnapshotDone:
		return "CatchupSnapshotDone"
	case MsgHeartbeat:
		return "Heartbeat"
	case MsgHeartbeatAck:
		return "HeartbeatAck"
	case MsgAck:
		return "Ack"
	default:
		return fmt.Sprintf("MessageType(%d)", t)
	}
}

// Message is the on-wire envelope for replication traffic, the same shape
// as the teacher's ClusterMessage plus an Epoch field (spec 4.8's epoch
// identifiers travel with every message, not just Hello).
type Message struct {
	Type      MessageType
	NodeID    string
	Epoch     uint64
	Timestamp int64
	Signature string
	Payload   []byte
}

// HelloRequest is MsgHello's payload: a replica advertising its epoch and
// durable watermark so the Main can choose a catch-up strategy (spec 4.8
// "Recovery handshake").
type HelloRequest struct {
	NodeID         string
	Epoch          uint64
	LastDurableTxn uint64
	Mode           Mode
	AckTimeout     time.Duration
}

// CatchupMode is HelloResponse's ExpectedMode: whether the Main will ship
// WAL files or a full snapshot.
type CatchupMode string

const (
	CatchupWAL      CatchupMode = "wal"
	CatchupSnapshot CatchupMode = "snapshot"
)

// HelloResponse is MsgHelloAck's payload.
type HelloResponse struct {
	Accepted     bool
	Reason       string
	ExpectedMode CatchupMode
	Epoch        uint64
}

// HeartbeatPing carries the Main's current commit-stamp watermark so a
// replica can report how far behind it is.
type HeartbeatPing struct {
	MainLastCommitTxn uint64
}

// HeartbeatPong reports the replica's last applied transaction id.
type HeartbeatPong struct {
	LastAppliedTxn uint64
	State          string
}

// AckPayload is MsgAck's payload: a replica confirming durable application
// of txnID, the signal a SYNC registration's commit waits on.
type AckPayload struct {
	TxnID uint64
}

func encodeGob(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeGob(data []byte, v any) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(v)
}

func signMessage(secret []byte, nodeID string, msg *Message) {
	if len(secret) == 0 {
		return
	}
	if msg.NodeID == "" {
		msg.NodeID = nodeID
	}
	if msg.Timestamp == 0 {
		msg.Timestamp = time.Now().UnixNano()
	}
	msg.Signature = computeSignature(secret, msg)
}

func verifyMessage(secret []byte, maxSkew time.Duration, msg *Message) error {
	if len(secret) == 0 {
		return nil
	}
	if msg.Signature == "" || msg.Timestamp == 0 || msg.NodeID == "" {
		return errors.New("replication: missing authentication fields")
	}
	if maxSkew > 0 {
		now := time.Now()
		ts := time.Unix(0, msg.Timestamp)
		if now.Sub(ts) > maxSkew || ts.Sub(now) > maxSkew {
			return errors.New("replication: timestamp outside allowed skew")
		}
	}
	expected := computeSignature(secret, msg)
	if !hmac.Equal([]byte(expected), []byte(msg.Signature)) {
		return errors.New("replication: invalid signature")
	}
	return nil
}

func computeSignature(secret []byte, msg *Message) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte{byte(msg.Type)})
	writeStringWithLength(mac, msg.NodeID)
	writeUint64(mac, msg.Epoch)
	writeInt64(mac, msg.Timestamp)
	writeBytesWithLength(mac, msg.Payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func writeUint64(w io.Writer, v uint64) {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], v)
	w.Write(buf[:])
}

func writeInt64(w io.Writer, v int64) { writeUint64(w, uint64(v)) }

func writeStringWithLength(w io.Writer, s string) { writeBytesWithLength(w, []byte(s)) }

func writeBytesWithLength(w io.Writer, b []byte) {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], uint32(len(b)))
	w.Write(buf[:])
	if len(b) > 0 {
		w.Write(b)
	}
}

// writeMessage length-prefixes and writes a gob-encoded Message, mirroring
// the teacher's writeClusterMessage.
func writeMessage(w *bufio.Writer, msg *Message) error {
	data, err := encodeGob(msg)
	if err != nil {
		return err
	}
	if err := binary.Write(w, binary.BigEndian, uint32(len(data))); err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// readMessage reads one length-prefixed gob-encoded Message, rejecting
// anything over maxSize the way the teacher's readClusterMessage does.
func readMessage(r *bufio.Reader, maxSize int) (*Message, error) {
	var length uint32
	if err := binary.Read(r, binary.BigEndian, &length); err != nil {
		return nil, err
	}
	if int(length) > maxSize {
		return nil, fmt.Errorf("replication: message too large: %d > %d", length, maxSize)
	}
	data := make([]byte, length)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, err
	}
	var msg Message
	if err := decodeGob(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// Package durability implements the write-ahead log and snapshot formats
// of spec 4.7/6: self-framed, checksummed WAL records, segment rotation
// with a JSON manifest, a serialized point-in-time snapshot, and the
// crash-recovery algorithm that replays both into a fresh pkg/storage
// Graph.
package durability

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"

	"github.com/vmihailenco/msgpack/v5"
)

const (
	walMagic         uint32 = 0x57414c31 // "WAL1"
	walFormatVersion byte   = 2
	walTrailer       uint64 = 0xA17AF00DFEEDFACE
)

// alignUp rounds n up to the next multiple of 8, matching the teacher's
// 8-byte record alignment (torn-header avoidance, deterministic padding
// skips).
func alignUp(n int64) int64 {
	const align = 8
	if rem := n % align; rem != 0 {
		return n + (align - rem)
	}
	return n
}

// RecordType enumerates the WAL record vocabulary of spec 4.7, shared
// one-for-one with pkg/mvcc.DeltaOp for the delta-shaped records plus the
// transaction-boundary and DDL records the WAL additionally needs.
type RecordType uint8

const (
	RecTxnBegin RecordType = iota
	RecTxnCommit
	RecTxnAbort
	RecCreateVertex
	RecDeleteVertex
	RecSetVertexLabel
	RecRemoveVertexLabel
	RecSetProperty
	RecRemoveProperty
	RecCreateEdge
	RecDeleteEdge
	RecBuildIndex
	RecDropIndex
)

// Record is one WAL entry: a logical mutation (or transaction-boundary
// marker) owned by TxnID. Payload holds whichever *Create.../*Set...
// struct below RecordType calls for, msgpack-encoded on disk.
type Record struct {
	Type    RecordType `msgpack:"type"`
	TxnID   uint64     `msgpack:"txn_id"`
	Payload []byte     `msgpack:"payload"`
}

// CreateVertexPayload etc. mirror the WAL record vocabulary's argument
// lists (spec 4.7).
type CreateVertexPayload struct {
	GID uint64 `msgpack:"gid"`
}

type DeleteVertexPayload struct {
	GID uint64 `msgpack:"gid"`
}

type LabelPayload struct {
	GID   uint64 `msgpack:"gid"`
	Label string `msgpack:"label"`
}

type PropertyPayload struct {
	ElementGID uint64 `msgpack:"element_gid"`
	IsEdge     bool   `msgpack:"is_edge"`
	Key        string `msgpack:"key"`
	Value      []byte `msgpack:"value,omitempty"` // msgpack-encoded value.Value; empty for RemoveProperty
}

type CreateEdgePayload struct {
	GID      uint64 `msgpack:"gid"`
	From     uint64 `msgpack:"from"`
	To       uint64 `msgpack:"to"`
	EdgeType string `msgpack:"edge_type"`
}

type DeleteEdgePayload struct {
	GID uint64 `msgpack:"gid"`
}

type IndexPayload struct {
	Label    string `msgpack:"label"`
	Property string `msgpack:"property,omitempty"`
}

// EncodeRecord msgpack-encodes payload into a Record and frames it per the
// v2 atomic-record layout:
//
//	[magic:4][version:1][length:4][payload:N][crc:4][trailer:8][padding]
//
// 8-byte aligned so a torn tail is always detectable (padding is zeroed).
func EncodeRecord(recType RecordType, txnID uint64, payload any) ([]byte, error) {
	body, err := msgpack.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("durability: encode payload: %w", err)
	}
	rec := Record{Type: recType, TxnID: txnID, Payload: body}
	encoded, err := msgpack.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("durability: encode record: %w", err)
	}

	crc := crc32.ChecksumIEEE(encoded)

	headerSize := int64(4 + 1 + 4)
	bodySize := int64(len(encoded) + 4 + 8)
	aligned := alignUp(headerSize + bodySize)

	buf := make([]byte, aligned)
	off := 0
	binary.LittleEndian.PutUint32(buf[off:], walMagic)
	off += 4
	buf[off] = walFormatVersion
	off++
	binary.LittleEndian.PutUint32(buf[off:], uint32(len(encoded)))
	off += 4
	copy(buf[off:], encoded)
	off += len(encoded)
	binary.LittleEndian.PutUint32(buf[off:], crc)
	off += 4
	binary.LittleEndian.PutUint64(buf[off:], walTrailer)

	return buf, nil
}

// ErrTruncatedRecord signals a partial tail record (torn write), detected
// by a length that runs past the available bytes or a trailer mismatch.
var ErrTruncatedRecord = fmt.Errorf("durability: truncated record")

// ErrCorruptRecord signals a checksum, magic, or version mismatch.
var ErrCorruptRecord = fmt.Errorf("durability: corrupt record")

// DecodeRecord reads one framed record starting at buf[0], returning the
// decoded Record, the aligned length consumed, and an error. Callers
// should treat ErrTruncatedRecord as "stop reading, discard the rest of
// the file" rather than a fatal recovery error (spec 4.7: "self-framing so
// a partial tail can be detected and discarded").
func DecodeRecord(buf []byte) (Record, int64, error) {
	const headerSize = 4 + 1 + 4
	if len(buf) < headerSize {
		return Record{}, 0, ErrTruncatedRecord
	}
	off := 0
	magic := binary.LittleEndian.Uint32(buf[off:])
	off += 4
	if magic != walMagic {
		return Record{}, 0, ErrCorruptRecord
	}
	version := buf[off]
	off++
	if version > walFormatVersion {
		return Record{}, 0, fmt.Errorf("durability: record format version %d newer than supported %d", version, walFormatVersion)
	}
	payloadLen := binary.LittleEndian.Uint32(buf[off:])
	off += 4

	rawRecordLen := int64(headerSize) + int64(payloadLen) + 4 + 8
	aligned := alignUp(rawRecordLen)
	if int64(len(buf)) < aligned {
		return Record{}, 0, ErrTruncatedRecord
	}

	encoded := buf[off : off+int(payloadLen)]
	off += int(payloadLen)

	gotCRC := binary.LittleEndian.Uint32(buf[off:])
	off += 4
	if gotCRC != crc32.ChecksumIEEE(encoded) {
		return Record{}, 0, ErrCorruptRecord
	}

	trailer := binary.LittleEndian.Uint64(buf[off:])
	off += 8
	if trailer != walTrailer {
		return Record{}, 0, ErrTruncatedRecord
	}

	var rec Record
	if err := msgpack.Unmarshal(encoded, &rec); err != nil {
		return Record{}, 0, fmt.Errorf("durability: decode record: %w", err)
	}
	return rec, aligned, nil
}

// DecodePayload unmarshals rec.Payload into out (a pointer to one of the
// *Payload structs above), selected by the caller based on rec.Type.
func DecodePayload(rec Record, out any) error {
	return msgpack.Unmarshal(rec.Payload, out)
}

// NewRecord msgpack-encodes payload into a Record value without the
// on-disk CRC/trailer framing EncodeRecord adds, for callers (pkg/engine's
// write sessions) that need the in-memory Record to hand to
// pkg/replication's Broadcast rather than to append to a WAL file.
func NewRecord(recType RecordType, txnID uint64, payload any) (Record, error) {
	body, err := msgpack.Marshal(payload)
	if err != nil {
		return Record{}, fmt.Errorf("durability: encode payload: %w", err)
	}
	return Record{Type: recType, TxnID: txnID, Payload: body}, nil
}

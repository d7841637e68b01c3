package replication

import (
	"github.com/vmihailenco/msgpack/v5"

	"github.com/arborgraph/arbor/pkg/durability"
)

// encodeRecordPayload msgpack-encodes a durability.Record for transmission
// as a Message's Payload. The wire envelope already carries its own length
// prefix and HMAC signature, so unlike durability.EncodeRecord this skips
// the on-disk CRC/trailer framing — that's a WAL-file concern, not a
// transport one.
func encodeRecordPayload(rec durability.Record) ([]byte, error) {
	return msgpack.Marshal(rec)
}

func decodeRecordPayload(b []byte) (durability.Record, error) {
	var rec durability.Record
	err := msgpack.Unmarshal(b, &rec)
	return rec, err
}

package durability

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRecordRoundTrip(t *testing.T) {
	buf, err := EncodeRecord(RecCreateVertex, 7, CreateVertexPayload{GID: 42})
	require.NoError(t, err)
	require.Equal(t, int64(0), int64(len(buf))%8, "record must be 8-byte aligned")

	rec, n, err := DecodeRecord(buf)
	require.NoError(t, err)
	require.Equal(t, int64(len(buf)), n)
	require.Equal(t, RecCreateVertex, rec.Type)
	require.Equal(t, uint64(7), rec.TxnID)

	var p CreateVertexPayload
	require.NoError(t, DecodePayload(rec, &p))
	require.Equal(t, uint64(42), p.GID)
}

func TestDecodeRecordDetectsTruncation(t *testing.T) {
	buf, err := EncodeRecord(RecCreateVertex, 1, CreateVertexPayload{GID: 1})
	require.NoError(t, err)
	_, _, err = DecodeRecord(buf[:len(buf)-2])
	require.ErrorIs(t, err, ErrTruncatedRecord)
}

func TestDecodeRecordDetectsCorruption(t *testing.T) {
	buf, err := EncodeRecord(RecCreateVertex, 1, CreateVertexPayload{GID: 1})
	require.NoError(t, err)
	buf[10] ^= 0xFF
	_, _, err = DecodeRecord(buf)
	require.Error(t, err)
}

func TestMultipleRecordsConcatenate(t *testing.T) {
	r1, err := EncodeRecord(RecTxnBegin, 1, struct{}{})
	require.NoError(t, err)
	r2, err := EncodeRecord(RecCreateVertex, 1, CreateVertexPayload{GID: 5})
	require.NoError(t, err)

	buf := append(append([]byte{}, r1...), r2...)
	rec1, n1, err := DecodeRecord(buf)
	require.NoError(t, err)
	require.Equal(t, RecTxnBegin, rec1.Type)

	rec2, _, err := DecodeRecord(buf[n1:])
	require.NoError(t, err)
	require.Equal(t, RecCreateVertex, rec2.Type)
}

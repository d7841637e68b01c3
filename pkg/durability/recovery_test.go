package durability

import (
	"log"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arborgraph/arbor/pkg/accessor"
	"github.com/arborgraph/arbor/pkg/mvcc"
	"github.com/arborgraph/arbor/pkg/storage"
	"github.com/arborgraph/arbor/pkg/value"
)

func TestWALRoundTripRecoversCommittedState(t *testing.T) {
	dir := t.TempDir()
	walDir := filepath.Join(dir, "wal")
	require.NoError(t, os.MkdirAll(walDir, 0o755))

	w, err := NewWriter(walDir, log.New(os.Stderr, "", 0), func() int64 { return 1 })
	require.NoError(t, err)

	const txnID = 1
	require.NoError(t, w.Append(RecTxnBegin, txnID, struct{}{}))
	require.NoError(t, w.Append(RecCreateVertex, txnID, CreateVertexPayload{GID: 100}))
	require.NoError(t, w.Append(RecSetVertexLabel, txnID, LabelPayload{GID: 100, Label: "Person"}))
	pp, err := NewPropertySetPayload(100, false, "name", value.Str("grace"))
	require.NoError(t, err)
	require.NoError(t, w.Append(RecSetProperty, txnID, pp))
	require.NoError(t, w.Append(RecTxnCommit, txnID, struct{}{}))
	require.NoError(t, w.Close())

	g := storage.NewGraph()
	require.NoError(t, Recover(dir, g, nil))

	a := accessor.New(g)
	vh, err := a.FindVertex(100, mvcc.OLD)
	require.NoError(t, err)
	labels, err := vh.Labels(mvcc.OLD)
	require.NoError(t, err)
	require.Contains(t, labels, "Person")
	name, err := vh.Property(mvcc.OLD, "name")
	require.NoError(t, err)
	require.Equal(t, value.Str("grace"), name)
}

func TestWALRecoveryDiscardsUncommittedTransaction(t *testing.T) {
	dir := t.TempDir()
	walDir := filepath.Join(dir, "wal")
	require.NoError(t, os.MkdirAll(walDir, 0o755))

	w, err := NewWriter(walDir, log.New(os.Stderr, "", 0), func() int64 { return 1 })
	require.NoError(t, err)
	require.NoError(t, w.Append(RecTxnBegin, 1, struct{}{}))
	require.NoError(t, w.Append(RecCreateVertex, 1, CreateVertexPayload{GID: 200}))
	// no TxnCommit: simulates a crash mid-transaction.
	require.NoError(t, w.Close())

	g := storage.NewGraph()
	require.NoError(t, Recover(dir, g, nil))

	a := accessor.New(g)
	_, err = a.FindVertex(200, mvcc.OLD)
	require.ErrorIs(t, err, storage.ErrNonexistentObject)
}

func TestSnapshotRoundTrip(t *testing.T) {
	dir := t.TempDir()
	g := storage.NewGraph()
	a := accessor.New(g)
	vh, err := a.CreateVertex()
	require.NoError(t, err)
	require.NoError(t, vh.SetLabel("Person"))
	require.NoError(t, vh.SetProperty("age", value.Int(30)))
	_, err = a.Commit()
	require.NoError(t, err)

	snapshotter := g.Txns.Begin()
	snap, err := BuildSnapshot(g, snapshotter, g.Txns, 1, 1, 1, nil)
	require.NoError(t, err)
	g.Txns.Commit(snapshotter)

	path := SnapshotPath(dir, uint64(snapshotter.ID))
	require.NoError(t, WriteSnapshot(path, snap))

	back, err := ReadSnapshot(path)
	require.NoError(t, err)
	require.Len(t, back.Vertices, 1)
	require.Equal(t, vh.GID(), back.Vertices[0].GID)
}

func TestReadSnapshotRejectsCorruptBody(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "snapshot_1.snap")
	snap := &Snapshot{FormatVersion: snapshotVersion}
	require.NoError(t, WriteSnapshot(path, snap))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	data[9] ^= 0xFF
	require.NoError(t, os.WriteFile(path, data, 0o644))

	_, err = ReadSnapshot(path)
	require.ErrorIs(t, err, ErrSnapshotCorrupt)
}

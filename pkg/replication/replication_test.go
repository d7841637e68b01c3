package replication

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/arborgraph/arbor/pkg/accessor"
	"github.com/arborgraph/arbor/pkg/durability"
	"github.com/arborgraph/arbor/pkg/mvcc"
	"github.com/arborgraph/arbor/pkg/storage"
)

func setupMain(t *testing.T) (*MainReplicator, string) {
	t.Helper()
	dataDir := t.TempDir()
	walDir := filepath.Join(dataDir, "wal")
	snapDir := filepath.Join(dataDir, "snapshots")
	require.NoError(t, os.MkdirAll(walDir, 0o755))
	require.NoError(t, os.MkdirAll(snapDir, 0o755))

	m := NewMainReplicator("main", 1, snapDir, walDir, Config{ReplicationSecret: "s3cr3t"}, nil)
	addr, err := m.Listen("127.0.0.1:0")
	require.NoError(t, err)
	go m.acceptLoop()
	t.Cleanup(m.Close)
	return m, addr
}

func waitForRegistration(t *testing.T, m *MainReplicator, nodeID string) {
	t.Helper()
	for i := 0; i < 100; i++ {
		if st, ok := m.Registrations()[nodeID]; ok && st == StateReady {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("replica %s never reached Ready", nodeID)
}

func waitForAppliedTxn(t *testing.T, r *ReplicaClient, txnID uint64) {
	t.Helper()
	for i := 0; i < 200; i++ {
		if r.LastAppliedTxn() >= txnID {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("replica never applied txn %d, last applied %d", txnID, r.LastAppliedTxn())
}

func TestReplicaAppliesBroadcastTransaction(t *testing.T) {
	m, addr := setupMain(t)

	replicaG := storage.NewGraph()
	replica := NewReplicaClient("replica-1", 1, t.TempDir(), replicaG, Config{ReplicationSecret: "s3cr3t"}, nil)
	go func() { _ = replica.Connect(addr, ASYNC, 2*time.Second) }()

	waitForRegistration(t, m, "replica-1")

	const txnID = uint64(1)
	records := []durability.Record{
		{Type: durability.RecTxnBegin, TxnID: txnID},
		{Type: durability.RecCreateVertex, TxnID: txnID, Payload: mustEncodePayload(t, durability.CreateVertexPayload{GID: 42})},
		{Type: durability.RecSetVertexLabel, TxnID: txnID, Payload: mustEncodePayload(t, durability.LabelPayload{GID: 42, Label: "Person"})},
		{Type: durability.RecTxnCommit, TxnID: txnID},
	}
	require.NoError(t, m.Broadcast(txnID, records))

	waitForAppliedTxn(t, replica, txnID)

	a := accessor.New(replicaG)
	vh, err := a.FindVertex(42, mvcc.OLD)
	require.NoError(t, err)
	labels, err := vh.Labels(mvcc.OLD)
	require.NoError(t, err)
	require.Contains(t, labels, "Person")
}

func TestSyncReplicaTimeoutMovesToRecovery(t *testing.T) {
	m, _ := setupMain(t)

	// Register a fake SYNC replica directly (bypassing the network) that
	// never acks, to exercise the timeout path without a slow real test.
	reg := &Registration{
		NodeID:  "stalled",
		mode:    SYNC,
		timeout: 20 * time.Millisecond,
		state:   StateReady,
		ackCh:   make(chan uint64),
	}
	m.mu.Lock()
	m.regs["stalled"] = reg
	m.mu.Unlock()

	err := m.sendTxn(reg, 1, nil)
	require.ErrorIs(t, err, ErrReplicaTimeout)
	require.Equal(t, StateRecovery, reg.State())
}

func mustEncodePayload(t *testing.T, p any) []byte {
	t.Helper()
	b, err := msgpack.Marshal(p)
	require.NoError(t, err)
	return b
}

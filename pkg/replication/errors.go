package replication

import "errors"

// ErrEpochMismatch names the case where a replica advertises an epoch
// different from the Main's own (spec 4.8 "Epochs"). No code path in this
// package returns it: the Main's Hello handling answers an epoch mismatch
// by choosing snapshot catch-up instead of WAL catch-up.
var ErrEpochMismatch = errors.New("replication: epoch mismatch, snapshot recovery required")

// ErrReplicaTimeout is returned to the committing caller when a SYNC
// replica's ack does not arrive within its registration timeout (spec
// 4.8/8's "soft failure that moves the replica to Recovery").
var ErrReplicaTimeout = errors.New("replication: sync replica ack timed out")

// ErrReplicaOutOfSync corresponds to the spec's ReplicaOutOfSync error
// class: the replica's epoch or WAL range can no longer be reconciled
// without a fresh snapshot.
var ErrReplicaOutOfSync = errors.New("replication: replica out of sync")

// ErrNotConnected is returned by operations on a Conn that has been closed
// or never connected.
var ErrNotConnected = errors.New("replication: not connected")

// ErrUnknownReplica names a registration that no longer exists. No code
// path in this package returns it: dropping or acking an unknown
// registration is silently ignored.
var ErrUnknownReplica = errors.New("replication: unknown replica")

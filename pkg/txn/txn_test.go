package txn

import "testing"

func TestBeginAssignsMonotonicIDs(t *testing.T) {
	e := New()
	t1 := e.Begin()
	t2 := e.Begin()
	if t2.ID <= t1.ID {
		t.Fatalf("expected monotonically increasing ids, got %d then %d", t1.ID, t2.ID)
	}
}

func TestCommitBumpsCommitStamp(t *testing.T) {
	e := New()
	t1 := e.Begin()
	before := e.CommitStamp()
	stamp, err := e.Commit(t1)
	if err != nil {
		t.Fatalf("commit failed: %v", err)
	}
	if stamp <= before {
		t.Fatalf("expected commit stamp to advance past %d, got %d", before, stamp)
	}
	if t1.State() != Committed {
		t.Fatalf("expected committed state, got %v", t1.State())
	}
	if t1.CommitStamp() != stamp {
		t.Fatalf("expected transaction to record its own commit stamp")
	}
}

func TestAbortMarksAborted(t *testing.T) {
	e := New()
	t1 := e.Begin()
	e.Abort(t1)
	if t1.State() != Aborted {
		t.Fatalf("expected aborted state, got %v", t1.State())
	}
}

func TestSequentialWritesToSameHeadDoNotConflict(t *testing.T) {
	e := New()
	t1 := e.Begin()
	if err := e.ClaimWrite(t1, 42); err != nil {
		t.Fatalf("t1 claim should succeed: %v", err)
	}
	if _, err := e.Commit(t1); err != nil {
		t.Fatalf("t1 commit should succeed: %v", err)
	}

	t2 := e.Begin()
	if err := e.ClaimWrite(t2, 42); err != nil {
		t.Fatalf("t2 claim should succeed once t1 released the head: %v", err)
	}
	if _, err := e.Commit(t2); err != nil {
		t.Fatalf("t2 commit should succeed: %v", err)
	}
}

func TestConcurrentActiveWritersConflict(t *testing.T) {
	e := New()
	t1 := e.Begin()
	t2 := e.Begin()

	if err := e.ClaimWrite(t1, 7); err != nil {
		t.Fatalf("t1 claim should succeed: %v", err)
	}
	if err := e.ClaimWrite(t2, 7); err != ErrSerialization {
		t.Fatalf("expected serialization error claiming a head another active txn holds, got %v", err)
	}
}

func TestEnsureNextIDGreaterAdvancesGenerator(t *testing.T) {
	e := New()
	e.EnsureNextIDGreater(100)
	t1 := e.Begin()
	if t1.ID <= 100 {
		t.Fatalf("expected id generator advanced past 100, got %d", t1.ID)
	}
}

func TestAdvanceCommandIncrementsCounter(t *testing.T) {
	e := New()
	t1 := e.Begin()
	if t1.CommandCounter() != 0 {
		t.Fatalf("expected command counter to start at 0")
	}
	t1.AdvanceCommand()
	if t1.CommandCounter() != 1 {
		t.Fatalf("expected command counter 1 after AdvanceCommand, got %d", t1.CommandCounter())
	}
}

func TestAbortReleasesWriteClaim(t *testing.T) {
	e := New()
	t1 := e.Begin()
	if err := e.ClaimWrite(t1, 3); err != nil {
		t.Fatalf("claim failed: %v", err)
	}
	e.Abort(t1)

	t2 := e.Begin()
	if err := e.ClaimWrite(t2, 3); err != nil {
		t.Fatalf("expected claim to succeed after abort released the head: %v", err)
	}
}

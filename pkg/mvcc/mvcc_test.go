package mvcc

import (
	"testing"

	"github.com/arborgraph/arbor/pkg/txn"
)

func TestOwnWriteVisibleUnderNEW(t *testing.T) {
	e := txn.New()
	t1 := e.Begin()

	vl := NewVersionList()
	vl.Append(OpCreateVertex, nil, t1)

	if vl.Visible(t1, NEW) == nil {
		t.Fatalf("own write must be visible under NEW view")
	}
}

func TestOwnWriteInvisibleUnderOLDBeforeAdvanceCommand(t *testing.T) {
	e := txn.New()
	t1 := e.Begin()

	vl := NewVersionList()
	vl.Append(OpCreateVertex, nil, t1)

	if vl.Visible(t1, OLD) != nil {
		t.Fatalf("own write must not be visible under OLD before AdvanceCommand")
	}

	t1.AdvanceCommand()
	if vl.Visible(t1, OLD) == nil {
		t.Fatalf("own write must be visible under OLD after AdvanceCommand")
	}
}

func TestUncommittedWriteInvisibleToOtherTransaction(t *testing.T) {
	e := txn.New()
	t1 := e.Begin()
	t2 := e.Begin()

	vl := NewVersionList()
	vl.Append(OpCreateVertex, nil, t1)

	if vl.Visible(t2, NEW) != nil {
		t.Fatalf("t2 must not see t1's uncommitted write")
	}
}

func TestCommittedWriteVisibleToLaterTransaction(t *testing.T) {
	e := txn.New()
	t1 := e.Begin()

	vl := NewVersionList()
	vl.Append(OpCreateVertex, nil, t1)
	if _, err := e.Commit(t1); err != nil {
		t.Fatalf("commit failed: %v", err)
	}

	t2 := e.Begin()
	if vl.Visible(t2, OLD) == nil {
		t.Fatalf("t2 (begun after t1 committed) must see t1's write")
	}
}

func TestConcurrentTransactionCannotSeeEachOthersCommit(t *testing.T) {
	e := txn.New()
	t1 := e.Begin()
	t2 := e.Begin() // concurrently active with t1 at Begin time

	vl := NewVersionList()
	vl.Append(OpCreateVertex, nil, t1)
	if _, err := e.Commit(t1); err != nil {
		t.Fatalf("commit failed: %v", err)
	}

	// t2's snapshot was taken while t1 was still active, so t1's commit
	// (even though it landed before t2's own commit) must not be visible.
	if vl.Visible(t2, OLD) != nil {
		t.Fatalf("t2 must not see t1's write: t1 was concurrently active at t2's Begin")
	}
}

func TestAbortedWriteNeverVisible(t *testing.T) {
	e := txn.New()
	t1 := e.Begin()
	t2 := e.Begin()

	vl := NewVersionList()
	vl.Append(OpCreateVertex, nil, t1)
	e.Abort(t1)

	if vl.Visible(t1, NEW) != nil {
		t.Fatalf("aborted transaction's own write must not be visible even under NEW")
	}
	if vl.Visible(t2, OLD) != nil {
		t.Fatalf("aborted write must never be visible to other transactions")
	}
}

func TestDeletionHidesObjectFromLaterReaders(t *testing.T) {
	e := txn.New()
	t1 := e.Begin()

	vl := NewVersionList()
	vl.Append(OpCreateVertex, nil, t1)
	vl.MarkDeleted(t1)
	if _, err := e.Commit(t1); err != nil {
		t.Fatalf("commit failed: %v", err)
	}

	t2 := e.Begin()
	if vl.Visible(t2, OLD) != nil {
		t.Fatalf("deleted object must be invisible to a transaction begun after the deleting commit")
	}
}

func TestDeletionInSameTransactionUnderNEW(t *testing.T) {
	e := txn.New()
	t1 := e.Begin()

	vl := NewVersionList()
	vl.Append(OpCreateVertex, nil, t1)
	vl.MarkDeleted(t1)

	if vl.Visible(t1, NEW) != nil {
		t.Fatalf("object deleted by t1 must be invisible to t1 itself under NEW")
	}
}

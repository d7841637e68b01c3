package replication

import (
	"github.com/arborgraph/arbor/pkg/durability"
)

// walBacklog replays walDir's sealed segments plus its active segment and
// returns every fully committed transaction's records (TxnBegin, its
// deltas, TxnCommit) with TxnID > afterTxnID, in commit order. Uncommitted
// or aborted tails are dropped, the same skip/buffer rule Recover applies
// on startup (spec 4.7), reused here for a reconnecting replica's WAL
// catch-up (spec 4.8's "(a) ship missing WAL files").
func walBacklog(walDir string, afterTxnID uint64) ([]durability.Record, error) {
	segs, err := durability.ListSegmentsLexicographic(walDir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, s := range segs {
		files = append(files, s.Path)
	}
	files = append(files, durability.ActiveSegmentPath(walDir))

	pending := make(map[uint64][]durability.Record)
	var out []durability.Record

	for _, path := range files {
		recs, err := durability.ReadAllRecords(path)
		if err != nil {
			return nil, err
		}
		for _, rec := range recs {
			if rec.TxnID <= afterTxnID {
				continue
			}
			switch rec.Type {
			case durability.RecTxnBegin:
				pending[rec.TxnID] = []durability.Record{rec}
			case durability.RecTxnCommit:
				txn := append(pending[rec.TxnID], rec)
				out = append(out, txn...)
				delete(pending, rec.TxnID)
			case durability.RecTxnAbort:
				delete(pending, rec.TxnID)
			default:
				pending[rec.TxnID] = append(pending[rec.TxnID], rec)
			}
		}
	}
	return out, nil
}

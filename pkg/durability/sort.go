package durability

import (
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// sortSnapshotsDescending orders snapshot paths by their embedded
// snapshotter transaction id, highest first.
func sortSnapshotsDescending(paths []string) {
	sort.Slice(paths, func(i, j int) bool {
		return snapshotTxnID(paths[i]) > snapshotTxnID(paths[j])
	})
}

func snapshotTxnID(path string) uint64 {
	name := filepath.Base(path)
	name = strings.TrimPrefix(name, "snapshot_")
	name = strings.TrimSuffix(name, ".snap")
	id, err := strconv.ParseUint(name, 10, 64)
	if err != nil {
		return 0
	}
	return id
}

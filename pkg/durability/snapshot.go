package durability

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"os"
	"path/filepath"

	"github.com/vmihailenco/msgpack/v5"
)

const (
	snapshotMagic   uint32 = 0x534e5031 // "SNP1"
	snapshotVersion uint32 = 1
)

// IndexDef is one index definition carried in the snapshot header (spec
// 6.4): a label index if Property == "", else a label+property index.
type IndexDef struct {
	Label    string `msgpack:"label"`
	Property string `msgpack:"property,omitempty"`
}

// VertexRecord is one vertex's durable image (spec 6.5).
type VertexRecord struct {
	GID       uint64            `msgpack:"gid"`
	Labels    []string          `msgpack:"labels"`
	Properties map[string][]byte `msgpack:"properties"` // each value msgpack-encoded value.Value
	OutEdges  []uint64          `msgpack:"out_edges"`
	InEdges   []uint64          `msgpack:"in_edges"`
}

// EdgeRecord is one edge's durable image (spec 6.6).
type EdgeRecord struct {
	GID        uint64            `msgpack:"gid"`
	From       uint64            `msgpack:"from"`
	To         uint64            `msgpack:"to"`
	EdgeType   string            `msgpack:"edge_type"`
	Properties map[string][]byte `msgpack:"properties"`
}

// Snapshot is the full in-memory shape of a point-in-time image, per spec
// 6.1-6.7.
type Snapshot struct {
	FormatVersion     uint32     `msgpack:"format_version"`
	WorkerID          uint32     `msgpack:"worker_id"`
	VertexIDCounter   uint64     `msgpack:"vertex_id_counter"`
	EdgeIDCounter     uint64     `msgpack:"edge_id_counter"`
	SnapshotterTxnID  uint64     `msgpack:"snapshotter_txn_id"`
	ActiveTxnIDs      []uint64   `msgpack:"active_txn_ids"`
	Indexes           []IndexDef `msgpack:"indexes"`
	Vertices          []VertexRecord `msgpack:"vertices"`
	Edges             []EdgeRecord   `msgpack:"edges"`
}

// snapshotFileName builds the spec 6 filename for a snapshot, keyed to
// the snapshotter transaction id the same way WAL segments key to max txn
// id.
func snapshotFileName(snapshotterTxnID uint64) string {
	return fmt.Sprintf("snapshot_%d.snap", snapshotterTxnID)
}

// SnapshotPath joins dir and the conventional filename for txnID.
func SnapshotPath(dir string, txnID uint64) string {
	return filepath.Join(dir, snapshotFileName(txnID))
}

// WriteSnapshot serializes snap to path with the magic/version/body/
// trailer framing of spec 6.1-6.7, writing to a temp file and renaming
// into place so a crash mid-write never leaves a partial snapshot at the
// real path.
func WriteSnapshot(path string, snap *Snapshot) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	body, err := msgpack.Marshal(snap)
	if err != nil {
		return fmt.Errorf("durability: encode snapshot body: %w", err)
	}

	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}

	header := make([]byte, 4+4)
	binary.LittleEndian.PutUint32(header[0:], snapshotMagic)
	binary.LittleEndian.PutUint32(header[4:], snapshotVersion)
	if _, err := f.Write(header); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if _, err := f.Write(body); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}

	trailer := make([]byte, 4+4+4)
	binary.LittleEndian.PutUint32(trailer[0:], uint32(len(snap.Vertices)))
	binary.LittleEndian.PutUint32(trailer[4:], uint32(len(snap.Edges)))
	binary.LittleEndian.PutUint32(trailer[8:], crc32.ChecksumIEEE(body))
	if _, err := f.Write(trailer); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}

	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	f.Close()
	return os.Rename(tmp, path)
}

// ErrSnapshotCorrupt reports a magic/version/hash mismatch, per spec 7's
// DurabilityReadError.
var ErrSnapshotCorrupt = fmt.Errorf("durability: snapshot magic/version/hash mismatch")

// ReadSnapshot verifies and decodes the snapshot at path.
func ReadSnapshot(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(data) < 8+12 {
		return nil, ErrSnapshotCorrupt
	}
	magic := binary.LittleEndian.Uint32(data[0:4])
	version := binary.LittleEndian.Uint32(data[4:8])
	if magic != snapshotMagic || version > snapshotVersion {
		return nil, ErrSnapshotCorrupt
	}

	body := data[8 : len(data)-12]
	trailer := data[len(data)-12:]
	vertexCount := binary.LittleEndian.Uint32(trailer[0:4])
	edgeCount := binary.LittleEndian.Uint32(trailer[4:8])
	wantHash := binary.LittleEndian.Uint32(trailer[8:12])
	if crc32.ChecksumIEEE(body) != wantHash {
		return nil, ErrSnapshotCorrupt
	}

	var snap Snapshot
	if err := msgpack.Unmarshal(body, &snap); err != nil {
		return nil, fmt.Errorf("durability: decode snapshot body: %w", err)
	}
	if uint32(len(snap.Vertices)) != vertexCount || uint32(len(snap.Edges)) != edgeCount {
		return nil, ErrSnapshotCorrupt
	}
	return &snap, nil
}

// ListSnapshotsNewestFirst lists every *.snap file in dir, ordered newest
// snapshotter-txn-id first, for spec 4.7 recovery step 1 ("enumerate
// snapshots newest-first").
func ListSnapshotsNewestFirst(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var paths []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".snap" {
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	// Filenames are snapshot_<txnid>.snap; lexicographic descending order
	// on the numeric-suffix string is not generally numeric order, so sort
	// by parsing the embedded id instead of the raw string.
	sortSnapshotsDescending(paths)
	return paths, nil
}

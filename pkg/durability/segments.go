package durability

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

const manifestVersion = 1

// Segment describes one sealed WAL file on disk. Filenames follow spec 6's
// "wal_<timestamp>_<max_txn_id>.log" convention; the manifest additionally
// records the range so recovery can order segments without re-parsing
// every filename.
type Segment struct {
	Timestamp int64  `json:"timestamp"`
	MaxTxnID  uint64 `json:"max_txn_id"`
	SizeBytes int64  `json:"size_bytes"`
	Path      string `json:"path"`
}

// Manifest indexes every sealed segment in a WAL directory, in the
// teacher's wal_segments.go manifest.json shape.
type Manifest struct {
	Version  int       `json:"version"`
	Segments []Segment `json:"segments"`
}

func manifestPath(walDir string) string {
	return filepath.Join(walDir, "manifest.json")
}

func activeSegmentPath(walDir string) string {
	return filepath.Join(walDir, "wal.active.log")
}

// ActiveSegmentPath exposes the live (unsealed) segment's path, used by
// pkg/replication to include in-flight records when shipping WAL catch-up
// to a reconnecting replica.
func ActiveSegmentPath(walDir string) string {
	return activeSegmentPath(walDir)
}

// segmentFileName builds the spec 6 filename for a sealed segment.
func segmentFileName(timestamp int64, maxTxnID uint64) string {
	return fmt.Sprintf("wal_%d_%d.log", timestamp, maxTxnID)
}

// LoadManifest reads the manifest from walDir, returning an empty one if
// it doesn't exist yet.
func LoadManifest(walDir string) (*Manifest, error) {
	f, err := os.Open(manifestPath(walDir))
	if err != nil {
		if os.IsNotExist(err) {
			return &Manifest{Version: manifestVersion}, nil
		}
		return nil, err
	}
	defer f.Close()

	var m Manifest
	if err := json.NewDecoder(f).Decode(&m); err != nil {
		return nil, fmt.Errorf("durability: decode manifest: %w", err)
	}
	if m.Version == 0 {
		m.Version = manifestVersion
	}
	sort.Slice(m.Segments, func(i, j int) bool {
		return m.Segments[i].Timestamp < m.Segments[j].Timestamp
	})
	return &m, nil
}

// WriteManifest atomically (temp file + rename) persists m to walDir.
func WriteManifest(walDir string, m *Manifest) error {
	if m.Version == 0 {
		m.Version = manifestVersion
	}
	if err := os.MkdirAll(walDir, 0o755); err != nil {
		return err
	}

	tmp := manifestPath(walDir) + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(m); err != nil {
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
	return os.Rename(tmp, manifestPath(walDir))
}

// ListSegmentsLexicographic returns every sealed segment path in the
// manifest in lexicographic filename order, matching spec 4.7 recovery
// step 2 ("enumerate WAL files in lexicographic order"). Segment
// filenames begin with an unpadded Unix-seconds timestamp, which has a
// fixed ten-digit width for current dates, so lexicographic and
// chronological order coincide for segments sealed in different seconds.
func ListSegmentsLexicographic(walDir string) ([]Segment, error) {
	m, err := LoadManifest(walDir)
	if err != nil {
		return nil, err
	}
	segs := append([]Segment(nil), m.Segments...)
	sort.Slice(segs, func(i, j int) bool {
		return filepath.Base(segs[i].Path) < filepath.Base(segs[j].Path)
	})
	return segs, nil
}

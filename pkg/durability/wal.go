package durability

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// DefaultRotateSize is the active-segment size (bytes) past which Append
// rotates to a new sealed segment, in the absence of an explicit
// RotateSize on Writer.
const DefaultRotateSize = 64 * 1024 * 1024

// Writer appends framed records to the active WAL segment, rotating to a
// newly sealed file by size (spec 4.7: "WAL files are rotated by size or
// age"). One Writer serves one storage engine instance; callers
// synchronize their own commit ordering, but Writer itself is safe for
// concurrent Append calls.
type Writer struct {
	mu       sync.Mutex
	dir      string
	logger   *log.Logger
	rotate   int64
	active   *os.File
	size     int64
	maxTxnID uint64
	nowUnix  func() int64
}

// NewWriter opens (creating if needed) the active segment in dir.
func NewWriter(dir string, logger *log.Logger, nowUnix func() int64) (*Writer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("durability: create wal dir: %w", err)
	}
	f, err := os.OpenFile(activeSegmentPath(dir), os.O_CREATE|os.O_APPEND|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("durability: open active segment: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if logger == nil {
		logger = log.New(os.Stderr, "durability: ", log.LstdFlags)
	}
	if nowUnix == nil {
		nowUnix = func() int64 { return time.Now().Unix() }
	}
	return &Writer{
		dir:     dir,
		logger:  logger,
		rotate:  DefaultRotateSize,
		active:  f,
		size:    info.Size(),
		nowUnix: nowUnix,
	}, nil
}

// SetRotateSize overrides DefaultRotateSize.
func (w *Writer) SetRotateSize(n int64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.rotate = n
}

// Append writes one framed record, fsyncing before returning so a commit
// is durable once Append succeeds (spec I7). It rotates the active
// segment first if rotate size has been exceeded.
func (w *Writer) Append(recType RecordType, txnID uint64, payload any) error {
	buf, err := EncodeRecord(recType, txnID, payload)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.size > 0 && w.size+int64(len(buf)) > w.rotate {
		if err := w.rotateLocked(); err != nil {
			return err
		}
	}

	n, err := w.active.Write(buf)
	if err != nil {
		return fmt.Errorf("durability: append record: %w", err)
	}
	w.size += int64(n)
	if txnID > w.maxTxnID {
		w.maxTxnID = txnID
	}
	return w.active.Sync()
}

// rotateLocked seals the active segment under a spec-6 filename and opens
// a fresh active segment. Caller must hold w.mu.
func (w *Writer) rotateLocked() error {
	if w.size == 0 {
		return nil
	}
	if err := w.active.Close(); err != nil {
		return err
	}

	sealedName := segmentFileName(w.nowUnix(), w.maxTxnID)
	sealedPath := filepath.Join(w.dir, sealedName)
	if err := os.Rename(activeSegmentPath(w.dir), sealedPath); err != nil {
		return fmt.Errorf("durability: seal segment: %w", err)
	}

	m, err := LoadManifest(w.dir)
	if err != nil {
		return err
	}
	m.Segments = append(m.Segments, Segment{
		Timestamp: w.nowUnix(),
		MaxTxnID:  w.maxTxnID,
		SizeBytes: w.size,
		Path:      sealedPath,
	})
	if err := WriteManifest(w.dir, m); err != nil {
		return err
	}
	w.logger.Printf("sealed wal segment %s (%d bytes, max txn %d)", sealedName, w.size, w.maxTxnID)

	f, err := os.OpenFile(activeSegmentPath(w.dir), os.O_CREATE|os.O_APPEND|os.O_RDWR, 0o644)
	if err != nil {
		return err
	}
	w.active = f
	w.size = 0
	return nil
}

// Close seals the active segment's data to disk without rotating it out
// of place (a process restart resumes appending to the same active file).
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.active.Close()
}

// ReadAllRecords reads every well-formed record from path in order,
// stopping (without error) at the first truncated tail record, per spec
// 4.7's "self-framing so a partial tail can be detected and discarded".
func ReadAllRecords(path string) ([]Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var out []Record
	off := int64(0)
	for off < int64(len(data)) {
		rec, n, err := DecodeRecord(data[off:])
		if err == ErrTruncatedRecord {
			break
		}
		if err != nil {
			return out, fmt.Errorf("durability: reading %s at offset %d: %w", path, off, err)
		}
		out = append(out, rec)
		off += n
	}
	return out, nil
}

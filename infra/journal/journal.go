package journal

import (
	"errors"
	"fmt"
	"os"
	"sync"
)

type Config struct {
	Dir         string
	SegmentSize int64
	// SyncEveryWrite fsyncs after each Append.
	SyncEveryWrite bool
}

const defaultSegmentSize = 64 << 20

type Journal struct {
	mu       sync.Mutex
	dir      string
	segSize  int64
	syncEach bool
	current  *segment
	segIndex int
	lastSeq  uint64
}

// Open continues the newest segment in cfg.Dir, dropping a torn tail
// left by a crash, or starts segment 0 in an empty directory.
func Open(cfg Config) (*Journal, error) {
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, err
	}
	if cfg.SegmentSize <= 0 {
		cfg.SegmentSize = defaultSegmentSize
	}

	j := &Journal{dir: cfg.Dir, segSize: cfg.SegmentSize, syncEach: cfg.SyncEveryWrite}

	files, err := segments(cfg.Dir)
	if err != nil {
		return nil, err
	}
	for _, path := range files {
		maxSeq, _, err := scanSegment(path)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", path, err)
		}
		if maxSeq > j.lastSeq {
			j.lastSeq = maxSeq
		}
	}
	if n := len(files); n > 0 {
		last := files[n-1]
		if j.segIndex, err = segmentIndex(last); err != nil {
			return nil, fmt.Errorf("segment name %s: %w", last, err)
		}
		_, end, err := scanSegment(last)
		if err != nil {
			return nil, err
		}
		if err := os.Truncate(last, end); err != nil {
			return nil, err
		}
	}

	if j.current, err = openSegment(cfg.Dir, j.segIndex); err != nil {
		return nil, err
	}
	return j, nil
}

// LastSeq is the highest sequence written so far, 0 for an empty journal.
func (j *Journal) LastSeq() uint64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.lastSeq
}

// Append writes recs as one write. Sequences must increase. Either every
// record lands or, on error, the segment is cut back to where it was.
func (j *Journal) Append(recs ...*Record) error {
	if len(recs) == 0 {
		return nil
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	last := j.lastSeq
	size := 0
	for _, r := range recs {
		if len(r.Data) > MaxPayload {
			return fmt.Errorf("journal payload %d bytes exceeds %d", len(r.Data), MaxPayload)
		}
		if r.Seq <= last {
			return fmt.Errorf("journal seq %d not after %d", r.Seq, last)
		}
		last = r.Seq
		size += headerSize + len(r.Data) + crcSize
	}

	buf := make([]byte, 0, size)
	for _, r := range recs {
		buf = append(buf, encode(r)...)
	}
	if err := j.current.append(buf); err != nil {
		return err
	}
	j.lastSeq = last

	if j.syncEach {
		if err := j.current.sync(); err != nil {
			return err
		}
	}
	if j.current.offset >= j.segSize {
		return j.rotate()
	}
	return nil
}

func (j *Journal) rotate() error {
	if err := j.current.sync(); err != nil {
		return err
	}
	_ = j.current.close()
	j.segIndex++

	seg, err := openSegment(j.dir, j.segIndex)
	if err != nil {
		return err
	}
	j.current = seg
	return nil
}

func (j *Journal) Sync() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.current.sync()
}

func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if err := j.current.sync(); err != nil {
		_ = j.current.close()
		return err
	}
	return j.current.close()
}

// TruncateBefore removes closed segments whose records all have a
// sequence at or below seq. Segments that fail to scan are kept and
// reported in err.
func (j *Journal) TruncateBefore(seq uint64) (removed int, err error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	files, err := segments(j.dir)
	if err != nil {
		return 0, err
	}
	var errs []error
	active := segmentPath(j.dir, j.segIndex)
	for _, path := range files {
		if path == active {
			continue
		}
		maxSeq, _, err := scanSegment(path)
		if err != nil {
			errs = append(errs, fmt.Errorf("scan %s: %w", path, err))
			continue
		}
		if maxSeq <= seq {
			if err := os.Remove(path); err != nil {
				return removed, errors.Join(append(errs, err)...)
			}
			removed++
		}
	}
	return removed, errors.Join(errs...)
}

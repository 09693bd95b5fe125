package journal

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
)

const segmentGlob = "segment-*.log"

type segment struct {
	file   *os.File
	offset int64
}

func segmentPath(dir string, index int) string {
	return filepath.Join(dir, fmt.Sprintf("segment-%06d.log", index))
}

func openSegment(dir string, index int) (*segment, error) {
	f, err := os.OpenFile(segmentPath(dir, index), os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return &segment{file: f, offset: st.Size()}, nil
}

// append writes b whole or not at all: a short write is truncated away.
func (s *segment) append(b []byte) error {
	n, err := s.file.Write(b)
	if err == nil {
		s.offset += int64(n)
		return nil
	}
	if n > 0 {
		if terr := s.file.Truncate(s.offset); terr != nil {
			return errors.Join(err, fmt.Errorf("roll back segment: %w", terr))
		}
	}
	return err
}

func (s *segment) sync() error  { return s.file.Sync() }
func (s *segment) close() error { return s.file.Close() }

// segments lists segment files in index order.
func segments(dir string) ([]string, error) {
	files, err := filepath.Glob(filepath.Join(dir, segmentGlob))
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

func segmentIndex(path string) (int, error) {
	var idx int
	_, err := fmt.Sscanf(filepath.Base(path), "segment-%06d.log", &idx)
	return idx, err
}

// scanSegment returns the highest sequence in a segment and the offset
// just past its last whole record.
func scanSegment(path string) (maxSeq uint64, end int64, err error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()

	cr := &countingReader{r: f}
	for {
		rec, err := readRecord(cr)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return maxSeq, end, nil
			}
			return maxSeq, end, err
		}
		if rec.Seq > maxSeq {
			maxSeq = rec.Seq
		}
		end = cr.n
	}
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

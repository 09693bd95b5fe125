package journal

import (
	"errors"
	"fmt"
	"io"
	"os"
)

type ReplayHandler func(*Record) error

// Replay feeds every record in dir to fn in sequence order. A torn
// frame at the end of the newest segment ends replay without error.
func Replay(dir string, fn ReplayHandler) (lastSeq uint64, err error) {
	files, err := segments(dir)
	if err != nil {
		return 0, err
	}

	for i, path := range files {
		last := i == len(files)-1
		if lastSeq, err = replaySegment(path, last, lastSeq, fn); err != nil {
			return lastSeq, err
		}
	}
	return lastSeq, nil
}

func replaySegment(path string, last bool, lastSeq uint64, fn ReplayHandler) (uint64, error) {
	f, err := os.Open(path)
	if err != nil {
		return lastSeq, err
	}
	defer f.Close()

	for {
		rec, err := readRecord(f)
		switch {
		case errors.Is(err, io.EOF):
			return lastSeq, nil
		case errors.Is(err, io.ErrUnexpectedEOF) && last:
			return lastSeq, nil
		case err != nil:
			return lastSeq, fmt.Errorf("%s: %w", path, err)
		}

		if rec.Seq <= lastSeq {
			return lastSeq, fmt.Errorf("%w: non-monotonic seq %d after %d", ErrCorrupt, rec.Seq, lastSeq)
		}
		lastSeq = rec.Seq

		if err := fn(rec); err != nil {
			return lastSeq, err
		}
	}
}

package journal

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
)

// Frame: [type:1][seq:8][time:8][len:4][payload][crc:4]
const (
	headerSize = 1 + 8 + 8 + 4
	crcSize    = 4
	// MaxPayload bounds a single record; the largest account is an
	// order tree at a little over 61 KiB.
	MaxPayload = 1 << 20
)

var ErrCorrupt = errors.New("journal record corrupt")

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

func encode(r *Record) []byte {
	n := uint32(len(r.Data))
	buf := make([]byte, headerSize+int(n)+crcSize)

	buf[0] = byte(r.Type)
	binary.BigEndian.PutUint64(buf[1:9], r.Seq)
	binary.BigEndian.PutUint64(buf[9:17], uint64(r.Time))
	binary.BigEndian.PutUint32(buf[17:21], n)
	copy(buf[headerSize:], r.Data)

	sum := crc32.Checksum(buf[:headerSize+int(n)], castagnoli)
	binary.BigEndian.PutUint32(buf[headerSize+int(n):], sum)
	return buf
}

// readRecord returns io.EOF at a clean end and io.ErrUnexpectedEOF when
// the last frame was cut short by a crash.
func readRecord(r io.Reader) (*Record, error) {
	header := make([]byte, headerSize)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, err
	}

	n := binary.BigEndian.Uint32(header[17:21])
	if n > MaxPayload {
		return nil, fmt.Errorf("%w: payload length %d", ErrCorrupt, n)
	}

	body := make([]byte, int(n)+crcSize)
	if _, err := io.ReadFull(r, body); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}

	payload := body[:n]
	h := crc32.New(castagnoli)
	h.Write(header)
	h.Write(payload)
	if h.Sum32() != binary.BigEndian.Uint32(body[n:]) {
		return nil, fmt.Errorf("%w: crc mismatch at seq %d", ErrCorrupt, binary.BigEndian.Uint64(header[1:9]))
	}

	return &Record{
		Type: RecordType(header[0]),
		Seq:  binary.BigEndian.Uint64(header[1:9]),
		Time: int64(binary.BigEndian.Uint64(header[9:17])),
		Data: payload,
	}, nil
}

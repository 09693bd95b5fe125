package layout

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

const (
	// Envelope is the account discriminator the program prepends to
	// every account it owns. Callers pass it as the decode offset.
	Envelope = 8

	// Precision scales every price and amount stored on chain.
	Precision = 1_000_000

	MaxNodes  = 1_000
	MaxFills  = 64
	MaxDeltas = 64

	PublicKeySize = solana.PublicKeyLength
)

// ErrLayout is matched by every decode failure.
var ErrLayout = errors.New("layout error")

// Error describes where a buffer failed to decode.
type Error struct {
	Struct string
	Field  string
	Offset int
	Reason string
}

func (e *Error) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("layout: %s at offset %d: %s", e.Struct, e.Offset, e.Reason)
	}
	return fmt.Sprintf("layout: %s.%s at offset %d: %s", e.Struct, e.Field, e.Offset, e.Reason)
}

func (e *Error) Unwrap() error { return ErrLayout }

// window returns buf[offset:offset+size]. With exact set, trailing bytes
// after the payload are rejected too.
func window(buf []byte, offset, size int, name string, exact bool) ([]byte, error) {
	if offset < 0 {
		return nil, &Error{Struct: name, Offset: offset, Reason: "negative offset"}
	}
	have := len(buf) - offset
	if have < size {
		return nil, &Error{
			Struct: name,
			Offset: offset,
			Reason: fmt.Sprintf("need %d bytes, have %d", size, max(have, 0)),
		}
	}
	if exact && have != size {
		return nil, &Error{
			Struct: name,
			Offset: offset,
			Reason: fmt.Sprintf("payload is %d bytes, want exactly %d", have, size),
		}
	}
	return buf[offset : offset+size], nil
}

func u64(b []byte, off int) uint64 {
	return binary.LittleEndian.Uint64(b[off : off+8])
}

func putU64(b []byte, off int, v uint64) {
	binary.LittleEndian.PutUint64(b[off:off+8], v)
}

func key(b []byte, off int) solana.PublicKey {
	return solana.PublicKeyFromBytes(b[off : off+PublicKeySize])
}

func putKey(b []byte, off int, k solana.PublicKey) {
	copy(b[off:off+PublicKeySize], k[:])
}

// WithEnvelope prefixes payload with an account discriminator, producing
// the bytes an account fetch would return.
func WithEnvelope(disc [Envelope]byte, payload []byte) []byte {
	out := make([]byte, Envelope+len(payload))
	copy(out, disc[:])
	copy(out[Envelope:], payload)
	return out
}

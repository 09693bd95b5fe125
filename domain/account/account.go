// Package account carries raw account updates between the feeds that
// produce them and the snapshot that decodes them.
//
// Updates travel in protobuf wire format, written without generated
// code:
//
//	message Update {
//	  bytes  key  = 1; // omitted in the value form
//	  uint64 slot = 2;
//	  bytes  data = 3;
//	}
//
// Unknown fields are skipped, so new fields can be added without breaking
// older readers of the journal or the topic.
package account

import (
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"google.golang.org/protobuf/encoding/protowire"
)

// Update is the content of one account as of Slot.
type Update struct {
	Key  solana.PublicKey
	Slot uint64
	Data []byte
}

func (u Update) String() string {
	return fmt.Sprintf("%s@%d(%dB)", u.Key, u.Slot, len(u.Data))
}

const (
	fieldKey  protowire.Number = 1
	fieldSlot protowire.Number = 2
	fieldData protowire.Number = 3
)

var ErrMalformed = errors.New("malformed account update")

// Encode marshals u including its key.
func (u Update) Encode() []byte {
	b := make([]byte, 0, protowire.SizeTag(fieldKey)+protowire.SizeBytes(solana.PublicKeyLength)+u.valueSize())
	b = protowire.AppendTag(b, fieldKey, protowire.BytesType)
	b = protowire.AppendBytes(b, u.Key[:])
	return u.appendValue(b)
}

// EncodeValue marshals u without its key, for stores and topics that
// carry the key next to the value.
func (u Update) EncodeValue() []byte {
	return u.appendValue(make([]byte, 0, u.valueSize()))
}

func (u Update) valueSize() int {
	return protowire.SizeTag(fieldSlot) + protowire.SizeVarint(u.Slot) +
		protowire.SizeTag(fieldData) + protowire.SizeBytes(len(u.Data))
}

func (u Update) appendValue(b []byte) []byte {
	b = protowire.AppendTag(b, fieldSlot, protowire.VarintType)
	b = protowire.AppendVarint(b, u.Slot)
	b = protowire.AppendTag(b, fieldData, protowire.BytesType)
	return protowire.AppendBytes(b, u.Data)
}

// Decode reverses Encode. Data aliases b.
func Decode(b []byte) (Update, error) {
	u, hasKey, err := unmarshal(b)
	if err != nil {
		return Update{}, err
	}
	if !hasKey {
		return Update{}, fmt.Errorf("%w: missing key", ErrMalformed)
	}
	return u, nil
}

// DecodeValue reverses EncodeValue for a value stored under key. A key
// inside the value must agree with it.
func DecodeValue(key solana.PublicKey, v []byte) (Update, error) {
	u, hasKey, err := unmarshal(v)
	if err != nil {
		return Update{}, err
	}
	if hasKey && !u.Key.Equals(key) {
		return Update{}, fmt.Errorf("%w: value key %s stored under %s", ErrMalformed, u.Key, key)
	}
	u.Key = key
	return u, nil
}

func unmarshal(b []byte) (u Update, hasKey bool, err error) {
	var hasSlot, hasData bool
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return Update{}, false, fmt.Errorf("%w: %v", ErrMalformed, protowire.ParseError(n))
		}
		b = b[n:]

		switch {
		case num == fieldKey && typ == protowire.BytesType:
			v, m := protowire.ConsumeBytes(b)
			if m < 0 {
				return Update{}, false, fmt.Errorf("%w: key: %v", ErrMalformed, protowire.ParseError(m))
			}
			if len(v) != solana.PublicKeyLength {
				return Update{}, false, fmt.Errorf("%w: key is %d bytes", ErrMalformed, len(v))
			}
			u.Key, hasKey = solana.PublicKeyFromBytes(v), true
			n = m
		case num == fieldSlot && typ == protowire.VarintType:
			v, m := protowire.ConsumeVarint(b)
			if m < 0 {
				return Update{}, false, fmt.Errorf("%w: slot: %v", ErrMalformed, protowire.ParseError(m))
			}
			u.Slot, hasSlot = v, true
			n = m
		case num == fieldData && typ == protowire.BytesType:
			v, m := protowire.ConsumeBytes(b)
			if m < 0 {
				return Update{}, false, fmt.Errorf("%w: data: %v", ErrMalformed, protowire.ParseError(m))
			}
			u.Data, hasData = v, true
			n = m
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return Update{}, false, fmt.Errorf("%w: field %d: %v", ErrMalformed, num, protowire.ParseError(n))
			}
		}
		b = b[n:]
	}
	if !hasSlot || !hasData {
		return Update{}, false, fmt.Errorf("%w: missing slot or data", ErrMalformed)
	}
	return u, hasKey, nil
}

const fieldBatchUpdate protowire.Number = 1

// EncodeBatch marshals updates as a repeated Update field, so a set of
// updates applied together travels as one payload.
func EncodeBatch(updates []Update) []byte {
	var b []byte
	for _, u := range updates {
		b = protowire.AppendTag(b, fieldBatchUpdate, protowire.BytesType)
		b = protowire.AppendBytes(b, u.Encode())
	}
	return b
}

// DecodeBatch reverses EncodeBatch. Data fields alias b.
func DecodeBatch(b []byte) ([]Update, error) {
	var out []Update
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, protowire.ParseError(n))
		}
		b = b[n:]
		if num != fieldBatchUpdate || typ != protowire.BytesType {
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, fmt.Errorf("%w: field %d: %v", ErrMalformed, num, protowire.ParseError(n))
			}
			b = b[n:]
			continue
		}
		v, m := protowire.ConsumeBytes(b)
		if m < 0 {
			return nil, fmt.Errorf("%w: update %d: %v", ErrMalformed, len(out), protowire.ParseError(m))
		}
		u, err := Decode(v)
		if err != nil {
			return nil, fmt.Errorf("update %d: %w", len(out), err)
		}
		out = append(out, u)
		b = b[m:]
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: empty batch", ErrMalformed)
	}
	return out, nil
}

// Package journal is an append-only, segmented log of the account
// updates a quoter applied. Replaying it rebuilds the exact sequence of
// snapshots the quoter served.
package journal

import (
	"fmt"
	"time"

	"gigadex/domain/account"
)

type RecordType uint8

const (
	// RecordMarket carries the market account the quoter was built from.
	RecordMarket RecordType = iota + 1
	// RecordAccount carries one applied account update.
	RecordAccount
	// RecordBatch carries updates that were published as one snapshot.
	RecordBatch
)

func (t RecordType) String() string {
	switch t {
	case RecordMarket:
		return "market"
	case RecordAccount:
		return "account"
	case RecordBatch:
		return "batch"
	default:
		return "unknown"
	}
}

type Record struct {
	Type RecordType
	Seq  uint64
	Time int64
	Data []byte
}

func NewRecord(t RecordType, seq uint64, u account.Update) *Record {
	return &Record{
		Type: t,
		Seq:  seq,
		Time: time.Now().UnixNano(),
		Data: u.Encode(),
	}
}

// NewBatchRecord frames updates that must replay together.
func NewBatchRecord(seq uint64, updates []account.Update) *Record {
	return &Record{
		Type: RecordBatch,
		Seq:  seq,
		Time: time.Now().UnixNano(),
		Data: account.EncodeBatch(updates),
	}
}

// Update decodes the account update carried by a market or account
// record.
func (r *Record) Update() (account.Update, error) {
	if r.Type == RecordBatch {
		return account.Update{}, fmt.Errorf("journal seq %d: batch record holds several updates", r.Seq)
	}
	return account.Decode(r.Data)
}

// Updates decodes every account update carried by r.
func (r *Record) Updates() ([]account.Update, error) {
	if r.Type == RecordBatch {
		return account.DecodeBatch(r.Data)
	}
	u, err := account.Decode(r.Data)
	if err != nil {
		return nil, err
	}
	return []account.Update{u}, nil
}

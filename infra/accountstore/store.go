// Package accountstore keeps the last known content of every tracked
// account in pebble so a restart can quote before the first RPC round
// trip completes.
package accountstore

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"
	"github.com/gagliardetto/solana-go"

	"gigadex/domain/account"
)

var ErrNotFound = errors.New("account not stored")

var (
	prefix = []byte("account/")
	upper  = []byte("account/~")
)

type Store struct {
	db *pebble.DB
}

func Open(dir string) (*Store, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open account store %s: %w", dir, err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// PutBatch stores updates atomically. An update older than the slot
// already stored for its account is left out.
func (s *Store) PutBatch(updates []account.Update) error {
	b := s.db.NewBatch()
	defer b.Close()
	for _, u := range updates {
		cur, err := s.Get(u.Key)
		switch {
		case errors.Is(err, ErrNotFound):
		case err != nil:
			return err
		case cur.Slot > u.Slot:
			continue
		}
		if err := b.Set(keyFor(u.Key), u.EncodeValue(), nil); err != nil {
			return err
		}
	}
	return b.Commit(pebble.Sync)
}

func (s *Store) Get(key solana.PublicKey) (account.Update, error) {
	val, closer, err := s.db.Get(keyFor(key))
	if errors.Is(err, pebble.ErrNotFound) {
		return account.Update{}, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err != nil {
		return account.Update{}, err
	}
	defer closer.Close()

	// val is only valid until closer.Close
	u, err := account.DecodeValue(key, bytes.Clone(val))
	if err != nil {
		return account.Update{}, fmt.Errorf("account %s: %w", key, err)
	}
	return u, nil
}

// Scan visits every stored account in key order.
func (s *Store) Scan(fn func(account.Update) error) error {
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: upper,
	})
	if err != nil {
		return err
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		key, err := parseKey(iter.Key())
		if err != nil {
			return err
		}
		u, err := account.DecodeValue(key, bytes.Clone(iter.Value()))
		if err != nil {
			return fmt.Errorf("account %s: %w", key, err)
		}
		if err := fn(u); err != nil {
			return err
		}
	}
	return iter.Error()
}

// Retain deletes every stored account not in keep, such as the trees of
// a market the quoter no longer serves.
func (s *Store) Retain(keep []solana.PublicKey) (removed int, err error) {
	b := s.db.NewBatch()
	defer b.Close()
	err = s.Scan(func(u account.Update) error {
		for _, k := range keep {
			if u.Key.Equals(k) {
				return nil
			}
		}
		removed++
		return b.Delete(keyFor(u.Key), nil)
	})
	if err != nil {
		return 0, err
	}
	if removed == 0 {
		return 0, nil
	}
	return removed, b.Commit(pebble.Sync)
}

func keyFor(key solana.PublicKey) []byte {
	return append(bytes.Clone(prefix), key.String()...)
}

func parseKey(b []byte) (solana.PublicKey, error) {
	return solana.PublicKeyFromBase58(string(bytes.TrimPrefix(b, prefix)))
}

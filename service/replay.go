package service

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"gigadex/infra/journal"
	"gigadex/snapshot"
)

var ErrNoMarketRecord = errors.New("journal holds no market record")

var errFound = errors.New("found")

// ReplayJournal rebuilds a quoter from the journal in dir. The market
// comes from the first market record. base, if set, is applied before
// the journal so a truncated journal continues from the persisted
// accounts. each, if set, runs after every account record.
//
// The returned service does not journal; deps.Journal is ignored.
func ReplayJournal(dir string, deps Deps, base snapshot.Source, each func(*journal.Record, *QuoteService) error) (*QuoteService, uint64, error) {
	deps.Journal = nil

	var market *journal.Record
	_, err := journal.Replay(dir, func(r *journal.Record) error {
		if r.Type == journal.RecordMarket {
			market = r
			return errFound
		}
		return nil
	})
	if err != nil && !errors.Is(err, errFound) {
		return nil, 0, err
	}
	if market == nil {
		return nil, 0, ErrNoMarketRecord
	}
	mu, err := market.Update()
	if err != nil {
		return nil, 0, err
	}

	s, err := FromMarketAccount(mu.Key, mu.Data, deps)
	if err != nil {
		return nil, 0, err
	}
	if base != nil {
		if _, err := s.Restore(base); err != nil {
			return nil, 0, err
		}
	}

	lastSeq, err := journal.Replay(dir, func(r *journal.Record) error {
		us, err := r.Updates()
		if err != nil {
			return fmt.Errorf("record %d: %w", r.Seq, err)
		}
		switch r.Type {
		case journal.RecordMarket:
			if !us[0].Key.Equals(s.key) {
				return fmt.Errorf("record %d: market %s in journal of %s", r.Seq, us[0].Key, s.key)
			}
			return nil
		case journal.RecordAccount, journal.RecordBatch:
			if _, err := s.Apply("journal", us...); err != nil {
				return fmt.Errorf("record %d: %w", r.Seq, err)
			}
		default:
			return fmt.Errorf("record %d: unknown type %d", r.Seq, r.Type)
		}
		if each != nil {
			return each(r, s)
		}
		return nil
	})
	if err != nil {
		return nil, lastSeq, err
	}

	s.log.Info("journal replayed", zap.String("dir", dir), zap.Uint64("last_seq", lastSeq))
	return s, lastSeq, nil
}

// Restore applies the persisted copy of every tracked account found in
// src.
func (s *QuoteService) Restore(src snapshot.Source) (int, error) {
	updates, err := snapshot.Load(src, s.keys)
	if err != nil {
		return 0, fmt.Errorf("load persisted accounts: %w", err)
	}
	if len(updates) == 0 {
		return 0, nil
	}
	return s.Apply("store", updates...)
}

package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"gigadex/snapshot"
)

type Truncater interface {
	TruncateBefore(seq uint64) (int, error)
}

// StartSnapshotJob persists the served accounts every interval and drops
// journal segments the persisted copy already covers. t may be nil.
func (s *QuoteService) StartSnapshotJob(ctx context.Context, w *snapshot.Writer, t Truncater, interval time.Duration) {
	go func() {
		tick := time.NewTicker(interval)
		defer tick.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-tick.C:
				s.persist(w, t)
			}
		}
	}()
}

func (s *QuoteService) persist(w *snapshot.Writer, t Truncater) {
	st := s.store.Load()
	wrote, err := w.Write(st)
	if err != nil {
		s.log.Warn("persist snapshot", zap.Error(err))
		return
	}
	if !wrote || t == nil || s.journal == nil || st.JournalSeq == 0 {
		return
	}

	removed, err := t.TruncateBefore(st.JournalSeq)
	if err != nil {
		s.log.Warn("truncate journal", zap.Uint64("seq", st.JournalSeq), zap.Error(err))
		return
	}
	if removed == 0 {
		return
	}
	s.log.Info("journal truncated", zap.Int("segments", removed), zap.Uint64("seq", st.JournalSeq))

	// keep a market record in what survives
	_, err = s.store.Update(func(prev *snapshot.State) (*snapshot.State, error) {
		return prev, s.recordMarket()
	})
	if err != nil {
		s.log.Warn("journal market", zap.Error(err))
	}
}

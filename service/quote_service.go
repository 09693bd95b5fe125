package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"gigadex/domain/account"
	"gigadex/domain/layout"
	"gigadex/domain/orderbook"
	"gigadex/domain/quote"
	"gigadex/infra/journal"
	"gigadex/infra/metrics"
	"gigadex/infra/pda"
	"gigadex/infra/sequence"
	"gigadex/snapshot"
)

const (
	Label = "GigaDex"
	// AccountsLen is the account budget a swap through this market needs.
	AccountsLen = 32
)

var ErrMissingAccount = errors.New("account missing from update")

// Journal records applied updates.
type Journal interface {
	Append(...*journal.Record) error
	LastSeq() uint64
}

type Deps struct {
	Log     *zap.Logger
	Metrics *metrics.Metrics
	// Journal is optional.
	Journal Journal
}

type QuoteService struct {
	key    solana.PublicKey
	raw    []byte
	market layout.Market
	keys   snapshot.Keys
	auth   solana.PublicKey

	store   *snapshot.Store
	journal Journal
	seq     *sequence.Sequencer

	log     *zap.Logger
	metrics *metrics.Metrics
}

// FromMarketAccount builds a quoter for the market account key holding
// data. It serves no quotes until every account in AccountsToUpdate has
// been applied.
func FromMarketAccount(key solana.PublicKey, data []byte, deps Deps) (*QuoteService, error) {
	m, err := layout.DecodeMarket(data, layout.Envelope)
	if err != nil {
		return nil, fmt.Errorf("market %s: %w", key, err)
	}
	feeMod, err := pda.FeeMod(key)
	if err != nil {
		return nil, err
	}
	additional, err := pda.Additional(key)
	if err != nil {
		return nil, err
	}
	auth, err := pda.MarketAuthority(key)
	if err != nil {
		return nil, err
	}

	if deps.Log == nil {
		deps.Log = zap.NewNop()
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.New(prometheus.NewRegistry())
	}

	s := &QuoteService{
		key:    key,
		raw:    data,
		market: m,
		keys: snapshot.Keys{
			Asks:       m.Asks,
			Bids:       m.Bids,
			FeeMod:     feeMod,
			Additional: additional,
		},
		auth:    auth,
		store:   snapshot.NewStore(sequence.New(0)),
		journal: deps.Journal,
		log:     deps.Log.With(zap.Stringer("market", key)),
		metrics: deps.Metrics,
	}

	if s.journal != nil {
		s.seq = sequence.New(s.journal.LastSeq())
		if err := s.recordMarket(); err != nil {
			return nil, err
		}
	}

	s.log.Info("market loaded",
		zap.Stringer("mint", m.Mint),
		zap.Stringer("quote_mint", m.QuoteMint),
		zap.Stringer("asks", m.Asks),
		zap.Stringer("bids", m.Bids),
	)
	return s, nil
}

func (s *QuoteService) Label() string               { return Label }
func (s *QuoteService) ProgramID() solana.PublicKey { return pda.ProgramID }
func (s *QuoteService) Key() solana.PublicKey       { return s.key }
func (s *QuoteService) Market() layout.Market       { return s.market }
func (s *QuoteService) Keys() snapshot.Keys         { return s.keys }
func (s *QuoteService) AccountsLen() int            { return AccountsLen }

// ReserveMints are the two mints the market trades.
func (s *QuoteService) ReserveMints() []solana.PublicKey {
	return []solana.PublicKey{s.market.Mint, s.market.QuoteMint}
}

// AccountsToUpdate lists the accounts a quote depends on, in the order
// asks, bids, fee schedule, additional.
func (s *QuoteService) AccountsToUpdate() []solana.PublicKey {
	return s.keys.List()
}

// Tracks reports whether key is one of AccountsToUpdate.
func (s *QuoteService) Tracks(key solana.PublicKey) bool {
	_, ok := s.keys.Role(key)
	return ok
}

// Snapshot is the State quotes are currently served from, nil before
// the first update.
func (s *QuoteService) Snapshot() *snapshot.State {
	return s.store.Load()
}

func (s *QuoteService) Ready() bool {
	return s.store.Load().Ready()
}

// Update replaces all tracked accounts at once. Every account in
// AccountsToUpdate must be present. Either all four decode and a new
// snapshot is published, or nothing changes.
func (s *QuoteService) Update(accounts map[solana.PublicKey][]byte) error {
	slot := s.store.Load().Slot()
	updates := make([]account.Update, 0, len(accounts))
	for _, key := range s.keys.List() {
		data, ok := accounts[key]
		if !ok {
			return fmt.Errorf("%w: %s", ErrMissingAccount, key)
		}
		updates = append(updates, account.Update{Key: key, Slot: slot, Data: data})
	}
	_, err := s.Apply("update", updates...)
	return err
}

// Apply publishes a snapshot with updates applied on top of the current
// one. source labels metrics and logs. Stale updates are skipped and
// updates repeating the bytes already held only advance slots; a batch
// that fails to decode is rejected whole. The changed updates are
// journaled as one record before the snapshot is published, so a failed
// append publishes nothing and leaves nothing to replay.
func (s *QuoteService) Apply(source string, updates ...account.Update) (applied int, err error) {
	st, err := s.store.Update(func(prev *snapshot.State) (*snapshot.State, error) {
		changed := updates[:0:0]
		for _, u := range updates {
			switch {
			case prev.IsStale(s.keys, u):
				s.metrics.UpdatesStale.Inc()
				s.log.Debug("stale update skipped", zap.Stringer("account", u.Key), zap.Uint64("slot", u.Slot))
			case prev.IsUnchanged(s.keys, u):
				s.metrics.UpdatesUnchanged.Inc()
			default:
				changed = append(changed, u)
			}
		}

		next, n, err := snapshot.Apply(prev, s.keys, updates...)
		if err != nil {
			return nil, err
		}
		applied = n
		if n == 0 {
			return next, nil
		}
		if err := s.record(changed); err != nil {
			return nil, err
		}
		if s.seq != nil {
			next.JournalSeq = s.seq.Current()
		}
		return next, nil
	})
	if err != nil {
		s.metrics.DecodeErrors.WithLabelValues(source).Inc()
		s.log.Warn("account update rejected", zap.String("source", source), zap.Error(err))
		return 0, err
	}
	if applied == 0 {
		return 0, nil
	}

	s.metrics.UpdatesApplied.WithLabelValues(source).Add(float64(applied))
	s.observe(st)
	return applied, nil
}

func (s *QuoteService) recordMarket() error {
	rec := journal.NewRecord(journal.RecordMarket, s.seq.Next(), account.Update{Key: s.key, Data: s.raw})
	if err := s.journal.Append(rec); err != nil {
		return fmt.Errorf("journal market: %w", err)
	}
	return nil
}

func (s *QuoteService) record(updates []account.Update) error {
	if s.journal == nil || len(updates) == 0 {
		return nil
	}
	if err := s.journal.Append(journal.NewBatchRecord(s.seq.Next(), updates)); err != nil {
		return fmt.Errorf("journal %d updates: %w", len(updates), err)
	}
	return nil
}

func (s *QuoteService) observe(st *snapshot.State) {
	s.metrics.Generation.Set(float64(st.Generation))
	if !st.Ready() {
		s.log.Info("snapshot incomplete", zap.Uint64("generation", st.Generation), zap.Stringers("missing", st.Missing()))
		return
	}
	top, err := st.Top()
	if err != nil {
		return
	}
	s.metrics.BestPrice.WithLabelValues(orderbook.Bid.String()).Set(float64(top.BestBid))
	s.metrics.BestPrice.WithLabelValues(orderbook.Ask.String()).Set(float64(top.BestAsk))
	s.log.Debug("snapshot published",
		zap.Uint64("generation", st.Generation),
		zap.Uint64("slot", st.Slot()),
		zap.Uint64("best_bid", top.BestBid),
		zap.Uint64("best_ask", top.BestAsk),
	)
}

// Quote prices req against the current snapshot.
func (s *QuoteService) Quote(req quote.Request) (quote.Response, error) {
	start := time.Now()
	side := "unknown"
	switch {
	case req.InputMint.Equals(s.market.QuoteMint):
		side = "buy"
	case req.InputMint.Equals(s.market.Mint):
		side = "sell"
	}

	resp, err := s.quote(req)
	switch {
	case err != nil:
		s.metrics.ObserveQuote(side, "error", start)
		s.log.Debug("quote failed", zap.Stringer("input_mint", req.InputMint), zap.Uint64("in", req.InAmount), zap.Error(err))
	case resp.NotEnoughLiquidity:
		s.metrics.ObserveQuote(side, "no_liquidity", start)
	default:
		s.metrics.ObserveQuote(side, "ok", start)
	}
	return resp, err
}

func (s *QuoteService) quote(req quote.Request) (quote.Response, error) {
	st := s.store.Load()
	if !st.Ready() {
		return quote.Response{}, snapshot.ErrNotReady
	}
	book := quote.Book{
		Market: s.market,
		Asks:   st.Asks,
		Bids:   st.Bids,
		FeeMod: st.FeeMod,
	}
	return book.Compute(req)
}

type TopOfBook struct {
	orderbook.Top
	Generation uint64
	Slot       uint64
}

func (s *QuoteService) TopOfBook() (TopOfBook, error) {
	st := s.store.Load()
	top, err := st.Top()
	if err != nil {
		return TopOfBook{}, err
	}
	return TopOfBook{Top: top, Generation: st.Generation, Slot: st.Slot()}, nil
}

package service

import (
	"errors"
	"sync"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"gigadex/domain/account"
	"gigadex/domain/layout"
	"gigadex/domain/orderbook/orderbooktest"
	"gigadex/domain/quote"
	"gigadex/infra/accountstore"
	"gigadex/infra/journal"
	"gigadex/infra/metrics"
	"gigadex/infra/pda"
	"gigadex/snapshot"
)

const P = layout.Precision

type ob = orderbooktest.Order

type fixture struct {
	key    solana.PublicKey
	market layout.Market
	data   []byte
}

func newFixture() fixture {
	m := layout.Market{
		Mint:      solana.NewWallet().PublicKey(),
		Balances:  solana.NewWallet().PublicKey(),
		WsolVault: solana.NewWallet().PublicKey(),
		LotVault:  solana.NewWallet().PublicKey(),
		Asks:      solana.NewWallet().PublicKey(),
		Bids:      solana.NewWallet().PublicKey(),
		QuoteMint: solana.SolMint,
	}
	return fixture{key: solana.NewWallet().PublicKey(), market: m, data: orderbooktest.MarketData(m)}
}

func (f fixture) service(t *testing.T, j Journal) *QuoteService {
	t.Helper()
	s, err := FromMarketAccount(f.key, f.data, Deps{
		Log:     zaptest.NewLogger(t),
		Metrics: metrics.New(prometheus.NewRegistry()),
		Journal: j,
	})
	require.NoError(t, err)
	return s
}

var (
	royalty  = solana.MustPublicKeyFromBase58("7xKXtg2CW87d97TXJSDpbD5jBkheTqA83TZRuJosgAsU")
	receiver = solana.MustPublicKeyFromBase58("9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM")
)

// accounts is a full set with asks at ask and bids at ask-1.
func (f fixture) accounts(t *testing.T, s *QuoteService, ask uint64) map[solana.PublicKey][]byte {
	t.Helper()
	k := s.Keys()
	return map[solana.PublicKey][]byte{
		k.Asks:       orderbooktest.TreeData(true, ob{Price: ask, Amount: 10 * P}),
		k.Bids:       orderbooktest.TreeData(false, ob{Price: ask - 1, Amount: 10 * P}),
		k.FeeMod:     orderbooktest.FeeModData(layout.FeeMod{BaseFeeBp: 100, CollectionRoyaltyAddress: royalty}),
		k.Additional: orderbooktest.AdditionalData(layout.Additional{QuoteMint: solana.SolMint, FeeReceiverWallet: receiver}),
	}
}

func TestFromMarketAccount(t *testing.T) {
	f := newFixture()
	s := f.service(t, nil)

	assert.Equal(t, "GigaDex", s.Label())
	assert.Equal(t, pda.ProgramID, s.ProgramID())
	assert.Equal(t, f.key, s.Key())
	assert.Equal(t, 32, s.AccountsLen())
	assert.Equal(t, []solana.PublicKey{f.market.Mint, f.market.QuoteMint}, s.ReserveMints())

	feeMod, err := pda.FeeMod(f.key)
	require.NoError(t, err)
	additional, err := pda.Additional(f.key)
	require.NoError(t, err)
	assert.Equal(t, []solana.PublicKey{f.market.Asks, f.market.Bids, feeMod, additional}, s.AccountsToUpdate())
	assert.True(t, s.Tracks(feeMod))
	assert.False(t, s.Tracks(f.market.Mint))

	_, err = FromMarketAccount(f.key, f.data[:100], Deps{})
	assert.ErrorIs(t, err, layout.ErrLayout)
}

func TestQuote_NotReadyUntilAllAccountsLoaded(t *testing.T) {
	f := newFixture()
	s := f.service(t, nil)

	_, err := s.Quote(quote.Request{InputMint: solana.SolMint, InAmount: P})
	assert.ErrorIs(t, err, snapshot.ErrNotReady)

	k := s.Keys()
	_, err = s.Apply("test", account.Update{Key: k.Asks, Slot: 1, Data: orderbooktest.TreeData(true, ob{Price: 2, Amount: P})})
	require.NoError(t, err)
	assert.False(t, s.Ready())
	_, err = s.TopOfBook()
	assert.ErrorIs(t, err, snapshot.ErrNotReady)
}

func TestUpdate_QuotesBothSides(t *testing.T) {
	f := newFixture()
	s := f.service(t, nil)
	require.NoError(t, s.Update(f.accounts(t, s, 2)))
	require.True(t, s.Ready())

	buy, err := s.Quote(quote.Request{InputMint: solana.SolMint, OutputMint: f.market.Mint, InAmount: 10 * P})
	require.NoError(t, err)
	assert.Equal(t, uint64(5), buy.OutAmount)
	assert.Equal(t, solana.SolMint, buy.FeeMint)

	// 10 base at 1 = 10 quote, 1% fee floors to 0
	sell, err := s.Quote(quote.Request{InputMint: f.market.Mint, OutputMint: solana.SolMint, InAmount: 10 * P})
	require.NoError(t, err)
	assert.Equal(t, uint64(10), sell.OutAmount)

	_, err = s.Quote(quote.Request{InputMint: royalty, InAmount: P})
	assert.ErrorIs(t, err, quote.ErrUnknownMint)

	top, err := s.TopOfBook()
	require.NoError(t, err)
	assert.Equal(t, uint64(2), top.BestAsk)
	assert.Equal(t, uint64(1), top.BestBid)
	assert.Equal(t, uint64(1), top.Generation)
}

func TestUpdate_AllOrNothing(t *testing.T) {
	f := newFixture()
	s := f.service(t, nil)
	require.NoError(t, s.Update(f.accounts(t, s, 2)))
	before := s.Snapshot()

	accs := f.accounts(t, s, 50)
	delete(accs, s.Keys().Additional)
	assert.ErrorIs(t, s.Update(accs), ErrMissingAccount)

	accs = f.accounts(t, s, 50)
	accs[s.Keys().Bids] = accs[s.Keys().Bids][:500]
	assert.ErrorIs(t, s.Update(accs), layout.ErrLayout)

	assert.Same(t, before, s.Snapshot())
	top, err := s.TopOfBook()
	require.NoError(t, err)
	assert.Equal(t, uint64(2), top.BestAsk)
}

func TestApply_SkipsStaleSlots(t *testing.T) {
	f := newFixture()
	s := f.service(t, nil)
	k := s.Keys()
	accs := f.accounts(t, s, 2)

	var ups []account.Update
	for _, key := range k.List() {
		ups = append(ups, account.Update{Key: key, Slot: 100, Data: accs[key]})
	}
	n, err := s.Apply("rpc", ups...)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	n, err = s.Apply("kafka", account.Update{Key: k.Asks, Slot: 99, Data: orderbooktest.TreeData(true, ob{Price: 9, Amount: P})})
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, 1.0, testutil.ToFloat64(s.metrics.UpdatesStale))

	n, err = s.Apply("kafka", account.Update{Key: k.Asks, Slot: 101, Data: orderbooktest.TreeData(true, ob{Price: 9, Amount: P})})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	top, err := s.TopOfBook()
	require.NoError(t, err)
	assert.Equal(t, uint64(9), top.BestAsk)
	assert.Equal(t, uint64(101), top.Slot)
	assert.Equal(t, uint64(2), top.Generation)

	_, err = s.Apply("kafka", account.Update{Key: f.market.Mint, Slot: 200})
	assert.ErrorIs(t, err, snapshot.ErrUnexpectedAccount)
}

func TestSwapAccountMetas(t *testing.T) {
	f := newFixture()
	s := f.service(t, nil)

	p := SwapParams{
		SourceMint:                  solana.SolMint,
		UserTransferAuthority:       solana.NewWallet().PublicKey(),
		UserSourceTokenAccount:      solana.NewWallet().PublicKey(),
		UserDestinationTokenAccount: solana.NewWallet().PublicKey(),
	}
	_, err := s.SwapAccountMetas(p)
	assert.ErrorIs(t, err, snapshot.ErrNotReady)

	require.NoError(t, s.Update(f.accounts(t, s, 2)))
	metas, err := s.SwapAccountMetas(p)
	require.NoError(t, err)
	require.Len(t, metas, 16)

	assert.Equal(t, p.UserTransferAuthority, metas[0].PublicKey)
	assert.True(t, metas[0].IsSigner)
	assert.Equal(t, f.key, metas[1].PublicKey)
	assert.Equal(t, f.market.Asks, metas[3].PublicKey)
	assert.Equal(t, f.market.Bids, metas[4].PublicKey)
	assert.Equal(t, receiver, metas[7].PublicKey)
	assert.Equal(t, royalty, metas[8].PublicKey)
	assert.Equal(t, s.Keys().FeeMod, metas[9].PublicKey)

	auth, err := pda.MarketAuthority(f.key)
	require.NoError(t, err)
	assert.Equal(t, auth, metas[13].PublicKey)

	for i, m := range metas[:14] {
		assert.True(t, m.IsWritable, "meta %d", i)
	}
	assert.Equal(t, solana.TokenProgramID, metas[14].PublicKey)
	assert.False(t, metas[14].IsWritable)
	assert.Equal(t, solana.SystemProgramID, metas[15].PublicKey)
	assert.False(t, metas[15].IsWritable)

	p.SourceMint = f.market.Mint
	metas, err = s.SwapAccountMetas(p)
	require.NoError(t, err)
	assert.Equal(t, f.market.Bids, metas[3].PublicKey)
}

func TestQuotesReadOneGeneration(t *testing.T) {
	f := newFixture()
	s := f.service(t, nil)
	require.NoError(t, s.Update(f.accounts(t, s, 2)))

	var wg sync.WaitGroup
	stop := make(chan struct{})
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				top, err := s.TopOfBook()
				if assert.NoError(t, err) {
					// asks and bids always move together
					assert.Equal(t, top.BestAsk-1, top.BestBid)
				}
			}
		}()
	}
	for ask := uint64(3); ask < 100; ask++ {
		require.NoError(t, s.Update(f.accounts(t, s, ask)))
	}
	close(stop)
	wg.Wait()
}

func TestJournalReplayRebuildsState(t *testing.T) {
	f := newFixture()
	dir := t.TempDir()
	j, err := journal.Open(journal.Config{Dir: dir})
	require.NoError(t, err)

	s := f.service(t, j)
	require.NoError(t, s.Update(f.accounts(t, s, 2)))
	_, err = s.Apply("kafka", account.Update{
		Key: s.Keys().Asks, Slot: 5, Data: orderbooktest.TreeData(true, ob{Price: 7, Amount: P}, ob{Price: 3, Amount: P}),
	})
	require.NoError(t, err)
	require.NoError(t, j.Close())

	want, err := s.TopOfBook()
	require.NoError(t, err)

	var seen int
	r, lastSeq, err := ReplayJournal(dir, Deps{Log: zaptest.NewLogger(t)}, nil, func(*journal.Record, *QuoteService) error {
		seen++
		return nil
	})
	require.NoError(t, err)
	// one record per published snapshot
	assert.Equal(t, 2, seen)
	assert.Equal(t, uint64(3), lastSeq)
	assert.Equal(t, f.key, r.Key())

	got, err := r.TopOfBook()
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

// failingJournal fails the failAt-th Append without writing and passes
// every other call through.
type failingJournal struct {
	*journal.Journal
	calls, failAt int
}

func (j *failingJournal) Append(recs ...*journal.Record) error {
	j.calls++
	if j.calls == j.failAt {
		return errors.New("no space left on device")
	}
	return j.Journal.Append(recs...)
}

func TestApply_JournalFailurePublishesNothing(t *testing.T) {
	f := newFixture()
	dir := t.TempDir()
	jr, err := journal.Open(journal.Config{Dir: dir})
	require.NoError(t, err)

	// 1: market record, 2: first Update, 3: fails
	s := f.service(t, &failingJournal{Journal: jr, failAt: 3})
	require.NoError(t, s.Update(f.accounts(t, s, 2)))
	served := s.Snapshot()
	seq := jr.LastSeq()

	k := s.Keys()
	_, err = s.Apply("rpc",
		account.Update{Key: k.Asks, Slot: 10, Data: orderbooktest.TreeData(true, ob{Price: 8, Amount: P})},
		account.Update{Key: k.Bids, Slot: 10, Data: orderbooktest.TreeData(false, ob{Price: 7, Amount: P})},
	)
	require.Error(t, err)
	assert.Same(t, served, s.Snapshot())
	assert.Equal(t, seq, jr.LastSeq())

	_, err = s.Apply("rpc", account.Update{Key: k.Asks, Slot: 11, Data: orderbooktest.TreeData(true, ob{Price: 6, Amount: P})})
	require.NoError(t, err)
	require.NoError(t, jr.Close())

	want, err := s.TopOfBook()
	require.NoError(t, err)
	assert.Equal(t, uint64(2), want.Generation)

	r, _, err := ReplayJournal(dir, Deps{Log: zaptest.NewLogger(t)}, nil, nil)
	require.NoError(t, err)
	got, err := r.TopOfBook()
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestApply_UnchangedAccountsOnlyAdvanceSlot(t *testing.T) {
	f := newFixture()
	jr, err := journal.Open(journal.Config{Dir: t.TempDir()})
	require.NoError(t, err)
	defer jr.Close()

	s := f.service(t, jr)
	accs := f.accounts(t, s, 2)
	poll := func(slot uint64) []account.Update {
		var ups []account.Update
		for _, key := range s.Keys().List() {
			ups = append(ups, account.Update{Key: key, Slot: slot, Data: accs[key]})
		}
		return ups
	}

	n, err := s.Apply("rpc", poll(100)...)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	seq := jr.LastSeq()

	n, err = s.Apply("rpc", poll(101)...)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, seq, jr.LastSeq(), "nothing journaled")
	assert.Equal(t, 4.0, testutil.ToFloat64(s.metrics.UpdatesUnchanged))

	top, err := s.TopOfBook()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), top.Generation)
	assert.Equal(t, uint64(101), top.Slot)
}

func TestReplayJournal_Empty(t *testing.T) {
	_, _, err := ReplayJournal(t.TempDir(), Deps{}, nil, nil)
	assert.ErrorIs(t, err, ErrNoMarketRecord)
}

func TestRestoreAndPersist(t *testing.T) {
	f := newFixture()
	db, err := accountstore.Open(t.TempDir())
	require.NoError(t, err)
	defer db.Close()

	s := f.service(t, nil)
	require.NoError(t, s.Update(f.accounts(t, s, 4)))
	s.persist(&snapshot.Writer{Sink: db}, nil)

	warm := f.service(t, nil)
	n, err := warm.Restore(db)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	top, err := warm.TopOfBook()
	require.NoError(t, err)
	assert.Equal(t, uint64(4), top.BestAsk)
}

package snapshot

import (
	"sync"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gigadex/domain/account"
	"gigadex/domain/layout"
	"gigadex/domain/orderbook"
	"gigadex/domain/orderbook/orderbooktest"
	"gigadex/infra/accountstore"
	"gigadex/infra/sequence"
)

type ob = orderbooktest.Order

func testKeys() Keys {
	return Keys{
		Asks:       solana.NewWallet().PublicKey(),
		Bids:       solana.NewWallet().PublicKey(),
		FeeMod:     solana.NewWallet().PublicKey(),
		Additional: solana.NewWallet().PublicKey(),
	}
}

func fullSet(k Keys, slot uint64) []account.Update {
	return []account.Update{
		{Key: k.Asks, Slot: slot, Data: orderbooktest.TreeData(true, ob{Price: 11, Amount: 1}, ob{Price: 12, Amount: 1})},
		{Key: k.Bids, Slot: slot, Data: orderbooktest.TreeData(false, ob{Price: 9, Amount: 1})},
		{Key: k.FeeMod, Slot: slot, Data: orderbooktest.FeeModData(layout.FeeMod{BaseFeeBp: 25})},
		{Key: k.Additional, Slot: slot, Data: orderbooktest.AdditionalData(layout.Additional{Multiplier: 3})},
	}
}

func TestApply_BuildsReadyState(t *testing.T) {
	k := testKeys()

	st, n, err := Apply(nil, k, fullSet(k, 100)[:2]...)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.False(t, st.Ready())
	assert.Equal(t, []Role{RoleFeeMod, RoleAdditional}, st.Missing())
	_, err = st.Top()
	assert.ErrorIs(t, err, ErrNotReady)

	st, n, err = Apply(st, k, fullSet(k, 100)[2:]...)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.True(t, st.Ready())
	assert.Equal(t, uint64(25), st.FeeMod.BaseFeeBp)
	assert.Equal(t, uint64(3), st.Additional.Multiplier)
	assert.Equal(t, uint64(100), st.Slot())

	top, err := st.Top()
	require.NoError(t, err)
	assert.Equal(t, orderbook.Top{BestBid: 9, BestAsk: 11}, top)
}

func TestApply_SkipsStaleSlots(t *testing.T) {
	k := testKeys()
	st, _, err := Apply(nil, k, fullSet(k, 100)...)
	require.NoError(t, err)

	old := account.Update{Key: k.Asks, Slot: 99, Data: orderbooktest.TreeData(true, ob{Price: 1, Amount: 1})}
	assert.True(t, st.IsStale(k, old))

	next, n, err := Apply(st, k, old)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Same(t, st, next)
}

func TestApply_LeavesPrevOnFailure(t *testing.T) {
	k := testKeys()
	st, _, err := Apply(nil, k, fullSet(k, 100)...)
	require.NoError(t, err)
	asks := st.Asks

	_, _, err = Apply(st, k,
		account.Update{Key: k.Asks, Slot: 101, Data: orderbooktest.TreeData(true, ob{Price: 20, Amount: 1})},
		account.Update{Key: k.Bids, Slot: 101, Data: []byte{1, 2, 3}},
	)
	assert.ErrorIs(t, err, layout.ErrLayout)
	assert.Same(t, asks, st.Asks)

	_, _, err = Apply(st, k, account.Update{Key: solana.SolMint, Slot: 200})
	assert.ErrorIs(t, err, ErrUnexpectedAccount)
}

func TestApply_RejectsCyclicTree(t *testing.T) {
	k := testKeys()
	tree := orderbooktest.Build(true, ob{Price: 5, Amount: 1}, ob{Price: 3, Amount: 1})
	tree.Nodes[2].Right = 1
	data := layout.WithEnvelope([layout.Envelope]byte{}, tree.Encode())

	_, _, err := Apply(nil, k, account.Update{Key: k.Asks, Slot: 1, Data: data})
	assert.ErrorIs(t, err, layout.ErrLayout)
}

func TestStore_PublishesGenerations(t *testing.T) {
	k := testKeys()
	s := NewStore(sequence.New(0))
	assert.Nil(t, s.Load())

	apply := func(u ...account.Update) func(*State) (*State, error) {
		return func(prev *State) (*State, error) {
			next, _, err := Apply(prev, k, u...)
			return next, err
		}
	}

	st, err := s.Update(apply(fullSet(k, 10)...))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), st.Generation)
	held := s.Load()

	// stale: nothing published
	st, err = s.Update(apply(fullSet(k, 9)...))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), st.Generation)

	// same bytes at a newer slot: slot moves, generation does not
	st, err = s.Update(apply(fullSet(k, 11)[0]))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), st.Generation)
	assert.Equal(t, uint64(11), st.Slot())
	assert.NotSame(t, held, st)

	st, err = s.Update(apply(account.Update{Key: k.Asks, Slot: 12, Data: orderbooktest.TreeData(true, ob{Price: 13, Amount: 1})}))
	require.NoError(t, err)
	assert.Equal(t, uint64(2), st.Generation)

	// the reader's copy is untouched by later publishes
	assert.Equal(t, uint64(1), held.Generation)
	assert.Equal(t, uint64(10), held.Slot())
}

func TestApply_UnchangedDataAdvancesSlotOnly(t *testing.T) {
	k := testKeys()
	st, _, err := Apply(nil, k, fullSet(k, 100)...)
	require.NoError(t, err)
	st.Generation = 3

	same := fullSet(k, 105)
	assert.True(t, st.IsUnchanged(k, same[0]))

	next, n, err := Apply(st, k, same...)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, uint64(3), next.Generation)
	assert.Same(t, st.Asks, next.Asks)
	asks, _ := next.Account(RoleAsks)
	assert.Equal(t, uint64(105), asks.Slot)
	// prev keeps its slots
	assert.Equal(t, uint64(100), st.Slot())

	// an older update is still stale against the advanced slot
	assert.True(t, next.IsStale(k, account.Update{Key: k.Asks, Slot: 103}))

	// same bytes at the same slot change nothing
	again, n, err := Apply(next, k, same...)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Same(t, next, again)

	// a real change in the batch still counts
	changed := fullSet(k, 106)
	changed[1].Data = orderbooktest.TreeData(false, ob{Price: 10, Amount: 1})
	assert.False(t, next.IsUnchanged(k, changed[1]))
	moved, n, err := Apply(next, k, changed...)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Zero(t, moved.Generation)
	assert.Equal(t, uint64(106), moved.Slot())
}

func TestStore_ReadersSeeWholeGenerations(t *testing.T) {
	k := testKeys()
	s := NewStore(nil)
	_, err := s.Update(func(prev *State) (*State, error) {
		next, _, err := Apply(prev, k, fullSet(k, 1)...)
		return next, err
	})
	require.NoError(t, err)

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
				st := s.Load()
				asks, _ := st.Account(RoleAsks)
				bids, _ := st.Account(RoleBids)
				// every writer moves both trees together
				assert.Equal(t, asks.Slot, bids.Slot)
			}
		}()
	}
	for slot := uint64(2); slot < 200; slot++ {
		u := fullSet(k, slot)
		_, err := s.Update(func(prev *State) (*State, error) {
			next, _, err := Apply(prev, k, u[0], u[1])
			return next, err
		})
		require.NoError(t, err)
	}
	close(stop)
	wg.Wait()
}

func TestWriterAndLoad(t *testing.T) {
	k := testKeys()
	db, err := accountstore.Open(t.TempDir())
	require.NoError(t, err)
	defer db.Close()

	st, _, err := Apply(nil, k, fullSet(k, 42)...)
	require.NoError(t, err)
	st.Generation = 7

	w := &Writer{Sink: db}
	ok, err := w.Write(st)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = w.Write(st)
	require.NoError(t, err)
	assert.False(t, ok)

	loaded, err := Load(db, k)
	require.NoError(t, err)
	require.Len(t, loaded, 4)

	restored, n, err := Apply(nil, k, loaded...)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.True(t, restored.Ready())
	assert.Equal(t, st.FeeMod, restored.FeeMod)
}

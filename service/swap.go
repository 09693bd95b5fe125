package service

import (
	"github.com/gagliardetto/solana-go"

	"gigadex/snapshot"
)

type SwapParams struct {
	SourceMint                  solana.PublicKey
	UserTransferAuthority       solana.PublicKey
	UserSourceTokenAccount      solana.PublicKey
	UserDestinationTokenAccount solana.PublicKey
}

// SwapAccountMetas lists the accounts of a swap instruction in program
// order. The fee receiver and royalty accounts come from the current
// snapshot.
func (s *QuoteService) SwapAccountMetas(p SwapParams) (solana.AccountMetaSlice, error) {
	st := s.store.Load()
	if !st.Ready() {
		return nil, snapshot.ErrNotReady
	}

	tree := s.market.Bids
	if p.SourceMint.Equals(s.market.QuoteMint) {
		tree = s.market.Asks
	}

	w := func(k solana.PublicKey) *solana.AccountMeta { return solana.NewAccountMeta(k, true, false) }
	return solana.AccountMetaSlice{
		solana.NewAccountMeta(p.UserTransferAuthority, true, true),
		w(s.key),
		w(s.market.Balances),
		w(tree),
		w(s.market.Bids),
		w(s.market.WsolVault),
		w(s.market.LotVault),
		w(st.Additional.FeeReceiverWallet),
		w(st.FeeMod.CollectionRoyaltyAddress),
		w(s.keys.FeeMod),
		w(s.keys.Additional),
		w(p.UserSourceTokenAccount),
		w(p.UserDestinationTokenAccount),
		w(s.auth),
		solana.NewAccountMeta(solana.TokenProgramID, false, false),
		solana.NewAccountMeta(solana.SystemProgramID, false, false),
	}, nil
}

package quote

import (
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"

	"gigadex/domain/layout"
	"gigadex/domain/orderbook"
)

var ErrUnknownMint = errors.New("mint does not belong to market")

// Request asks what InAmount of InputMint buys.
type Request struct {
	InputMint  solana.PublicKey
	OutputMint solana.PublicKey
	InAmount   uint64
}

type Response struct {
	NotEnoughLiquidity bool
	InAmount           uint64
	OutAmount          uint64
	FeeAmount          uint64
	FeeMint            solana.PublicKey
	MinInAmount        uint64
	MinOutAmount       uint64
}

// Book is everything one quote reads: the market, both trees and the fee
// schedule, all taken from the same snapshot.
type Book struct {
	Market layout.Market
	Asks   *orderbook.Index
	Bids   *orderbook.Index
	FeeMod layout.FeeMod
}

// IsBuy resolves the taker side from the input mint: paying the quote
// mint buys the base mint.
func (b *Book) IsBuy(inputMint solana.PublicKey) (bool, error) {
	switch {
	case inputMint.Equals(b.Market.QuoteMint):
		return true, nil
	case inputMint.Equals(b.Market.Mint):
		return false, nil
	default:
		return false, fmt.Errorf("%w: %s", ErrUnknownMint, inputMint)
	}
}

// Compute simulates req against the book and deducts the base fee.
func (b *Book) Compute(req Request) (Response, error) {
	buy, err := b.IsBuy(req.InputMint)
	if err != nil {
		return Response{}, err
	}
	tree := b.Bids
	if buy {
		tree = b.Asks
	}

	out, err := Simulate(tree, req.InAmount, buy)
	if err != nil {
		return Response{}, err
	}
	net, fee, err := ApplyFee(out, b.FeeMod.BaseFeeBp)
	if err != nil {
		return Response{}, err
	}

	return Response{
		NotEnoughLiquidity: net == 0,
		InAmount:           req.InAmount,
		OutAmount:          net,
		FeeAmount:          fee,
		FeeMint:            b.Market.QuoteMint,
		MinInAmount:        req.InAmount,
		MinOutAmount:       net,
	}, nil
}

// Package pda derives the program-owned addresses of a GigaDex market.
package pda

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
)

var ProgramID = solana.MustPublicKeyFromBase58("833pSHchW8AWggrvx8394HHkH1cMHxdyYcDro8ABYUXC")

var (
	marketAuthSeed = []byte("market_auth_pda_seed")
	feeModSeed     = []byte("fee_mod_pda_seed")
	additionalSeed = []byte("additional_pda_seed")
)

func derive(market solana.PublicKey, seed []byte) (solana.PublicKey, error) {
	addr, _, err := solana.FindProgramAddress([][]byte{market[:], seed}, ProgramID)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("derive %s for %s: %w", seed, market, err)
	}
	return addr, nil
}

// MarketAuthority signs token transfers out of the market vaults.
func MarketAuthority(market solana.PublicKey) (solana.PublicKey, error) {
	return derive(market, marketAuthSeed)
}

// FeeMod holds the market's fee schedule.
func FeeMod(market solana.PublicKey) (solana.PublicKey, error) {
	return derive(market, feeModSeed)
}

// Additional holds the fee receiver and the quote mint metadata.
func Additional(market solana.PublicKey) (solana.PublicKey, error) {
	return derive(market, additionalSeed)
}

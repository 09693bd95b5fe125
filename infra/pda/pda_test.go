package pda

import (
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDerive(t *testing.T) {
	market := solana.MustPublicKeyFromBase58("7xKXtg2CW87d97TXJSDpbD5jBkheTqA83TZRuJosgAsU")

	auth, err := MarketAuthority(market)
	require.NoError(t, err)
	fee, err := FeeMod(market)
	require.NoError(t, err)
	add, err := Additional(market)
	require.NoError(t, err)

	assert.NotEqual(t, auth, fee)
	assert.NotEqual(t, fee, add)

	again, err := FeeMod(market)
	require.NoError(t, err)
	assert.Equal(t, fee, again)

	_, bump, err := solana.FindProgramAddress([][]byte{market[:], feeModSeed}, ProgramID)
	require.NoError(t, err)
	direct, err := solana.CreateProgramAddress([][]byte{market[:], feeModSeed, {bump}}, ProgramID)
	require.NoError(t, err)
	assert.Equal(t, fee, direct)
}

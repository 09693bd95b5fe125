package layout

import "github.com/gagliardetto/solana-go"

const (
	FeeModSize     = 4*8 + PublicKeySize
	AdditionalSize = 8 + PublicKeySize + 8 + PublicKeySize + PublicKeySize
)

// FeeMod holds the per-market fee schedule in basis points.
type FeeMod struct {
	BaseFeeBp                uint64
	CollectionFeeBp          uint64
	MarketMakerFeeBp         uint64
	DexFeeBp                 uint64
	CollectionRoyaltyAddress solana.PublicKey
}

func DecodeFeeMod(buf []byte, offset int) (FeeMod, error) {
	b, err := window(buf, offset, FeeModSize, "FeeMod", false)
	if err != nil {
		return FeeMod{}, err
	}
	return FeeMod{
		BaseFeeBp:                u64(b, 0),
		CollectionFeeBp:          u64(b, 8),
		MarketMakerFeeBp:         u64(b, 16),
		DexFeeBp:                 u64(b, 24),
		CollectionRoyaltyAddress: key(b, 32),
	}, nil
}

func (f FeeMod) Encode() []byte {
	b := make([]byte, FeeModSize)
	putU64(b, 0, f.BaseFeeBp)
	putU64(b, 8, f.CollectionFeeBp)
	putU64(b, 16, f.MarketMakerFeeBp)
	putU64(b, 24, f.DexFeeBp)
	putKey(b, 32, f.CollectionRoyaltyAddress)
	return b
}

// Additional is the auxiliary per-market configuration account.
type Additional struct {
	Price uint64
	// Mint is no longer written by the program.
	Mint              solana.PublicKey
	Multiplier        uint64
	QuoteMint         solana.PublicKey
	FeeReceiverWallet solana.PublicKey
}

func DecodeAdditional(buf []byte, offset int) (Additional, error) {
	b, err := window(buf, offset, AdditionalSize, "Additional", false)
	if err != nil {
		return Additional{}, err
	}
	return Additional{
		Price:             u64(b, 0),
		Mint:              key(b, 8),
		Multiplier:        u64(b, 40),
		QuoteMint:         key(b, 48),
		FeeReceiverWallet: key(b, 80),
	}, nil
}

func (a Additional) Encode() []byte {
	b := make([]byte, AdditionalSize)
	putU64(b, 0, a.Price)
	putKey(b, 8, a.Mint)
	putU64(b, 40, a.Multiplier)
	putKey(b, 48, a.QuoteMint)
	putKey(b, 80, a.FeeReceiverWallet)
	return b
}

package layout

import "github.com/gagliardetto/solana-go"

const MarketSize = 7 * PublicKeySize

// Market identifies the accounts of one trading pair.
type Market struct {
	Mint      solana.PublicKey
	Balances  solana.PublicKey
	WsolVault solana.PublicKey
	LotVault  solana.PublicKey
	Asks      solana.PublicKey
	Bids      solana.PublicKey
	QuoteMint solana.PublicKey
}

// DecodeMarket reads a Market starting at offset. Trailing bytes are ignored.
func DecodeMarket(buf []byte, offset int) (Market, error) {
	b, err := window(buf, offset, MarketSize, "Market", false)
	if err != nil {
		return Market{}, err
	}
	return Market{
		Mint:      key(b, 0*PublicKeySize),
		Balances:  key(b, 1*PublicKeySize),
		WsolVault: key(b, 2*PublicKeySize),
		LotVault:  key(b, 3*PublicKeySize),
		Asks:      key(b, 4*PublicKeySize),
		Bids:      key(b, 5*PublicKeySize),
		QuoteMint: key(b, 6*PublicKeySize),
	}, nil
}

func (m Market) Encode() []byte {
	b := make([]byte, MarketSize)
	for i, k := range []solana.PublicKey{m.Mint, m.Balances, m.WsolVault, m.LotVault, m.Asks, m.Bids, m.QuoteMint} {
		putKey(b, i*PublicKeySize, k)
	}
	return b
}

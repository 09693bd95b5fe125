package orderbooktest

import "gigadex/domain/layout"

var disc = [layout.Envelope]byte{0xa1, 0x1c, 0x0e, 0x5f, 0x2b, 0x7d, 0x90, 0x03}

// TreeData is the on-chain bytes of a tree built from orders.
func TreeData(marketBuy bool, orders ...Order) []byte {
	return layout.WithEnvelope(disc, Build(marketBuy, orders...).Encode())
}

func MarketData(m layout.Market) []byte {
	return layout.WithEnvelope(disc, m.Encode())
}

func FeeModData(f layout.FeeMod) []byte {
	return layout.WithEnvelope(disc, f.Encode())
}

func AdditionalData(a layout.Additional) []byte {
	return layout.WithEnvelope(disc, a.Encode())
}

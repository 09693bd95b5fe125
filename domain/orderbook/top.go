package orderbook

// Top is the best price on each side of a market. Zero means the side is
// empty.
type Top struct {
	BestBid uint64
	BestAsk uint64
}

// TopOf reads the best ask from asks and the best bid from bids.
func TopOf(asks, bids *Index) (Top, error) {
	ask, err := asks.BestPrice(Ask)
	if err != nil {
		return Top{}, err
	}
	bid, err := bids.BestPrice(Bid)
	if err != nil {
		return Top{}, err
	}
	return Top{BestBid: bid, BestAsk: ask}, nil
}

// Spread is BestAsk - BestBid. ok is false when a side is empty or the
// book is crossed.
func (t Top) Spread() (spread uint64, ok bool) {
	if t.BestBid == 0 || t.BestAsk == 0 || t.BestAsk < t.BestBid {
		return 0, false
	}
	return t.BestAsk - t.BestBid, true
}

package orderbook

import "gigadex/domain/layout"

type Side uint8

const (
	// Ask is the offer side: the lowest price is best.
	Ask Side = iota
	// Bid is the buying side: the highest price is best.
	Bid
)

func (s Side) String() string {
	if s == Ask {
		return "ask"
	}
	return "bid"
}

// SideFor returns the side a taker walks: buyers lift asks, sellers hit bids.
func SideFor(buy bool) Side {
	if buy {
		return Ask
	}
	return Bid
}

// SideOf returns the side the tree declares through its market_buy flag.
func SideOf(t *layout.OrderTree) Side {
	if t.MarketBuy > 0 {
		return Ask
	}
	return Bid
}

// near is the child holding better prices for s, far the worse ones.
func (s Side) near(n layout.Node) uint64 {
	if s == Ask {
		return n.Left
	}
	return n.Right
}

func (s Side) far(n layout.Node) uint64 {
	if s == Ask {
		return n.Right
	}
	return n.Left
}

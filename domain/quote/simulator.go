package quote

import (
	"gigadex/domain/layout"
	"gigadex/domain/orderbook"
)

// Fill is the raw outcome of walking the book, before precision scaling.
type Fill struct {
	// Received is in output units times layout.Precision.
	Received  uint64
	Remaining uint64
	Orders    int
	LastPrice uint64
}

// Match walks the book for a taker paying amountIn. A buyer pays quote
// units and receives base units from the asks; a seller pays base units
// and receives quote units from the bids. Orders are consumed best price
// first until the input runs out or the book does.
func Match(x *orderbook.Index, amountIn uint64, buy bool) (Fill, error) {
	f := Fill{Remaining: amountIn}
	if amountIn == 0 {
		return f, nil
	}

	var stepErr error
	err := x.Walk(orderbook.SideFor(buy), func(_ uint64, n layout.Node) bool {
		// a zero price is the program's "no liquidity" marker
		if n.Price == 0 {
			return false
		}
		f.Orders++
		f.LastPrice = n.Price

		var partial bool
		if buy {
			partial, stepErr = f.buy(n)
		} else {
			partial, stepErr = f.sell(n)
		}
		return stepErr == nil && !partial && f.Remaining > 0
	})
	if err != nil {
		return Fill{}, err
	}
	if stepErr != nil {
		return Fill{}, stepErr
	}
	return f, nil
}

// buy takes n for quote units. partial reports that n could not be
// taken whole, which ends the walk.
func (f *Fill) buy(n layout.Node) (partial bool, err error) {
	cost, err := mulU64(n.Amount, n.Price, "order amount * price")
	if err != nil {
		return false, err
	}
	if cost > f.Remaining {
		part := f.Remaining / n.Price
		if f.Received, err = addU64(f.Received, part, "received"); err != nil {
			return false, err
		}
		f.Remaining -= part * n.Price
		return true, nil
	}
	if f.Received, err = addU64(f.Received, n.Amount, "received"); err != nil {
		return false, err
	}
	f.Remaining -= cost
	return false, nil
}

// sell gives base units into n.
func (f *Fill) sell(n layout.Node) (partial bool, err error) {
	if n.Amount > f.Remaining {
		proceeds, err := mulU64(f.Remaining, n.Price, "remaining * price")
		if err != nil {
			return false, err
		}
		if f.Received, err = addU64(f.Received, proceeds, "received"); err != nil {
			return false, err
		}
		f.Remaining = 0
		return true, nil
	}
	proceeds, err := mulU64(n.Amount, n.Price, "order amount * price")
	if err != nil {
		return false, err
	}
	if f.Received, err = addU64(f.Received, proceeds, "received"); err != nil {
		return false, err
	}
	f.Remaining -= n.Amount
	return false, nil
}

// Simulate returns the output amount for amountIn, 0 when the book has
// no matching liquidity.
func Simulate(x *orderbook.Index, amountIn uint64, buy bool) (uint64, error) {
	f, err := Match(x, amountIn, buy)
	if err != nil {
		return 0, err
	}
	return f.Received / layout.Precision, nil
}

// Package orderbooktest builds order trees laid out the way the program
// writes them, for use in tests.
package orderbooktest

import "gigadex/domain/layout"

type Order struct {
	Price  uint64
	Amount uint64
}

// Build inserts orders into slots 1..n in the given order as an
// unbalanced binary search tree. Equal prices go right, keeping time
// priority for asks. Next links each slot to its in-order successor.
func Build(marketBuy bool, orders ...Order) *layout.OrderTree {
	t := &layout.OrderTree{}
	if marketBuy {
		t.MarketBuy = 1
	}
	for i, o := range orders {
		idx := uint64(i + 1)
		t.Nodes[idx] = layout.Node{Price: o.Price, Amount: o.Amount, UID: 1000 + idx, Height: 1}
		if t.RootIdx == 0 {
			t.RootIdx = idx
			continue
		}
		cur := t.RootIdx
		for {
			n := &t.Nodes[cur]
			if o.Price < n.Price {
				if n.Left == 0 {
					n.Left = idx
					break
				}
				cur = n.Left
			} else {
				if n.Right == 0 {
					n.Right = idx
					break
				}
				cur = n.Right
			}
		}
	}
	t.NumOrders = uint64(len(orders))
	linkNext(t)
	return t
}

func linkNext(t *layout.OrderTree) {
	var prev uint64
	var visit func(idx uint64)
	visit = func(idx uint64) {
		if idx == 0 {
			return
		}
		visit(t.Nodes[idx].Left)
		if prev != 0 {
			t.Nodes[prev].Next = idx
		}
		prev = idx
		visit(t.Nodes[idx].Right)
	}
	visit(t.RootIdx)
}

package orderbook

import (
	"fmt"

	"gigadex/domain/layout"
)

// Index is a read-only view over one OrderTree.
type Index struct {
	tree *layout.OrderTree
}

func NewIndex(t *layout.OrderTree) *Index {
	return &Index{tree: t}
}

func (x *Index) Tree() *layout.OrderTree { return x.tree }

func (x *Index) Empty() bool { return x.tree.RootIdx == 0 }

// Best returns the slot of the best order on side, or 0 for an empty tree.
func (x *Index) Best(side Side) (uint64, error) {
	idx := x.tree.RootIdx
	if idx == 0 {
		return 0, nil
	}

	var seen visited
	for {
		if err := seen.visit(idx); err != nil {
			return 0, err
		}
		next := side.near(x.tree.Nodes[idx])
		if next == 0 {
			return idx, nil
		}
		idx = next
	}
}

// BestPrice returns the best price on side, 0 when the tree is empty.
func (x *Index) BestPrice(side Side) (uint64, error) {
	idx, err := x.Best(side)
	if err != nil || idx == 0 {
		return 0, err
	}
	return x.tree.Nodes[idx].Price, nil
}

// Walk visits orders from best to worst price for side: ascending for
// Ask, descending for Bid. It stops early when fn returns false.
func (x *Index) Walk(side Side, fn func(idx uint64, n layout.Node) bool) error {
	var (
		seen  visited
		stack = make([]uint64, 0, 32)
		cur   = x.tree.RootIdx
	)
	for cur != 0 || len(stack) > 0 {
		for cur != 0 {
			if err := seen.visit(cur); err != nil {
				return err
			}
			stack = append(stack, cur)
			cur = side.near(x.tree.Nodes[cur])
		}

		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		n := x.tree.Nodes[top]
		if !fn(top, n) {
			return nil
		}
		cur = side.far(n)
	}
	return nil
}

// Len counts the orders reachable from the root.
func (x *Index) Len() (int, error) {
	n := 0
	err := x.Walk(Ask, func(uint64, layout.Node) bool {
		n++
		return true
	})
	return n, err
}

// Validate checks that the reachable nodes form a tree.
func (x *Index) Validate() error {
	_, err := x.Len()
	return err
}

type visited [(layout.MaxNodes + 63) / 64]uint64

// visit records idx. Reaching a slot twice means the links form a cycle.
func (v *visited) visit(idx uint64) error {
	if idx >= layout.MaxNodes {
		return linkError(idx, fmt.Sprintf("index out of range [0,%d)", layout.MaxNodes))
	}
	w, bit := idx/64, uint64(1)<<(idx%64)
	if v[w]&bit != 0 {
		return linkError(idx, "slot reached twice, index links form a cycle")
	}
	v[w] |= bit
	return nil
}

func linkError(idx uint64, reason string) error {
	return &layout.Error{
		Struct: "OrderTree",
		Field:  fmt.Sprintf("nodes[%d]", idx),
		Reason: reason,
	}
}

package layout

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
)

const (
	NodeSize         = 7 * 8
	FilledOrderSize  = 3 * 8
	NodeDeltaLogSize = 7 * 8
)

// OrderTree payload offsets.
const (
	offRootIdx         = 0
	offMarketBuy       = 8
	offNodes           = 16
	offNumOrders       = offNodes + MaxNodes*NodeSize
	offCurrentSigner   = offNumOrders + 8
	offRemainingAmount = offCurrentSigner + PublicKeySize
	offNumFills        = offRemainingAmount + 8
	offFills           = offNumFills + 8
	offNumDeltas       = offFills + MaxFills*FilledOrderSize
	offNodeDelta       = offNumDeltas + 8
	offAmountCancelled = offNodeDelta + MaxDeltas*NodeDeltaLogSize

	OrderTreeSize = offAmountCancelled + 8
)

// Node is one resting order slot. Left, Right and Next index the
// enclosing tree's Nodes array; 0 means no link.
type Node struct {
	Price  uint64
	Amount uint64
	UID    uint64
	Left   uint64
	Right  uint64
	Next   uint64
	Height uint64
}

// FilledOrder is one execution recorded by the last match.
type FilledOrder struct {
	Price  uint64
	Amount uint64
	UID    uint64
}

// NodeDeltaLog is one structural change applied by the last match.
// The flags are kept as the raw integers the program writes.
type NodeDeltaLog struct {
	Key      uint64
	IsDelete uint64
	IsInsert uint64
	IsDelta  uint64
	Amount   uint64
	UID      uint64
	Price    uint64
}

// OrderTree is one side of the book: an array-backed binary search tree
// keyed by price followed by the log of the last match. Slot 0 is never
// a live order.
type OrderTree struct {
	RootIdx   uint64
	MarketBuy uint64
	Nodes     [MaxNodes]Node

	NumOrders     uint64
	CurrentSigner solana.PublicKey

	RemainingAmount uint64
	NumFills        uint64
	Fills           [MaxFills]FilledOrder

	NumDeltas uint64
	NodeDelta [MaxDeltas]NodeDeltaLog

	AmountCancelled uint64
}

// Node returns the slot at idx. Callers index with values that passed
// decode validation, so idx is always < MaxNodes.
func (t *OrderTree) Node(idx uint64) Node {
	return t.Nodes[idx]
}

// ActiveFills returns the populated prefix of Fills.
func (t *OrderTree) ActiveFills() []FilledOrder {
	return t.Fills[:t.NumFills]
}

// ActiveDeltas returns the populated prefix of NodeDelta.
func (t *OrderTree) ActiveDeltas() []NodeDeltaLog {
	return t.NodeDelta[:t.NumDeltas]
}

func DecodeNode(buf []byte, offset int) (Node, error) {
	b, err := window(buf, offset, NodeSize, "Node", false)
	if err != nil {
		return Node{}, err
	}
	return readNode(b, 0), nil
}

func DecodeFilledOrder(buf []byte, offset int) (FilledOrder, error) {
	b, err := window(buf, offset, FilledOrderSize, "FilledOrder", false)
	if err != nil {
		return FilledOrder{}, err
	}
	return readFill(b, 0), nil
}

func DecodeNodeDeltaLog(buf []byte, offset int) (NodeDeltaLog, error) {
	b, err := window(buf, offset, NodeDeltaLogSize, "NodeDeltaLog", false)
	if err != nil {
		return NodeDeltaLog{}, err
	}
	return readDelta(b, 0), nil
}

// DecodeOrderTree reads an OrderTree whose payload starts at offset and
// runs to the end of buf. The payload must be exactly OrderTreeSize
// bytes and every tree index and log count must be in range.
func DecodeOrderTree(buf []byte, offset int) (*OrderTree, error) {
	b, err := window(buf, offset, OrderTreeSize, "OrderTree", true)
	if err != nil {
		return nil, err
	}

	t := &OrderTree{
		RootIdx:         u64(b, offRootIdx),
		MarketBuy:       u64(b, offMarketBuy),
		NumOrders:       u64(b, offNumOrders),
		CurrentSigner:   key(b, offCurrentSigner),
		RemainingAmount: u64(b, offRemainingAmount),
		NumFills:        u64(b, offNumFills),
		NumDeltas:       u64(b, offNumDeltas),
		AmountCancelled: u64(b, offAmountCancelled),
	}
	if t.RootIdx >= MaxNodes {
		return nil, indexError("root_idx", offset+offRootIdx, t.RootIdx, MaxNodes)
	}
	if t.NumFills > MaxFills {
		return nil, indexError("num_fills", offset+offNumFills, t.NumFills, MaxFills+1)
	}
	if t.NumDeltas > MaxDeltas {
		return nil, indexError("num_deltas", offset+offNumDeltas, t.NumDeltas, MaxDeltas+1)
	}

	for i := range t.Nodes {
		at := offNodes + i*NodeSize
		n := readNode(b, at)
		if n.Left >= MaxNodes {
			return nil, indexError(fmt.Sprintf("nodes[%d].left", i), offset+at+24, n.Left, MaxNodes)
		}
		if n.Right >= MaxNodes {
			return nil, indexError(fmt.Sprintf("nodes[%d].right", i), offset+at+32, n.Right, MaxNodes)
		}
		t.Nodes[i] = n
	}
	for i := range t.Fills {
		t.Fills[i] = readFill(b, offFills+i*FilledOrderSize)
	}
	for i := range t.NodeDelta {
		t.NodeDelta[i] = readDelta(b, offNodeDelta+i*NodeDeltaLogSize)
	}
	return t, nil
}

// Encode writes the payload (without envelope) of t.
func (t *OrderTree) Encode() []byte {
	b := make([]byte, OrderTreeSize)
	putU64(b, offRootIdx, t.RootIdx)
	putU64(b, offMarketBuy, t.MarketBuy)
	for i, n := range t.Nodes {
		writeNode(b, offNodes+i*NodeSize, n)
	}
	putU64(b, offNumOrders, t.NumOrders)
	putKey(b, offCurrentSigner, t.CurrentSigner)
	putU64(b, offRemainingAmount, t.RemainingAmount)
	putU64(b, offNumFills, t.NumFills)
	for i, f := range t.Fills {
		at := offFills + i*FilledOrderSize
		putU64(b, at, f.Price)
		putU64(b, at+8, f.Amount)
		putU64(b, at+16, f.UID)
	}
	putU64(b, offNumDeltas, t.NumDeltas)
	for i, d := range t.NodeDelta {
		at := offNodeDelta + i*NodeDeltaLogSize
		putU64(b, at, d.Key)
		putU64(b, at+8, d.IsDelete)
		putU64(b, at+16, d.IsInsert)
		putU64(b, at+24, d.IsDelta)
		putU64(b, at+32, d.Amount)
		putU64(b, at+40, d.UID)
		putU64(b, at+48, d.Price)
	}
	putU64(b, offAmountCancelled, t.AmountCancelled)
	return b
}

func (n Node) Encode() []byte {
	b := make([]byte, NodeSize)
	writeNode(b, 0, n)
	return b
}

func readNode(b []byte, at int) Node {
	return Node{
		Price:  u64(b, at),
		Amount: u64(b, at+8),
		UID:    u64(b, at+16),
		Left:   u64(b, at+24),
		Right:  u64(b, at+32),
		Next:   u64(b, at+40),
		Height: u64(b, at+48),
	}
}

func writeNode(b []byte, at int, n Node) {
	putU64(b, at, n.Price)
	putU64(b, at+8, n.Amount)
	putU64(b, at+16, n.UID)
	putU64(b, at+24, n.Left)
	putU64(b, at+32, n.Right)
	putU64(b, at+40, n.Next)
	putU64(b, at+48, n.Height)
}

func readFill(b []byte, at int) FilledOrder {
	return FilledOrder{
		Price:  u64(b, at),
		Amount: u64(b, at+8),
		UID:    u64(b, at+16),
	}
}

func readDelta(b []byte, at int) NodeDeltaLog {
	return NodeDeltaLog{
		Key:      u64(b, at),
		IsDelete: u64(b, at+8),
		IsInsert: u64(b, at+16),
		IsDelta:  u64(b, at+24),
		Amount:   u64(b, at+32),
		UID:      u64(b, at+40),
		Price:    u64(b, at+48),
	}
}

func indexError(field string, off int, got, limit uint64) *Error {
	return &Error{
		Struct: "OrderTree",
		Field:  field,
		Offset: off,
		Reason: fmt.Sprintf("value %d out of range [0,%d)", got, limit),
	}
}

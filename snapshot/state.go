package snapshot

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"

	"gigadex/domain/account"
	"gigadex/domain/layout"
	"gigadex/domain/orderbook"
)

var (
	ErrUnexpectedAccount = errors.New("account is not tracked by this market")
	ErrNotReady          = errors.New("market snapshot incomplete")
)

// Role names what a tracked account holds.
type Role uint8

const (
	RoleAsks Role = iota
	RoleBids
	RoleFeeMod
	RoleAdditional
	numRoles
)

func (r Role) String() string {
	switch r {
	case RoleAsks:
		return "asks"
	case RoleBids:
		return "bids"
	case RoleFeeMod:
		return "fee_mod"
	case RoleAdditional:
		return "additional"
	default:
		return "unknown"
	}
}

// Keys are the addresses of the accounts a market snapshot is built from.
type Keys struct {
	Asks       solana.PublicKey
	Bids       solana.PublicKey
	FeeMod     solana.PublicKey
	Additional solana.PublicKey
}

// List returns the keys in role order.
func (k Keys) List() []solana.PublicKey {
	return []solana.PublicKey{k.Asks, k.Bids, k.FeeMod, k.Additional}
}

func (k Keys) Role(key solana.PublicKey) (Role, bool) {
	for r, candidate := range k.List() {
		if key.Equals(candidate) {
			return Role(r), true
		}
	}
	return 0, false
}

type State struct {
	Generation uint64
	// JournalSeq is the last journal record folded into this State, 0
	// when nothing is journaled.
	JournalSeq uint64

	Asks       *orderbook.Index
	Bids       *orderbook.Index
	FeeMod     layout.FeeMod
	Additional layout.Additional

	raw    [numRoles]account.Update
	loaded [numRoles]bool
}

// Ready reports whether every tracked account has been loaded.
func (s *State) Ready() bool {
	if s == nil {
		return false
	}
	for _, ok := range s.loaded {
		if !ok {
			return false
		}
	}
	return true
}

// Missing lists the roles not loaded yet.
func (s *State) Missing() []Role {
	var out []Role
	for r := Role(0); r < numRoles; r++ {
		if s == nil || !s.loaded[r] {
			out = append(out, r)
		}
	}
	return out
}

// Account returns the raw account behind role.
func (s *State) Account(r Role) (account.Update, bool) {
	if s == nil || r >= numRoles {
		return account.Update{}, false
	}
	return s.raw[r], s.loaded[r]
}

// Accounts returns the raw accounts loaded so far, in role order.
func (s *State) Accounts() []account.Update {
	out := make([]account.Update, 0, numRoles)
	for r := Role(0); r < numRoles; r++ {
		if u, ok := s.Account(r); ok {
			out = append(out, u)
		}
	}
	return out
}

// Slot is the newest slot among the loaded accounts.
func (s *State) Slot() uint64 {
	var max uint64
	for _, u := range s.Accounts() {
		if u.Slot > max {
			max = u.Slot
		}
	}
	return max
}

func (s *State) Top() (orderbook.Top, error) {
	if !s.Ready() {
		return orderbook.Top{}, ErrNotReady
	}
	return orderbook.TopOf(s.Asks, s.Bids)
}

// Apply returns the State that results from applying updates on top of
// prev, which may be nil. Updates older than the slot already held for
// the same account are skipped. An update carrying the bytes already held
// only advances that account's slot and does not count as applied. A
// decode failure rejects the whole batch and leaves prev as it was.
//
// When nothing applies, next is prev, or a copy of prev with newer slots
// that keeps prev's Generation.
func Apply(prev *State, keys Keys, updates ...account.Update) (next *State, applied int, err error) {
	var n State
	if prev != nil {
		n = *prev
	}

	var advanced bool
	for _, u := range updates {
		r, ok := keys.Role(u.Key)
		if !ok {
			return prev, 0, fmt.Errorf("%w: %s", ErrUnexpectedAccount, u.Key)
		}
		if n.loaded[r] && u.Slot < n.raw[r].Slot {
			continue
		}
		if n.loaded[r] && bytes.Equal(u.Data, n.raw[r].Data) {
			if u.Slot > n.raw[r].Slot {
				n.raw[r].Slot = u.Slot
				advanced = true
			}
			continue
		}
		if err := n.decode(r, u.Data); err != nil {
			return prev, 0, fmt.Errorf("decode %s account %s: %w", r, u.Key, err)
		}
		n.raw[r] = u
		n.loaded[r] = true
		applied++
	}
	switch {
	case applied > 0:
		n.Generation = 0
		return &n, applied, nil
	case advanced:
		return &n, 0, nil
	default:
		return prev, 0, nil
	}
}

// IsUnchanged reports whether u carries the bytes s already holds for
// its account.
func (s *State) IsUnchanged(keys Keys, u account.Update) bool {
	r, ok := keys.Role(u.Key)
	if !ok || s == nil || !s.loaded[r] {
		return false
	}
	return bytes.Equal(u.Data, s.raw[r].Data)
}

// IsStale reports whether u is older than what s already holds.
func (s *State) IsStale(keys Keys, u account.Update) bool {
	r, ok := keys.Role(u.Key)
	if !ok || s == nil || !s.loaded[r] {
		return false
	}
	return u.Slot < s.raw[r].Slot
}

func (s *State) decode(r Role, data []byte) error {
	switch r {
	case RoleAsks, RoleBids:
		tree, err := layout.DecodeOrderTree(data, layout.Envelope)
		if err != nil {
			return err
		}
		x := orderbook.NewIndex(tree)
		if err := x.Validate(); err != nil {
			return err
		}
		if r == RoleAsks {
			s.Asks = x
		} else {
			s.Bids = x
		}
	case RoleFeeMod:
		fm, err := layout.DecodeFeeMod(data, layout.Envelope)
		if err != nil {
			return err
		}
		s.FeeMod = fm
	case RoleAdditional:
		a, err := layout.DecodeAdditional(data, layout.Envelope)
		if err != nil {
			return err
		}
		s.Additional = a
	}
	return nil
}

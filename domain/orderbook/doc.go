// Package orderbook answers price queries over one decoded order tree.
//
// The tree is the program's array-backed binary search tree: nodes link
// to their children by slot index and slot 0 is the "no child" sentinel.
// Queries never mutate the tree and reject index data that revisits a
// slot, since the snapshot comes from outside and carries no structural
// guarantee.
package orderbook

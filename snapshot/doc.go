// Package snapshot holds the decoded, immutable view of one market that
// every quote reads from. A State is never modified once published:
// updates build a new State and swap it in, so a reader that loaded a
// State sees the order trees and fee schedule of a single generation
// for as long as it holds it.
package snapshot

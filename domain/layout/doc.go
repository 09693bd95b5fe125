// Package layout decodes the fixed-layout account buffers published by
// the GigaDex program: the market descriptor, the two order trees and
// the fee/auxiliary configuration accounts.
//
// Every field lives at a static offset and width. Integers are
// little-endian, addresses are copied verbatim. Nothing in this package
// allocates per field or interprets the data beyond range checks on the
// tree indices, so a decoded value can be trusted to index its own
// arrays without further bounds checks.
package layout

// Package quote simulates a market order against a decoded order tree
// and applies the market fee. It reads the tree only; amounts are
// integers in the program's fixed-point units and every multiply or add
// that could wrap is checked.
package quote

package quote

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// precisionExp is -log10(layout.Precision).
const precisionExp int32 = -6

// Units converts a fixed-point on-chain value to a decimal.
func Units(v uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(v), precisionExp)
}

// FormatUnits renders v divided by layout.Precision without rounding.
func FormatUnits(v uint64) string {
	return Units(v).String()
}

// Raw converts a decimal back to fixed-point, truncating extra digits.
// It reports false for negative values or values that do not fit in a uint64.
func Raw(d decimal.Decimal) (uint64, bool) {
	scaled := d.Shift(-precisionExp).Truncate(0)
	if scaled.Sign() < 0 {
		return 0, false
	}
	bi := scaled.BigInt()
	if !bi.IsUint64() {
		return 0, false
	}
	return bi.Uint64(), true
}

package quote

import (
	"errors"
	"fmt"
)

// BasisPoints is 100%.
const BasisPoints = 10_000

var ErrInvalidFeeConfiguration = errors.New("invalid fee configuration")

// ApplyFee splits amountOut into the amount the taker keeps and the fee,
// rounding the fee down.
func ApplyFee(amountOut, feeBp uint64) (net, fee uint64, err error) {
	if feeBp > BasisPoints {
		return 0, 0, fmt.Errorf("%w: fee %d bp exceeds %d", ErrInvalidFeeConfiguration, feeBp, BasisPoints)
	}
	scaled, err := mulU64(amountOut, feeBp, "amount out * fee bp")
	if err != nil {
		return 0, 0, err
	}
	fee = scaled / BasisPoints
	return amountOut - fee, fee, nil
}

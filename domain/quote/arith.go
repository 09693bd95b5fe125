package quote

import (
	"errors"
	"fmt"
	"math/bits"
)

var ErrArithmeticOverflow = errors.New("arithmetic overflow")

func mulU64(a, b uint64, what string) (uint64, error) {
	hi, lo := bits.Mul64(a, b)
	if hi != 0 {
		return 0, fmt.Errorf("%w: %s (%d * %d)", ErrArithmeticOverflow, what, a, b)
	}
	return lo, nil
}

func addU64(a, b uint64, what string) (uint64, error) {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return 0, fmt.Errorf("%w: %s (%d + %d)", ErrArithmeticOverflow, what, a, b)
	}
	return sum, nil
}

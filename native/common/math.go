package common

import (
	"errors"
	"math/big"
)

// ErrNumericOverflow is returned whenever a lamport computation would leave
// the uint64 range. Callers must treat it as a hard precondition failure.
var ErrNumericOverflow = errors.New("numeric overflow")

var bpDenominator = big.NewInt(10_000)

// BasisPointMax is the denominator for all basis-point rates.
const BasisPointMax = 10_000

// SafeAdd returns a+b or ErrNumericOverflow.
func SafeAdd(a, b uint64) (uint64, error) {
	sum := a + b
	if sum < a {
		return 0, ErrNumericOverflow
	}
	return sum, nil
}

// SafeSub returns a-b or ErrNumericOverflow when b exceeds a.
func SafeSub(a, b uint64) (uint64, error) {
	if b > a {
		return 0, ErrNumericOverflow
	}
	return a - b, nil
}

// BpShare computes value*bp/10000 with a 128-bit intermediate so large lamport
// amounts cannot overflow mid-multiplication. Division truncates.
func BpShare(value uint64, bp uint32) (uint64, error) {
	if bp == 0 || value == 0 {
		return 0, nil
	}
	product := new(big.Int).Mul(new(big.Int).SetUint64(value), new(big.Int).SetUint64(uint64(bp)))
	product.Div(product, bpDenominator)
	if !product.IsUint64() {
		return 0, ErrNumericOverflow
	}
	return product.Uint64(), nil
}

// Share computes value*numerator/denominator, truncating. Used for pro-rata
// creator splits where the denominator is the total share count.
func Share(value, numerator, denominator uint64) (uint64, error) {
	if denominator == 0 {
		return 0, ErrNumericOverflow
	}
	if numerator == 0 || value == 0 {
		return 0, nil
	}
	product := new(big.Int).Mul(new(big.Int).SetUint64(value), new(big.Int).SetUint64(numerator))
	product.Div(product, new(big.Int).SetUint64(denominator))
	if !product.IsUint64() {
		return 0, ErrNumericOverflow
	}
	return product.Uint64(), nil
}

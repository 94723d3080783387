package engine

import "math"

// Checked arithmetic. All ledger amounts are uint64; a subtraction that
// would underflow means the caller asked for more than is available, and
// an addition that would overflow is a malformed input.

func addU64(a, b uint64) (uint64, error) {
	if a > math.MaxUint64-b {
		return 0, ErrTypeOverflow
	}
	return a + b, nil
}

func subU64(a, b uint64) (uint64, error) {
	if b > a {
		return 0, ErrInsufficientAmount
	}
	return a - b, nil
}

func minU64(a, b uint64) uint64 {
	if a < b {
		return a
	}
	return b
}

// Package fee implements the protocol fee arithmetic. All fees are integer
// basis points on a /1000 scale with floor division, computed before any
// multiplication to match the reference values exactly.
package fee

// Scale is the denominator for all fee percentages.
const Scale = 1000

// Amount returns the flat fee for a single operation: amount/1000*bps,
// floor division first.
func Amount(amount, bps uint64) uint64 {
	return amount / Scale * bps
}

// Storage returns the accrued storage fee for a collateral held from
// creationEpoch to currentEpoch. The fee compounds per epoch: each elapsed
// epoch charges bps/1000 of the remaining delegation, not of the original
// amount.
func Storage(bps, currentEpoch, creationEpoch, amount uint64) uint64 {
	if currentEpoch <= creationEpoch {
		return 0
	}

	var total uint64
	remaining := amount
	for epoch := creationEpoch; epoch < currentEpoch; epoch++ {
		epochFee := remaining / Scale * bps
		total += epochFee
		remaining -= epochFee
	}
	return total
}

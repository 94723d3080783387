// Package oracle implements the off-chain priority queue worker. Each
// cycle it reads all users and collaterals, ranks collateral for forced
// liquidation, and publishes the ranking as update_oracle_info chunks.
package oracle

import (
	"bytes"
	"sort"

	"github.com/mfactory-lab/omnisol/internal/state"
)

// GeneratePriorityQueue maps collateral to its liquidatable remainder,
// ranked by ascending user rate so the lowest-rate (highest-risk)
// depositors come first. Within one user, collaterals keep creation
// order. Output is capped at the oracle's queue capacity; entries past
// the cap are simply dropped this cycle.
//
// The ranking is deterministic under reordering of either input: ties on
// rate break on wallet bytes, ties on creation time break on address
// bytes.
func GeneratePriorityQueue(users []state.User, collaterals []state.Collateral) []state.QueueMember {
	ranked := make([]state.User, len(users))
	copy(ranked, users)
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Rate != ranked[j].Rate {
			return ranked[i].Rate < ranked[j].Rate
		}
		return bytes.Compare(ranked[i].Wallet[:], ranked[j].Wallet[:]) < 0
	})

	byUser := make(map[[16]byte][]state.Collateral, len(users))
	for _, c := range collaterals {
		byUser[c.User] = append(byUser[c.User], c)
	}
	for _, cols := range byUser {
		sort.Slice(cols, func(i, j int) bool {
			if !cols[i].CreatedAt.Equal(cols[j].CreatedAt) {
				return cols[i].CreatedAt.Before(cols[j].CreatedAt)
			}
			return bytes.Compare(cols[i].Address[:], cols[j].Address[:]) < 0
		})
	}

	var queue []state.QueueMember
	for _, u := range ranked {
		for _, c := range byUser[u.Wallet] {
			remainder := c.LiquidatableRemainder()
			if remainder == 0 {
				continue
			}
			queue = append(queue, state.QueueMember{
				Collateral: c.Address,
				Amount:     remainder,
			})
			if len(queue) == state.QueueCapacity {
				return queue
			}
		}
	}
	return queue
}

// queuesEqual reports whether two queues carry the same entries in the
// same order. An unchanged queue is not republished.
func queuesEqual(a, b []state.QueueMember) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

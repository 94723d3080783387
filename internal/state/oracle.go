package state

import (
	"github.com/google/uuid"
)

// QueueCapacity bounds the on-ledger priority queue. Entries beyond the cap
// are dropped for the cycle, lowest priority last.
const QueueCapacity = 100

// QueueMember is one priority-queue entry: a collateral and the amount of
// it available for liquidation at publish time.
type QueueMember struct {
	Collateral uuid.UUID `json:"collateral"`
	Amount     uint64    `json:"amount"`
}

// Oracle holds the published liquidation priority queue. It is rewritten
// wholesale each publish cycle via a clear-then-append chunk protocol.
type Oracle struct {
	Authority     uuid.UUID
	PriorityQueue []QueueMember
}

// Find returns the queue entry for a collateral address, if present.
func (o *Oracle) Find(collateral uuid.UUID) (int, *QueueMember) {
	for i := range o.PriorityQueue {
		if o.PriorityQueue[i].Collateral == collateral {
			return i, &o.PriorityQueue[i]
		}
	}
	return -1, nil
}

func (o *Oracle) appendDigest(buf []byte) []byte {
	buf = append(buf, 'O')
	buf = append(buf, o.Authority[:]...)
	buf = appendUint64LE(buf, uint64(len(o.PriorityQueue)))
	for _, m := range o.PriorityQueue {
		buf = append(buf, m.Collateral[:]...)
		buf = appendUint64LE(buf, m.Amount)
	}
	return buf
}

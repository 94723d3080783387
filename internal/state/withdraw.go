package state

import (
	"time"

	"github.com/google/uuid"
)

// WithdrawInfo is one outstanding burn request awaiting liquidation-sourced
// settlement. Amount is the remaining derivative value to satisfy; the
// record is destroyed when it reaches zero. Requests are processed
// oldest-first by CreatedAt.
type WithdrawInfo struct {
	Address   uuid.UUID
	Authority uuid.UUID
	Amount    uint64
	CreatedAt time.Time
}

func (w *WithdrawInfo) appendDigest(buf []byte) []byte {
	buf = append(buf, 'W')
	buf = append(buf, w.Address[:]...)
	buf = append(buf, w.Authority[:]...)
	buf = appendUint64LE(buf, w.Amount)
	buf = appendUint64LE(buf, uint64(w.CreatedAt.UnixMicro()))
	return buf
}

package state

import (
	"github.com/google/uuid"
)

// User is one per depositor wallet. Rate is the value pledged as collateral
// that has not yet been minted against; it decreases as derivative tokens
// are minted and is the oracle's liquidation-priority key (lowest first).
//
// Registered is an explicit initialization tag. A User record only exists
// after the first deposit registers it; handlers must never infer existence
// from field contents.
type User struct {
	Wallet            uuid.UUID
	Rate              uint64
	Blocked           bool
	RequestsAmount    uint64
	LastWithdrawIndex uint64
	Registered        bool
}

func (u *User) appendDigest(buf []byte) []byte {
	buf = append(buf, 'U')
	buf = append(buf, u.Wallet[:]...)
	buf = appendUint64LE(buf, u.Rate)
	if u.Blocked {
		buf = append(buf, 1)
	} else {
		buf = append(buf, 0)
	}
	buf = appendUint64LE(buf, u.RequestsAmount)
	buf = appendUint64LE(buf, u.LastWithdrawIndex)
	return buf
}

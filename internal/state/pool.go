package state

import (
	"github.com/google/uuid"
)

// Pool is one per supported stake source: the native stake program or a
// specific LP token. It tracks aggregate deposits and the fee schedule
// applied to all collateral recorded against it.
type Pool struct {
	Address       uuid.UUID
	Authority     uuid.UUID
	PoolMint      uuid.UUID
	StakeSource   uuid.UUID
	FeeReceiver   uuid.UUID
	DepositAmount uint64
	Collaterals   uint64
	Active        bool

	// Fee schedule, basis points on a /1000 scale.
	DepositFeeBps  uint64
	MintFeeBps     uint64
	WithdrawFeeBps uint64
	StorageFeeBps  uint64

	MinDeposit uint64
}

func (p *Pool) appendDigest(buf []byte) []byte {
	buf = append(buf, 'P')
	buf = append(buf, p.Address[:]...)
	buf = append(buf, p.PoolMint[:]...)
	buf = appendUint64LE(buf, p.DepositAmount)
	buf = appendUint64LE(buf, p.Collaterals)
	if p.Active {
		buf = append(buf, 1)
	} else {
		buf = append(buf, 0)
	}
	buf = appendUint64LE(buf, p.DepositFeeBps)
	buf = appendUint64LE(buf, p.MintFeeBps)
	buf = appendUint64LE(buf, p.WithdrawFeeBps)
	buf = appendUint64LE(buf, p.StorageFeeBps)
	buf = appendUint64LE(buf, p.MinDeposit)
	return buf
}

func appendUint64LE(buf []byte, v uint64) []byte {
	return append(buf,
		byte(v),
		byte(v>>8),
		byte(v>>16),
		byte(v>>24),
		byte(v>>32),
		byte(v>>40),
		byte(v>>48),
		byte(v>>56),
	)
}

package state

import (
	"github.com/google/uuid"
)

// WhitelistEntry maps an approved LP token to the staking pool that backs
// it. Non-native liquidation resolves accounts through this mapping.
type WhitelistEntry struct {
	Token           uuid.UUID
	StakingPool     uuid.UUID
	StakingPoolProg uuid.UUID
}

// ValidatorStake is one validator stake account in a staking pool's list,
// with the amount currently staked to it.
type ValidatorStake struct {
	StakeAccount uuid.UUID `json:"stake_account"`
	ActiveStake  uint64    `json:"active_stake"`
}

// StakePool mirrors an external staking pool's on-chain state: the accounts
// the liquidator needs to build withdraw-sol / withdraw-stake calls.
// Refreshed by the pool authority alongside whitelist updates.
type StakePool struct {
	Address           uuid.UUID
	Mint              uuid.UUID
	ReserveStake      uuid.UUID
	ReserveBalance    uint64
	ManagerFeeAccount uuid.UUID
	Validators        []ValidatorStake
}

// Liquidator is a capability record: the wallet may execute liquidation
// instructions against any pool.
type Liquidator struct {
	Authority uuid.UUID
}

// Manager is a capability record: the wallet may perform administrative
// pool operations.
type Manager struct {
	Authority uuid.UUID
}

func (w *WhitelistEntry) appendDigest(buf []byte) []byte {
	buf = append(buf, 'T')
	buf = append(buf, w.Token[:]...)
	buf = append(buf, w.StakingPool[:]...)
	return buf
}

func (s *StakePool) appendDigest(buf []byte) []byte {
	buf = append(buf, 'S')
	buf = append(buf, s.Address[:]...)
	buf = append(buf, s.ReserveStake[:]...)
	buf = appendUint64LE(buf, s.ReserveBalance)
	buf = appendUint64LE(buf, uint64(len(s.Validators)))
	for _, v := range s.Validators {
		buf = append(buf, v.StakeAccount[:]...)
		buf = appendUint64LE(buf, v.ActiveStake)
	}
	return buf
}

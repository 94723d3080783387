package query

import "github.com/google/uuid"

// PoolResponse represents a pool for API queries.
type PoolResponse struct {
	Address        uuid.UUID `json:"address"`
	Authority      uuid.UUID `json:"authority"`
	PoolMint       uuid.UUID `json:"pool_mint"`
	StakeSource    uuid.UUID `json:"stake_source"`
	FeeReceiver    uuid.UUID `json:"fee_receiver"`
	DepositAmount  uint64    `json:"deposit_amount"`
	Collaterals    uint64    `json:"collaterals"`
	Active         bool      `json:"active"`
	DepositFeeBps  uint64    `json:"deposit_fee_bps"`
	MintFeeBps     uint64    `json:"mint_fee_bps"`
	WithdrawFeeBps uint64    `json:"withdraw_fee_bps"`
	StorageFeeBps  uint64    `json:"storage_fee_bps"`
	MinDeposit     uint64    `json:"min_deposit"`
	AsOfSequence   int64     `json:"as_of_sequence"`
}

// UserResponse represents a depositor for API queries.
type UserResponse struct {
	Wallet            uuid.UUID `json:"wallet"`
	Rate              uint64    `json:"rate"`
	Blocked           bool      `json:"blocked"`
	RequestsAmount    uint64    `json:"requests_amount"`
	LastWithdrawIndex uint64    `json:"last_withdraw_index"`
	AsOfSequence      int64     `json:"as_of_sequence"`
}

// CollateralResponse represents a collateral record for API queries.
type CollateralResponse struct {
	Address          uuid.UUID `json:"address"`
	User             uuid.UUID `json:"user"`
	Pool             uuid.UUID `json:"pool"`
	StakeSource      uuid.UUID `json:"stake_source"`
	DelegatedStake   uuid.UUID `json:"delegated_stake"`
	DelegationStake  uint64    `json:"delegation_stake"`
	Amount           uint64    `json:"amount"`
	LiquidatedAmount uint64    `json:"liquidated_amount"`
	CreatedAtUs      int64     `json:"created_at_us"`
	CreationEpoch    uint64    `json:"creation_epoch"`
	IsNative         bool      `json:"is_native"`
	AsOfSequence     int64     `json:"as_of_sequence"`
}

// WithdrawRequestResponse represents one pending withdrawal.
type WithdrawRequestResponse struct {
	Address      uuid.UUID `json:"address"`
	Authority    uuid.UUID `json:"authority"`
	Amount       uint64    `json:"amount"`
	CreatedAtUs  int64     `json:"created_at_us"`
	AsOfSequence int64     `json:"as_of_sequence"`
}

// QueueMemberResponse is one priority-queue entry.
type QueueMemberResponse struct {
	Collateral uuid.UUID `json:"collateral"`
	Amount     uint64    `json:"amount"`
}

// OracleResponse represents the oracle record and its queue.
type OracleResponse struct {
	Authority    uuid.UUID             `json:"authority"`
	Queue        []QueueMemberResponse `json:"queue"`
	AsOfSequence int64                 `json:"as_of_sequence"`
}

// WhitelistResponse represents one approved LP token.
type WhitelistResponse struct {
	Token           uuid.UUID `json:"token"`
	StakingPool     uuid.UUID `json:"staking_pool"`
	StakingPoolProg uuid.UUID `json:"staking_pool_prog"`
}

// ValidatorStakeResponse is one validator entry of a staking pool mirror.
type ValidatorStakeResponse struct {
	StakeAccount uuid.UUID `json:"stake_account"`
	ActiveStake  uint64    `json:"active_stake"`
}

// StakePoolResponse represents the mirrored layout of an external
// staking pool.
type StakePoolResponse struct {
	Address           uuid.UUID                `json:"address"`
	Mint              uuid.UUID                `json:"mint"`
	ReserveStake      uuid.UUID                `json:"reserve_stake"`
	ReserveBalance    uint64                   `json:"reserve_balance"`
	ManagerFeeAccount uuid.UUID                `json:"manager_fee_account"`
	Validators        []ValidatorStakeResponse `json:"validators"`
}

// StatusResponse reports engine progress and aggregate counts.
type StatusResponse struct {
	Sequence           int64  `json:"sequence"`
	StateHash          string `json:"state_hash"`
	Pools              int    `json:"pools"`
	Users              int    `json:"users"`
	Collaterals        int    `json:"collaterals"`
	PendingWithdrawals int    `json:"pending_withdrawals"`
}

package event

import (
	"time"

	"github.com/google/uuid"
)

// RegisterUser fires when a wallet's User record is created on first
// deposit.
type RegisterUser struct {
	Pool      uuid.UUID `json:"pool"`
	User      uuid.UUID `json:"user"`
	Timestamp time.Time `json:"timestamp"`
}

func (e *RegisterUser) EventType() Type    { return TypeRegisterUser }
func (e *RegisterUser) PoolID() *uuid.UUID { return &e.Pool }

// DepositStake fires on every deposit, native or LP.
type DepositStake struct {
	Pool       uuid.UUID `json:"pool"`
	Collateral uuid.UUID `json:"collateral"`
	User       uuid.UUID `json:"user"`
	Amount     uint64    `json:"amount"`
	Fee        uint64    `json:"fee"`
	Timestamp  time.Time `json:"timestamp"`
}

func (e *DepositStake) EventType() Type    { return TypeDepositStake }
func (e *DepositStake) PoolID() *uuid.UUID { return &e.Pool }

// MintOmnisol fires when derivative tokens are minted against a collateral.
// StorageFee is non-zero only when the mint closed the collateral.
type MintOmnisol struct {
	Pool       uuid.UUID `json:"pool"`
	Collateral uuid.UUID `json:"collateral"`
	User       uuid.UUID `json:"user"`
	Amount     uint64    `json:"amount"`
	Fee        uint64    `json:"fee"`
	StorageFee uint64    `json:"storage_fee"`
	Timestamp  time.Time `json:"timestamp"`
}

func (e *MintOmnisol) EventType() Type    { return TypeMintOmnisol }
func (e *MintOmnisol) PoolID() *uuid.UUID { return &e.Pool }

// WithdrawRequestCreation fires when a burn creates a pending withdrawal.
type WithdrawRequestCreation struct {
	Pool         uuid.UUID `json:"pool"`
	WithdrawInfo uuid.UUID `json:"withdraw_info"`
	User         uuid.UUID `json:"user"`
	Amount       uint64    `json:"amount"`
	Timestamp    time.Time `json:"timestamp"`
}

func (e *WithdrawRequestCreation) EventType() Type    { return TypeWithdrawRequestCreation }
func (e *WithdrawRequestCreation) PoolID() *uuid.UUID { return &e.Pool }

// WithdrawStake fires when a user withdraws collateral directly.
// RestAmount is the delegation left on the collateral after the withdrawal.
// WithMerge tells the executor to merge the split into the user's stake
// account instead of handing over a fresh one.
type WithdrawStake struct {
	Pool       uuid.UUID `json:"pool"`
	Collateral uuid.UUID `json:"collateral"`
	User       uuid.UUID `json:"user"`
	Amount     uint64    `json:"amount"`
	RestAmount uint64    `json:"rest_amount"`
	Burned     uint64    `json:"burned"`
	Fee        uint64    `json:"fee"`
	WithMerge  bool      `json:"with_merge"`
	Timestamp  time.Time `json:"timestamp"`
}

func (e *WithdrawStake) EventType() Type    { return TypeWithdrawStake }
func (e *WithdrawStake) PoolID() *uuid.UUID { return &e.Pool }

// Liquidation fires when a liquidator consumes a priority-queue entry.
// RestAmount is the collateral's liquidatable remainder after this step.
type Liquidation struct {
	Pool       uuid.UUID `json:"pool"`
	Collateral uuid.UUID `json:"collateral"`
	Authority  uuid.UUID `json:"authority"` // wallet whose request was satisfied
	Amount     uint64    `json:"amount"`
	RestAmount uint64    `json:"rest_amount"`
	Timestamp  time.Time `json:"timestamp"`
}

func (e *Liquidation) EventType() Type    { return TypeLiquidation }
func (e *Liquidation) PoolID() *uuid.UUID { return &e.Pool }

// OracleUpdated fires when an update_oracle_info chunk lands.
type OracleUpdated struct {
	Oracle      uuid.UUID `json:"oracle"`
	QueueLength int       `json:"queue_length"`
	Cleared     bool      `json:"cleared"`
	Timestamp   time.Time `json:"timestamp"`
}

func (e *OracleUpdated) EventType() Type    { return TypeOracleUpdated }
func (e *OracleUpdated) PoolID() *uuid.UUID { return nil }

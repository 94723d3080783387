package instruction

import (
	"time"

	"github.com/google/uuid"
)

// Kind discriminator for instruction payloads
type Kind int32

const (
	KindUnknown Kind = iota
	KindInitPool
	KindPausePool
	KindResumePool
	KindClosePool
	KindSetFees
	KindAddManager
	KindRemoveManager
	KindAddLiquidator
	KindRemoveLiquidator
	KindAddToWhitelist
	KindRemoveFromWhitelist
	KindBlockUser
	KindUnblockUser
	KindInitOracle
	KindCloseOracle
	KindDepositStake
	KindDepositLP
	KindMintOmnisol
	KindBurnOmnisol
	KindWithdrawStake
	KindWithdrawLPTokens
	KindLiquidateCollateral
	KindUpdateOracleInfo
)

// Instruction is the interface all instruction payloads implement.
type Instruction interface {
	// IdempotencyKey returns the stable dedup key
	IdempotencyKey() string

	// InstructionKind returns the discriminator
	InstructionKind() Kind

	// Signer returns the wallet that signed the instruction
	Signer() uuid.UUID

	// SourceSequence returns the signer's ordering key
	SourceSequence() int64

	// Time returns the versioned instruction timestamp
	Time() time.Time
}

// Header carries the fields common to every instruction. The engine never
// reads wall-clock time; Timestamp is a versioned input like everything
// else.
type Header struct {
	ID        uuid.UUID
	Authority uuid.UUID
	Sequence  int64
	Timestamp time.Time
}

func (h Header) IdempotencyKey() string { return h.ID.String() }
func (h Header) Signer() uuid.UUID      { return h.Authority }
func (h Header) SourceSequence() int64  { return h.Sequence }
func (h Header) Time() time.Time        { return h.Timestamp }

// AccountMeta is one entry of a liquidation instruction's remaining-account
// tail.
type AccountMeta struct {
	Address  uuid.UUID `json:"address"`
	Signer   bool      `json:"signer"`
	Writable bool      `json:"writable"`
}

// ValidatorStakeInfo mirrors one validator entry of an external staking
// pool, carried by whitelist updates.
type ValidatorStakeInfo struct {
	StakeAccount uuid.UUID `json:"stake_account"`
	ActiveStake  uint64    `json:"active_stake"`
}

// --- Administrative instructions ---

type InitPool struct {
	Header
	Pool        uuid.UUID
	PoolMint    uuid.UUID
	StakeSource uuid.UUID
	FeeReceiver uuid.UUID
	MinDeposit  uint64
}

func (i *InitPool) InstructionKind() Kind { return KindInitPool }

type PausePool struct {
	Header
	Pool uuid.UUID
}

func (i *PausePool) InstructionKind() Kind { return KindPausePool }

type ResumePool struct {
	Header
	Pool uuid.UUID
}

func (i *ResumePool) InstructionKind() Kind { return KindResumePool }

type ClosePool struct {
	Header
	Pool uuid.UUID
}

func (i *ClosePool) InstructionKind() Kind { return KindClosePool }

type SetFees struct {
	Header
	Pool           uuid.UUID
	DepositFeeBps  uint64
	MintFeeBps     uint64
	WithdrawFeeBps uint64
	StorageFeeBps  uint64
	MinDeposit     uint64
}

func (i *SetFees) InstructionKind() Kind { return KindSetFees }

type AddManager struct {
	Header
	Manager uuid.UUID
}

func (i *AddManager) InstructionKind() Kind { return KindAddManager }

type RemoveManager struct {
	Header
	Manager uuid.UUID
}

func (i *RemoveManager) InstructionKind() Kind { return KindRemoveManager }

type AddLiquidator struct {
	Header
	Liquidator uuid.UUID
}

func (i *AddLiquidator) InstructionKind() Kind { return KindAddLiquidator }

type RemoveLiquidator struct {
	Header
	Liquidator uuid.UUID
}

func (i *RemoveLiquidator) InstructionKind() Kind { return KindRemoveLiquidator }

// AddToWhitelist approves an LP token and mirrors its backing staking
// pool's account layout so liquidation can resolve accounts offline.
type AddToWhitelist struct {
	Header
	Token             uuid.UUID
	StakingPool       uuid.UUID
	StakingPoolProg   uuid.UUID
	ReserveStake      uuid.UUID
	ReserveBalance    uint64
	ManagerFeeAccount uuid.UUID
	Validators        []ValidatorStakeInfo
}

func (i *AddToWhitelist) InstructionKind() Kind { return KindAddToWhitelist }

type RemoveFromWhitelist struct {
	Header
	Token uuid.UUID
}

func (i *RemoveFromWhitelist) InstructionKind() Kind { return KindRemoveFromWhitelist }

type BlockUser struct {
	Header
	Wallet uuid.UUID
}

func (i *BlockUser) InstructionKind() Kind { return KindBlockUser }

type UnblockUser struct {
	Header
	Wallet uuid.UUID
}

func (i *UnblockUser) InstructionKind() Kind { return KindUnblockUser }

type InitOracle struct {
	Header
	OracleAuthority uuid.UUID
}

func (i *InitOracle) InstructionKind() Kind { return KindInitOracle }

type CloseOracle struct {
	Header
}

func (i *CloseOracle) InstructionKind() Kind { return KindCloseOracle }

// --- User instructions ---

// DepositStake pledges a native stake account. StakeDelegation is the
// stake account's delegated amount, read by the caller from the host
// ledger; SplitAccount receives the split when Amount < StakeDelegation.
type DepositStake struct {
	Header
	Pool            uuid.UUID
	StakeSource     uuid.UUID
	SplitAccount    uuid.UUID
	Amount          uint64
	StakeDelegation uint64
}

func (i *DepositStake) InstructionKind() Kind { return KindDepositStake }

// DepositLP pledges whitelisted LP tokens from a token account.
type DepositLP struct {
	Header
	Pool   uuid.UUID
	Token  uuid.UUID
	Source uuid.UUID
	Amount uint64
}

func (i *DepositLP) InstructionKind() Kind { return KindDepositLP }

type MintOmnisol struct {
	Header
	Pool       uuid.UUID
	Collateral uuid.UUID
	Amount     uint64
}

func (i *MintOmnisol) InstructionKind() Kind { return KindMintOmnisol }

// BurnOmnisol burns derivative tokens without presenting a stake account,
// creating a pending withdraw request to be satisfied by liquidation.
type BurnOmnisol struct {
	Header
	Pool   uuid.UUID
	Amount uint64
}

func (i *BurnOmnisol) InstructionKind() Kind { return KindBurnOmnisol }

type WithdrawStake struct {
	Header
	Pool       uuid.UUID
	Collateral uuid.UUID
	Amount     uint64
	WithBurn   bool
	WithMerge  bool
}

func (i *WithdrawStake) InstructionKind() Kind { return KindWithdrawStake }

type WithdrawLPTokens struct {
	Header
	Pool       uuid.UUID
	Collateral uuid.UUID
	Amount     uint64
	WithBurn   bool
}

func (i *WithdrawLPTokens) InstructionKind() Kind { return KindWithdrawLPTokens }

// LiquidateCollateral consumes a priority-queue entry to satisfy part of a
// withdraw request. SplitAccount is the liquidator's ephemeral keypair for
// partial native splits; Accounts is the resolved remaining-account tail.
type LiquidateCollateral struct {
	Header
	Pool         uuid.UUID
	Collateral   uuid.UUID
	WithdrawInfo uuid.UUID
	Amount       uint64
	SplitAccount uuid.UUID
	Accounts     []AccountMeta
}

func (i *LiquidateCollateral) InstructionKind() Kind { return KindLiquidateCollateral }

// UpdateOracleInfo publishes one chunk of the recomputed priority queue.
// Clear wipes the stored queue before appending; the publisher sets it on
// the first chunk of each cycle only.
type UpdateOracleInfo struct {
	Header
	Addresses []uuid.UUID
	Values    []uint64
	Clear     bool
}

func (i *UpdateOracleInfo) InstructionKind() Kind { return KindUpdateOracleInfo }

func (k Kind) String() string {
	switch k {
	case KindInitPool:
		return "InitPool"
	case KindPausePool:
		return "PausePool"
	case KindResumePool:
		return "ResumePool"
	case KindClosePool:
		return "ClosePool"
	case KindSetFees:
		return "SetFees"
	case KindAddManager:
		return "AddManager"
	case KindRemoveManager:
		return "RemoveManager"
	case KindAddLiquidator:
		return "AddLiquidator"
	case KindRemoveLiquidator:
		return "RemoveLiquidator"
	case KindAddToWhitelist:
		return "AddToWhitelist"
	case KindRemoveFromWhitelist:
		return "RemoveFromWhitelist"
	case KindBlockUser:
		return "BlockUser"
	case KindUnblockUser:
		return "UnblockUser"
	case KindInitOracle:
		return "InitOracle"
	case KindCloseOracle:
		return "CloseOracle"
	case KindDepositStake:
		return "DepositStake"
	case KindDepositLP:
		return "DepositLP"
	case KindMintOmnisol:
		return "MintOmnisol"
	case KindBurnOmnisol:
		return "BurnOmnisol"
	case KindWithdrawStake:
		return "WithdrawStake"
	case KindWithdrawLPTokens:
		return "WithdrawLPTokens"
	case KindLiquidateCollateral:
		return "LiquidateCollateral"
	case KindUpdateOracleInfo:
		return "UpdateOracleInfo"
	default:
		return "Unknown"
	}
}

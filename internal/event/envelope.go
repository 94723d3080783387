package event

import (
	"time"

	"github.com/google/uuid"
)

// Type discriminator for event payloads
type Type int32

const (
	TypeUnknown Type = iota
	TypeRegisterUser
	TypeDepositStake
	TypeMintOmnisol
	TypeWithdrawRequestCreation
	TypeWithdrawStake
	TypeLiquidation
	TypeOracleUpdated
)

// Envelope wraps every event in the log
type Envelope struct {
	// Global monotonic sequence assigned by the engine
	Sequence int64

	// Idempotency key of the instruction that produced this event
	InstructionKey string

	// Event type discriminator
	Type Type

	// Pool context (nullable for pool-less events)
	Pool *uuid.UUID

	// Versioned input timestamp (NOT wall-clock)
	Timestamp time.Time

	// Upstream instruction sequence for ordering validation
	SourceSequence int64

	// JSON-encoded event-specific data
	Payload []byte

	// SHA-256 of state AFTER applying the instruction
	StateHash [32]byte

	// Previous envelope's state hash (chain integrity)
	PrevHash [32]byte
}

// Event is the interface all event payloads implement
type Event interface {
	// EventType returns the discriminator
	EventType() Type

	// PoolID returns the pool context (nil for pool-less events)
	PoolID() *uuid.UUID
}

func (t Type) String() string {
	switch t {
	case TypeRegisterUser:
		return "RegisterUserEvent"
	case TypeDepositStake:
		return "DepositStakeEvent"
	case TypeMintOmnisol:
		return "MintOmnisolEvent"
	case TypeWithdrawRequestCreation:
		return "WithdrawRequestCreationEvent"
	case TypeWithdrawStake:
		return "WithdrawStakeEvent"
	case TypeLiquidation:
		return "LiquidationEvent"
	case TypeOracleUpdated:
		return "OracleUpdatedEvent"
	default:
		return "Unknown"
	}
}

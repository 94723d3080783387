package engine

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mfactory-lab/omnisol/internal/event"
	"github.com/mfactory-lab/omnisol/internal/instruction"
	"github.com/mfactory-lab/omnisol/internal/observability"
	"github.com/mfactory-lab/omnisol/internal/state"
)

// Engine is the single-threaded deterministic instruction processor. All
// ledger state lives in the Store; instructions mutate it atomically, emit
// domain events, and extend the state hash chain.
type Engine struct {
	sequence          int64
	store             *state.Store
	hasher            *StateHasher
	epochs            EpochSchedule
	idempotency       *IdempotencyChecker
	sequenceValidator *SequenceValidator
	unstakers         []Unstaker
	metrics           *observability.Metrics

	persistChan chan<- Output
	publishChan chan<- Output
}

// Output is one processed envelope handed to the persistence and publish
// workers.
type Output struct {
	Envelope   *event.Envelope
	StateDelta []byte
}

// outcome is what a handler returns: the events to emit and the addresses
// whose records the instruction touched (created, mutated, or deleted).
type outcome struct {
	events  []event.Event
	touched []uuid.UUID
}

func NewEngine(
	startSequence int64,
	persistChan, publishChan chan<- Output,
	dbChecker DBIdempotencyChecker,
	metrics *observability.Metrics,
) *Engine {
	return &Engine{
		sequence: startSequence,
		store:    state.NewStore(),
		hasher:   NewStateHasher(),
		epochs:   DefaultEpochSchedule(),

		// Capacity of 1M entries (configurable)
		idempotency:       NewIdempotencyChecker(1_000_000, dbChecker),
		sequenceValidator: NewSequenceValidator(),
		unstakers:         DefaultUnstakers(),
		metrics:           metrics,
		persistChan:       persistChan,
		publishChan:       publishChan,
	}
}

// Store exposes the ledger state for concurrent readers (query API,
// off-chain workers). Writers are only ever the engine itself.
func (e *Engine) Store() *state.Store {
	return e.store
}

// Process is the main processing pipeline.
func (e *Engine) Process(inst instruction.Instruction) error {
	start := time.Now()
	kind := inst.InstructionKind().String()
	idempotencyKey := inst.IdempotencyKey()

	// Step 1: Idempotency check (two-tier)
	isDuplicate := e.idempotency.IsDuplicate(kind, idempotencyKey)

	// Step 2: Sequence validation, partitioned by signer wallet
	partition := fmt.Sprintf("wallet:%s", inst.Signer())
	sourceSequence := inst.SourceSequence()

	if err := e.sequenceValidator.ValidateSequence(partition, sourceSequence, idempotencyKey, isDuplicate); err != nil {
		return fmt.Errorf("sequence validation failed: %w", err)
	}

	if isDuplicate {
		if e.metrics != nil {
			e.metrics.InstructionsRejected.WithLabelValues(kind, "duplicate").Inc()
		}
		return nil
	}

	// Step 3: Dispatch. Handlers validate fully before writing anything
	// back to the store, so an error here means no mutation happened.
	out, err := e.dispatch(inst)
	if err != nil {
		if e.metrics != nil {
			e.metrics.InstructionsRejected.WithLabelValues(kind, "validation").Inc()
		}
		return fmt.Errorf("dispatch failed: %w", err)
	}

	// Step 4: State digest over the touched records
	stateDigest := e.store.Digest(out.touched)

	// Step 5: Envelope per emitted event, each extending the hash chain
	outputs := make([]Output, 0, len(out.events))
	for _, evt := range out.events {
		payload, err := json.Marshal(evt)
		if err != nil {
			return fmt.Errorf("marshal %s payload: %w", evt.EventType(), err)
		}

		prevHash := e.hasher.GetPrevHash()
		stateHash := e.hasher.ComputeHash(e.sequence, stateDigest)

		envelope := &event.Envelope{
			Sequence:       e.sequence,
			InstructionKey: idempotencyKey,
			Type:           evt.EventType(),
			Pool:           evt.PoolID(),
			Timestamp:      inst.Time(),
			SourceSequence: sourceSequence,
			Payload:        payload,
			StateHash:      stateHash,
			PrevHash:       prevHash,
		}

		outputs = append(outputs, Output{Envelope: envelope, StateDelta: stateDigest})
		e.sequence++
	}

	// Step 6: Emit outputs. Persist channel uses a BLOCKING send
	// (backpressure), publish channel a NON-BLOCKING send with drop.
	for _, output := range outputs {
		e.persistChan <- output

		select {
		case e.publishChan <- output:
		default:
			if e.metrics != nil {
				e.metrics.PublishDrops.Inc()
			}
		}
	}

	// Step 7: Mark as processed (add to LRU)
	e.idempotency.MarkProcessed(kind, idempotencyKey)

	if e.metrics != nil {
		e.metrics.InstructionsApplied.WithLabelValues(kind).Inc()
		e.metrics.InstructionDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
		e.metrics.EngineSequence.Set(float64(e.sequence))
	}

	return nil
}

func (e *Engine) dispatch(inst instruction.Instruction) (*outcome, error) {
	switch i := inst.(type) {
	case *instruction.InitPool:
		return e.handleInitPool(i)
	case *instruction.PausePool:
		return e.handlePausePool(i)
	case *instruction.ResumePool:
		return e.handleResumePool(i)
	case *instruction.ClosePool:
		return e.handleClosePool(i)
	case *instruction.SetFees:
		return e.handleSetFees(i)
	case *instruction.AddManager:
		return e.handleAddManager(i)
	case *instruction.RemoveManager:
		return e.handleRemoveManager(i)
	case *instruction.AddLiquidator:
		return e.handleAddLiquidator(i)
	case *instruction.RemoveLiquidator:
		return e.handleRemoveLiquidator(i)
	case *instruction.AddToWhitelist:
		return e.handleAddToWhitelist(i)
	case *instruction.RemoveFromWhitelist:
		return e.handleRemoveFromWhitelist(i)
	case *instruction.BlockUser:
		return e.handleBlockUser(i)
	case *instruction.UnblockUser:
		return e.handleUnblockUser(i)
	case *instruction.InitOracle:
		return e.handleInitOracle(i)
	case *instruction.CloseOracle:
		return e.handleCloseOracle(i)
	case *instruction.DepositStake:
		return e.handleDepositStake(i)
	case *instruction.DepositLP:
		return e.handleDepositLP(i)
	case *instruction.MintOmnisol:
		return e.handleMintOmnisol(i)
	case *instruction.BurnOmnisol:
		return e.handleBurnOmnisol(i)
	case *instruction.WithdrawStake:
		return e.handleWithdrawStake(i)
	case *instruction.WithdrawLPTokens:
		return e.handleWithdrawLPTokens(i)
	case *instruction.LiquidateCollateral:
		return e.handleLiquidateCollateral(i)
	case *instruction.UpdateOracleInfo:
		return e.handleUpdateOracleInfo(i)
	default:
		return nil, fmt.Errorf("unknown instruction type: %T", inst)
	}
}

// GetSequence returns the current global sequence number.
func (e *Engine) GetSequence() int64 {
	return e.sequence
}

// GetStateHash returns the current state hash (chain tip).
func (e *Engine) GetStateHash() [32]byte {
	return e.hasher.GetPrevHash()
}

// WarmLRU loads recent idempotency keys into the LRU cache.
func (e *Engine) WarmLRU(keys []string) {
	e.idempotency.lru.WarmFromKeys(keys)
}

// SnapshotState holds the serializable in-memory state for restore.
type SnapshotState struct {
	Sequence        int64
	StateHash       [32]byte
	Ledger          *state.Snapshot
	SequenceState   map[string]int64
	IdempotencyKeys []string
}

// CreateSnapshotState captures the current in-memory state for persistence.
func (e *Engine) CreateSnapshotState() *SnapshotState {
	return &SnapshotState{
		Sequence:      e.sequence - 1, // Last processed sequence
		StateHash:     e.hasher.GetPrevHash(),
		Ledger:        e.store.Snapshot(),
		SequenceState: e.sequenceValidator.GetAllPartitions(),
	}
}

// RestoreFromSnapshot restores the engine's in-memory state. On warm
// restart the caller loads the latest snapshot then replays instructions.
func (e *Engine) RestoreFromSnapshot(snap *SnapshotState) {
	e.sequence = snap.Sequence + 1 // Next sequence to assign
	e.hasher.SetPrevHash(snap.StateHash)
	if snap.Ledger != nil {
		e.store.Restore(snap.Ledger)
	}
	for partition, nextSeq := range snap.SequenceState {
		e.sequenceValidator.SetExpectedSequence(partition, nextSeq)
	}
	if len(snap.IdempotencyKeys) > 0 {
		e.idempotency.lru.WarmFromKeys(snap.IdempotencyKeys)
	}
}

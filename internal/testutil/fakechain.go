package testutil

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mfactory-lab/omnisol/internal/engine"
	"github.com/mfactory-lab/omnisol/internal/instruction"
	"github.com/mfactory-lab/omnisol/internal/state"
)

// SubmittedInstruction records one Submit call made by a worker.
type SubmittedInstruction struct {
	Kind string
	Body map[string]any
}

// FakeChainClient implements chain.Client against an in-process engine.
// Reads come straight from the engine's store; Submit builds the wire
// JSON the way the real client does, parses it, and feeds it to the
// engine, so worker tests exercise the full instruction path.
type FakeChainClient struct {
	mu      sync.Mutex
	engine  *engine.Engine
	wallet  uuid.UUID
	seq     int64
	now     time.Time
	Submits []SubmittedInstruction

	// SubmitErr, when set, is returned by every Submit without applying
	// anything. Tests use it to simulate transaction failures.
	SubmitErr error
}

func NewFakeChainClient(eng *engine.Engine, wallet uuid.UUID, now time.Time) *FakeChainClient {
	return &FakeChainClient{engine: eng, wallet: wallet, now: now}
}

func (f *FakeChainClient) store() *state.Store { return f.engine.Store() }

func (f *FakeChainClient) ListUsers(ctx context.Context) ([]state.User, error) {
	return f.store().ListUsers(), nil
}

func (f *FakeChainClient) ListCollaterals(ctx context.Context) ([]state.Collateral, error) {
	return f.store().ListCollaterals(), nil
}

func (f *FakeChainClient) ListWithdrawRequests(ctx context.Context) ([]state.WithdrawInfo, error) {
	return f.store().ListWithdraws(), nil
}

func (f *FakeChainClient) GetPool(ctx context.Context, addr uuid.UUID) (state.Pool, bool, error) {
	p, ok := f.store().GetPool(addr)
	return p, ok, nil
}

func (f *FakeChainClient) GetUser(ctx context.Context, wallet uuid.UUID) (state.User, bool, error) {
	u, ok := f.store().GetUser(wallet)
	return u, ok, nil
}

func (f *FakeChainClient) GetOracle(ctx context.Context) (state.Oracle, bool, error) {
	o, ok := f.store().GetOracle()
	return o, ok, nil
}

func (f *FakeChainClient) GetWhitelistEntry(ctx context.Context, token uuid.UUID) (state.WhitelistEntry, bool, error) {
	w, ok := f.store().GetWhitelistEntry(token)
	return w, ok, nil
}

func (f *FakeChainClient) GetStakePool(ctx context.Context, addr uuid.UUID) (state.StakePool, bool, error) {
	sp, ok := f.store().GetStakePool(addr)
	return sp, ok, nil
}

func (f *FakeChainClient) Submit(ctx context.Context, kind string, body map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.SubmitErr != nil {
		return f.SubmitErr
	}

	msg := make(map[string]any, len(body)+4)
	for k, v := range body {
		msg[k] = v
	}
	msg["instruction_id"] = uuid.New().String()
	msg["authority"] = f.wallet.String()
	msg["sequence"] = f.seq
	msg["timestamp_us"] = f.now.UnixMicro()

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", kind, err)
	}
	inst, err := instruction.Parse(data, kind)
	if err != nil {
		return fmt.Errorf("parse %s: %w", kind, err)
	}

	f.seq++
	f.Submits = append(f.Submits, SubmittedInstruction{Kind: kind, Body: body})
	return f.engine.Process(inst)
}

// SubmitCount returns how many Submit calls succeeded so far.
func (f *FakeChainClient) SubmitCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Submits)
}

package engine_test

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/mfactory-lab/omnisol/internal/engine"
	"github.com/mfactory-lab/omnisol/internal/event"
	"github.com/mfactory-lab/omnisol/internal/instruction"
	"github.com/mfactory-lab/omnisol/internal/state"
)

// --- Test helpers ---

var baseTime = time.Unix(0, 0).UTC().Add(100 * 48 * time.Hour)

// newTestEngine creates an Engine with buffered channels and no DB checker.
func newTestEngine() (*engine.Engine, chan engine.Output, chan engine.Output) {
	persistChan := make(chan engine.Output, 1024)
	publishChan := make(chan engine.Output, 1024)
	e := engine.NewEngine(0, persistChan, publishChan, nil, nil)
	return e, persistChan, publishChan
}

// wallet tracks the per-signer source sequence so tests do not have to.
type wallet struct {
	id  uuid.UUID
	seq int64
}

func newWallet() *wallet { return &wallet{id: uuid.New()} }

func (w *wallet) header() instruction.Header {
	return w.headerAt(baseTime)
}

func (w *wallet) headerAt(ts time.Time) instruction.Header {
	h := instruction.Header{
		ID:        uuid.New(),
		Authority: w.id,
		Sequence:  w.seq,
		Timestamp: ts,
	}
	w.seq++
	return h
}

func drainOutputs(ch chan engine.Output) []engine.Output {
	var outputs []engine.Output
	for {
		select {
		case o := <-ch:
			outputs = append(outputs, o)
		default:
			return outputs
		}
	}
}

// bootstrapPool registers admin as manager and creates an active pool.
func bootstrapPool(t *testing.T, e *engine.Engine, admin *wallet) uuid.UUID {
	t.Helper()
	if err := e.Process(&instruction.AddManager{Header: admin.header(), Manager: admin.id}); err != nil {
		t.Fatalf("AddManager failed: %v", err)
	}
	poolAddr := uuid.New()
	if err := e.Process(&instruction.InitPool{
		Header:      admin.header(),
		Pool:        poolAddr,
		PoolMint:    uuid.New(),
		StakeSource: uuid.New(),
		FeeReceiver: uuid.New(),
	}); err != nil {
		t.Fatalf("InitPool failed: %v", err)
	}
	return poolAddr
}

func mustDepositStake(t *testing.T, e *engine.Engine, user *wallet, pool uuid.UUID, amount, delegation uint64) uuid.UUID {
	t.Helper()
	inst := &instruction.DepositStake{
		Header:          user.header(),
		Pool:            pool,
		StakeSource:     uuid.New(),
		SplitAccount:    uuid.New(),
		Amount:          amount,
		StakeDelegation: delegation,
	}
	if err := e.Process(inst); err != nil {
		t.Fatalf("DepositStake failed: %v", err)
	}
	delegated := inst.StakeSource
	if amount < delegation {
		delegated = inst.SplitAccount
	}
	return state.DeriveCollateralAddress(user.id, delegated)
}

// ============================================================================
// Test: Manager Bootstrap
// ============================================================================

func TestAddManager_BootstrapsOnEmptyRegistry(t *testing.T) {
	e, _, _ := newTestEngine()
	admin := newWallet()

	err := e.Process(&instruction.AddManager{Header: admin.header(), Manager: admin.id})
	if err != nil {
		t.Fatalf("bootstrap AddManager failed: %v", err)
	}

	if !e.Store().IsManager(admin.id) {
		t.Error("expected admin to be registered as manager")
	}
}

func TestAddManager_NonManagerRejectedAfterBootstrap(t *testing.T) {
	e, _, _ := newTestEngine()
	admin := newWallet()
	intruder := newWallet()

	if err := e.Process(&instruction.AddManager{Header: admin.header(), Manager: admin.id}); err != nil {
		t.Fatalf("bootstrap failed: %v", err)
	}

	err := e.Process(&instruction.AddManager{Header: intruder.header(), Manager: intruder.id})
	if !errors.Is(err, engine.ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized, got %v", err)
	}
}

// ============================================================================
// Test: Pool Lifecycle
// ============================================================================

func TestInitPool_CreatesActivePool(t *testing.T) {
	e, _, _ := newTestEngine()
	admin := newWallet()

	poolAddr := bootstrapPool(t, e, admin)

	pool, ok := e.Store().GetPool(poolAddr)
	if !ok {
		t.Fatal("pool not found after InitPool")
	}
	if !pool.Active {
		t.Error("expected new pool to be active")
	}
	if pool.Authority != admin.id {
		t.Errorf("pool authority mismatch: %s vs %s", pool.Authority, admin.id)
	}
}

func TestPausePool_DoublePauseFails(t *testing.T) {
	e, _, _ := newTestEngine()
	admin := newWallet()
	poolAddr := bootstrapPool(t, e, admin)

	if err := e.Process(&instruction.PausePool{Header: admin.header(), Pool: poolAddr}); err != nil {
		t.Fatalf("pause failed: %v", err)
	}

	err := e.Process(&instruction.PausePool{Header: admin.header(), Pool: poolAddr})
	if !errors.Is(err, engine.ErrPoolAlreadyPaused) {
		t.Errorf("expected ErrPoolAlreadyPaused, got %v", err)
	}
}

func TestResumePool_ActivePoolFails(t *testing.T) {
	e, _, _ := newTestEngine()
	admin := newWallet()
	poolAddr := bootstrapPool(t, e, admin)

	err := e.Process(&instruction.ResumePool{Header: admin.header(), Pool: poolAddr})
	if !errors.Is(err, engine.ErrPoolAlreadyResumed) {
		t.Errorf("expected ErrPoolAlreadyResumed, got %v", err)
	}
}

func TestClosePool_WithCollateralsFails(t *testing.T) {
	e, _, _ := newTestEngine()
	admin := newWallet()
	user := newWallet()
	poolAddr := bootstrapPool(t, e, admin)

	mustDepositStake(t, e, user, poolAddr, 1_000, 1_000)

	err := e.Process(&instruction.ClosePool{Header: admin.header(), Pool: poolAddr})
	if !errors.Is(err, engine.ErrStillRemainingCollaterals) {
		t.Errorf("expected ErrStillRemainingCollaterals, got %v", err)
	}
}

func TestAdminInstructions_EmitNoEnvelopes(t *testing.T) {
	e, persistCh, _ := newTestEngine()
	admin := newWallet()

	bootstrapPool(t, e, admin)

	if outputs := drainOutputs(persistCh); len(outputs) != 0 {
		t.Errorf("expected 0 outputs for admin instructions, got %d", len(outputs))
	}
	if seq := e.GetSequence(); seq != 0 {
		t.Errorf("expected sequence to stay 0, got %d", seq)
	}
}

// ============================================================================
// Test: Deposit Flow
// ============================================================================

func TestDepositStake_RegistersUserAndCreatesCollateral(t *testing.T) {
	e, persistCh, _ := newTestEngine()
	admin := newWallet()
	user := newWallet()
	poolAddr := bootstrapPool(t, e, admin)

	colAddr := mustDepositStake(t, e, user, poolAddr, 1_000, 1_000)

	outputs := drainOutputs(persistCh)
	if len(outputs) != 2 {
		t.Fatalf("expected 2 outputs (register + deposit), got %d", len(outputs))
	}
	if outputs[0].Envelope.Type != event.TypeRegisterUser {
		t.Errorf("expected RegisterUser first, got %v", outputs[0].Envelope.Type)
	}
	if outputs[1].Envelope.Type != event.TypeDepositStake {
		t.Errorf("expected DepositStake second, got %v", outputs[1].Envelope.Type)
	}

	u, ok := e.Store().GetUser(user.id)
	if !ok || !u.Registered {
		t.Fatal("user not registered after deposit")
	}
	if u.Rate != 1_000 {
		t.Errorf("expected rate 1_000, got %d", u.Rate)
	}

	col, ok := e.Store().GetCollateral(colAddr)
	if !ok {
		t.Fatal("collateral not found")
	}
	if col.DelegationStake != 1_000 {
		t.Errorf("expected delegation 1_000, got %d", col.DelegationStake)
	}
	if !col.IsNative {
		t.Error("expected native collateral")
	}

	pool, _ := e.Store().GetPool(poolAddr)
	if pool.DepositAmount != 1_000 {
		t.Errorf("expected pool deposit 1_000, got %d", pool.DepositAmount)
	}
	if pool.Collaterals != 1 {
		t.Errorf("expected 1 collateral on pool, got %d", pool.Collaterals)
	}
}

func TestDepositStake_PartialKeysCollateralBySplitAccount(t *testing.T) {
	e, _, _ := newTestEngine()
	admin := newWallet()
	user := newWallet()
	poolAddr := bootstrapPool(t, e, admin)

	inst := &instruction.DepositStake{
		Header:          user.header(),
		Pool:            poolAddr,
		StakeSource:     uuid.New(),
		SplitAccount:    uuid.New(),
		Amount:          400,
		StakeDelegation: 1_000,
	}
	if err := e.Process(inst); err != nil {
		t.Fatalf("partial deposit failed: %v", err)
	}

	splitAddr := state.DeriveCollateralAddress(user.id, inst.SplitAccount)
	col, ok := e.Store().GetCollateral(splitAddr)
	if !ok {
		t.Fatal("expected collateral keyed by split account")
	}
	if col.DelegatedStake != inst.SplitAccount {
		t.Errorf("delegated stake mismatch: %s vs %s", col.DelegatedStake, inst.SplitAccount)
	}
	if col.DelegationStake != 400 {
		t.Errorf("expected delegation 400, got %d", col.DelegationStake)
	}
}

func TestDepositStake_Validation(t *testing.T) {
	e, _, _ := newTestEngine()
	admin := newWallet()
	user := newWallet()
	poolAddr := bootstrapPool(t, e, admin)

	// Zero delegation
	err := e.Process(&instruction.DepositStake{
		Header: user.header(), Pool: poolAddr,
		StakeSource: uuid.New(), Amount: 100, StakeDelegation: 0,
	})
	if !errors.Is(err, engine.ErrInvalidStakeAccount) {
		t.Errorf("zero delegation: expected ErrInvalidStakeAccount, got %v", err)
	}

	// Amount over delegation
	err = e.Process(&instruction.DepositStake{
		Header: user.header(), Pool: poolAddr,
		StakeSource: uuid.New(), Amount: 2_000, StakeDelegation: 1_000,
	})
	if !errors.Is(err, engine.ErrInsufficientAmount) {
		t.Errorf("over delegation: expected ErrInsufficientAmount, got %v", err)
	}

	// Paused pool
	if err := e.Process(&instruction.PausePool{Header: admin.header(), Pool: poolAddr}); err != nil {
		t.Fatalf("pause failed: %v", err)
	}
	err = e.Process(&instruction.DepositStake{
		Header: user.header(), Pool: poolAddr,
		StakeSource: uuid.New(), Amount: 100, StakeDelegation: 100,
	})
	if !errors.Is(err, engine.ErrPoolAlreadyPaused) {
		t.Errorf("paused pool: expected ErrPoolAlreadyPaused, got %v", err)
	}
}

func TestDepositLP_RequiresWhitelistedToken(t *testing.T) {
	e, _, _ := newTestEngine()
	admin := newWallet()
	user := newWallet()
	poolAddr := bootstrapPool(t, e, admin)

	err := e.Process(&instruction.DepositLP{
		Header: user.header(), Pool: poolAddr,
		Token: uuid.New(), Source: uuid.New(), Amount: 100,
	})
	if !errors.Is(err, engine.ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken, got %v", err)
	}
}

func TestDepositLP_WhitelistedTokenAccepted(t *testing.T) {
	e, _, _ := newTestEngine()
	admin := newWallet()
	user := newWallet()

	if err := e.Process(&instruction.AddManager{Header: admin.header(), Manager: admin.id}); err != nil {
		t.Fatalf("AddManager failed: %v", err)
	}

	token := uuid.New()
	poolAddr := uuid.New()
	if err := e.Process(&instruction.InitPool{
		Header: admin.header(), Pool: poolAddr,
		PoolMint: uuid.New(), StakeSource: token, FeeReceiver: uuid.New(),
	}); err != nil {
		t.Fatalf("InitPool failed: %v", err)
	}
	if err := e.Process(&instruction.AddToWhitelist{
		Header: admin.header(), Token: token,
		StakingPool: uuid.New(), StakingPoolProg: uuid.New(),
		ReserveStake: uuid.New(), ManagerFeeAccount: uuid.New(),
	}); err != nil {
		t.Fatalf("AddToWhitelist failed: %v", err)
	}

	if err := e.Process(&instruction.DepositLP{
		Header: user.header(), Pool: poolAddr,
		Token: token, Source: uuid.New(), Amount: 500,
	}); err != nil {
		t.Fatalf("DepositLP failed: %v", err)
	}

	col, ok := e.Store().GetCollateral(state.DeriveCollateralAddress(user.id, token))
	if !ok {
		t.Fatal("LP collateral not found")
	}
	if col.IsNative {
		t.Error("expected non-native collateral")
	}
	if col.DelegationStake != 500 {
		t.Errorf("expected delegation 500, got %d", col.DelegationStake)
	}
}

// ============================================================================
// Test: Mint Flow
// ============================================================================

func TestMintOmnisol_WithinRemainder(t *testing.T) {
	e, _, _ := newTestEngine()
	admin := newWallet()
	user := newWallet()
	poolAddr := bootstrapPool(t, e, admin)
	colAddr := mustDepositStake(t, e, user, poolAddr, 1_000, 1_000)

	if err := e.Process(&instruction.MintOmnisol{
		Header: user.header(), Pool: poolAddr, Collateral: colAddr, Amount: 600,
	}); err != nil {
		t.Fatalf("mint failed: %v", err)
	}

	col, _ := e.Store().GetCollateral(colAddr)
	if col.Amount != 600 {
		t.Errorf("expected minted 600, got %d", col.Amount)
	}
	u, _ := e.Store().GetUser(user.id)
	if u.Rate != 400 {
		t.Errorf("expected rate 400, got %d", u.Rate)
	}

	// Second mint beyond the remainder must fail.
	err := e.Process(&instruction.MintOmnisol{
		Header: user.header(), Pool: poolAddr, Collateral: colAddr, Amount: 500,
	})
	if !errors.Is(err, engine.ErrInsufficientAmount) {
		t.Errorf("expected ErrInsufficientAmount, got %v", err)
	}
}

func TestMintOmnisol_OnlyOwnerCanMint(t *testing.T) {
	e, _, _ := newTestEngine()
	admin := newWallet()
	user := newWallet()
	other := newWallet()
	poolAddr := bootstrapPool(t, e, admin)
	colAddr := mustDepositStake(t, e, user, poolAddr, 1_000, 1_000)

	// Register the other wallet so ownership is the failing check.
	mustDepositStake(t, e, other, poolAddr, 100, 100)

	err := e.Process(&instruction.MintOmnisol{
		Header: other.header(), Pool: poolAddr, Collateral: colAddr, Amount: 100,
	})
	if !errors.Is(err, engine.ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized, got %v", err)
	}
}

// ============================================================================
// Test: Burn / Withdraw Flow
// ============================================================================

func TestBurnOmnisol_CreatesWithdrawRequest(t *testing.T) {
	e, persistCh, _ := newTestEngine()
	admin := newWallet()
	user := newWallet()
	poolAddr := bootstrapPool(t, e, admin)
	mustDepositStake(t, e, user, poolAddr, 1_000, 1_000)
	drainOutputs(persistCh)

	if err := e.Process(&instruction.BurnOmnisol{
		Header: user.header(), Pool: poolAddr, Amount: 700,
	}); err != nil {
		t.Fatalf("burn failed: %v", err)
	}

	outputs := drainOutputs(persistCh)
	if len(outputs) != 1 {
		t.Fatalf("expected 1 output, got %d", len(outputs))
	}
	if outputs[0].Envelope.Type != event.TypeWithdrawRequestCreation {
		t.Errorf("expected WithdrawRequestCreation, got %v", outputs[0].Envelope.Type)
	}

	u, _ := e.Store().GetUser(user.id)
	if u.RequestsAmount != 1 {
		t.Errorf("expected 1 pending request, got %d", u.RequestsAmount)
	}

	wiAddr := state.DeriveWithdrawAddress(user.id, u.LastWithdrawIndex)
	wi, ok := e.Store().GetWithdraw(wiAddr)
	if !ok {
		t.Fatal("withdraw request not found")
	}
	if wi.Amount != 700 {
		t.Errorf("expected request amount 700, got %d", wi.Amount)
	}
	if wi.Authority != user.id {
		t.Errorf("request authority mismatch: %s vs %s", wi.Authority, user.id)
	}
}

func TestWithdrawStake_ReducesCollateralAndPool(t *testing.T) {
	e, _, _ := newTestEngine()
	admin := newWallet()
	user := newWallet()
	poolAddr := bootstrapPool(t, e, admin)
	colAddr := mustDepositStake(t, e, user, poolAddr, 1_000, 1_000)

	if err := e.Process(&instruction.WithdrawStake{
		Header: user.header(), Pool: poolAddr, Collateral: colAddr, Amount: 400,
	}); err != nil {
		t.Fatalf("withdraw failed: %v", err)
	}

	col, ok := e.Store().GetCollateral(colAddr)
	if !ok {
		t.Fatal("collateral should survive partial withdraw")
	}
	if col.DelegationStake != 600 {
		t.Errorf("expected delegation 600, got %d", col.DelegationStake)
	}
	u, _ := e.Store().GetUser(user.id)
	if u.Rate != 600 {
		t.Errorf("expected rate 600, got %d", u.Rate)
	}
	pool, _ := e.Store().GetPool(poolAddr)
	if pool.DepositAmount != 600 {
		t.Errorf("expected pool deposit 600, got %d", pool.DepositAmount)
	}
}

func TestWithdrawStake_MergeFlagReachesEvent(t *testing.T) {
	e, persistCh, _ := newTestEngine()
	admin := newWallet()
	user := newWallet()
	poolAddr := bootstrapPool(t, e, admin)
	colAddr := mustDepositStake(t, e, user, poolAddr, 1_000, 1_000)
	drainOutputs(persistCh)

	if err := e.Process(&instruction.WithdrawStake{
		Header: user.header(), Pool: poolAddr, Collateral: colAddr,
		Amount: 400, WithMerge: true,
	}); err != nil {
		t.Fatalf("withdraw failed: %v", err)
	}

	outputs := drainOutputs(persistCh)
	if len(outputs) != 1 {
		t.Fatalf("expected 1 output, got %d", len(outputs))
	}
	var ev event.WithdrawStake
	if err := json.Unmarshal(outputs[0].Envelope.Payload, &ev); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if !ev.WithMerge {
		t.Error("expected with_merge to be carried on the event")
	}

	if err := e.Process(&instruction.WithdrawStake{
		Header: user.header(), Pool: poolAddr, Collateral: colAddr, Amount: 100,
	}); err != nil {
		t.Fatalf("withdraw failed: %v", err)
	}
	outputs = drainOutputs(persistCh)
	ev = event.WithdrawStake{}
	if err := json.Unmarshal(outputs[0].Envelope.Payload, &ev); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if ev.WithMerge {
		t.Error("expected with_merge to default to false")
	}
}

func TestWithdrawStake_FullWithdrawClosesCollateral(t *testing.T) {
	e, _, _ := newTestEngine()
	admin := newWallet()
	user := newWallet()
	poolAddr := bootstrapPool(t, e, admin)
	colAddr := mustDepositStake(t, e, user, poolAddr, 1_000, 1_000)

	if err := e.Process(&instruction.WithdrawStake{
		Header: user.header(), Pool: poolAddr, Collateral: colAddr, Amount: 1_000,
	}); err != nil {
		t.Fatalf("withdraw failed: %v", err)
	}

	if _, ok := e.Store().GetCollateral(colAddr); ok {
		t.Error("expected collateral to be closed after full withdraw")
	}
	pool, _ := e.Store().GetPool(poolAddr)
	if pool.Collaterals != 0 {
		t.Errorf("expected 0 collaterals on pool, got %d", pool.Collaterals)
	}
}

func TestWithdrawStake_MintedValueLocked(t *testing.T) {
	e, _, _ := newTestEngine()
	admin := newWallet()
	user := newWallet()
	poolAddr := bootstrapPool(t, e, admin)
	colAddr := mustDepositStake(t, e, user, poolAddr, 1_000, 1_000)

	if err := e.Process(&instruction.MintOmnisol{
		Header: user.header(), Pool: poolAddr, Collateral: colAddr, Amount: 600,
	}); err != nil {
		t.Fatalf("mint failed: %v", err)
	}

	// Only 400 is unbacked; withdrawing 500 without burning must fail.
	err := e.Process(&instruction.WithdrawStake{
		Header: user.header(), Pool: poolAddr, Collateral: colAddr, Amount: 500,
	})
	if !errors.Is(err, engine.ErrInsufficientAmount) {
		t.Errorf("expected ErrInsufficientAmount, got %v", err)
	}

	// With burn the same withdrawal passes: 500 burned out of 600 minted.
	if err := e.Process(&instruction.WithdrawStake{
		Header: user.header(), Pool: poolAddr, Collateral: colAddr, Amount: 500, WithBurn: true,
	}); err != nil {
		t.Fatalf("withdraw with burn failed: %v", err)
	}

	col, _ := e.Store().GetCollateral(colAddr)
	if col.DelegationStake != 500 {
		t.Errorf("expected delegation 500, got %d", col.DelegationStake)
	}
	if col.Amount != 100 {
		t.Errorf("expected minted 100 after burn, got %d", col.Amount)
	}
}

func TestWithdrawLPTokens_RejectsNativeCollateral(t *testing.T) {
	e, _, _ := newTestEngine()
	admin := newWallet()
	user := newWallet()
	poolAddr := bootstrapPool(t, e, admin)
	colAddr := mustDepositStake(t, e, user, poolAddr, 1_000, 1_000)

	err := e.Process(&instruction.WithdrawLPTokens{
		Header: user.header(), Pool: poolAddr, Collateral: colAddr, Amount: 100,
	})
	if !errors.Is(err, engine.ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken, got %v", err)
	}
}

// ============================================================================
// Test: Liquidation Flow
// ============================================================================

type liquidationFixture struct {
	engine     *engine.Engine
	persistCh  chan engine.Output
	admin      *wallet
	user       *wallet
	liquidator *wallet
	oracleAuth *wallet
	pool       uuid.UUID
	collateral uuid.UUID
	withdraw   uuid.UUID
}

// newLiquidationFixture builds the full setup: pool, liquidator role,
// oracle, one deposited collateral, one burn request, one queue entry
// covering the collateral's full remainder.
func newLiquidationFixture(t *testing.T, depositAmount, burnAmount uint64) *liquidationFixture {
	t.Helper()
	e, persistCh, _ := newTestEngine()
	f := &liquidationFixture{
		engine:     e,
		persistCh:  persistCh,
		admin:      newWallet(),
		user:       newWallet(),
		liquidator: newWallet(),
		oracleAuth: newWallet(),
	}
	f.pool = bootstrapPool(t, e, f.admin)

	if err := e.Process(&instruction.AddLiquidator{Header: f.admin.header(), Liquidator: f.liquidator.id}); err != nil {
		t.Fatalf("AddLiquidator failed: %v", err)
	}
	if err := e.Process(&instruction.InitOracle{Header: f.admin.header(), OracleAuthority: f.oracleAuth.id}); err != nil {
		t.Fatalf("InitOracle failed: %v", err)
	}

	f.collateral = mustDepositStake(t, e, f.user, f.pool, depositAmount, depositAmount)

	if err := e.Process(&instruction.BurnOmnisol{Header: f.user.header(), Pool: f.pool, Amount: burnAmount}); err != nil {
		t.Fatalf("burn failed: %v", err)
	}
	u, _ := e.Store().GetUser(f.user.id)
	f.withdraw = state.DeriveWithdrawAddress(f.user.id, u.LastWithdrawIndex)

	if err := e.Process(&instruction.UpdateOracleInfo{
		Header:    f.oracleAuth.header(),
		Addresses: []uuid.UUID{f.collateral},
		Values:    []uint64{depositAmount},
		Clear:     true,
	}); err != nil {
		t.Fatalf("oracle update failed: %v", err)
	}

	drainOutputs(persistCh)
	return f
}

func (f *liquidationFixture) liquidate(amount uint64) error {
	col, _ := f.engine.Store().GetCollateral(f.collateral)
	return f.engine.Process(&instruction.LiquidateCollateral{
		Header:       f.liquidator.header(),
		Pool:         f.pool,
		Collateral:   f.collateral,
		WithdrawInfo: f.withdraw,
		Amount:       amount,
		SplitAccount: col.DelegatedStake,
	})
}

func TestLiquidateCollateral_PartialSatisfiesRequest(t *testing.T) {
	f := newLiquidationFixture(t, 1_000, 1_000)

	if err := f.liquidate(400); err != nil {
		t.Fatalf("liquidation failed: %v", err)
	}

	outputs := drainOutputs(f.persistCh)
	if len(outputs) != 1 {
		t.Fatalf("expected 1 output, got %d", len(outputs))
	}
	if outputs[0].Envelope.Type != event.TypeLiquidation {
		t.Errorf("expected Liquidation event, got %v", outputs[0].Envelope.Type)
	}

	col, _ := f.engine.Store().GetCollateral(f.collateral)
	if col.LiquidatedAmount != 400 {
		t.Errorf("expected liquidated 400, got %d", col.LiquidatedAmount)
	}
	wi, ok := f.engine.Store().GetWithdraw(f.withdraw)
	if !ok {
		t.Fatal("withdraw request should survive partial liquidation")
	}
	if wi.Amount != 600 {
		t.Errorf("expected remaining request 600, got %d", wi.Amount)
	}
	pool, _ := f.engine.Store().GetPool(f.pool)
	if pool.DepositAmount != 600 {
		t.Errorf("expected pool deposit 600, got %d", pool.DepositAmount)
	}

	// The queue entry is decremented in place, not removed.
	oracle, _ := f.engine.Store().GetOracle()
	if len(oracle.PriorityQueue) != 1 {
		t.Fatalf("expected 1 queue member, got %d", len(oracle.PriorityQueue))
	}
	if oracle.PriorityQueue[0].Amount != 600 {
		t.Errorf("expected queue amount 600, got %d", oracle.PriorityQueue[0].Amount)
	}
}

func TestLiquidateCollateral_FullClosesRequest(t *testing.T) {
	f := newLiquidationFixture(t, 1_000, 1_000)

	if err := f.liquidate(1_000); err != nil {
		t.Fatalf("liquidation failed: %v", err)
	}

	if _, ok := f.engine.Store().GetWithdraw(f.withdraw); ok {
		t.Error("expected withdraw request to be closed")
	}
	u, _ := f.engine.Store().GetUser(f.user.id)
	if u.RequestsAmount != 0 {
		t.Errorf("expected 0 pending requests, got %d", u.RequestsAmount)
	}
}

func TestLiquidateCollateral_NonLiquidatorRejected(t *testing.T) {
	f := newLiquidationFixture(t, 1_000, 1_000)

	err := f.engine.Process(&instruction.LiquidateCollateral{
		Header:       f.user.header(),
		Pool:         f.pool,
		Collateral:   f.collateral,
		WithdrawInfo: f.withdraw,
		Amount:       100,
	})
	if !errors.Is(err, engine.ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized, got %v", err)
	}
}

func TestLiquidateCollateral_StaleQueueRejected(t *testing.T) {
	f := newLiquidationFixture(t, 1_000, 1_000)

	// First liquidation leaves the queue amount at 600 but the
	// collateral remainder is also 600, so a second one still matches.
	if err := f.liquidate(400); err != nil {
		t.Fatalf("first liquidation failed: %v", err)
	}
	drainOutputs(f.persistCh)

	// Republish a stale queue with the original amount. The member no
	// longer matches the remainder and must be rejected.
	if err := f.engine.Process(&instruction.UpdateOracleInfo{
		Header:    f.oracleAuth.header(),
		Addresses: []uuid.UUID{f.collateral},
		Values:    []uint64{1_000},
		Clear:     true,
	}); err != nil {
		t.Fatalf("oracle update failed: %v", err)
	}

	err := f.liquidate(100)
	if !errors.Is(err, engine.ErrWrongData) {
		t.Errorf("expected ErrWrongData for stale queue, got %v", err)
	}
}

func TestLiquidateCollateral_OverRequestRejected(t *testing.T) {
	f := newLiquidationFixture(t, 1_000, 300)

	err := f.liquidate(500)
	if !errors.Is(err, engine.ErrInsufficientAmount) {
		t.Errorf("expected ErrInsufficientAmount, got %v", err)
	}
}

type lpLiquidationFixture struct {
	engine      *engine.Engine
	persistCh   chan engine.Output
	admin       *wallet
	user        *wallet
	liquidator  *wallet
	oracleAuth  *wallet
	pool        uuid.UUID
	token       uuid.UUID
	stakingPool uuid.UUID
	collateral  uuid.UUID
	withdraw    uuid.UUID
}

// newLPLiquidationFixture mirrors newLiquidationFixture for an LP
// collateral backed by an external staking pool holding the given
// reserve and single-validator liquidity.
func newLPLiquidationFixture(t *testing.T, reserveBalance, validatorStake uint64) *lpLiquidationFixture {
	t.Helper()
	e, persistCh, _ := newTestEngine()
	f := &lpLiquidationFixture{
		engine:      e,
		persistCh:   persistCh,
		admin:       newWallet(),
		user:        newWallet(),
		liquidator:  newWallet(),
		oracleAuth:  newWallet(),
		token:       uuid.New(),
		stakingPool: uuid.New(),
	}
	if err := e.Process(&instruction.AddManager{Header: f.admin.header(), Manager: f.admin.id}); err != nil {
		t.Fatalf("AddManager failed: %v", err)
	}
	f.pool = uuid.New()
	if err := e.Process(&instruction.InitPool{
		Header: f.admin.header(), Pool: f.pool,
		PoolMint: uuid.New(), StakeSource: f.token, FeeReceiver: uuid.New(),
	}); err != nil {
		t.Fatalf("InitPool failed: %v", err)
	}
	if err := e.Process(&instruction.AddLiquidator{Header: f.admin.header(), Liquidator: f.liquidator.id}); err != nil {
		t.Fatalf("AddLiquidator failed: %v", err)
	}
	if err := e.Process(&instruction.InitOracle{Header: f.admin.header(), OracleAuthority: f.oracleAuth.id}); err != nil {
		t.Fatalf("InitOracle failed: %v", err)
	}
	if err := e.Process(&instruction.AddToWhitelist{
		Header: f.admin.header(), Token: f.token,
		StakingPool: f.stakingPool, StakingPoolProg: uuid.New(),
		ReserveStake: uuid.New(), ReserveBalance: reserveBalance,
		ManagerFeeAccount: uuid.New(),
		Validators: []instruction.ValidatorStakeInfo{
			{StakeAccount: uuid.New(), ActiveStake: validatorStake},
		},
	}); err != nil {
		t.Fatalf("AddToWhitelist failed: %v", err)
	}
	if err := e.Process(&instruction.DepositLP{
		Header: f.user.header(), Pool: f.pool,
		Token: f.token, Source: uuid.New(), Amount: 1_000,
	}); err != nil {
		t.Fatalf("DepositLP failed: %v", err)
	}
	f.collateral = state.DeriveCollateralAddress(f.user.id, f.token)

	if err := e.Process(&instruction.BurnOmnisol{Header: f.user.header(), Pool: f.pool, Amount: 1_000}); err != nil {
		t.Fatalf("burn failed: %v", err)
	}
	u, _ := e.Store().GetUser(f.user.id)
	f.withdraw = state.DeriveWithdrawAddress(f.user.id, u.LastWithdrawIndex)

	if err := e.Process(&instruction.UpdateOracleInfo{
		Header:    f.oracleAuth.header(),
		Addresses: []uuid.UUID{f.collateral},
		Values:    []uint64{1_000},
		Clear:     true,
	}); err != nil {
		t.Fatalf("oracle update failed: %v", err)
	}

	drainOutputs(persistCh)
	return f
}

func (f *lpLiquidationFixture) liquidate(amount uint64) error {
	return f.engine.Process(&instruction.LiquidateCollateral{
		Header:       f.liquidator.header(),
		Pool:         f.pool,
		Collateral:   f.collateral,
		WithdrawInfo: f.withdraw,
		Amount:       amount,
		SplitAccount: uuid.New(),
		Accounts:     []instruction.AccountMeta{{Address: f.token, Writable: true}},
	})
}

func TestLiquidateCollateral_LPDrawsFromReserve(t *testing.T) {
	f := newLPLiquidationFixture(t, 2_000, 5_000)

	if err := f.liquidate(400); err != nil {
		t.Fatalf("liquidation failed: %v", err)
	}

	sp, _ := f.engine.Store().GetStakePool(f.stakingPool)
	if sp.ReserveBalance != 1_600 {
		t.Errorf("expected reserve 1600, got %d", sp.ReserveBalance)
	}
	if sp.Validators[0].ActiveStake != 5_000 {
		t.Errorf("expected validator stake untouched, got %d", sp.Validators[0].ActiveStake)
	}
	col, _ := f.engine.Store().GetCollateral(f.collateral)
	if col.LiquidatedAmount != 400 {
		t.Errorf("expected liquidated 400, got %d", col.LiquidatedAmount)
	}
}

func TestLiquidateCollateral_LPFallsBackToValidatorSplit(t *testing.T) {
	f := newLPLiquidationFixture(t, 100, 5_000)

	if err := f.liquidate(400); err != nil {
		t.Fatalf("liquidation failed: %v", err)
	}

	sp, _ := f.engine.Store().GetStakePool(f.stakingPool)
	if sp.ReserveBalance != 100 {
		t.Errorf("expected reserve untouched, got %d", sp.ReserveBalance)
	}
	if sp.Validators[0].ActiveStake != 4_600 {
		t.Errorf("expected validator stake 4600, got %d", sp.Validators[0].ActiveStake)
	}
}

func TestLiquidateCollateral_LPWithoutLiquidityRejected(t *testing.T) {
	f := newLPLiquidationFixture(t, 100, 200)

	err := f.liquidate(400)
	if !errors.Is(err, engine.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}

	col, _ := f.engine.Store().GetCollateral(f.collateral)
	if col.LiquidatedAmount != 0 {
		t.Errorf("expected no liquidation, got %d", col.LiquidatedAmount)
	}
	sp, _ := f.engine.Store().GetStakePool(f.stakingPool)
	if sp.ReserveBalance != 100 || sp.Validators[0].ActiveStake != 200 {
		t.Errorf("expected staking pool untouched, got reserve %d stake %d",
			sp.ReserveBalance, sp.Validators[0].ActiveStake)
	}
	oracle, _ := f.engine.Store().GetOracle()
	if oracle.PriorityQueue[0].Amount != 1_000 {
		t.Errorf("expected queue amount 1000, got %d", oracle.PriorityQueue[0].Amount)
	}
}

func TestLiquidateThenMint_ClosesCollateralWithStorageFee(t *testing.T) {
	f := newLiquidationFixture(t, 10_000, 10_000)

	if err := f.engine.Process(&instruction.SetFees{
		Header: f.admin.header(), Pool: f.pool, StorageFeeBps: 100,
	}); err != nil {
		t.Fatalf("SetFees failed: %v", err)
	}

	if err := f.liquidate(10_000); err != nil {
		t.Fatalf("liquidation failed: %v", err)
	}
	drainOutputs(f.persistCh)

	// Mint the full delegation one epoch later. The collateral becomes
	// fully minted and fully liquidated, so it closes and charges the
	// accrued storage fee.
	if err := f.engine.Process(&instruction.MintOmnisol{
		Header:     f.user.headerAt(baseTime.Add(48 * time.Hour)),
		Pool:       f.pool,
		Collateral: f.collateral,
		Amount:     10_000,
	}); err != nil {
		t.Fatalf("mint failed: %v", err)
	}

	if _, ok := f.engine.Store().GetCollateral(f.collateral); ok {
		t.Error("expected collateral to be closed")
	}

	outputs := drainOutputs(f.persistCh)
	if len(outputs) != 1 {
		t.Fatalf("expected 1 output, got %d", len(outputs))
	}
	var evt event.MintOmnisol
	if err := json.Unmarshal(outputs[0].Envelope.Payload, &evt); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	// One epoch at 100/1000 on a 10_000 delegation.
	if evt.StorageFee != 1_000 {
		t.Errorf("expected storage fee 1_000, got %d", evt.StorageFee)
	}
}

// ============================================================================
// Test: Oracle Updates
// ============================================================================

func TestUpdateOracleInfo_AuthorityEnforced(t *testing.T) {
	e, _, _ := newTestEngine()
	admin := newWallet()
	oracleAuth := newWallet()
	intruder := newWallet()
	bootstrapPool(t, e, admin)

	if err := e.Process(&instruction.InitOracle{Header: admin.header(), OracleAuthority: oracleAuth.id}); err != nil {
		t.Fatalf("InitOracle failed: %v", err)
	}

	err := e.Process(&instruction.UpdateOracleInfo{
		Header:    intruder.header(),
		Addresses: []uuid.UUID{uuid.New()},
		Values:    []uint64{100},
	})
	if !errors.Is(err, engine.ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized, got %v", err)
	}
}

func TestUpdateOracleInfo_ChunksAppendAndClearResets(t *testing.T) {
	e, _, _ := newTestEngine()
	admin := newWallet()
	oracleAuth := newWallet()
	bootstrapPool(t, e, admin)

	if err := e.Process(&instruction.InitOracle{Header: admin.header(), OracleAuthority: oracleAuth.id}); err != nil {
		t.Fatalf("InitOracle failed: %v", err)
	}

	publish := func(n int, clear bool) error {
		addrs := make([]uuid.UUID, n)
		vals := make([]uint64, n)
		for i := range addrs {
			addrs[i] = uuid.New()
			vals[i] = uint64(i + 1)
		}
		return e.Process(&instruction.UpdateOracleInfo{
			Header: oracleAuth.header(), Addresses: addrs, Values: vals, Clear: clear,
		})
	}

	if err := publish(25, true); err != nil {
		t.Fatalf("first chunk failed: %v", err)
	}
	if err := publish(25, false); err != nil {
		t.Fatalf("second chunk failed: %v", err)
	}
	oracle, _ := e.Store().GetOracle()
	if len(oracle.PriorityQueue) != 50 {
		t.Errorf("expected 50 queue members, got %d", len(oracle.PriorityQueue))
	}

	// Next cycle starts with Clear and replaces the queue.
	if err := publish(10, true); err != nil {
		t.Fatalf("clear chunk failed: %v", err)
	}
	oracle, _ = e.Store().GetOracle()
	if len(oracle.PriorityQueue) != 10 {
		t.Errorf("expected 10 queue members after clear, got %d", len(oracle.PriorityQueue))
	}
}

func TestUpdateOracleInfo_RejectsBadChunks(t *testing.T) {
	e, _, _ := newTestEngine()
	admin := newWallet()
	oracleAuth := newWallet()
	bootstrapPool(t, e, admin)

	if err := e.Process(&instruction.InitOracle{Header: admin.header(), OracleAuthority: oracleAuth.id}); err != nil {
		t.Fatalf("InitOracle failed: %v", err)
	}

	// Length mismatch
	err := e.Process(&instruction.UpdateOracleInfo{
		Header:    oracleAuth.header(),
		Addresses: []uuid.UUID{uuid.New(), uuid.New()},
		Values:    []uint64{1},
	})
	if !errors.Is(err, engine.ErrWrongData) {
		t.Errorf("length mismatch: expected ErrWrongData, got %v", err)
	}

	// Empty chunk
	err = e.Process(&instruction.UpdateOracleInfo{Header: oracleAuth.header()})
	if !errors.Is(err, engine.ErrWrongData) {
		t.Errorf("empty chunk: expected ErrWrongData, got %v", err)
	}

	// Capacity overflow
	addrs := make([]uuid.UUID, state.QueueCapacity+1)
	vals := make([]uint64, state.QueueCapacity+1)
	for i := range addrs {
		addrs[i] = uuid.New()
		vals[i] = 1
	}
	err = e.Process(&instruction.UpdateOracleInfo{
		Header: oracleAuth.header(), Addresses: addrs, Values: vals, Clear: true,
	})
	if !errors.Is(err, engine.ErrWrongData) {
		t.Errorf("capacity overflow: expected ErrWrongData, got %v", err)
	}
}

// ============================================================================
// Test: User Blocking
// ============================================================================

func TestBlockUser_BlocksDeposits(t *testing.T) {
	e, _, _ := newTestEngine()
	admin := newWallet()
	user := newWallet()
	poolAddr := bootstrapPool(t, e, admin)
	mustDepositStake(t, e, user, poolAddr, 1_000, 1_000)

	if err := e.Process(&instruction.BlockUser{Header: admin.header(), Wallet: user.id}); err != nil {
		t.Fatalf("BlockUser failed: %v", err)
	}

	err := e.Process(&instruction.DepositStake{
		Header: user.header(), Pool: poolAddr,
		StakeSource: uuid.New(), Amount: 100, StakeDelegation: 100,
	})
	if !errors.Is(err, engine.ErrUserBlocked) {
		t.Errorf("expected ErrUserBlocked, got %v", err)
	}

	// Unblock restores access.
	if err := e.Process(&instruction.UnblockUser{Header: admin.header(), Wallet: user.id}); err != nil {
		t.Fatalf("UnblockUser failed: %v", err)
	}
	if err := e.Process(&instruction.DepositStake{
		Header: user.header(), Pool: poolAddr,
		StakeSource: uuid.New(), Amount: 100, StakeDelegation: 100,
	}); err != nil {
		t.Fatalf("deposit after unblock failed: %v", err)
	}
}

func TestBlockUser_DoubleBlockFails(t *testing.T) {
	e, _, _ := newTestEngine()
	admin := newWallet()
	user := newWallet()
	poolAddr := bootstrapPool(t, e, admin)
	mustDepositStake(t, e, user, poolAddr, 100, 100)

	if err := e.Process(&instruction.BlockUser{Header: admin.header(), Wallet: user.id}); err != nil {
		t.Fatalf("BlockUser failed: %v", err)
	}
	err := e.Process(&instruction.BlockUser{Header: admin.header(), Wallet: user.id})
	if !errors.Is(err, engine.ErrUserBlocked) {
		t.Errorf("expected ErrUserBlocked, got %v", err)
	}
}

// ============================================================================
// Test: Idempotency
// ============================================================================

func TestIdempotency_DuplicateInstructionIgnored(t *testing.T) {
	e, persistCh, _ := newTestEngine()
	admin := newWallet()
	user := newWallet()
	poolAddr := bootstrapPool(t, e, admin)

	inst := &instruction.DepositStake{
		Header: user.header(), Pool: poolAddr,
		StakeSource: uuid.New(), Amount: 500, StakeDelegation: 500,
	}
	if err := e.Process(inst); err != nil {
		t.Fatalf("first deposit failed: %v", err)
	}
	outputs1 := drainOutputs(persistCh)
	if len(outputs1) != 2 {
		t.Fatalf("expected 2 outputs on first process, got %d", len(outputs1))
	}

	// Same instruction again, silently ignored.
	if err := e.Process(inst); err != nil {
		t.Fatalf("duplicate should not error: %v", err)
	}
	if outputs2 := drainOutputs(persistCh); len(outputs2) != 0 {
		t.Errorf("expected 0 outputs for duplicate, got %d", len(outputs2))
	}
}

// ============================================================================
// Test: Sequence Validation
// ============================================================================

func TestSequenceValidation_GapDetected(t *testing.T) {
	e, _, _ := newTestEngine()
	admin := newWallet()
	user := newWallet()
	poolAddr := bootstrapPool(t, e, admin)
	mustDepositStake(t, e, user, poolAddr, 100, 100)

	// Skip one source sequence on the user's partition.
	user.seq++
	err := e.Process(&instruction.DepositStake{
		Header: user.header(), Pool: poolAddr,
		StakeSource: uuid.New(), Amount: 100, StakeDelegation: 100,
	})
	if err == nil {
		t.Fatal("expected sequence gap error, got nil")
	}
}

// ============================================================================
// Test: State Hash Chain
// ============================================================================

func TestStateHashChain_Deterministic(t *testing.T) {
	adminID := uuid.New()
	userID := uuid.New()
	poolAddr := uuid.New()
	stakeSource := uuid.New()
	instIDs := [4]uuid.UUID{uuid.New(), uuid.New(), uuid.New(), uuid.New()}

	run := func() [][32]byte {
		e, persistCh, _ := newTestEngine()
		admin := &wallet{id: adminID}
		user := &wallet{id: userID}

		hdr := func(w *wallet, id uuid.UUID) instruction.Header {
			h := w.header()
			h.ID = id
			return h
		}

		if err := e.Process(&instruction.AddManager{Header: hdr(admin, instIDs[0]), Manager: adminID}); err != nil {
			t.Fatalf("AddManager failed: %v", err)
		}
		if err := e.Process(&instruction.InitPool{
			Header: hdr(admin, instIDs[1]), Pool: poolAddr,
			PoolMint: uuid.Nil, StakeSource: uuid.Nil, FeeReceiver: uuid.Nil,
		}); err != nil {
			t.Fatalf("InitPool failed: %v", err)
		}
		if err := e.Process(&instruction.DepositStake{
			Header: hdr(user, instIDs[2]), Pool: poolAddr,
			StakeSource: stakeSource, Amount: 1_000, StakeDelegation: 1_000,
		}); err != nil {
			t.Fatalf("deposit failed: %v", err)
		}
		if err := e.Process(&instruction.BurnOmnisol{
			Header: hdr(user, instIDs[3]), Pool: poolAddr, Amount: 500,
		}); err != nil {
			t.Fatalf("burn failed: %v", err)
		}

		outputs := drainOutputs(persistCh)
		hashes := make([][32]byte, len(outputs))
		for i, o := range outputs {
			hashes[i] = o.Envelope.StateHash
		}
		return hashes
	}

	hashes1 := run()
	hashes2 := run()

	if len(hashes1) != len(hashes2) {
		t.Fatalf("different number of outputs: %d vs %d", len(hashes1), len(hashes2))
	}
	for i := range hashes1 {
		if hashes1[i] != hashes2[i] {
			t.Errorf("hash %d differs: %x vs %x", i, hashes1[i], hashes2[i])
		}
	}
}

func TestHashChain_PrevHashLinks(t *testing.T) {
	e, persistCh, _ := newTestEngine()
	admin := newWallet()
	user := newWallet()
	poolAddr := bootstrapPool(t, e, admin)
	mustDepositStake(t, e, user, poolAddr, 1_000, 1_000)

	if err := e.Process(&instruction.BurnOmnisol{
		Header: user.header(), Pool: poolAddr, Amount: 100,
	}); err != nil {
		t.Fatalf("burn failed: %v", err)
	}

	outputs := drainOutputs(persistCh)
	if len(outputs) < 3 {
		t.Fatalf("expected at least 3 outputs, got %d", len(outputs))
	}
	for i := 1; i < len(outputs); i++ {
		if outputs[i].Envelope.PrevHash != outputs[i-1].Envelope.StateHash {
			t.Errorf("output %d: prev hash does not link to previous state hash", i)
		}
	}
}

// ============================================================================
// Test: Atomicity
// ============================================================================

func TestRejectedInstruction_LeavesStateUntouched(t *testing.T) {
	e, _, _ := newTestEngine()
	admin := newWallet()
	user := newWallet()
	poolAddr := bootstrapPool(t, e, admin)
	colAddr := mustDepositStake(t, e, user, poolAddr, 1_000, 1_000)

	before, _ := e.Store().GetCollateral(colAddr)
	poolBefore, _ := e.Store().GetPool(poolAddr)
	seqBefore := e.GetSequence()

	err := e.Process(&instruction.WithdrawStake{
		Header: user.header(), Pool: poolAddr, Collateral: colAddr, Amount: 5_000,
	})
	if !errors.Is(err, engine.ErrInsufficientAmount) {
		t.Fatalf("expected ErrInsufficientAmount, got %v", err)
	}

	after, _ := e.Store().GetCollateral(colAddr)
	if after != before {
		t.Error("collateral mutated by rejected instruction")
	}
	poolAfter, _ := e.Store().GetPool(poolAddr)
	if poolAfter != poolBefore {
		t.Error("pool mutated by rejected instruction")
	}
	if e.GetSequence() != seqBefore {
		t.Error("sequence advanced by rejected instruction")
	}
}

// ============================================================================
// Test: Snapshot / Restore
// ============================================================================

func TestSnapshotRestore_ResumesChain(t *testing.T) {
	e, persistCh, _ := newTestEngine()
	admin := newWallet()
	user := newWallet()
	poolAddr := bootstrapPool(t, e, admin)
	colAddr := mustDepositStake(t, e, user, poolAddr, 1_000, 1_000)
	drainOutputs(persistCh)

	snap := e.CreateSnapshotState()

	persistCh2 := make(chan engine.Output, 1024)
	publishCh2 := make(chan engine.Output, 1024)
	e2 := engine.NewEngine(0, persistCh2, publishCh2, nil, nil)
	e2.RestoreFromSnapshot(snap)

	if e2.GetSequence() != e.GetSequence() {
		t.Errorf("sequence mismatch after restore: %d vs %d", e2.GetSequence(), e.GetSequence())
	}
	if e2.GetStateHash() != e.GetStateHash() {
		t.Errorf("state hash mismatch after restore")
	}
	col, ok := e2.Store().GetCollateral(colAddr)
	if !ok {
		t.Fatal("collateral missing after restore")
	}
	if col.DelegationStake != 1_000 {
		t.Errorf("expected delegation 1_000, got %d", col.DelegationStake)
	}

	// Both engines must produce the same hash for the next instruction.
	next := &instruction.BurnOmnisol{Header: user.header(), Pool: poolAddr, Amount: 100}
	if err := e.Process(next); err != nil {
		t.Fatalf("burn on original failed: %v", err)
	}
	if err := e2.Process(next); err != nil {
		t.Fatalf("burn on restored failed: %v", err)
	}

	o1 := drainOutputs(persistCh)
	o2 := drainOutputs(persistCh2)
	if len(o1) != 1 || len(o2) != 1 {
		t.Fatalf("expected 1 output each, got %d and %d", len(o1), len(o2))
	}
	if o1[0].Envelope.StateHash != o2[0].Envelope.StateHash {
		t.Error("restored engine diverged from original")
	}
}

// ============================================================================
// Test: Publish Channel (non-blocking drop)
// ============================================================================

func TestPublishChannel_DropsOnFull(t *testing.T) {
	persistCh := make(chan engine.Output, 1024)
	publishCh := make(chan engine.Output, 1)
	e := engine.NewEngine(0, persistCh, publishCh, nil, nil)
	admin := newWallet()
	user := newWallet()

	if err := e.Process(&instruction.AddManager{Header: admin.header(), Manager: admin.id}); err != nil {
		t.Fatalf("AddManager failed: %v", err)
	}
	poolAddr := uuid.New()
	if err := e.Process(&instruction.InitPool{
		Header: admin.header(), Pool: poolAddr,
		PoolMint: uuid.New(), StakeSource: uuid.New(), FeeReceiver: uuid.New(),
	}); err != nil {
		t.Fatalf("InitPool failed: %v", err)
	}

	for i := 0; i < 5; i++ {
		if err := e.Process(&instruction.BurnOmnisol{
			Header: user.header(), Pool: poolAddr, Amount: 100,
		}); err != nil {
			t.Fatalf("burn %d failed: %v", i, err)
		}
	}

	// All succeed; publish drops are silent.
	persistOutputs := drainOutputs(persistCh)
	if len(persistOutputs) != 5 {
		t.Errorf("expected 5 persist outputs, got %d", len(persistOutputs))
	}
}

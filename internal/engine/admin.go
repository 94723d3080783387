package engine

import (
	"github.com/google/uuid"

	"github.com/mfactory-lab/omnisol/internal/fee"
	"github.com/mfactory-lab/omnisol/internal/instruction"
	"github.com/mfactory-lab/omnisol/internal/state"
)

// requireManager gates administrative instructions. The very first
// AddManager bootstraps the role registry; after that, only registered
// managers may administer.
func (e *Engine) requireManager(authority uuid.UUID) error {
	if !e.store.IsManager(authority) {
		return ErrUnauthorized
	}
	return nil
}

func (e *Engine) handleInitPool(i *instruction.InitPool) (*outcome, error) {
	if err := e.requireManager(i.Authority); err != nil {
		return nil, err
	}
	if _, exists := e.store.GetPool(i.Pool); exists {
		return nil, ErrWrongData
	}

	pool := state.Pool{
		Address:     i.Pool,
		Authority:   i.Authority,
		PoolMint:    i.PoolMint,
		StakeSource: i.StakeSource,
		FeeReceiver: i.FeeReceiver,
		MinDeposit:  i.MinDeposit,
		Active:      true,
	}
	e.store.PutPool(pool)

	return &outcome{touched: []uuid.UUID{pool.Address}}, nil
}

func (e *Engine) handlePausePool(i *instruction.PausePool) (*outcome, error) {
	if err := e.requireManager(i.Authority); err != nil {
		return nil, err
	}
	pool, ok := e.store.GetPool(i.Pool)
	if !ok {
		return nil, ErrWrongData
	}
	if !pool.Active {
		return nil, ErrPoolAlreadyPaused
	}

	pool.Active = false
	e.store.PutPool(pool)

	return &outcome{touched: []uuid.UUID{pool.Address}}, nil
}

func (e *Engine) handleResumePool(i *instruction.ResumePool) (*outcome, error) {
	if err := e.requireManager(i.Authority); err != nil {
		return nil, err
	}
	pool, ok := e.store.GetPool(i.Pool)
	if !ok {
		return nil, ErrWrongData
	}
	if pool.Active {
		return nil, ErrPoolAlreadyResumed
	}

	pool.Active = true
	e.store.PutPool(pool)

	return &outcome{touched: []uuid.UUID{pool.Address}}, nil
}

func (e *Engine) handleClosePool(i *instruction.ClosePool) (*outcome, error) {
	pool, ok := e.store.GetPool(i.Pool)
	if !ok {
		return nil, ErrWrongData
	}
	if pool.Authority != i.Authority {
		return nil, ErrUnauthorized
	}
	if pool.Collaterals > 0 {
		return nil, ErrStillRemainingCollaterals
	}

	e.store.DeletePool(pool.Address)

	return &outcome{touched: []uuid.UUID{pool.Address}}, nil
}

func (e *Engine) handleSetFees(i *instruction.SetFees) (*outcome, error) {
	if err := e.requireManager(i.Authority); err != nil {
		return nil, err
	}
	pool, ok := e.store.GetPool(i.Pool)
	if !ok {
		return nil, ErrWrongData
	}
	for _, bps := range []uint64{i.DepositFeeBps, i.MintFeeBps, i.WithdrawFeeBps, i.StorageFeeBps} {
		if bps > fee.Scale {
			return nil, ErrWrongData
		}
	}

	pool.DepositFeeBps = i.DepositFeeBps
	pool.MintFeeBps = i.MintFeeBps
	pool.WithdrawFeeBps = i.WithdrawFeeBps
	pool.StorageFeeBps = i.StorageFeeBps
	if i.MinDeposit > 0 {
		pool.MinDeposit = i.MinDeposit
	}
	e.store.PutPool(pool)

	return &outcome{touched: []uuid.UUID{pool.Address}}, nil
}

func (e *Engine) handleAddManager(i *instruction.AddManager) (*outcome, error) {
	// Bootstrap: the first manager self-registers on an empty registry.
	if e.store.ManagerCount() > 0 {
		if err := e.requireManager(i.Authority); err != nil {
			return nil, err
		}
	}

	e.store.PutManager(state.Manager{Authority: i.Manager})

	return &outcome{touched: []uuid.UUID{i.Manager}}, nil
}

func (e *Engine) handleRemoveManager(i *instruction.RemoveManager) (*outcome, error) {
	if err := e.requireManager(i.Authority); err != nil {
		return nil, err
	}
	if !e.store.IsManager(i.Manager) {
		return nil, ErrWrongData
	}

	e.store.DeleteManager(i.Manager)

	return &outcome{touched: []uuid.UUID{i.Manager}}, nil
}

func (e *Engine) handleAddLiquidator(i *instruction.AddLiquidator) (*outcome, error) {
	if err := e.requireManager(i.Authority); err != nil {
		return nil, err
	}

	e.store.PutLiquidator(state.Liquidator{Authority: i.Liquidator})

	return &outcome{touched: []uuid.UUID{i.Liquidator}}, nil
}

func (e *Engine) handleRemoveLiquidator(i *instruction.RemoveLiquidator) (*outcome, error) {
	if err := e.requireManager(i.Authority); err != nil {
		return nil, err
	}
	if !e.store.IsLiquidator(i.Liquidator) {
		return nil, ErrWrongData
	}

	e.store.DeleteLiquidator(i.Liquidator)

	return &outcome{touched: []uuid.UUID{i.Liquidator}}, nil
}

func (e *Engine) handleAddToWhitelist(i *instruction.AddToWhitelist) (*outcome, error) {
	if err := e.requireManager(i.Authority); err != nil {
		return nil, err
	}

	e.store.PutWhitelistEntry(state.WhitelistEntry{
		Token:           i.Token,
		StakingPool:     i.StakingPool,
		StakingPoolProg: i.StakingPoolProg,
	})

	// Mirror the external staking pool's account layout so the
	// liquidator's account resolver can work from ledger state alone.
	validators := make([]state.ValidatorStake, 0, len(i.Validators))
	for _, v := range i.Validators {
		validators = append(validators, state.ValidatorStake{
			StakeAccount: v.StakeAccount,
			ActiveStake:  v.ActiveStake,
		})
	}
	e.store.PutStakePool(state.StakePool{
		Address:           i.StakingPool,
		Mint:              i.Token,
		ReserveStake:      i.ReserveStake,
		ReserveBalance:    i.ReserveBalance,
		ManagerFeeAccount: i.ManagerFeeAccount,
		Validators:        validators,
	})

	return &outcome{touched: []uuid.UUID{i.Token, i.StakingPool}}, nil
}

func (e *Engine) handleRemoveFromWhitelist(i *instruction.RemoveFromWhitelist) (*outcome, error) {
	if err := e.requireManager(i.Authority); err != nil {
		return nil, err
	}
	entry, ok := e.store.GetWhitelistEntry(i.Token)
	if !ok {
		return nil, ErrWrongData
	}

	e.store.DeleteWhitelistEntry(i.Token)

	// Drop the staking pool mirror unless another token still needs it.
	referenced := false
	for _, w := range e.store.ListWhitelist() {
		if w.StakingPool == entry.StakingPool {
			referenced = true
			break
		}
	}
	if !referenced {
		e.store.DeleteStakePool(entry.StakingPool)
	}

	return &outcome{touched: []uuid.UUID{i.Token, entry.StakingPool}}, nil
}

func (e *Engine) handleBlockUser(i *instruction.BlockUser) (*outcome, error) {
	if err := e.requireManager(i.Authority); err != nil {
		return nil, err
	}
	user, ok := e.store.GetUser(i.Wallet)
	if !ok || !user.Registered {
		return nil, ErrWrongData
	}
	if user.Blocked {
		return nil, ErrUserBlocked
	}

	user.Blocked = true
	e.store.PutUser(user)

	return &outcome{touched: []uuid.UUID{user.Wallet}}, nil
}

func (e *Engine) handleUnblockUser(i *instruction.UnblockUser) (*outcome, error) {
	if err := e.requireManager(i.Authority); err != nil {
		return nil, err
	}
	user, ok := e.store.GetUser(i.Wallet)
	if !ok || !user.Registered {
		return nil, ErrWrongData
	}
	if !user.Blocked {
		return nil, ErrUserNotBlocked
	}

	user.Blocked = false
	e.store.PutUser(user)

	return &outcome{touched: []uuid.UUID{user.Wallet}}, nil
}

func (e *Engine) handleInitOracle(i *instruction.InitOracle) (*outcome, error) {
	if err := e.requireManager(i.Authority); err != nil {
		return nil, err
	}
	if _, exists := e.store.GetOracle(); exists {
		return nil, ErrWrongData
	}

	e.store.PutOracle(state.Oracle{Authority: i.OracleAuthority})

	return &outcome{touched: []uuid.UUID{i.OracleAuthority}}, nil
}

func (e *Engine) handleCloseOracle(i *instruction.CloseOracle) (*outcome, error) {
	if err := e.requireManager(i.Authority); err != nil {
		return nil, err
	}
	oracle, ok := e.store.GetOracle()
	if !ok {
		return nil, ErrWrongData
	}

	e.store.DeleteOracle()

	return &outcome{touched: []uuid.UUID{oracle.Authority}}, nil
}

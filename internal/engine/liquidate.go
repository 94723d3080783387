package engine

import (
	"github.com/google/uuid"

	"github.com/mfactory-lab/omnisol/internal/event"
	"github.com/mfactory-lab/omnisol/internal/instruction"
	"github.com/mfactory-lab/omnisol/internal/state"
)

func (e *Engine) handleLiquidateCollateral(i *instruction.LiquidateCollateral) (*outcome, error) {
	if !e.store.IsLiquidator(i.Authority) {
		return nil, ErrUnauthorized
	}
	pool, ok := e.store.GetPool(i.Pool)
	if !ok {
		return nil, ErrWrongData
	}
	if !pool.Active {
		return nil, ErrPoolAlreadyPaused
	}
	col, ok := e.store.GetCollateral(i.Collateral)
	if !ok || col.Pool != pool.Address {
		return nil, ErrWrongData
	}
	wi, ok := e.store.GetWithdraw(i.WithdrawInfo)
	if !ok {
		return nil, ErrWrongData
	}
	requester, ok := e.store.GetUser(wi.Authority)
	if !ok {
		return nil, ErrWrongData
	}
	if requester.Blocked {
		return nil, ErrUserBlocked
	}

	rest := col.LiquidatableRemainder()
	if i.Amount == 0 || i.Amount > rest {
		return nil, ErrInsufficientAmount
	}

	// The queue entry must match both the collateral and its current
	// remainder, so a stale queue cannot be executed against.
	oracle, ok := e.store.GetOracle()
	if !ok {
		return nil, ErrWrongData
	}
	memberIdx := -1
	for idx, m := range oracle.PriorityQueue {
		if m.Collateral == col.Address {
			memberIdx = idx
			break
		}
	}
	if memberIdx < 0 || oracle.PriorityQueue[memberIdx].Amount != rest {
		return nil, ErrWrongData
	}

	if i.Amount > wi.Amount {
		return nil, ErrInsufficientAmount
	}

	// The collateral's backing accounts must be among the presented
	// accounts: the post-split stake account for native collateral, the
	// stake source token account for LP collateral. LP collateral must
	// additionally be convertible back to native stake, so the unstake
	// chain picks the first strategy the staking pool's liquidity can
	// serve: withdraw from the reserve, else split and deactivate a
	// validator stake account.
	var unstaker Unstaker
	var stakePool state.StakePool
	if col.IsNative {
		if !hasAccount(i.Accounts, col.DelegatedStake) && i.SplitAccount != col.DelegatedStake {
			return nil, ErrInvalidStakeAccount
		}
	} else {
		if !hasAccount(i.Accounts, col.StakeSource) {
			return nil, ErrInvalidToken
		}
		entry, ok := e.store.GetWhitelistEntry(col.StakeSource)
		if !ok {
			return nil, ErrInvalidToken
		}
		stakePool, ok = e.store.GetStakePool(entry.StakingPool)
		if !ok {
			return nil, ErrWrongData
		}
		unstaker, ok = selectUnstaker(e.unstakers, stakePool, i.Amount)
		if !ok {
			return nil, ErrInsufficientFunds
		}
	}

	deposit, err := subU64(pool.DepositAmount, i.Amount)
	if err != nil {
		return nil, err
	}

	oracle.PriorityQueue[memberIdx].Amount -= i.Amount
	col.LiquidatedAmount += i.Amount
	wi.Amount -= i.Amount
	pool.DepositAmount = deposit

	if wi.Amount == 0 {
		e.store.DeleteWithdraw(wi.Address)
		if requester.RequestsAmount > 0 {
			requester.RequestsAmount--
		}
		e.store.PutUser(requester)
	} else {
		e.store.PutWithdraw(wi)
	}

	if col.Closable() {
		e.store.DeleteCollateral(col.Address)
		if pool.Collaterals > 0 {
			pool.Collaterals--
		}
	} else {
		e.store.PutCollateral(col)
	}

	e.store.PutPool(pool)
	e.store.PutOracle(oracle)

	if unstaker != nil {
		// Debit on a private copy so the stored validator slice never
		// sees a partial write.
		stakePool.Validators = append([]state.ValidatorStake(nil), stakePool.Validators...)
		unstaker.Apply(&stakePool, i.Amount)
		e.store.PutStakePool(stakePool)
	}

	out := &outcome{
		events: []event.Event{&event.Liquidation{
			Pool:       pool.Address,
			Collateral: col.Address,
			Authority:  wi.Authority,
			Amount:     i.Amount,
			RestAmount: rest - i.Amount,
			Timestamp:  i.Timestamp,
		}},
		touched: []uuid.UUID{pool.Address, col.Address, wi.Address, wi.Authority},
	}
	if unstaker != nil {
		out.touched = append(out.touched, stakePool.Address)
	}
	return out, nil
}

func hasAccount(accounts []instruction.AccountMeta, addr uuid.UUID) bool {
	for _, a := range accounts {
		if a.Address == addr {
			return true
		}
	}
	return false
}

package engine

import (
	"github.com/google/uuid"

	"github.com/mfactory-lab/omnisol/internal/event"
	"github.com/mfactory-lab/omnisol/internal/fee"
	"github.com/mfactory-lab/omnisol/internal/instruction"
	"github.com/mfactory-lab/omnisol/internal/state"
)

func (e *Engine) handleBurnOmnisol(i *instruction.BurnOmnisol) (*outcome, error) {
	if i.Amount == 0 {
		return nil, ErrInsufficientAmount
	}
	pool, ok := e.store.GetPool(i.Pool)
	if !ok {
		return nil, ErrWrongData
	}
	if !pool.Active {
		return nil, ErrPoolAlreadyPaused
	}
	user, ok := e.store.GetUser(i.Authority)
	if !ok || !user.Registered {
		user = state.User{Wallet: i.Authority, Registered: true}
	}
	if user.Blocked {
		return nil, ErrUserBlocked
	}

	user.LastWithdrawIndex++
	user.RequestsAmount++

	wi := state.WithdrawInfo{
		Address:   state.DeriveWithdrawAddress(user.Wallet, user.LastWithdrawIndex),
		Authority: user.Wallet,
		Amount:    i.Amount,
		CreatedAt: i.Timestamp,
	}
	e.store.PutUser(user)
	e.store.PutWithdraw(wi)

	out := &outcome{
		events: []event.Event{&event.WithdrawRequestCreation{
			Pool:         pool.Address,
			WithdrawInfo: wi.Address,
			User:         user.Wallet,
			Amount:       i.Amount,
			Timestamp:    i.Timestamp,
		}},
		touched: []uuid.UUID{pool.Address, user.Wallet, wi.Address},
	}
	return out, nil
}

// withdrawCollateral applies the shared arithmetic of WithdrawStake and
// WithdrawLPTokens once the collateral's kind has been checked.
func (e *Engine) withdrawCollateral(i instruction.Instruction, poolAddr, colAddr uuid.UUID, amount uint64, withBurn, withMerge bool) (*outcome, error) {
	pool, ok := e.store.GetPool(poolAddr)
	if !ok {
		return nil, ErrWrongData
	}
	if !pool.Active {
		return nil, ErrPoolAlreadyPaused
	}
	user, ok := e.store.GetUser(i.Signer())
	if !ok || !user.Registered {
		return nil, ErrWrongData
	}
	if user.Blocked {
		return nil, ErrUserBlocked
	}
	col, ok := e.store.GetCollateral(colAddr)
	if !ok || col.Pool != pool.Address {
		return nil, ErrWrongData
	}
	if col.User != i.Signer() {
		return nil, ErrUnauthorized
	}

	var burned uint64
	if withBurn {
		burned = minU64(amount, col.Amount)
	}

	// Only value neither liquidated nor still backing unburned mints can
	// leave the collateral.
	unbacked := col.Amount - burned
	available := col.LiquidatableRemainder()
	if amount == 0 || available < unbacked || amount > available-unbacked {
		return nil, ErrInsufficientAmount
	}

	rate, err := subU64(user.Rate, amount-burned)
	if err != nil {
		return nil, err
	}
	deposit, err := subU64(pool.DepositAmount, amount)
	if err != nil {
		return nil, err
	}

	user.Rate = rate
	pool.DepositAmount = deposit
	col.DelegationStake -= amount
	col.Amount -= burned

	withdrawFee := fee.Amount(amount, pool.WithdrawFeeBps)

	if col.Closable() {
		e.store.DeleteCollateral(col.Address)
		if pool.Collaterals > 0 {
			pool.Collaterals--
		}
	} else {
		e.store.PutCollateral(col)
	}
	e.store.PutUser(user)
	e.store.PutPool(pool)

	out := &outcome{
		events: []event.Event{&event.WithdrawStake{
			Pool:       pool.Address,
			Collateral: col.Address,
			User:       user.Wallet,
			Amount:     amount,
			RestAmount: col.DelegationStake,
			Burned:     burned,
			Fee:        withdrawFee,
			WithMerge:  withMerge,
			Timestamp:  i.Time(),
		}},
		touched: []uuid.UUID{pool.Address, user.Wallet, col.Address},
	}
	return out, nil
}

func (e *Engine) handleWithdrawStake(i *instruction.WithdrawStake) (*outcome, error) {
	col, ok := e.store.GetCollateral(i.Collateral)
	if !ok {
		return nil, ErrWrongData
	}
	if !col.IsNative {
		return nil, ErrInvalidStakeAccount
	}
	return e.withdrawCollateral(i, i.Pool, i.Collateral, i.Amount, i.WithBurn, i.WithMerge)
}

func (e *Engine) handleWithdrawLPTokens(i *instruction.WithdrawLPTokens) (*outcome, error) {
	col, ok := e.store.GetCollateral(i.Collateral)
	if !ok {
		return nil, ErrWrongData
	}
	if col.IsNative {
		return nil, ErrInvalidToken
	}
	// Token transfers have nothing to merge.
	return e.withdrawCollateral(i, i.Pool, i.Collateral, i.Amount, i.WithBurn, false)
}

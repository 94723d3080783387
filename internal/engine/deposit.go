package engine

import (
	"time"

	"github.com/google/uuid"

	"github.com/mfactory-lab/omnisol/internal/event"
	"github.com/mfactory-lab/omnisol/internal/fee"
	"github.com/mfactory-lab/omnisol/internal/instruction"
	"github.com/mfactory-lab/omnisol/internal/state"
)

// loadOrRegisterUser returns the signer's User record, creating it on
// first use. A RegisterUser event is appended when the record is new.
func (e *Engine) loadOrRegisterUser(wallet, pool uuid.UUID, ts time.Time, out *outcome) (state.User, error) {
	user, ok := e.store.GetUser(wallet)
	if !ok || !user.Registered {
		user = state.User{Wallet: wallet, Registered: true}
		out.events = append(out.events, &event.RegisterUser{
			Pool:      pool,
			User:      wallet,
			Timestamp: ts,
		})
	}
	if user.Blocked {
		return state.User{}, ErrUserBlocked
	}
	return user, nil
}

func (e *Engine) handleDepositStake(i *instruction.DepositStake) (*outcome, error) {
	pool, ok := e.store.GetPool(i.Pool)
	if !ok {
		return nil, ErrWrongData
	}
	if !pool.Active {
		return nil, ErrPoolAlreadyPaused
	}
	if i.StakeDelegation == 0 {
		return nil, ErrInvalidStakeAccount
	}
	if i.Amount == 0 || i.Amount > i.StakeDelegation || i.Amount < pool.MinDeposit {
		return nil, ErrInsufficientAmount
	}

	out := &outcome{}
	user, err := e.loadOrRegisterUser(i.Authority, pool.Address, i.Timestamp, out)
	if err != nil {
		return nil, err
	}

	depositFee := fee.Amount(i.Amount, pool.DepositFeeBps)

	// A partial deposit splits the stake account; the collateral is then
	// keyed by the split destination rather than the source.
	delegated := i.StakeSource
	if i.Amount < i.StakeDelegation {
		delegated = i.SplitAccount
	}

	rate, err := addU64(user.Rate, i.Amount)
	if err != nil {
		return nil, err
	}
	deposit, err := addU64(pool.DepositAmount, i.Amount)
	if err != nil {
		return nil, err
	}

	addr := state.DeriveCollateralAddress(i.Authority, delegated)
	col, exists := e.store.GetCollateral(addr)
	if exists && col.User == i.Authority {
		col.DelegationStake, err = addU64(col.DelegationStake, i.Amount)
		if err != nil {
			return nil, err
		}
	} else {
		col = state.Collateral{
			Address:         addr,
			User:            i.Authority,
			Pool:            pool.Address,
			StakeSource:     i.StakeSource,
			DelegatedStake:  delegated,
			DelegationStake: i.Amount,
			CreatedAt:       i.Timestamp,
			CreationEpoch:   e.epochs.EpochAt(i.Timestamp),
			IsNative:        true,
		}
		pool.Collaterals++
	}

	user.Rate = rate
	pool.DepositAmount = deposit
	e.store.PutUser(user)
	e.store.PutCollateral(col)
	e.store.PutPool(pool)

	out.events = append(out.events, &event.DepositStake{
		Pool:       pool.Address,
		Collateral: col.Address,
		User:       user.Wallet,
		Amount:     i.Amount,
		Fee:        depositFee,
		Timestamp:  i.Timestamp,
	})
	out.touched = []uuid.UUID{pool.Address, user.Wallet, col.Address}
	return out, nil
}

func (e *Engine) handleDepositLP(i *instruction.DepositLP) (*outcome, error) {
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
	if _, ok := e.store.GetWhitelistEntry(i.Token); !ok {
		return nil, ErrInvalidToken
	}
	if pool.StakeSource != i.Token {
		return nil, ErrInvalidToken
	}
	if i.Amount < pool.MinDeposit {
		return nil, ErrInsufficientAmount
	}

	out := &outcome{}
	user, err := e.loadOrRegisterUser(i.Authority, pool.Address, i.Timestamp, out)
	if err != nil {
		return nil, err
	}

	depositFee := fee.Amount(i.Amount, pool.DepositFeeBps)

	rate, err := addU64(user.Rate, i.Amount)
	if err != nil {
		return nil, err
	}
	deposit, err := addU64(pool.DepositAmount, i.Amount)
	if err != nil {
		return nil, err
	}

	addr := state.DeriveCollateralAddress(i.Authority, i.Token)
	col, exists := e.store.GetCollateral(addr)
	if exists && col.User == i.Authority {
		col.DelegationStake, err = addU64(col.DelegationStake, i.Amount)
		if err != nil {
			return nil, err
		}
	} else {
		col = state.Collateral{
			Address:         addr,
			User:            i.Authority,
			Pool:            pool.Address,
			StakeSource:     i.Token,
			DelegationStake: i.Amount,
			CreatedAt:       i.Timestamp,
			CreationEpoch:   e.epochs.EpochAt(i.Timestamp),
			IsNative:        false,
		}
		pool.Collaterals++
	}

	user.Rate = rate
	pool.DepositAmount = deposit
	e.store.PutUser(user)
	e.store.PutCollateral(col)
	e.store.PutPool(pool)

	out.events = append(out.events, &event.DepositStake{
		Pool:       pool.Address,
		Collateral: col.Address,
		User:       user.Wallet,
		Amount:     i.Amount,
		Fee:        depositFee,
		Timestamp:  i.Timestamp,
	})
	out.touched = []uuid.UUID{pool.Address, user.Wallet, col.Address}
	return out, nil
}

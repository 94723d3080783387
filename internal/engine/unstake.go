package engine

import (
	"github.com/google/uuid"

	"github.com/mfactory-lab/omnisol/internal/state"
)

// Unstaker is one strategy for converting staking-pool value back to
// native stake during LP liquidation. The engine tries strategies in
// order and runs the first one whose liquidity covers the amount; the
// account resolver on the liquidator side uses the same chain to pick
// the withdraw source it presents.
type Unstaker interface {
	// Name identifies the strategy in logs and errors.
	Name() string

	// Source returns the stake-pool account the withdrawal draws from
	// when the strategy's liquidity covers the amount.
	Source(sp state.StakePool, amount uint64) (uuid.UUID, bool)

	// Apply debits the liquidity Source reported. The caller checks
	// Source first and passes a private copy of the pool state.
	Apply(sp *state.StakePool, amount uint64)
}

// DefaultUnstakers is the ordered fallback chain: draw lamports straight
// from the reserve when it covers the amount, otherwise split a validator
// stake account and deactivate the split.
func DefaultUnstakers() []Unstaker {
	return []Unstaker{withdrawSol{}, withdrawStake{}}
}

// withdrawSol pays out of the staking pool's reserve.
type withdrawSol struct{}

func (withdrawSol) Name() string { return "withdraw_sol" }

func (withdrawSol) Source(sp state.StakePool, amount uint64) (uuid.UUID, bool) {
	if sp.ReserveBalance < amount {
		return uuid.Nil, false
	}
	return sp.ReserveStake, true
}

func (withdrawSol) Apply(sp *state.StakePool, amount uint64) {
	sp.ReserveBalance -= amount
}

// withdrawStake splits the amount off the first validator stake account
// that covers it; the split is then deactivated, which is the unstake
// step of the chain.
type withdrawStake struct{}

func (withdrawStake) Name() string { return "withdraw_stake" }

func (withdrawStake) Source(sp state.StakePool, amount uint64) (uuid.UUID, bool) {
	for _, v := range sp.Validators {
		if v.ActiveStake >= amount {
			return v.StakeAccount, true
		}
	}
	return uuid.Nil, false
}

func (withdrawStake) Apply(sp *state.StakePool, amount uint64) {
	for i := range sp.Validators {
		if sp.Validators[i].ActiveStake >= amount {
			sp.Validators[i].ActiveStake -= amount
			return
		}
	}
}

// selectUnstaker returns the first strategy in the chain able to serve
// the amount from the given pool state.
func selectUnstaker(chain []Unstaker, sp state.StakePool, amount uint64) (Unstaker, bool) {
	for _, u := range chain {
		if _, ok := u.Source(sp, amount); ok {
			return u, true
		}
	}
	return nil, false
}

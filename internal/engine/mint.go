package engine

import (
	"github.com/google/uuid"

	"github.com/mfactory-lab/omnisol/internal/event"
	"github.com/mfactory-lab/omnisol/internal/fee"
	"github.com/mfactory-lab/omnisol/internal/instruction"
)

func (e *Engine) handleMintOmnisol(i *instruction.MintOmnisol) (*outcome, error) {
	pool, ok := e.store.GetPool(i.Pool)
	if !ok {
		return nil, ErrWrongData
	}
	if !pool.Active {
		return nil, ErrPoolAlreadyPaused
	}
	user, ok := e.store.GetUser(i.Authority)
	if !ok || !user.Registered {
		return nil, ErrWrongData
	}
	if user.Blocked {
		return nil, ErrUserBlocked
	}
	col, ok := e.store.GetCollateral(i.Collateral)
	if !ok || col.Pool != pool.Address {
		return nil, ErrWrongData
	}
	if col.User != i.Authority {
		return nil, ErrUnauthorized
	}
	if i.Amount == 0 || i.Amount > col.MintableRemainder() {
		return nil, ErrInsufficientAmount
	}

	mintFee := fee.Amount(i.Amount, pool.MintFeeBps)

	amount, err := addU64(col.Amount, i.Amount)
	if err != nil {
		return nil, err
	}
	rate, err := subU64(user.Rate, i.Amount)
	if err != nil {
		return nil, err
	}
	col.Amount = amount
	user.Rate = rate

	// Fully minted and fully liquidated: charge the accrued storage fee
	// and retire the record.
	var storageFee uint64
	if col.Closable() {
		storageFee = fee.Storage(pool.StorageFeeBps, e.epochs.EpochAt(i.Timestamp), col.CreationEpoch, col.DelegationStake)
		e.store.DeleteCollateral(col.Address)
		if pool.Collaterals > 0 {
			pool.Collaterals--
		}
		e.store.PutPool(pool)
	} else {
		e.store.PutCollateral(col)
	}
	e.store.PutUser(user)

	out := &outcome{
		events: []event.Event{&event.MintOmnisol{
			Pool:       pool.Address,
			Collateral: col.Address,
			User:       user.Wallet,
			Amount:     i.Amount,
			Fee:        mintFee,
			StorageFee: storageFee,
			Timestamp:  i.Timestamp,
		}},
		touched: []uuid.UUID{pool.Address, user.Wallet, col.Address},
	}
	return out, nil
}

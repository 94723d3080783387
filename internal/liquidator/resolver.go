package liquidator

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/mfactory-lab/omnisol/internal/chain"
	"github.com/mfactory-lab/omnisol/internal/engine"
	"github.com/mfactory-lab/omnisol/internal/instruction"
	"github.com/mfactory-lab/omnisol/internal/state"
)

// ResolveAccounts builds the remaining-account tail for one liquidation,
// branching on the collateral type.
//
// Native collateral needs only the stake account being consumed: the
// post-split account itself when the full remainder goes, or the source
// account plus the fresh split account when the liquidation is partial.
//
// LP collateral walks the token's whitelist entry to its backing staking
// pool and produces the fixed account list the pool's withdraw path
// expects: pool state, program, withdraw authority, reserve and fee
// accounts, the withdraw source the unstake chain selects, and the
// pool-authority token account for the LP mint. The chain mirrors the
// ledger's own fallback order so a submitted instruction never names a
// source the ledger would refuse.
func ResolveAccounts(ctx context.Context, client chain.Client, col state.Collateral, amount uint64, splitAccount uuid.UUID) ([]instruction.AccountMeta, error) {
	if col.IsNative {
		if splitAccount == col.DelegatedStake {
			return []instruction.AccountMeta{
				{Address: splitAccount, Signer: true, Writable: true},
			}, nil
		}
		// A partial split also presents the source stake account it
		// splits from.
		return []instruction.AccountMeta{
			{Address: col.DelegatedStake, Writable: true},
			{Address: splitAccount, Signer: true, Writable: true},
		}, nil
	}

	entry, found, err := client.GetWhitelistEntry(ctx, col.StakeSource)
	if err != nil {
		return nil, fmt.Errorf("fetch whitelist entry for %s: %w", col.StakeSource, err)
	}
	if !found {
		return nil, fmt.Errorf("token %s is not whitelisted", col.StakeSource)
	}

	stakePool, found, err := client.GetStakePool(ctx, entry.StakingPool)
	if err != nil {
		return nil, fmt.Errorf("fetch staking pool %s: %w", entry.StakingPool, err)
	}
	if !found {
		return nil, fmt.Errorf("staking pool %s not found", entry.StakingPool)
	}

	pool, found, err := client.GetPool(ctx, col.Pool)
	if err != nil {
		return nil, fmt.Errorf("fetch pool %s: %w", col.Pool, err)
	}
	if !found {
		return nil, fmt.Errorf("pool %s not found", col.Pool)
	}

	var withdrawSource uuid.UUID
	found = false
	for _, u := range engine.DefaultUnstakers() {
		if src, ok := u.Source(stakePool, amount); ok {
			withdrawSource = src
			found = true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("staking pool %s cannot cover %d", entry.StakingPool, amount)
	}

	return []instruction.AccountMeta{
		{Address: entry.Token},
		{Address: entry.StakingPool, Writable: true},
		{Address: entry.StakingPoolProg},
		{Address: state.DeriveWithdrawAuthority(entry.StakingPool)},
		{Address: stakePool.ReserveStake, Writable: true},
		{Address: stakePool.ManagerFeeAccount, Writable: true},
		{Address: withdrawSource, Writable: true},
		{Address: state.DeriveTokenAccount(pool.Authority, entry.Token), Writable: true},
		{Address: col.StakeSource, Writable: true},
		{Address: splitAccount, Signer: true, Writable: true},
	}, nil
}

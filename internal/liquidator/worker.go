// Package liquidator implements the off-chain worker that drains
// outstanding withdraw requests by liquidating queued collateral. Each
// cycle walks the requests oldest-first and consumes priority-queue
// entries until every request is satisfied or the cycle's retry bound is
// hit.
package liquidator

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mfactory-lab/omnisol/internal/chain"
	"github.com/mfactory-lab/omnisol/internal/observability"
	"github.com/mfactory-lab/omnisol/internal/signer"
	"github.com/mfactory-lab/omnisol/internal/state"
)

// maxPasses bounds the per-request liquidation loop within one cycle. A
// request the queue cannot satisfy (paused pools, drained queue) is left
// for the next cycle instead of spinning.
const maxPasses = 10

// Worker drives liquidation cycles on a fixed interval.
type Worker struct {
	client   chain.Client
	metrics  *observability.Metrics
	log      zerolog.Logger
	interval time.Duration
}

func NewWorker(client chain.Client, metrics *observability.Metrics, interval time.Duration) *Worker {
	return &Worker{
		client:   client,
		metrics:  metrics,
		log:      observability.NewLogger("liquidator"),
		interval: interval,
	}
}

func (w *Worker) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Msg("liquidator started")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		if err := w.RunCycle(ctx); err != nil {
			w.log.Warn().Err(err).Msg("liquidation cycle failed")
		}
		select {
		case <-ctx.Done():
			w.log.Info().Msg("liquidator stopped")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// RunCycle processes every outstanding withdraw request once, oldest
// first. Per-request failures are logged and do not abort the cycle.
func (w *Worker) RunCycle(ctx context.Context) error {
	start := time.Now()

	requests, err := w.client.ListWithdrawRequests(ctx)
	if err != nil {
		return fmt.Errorf("list withdraw requests: %w", err)
	}
	sort.Slice(requests, func(i, j int) bool {
		if !requests[i].CreatedAt.Equal(requests[j].CreatedAt) {
			return requests[i].CreatedAt.Before(requests[j].CreatedAt)
		}
		return bytes.Compare(requests[i].Address[:], requests[j].Address[:]) < 0
	})

	for _, wi := range requests {
		if err := w.processRequest(ctx, wi); err != nil {
			w.log.Warn().
				Err(err).
				Stringer("withdraw_info", wi.Address).
				Msg("withdraw request not processed")
		}
	}

	if w.metrics != nil {
		w.metrics.LiquidatorCycleDur.Observe(time.Since(start).Seconds())
	}
	return nil
}

func (w *Worker) processRequest(ctx context.Context, wi state.WithdrawInfo) error {
	requester, found, err := w.client.GetUser(ctx, wi.Authority)
	if err != nil {
		return fmt.Errorf("fetch requester %s: %w", wi.Authority, err)
	}
	if !found {
		w.log.Warn().Stringer("authority", wi.Authority).Msg("requester not found, skipping")
		return nil
	}
	if requester.Blocked {
		w.log.Warn().Stringer("authority", wi.Authority).Msg("requester blocked, skipping")
		return nil
	}

	remaining := wi.Amount
	for pass := 0; pass < maxPasses && remaining > 0; pass++ {
		liquidated, err := w.runPass(ctx, wi, remaining)
		if err != nil {
			return err
		}
		if liquidated == 0 {
			// Nothing in the queue could serve this request; a later
			// cycle sees refreshed state.
			break
		}
		remaining -= liquidated
	}

	if remaining == 0 && w.metrics != nil {
		w.metrics.LiquidatorSatisfied.Inc()
	}
	if remaining > 0 {
		w.log.Info().
			Stringer("withdraw_info", wi.Address).
			Uint64("remaining", remaining).
			Msg("withdraw request left partially satisfied")
	}
	return nil
}

// runPass walks the priority queue once against fresh snapshots and
// returns how much it liquidated toward the request. Entry-level
// failures are logged and skipped.
func (w *Worker) runPass(ctx context.Context, wi state.WithdrawInfo, remaining uint64) (uint64, error) {
	oracle, found, err := w.client.GetOracle(ctx)
	if err != nil {
		return 0, fmt.Errorf("fetch oracle: %w", err)
	}
	if !found || len(oracle.PriorityQueue) == 0 {
		return 0, nil
	}

	collaterals, err := w.client.ListCollaterals(ctx)
	if err != nil {
		return 0, fmt.Errorf("list collaterals: %w", err)
	}
	byAddress := make(map[uuid.UUID]state.Collateral, len(collaterals))
	for _, c := range collaterals {
		byAddress[c.Address] = c
	}

	var liquidated uint64
	for _, member := range oracle.PriorityQueue {
		if remaining == liquidated {
			break
		}
		if member.Amount == 0 {
			continue
		}

		col, ok := byAddress[member.Collateral]
		if !ok {
			continue
		}
		pool, found, err := w.client.GetPool(ctx, col.Pool)
		if err != nil {
			return liquidated, fmt.Errorf("fetch pool %s: %w", col.Pool, err)
		}
		if !found {
			continue
		}
		if !pool.Active {
			w.log.Warn().Stringer("pool", pool.Address).Msg("pool paused, skipping entry")
			continue
		}
		if _, found, err = w.client.GetUser(ctx, col.User); err != nil {
			return liquidated, fmt.Errorf("fetch collateral owner %s: %w", col.User, err)
		} else if !found {
			w.log.Warn().Stringer("user", col.User).Msg("collateral owner not found, skipping entry")
			continue
		}

		amount := remaining - liquidated
		if member.Amount < amount {
			amount = member.Amount
		}

		if err := w.liquidate(ctx, wi, col, pool, amount, member.Amount); err != nil {
			if w.metrics != nil {
				w.metrics.LiquidatorFailures.WithLabelValues("submit").Inc()
			}
			w.log.Warn().
				Err(err).
				Stringer("collateral", col.Address).
				Uint64("amount", amount).
				Msg("liquidation attempt failed")
			continue
		}
		liquidated += amount
	}
	return liquidated, nil
}

func (w *Worker) liquidate(ctx context.Context, wi state.WithdrawInfo, col state.Collateral, pool state.Pool, amount, memberAmount uint64) error {
	// A full native liquidation consumes the delegated stake account
	// directly; everything else splits into or withdraws to a fresh
	// ephemeral account.
	splitAccount := col.DelegatedStake
	if !col.IsNative || amount < memberAmount {
		var err error
		splitAccount, err = signer.EphemeralAccount()
		if err != nil {
			return fmt.Errorf("generate split account: %w", err)
		}
	}

	accounts, err := ResolveAccounts(ctx, w.client, col, amount, splitAccount)
	if err != nil {
		return fmt.Errorf("resolve accounts: %w", err)
	}
	accountBodies := make([]map[string]any, len(accounts))
	for i, a := range accounts {
		accountBodies[i] = map[string]any{
			"address":  a.Address.String(),
			"signer":   a.Signer,
			"writable": a.Writable,
		}
	}

	if w.metrics != nil {
		w.metrics.LiquidatorAttempts.Inc()
	}
	return w.client.Submit(ctx, "LiquidateCollateral", map[string]any{
		"pool":          pool.Address.String(),
		"collateral":    col.Address.String(),
		"withdraw_info": wi.Address.String(),
		"amount":        amount,
		"split_account": splitAccount.String(),
		"accounts":      accountBodies,
	})
}

package query

import (
	"context"
	"encoding/hex"
	"sort"

	"github.com/google/uuid"

	"github.com/mfactory-lab/omnisol/internal/state"
)

// EngineStatus is the read-only view of engine progress the service needs
// for freshness semantics. All responses include as_of_sequence.
type EngineStatus interface {
	GetSequence() int64
	GetStateHash() [32]byte
}

// Service provides read-only access to the ledger state. It reads the
// engine's store directly; the store's getters return value copies, so
// concurrent reads are safe against the single engine writer.
type Service struct {
	store  *state.Store
	engine EngineStatus
}

func NewService(store *state.Store, engine EngineStatus) *Service {
	return &Service{store: store, engine: engine}
}

func (s *Service) ListPools(ctx context.Context) []PoolResponse {
	asOf := s.engine.GetSequence()
	pools := s.store.ListPools()
	out := make([]PoolResponse, 0, len(pools))
	for _, p := range pools {
		out = append(out, poolResponse(p, asOf))
	}
	sort.Slice(out, func(i, j int) bool { return lessUUID(out[i].Address, out[j].Address) })
	return out
}

func (s *Service) GetPool(ctx context.Context, addr uuid.UUID) (PoolResponse, bool) {
	p, ok := s.store.GetPool(addr)
	if !ok {
		return PoolResponse{}, false
	}
	return poolResponse(p, s.engine.GetSequence()), true
}

func (s *Service) ListUsers(ctx context.Context) []UserResponse {
	asOf := s.engine.GetSequence()
	users := s.store.ListUsers()
	out := make([]UserResponse, 0, len(users))
	for _, u := range users {
		out = append(out, userResponse(u, asOf))
	}
	sort.Slice(out, func(i, j int) bool { return lessUUID(out[i].Wallet, out[j].Wallet) })
	return out
}

func (s *Service) GetUser(ctx context.Context, wallet uuid.UUID) (UserResponse, bool) {
	u, ok := s.store.GetUser(wallet)
	if !ok || !u.Registered {
		return UserResponse{}, false
	}
	return userResponse(u, s.engine.GetSequence()), true
}

// ListCollaterals returns all collateral records, optionally filtered by
// owning wallet.
func (s *Service) ListCollaterals(ctx context.Context, wallet *uuid.UUID) []CollateralResponse {
	asOf := s.engine.GetSequence()
	cols := s.store.ListCollaterals()
	out := make([]CollateralResponse, 0, len(cols))
	for _, c := range cols {
		if wallet != nil && c.User != *wallet {
			continue
		}
		out = append(out, collateralResponse(c, asOf))
	}
	sort.Slice(out, func(i, j int) bool { return lessUUID(out[i].Address, out[j].Address) })
	return out
}

// ListWithdrawRequests returns pending withdrawals oldest-first, the
// order the liquidator must honor.
func (s *Service) ListWithdrawRequests(ctx context.Context) []WithdrawRequestResponse {
	asOf := s.engine.GetSequence()
	reqs := s.store.ListWithdraws()
	out := make([]WithdrawRequestResponse, 0, len(reqs))
	for _, w := range reqs {
		out = append(out, WithdrawRequestResponse{
			Address:      w.Address,
			Authority:    w.Authority,
			Amount:       w.Amount,
			CreatedAtUs:  w.CreatedAt.UnixMicro(),
			AsOfSequence: asOf,
		})
	}
	return out
}

func (s *Service) GetOracle(ctx context.Context) (OracleResponse, bool) {
	o, ok := s.store.GetOracle()
	if !ok {
		return OracleResponse{}, false
	}
	queue := make([]QueueMemberResponse, 0, len(o.PriorityQueue))
	for _, m := range o.PriorityQueue {
		queue = append(queue, QueueMemberResponse{Collateral: m.Collateral, Amount: m.Amount})
	}
	return OracleResponse{
		Authority:    o.Authority,
		Queue:        queue,
		AsOfSequence: s.engine.GetSequence(),
	}, true
}

func (s *Service) ListWhitelist(ctx context.Context) []WhitelistResponse {
	entries := s.store.ListWhitelist()
	out := make([]WhitelistResponse, 0, len(entries))
	for _, w := range entries {
		out = append(out, WhitelistResponse{
			Token:           w.Token,
			StakingPool:     w.StakingPool,
			StakingPoolProg: w.StakingPoolProg,
		})
	}
	sort.Slice(out, func(i, j int) bool { return lessUUID(out[i].Token, out[j].Token) })
	return out
}

func (s *Service) GetStakePool(ctx context.Context, addr uuid.UUID) (StakePoolResponse, bool) {
	sp, ok := s.store.GetStakePool(addr)
	if !ok {
		return StakePoolResponse{}, false
	}
	validators := make([]ValidatorStakeResponse, 0, len(sp.Validators))
	for _, v := range sp.Validators {
		validators = append(validators, ValidatorStakeResponse{
			StakeAccount: v.StakeAccount,
			ActiveStake:  v.ActiveStake,
		})
	}
	return StakePoolResponse{
		Address:           sp.Address,
		Mint:              sp.Mint,
		ReserveStake:      sp.ReserveStake,
		ReserveBalance:    sp.ReserveBalance,
		ManagerFeeAccount: sp.ManagerFeeAccount,
		Validators:        validators,
	}, true
}

func (s *Service) Status(ctx context.Context) StatusResponse {
	hash := s.engine.GetStateHash()
	return StatusResponse{
		Sequence:           s.engine.GetSequence(),
		StateHash:          hex.EncodeToString(hash[:]),
		Pools:              len(s.store.ListPools()),
		Users:              len(s.store.ListUsers()),
		Collaterals:        len(s.store.ListCollaterals()),
		PendingWithdrawals: len(s.store.ListWithdraws()),
	}
}

// --- converters ---

func poolResponse(p state.Pool, asOf int64) PoolResponse {
	return PoolResponse{
		Address:        p.Address,
		Authority:      p.Authority,
		PoolMint:       p.PoolMint,
		StakeSource:    p.StakeSource,
		FeeReceiver:    p.FeeReceiver,
		DepositAmount:  p.DepositAmount,
		Collaterals:    p.Collaterals,
		Active:         p.Active,
		DepositFeeBps:  p.DepositFeeBps,
		MintFeeBps:     p.MintFeeBps,
		WithdrawFeeBps: p.WithdrawFeeBps,
		StorageFeeBps:  p.StorageFeeBps,
		MinDeposit:     p.MinDeposit,
		AsOfSequence:   asOf,
	}
}

func userResponse(u state.User, asOf int64) UserResponse {
	return UserResponse{
		Wallet:            u.Wallet,
		Rate:              u.Rate,
		Blocked:           u.Blocked,
		RequestsAmount:    u.RequestsAmount,
		LastWithdrawIndex: u.LastWithdrawIndex,
		AsOfSequence:      asOf,
	}
}

func collateralResponse(c state.Collateral, asOf int64) CollateralResponse {
	return CollateralResponse{
		Address:          c.Address,
		User:             c.User,
		Pool:             c.Pool,
		StakeSource:      c.StakeSource,
		DelegatedStake:   c.DelegatedStake,
		DelegationStake:  c.DelegationStake,
		Amount:           c.Amount,
		LiquidatedAmount: c.LiquidatedAmount,
		CreatedAtUs:      c.CreatedAt.UnixMicro(),
		CreationEpoch:    c.CreationEpoch,
		IsNative:         c.IsNative,
		AsOfSequence:     asOf,
	}
}

func lessUUID(a, b uuid.UUID) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

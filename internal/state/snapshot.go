package state

import (
	"github.com/google/uuid"
)

// Snapshot is the serializable contents of a Store.
type Snapshot struct {
	Pools       []Pool           `json:"pools"`
	Users       []User           `json:"users"`
	Collaterals []Collateral     `json:"collaterals"`
	Withdraws   []WithdrawInfo   `json:"withdraws"`
	Whitelist   []WhitelistEntry `json:"whitelist"`
	StakePools  []StakePool      `json:"stake_pools"`
	Liquidators []uuid.UUID      `json:"liquidators"`
	Managers    []uuid.UUID      `json:"managers"`
	Oracle      *Oracle          `json:"oracle,omitempty"`
}

// Snapshot captures the full store contents.
func (s *Store) Snapshot() *Snapshot {
	snap := &Snapshot{
		Pools:       s.ListPools(),
		Users:       s.ListUsers(),
		Collaterals: s.ListCollaterals(),
		Withdraws:   s.ListWithdraws(),
		Whitelist:   s.ListWhitelist(),
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, sp := range s.stakePools {
		snap.StakePools = append(snap.StakePools, sp)
	}
	for a := range s.liquidators {
		snap.Liquidators = append(snap.Liquidators, a)
	}
	for a := range s.managers {
		snap.Managers = append(snap.Managers, a)
	}
	if s.oracle != nil {
		o := *s.oracle
		o.PriorityQueue = append([]QueueMember(nil), s.oracle.PriorityQueue...)
		snap.Oracle = &o
	}
	return snap
}

// Restore replaces the store contents with a snapshot.
func (s *Store) Restore(snap *Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pools = make(map[uuid.UUID]Pool, len(snap.Pools))
	for _, p := range snap.Pools {
		s.pools[p.Address] = p
	}
	s.users = make(map[uuid.UUID]User, len(snap.Users))
	for _, u := range snap.Users {
		s.users[u.Wallet] = u
	}
	s.collaterals = make(map[uuid.UUID]Collateral, len(snap.Collaterals))
	for _, c := range snap.Collaterals {
		s.collaterals[c.Address] = c
	}
	s.withdraws = make(map[uuid.UUID]WithdrawInfo, len(snap.Withdraws))
	for _, w := range snap.Withdraws {
		s.withdraws[w.Address] = w
	}
	s.whitelist = make(map[uuid.UUID]WhitelistEntry, len(snap.Whitelist))
	for _, w := range snap.Whitelist {
		s.whitelist[w.Token] = w
	}
	s.stakePools = make(map[uuid.UUID]StakePool, len(snap.StakePools))
	for _, sp := range snap.StakePools {
		s.stakePools[sp.Address] = sp
	}
	s.liquidators = make(map[uuid.UUID]Liquidator, len(snap.Liquidators))
	for _, a := range snap.Liquidators {
		s.liquidators[a] = Liquidator{Authority: a}
	}
	s.managers = make(map[uuid.UUID]Manager, len(snap.Managers))
	for _, a := range snap.Managers {
		s.managers[a] = Manager{Authority: a}
	}
	s.oracle = nil
	if snap.Oracle != nil {
		o := *snap.Oracle
		o.PriorityQueue = append([]QueueMember(nil), snap.Oracle.PriorityQueue...)
		s.oracle = &o
	}
}

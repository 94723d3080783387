package state

import (
	"bytes"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// Store holds all ledger records in memory. Writes come only from the
// single-threaded engine; the RWMutex exists for concurrent readers
// (query API, snapshotting).
type Store struct {
	mu sync.RWMutex

	pools       map[uuid.UUID]Pool
	users       map[uuid.UUID]User
	collaterals map[uuid.UUID]Collateral
	withdraws   map[uuid.UUID]WithdrawInfo
	whitelist   map[uuid.UUID]WhitelistEntry
	stakePools  map[uuid.UUID]StakePool
	liquidators map[uuid.UUID]Liquidator
	managers    map[uuid.UUID]Manager
	oracle      *Oracle
}

func NewStore() *Store {
	return &Store{
		pools:       make(map[uuid.UUID]Pool),
		users:       make(map[uuid.UUID]User),
		collaterals: make(map[uuid.UUID]Collateral),
		withdraws:   make(map[uuid.UUID]WithdrawInfo),
		whitelist:   make(map[uuid.UUID]WhitelistEntry),
		stakePools:  make(map[uuid.UUID]StakePool),
		liquidators: make(map[uuid.UUID]Liquidator),
		managers:    make(map[uuid.UUID]Manager),
	}
}

// --- Pools ---

func (s *Store) GetPool(addr uuid.UUID) (Pool, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.pools[addr]
	return p, ok
}

func (s *Store) PutPool(p Pool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pools[p.Address] = p
}

func (s *Store) DeletePool(addr uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pools, addr)
}

func (s *Store) ListPools() []Pool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Pool, 0, len(s.pools))
	for _, p := range s.pools {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		return bytes.Compare(out[i].Address[:], out[j].Address[:]) < 0
	})
	return out
}

// --- Users ---

func (s *Store) GetUser(wallet uuid.UUID) (User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[wallet]
	return u, ok
}

func (s *Store) PutUser(u User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.Wallet] = u
}

func (s *Store) ListUsers() []User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool {
		return bytes.Compare(out[i].Wallet[:], out[j].Wallet[:]) < 0
	})
	return out
}

// --- Collaterals ---

func (s *Store) GetCollateral(addr uuid.UUID) (Collateral, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.collaterals[addr]
	return c, ok
}

func (s *Store) PutCollateral(c Collateral) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.collaterals[c.Address] = c
}

func (s *Store) DeleteCollateral(addr uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.collaterals, addr)
}

func (s *Store) ListCollaterals() []Collateral {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Collateral, 0, len(s.collaterals))
	for _, c := range s.collaterals {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		return bytes.Compare(out[i].Address[:], out[j].Address[:]) < 0
	})
	return out
}

// --- Withdraw requests ---

func (s *Store) GetWithdraw(addr uuid.UUID) (WithdrawInfo, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.withdraws[addr]
	return w, ok
}

func (s *Store) PutWithdraw(w WithdrawInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.withdraws[w.Address] = w
}

func (s *Store) DeleteWithdraw(addr uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.withdraws, addr)
}

// ListWithdraws returns all pending requests ordered oldest-first, the
// order the liquidator must drain them in.
func (s *Store) ListWithdraws() []WithdrawInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]WithdrawInfo, 0, len(s.withdraws))
	for _, w := range s.withdraws {
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return bytes.Compare(out[i].Address[:], out[j].Address[:]) < 0
	})
	return out
}

// --- Whitelist & stake pools ---

func (s *Store) GetWhitelistEntry(token uuid.UUID) (WhitelistEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.whitelist[token]
	return w, ok
}

func (s *Store) PutWhitelistEntry(w WhitelistEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.whitelist[w.Token] = w
}

func (s *Store) DeleteWhitelistEntry(token uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.whitelist, token)
}

func (s *Store) ListWhitelist() []WhitelistEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]WhitelistEntry, 0, len(s.whitelist))
	for _, w := range s.whitelist {
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool {
		return bytes.Compare(out[i].Token[:], out[j].Token[:]) < 0
	})
	return out
}

func (s *Store) GetStakePool(addr uuid.UUID) (StakePool, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sp, ok := s.stakePools[addr]
	return sp, ok
}

func (s *Store) PutStakePool(sp StakePool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stakePools[sp.Address] = sp
}

func (s *Store) DeleteStakePool(addr uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.stakePools, addr)
}

// --- Roles ---

func (s *Store) IsLiquidator(authority uuid.UUID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.liquidators[authority]
	return ok
}

func (s *Store) PutLiquidator(l Liquidator) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.liquidators[l.Authority] = l
}

func (s *Store) DeleteLiquidator(authority uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.liquidators, authority)
}

func (s *Store) IsManager(authority uuid.UUID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.managers[authority]
	return ok
}

func (s *Store) ManagerCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.managers)
}

func (s *Store) PutManager(m Manager) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.managers[m.Authority] = m
}

func (s *Store) DeleteManager(authority uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.managers, authority)
}

// --- Oracle ---

func (s *Store) GetOracle() (Oracle, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.oracle == nil {
		return Oracle{}, false
	}
	o := *s.oracle
	o.PriorityQueue = append([]QueueMember(nil), s.oracle.PriorityQueue...)
	return o, true
}

func (s *Store) PutOracle(o Oracle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := o
	cp.PriorityQueue = append([]QueueMember(nil), o.PriorityQueue...)
	s.oracle = &cp
}

func (s *Store) DeleteOracle() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.oracle = nil
}

// --- Digest ---

// Digest builds canonical bytes for the given touched addresses, sorted,
// for the state hash chain. A touched address with no live record digests
// as a tombstone so that deletions change the hash.
func (s *Store) Digest(touched []uuid.UUID) []byte {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sorted := append([]uuid.UUID(nil), touched...)
	sort.Slice(sorted, func(i, j int) bool {
		return bytes.Compare(sorted[i][:], sorted[j][:]) < 0
	})

	buf := make([]byte, 0, len(sorted)*64)
	var prev uuid.UUID
	for i, addr := range sorted {
		if i > 0 && addr == prev {
			continue
		}
		prev = addr
		buf = s.appendRecordDigest(buf, addr)
	}
	return buf
}

func (s *Store) appendRecordDigest(buf []byte, addr uuid.UUID) []byte {
	if p, ok := s.pools[addr]; ok {
		return p.appendDigest(buf)
	}
	if u, ok := s.users[addr]; ok {
		return u.appendDigest(buf)
	}
	if c, ok := s.collaterals[addr]; ok {
		return c.appendDigest(buf)
	}
	if w, ok := s.withdraws[addr]; ok {
		return w.appendDigest(buf)
	}
	if wl, ok := s.whitelist[addr]; ok {
		return wl.appendDigest(buf)
	}
	if sp, ok := s.stakePools[addr]; ok {
		return sp.appendDigest(buf)
	}
	if s.oracle != nil && s.oracle.Authority == addr {
		return s.oracle.appendDigest(buf)
	}
	// Tombstone: record was deleted by this instruction.
	buf = append(buf, 'X')
	buf = append(buf, addr[:]...)
	return buf
}

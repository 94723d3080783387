package oracle_test

import (
	"math/rand"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/mfactory-lab/omnisol/internal/oracle"
	"github.com/mfactory-lab/omnisol/internal/state"
)

var queueBase = time.Unix(1_700_000_000, 0).UTC()

func user(rate uint64) state.User {
	return state.User{Wallet: uuid.New(), Rate: rate, Registered: true}
}

func collateral(owner uuid.UUID, ord int, delegation, liquidated uint64) state.Collateral {
	return state.Collateral{
		Address:          uuid.New(),
		User:             owner,
		DelegationStake:  delegation,
		LiquidatedAmount: liquidated,
		CreatedAt:        queueBase.Add(time.Duration(ord) * time.Second),
	}
}

// Three users with rates [0, 100, 200] and five collaterals. The fully
// liquidated collateral is excluded; the rest appear in rate order with
// their remainders.
func TestGeneratePriorityQueue_ReferenceScenario(t *testing.T) {
	u1 := user(0)
	u2 := user(100)
	u3 := user(200)

	c1a := collateral(u1.Wallet, 0, 100, 100)
	c1b := collateral(u1.Wallet, 1, 100, 0)
	c2 := collateral(u2.Wallet, 2, 100, 50)
	c3a := collateral(u3.Wallet, 3, 100, 0)
	c3b := collateral(u3.Wallet, 4, 100, 99)

	queue := oracle.GeneratePriorityQueue(
		[]state.User{u1, u2, u3},
		[]state.Collateral{c1a, c1b, c2, c3a, c3b},
	)

	want := []state.QueueMember{
		{Collateral: c1b.Address, Amount: 100},
		{Collateral: c2.Address, Amount: 50},
		{Collateral: c3a.Address, Amount: 100},
		{Collateral: c3b.Address, Amount: 1},
	}
	if len(queue) != len(want) {
		t.Fatalf("expected %d entries, got %d", len(want), len(queue))
	}
	for i := range want {
		if queue[i] != want[i] {
			t.Errorf("entry %d: expected %v, got %v", i, want[i], queue[i])
		}
	}
}

func TestGeneratePriorityQueue_DeterministicUnderReordering(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	users := make([]state.User, 8)
	var collaterals []state.Collateral
	for i := range users {
		users[i] = user(uint64(rng.Intn(5)) * 100)
		for j := 0; j < 1+rng.Intn(3); j++ {
			delegation := uint64(100 + rng.Intn(900))
			liquidated := uint64(rng.Intn(int(delegation) + 1))
			collaterals = append(collaterals, collateral(users[i].Wallet, i*10+j, delegation, liquidated))
		}
	}

	reference := oracle.GeneratePriorityQueue(users, collaterals)

	for trial := 0; trial < 10; trial++ {
		shuffledUsers := make([]state.User, len(users))
		copy(shuffledUsers, users)
		rng.Shuffle(len(shuffledUsers), func(i, j int) {
			shuffledUsers[i], shuffledUsers[j] = shuffledUsers[j], shuffledUsers[i]
		})
		shuffledCols := make([]state.Collateral, len(collaterals))
		copy(shuffledCols, collaterals)
		rng.Shuffle(len(shuffledCols), func(i, j int) {
			shuffledCols[i], shuffledCols[j] = shuffledCols[j], shuffledCols[i]
		})

		got := oracle.GeneratePriorityQueue(shuffledUsers, shuffledCols)
		if len(got) != len(reference) {
			t.Fatalf("trial %d: length %d, want %d", trial, len(got), len(reference))
		}
		for i := range reference {
			if got[i] != reference[i] {
				t.Errorf("trial %d entry %d: %v, want %v", trial, i, got[i], reference[i])
			}
		}
	}
}

func TestGeneratePriorityQueue_AscendingRatePriority(t *testing.T) {
	low := user(10)
	high := user(10_000)
	cLow := collateral(low.Wallet, 0, 500, 0)
	cHigh := collateral(high.Wallet, 1, 500, 0)

	// Feed the high-rate user first; the low-rate user must still rank
	// ahead.
	queue := oracle.GeneratePriorityQueue(
		[]state.User{high, low},
		[]state.Collateral{cHigh, cLow},
	)
	if len(queue) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(queue))
	}
	if queue[0].Collateral != cLow.Address {
		t.Errorf("expected low-rate user's collateral first, got %v", queue[0].Collateral)
	}
}

func TestGeneratePriorityQueue_CapacityCutoff(t *testing.T) {
	var users []state.User
	var collaterals []state.Collateral
	for i := 0; i < state.QueueCapacity+20; i++ {
		u := user(uint64(i))
		users = append(users, u)
		collaterals = append(collaterals, collateral(u.Wallet, i, 100, 0))
	}

	queue := oracle.GeneratePriorityQueue(users, collaterals)
	if len(queue) != state.QueueCapacity {
		t.Errorf("expected queue capped at %d, got %d", state.QueueCapacity, len(queue))
	}
}

func TestGeneratePriorityQueue_SkipsZeroRemainder(t *testing.T) {
	u := user(0)
	full := collateral(u.Wallet, 0, 100, 100)

	queue := oracle.GeneratePriorityQueue([]state.User{u}, []state.Collateral{full})
	if len(queue) != 0 {
		t.Errorf("expected empty queue, got %d entries", len(queue))
	}
}

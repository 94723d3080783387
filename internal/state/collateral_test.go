package state_test

import (
	"testing"

	"github.com/google/uuid"

	"github.com/mfactory-lab/omnisol/internal/state"
)

// ============ Collateral accounting ============

func TestCollateral_Remainders(t *testing.T) {
	col := state.Collateral{
		DelegationStake:  1000,
		Amount:           600,
		LiquidatedAmount: 250,
	}

	if got := col.LiquidatableRemainder(); got != 750 {
		t.Errorf("LiquidatableRemainder() = %d, want 750", got)
	}
	if got := col.MintableRemainder(); got != 400 {
		t.Errorf("MintableRemainder() = %d, want 400", got)
	}
	if col.Closable() {
		t.Error("partially consumed collateral reported closable")
	}
}

func TestCollateral_Closable(t *testing.T) {
	cases := []struct {
		name       string
		delegation uint64
		amount     uint64
		liquidated uint64
		want       bool
	}{
		{"fully minted and liquidated", 500, 500, 500, true},
		{"fully liquidated, mint outstanding", 500, 400, 500, false},
		{"fully minted, liquidation outstanding", 500, 500, 300, false},
		{"empty record", 0, 0, 0, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			col := state.Collateral{
				DelegationStake:  tc.delegation,
				Amount:           tc.amount,
				LiquidatedAmount: tc.liquidated,
			}
			if got := col.Closable(); got != tc.want {
				t.Errorf("Closable() = %v, want %v", got, tc.want)
			}
		})
	}
}

// ============ Address derivation ============

func TestDeriveCollateralAddress_Deterministic(t *testing.T) {
	wallet := uuid.New()
	source := uuid.New()

	a := state.DeriveCollateralAddress(wallet, source)
	b := state.DeriveCollateralAddress(wallet, source)
	if a != b {
		t.Errorf("same inputs derived %s and %s", a, b)
	}

	if c := state.DeriveCollateralAddress(wallet, uuid.New()); c == a {
		t.Error("different stake sources derived the same address")
	}
	if c := state.DeriveCollateralAddress(uuid.New(), source); c == a {
		t.Error("different wallets derived the same address")
	}
}

func TestDeriveWithdrawAddress_IndexSeparates(t *testing.T) {
	wallet := uuid.New()

	first := state.DeriveWithdrawAddress(wallet, 0)
	second := state.DeriveWithdrawAddress(wallet, 1)
	if first == second {
		t.Error("consecutive withdraw indexes derived the same address")
	}
	if again := state.DeriveWithdrawAddress(wallet, 0); again != first {
		t.Errorf("index 0 derived %s and %s", first, again)
	}
}

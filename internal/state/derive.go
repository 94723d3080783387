package state

import (
	"github.com/google/uuid"
)

// Address derivation namespaces. Record addresses are derived from their
// owning keys so that independent writers agree on them without
// coordination, the same way program-derived addresses work on the host
// ledger.
var (
	nsCollateral   = uuid.MustParse("0c01a7e4-0000-4000-8000-6f6d6e69736f")
	nsWithdraw     = uuid.MustParse("3d17d4a0-0000-4000-8000-6f6d6e69736f")
	nsAuthority    = uuid.MustParse("a0717071-0000-4000-8000-6f6d6e69736f")
	nsTokenAccount = uuid.MustParse("70ce4acc-0000-4000-8000-6f6d6e69736f")
)

// DeriveCollateralAddress derives the collateral record address for a
// (user wallet, stake source) pair.
func DeriveCollateralAddress(wallet, stakeSource uuid.UUID) uuid.UUID {
	seed := make([]byte, 0, 32)
	seed = append(seed, wallet[:]...)
	seed = append(seed, stakeSource[:]...)
	return uuid.NewSHA1(nsCollateral, seed)
}

// DeriveWithdrawAddress derives the withdraw request address for a wallet
// and its monotonic request index.
func DeriveWithdrawAddress(wallet uuid.UUID, index uint64) uuid.UUID {
	seed := make([]byte, 0, 24)
	seed = append(seed, wallet[:]...)
	seed = appendUint64LE(seed, index)
	return uuid.NewSHA1(nsWithdraw, seed)
}

// DeriveWithdrawAuthority derives the withdraw-authority address for a
// staking pool.
func DeriveWithdrawAuthority(stakingPool uuid.UUID) uuid.UUID {
	return uuid.NewSHA1(nsAuthority, stakingPool[:])
}

// DeriveTokenAccount derives the associated token account of an owner for
// a mint.
func DeriveTokenAccount(owner, mint uuid.UUID) uuid.UUID {
	seed := make([]byte, 0, 32)
	seed = append(seed, owner[:]...)
	seed = append(seed, mint[:]...)
	return uuid.NewSHA1(nsTokenAccount, seed)
}

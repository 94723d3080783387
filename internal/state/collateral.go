package state

import (
	"time"

	"github.com/google/uuid"
)

// Collateral records pledged stake or LP value for one (user, stake source)
// pair. DelegationStake is the total pledged value; Amount is how much has
// been minted against it; LiquidatedAmount is how much has been forcibly
// converted to satisfy withdrawal requests.
//
// DelegationStake - LiquidatedAmount is the liquidatable remainder and
// DelegationStake - Amount is the mintable remainder. Both must stay
// non-negative after every instruction.
type Collateral struct {
	Address          uuid.UUID
	User             uuid.UUID
	Pool             uuid.UUID
	StakeSource      uuid.UUID
	DelegatedStake   uuid.UUID // post-split stake account, native collateral only
	DelegationStake  uint64
	Amount           uint64
	LiquidatedAmount uint64
	CreatedAt        time.Time
	CreationEpoch    uint64
	IsNative         bool
}

// LiquidatableRemainder is the value still available for forced liquidation.
func (c *Collateral) LiquidatableRemainder() uint64 {
	return c.DelegationStake - c.LiquidatedAmount
}

// MintableRemainder is the value not yet minted against.
func (c *Collateral) MintableRemainder() uint64 {
	return c.DelegationStake - c.Amount
}

// Closable reports whether the record has been fully minted-against and
// fully liquidated, at which point it is retired.
func (c *Collateral) Closable() bool {
	return c.DelegationStake == c.LiquidatedAmount && c.Amount == c.DelegationStake
}

func (c *Collateral) appendDigest(buf []byte) []byte {
	buf = append(buf, 'C')
	buf = append(buf, c.Address[:]...)
	buf = append(buf, c.User[:]...)
	buf = append(buf, c.Pool[:]...)
	buf = appendUint64LE(buf, c.DelegationStake)
	buf = appendUint64LE(buf, c.Amount)
	buf = appendUint64LE(buf, c.LiquidatedAmount)
	buf = appendUint64LE(buf, c.CreationEpoch)
	if c.IsNative {
		buf = append(buf, 1)
	} else {
		buf = append(buf, 0)
	}
	return buf
}

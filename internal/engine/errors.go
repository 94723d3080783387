package engine

import "errors"

// Ledger error taxonomy. Every handler failure maps to one of these so the
// caller can distinguish rejection classes; all of them abort the
// instruction with no state mutation retained.
var (
	ErrUnauthorized              = errors.New("unauthorized")
	ErrInvalidStakeAccount       = errors.New("invalid stake account")
	ErrInvalidToken              = errors.New("invalid token")
	ErrInsufficientAmount        = errors.New("insufficient amount")
	ErrInsufficientFunds         = errors.New("insufficient funds")
	ErrTypeOverflow              = errors.New("type overflow")
	ErrPoolAlreadyPaused         = errors.New("pool already paused")
	ErrPoolAlreadyResumed        = errors.New("pool already resumed")
	ErrUserBlocked               = errors.New("user blocked")
	ErrUserNotBlocked            = errors.New("user not blocked")
	ErrWrongData                 = errors.New("wrong data")
	ErrStillRemainingCollaterals = errors.New("still remaining collaterals")
)

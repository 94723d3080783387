package engine

import "time"

// EpochSchedule derives the epoch number from a versioned instruction
// timestamp. The engine never reads wall-clock time, so storage-fee
// accrual is a pure function of the timestamps carried on instructions.
type EpochSchedule struct {
	Genesis time.Time
	Length  time.Duration
}

// DefaultEpochSchedule matches the host chain's nominal two-day epochs,
// anchored at the unix epoch.
func DefaultEpochSchedule() EpochSchedule {
	return EpochSchedule{
		Genesis: time.Unix(0, 0).UTC(),
		Length:  48 * time.Hour,
	}
}

// EpochAt returns the epoch containing t. Times before genesis clamp to
// epoch zero.
func (s EpochSchedule) EpochAt(t time.Time) uint64 {
	if s.Length <= 0 || !t.After(s.Genesis) {
		return 0
	}
	return uint64(t.Sub(s.Genesis) / s.Length)
}

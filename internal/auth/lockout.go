package auth

import (
	"time"
)

// LockoutPolicy decides lock/unlock transitions from the failed-login
// counters on an Account. It is pure over (counters, now) -- persistence is
// the caller's job. Lockout is a best-effort brake on online guessing, not a
// hard security boundary: last-writer-wins on the counters under concurrent
// attempts is acceptable.
type LockoutPolicy struct {
	// Threshold is the failed-attempt count that triggers a lock.
	Threshold int

	// Duration is how long a triggered lock lasts.
	Duration time.Duration
}

// IsLocked reports whether the account is currently locked: a lock timestamp
// is set and has not yet elapsed.
func (p LockoutPolicy) IsLocked(a *Account, now time.Time) bool {
	return a.LockedUntil != nil && a.LockedUntil.After(now)
}

// OnFailure updates the account's counters for a failed password check.
//
// If a previous lock has expired, the counter restarts at 1 rather than 0:
// the failed attempt that just happened is the first strike of the new
// window. A just-unlocked account therefore tolerates one fewer failure
// before re-locking than a fresh one. Intentional -- do not normalize.
func (p LockoutPolicy) OnFailure(a *Account, now time.Time) {
	if a.LockedUntil != nil && !a.LockedUntil.After(now) {
		a.FailedLoginCount = 1
		a.LockedUntil = nil
		return
	}

	a.FailedLoginCount++

	if a.FailedLoginCount >= p.Threshold && !p.IsLocked(a, now) {
		until := now.Add(p.Duration)
		a.LockedUntil = &until
	}
}

// OnSuccess clears the counters after a successful password check.
func (p LockoutPolicy) OnSuccess(a *Account) {
	a.FailedLoginCount = 0
	a.LockedUntil = nil
}

package auth

import (
	"testing"
	"time"
)

func testPolicy() LockoutPolicy {
	return LockoutPolicy{Threshold: 5, Duration: 2 * time.Hour}
}

func TestLockout_NotLockedByDefault(t *testing.T) {
	p := testPolicy()
	a := &Account{}
	if p.IsLocked(a, time.Now()) {
		t.Error("expected fresh account to be unlocked")
	}
}

func TestLockout_LocksAtThreshold(t *testing.T) {
	p := testPolicy()
	now := time.Now()
	a := &Account{}

	for i := 0; i < 4; i++ {
		p.OnFailure(a, now)
		if p.IsLocked(a, now) {
			t.Fatalf("locked after %d failures, threshold is 5", i+1)
		}
	}

	p.OnFailure(a, now)
	if a.FailedLoginCount != 5 {
		t.Errorf("expected count 5, got %d", a.FailedLoginCount)
	}
	if !p.IsLocked(a, now) {
		t.Error("expected account locked after 5 failures")
	}
	if a.LockedUntil == nil {
		t.Fatal("expected lock timestamp to be set")
	}
	if got := a.LockedUntil.Sub(now); got != 2*time.Hour {
		t.Errorf("expected lock until now+2h, got +%v", got)
	}
}

func TestLockout_UnlocksWhenDurationElapses(t *testing.T) {
	p := testPolicy()
	now := time.Now()
	until := now.Add(2 * time.Hour)
	a := &Account{FailedLoginCount: 5, LockedUntil: &until}

	if !p.IsLocked(a, now) {
		t.Error("expected locked during the window")
	}
	if p.IsLocked(a, now.Add(2*time.Hour)) {
		t.Error("expected unlocked exactly at expiry")
	}
	if p.IsLocked(a, now.Add(3*time.Hour)) {
		t.Error("expected unlocked after expiry")
	}
}

func TestLockout_FailureAfterExpiredLockRestartsAtOne(t *testing.T) {
	p := testPolicy()
	now := time.Now()
	past := now.Add(-time.Minute)
	a := &Account{FailedLoginCount: 5, LockedUntil: &past}

	p.OnFailure(a, now)

	if a.FailedLoginCount != 1 {
		t.Errorf("expected counter restart at 1, got %d", a.FailedLoginCount)
	}
	if a.LockedUntil != nil {
		t.Error("expected expired lock to be cleared")
	}
	if p.IsLocked(a, now) {
		t.Error("expected account unlocked after counter restart")
	}
}

func TestLockout_FailureWhileLockedDoesNotExtendLock(t *testing.T) {
	p := testPolicy()
	now := time.Now()
	until := now.Add(time.Hour)
	a := &Account{FailedLoginCount: 5, LockedUntil: &until}

	p.OnFailure(a, now)

	if !a.LockedUntil.Equal(until) {
		t.Errorf("expected lock timestamp unchanged, got %v", a.LockedUntil)
	}
	if a.FailedLoginCount != 6 {
		t.Errorf("expected count 6, got %d", a.FailedLoginCount)
	}
}

func TestLockout_SuccessClearsCounters(t *testing.T) {
	p := testPolicy()
	until := time.Now().Add(time.Hour)
	a := &Account{FailedLoginCount: 4, LockedUntil: &until}

	p.OnSuccess(a)

	if a.FailedLoginCount != 0 {
		t.Errorf("expected count 0, got %d", a.FailedLoginCount)
	}
	if a.LockedUntil != nil {
		t.Error("expected lock cleared")
	}
}

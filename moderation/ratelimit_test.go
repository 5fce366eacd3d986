package moderation

import (
	"testing"
	"time"
)

func TestRateLimiterWithinWindow(t *testing.T) {
	rl := NewRateLimiter(5, 60*time.Second)
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	// 5 messages inside 10 seconds stay under the limit.
	for i := 0; i < 5; i++ {
		if limited := rl.CheckAndRecord("alice_a1", base.Add(time.Duration(i*2)*time.Second)); limited {
			t.Fatalf("call %d: limited=true, want false", i+1)
		}
	}
	// The 6th inside the same window tips over.
	if limited := rl.CheckAndRecord("alice_a1", base.Add(10*time.Second)); !limited {
		t.Fatal("6th call within window: limited=false, want true")
	}
}

func TestRateLimiterWindowExpiry(t *testing.T) {
	rl := NewRateLimiter(5, 60*time.Second)
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		rl.CheckAndRecord("bob_b2", base.Add(time.Duration(i)*time.Second))
	}
	// 61 seconds after the 1st hit only the 2nd..5th remain in the window,
	// so the 6th call lands at exactly the limit.
	if limited := rl.CheckAndRecord("bob_b2", base.Add(61*time.Second)); limited {
		t.Fatal("6th call after window expiry: limited=true, want false")
	}
}

func TestRateLimiterRecordsWhileLimited(t *testing.T) {
	rl := NewRateLimiter(2, time.Minute)
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	rl.CheckAndRecord("u_1", now)
	rl.CheckAndRecord("u_1", now)
	for i := 0; i < 3; i++ {
		if !rl.CheckAndRecord("u_1", now.Add(time.Duration(i)*time.Second)) {
			t.Fatalf("over-limit call %d not limited", i+1)
		}
	}
	// Hits kept accumulating: even a minute after the first two, the spam
	// recorded while limited still trips the check.
	if !rl.CheckAndRecord("u_1", now.Add(61*time.Second)) {
		t.Fatal("expected limiter to still be tripped by hits recorded while over limit")
	}
}

func TestRateLimiterKeysAreIndependent(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute)
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	if rl.CheckAndRecord("a_1", now) {
		t.Fatal("first message for a_1 limited")
	}
	if rl.CheckAndRecord("b_2", now) {
		t.Fatal("first message for b_2 limited despite separate key")
	}
}

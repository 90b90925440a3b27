package ratelimit

import (
	"testing"
	"time"
)

func TestAllowWithinBudget(t *testing.T) {
	l := New(60)
	for i := 0; i < 60; i++ {
		if wait, ok := l.Allow("key_a", "10.0.0.1"); !ok {
			t.Fatalf("request %d unexpectedly denied, wait %v", i, wait)
		}
	}
}

func TestDenyOverBudget(t *testing.T) {
	l := New(10)
	for i := 0; i < 10; i++ {
		if _, ok := l.Allow("key_a", "10.0.0.1"); !ok {
			t.Fatalf("request %d inside budget denied", i)
		}
	}

	wait, ok := l.Allow("key_a", "10.0.0.1")
	if ok {
		t.Fatal("request over budget was allowed")
	}
	if wait <= 0 {
		t.Fatalf("expected a positive retry delay, got %v", wait)
	}
}

func TestIndependentBudgetsPerPair(t *testing.T) {
	l := New(5)
	for i := 0; i < 5; i++ {
		l.Allow("key_a", "10.0.0.1")
	}
	if _, ok := l.Allow("key_a", "10.0.0.1"); ok {
		t.Fatal("exhausted pair was allowed")
	}

	// A different credential, and a different address, each have their own budget.
	if _, ok := l.Allow("key_b", "10.0.0.1"); !ok {
		t.Fatal("fresh credential was denied")
	}
	if _, ok := l.Allow("key_a", "10.0.0.2"); !ok {
		t.Fatal("fresh address was denied")
	}
}

func TestDeniedRequestConsumesNoBudget(t *testing.T) {
	l := New(1)
	if _, ok := l.Allow("key_a", "10.0.0.1"); !ok {
		t.Fatal("first request denied")
	}

	// Cancelled reservations must not push the retry delay further out.
	first, _ := l.Allow("key_a", "10.0.0.1")
	second, _ := l.Allow("key_a", "10.0.0.1")
	if second > first+time.Second {
		t.Fatalf("denied requests extended the delay: %v then %v", first, second)
	}
}

func TestCleanupDropsIdleVisitors(t *testing.T) {
	l := New(5)
	l.Allow("key_a", "10.0.0.1")
	l.Allow("key_b", "10.0.0.2")

	l.mu.Lock()
	for _, v := range l.visitors {
		v.lastSeen = time.Now().Add(-l.idleTTL - time.Minute)
	}
	l.mu.Unlock()

	l.cleanup()

	l.mu.Lock()
	remaining := len(l.visitors)
	l.mu.Unlock()
	if remaining != 0 {
		t.Fatalf("expected idle visitors to be dropped, %d remain", remaining)
	}
}

package middleware

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

func TestRateLimiter_AllowAndDeny(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	rl := NewRateLimiterWithClock(2, time.Minute, clock)
	defer rl.Stop()

	if !rl.Allow("ip") {
		t.Fatalf("expected allow")
	}
	if !rl.Allow("ip") {
		t.Fatalf("expected allow")
	}
	if rl.Allow("ip") {
		t.Fatalf("expected deny")
	}
	if !rl.Allow("other-ip") {
		t.Fatalf("expected other key allowed")
	}

	clock.Advance(time.Minute + time.Second)
	if !rl.Allow("ip") {
		t.Fatalf("expected allow after window")
	}
}

package voice

import (
	"testing"
	"time"
)

func TestPolicyDelayGrowsExponentially(t *testing.T) {
	p := Policy{MaxAttempts: 3, BaseDelay: time.Second, Multiplier: 2}

	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}
	for i, w := range want {
		attempt := i + 1
		if got := p.Delay(attempt); got != w {
			t.Fatalf("Delay(%d) = %v, want %v", attempt, got, w)
		}
	}
}

func TestRetryStopsAtCeiling(t *testing.T) {
	r := &Retry{Policy: Policy{MaxAttempts: 3, BaseDelay: time.Millisecond, Multiplier: 2}}

	for i := 0; i < 3; i++ {
		if _, ok := r.Next(); !ok {
			t.Fatalf("attempt %d should be allowed", i+1)
		}
	}
	if _, ok := r.Next(); ok {
		t.Fatalf("fourth attempt should be refused")
	}

	r.Reset()
	if _, ok := r.Next(); !ok {
		t.Fatalf("attempt after Reset should be allowed")
	}
}

func TestRestartGuardWindow(t *testing.T) {
	g := NewRestartGuard(GuardPolicy{Max: 5, Window: 2 * time.Second})
	base := time.Now()

	for i := 0; i < 5; i++ {
		if !g.Allow(base.Add(time.Duration(i) * 100 * time.Millisecond)) {
			t.Fatalf("restart %d inside budget should be allowed", i+1)
		}
	}
	if g.Allow(base.Add(500 * time.Millisecond)) {
		t.Fatalf("sixth restart inside the window should be refused")
	}

	// Once the early stamps age out the budget frees up again.
	if !g.Allow(base.Add(3 * time.Second)) {
		t.Fatalf("restart after the window should be allowed")
	}
}

package voice

import (
	"sync"
	"time"
)

// Policy is a standalone exponential backoff definition, kept separate from
// the recognition event wiring so retry arithmetic is testable on its own.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Multiplier  float64
}

// Delay returns the wait before the given attempt (1-based).
func (p Policy) Delay(attempt int) time.Duration {
	if attempt <= 1 {
		return p.BaseDelay
	}
	d := float64(p.BaseDelay)
	for i := 1; i < attempt; i++ {
		d *= p.Multiplier
	}
	return time.Duration(d)
}

// Retry tracks consecutive failures against a Policy.
type Retry struct {
	Policy

	mu       sync.Mutex
	attempts int
}

// Next records a failure and returns the delay before the next attempt.
// ok is false once the attempt ceiling is exceeded.
func (r *Retry) Next() (delay time.Duration, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attempts++
	if r.attempts > r.MaxAttempts {
		return 0, false
	}
	return r.Delay(r.attempts), true
}

// Reset clears the failure count after a successful attempt.
func (r *Retry) Reset() {
	r.mu.Lock()
	r.attempts = 0
	r.mu.Unlock()
}

// GuardPolicy bounds restart frequency: more than Max restarts inside
// Window means something is systemically wrong and looping must stop.
type GuardPolicy struct {
	Max    int
	Window time.Duration
}

// RestartGuard detects restart storms against a GuardPolicy.
type RestartGuard struct {
	GuardPolicy

	mu     sync.Mutex
	stamps []time.Time
}

func NewRestartGuard(p GuardPolicy) *RestartGuard {
	return &RestartGuard{GuardPolicy: p}
}

// Allow records a restart at now and reports whether it is within bounds.
func (g *RestartGuard) Allow(now time.Time) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	cutoff := now.Add(-g.Window)
	kept := g.stamps[:0]
	for _, t := range g.stamps {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	g.stamps = append(kept, now)
	return len(g.stamps) <= g.Max
}

// Reset forgets recorded restarts.
func (g *RestartGuard) Reset() {
	g.mu.Lock()
	g.stamps = nil
	g.mu.Unlock()
}

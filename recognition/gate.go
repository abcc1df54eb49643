package recognition

import (
	"sync"
	"time"
)

// IdleGate pauses detection once no motion has been observed for Idle and
// resumes it on the next observed motion.
type IdleGate struct {
	Idle time.Duration
	// Set receives every change of the active state.
	Set func(active bool)

	mu         sync.Mutex
	lastMotion time.Time
	active     bool
	primed     bool
}

// Observe records whether the latest frame showed motion and returns the
// resulting active state.
func (g *IdleGate) Observe(moving bool, now time.Time) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.primed {
		g.primed = true
		g.active = true
		g.lastMotion = now
	}
	if moving {
		g.lastMotion = now
	}
	active := now.Sub(g.lastMotion) <= g.Idle
	if active != g.active {
		g.active = active
		if g.Set != nil {
			g.Set(active)
		}
	}
	return active
}

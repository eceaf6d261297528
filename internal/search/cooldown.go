package search

import (
	"fmt"
	"sync"
	"time"
)

// CooldownError reports how long to wait before the next expensive search.
type CooldownError struct {
	Remaining time.Duration
}

func (e *CooldownError) Error() string {
	mins := int(e.Remaining.Minutes())
	secs := int(e.Remaining.Seconds()) % 60
	return fmt.Sprintf("deep search cooldown: wait %dm %ds", mins, secs)
}

// CooldownGate blocks expensive searches issued by the same workspace
// within a trailing window. Entries are created or overwritten on every
// allowed expensive search and consulted, never deleted.
type CooldownGate struct {
	mu     sync.Mutex
	window time.Duration
	last   map[string]time.Time

	now func() time.Time // overridable in tests
}

// NewCooldownGate creates a gate with the given trailing window.
func NewCooldownGate(window time.Duration) *CooldownGate {
	return &CooldownGate{
		window: window,
		last:   make(map[string]time.Time),
		now:    time.Now,
	}
}

// Check gates one search. Cheap searches always pass. An expensive search
// passes when the workspace has no recorded expensive search inside the
// window; passing records the current time as the new mark. Rejection
// returns a CooldownError carrying the remaining wait.
func (g *CooldownGate) Check(workspace string, expensive bool) error {
	if !expensive {
		return nil
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	if last, ok := g.last[workspace]; ok {
		elapsed := now.Sub(last)
		if elapsed < g.window {
			return &CooldownError{Remaining: g.window - elapsed}
		}
	}
	g.last[workspace] = now
	return nil
}

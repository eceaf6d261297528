package status

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/BENZOOgataga/DeepSearch/internal/bus"
)

// State represents a daemon runtime state.
type State string

const (
	Booting      State = "BOOTING"
	AuthRequired State = "AUTH_REQUIRED"
	Connecting   State = "CONNECTING"
	Syncing      State = "SYNCING"
	// Watching is the steady state: live traffic is being archived and
	// checked against the keyword watch list.
	Watching     State = "WATCHING"
	Reconnecting State = "RECONNECTING"
	Degraded     State = "DEGRADED"
	Error        State = "ERROR"
)

// validTransitions defines allowed state transitions.
var validTransitions = map[State][]State{
	Booting:      {AuthRequired, Connecting, Error},
	AuthRequired: {Connecting, Error},
	Connecting:   {Syncing, AuthRequired, Reconnecting, Error},
	Syncing:      {Watching, Reconnecting, Degraded, Error},
	Watching:     {Reconnecting, Degraded, AuthRequired, Error},
	Reconnecting: {Connecting, Degraded, Error},
	Degraded:     {Connecting, Reconnecting, Watching, Error},
	Error:        {Booting},
}

// Machine tracks and enforces daemon runtime state transitions.
type Machine struct {
	mu      sync.RWMutex
	current State
	since   time.Time
	bus     *bus.Bus
}

// NewMachine creates a new state machine starting in Booting state.
func NewMachine(b *bus.Bus) *Machine {
	return &Machine{
		current: Booting,
		since:   time.Now(),
		bus:     b,
	}
}

// Current returns the current state.
func (m *Machine) Current() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Since returns when the current state was entered.
func (m *Machine) Since() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.since
}

// Transition attempts to move to a new state. Returns error if transition is invalid.
func (m *Machine) Transition(to State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	allowed := validTransitions[m.current]
	if !slices.Contains(allowed, to) {
		return fmt.Errorf("invalid transition from %s to %s", m.current, to)
	}
	from := m.current
	m.current = to
	m.since = time.Now()
	if m.bus != nil {
		m.bus.Publish(bus.Event{
			Kind:      bus.KindSessionStatusChanged,
			Timestamp: time.Now(),
			Payload: StatusChange{
				From: from,
				To:   to,
			},
		})
	}
	return nil
}

// StatusChange is the payload for status change events.
type StatusChange struct {
	From State
	To   State
}

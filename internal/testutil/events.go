// Package testutil provides common test utilities.
package testutil

import (
	"sync"
	"time"

	"github.com/conikeec/mcp-probe/internal/events"
)

// EventCollector is a thread-safe event collector for test assertions.
// Subscribe it to an event bus and then query collected events.
type EventCollector struct {
	mu     sync.Mutex
	events []events.Event
	phases map[string][]events.Phase
	cond   *sync.Cond
}

// NewEventCollector creates a new EventCollector.
func NewEventCollector() *EventCollector {
	ec := &EventCollector{
		events: make([]events.Event, 0),
		phases: make(map[string][]events.Phase),
	}
	ec.cond = sync.NewCond(&ec.mu)
	return ec
}

// Handler returns a function suitable for bus.Subscribe().
func (c *EventCollector) Handler(e events.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.events = append(c.events, e)

	if sc, ok := e.(events.StatusChangedEvent); ok {
		c.phases[sc.ServerID()] = append(c.phases[sc.ServerID()], sc.NewPhase)
	}

	c.cond.Broadcast()
}

// Events returns all collected events.
func (c *EventCollector) Events() []events.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	result := make([]events.Event, len(c.events))
	copy(result, c.events)
	return result
}

// PhasesFor returns all phases observed for a server ID, in order.
func (c *EventCollector) PhasesFor(serverID string) []events.Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	result := make([]events.Phase, len(c.phases[serverID]))
	copy(result, c.phases[serverID])
	return result
}

// LastPhaseFor returns the most recently observed phase for a server ID.
// Returns PhaseIdle if none have been observed.
func (c *EventCollector) LastPhaseFor(serverID string) events.Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	phases := c.phases[serverID]
	if len(phases) == 0 {
		return events.PhaseIdle
	}
	return phases[len(phases)-1]
}

// WaitForPhase blocks until the given phase is observed for serverID or
// timeout elapses. Returns true if observed.
func (c *EventCollector) WaitForPhase(serverID string, phase events.Phase, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)

	c.mu.Lock()
	defer c.mu.Unlock()

	for {
		for _, p := range c.phases[serverID] {
			if p == phase {
				return true
			}
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return false
		}

		done := make(chan struct{})
		go func() {
			time.Sleep(remaining)
			c.cond.Broadcast()
			close(done)
		}()

		c.cond.Wait()

		select {
		case <-done:
			for _, p := range c.phases[serverID] {
				if p == phase {
					return true
				}
			}
			return false
		default:
		}
	}
}

// Clear resets the collector's state.
func (c *EventCollector) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = make([]events.Event, 0)
	c.phases = make(map[string][]events.Phase)
}

// PhasesContainSequence reports whether observed contains expected as a
// (not necessarily contiguous) subsequence.
func PhasesContainSequence(observed, expected []events.Phase) bool {
	if len(expected) == 0 {
		return true
	}
	if len(observed) == 0 {
		return false
	}

	expectedIdx := 0
	for _, p := range observed {
		if p == expected[expectedIdx] {
			expectedIdx++
			if expectedIdx == len(expected) {
				return true
			}
		}
	}
	return false
}

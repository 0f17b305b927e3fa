// Package testutil provides deterministic fakes shared by package tests.
package testutil

import "sync"

// DeterministicClock is a logical clock. It satisfies
// harness.Sequencer, and a FakeEngine built on the same clock stamps its
// calls on the same timeline as the runner's trace.
type DeterministicClock struct {
	mu  sync.Mutex
	seq int64
}

// NewDeterministicClock creates a clock whose first Next returns 1.
func NewDeterministicClock() *DeterministicClock {
	return &DeterministicClock{}
}

// Next increments and returns the sequence number.
func (c *DeterministicClock) Next() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	return c.seq
}

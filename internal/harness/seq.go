package harness

import "sync/atomic"

// Sequencer hands out strictly increasing sequence numbers for trace events.
type Sequencer interface {
	Next() int64
}

// LogicalClock is the default Sequencer. The first call to Next returns 1.
//
// Trace ordering never depends on wall time, so two runs of the same trials
// produce the same sequence numbers.
type LogicalClock struct {
	seq atomic.Int64
}

// NewLogicalClock creates a clock starting at 0.
func NewLogicalClock() *LogicalClock {
	return &LogicalClock{}
}

// Next returns the next sequence number.
func (c *LogicalClock) Next() int64 {
	return c.seq.Add(1)
}

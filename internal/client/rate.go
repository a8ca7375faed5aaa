package client

import "sync/atomic"

// RateMeter counts records between ticks. Call Tick once per second to get
// packets per second.
type RateMeter struct {
	count atomic.Uint64
	last  atomic.Uint64
}

// Add counts one record.
func (m *RateMeter) Add() {
	m.count.Add(1)
}

// Tick returns the count since the previous tick and resets it.
func (m *RateMeter) Tick() uint64 {
	n := m.count.Swap(0)
	m.last.Store(n)
	return n
}

// Rate returns the value of the latest tick.
func (m *RateMeter) Rate() uint64 {
	return m.last.Load()
}

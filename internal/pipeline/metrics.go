package pipeline

import (
	"sync/atomic"
)

// Metrics contains per-pipeline counters.
type Metrics struct {
	// Frame counters (using atomic for thread-safety)
	Received  atomic.Uint64
	Decoded   atomic.Uint64
	Published atomic.Uint64

	// Drops by reason
	Malformed atomic.Uint64
	LinkType  atomic.Uint64
	EtherType atomic.Uint64
	Other     atomic.Uint64
}

// NewMetrics creates a new metrics instance.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// Dropped returns the total of all drop reasons.
func (m *Metrics) Dropped() uint64 {
	return m.Malformed.Load() + m.LinkType.Load() + m.EtherType.Load() + m.Other.Load()
}

// Snapshot copies the counters.
func (m *Metrics) Snapshot() Stats {
	return Stats{
		Received:  m.Received.Load(),
		Decoded:   m.Decoded.Load(),
		Published: m.Published.Load(),
		Malformed: m.Malformed.Load(),
		LinkType:  m.LinkType.Load(),
		EtherType: m.EtherType.Load(),
		Other:     m.Other.Load(),
	}
}

// Reset resets all counters to zero.
func (m *Metrics) Reset() {
	m.Received.Store(0)
	m.Decoded.Store(0)
	m.Published.Store(0)
	m.Malformed.Store(0)
	m.LinkType.Store(0)
	m.EtherType.Store(0)
	m.Other.Store(0)
}

// Stats represents pipeline statistics.
type Stats struct {
	Received  uint64
	Decoded   uint64
	Published uint64
	Malformed uint64
	LinkType  uint64
	EtherType uint64
	Other     uint64
}

// Dropped returns the total of all drop reasons.
func (s Stats) Dropped() uint64 {
	return s.Malformed + s.LinkType + s.EtherType + s.Other
}

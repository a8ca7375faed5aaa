// Package broadcast fans assembled records out to live subscribers.
//
// Publish never blocks: each subscriber owns a bounded channel and a record
// that does not fit is dropped for that subscriber only. Subscribers that join
// late see only records published after they joined.
package broadcast

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"firestige.xyz/netscope/internal/core"
	"firestige.xyz/netscope/internal/log"
	"firestige.xyz/netscope/internal/metrics"
)

// DefaultBuffer is the per-subscriber channel capacity when none is given.
const DefaultBuffer = 256

// Options configures a Distributor.
type Options struct {
	Buffer int // Default per-subscriber channel capacity
}

// Stats is a point-in-time snapshot of distributor counters.
type Stats struct {
	Subscribers int
	Published   uint64 // Records offered to the subscriber set
	Delivered   uint64 // Successful per-subscriber sends
	Dropped     uint64 // Per-subscriber sends skipped on a full buffer
}

// Distributor maintains the subscriber set and pushes records to it.
type Distributor struct {
	mu     sync.RWMutex
	subs   map[uuid.UUID]*Subscriber
	buffer int
	closed atomic.Bool

	published atomic.Uint64
	delivered atomic.Uint64
	dropped   atomic.Uint64
}

// New creates an empty distributor.
func New(opts Options) *Distributor {
	if opts.Buffer <= 0 {
		opts.Buffer = DefaultBuffer
	}
	return &Distributor{
		subs:   make(map[uuid.UUID]*Subscriber),
		buffer: opts.Buffer,
	}
}

// Subscribe registers a subscriber with the default buffer. kind labels the
// subscriber in metrics (e.g. "websocket", "console", "kafka").
func (d *Distributor) Subscribe(kind string) (*Subscriber, error) {
	return d.SubscribeWithBuffer(kind, d.buffer)
}

// SubscribeWithBuffer registers a subscriber with its own channel capacity.
func (d *Distributor) SubscribeWithBuffer(kind string, buffer int) (*Subscriber, error) {
	if buffer <= 0 {
		buffer = d.buffer
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed.Load() {
		return nil, core.ErrDistributorClosed
	}

	sub := &Subscriber{
		id:   uuid.New(),
		kind: kind,
		ch:   make(chan core.PacketRecord, buffer),
		dist: d,
	}
	d.subs[sub.id] = sub
	metrics.Subscribers.WithLabelValues(kind).Inc()

	log.GetLogger().WithFields(map[string]interface{}{
		"subscriber": sub.id.String(),
		"kind":       kind,
		"total":      len(d.subs),
	}).Debug("subscriber joined")
	return sub, nil
}

// Unsubscribe removes sub and closes its channel. Safe to call repeatedly.
func (d *Distributor) Unsubscribe(sub *Subscriber) {
	if sub == nil {
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.subs[sub.id]; !ok {
		return
	}
	d.removeLocked(sub)

	log.GetLogger().WithFields(map[string]interface{}{
		"subscriber": sub.id.String(),
		"kind":       sub.kind,
		"dropped":    sub.dropped.Load(),
		"total":      len(d.subs),
	}).Debug("subscriber left")
}

// removeLocked deletes and closes a subscriber. Caller holds the write lock,
// so no Publish can be sending on the channel being closed.
func (d *Distributor) removeLocked(sub *Subscriber) {
	delete(d.subs, sub.id)
	close(sub.ch)
	metrics.Subscribers.WithLabelValues(sub.kind).Dec()
}

// Publish offers record to every current subscriber without blocking and
// returns the number of subscribers it was delivered to.
func (d *Distributor) Publish(record core.PacketRecord) int {
	if d.closed.Load() {
		return 0
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	d.published.Add(1)
	delivered := 0
	for _, sub := range d.subs {
		select {
		case sub.ch <- record:
			delivered++
		default:
			sub.dropped.Add(1)
			d.dropped.Add(1)
			metrics.SubscriberDropsTotal.WithLabelValues(sub.kind).Inc()
		}
	}
	d.delivered.Add(uint64(delivered))
	return delivered
}

// Len returns the number of connected subscribers.
func (d *Distributor) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.subs)
}

// Stats returns a snapshot of the distributor counters.
func (d *Distributor) Stats() Stats {
	return Stats{
		Subscribers: d.Len(),
		Published:   d.published.Load(),
		Delivered:   d.delivered.Load(),
		Dropped:     d.dropped.Load(),
	}
}

// Close disconnects every subscriber and rejects new ones. Idempotent.
func (d *Distributor) Close() error {
	if !d.closed.CompareAndSwap(false, true) {
		return nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	for _, sub := range d.subs {
		d.removeLocked(sub)
	}

	log.GetLogger().Info("distributor closed")
	return nil
}

// Subscriber is one observer attached to a Distributor.
type Subscriber struct {
	id      uuid.UUID
	kind    string
	ch      chan core.PacketRecord
	dist    *Distributor
	dropped atomic.Uint64
}

// ID returns the subscriber's unique identifier.
func (s *Subscriber) ID() uuid.UUID { return s.id }

// Kind returns the label given at subscription.
func (s *Subscriber) Kind() string { return s.kind }

// Records delivers records in publish order. It is closed when the
// subscriber leaves or the distributor shuts down.
func (s *Subscriber) Records() <-chan core.PacketRecord { return s.ch }

// Dropped returns how many records were skipped because the buffer was full.
func (s *Subscriber) Dropped() uint64 { return s.dropped.Load() }

// Close detaches the subscriber from its distributor.
func (s *Subscriber) Close() error {
	s.dist.Unsubscribe(s)
	return nil
}

// Package sink drains distributor subscriptions into local outputs.
package sink

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"firestige.xyz/netscope/internal/broadcast"
	"firestige.xyz/netscope/internal/core"
	"firestige.xyz/netscope/internal/log"
	"firestige.xyz/netscope/internal/metrics"
)

// Sink consumes records one at a time. Write and Flush are only called from
// the sink's own goroutine.
type Sink interface {
	Name() string
	Write(ctx context.Context, record core.PacketRecord) error
	// Flush pushes buffered output. Called periodically and before Close.
	Flush(ctx context.Context) error
	Close() error
}

// Options controls how a sink is attached.
type Options struct {
	Buffer        int           // Subscriber channel capacity
	FlushInterval time.Duration // Default 1s
}

type attached struct {
	sink  Sink
	sub   *broadcast.Subscriber
	flush time.Duration
}

// Manager runs each sink on its own subscription so a slow sink only loses
// its own records.
type Manager struct {
	dist   *broadcast.Distributor
	sinks  []*attached
	wg     sync.WaitGroup
	cancel context.CancelFunc
	logger log.Logger
}

// NewManager creates a manager subscribing to dist.
func NewManager(dist *broadcast.Distributor) *Manager {
	return &Manager{
		dist:   dist,
		logger: log.GetLogger().WithField("component", "sink"),
	}
}

// Add subscribes s. Must be called before Start.
func (m *Manager) Add(s Sink, opts Options) error {
	if opts.FlushInterval <= 0 {
		opts.FlushInterval = time.Second
	}
	sub, err := m.dist.SubscribeWithBuffer(s.Name(), opts.Buffer)
	if err != nil {
		return fmt.Errorf("subscribe sink %s: %w", s.Name(), err)
	}
	m.sinks = append(m.sinks, &attached{sink: s, sub: sub, flush: opts.FlushInterval})
	return nil
}

// Len returns the number of attached sinks.
func (m *Manager) Len() int {
	return len(m.sinks)
}

// Start launches one goroutine per sink.
func (m *Manager) Start(ctx context.Context) {
	ctx, m.cancel = context.WithCancel(ctx)
	for _, a := range m.sinks {
		m.wg.Add(1)
		go m.run(ctx, a)
		m.logger.WithField("sink", a.sink.Name()).Info("sink started")
	}
}

// Stop unsubscribes every sink, waits for the queued records to drain and
// closes the sinks.
func (m *Manager) Stop() error {
	for _, a := range m.sinks {
		a.sub.Close()
	}
	m.wg.Wait()
	if m.cancel != nil {
		m.cancel()
	}

	var errs []error
	for _, a := range m.sinks {
		if err := a.sink.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close sink %s: %w", a.sink.Name(), err))
		}
		m.logger.WithFields(map[string]interface{}{
			"sink":    a.sink.Name(),
			"dropped": a.sub.Dropped(),
		}).Info("sink stopped")
	}
	return errors.Join(errs...)
}

func (m *Manager) run(ctx context.Context, a *attached) {
	defer m.wg.Done()
	name := a.sink.Name()
	ticker := time.NewTicker(a.flush)
	defer ticker.Stop()

	// Drain uses a background context so queued records survive cancellation.
	drainCtx := context.WithoutCancel(ctx)

	for {
		select {
		case record, ok := <-a.sub.Records():
			if !ok {
				m.flush(drainCtx, a)
				return
			}
			if err := a.sink.Write(drainCtx, record); err != nil {
				metrics.SinkErrorsTotal.WithLabelValues(name, "write").Inc()
				m.logger.WithError(err).WithField("sink", name).Warn("sink write failed")
			}
		case <-ticker.C:
			m.flush(drainCtx, a)
		}
	}
}

func (m *Manager) flush(ctx context.Context, a *attached) {
	if err := a.sink.Flush(ctx); err != nil {
		metrics.SinkErrorsTotal.WithLabelValues(a.sink.Name(), "flush").Inc()
		m.logger.WithError(err).WithField("sink", a.sink.Name()).Warn("sink flush failed")
	}
}

package sink

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/netscope/internal/broadcast"
	"firestige.xyz/netscope/internal/core"
)

type memSink struct {
	name string

	mu      sync.Mutex
	written []int
	flushes int
	closed  bool
	failAt  int
}

func (m *memSink) Name() string { return m.name }

func (m *memSink) Write(_ context.Context, r core.PacketRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAt > 0 && r.Frame.Length == m.failAt {
		return errors.New("write failed")
	}
	m.written = append(m.written, r.Frame.Length)
	return nil
}

func (m *memSink) Flush(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.flushes++
	return nil
}

func (m *memSink) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *memSink) snapshot() ([]int, int, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int(nil), m.written...), m.flushes, m.closed
}

func rec(i int) core.PacketRecord {
	return core.PacketRecord{Frame: core.FrameMeta{Length: i}, Transport: core.NoTransport{}}
}

func TestManagerDeliversInOrder(t *testing.T) {
	dist := broadcast.New(broadcast.Options{Buffer: 64})
	defer dist.Close()

	a := &memSink{name: "a"}
	b := &memSink{name: "b", failAt: 2}
	m := NewManager(dist)
	require.NoError(t, m.Add(a, Options{Buffer: 64}))
	require.NoError(t, m.Add(b, Options{Buffer: 64, FlushInterval: time.Hour}))
	assert.Equal(t, 2, m.Len())
	assert.Equal(t, 2, dist.Len())

	m.Start(context.Background())
	for i := 1; i <= 5; i++ {
		dist.Publish(rec(i))
	}

	require.Eventually(t, func() bool {
		got, _, _ := a.snapshot()
		return len(got) == 5
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, m.Stop())
	assert.Zero(t, dist.Len())

	got, flushes, closed := a.snapshot()
	assert.Equal(t, []int{1, 2, 3, 4, 5}, got)
	assert.GreaterOrEqual(t, flushes, 1)
	assert.True(t, closed)

	// A failed write skips that record only.
	got, _, closed = b.snapshot()
	assert.True(t, closed)
	assert.NotContains(t, got, 2)
}

func TestAddAfterDistributorClosed(t *testing.T) {
	dist := broadcast.New(broadcast.Options{})
	require.NoError(t, dist.Close())

	m := NewManager(dist)
	err := m.Add(&memSink{name: "x"}, Options{})
	assert.True(t, errors.Is(err, core.ErrDistributorClosed))
	assert.NoError(t, m.Stop())
}

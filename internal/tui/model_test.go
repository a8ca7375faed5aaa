package tui

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/netscope/internal/client"
	"firestige.xyz/netscope/internal/core"
)

func key(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func packet(proto string, port int, payload string) eventMsg {
	src := 40000
	rec := core.WireRecord{
		Frame:       core.WireFrame{Length: 60, CapturedLength: 60, Timestamp: 1700000000000},
		IP:          core.WireIP{Version: 4, Src: "10.0.0.1", Dst: "10.0.0.2"},
		Transport:   core.WireTransport{SrcPort: &src, DstPort: &port},
		Application: core.WireApplication{Protocol: proto, Payload: payload},
	}
	return eventMsg(client.Event{Record: &rec})
}

func update(t *testing.T, m Model, msgs ...tea.Msg) Model {
	t.Helper()
	for _, msg := range msgs {
		next, _ := m.Update(msg)
		m = next.(Model)
	}
	return m
}

func TestRecordsAppearAfterRefresh(t *testing.T) {
	m := NewModel("ws://test/", nil, 10)
	m = update(t, m,
		eventMsg(client.Event{Status: "Connected to sniffer"}),
		packet("DNS", 53, "abcd"),
		packet("HTTP", 80, "GET /"),
		refreshMsg{},
	)

	assert.Equal(t, "Connected to sniffer", m.status)
	require.Len(t, m.visible, 2)
	sel, ok := m.Selected()
	require.True(t, ok)
	assert.Equal(t, "HTTP", sel.Application.Protocol, "newest first")
	assert.Contains(t, m.View(), "10.0.0.1:40000")
}

func TestPauseDropsRecords(t *testing.T) {
	m := NewModel("ws://test/", nil, 10)
	m = update(t, m, key("p"), packet("DNS", 53, ""), refreshMsg{})
	assert.True(t, m.paused)
	assert.Zero(t, m.history.Len())
	assert.Contains(t, m.View(), "PAUSED")

	m = update(t, m, key("p"), packet("DNS", 53, ""), refreshMsg{})
	assert.False(t, m.paused)
	assert.Equal(t, 1, m.history.Len())
}

func TestFilterAndSearch(t *testing.T) {
	m := NewModel("ws://test/", nil, 10)
	m = update(t, m,
		packet("DNS", 53, ""),
		packet("HTTP", 80, "GET /login"),
		packet("HTTP", 8080, "GET /index"),
	)

	m = update(t, m, key("f"))
	assert.Equal(t, "HTTP", m.filter.Protocol)
	assert.Len(t, m.visible, 2)

	m = update(t, m, key("/"))
	assert.True(t, m.searching)
	m = update(t, m, key("l"), key("o"), key("g"), tea.KeyMsg{Type: tea.KeyEnter})
	assert.False(t, m.searching)
	assert.Equal(t, "log", m.filter.Query)
	require.Len(t, m.visible, 1)
	assert.Equal(t, 80, *m.visible[0].Transport.DstPort)
}

func TestClearAndExport(t *testing.T) {
	dir := t.TempDir()
	m := NewModel("ws://test/", nil, 10).WithExportDir(dir)
	m = update(t, m, packet("DNS", 53, ""), packet("UDP", 9999, ""))

	m = update(t, m, key("e"))
	assert.Contains(t, m.notice, "exported 2 records")
	files, err := filepath.Glob(filepath.Join(dir, "netscope-*.json"))
	require.NoError(t, err)
	require.Len(t, files, 1)
	data, err := os.ReadFile(files[0])
	require.NoError(t, err)
	assert.Contains(t, string(data), `"protocol": "UDP"`)

	m = update(t, m, key("c"))
	assert.Zero(t, m.history.Len())
	assert.Empty(t, m.visible)
}

func TestRateAndErrors(t *testing.T) {
	m := NewModel("ws://test/", nil, 10)
	m = update(t, m, packet("DNS", 53, ""), packet("DNS", 53, ""), rateMsg{})
	assert.Equal(t, uint64(2), m.rate.Rate())

	m = update(t, m, eventMsg(client.Event{Err: errors.New("connection reset")}), closedMsg{})
	assert.True(t, m.closed)
	assert.Contains(t, m.View(), "connection reset")
}

func TestWaitForEventClosedChannel(t *testing.T) {
	ch := make(chan client.Event)
	close(ch)
	assert.Equal(t, closedMsg{}, waitForEvent(ch)())
}

func TestSummary(t *testing.T) {
	assert.Equal(t, "a b", summary("a\n  b", 10))
	assert.Equal(t, "abcd…", summary("abcdefgh", 5))
}

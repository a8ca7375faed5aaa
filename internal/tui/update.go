package tui

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"

	"firestige.xyz/netscope/internal/client"
	"firestige.xyz/netscope/internal/core"
)

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.searching {
			return m.updateSearch(msg)
		}
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "p", " ":
			m.paused = !m.paused
		case "c":
			m.history.Clear()
			m.refresh()
		case "f", "tab":
			m.filter.Protocol = client.NextProtocol(m.filter.Protocol)
			m.refresh()
		case "/":
			m.searching = true
			m.search.Focus()
			return m, nil
		case "e":
			m.export()
		}

	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		if h := msg.Height - 14; h > 3 {
			m.table.SetHeight(h)
		}

	case eventMsg:
		m.handleEvent(client.Event(msg))
		return m, waitForEvent(m.events)

	case closedMsg:
		m.closed = true
		m.status = "disconnected"
		return m, nil

	case refreshMsg:
		m.refresh()
		return m, refreshCmd()

	case rateMsg:
		m.rate.Tick()
		return m, rateCmd()
	}

	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m Model) updateSearch(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter", "esc":
		m.searching = false
		m.search.Blur()
		m.filter.Query = strings.TrimSpace(m.search.Value())
		m.refresh()
		return m, nil
	case "ctrl+c":
		return m, tea.Quit
	}
	var cmd tea.Cmd
	m.search, cmd = m.search.Update(msg)
	return m, cmd
}

func (m *Model) handleEvent(ev client.Event) {
	switch {
	case ev.Err != nil:
		m.err = ev.Err
		m.status = "error"
	case ev.Status != "":
		m.status = ev.Status
	case ev.Record != nil:
		// Paused drops incoming records instead of queueing them.
		if m.paused {
			return
		}
		m.history.Add(*ev.Record)
		m.rate.Add()
	}
}

func (m *Model) refresh() {
	m.visible = m.history.Select(m.filter)
	rows := make([]table.Row, len(m.visible))
	for i, r := range m.visible {
		rows[i] = row(r)
	}
	m.table.SetRows(rows)
	if m.table.Cursor() >= len(rows) {
		m.table.SetCursor(max(len(rows)-1, 0))
	}
}

func (m *Model) export() {
	name := fmt.Sprintf("netscope-%s.json", time.Now().Format("20060102-150405"))
	path := filepath.Join(m.exportDir, name)
	records := m.history.Select(m.filter)
	if err := client.Export(path, records); err != nil {
		m.notice = "export failed: " + err.Error()
		return
	}
	m.notice = fmt.Sprintf("exported %d records to %s", len(records), path)
}

// Selected returns the record under the cursor.
func (m Model) Selected() (core.WireRecord, bool) {
	i := m.table.Cursor()
	if i < 0 || i >= len(m.visible) {
		return core.WireRecord{}, false
	}
	return m.visible[i], true
}

func row(r core.WireRecord) table.Row {
	return table.Row{
		time.UnixMilli(r.Frame.Timestamp).Format("15:04:05.000"),
		endpoint(r.IP.Src, r.Transport.SrcPort),
		endpoint(r.IP.Dst, r.Transport.DstPort),
		r.Application.Protocol,
		strconv.Itoa(r.Frame.Length),
		summary(r.Application.Payload, 40),
	}
}

func endpoint(ip string, port *int) string {
	if port == nil {
		return ip
	}
	return ip + ":" + strconv.Itoa(*port)
}

// summary flattens payload text to a single line of at most n runes.
func summary(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-1]) + "…"
}

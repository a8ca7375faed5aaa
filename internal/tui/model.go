// Package tui renders the live record stream in the terminal.
package tui

import (
	"time"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"firestige.xyz/netscope/internal/client"
	"firestige.xyz/netscope/internal/core"
)

const (
	refreshInterval = 250 * time.Millisecond
	rateInterval    = time.Second
)

type (
	eventMsg   client.Event
	closedMsg  struct{}
	refreshMsg time.Time
	rateMsg    time.Time
)

// Model is the watch screen.
type Model struct {
	url    string
	events <-chan client.Event

	history *client.History
	rate    *client.RateMeter
	filter  client.Filter
	paused  bool
	status  string
	err     error
	notice  string
	closed  bool

	table     table.Model
	search    textinput.Model
	searching bool
	visible   []core.WireRecord
	exportDir string

	width, height int
}

// NewModel creates the watch model reading events from ch.
func NewModel(url string, ch <-chan client.Event, historySize int) Model {
	columns := []table.Column{
		{Title: "Time", Width: 12},
		{Title: "Source", Width: 21},
		{Title: "Destination", Width: 21},
		{Title: "Protocol", Width: 8},
		{Title: "Length", Width: 6},
		{Title: "Info", Width: 40},
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(15),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(true)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57")).
		Bold(false)
	t.SetStyles(s)

	search := textinput.New()
	search.Placeholder = "search ip, port, protocol, payload"
	search.Prompt = "/ "
	search.CharLimit = 128

	return Model{
		url:       url,
		events:    ch,
		history:   client.NewHistory(historySize),
		rate:      &client.RateMeter{},
		filter:    client.Filter{Protocol: client.FilterAll},
		status:    "connecting",
		table:     t,
		search:    search,
		exportDir: ".",
	}
}

// WithExportDir sets where exported JSON files are written.
func (m Model) WithExportDir(dir string) Model {
	m.exportDir = dir
	return m
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(waitForEvent(m.events), refreshCmd(), rateCmd())
}

func waitForEvent(ch <-chan client.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return closedMsg{}
		}
		return eventMsg(ev)
	}
}

func refreshCmd() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return refreshMsg(t)
	})
}

func rateCmd() tea.Cmd {
	return tea.Tick(rateInterval, func(t time.Time) tea.Msg {
		return rateMsg(t)
	})
}

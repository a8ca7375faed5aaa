package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFF7DB")).
			Border(lipgloss.RoundedBorder()).
			Padding(0, 1)

	pausedStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FF5F87"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5F87"))
	helpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))

	protocolColors = map[string]lipgloss.Color{
		"HTTP":  lipgloss.Color("39"),
		"HTTPS": lipgloss.Color("42"),
		"DNS":   lipgloss.Color("135"),
		"TCP":   lipgloss.Color("208"),
		"UDP":   lipgloss.Color("220"),
		"ICMP":  lipgloss.Color("196"),
	}
)

func (m Model) View() string {
	title := titleStyle.Render(fmt.Sprintf("netscope - %s", m.url))

	state := m.status
	if m.paused {
		state = pausedStyle.Render("PAUSED")
	}
	stats := fmt.Sprintf("%s | %d pkt/s | %d/%d shown | filter: %s",
		state, m.rate.Rate(), len(m.visible), m.history.Len(), m.filterTabs())
	if m.filter.Query != "" {
		stats += fmt.Sprintf(" | search: %q", m.filter.Query)
	}

	parts := []string{title, stats}
	if m.searching {
		parts = append(parts, m.search.View())
	}
	if m.err != nil {
		parts = append(parts, errorStyle.Render(m.err.Error()))
	}
	parts = append(parts, m.table.View())

	if r, ok := m.Selected(); ok {
		detail := fmt.Sprintf("%s  %s → %s  IPv%d  len %d/%d\n%s",
			r.Application.Protocol,
			endpoint(r.IP.Src, r.Transport.SrcPort),
			endpoint(r.IP.Dst, r.Transport.DstPort),
			r.IP.Version,
			r.Frame.CapturedLength, r.Frame.Length,
			clip(r.Application.Payload, 6))
		if r.Application.RawPayload != "" {
			detail += "\n" + clip(r.Application.RawPayload, 4)
		}
		parts = append(parts, infoStyle.Render(detail))
	}

	if m.notice != "" {
		parts = append(parts, m.notice)
	}
	parts = append(parts, helpStyle.Render("p pause • c clear • f filter • / search • e export • q quit"))

	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (m Model) filterTabs() string {
	p := m.filter.Protocol
	if color, ok := protocolColors[p]; ok {
		return lipgloss.NewStyle().Foreground(color).Bold(true).Render(p)
	}
	return p
}

// clip keeps the first n lines of s.
func clip(s string, n int) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) <= n {
		return strings.Join(lines, "\n")
	}
	return strings.Join(lines[:n], "\n") + fmt.Sprintf("\n… %d more lines", len(lines)-n)
}

package client

import (
	"strconv"
	"strings"

	"firestige.xyz/netscope/internal/core"
)

// FilterAll disables protocol filtering.
const FilterAll = "ALL"

// FilterProtocols lists the protocol filter choices in display order.
var FilterProtocols = []string{FilterAll, "HTTP", "HTTPS", "DNS", "TCP", "UDP", "ICMP"}

// Filter selects records by application protocol and free-text query.
type Filter struct {
	Protocol string // One of FilterProtocols; empty means ALL
	Query    string
}

// Match reports whether r passes the filter. The query is matched case
// insensitively against addresses, ports, protocol label and payload.
func (f Filter) Match(r core.WireRecord) bool {
	if f.Protocol != "" && f.Protocol != FilterAll && r.Application.Protocol != f.Protocol {
		return false
	}
	if f.Query == "" {
		return true
	}

	q := strings.ToLower(f.Query)
	contains := func(s string) bool { return strings.Contains(strings.ToLower(s), q) }
	port := func(p *int) bool { return p != nil && strings.Contains(strconv.Itoa(*p), q) }

	return contains(r.IP.Src) ||
		contains(r.IP.Dst) ||
		port(r.Transport.SrcPort) ||
		port(r.Transport.DstPort) ||
		contains(r.Application.Protocol) ||
		contains(r.Application.Payload)
}

// NextProtocol cycles to the filter after current.
func NextProtocol(current string) string {
	for i, p := range FilterProtocols {
		if p == current {
			return FilterProtocols[(i+1)%len(FilterProtocols)]
		}
	}
	return FilterAll
}

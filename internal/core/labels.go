// Package core defines core types.
package core

import "strings"

// Protocol is the application-layer label assigned by the port heuristic.
type Protocol string

// Protocol labels. UNKNOWN is the fallback for anything the classifier cannot place.
const (
	ProtocolHTTP    Protocol = "HTTP"
	ProtocolHTTPS   Protocol = "HTTPS"
	ProtocolDNS     Protocol = "DNS"
	ProtocolTCP     Protocol = "TCP"
	ProtocolUDP     Protocol = "UDP"
	ProtocolICMP    Protocol = "ICMP"
	ProtocolUnknown Protocol = "UNKNOWN"
)

// Protocols lists every label in display order.
var Protocols = []Protocol{
	ProtocolHTTP,
	ProtocolHTTPS,
	ProtocolDNS,
	ProtocolTCP,
	ProtocolUDP,
	ProtocolICMP,
	ProtocolUnknown,
}

func (p Protocol) String() string { return string(p) }

// ParseProtocol maps a label case-insensitively; unrecognised input yields UNKNOWN.
func ParseProtocol(s string) Protocol {
	upper := Protocol(strings.ToUpper(strings.TrimSpace(s)))
	for _, p := range Protocols {
		if p == upper {
			return p
		}
	}
	return ProtocolUnknown
}

// Package classifier assigns an application protocol label from port numbers.
package classifier

import "firestige.xyz/netscope/internal/core"

// Well-known ports recognised by the heuristic.
const (
	portHTTP  = 80
	portHTTPS = 443
	portDNS   = 53
)

// Classify returns the application label for a transport kind and its ports.
// Ports are -1 when the transport carries none. Rules are evaluated in order
// and the first match wins:
//
//	TCP/UDP with either port 80  -> HTTP
//	TCP/UDP with either port 443 -> HTTPS
//	TCP/UDP with either port 53  -> DNS
//	ICMP                         -> ICMP
//	UDP                          -> UDP
//	anything else                -> UNKNOWN
//
// TCP on ports outside the table yields UNKNOWN, not TCP.
func Classify(kind core.TransportKind, srcPort, dstPort int) core.Protocol {
	ported := kind == core.TransportTCP || kind == core.TransportUDP

	switch {
	case ported && either(srcPort, dstPort, portHTTP):
		return core.ProtocolHTTP
	case ported && either(srcPort, dstPort, portHTTPS):
		return core.ProtocolHTTPS
	case ported && either(srcPort, dstPort, portDNS):
		return core.ProtocolDNS
	case kind == core.TransportICMP:
		return core.ProtocolICMP
	case kind == core.TransportUDP:
		return core.ProtocolUDP
	default:
		return core.ProtocolUnknown
	}
}

// ClassifyTransport is Classify applied to a decoded transport variant.
func ClassifyTransport(t core.Transport) core.Protocol {
	if t == nil {
		return core.ProtocolUnknown
	}
	src, dst := core.Ports(t)
	return Classify(t.Kind(), src, dst)
}

func either(src, dst, port int) bool {
	return src == port || dst == port
}

// Package core defines core types with zero external dependencies.
package core

import (
	"net"
	"net/netip"
)

// EthernetHeader represents L2 Ethernet frame header.
type EthernetHeader struct {
	SrcMAC        [6]byte
	DstMAC        [6]byte
	EtherType     uint16 // 0x0800=IPv4, 0x86DD=IPv6, 0x8100=VLAN
	PayloadOffset int    // Offset of the L3 header in the raw frame
}

// SrcString renders the source MAC as colon-separated lowercase hex.
func (h EthernetHeader) SrcString() string { return net.HardwareAddr(h.SrcMAC[:]).String() }

// DstString renders the destination MAC as colon-separated lowercase hex.
func (h EthernetHeader) DstString() string { return net.HardwareAddr(h.DstMAC[:]).String() }

// IPHeader represents the L3 IPv4 header.
type IPHeader struct {
	Version       uint8
	SrcIP         netip.Addr // Go stdlib value type, zero allocation
	DstIP         netip.Addr
	Protocol      uint8 // TCP=6, UDP=17, ICMP=1
	TTL           uint8
	TotalLen      uint16
	HeaderLen     int // IHL * 4
	PayloadOffset int // Offset of the L4 header in the raw frame
}

// IP protocol numbers handled by the transport decoders.
const (
	IPProtocolICMP uint8 = 1
	IPProtocolTCP  uint8 = 6
	IPProtocolUDP  uint8 = 17
)

// TransportKind tags the active Transport variant.
type TransportKind uint8

const (
	TransportNone TransportKind = iota
	TransportTCP
	TransportUDP
	TransportICMP
)

func (k TransportKind) String() string {
	switch k {
	case TransportTCP:
		return "TCP"
	case TransportUDP:
		return "UDP"
	case TransportICMP:
		return "ICMP"
	default:
		return "NONE"
	}
}

// Transport is the L4 sum type. Exactly one of TCPSegment, UDPDatagram,
// ICMPMessage or NoTransport is carried by a record.
type Transport interface {
	Kind() TransportKind
	isTransport()
}

// TCPSegment holds the decoded TCP header fields.
type TCPSegment struct {
	SrcPort   uint16
	DstPort   uint16
	Seq       uint32
	Ack       uint32
	Flags     uint16 // NS (bit 8), CWR, ECE, URG, ACK, PSH, RST, SYN, FIN
	Window    uint16
	HeaderLen int // Data offset * 4, options included
}

// UDPDatagram holds the decoded UDP header fields.
type UDPDatagram struct {
	SrcPort uint16
	DstPort uint16
	Length  uint16
}

// ICMPMessage carries no fields; ICMP payload starts right after the IP header.
type ICMPMessage struct{}

// NoTransport marks an IPv4 packet whose protocol has no decoder.
type NoTransport struct{}

func (TCPSegment) Kind() TransportKind  { return TransportTCP }
func (UDPDatagram) Kind() TransportKind { return TransportUDP }
func (ICMPMessage) Kind() TransportKind { return TransportICMP }
func (NoTransport) Kind() TransportKind { return TransportNone }

func (TCPSegment) isTransport()  {}
func (UDPDatagram) isTransport() {}
func (ICMPMessage) isTransport() {}
func (NoTransport) isTransport() {}

// Ports returns source and destination ports, -1 when the variant has none.
func Ports(t Transport) (src, dst int) {
	switch v := t.(type) {
	case TCPSegment:
		return int(v.SrcPort), int(v.DstPort)
	case UDPDatagram:
		return int(v.SrcPort), int(v.DstPort)
	default:
		return -1, -1
	}
}

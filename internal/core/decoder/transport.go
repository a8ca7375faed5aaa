// Package decoder implements protocol decoding.
package decoder

import (
	"encoding/binary"
	"fmt"

	"firestige.xyz/netscope/internal/core"
)

const (
	udpHeaderLen    = 8
	tcpHeaderMinLen = 20
)

// DecodeTransport decodes the L4 header selected by the IP protocol number.
// Protocols without a decoder yield NoTransport with the payload starting at offset.
func DecodeTransport(data []byte, offset int, protocol uint8) (core.Transport, int, error) {
	switch protocol {
	case core.IPProtocolTCP:
		tcp, next, err := DecodeTCP(data, offset)
		if err != nil {
			return nil, offset, err
		}
		return tcp, next, nil
	case core.IPProtocolUDP:
		udp, next, err := DecodeUDP(data, offset)
		if err != nil {
			return nil, offset, err
		}
		return udp, next, nil
	case core.IPProtocolICMP:
		return DecodeICMP(data, offset)
	default:
		// Unsupported transport protocol (e.g., SCTP, GRE)
		return core.NoTransport{}, offset, nil
	}
}

// DecodeUDP decodes UDP header.
func DecodeUDP(data []byte, offset int) (core.UDPDatagram, int, error) {
	if offset < 0 || len(data)-offset < udpHeaderLen {
		return core.UDPDatagram{}, offset, fmt.Errorf("udp: %w", core.ErrMalformedHeader)
	}
	b := data[offset:]

	udp := core.UDPDatagram{
		SrcPort: binary.BigEndian.Uint16(b[0:2]),
		DstPort: binary.BigEndian.Uint16(b[2:4]),
		Length:  binary.BigEndian.Uint16(b[4:6]), // includes header and data
	}
	// Checksum (2 bytes at offset 6) is not verified

	return udp, offset + udpHeaderLen, nil
}

// DecodeTCP decodes TCP header, options included in the returned offset.
func DecodeTCP(data []byte, offset int) (core.TCPSegment, int, error) {
	if offset < 0 || len(data)-offset < tcpHeaderMinLen {
		return core.TCPSegment{}, offset, fmt.Errorf("tcp: %w", core.ErrMalformedHeader)
	}
	b := data[offset:]

	tcp := core.TCPSegment{
		SrcPort: binary.BigEndian.Uint16(b[0:2]),
		DstPort: binary.BigEndian.Uint16(b[2:4]),
		Seq:     binary.BigEndian.Uint32(b[4:8]),
		Ack:     binary.BigEndian.Uint32(b[8:12]),
		Window:  binary.BigEndian.Uint16(b[14:16]),
	}

	// Data Offset (upper 4 bits of byte 12) is in 32-bit words
	headerLen := int(b[12]>>4) * 4
	if headerLen < tcpHeaderMinLen || len(b) < headerLen {
		return core.TCPSegment{}, offset, fmt.Errorf("tcp: data offset %d: %w", headerLen, core.ErrMalformedHeader)
	}
	tcp.HeaderLen = headerLen

	// Byte 12 bit 0 is NS; byte 13: | CWR | ECE | URG | ACK | PSH | RST | SYN | FIN |
	tcp.Flags = uint16(b[12]&0x01)<<8 | uint16(b[13])

	return tcp, offset + headerLen, nil
}

// DecodeICMP accepts any ICMP message. The ICMP header is kept in the payload,
// so the returned offset equals the input offset.
func DecodeICMP(data []byte, offset int) (core.Transport, int, error) {
	if offset < 0 || offset > len(data) {
		return nil, offset, fmt.Errorf("icmp: %w", core.ErrMalformedHeader)
	}
	return core.ICMPMessage{}, offset, nil
}

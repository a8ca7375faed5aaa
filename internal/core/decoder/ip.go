// Package decoder implements protocol decoding.
package decoder

import (
	"encoding/binary"
	"fmt"
	"net/netip"

	"firestige.xyz/netscope/internal/core"
)

const ipv4HeaderMinLen = 20

// DecodeIPv4 decodes the IPv4 header starting at offset.
// Returns IPHeader and the offset of the L4 header (options skipped).
func DecodeIPv4(data []byte, offset int) (core.IPHeader, int, error) {
	if offset < 0 || len(data)-offset < ipv4HeaderMinLen {
		return core.IPHeader{}, offset, fmt.Errorf("ipv4: %w", core.ErrMalformedHeader)
	}
	b := data[offset:]

	version := b[0] >> 4
	if version != 4 {
		return core.IPHeader{}, offset, fmt.Errorf("ipv4: version %d: %w", version, core.ErrMalformedHeader)
	}

	// IHL (Internet Header Length) - lower 4 bits of first byte, in 32-bit words
	headerLen := int(b[0]&0x0F) * 4
	if headerLen < ipv4HeaderMinLen || len(b) < headerLen {
		return core.IPHeader{}, offset, fmt.Errorf("ipv4: header length %d: %w", headerLen, core.ErrMalformedHeader)
	}

	ip := core.IPHeader{
		Version:   4,
		HeaderLen: headerLen,
	}

	// Total Length (2 bytes at offset 2)
	ip.TotalLen = binary.BigEndian.Uint16(b[2:4])

	// TTL (1 byte at offset 8)
	ip.TTL = b[8]

	// Protocol (1 byte at offset 9)
	ip.Protocol = b[9]

	// Source IP (4 bytes at offset 12)
	ip.SrcIP = netip.AddrFrom4([4]byte(b[12:16]))

	// Destination IP (4 bytes at offset 16)
	ip.DstIP = netip.AddrFrom4([4]byte(b[16:20]))

	next := offset + headerLen
	ip.PayloadOffset = next
	return ip, next, nil
}

// Package decoder implements protocol decoding.
package decoder

import (
	"encoding/binary"
	"fmt"

	"firestige.xyz/netscope/internal/core"
)

const (
	// Ethernet constants
	ethernetHeaderLen = 14

	// EtherType values
	etherTypeIPv4 = 0x0800
)

// DecodeEthernet decodes the Ethernet II header starting at offset.
// Returns EthernetHeader and the offset of the L3 header.
func DecodeEthernet(data []byte, offset int) (core.EthernetHeader, int, error) {
	if offset < 0 || len(data)-offset < ethernetHeaderLen {
		return core.EthernetHeader{}, offset, fmt.Errorf("ethernet: %w", core.ErrMalformedHeader)
	}
	b := data[offset:]

	eth := core.EthernetHeader{}

	// Destination MAC (6 bytes)
	copy(eth.DstMAC[:], b[0:6])

	// Source MAC (6 bytes)
	copy(eth.SrcMAC[:], b[6:12])

	// EtherType (2 bytes)
	eth.EtherType = binary.BigEndian.Uint16(b[12:14])

	next := offset + ethernetHeaderLen
	eth.PayloadOffset = next
	return eth, next, nil
}

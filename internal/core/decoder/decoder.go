// Package decoder implements the L2-L4 header decoder chain.
package decoder

import (
	"fmt"

	"firestige.xyz/netscope/internal/core"
)

// Decoded is the output of the decoder chain for one frame.
type Decoded struct {
	Ethernet      core.EthernetHeader
	IP            core.IPHeader
	Transport     core.Transport
	PayloadOffset int // Start of the application payload in the raw frame
}

// Decoder decodes raw frames into structured headers.
type Decoder interface {
	Decode(frame core.RawFrame) (Decoded, error)
}

// StandardDecoder runs Ethernet → IPv4 → TCP|UDP|ICMP|none.
type StandardDecoder struct{}

// NewStandardDecoder creates a stateless decoder chain.
func NewStandardDecoder() *StandardDecoder {
	return &StandardDecoder{}
}

// Decode runs the chain. Any error means the frame must be dropped.
func (d *StandardDecoder) Decode(frame core.RawFrame) (Decoded, error) {
	if frame.LinkType != core.LinkTypeEthernet {
		return Decoded{}, fmt.Errorf("link type %d: %w", frame.LinkType, core.ErrUnsupportedLinkType)
	}

	data := frame.Data
	if frame.CaptureLen > 0 && frame.CaptureLen < len(data) {
		data = data[:frame.CaptureLen]
	}

	eth, offset, err := DecodeEthernet(data, 0)
	if err != nil {
		return Decoded{}, err
	}
	if eth.EtherType != etherTypeIPv4 {
		return Decoded{}, fmt.Errorf("ethertype 0x%04x: %w", eth.EtherType, core.ErrUnsupportedEtherType)
	}

	ip, offset, err := DecodeIPv4(data, offset)
	if err != nil {
		return Decoded{}, err
	}

	transport, offset, err := DecodeTransport(data, offset, ip.Protocol)
	if err != nil {
		return Decoded{}, err
	}

	return Decoded{
		Ethernet:      eth,
		IP:            ip,
		Transport:     transport,
		PayloadOffset: offset,
	}, nil
}

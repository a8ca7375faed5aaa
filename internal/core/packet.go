// Package core defines core data structures with zero external dependencies.
package core

import (
	"bytes"
	"encoding/json"
	"time"
)

// LinkType mirrors the DLT values reported by capture handles.
type LinkType int

// LinkTypeEthernet is DLT_EN10MB, the only link type the decoder accepts.
const LinkTypeEthernet LinkType = 1

// RawFrame is one captured link-layer frame. Data aliases the source's read
// buffer and is only valid for the duration of a single handler call.
type RawFrame struct {
	Data       []byte
	Timestamp  time.Time
	CaptureLen int // Bytes actually captured
	OrigLen    int // Length on the wire
	LinkType   LinkType
}

// FrameMeta describes the captured frame a record was built from.
type FrameMeta struct {
	Length         int
	CapturedLength int
	Timestamp      time.Time
}

// ApplicationInfo is the L7 view of a record.
type ApplicationInfo struct {
	Protocol   Protocol
	Payload    string // Decoded rendering of the payload
	RawPayload string // Hex dump of the payload bytes
}

// PacketRecord is the assembled, immutable result for one frame. It holds no
// references into the capture buffer.
type PacketRecord struct {
	Frame       FrameMeta
	Ethernet    EthernetHeader
	IP          IPHeader
	Transport   Transport
	Application ApplicationInfo
}

// MarshalJSON renders the record in the subscriber wire shape. Payload text
// is written verbatim, without HTML escaping.
func (r PacketRecord) MarshalJSON() ([]byte, error) {
	return marshalVerbatim(r.Wire())
}

func marshalVerbatim(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// Wire converts the record to its serialisable form.
func (r PacketRecord) Wire() WireRecord {
	w := WireRecord{
		Frame: WireFrame{
			Length:         r.Frame.Length,
			CapturedLength: r.Frame.CapturedLength,
			Timestamp:      r.Frame.Timestamp.UnixMilli(),
		},
		Ethernet: WireEthernet{
			Src:  r.Ethernet.SrcString(),
			Dst:  r.Ethernet.DstString(),
			Type: "IPv4",
		},
		IP: WireIP{
			Version:  int(r.IP.Version),
			Src:      r.IP.SrcIP.String(),
			Dst:      r.IP.DstIP.String(),
			Protocol: ProtocolField(r.IP.Protocol),
		},
		Application: WireApplication{
			Protocol:   string(r.Application.Protocol),
			Payload:    r.Application.Payload,
			RawPayload: r.Application.RawPayload,
		},
	}

	switch t := r.Transport.(type) {
	case TCPSegment:
		src, dst := int(t.SrcPort), int(t.DstPort)
		seq, ack := t.Seq, t.Ack
		flags, window := t.Flags, t.Window
		w.Transport = WireTransport{
			Protocol: "TCP",
			SrcPort:  &src,
			DstPort:  &dst,
			Seq:      &seq,
			Ack:      &ack,
			Flags:    &flags,
			Window:   &window,
		}
	case UDPDatagram:
		src, dst := int(t.SrcPort), int(t.DstPort)
		w.Transport = WireTransport{Protocol: "UDP", SrcPort: &src, DstPort: &dst}
	case ICMPMessage:
		w.Transport = WireTransport{Protocol: "ICMP"}
	case NoTransport, nil:
		// empty object on the wire
	}
	return w
}

// ProtocolField yields "TCP" / "UDP" for 6 / 17 and the bare number otherwise.
func ProtocolField(proto uint8) any {
	switch proto {
	case IPProtocolTCP:
		return "TCP"
	case IPProtocolUDP:
		return "UDP"
	default:
		return int(proto)
	}
}

// WireRecord is the JSON shape of a PacketRecord sent to subscribers.
type WireRecord struct {
	Frame       WireFrame       `json:"frame"`
	Ethernet    WireEthernet    `json:"ethernet"`
	IP          WireIP          `json:"ip"`
	Transport   WireTransport   `json:"transport"`
	Application WireApplication `json:"application"`
}

type WireFrame struct {
	Length         int   `json:"length"`
	CapturedLength int   `json:"capturedLength"`
	Timestamp      int64 `json:"timestamp"` // Unix milliseconds
}

type WireEthernet struct {
	Src  string `json:"src"`
	Dst  string `json:"dst"`
	Type string `json:"type"`
}

type WireIP struct {
	Version  int    `json:"version"`
	Src      string `json:"src"`
	Dst      string `json:"dst"`
	Protocol any    `json:"protocol"` // string for TCP/UDP, number otherwise
}

type WireTransport struct {
	Protocol string  `json:"protocol,omitempty"`
	SrcPort  *int    `json:"srcPort,omitempty"`
	DstPort  *int    `json:"dstPort,omitempty"`
	Seq      *uint32 `json:"seq,omitempty"`
	Ack      *uint32 `json:"ack,omitempty"`
	Flags    *uint16 `json:"flags,omitempty"`
	Window   *uint16 `json:"window,omitempty"`
}

type WireApplication struct {
	Protocol   string `json:"protocol"`
	Payload    string `json:"payload"`
	RawPayload string `json:"rawPayload"`
}

// Message types of the subscriber wire contract.
const (
	MessageTypeStatus = "status"
	MessageTypePacket = "packet"
)

// Message is one frame of the subscriber wire contract.
type Message struct {
	Type    string          `json:"type"`
	Message string          `json:"message,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// StatusMessage builds the greeting sent on connect.
func StatusMessage(text string) Message {
	return Message{Type: MessageTypeStatus, Message: text}
}

// PacketMessage wraps an encoded record.
func PacketMessage(r PacketRecord) (Message, error) {
	data, err := marshalVerbatim(r.Wire())
	if err != nil {
		return Message{}, err
	}
	return Message{Type: MessageTypePacket, Data: data}, nil
}

package core

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/netip"
	"strings"
	"testing"
	"time"
)

// Test zero values of core structs
func TestStructZeroValues(t *testing.T) {
	t.Run("EthernetHeader", func(t *testing.T) {
		var eth EthernetHeader
		if eth.EtherType != 0 {
			t.Errorf("expected EtherType=0, got %d", eth.EtherType)
		}
		if eth.PayloadOffset != 0 {
			t.Errorf("expected PayloadOffset=0, got %d", eth.PayloadOffset)
		}
	})

	t.Run("IPHeader", func(t *testing.T) {
		var ip IPHeader
		if ip.SrcIP.IsValid() {
			t.Errorf("expected invalid SrcIP, got %v", ip.SrcIP)
		}
		if ip.DstIP.IsValid() {
			t.Errorf("expected invalid DstIP, got %v", ip.DstIP)
		}
	})

	t.Run("RawFrame", func(t *testing.T) {
		var raw RawFrame
		if raw.Data != nil {
			t.Errorf("expected Data=nil, got %v", raw.Data)
		}
		if !raw.Timestamp.IsZero() {
			t.Errorf("expected zero Timestamp, got %v", raw.Timestamp)
		}
	})
}

func TestTransportVariants(t *testing.T) {
	tests := []struct {
		transport Transport
		kind      TransportKind
		src, dst  int
	}{
		{TCPSegment{SrcPort: 1234, DstPort: 80}, TransportTCP, 1234, 80},
		{UDPDatagram{SrcPort: 5353, DstPort: 53}, TransportUDP, 5353, 53},
		{ICMPMessage{}, TransportICMP, -1, -1},
		{NoTransport{}, TransportNone, -1, -1},
	}

	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			if tt.transport.Kind() != tt.kind {
				t.Errorf("expected kind %v, got %v", tt.kind, tt.transport.Kind())
			}
			src, dst := Ports(tt.transport)
			if src != tt.src || dst != tt.dst {
				t.Errorf("expected ports %d/%d, got %d/%d", tt.src, tt.dst, src, dst)
			}
		})
	}
}

func TestParseProtocol(t *testing.T) {
	tests := map[string]Protocol{
		"http":   ProtocolHTTP,
		" DNS ":  ProtocolDNS,
		"Https":  ProtocolHTTPS,
		"icmp":   ProtocolICMP,
		"gopher": ProtocolUnknown,
		"":       ProtocolUnknown,
	}
	for in, want := range tests {
		if got := ParseProtocol(in); got != want {
			t.Errorf("ParseProtocol(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestProtocolField(t *testing.T) {
	if got := ProtocolField(6); got != "TCP" {
		t.Errorf("expected TCP, got %v", got)
	}
	if got := ProtocolField(17); got != "UDP" {
		t.Errorf("expected UDP, got %v", got)
	}
	if got := ProtocolField(1); got != 1 {
		t.Errorf("expected numeric 1, got %v", got)
	}
}

// Test sentinel errors
func TestSentinelErrors(t *testing.T) {
	t.Run("ErrorWrapping", func(t *testing.T) {
		wrapped := fmt.Errorf("tcp: %w", ErrMalformedHeader)
		if !errors.Is(wrapped, ErrMalformedHeader) {
			t.Error("errors.Is failed for wrapped error")
		}
		if errors.Is(wrapped, ErrUnsupportedEtherType) {
			t.Error("wrapped malformed header must not match unsupported ethertype")
		}
	})

	t.Run("ErrorMessages", func(t *testing.T) {
		tests := []struct {
			err     error
			message string
		}{
			{ErrDeviceUnavailable, "netscope: capture device unavailable"},
			{ErrMalformedHeader, "netscope: malformed header"},
			{ErrUnsupportedLinkType, "netscope: unsupported link type"},
			{ErrUnsupportedEtherType, "netscope: unsupported ethertype"},
		}

		for _, tt := range tests {
			if tt.err.Error() != tt.message {
				t.Errorf("expected error message %q, got %q", tt.message, tt.err.Error())
			}
		}
	})
}

func TestPacketRecordWireShape(t *testing.T) {
	ts := time.UnixMilli(1700000000123)
	rec := PacketRecord{
		Frame: FrameMeta{Length: 74, CapturedLength: 74, Timestamp: ts},
		Ethernet: EthernetHeader{
			SrcMAC:    [6]byte{0xaa, 0xbb, 0xcc, 0xdd, 0xee, 0xff},
			DstMAC:    [6]byte{0x00, 0x11, 0x22, 0x33, 0x44, 0x55},
			EtherType: 0x0800,
		},
		IP: IPHeader{
			Version:  4,
			SrcIP:    netip.MustParseAddr("10.0.0.1"),
			DstIP:    netip.MustParseAddr("10.0.0.2"),
			Protocol: 6,
		},
		Transport: TCPSegment{SrcPort: 49152, DstPort: 80, Seq: 1, Ack: 2, Flags: 0x18, Window: 512},
		Application: ApplicationInfo{
			Protocol:   ProtocolHTTP,
			Payload:    "{}",
			RawPayload: "0000: 7b 7d\n",
		},
	}

	data, err := json.Marshal(rec)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var decoded map[string]map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	if decoded["frame"]["timestamp"] != float64(1700000000123) {
		t.Errorf("unexpected timestamp %v", decoded["frame"]["timestamp"])
	}
	if decoded["ethernet"]["src"] != "aa:bb:cc:dd:ee:ff" {
		t.Errorf("unexpected ethernet.src %v", decoded["ethernet"]["src"])
	}
	if decoded["ethernet"]["type"] != "IPv4" {
		t.Errorf("unexpected ethernet.type %v", decoded["ethernet"]["type"])
	}
	if decoded["ip"]["protocol"] != "TCP" {
		t.Errorf("unexpected ip.protocol %v", decoded["ip"]["protocol"])
	}
	if decoded["transport"]["dstPort"] != float64(80) {
		t.Errorf("unexpected transport.dstPort %v", decoded["transport"]["dstPort"])
	}
	if decoded["transport"]["window"] != float64(512) {
		t.Errorf("unexpected transport.window %v", decoded["transport"]["window"])
	}
	if decoded["application"]["rawPayload"] != "0000: 7b 7d\n" {
		t.Errorf("unexpected application.rawPayload %v", decoded["application"]["rawPayload"])
	}
}

func TestPacketRecordJSONKeepsMarkup(t *testing.T) {
	rec := PacketRecord{
		IP:          IPHeader{Version: 4, Protocol: 6},
		Transport:   TCPSegment{SrcPort: 80, DstPort: 50000, Flags: 0x1C2},
		Application: ApplicationInfo{Protocol: ProtocolHTTP, Payload: "<b>&</b>"},
	}

	data, err := rec.MarshalJSON()
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if !strings.Contains(string(data), `"payload":"<b>&</b>"`) {
		t.Errorf("payload escaped: %s", data)
	}
	if !strings.Contains(string(data), `"flags":450`) {
		t.Errorf("flags not carried in full: %s", data)
	}
	if strings.HasSuffix(string(data), "\n") {
		t.Errorf("trailing newline in %q", data)
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(rec); err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	if !strings.Contains(buf.String(), `"payload":"<b>&</b>"`) {
		t.Errorf("encoder output escaped: %s", buf.String())
	}

	msg, err := PacketMessage(rec)
	if err != nil {
		t.Fatalf("packet message failed: %v", err)
	}
	if !strings.Contains(string(msg.Data), `"payload":"<b>&</b>"`) {
		t.Errorf("packet message data escaped: %s", msg.Data)
	}
}

func TestWireTransportOmitsAbsentFields(t *testing.T) {
	rec := PacketRecord{Transport: ICMPMessage{}, IP: IPHeader{Protocol: 1}}
	w := rec.Wire()
	data, err := json.Marshal(w.Transport)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `{"protocol":"ICMP"}` {
		t.Errorf("unexpected ICMP transport %s", data)
	}
	if w.IP.Protocol != 1 {
		t.Errorf("expected numeric ip.protocol, got %v", w.IP.Protocol)
	}

	rec.Transport = NoTransport{}
	data, _ = json.Marshal(rec.Wire().Transport)
	if string(data) != `{}` {
		t.Errorf("expected empty transport object, got %s", data)
	}
}

func TestStatusMessage(t *testing.T) {
	data, err := json.Marshal(StatusMessage("Connected to sniffer"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `{"type":"status","message":"Connected to sniffer"}` {
		t.Errorf("unexpected status message %s", data)
	}
}

package client

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"net/netip"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/netscope/internal/broadcast"
	"firestige.xyz/netscope/internal/core"
	"firestige.xyz/netscope/internal/server"
)

func wire(proto, src string, dstPort int, payload string) core.WireRecord {
	sp := 40000
	return core.WireRecord{
		IP:          core.WireIP{Version: 4, Src: src, Dst: "10.0.0.2", Protocol: "UDP"},
		Transport:   core.WireTransport{Protocol: "UDP", SrcPort: &sp, DstPort: &dstPort},
		Application: core.WireApplication{Protocol: proto, Payload: payload},
	}
}

func TestHistoryEvictsOldest(t *testing.T) {
	h := NewHistory(3)
	for i := 1; i <= 5; i++ {
		h.Add(wire("DNS", "10.0.0.1", i, ""))
	}
	assert.Equal(t, 3, h.Len())

	got := h.Select(Filter{})
	require.Len(t, got, 3)
	// Newest first.
	assert.Equal(t, 5, *got[0].Transport.DstPort)
	assert.Equal(t, 3, *got[2].Transport.DstPort)

	h.Clear()
	assert.Zero(t, h.Len())
	assert.Empty(t, h.Select(Filter{}))
	assert.Equal(t, DefaultHistorySize, NewHistory(0).Cap())
}

func TestFilterMatch(t *testing.T) {
	dns := wire("DNS", "192.168.1.5", 53, "abcd")
	http := wire("HTTP", "10.1.1.1", 8080, `{"headers":["GET /Index HTTP/1.1"]}`)
	icmp := core.WireRecord{
		IP:          core.WireIP{Src: "10.9.9.9", Dst: "10.0.0.2"},
		Application: core.WireApplication{Protocol: "ICMP"},
	}

	tests := []struct {
		name   string
		filter Filter
		rec    core.WireRecord
		want   bool
	}{
		{"all", Filter{Protocol: FilterAll}, dns, true},
		{"protocol hit", Filter{Protocol: "DNS"}, dns, true},
		{"protocol miss", Filter{Protocol: "HTTP"}, dns, false},
		{"query src ip", Filter{Query: "192.168"}, dns, true},
		{"query port", Filter{Query: "808"}, http, true},
		{"query payload case-insensitive", Filter{Query: "index"}, http, true},
		{"query protocol", Filter{Query: "dn"}, dns, true},
		{"query miss", Filter{Query: "zzz"}, dns, false},
		{"no ports", Filter{Query: "53"}, icmp, false},
		{"protocol and query", Filter{Protocol: "HTTP", Query: "192"}, http, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.filter.Match(tt.rec))
		})
	}
}

func TestNextProtocol(t *testing.T) {
	assert.Equal(t, "HTTP", NextProtocol(FilterAll))
	assert.Equal(t, FilterAll, NextProtocol("ICMP"))
	assert.Equal(t, FilterAll, NextProtocol("bogus"))
}

func TestRateMeter(t *testing.T) {
	var m RateMeter
	m.Add()
	m.Add()
	assert.Equal(t, uint64(2), m.Tick())
	assert.Equal(t, uint64(2), m.Rate())
	assert.Zero(t, m.Tick())
}

func TestExport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.json")
	require.NoError(t, Export(path, []core.WireRecord{wire("DNS", "10.0.0.1", 53, "<x>")}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"payload": "<x>"`)
	var decoded []map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Len(t, decoded, 1)
	assert.Equal(t, "DNS", decoded[0]["application"].(map[string]any)["protocol"])

	require.NoError(t, Export(path, nil))
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "[]\n", string(data))
}

func TestStreamFromServer(t *testing.T) {
	dist := broadcast.New(broadcast.Options{})
	srv := server.New(server.Config{}, dist)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()
	defer dist.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	conn, err := Dial(ctx, "ws"+strings.TrimPrefix(ts.URL, "http")+"/")
	require.NoError(t, err)

	events := make(chan Event, 8)
	go Stream(ctx, conn, events)

	ev := <-events
	assert.Equal(t, "Connected to sniffer", ev.Status)

	require.Eventually(t, func() bool { return dist.Len() == 1 }, 2*time.Second, 10*time.Millisecond)
	dist.Publish(core.PacketRecord{
		Frame:       core.FrameMeta{Length: 60, CapturedLength: 60, Timestamp: time.UnixMilli(42)},
		IP:          core.IPHeader{Version: 4, SrcIP: netip.MustParseAddr("10.0.0.1"), DstIP: netip.MustParseAddr("10.0.0.2"), Protocol: core.IPProtocolUDP},
		Transport:   core.UDPDatagram{SrcPort: 1234, DstPort: 53},
		Application: core.ApplicationInfo{Protocol: core.ProtocolDNS},
	})

	select {
	case ev = <-events:
	case <-time.After(5 * time.Second):
		t.Fatal("no packet event")
	}
	require.NotNil(t, ev.Record)
	assert.Equal(t, "DNS", ev.Record.Application.Protocol)
	assert.Equal(t, int64(42), ev.Record.Frame.Timestamp)
	assert.Equal(t, 53, *ev.Record.Transport.DstPort)

	cancel()
	for range events {
	}
}

func TestDialFailure(t *testing.T) {
	_, err := Dial(context.Background(), "ws://127.0.0.1:1/")
	assert.Error(t, err)
}

package console

import (
	"bytes"
	"context"
	"encoding/json"
	"net/netip"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/netscope/internal/config"
	"firestige.xyz/netscope/internal/core"
)

func record() core.PacketRecord {
	return core.PacketRecord{
		Frame: core.FrameMeta{Length: 74, CapturedLength: 74, Timestamp: time.Date(2024, 1, 2, 3, 4, 5, 6_000_000, time.Local)},
		IP: core.IPHeader{
			Version:  4,
			SrcIP:    netip.MustParseAddr("10.0.0.1"),
			DstIP:    netip.MustParseAddr("10.0.0.2"),
			Protocol: core.IPProtocolTCP,
		},
		Transport:   core.TCPSegment{SrcPort: 51000, DstPort: 80},
		Application: core.ApplicationInfo{Protocol: core.ProtocolHTTP, Payload: "<b>"},
	}
}

func TestTextFormat(t *testing.T) {
	var buf bytes.Buffer
	s, err := New(config.ConsoleSinkConfig{}, &buf)
	require.NoError(t, err)

	require.NoError(t, s.Write(context.Background(), record()))
	assert.Empty(t, buf.String(), "output is buffered until flush")
	require.NoError(t, s.Flush(context.Background()))

	assert.Equal(t, "[03:04:05.006] HTTP    10.0.0.1:51000 → 10.0.0.2:80 len=74\n", buf.String())
	assert.Equal(t, uint64(1), s.Reported())
}

func TestTextFormatWithoutPorts(t *testing.T) {
	r := record()
	r.Transport = core.ICMPMessage{}
	r.Application.Protocol = core.ProtocolICMP
	assert.True(t, strings.Contains(FormatText(r), "10.0.0.1 → 10.0.0.2"))
}

func TestJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	s, err := New(config.ConsoleSinkConfig{Format: "json"}, &buf)
	require.NoError(t, err)

	require.NoError(t, s.Write(context.Background(), record()))
	require.NoError(t, s.Close())

	assert.Contains(t, buf.String(), `"payload":"<b>"`)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "HTTP", decoded["application"].(map[string]any)["protocol"])
}

func TestInvalidFormat(t *testing.T) {
	_, err := New(config.ConsoleSinkConfig{Format: "xml"}, nil)
	assert.Error(t, err)
}

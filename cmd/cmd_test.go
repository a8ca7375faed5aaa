package cmd

import (
	"bytes"
	"net/netip"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/netscope/internal/capture"
)

func TestParseHex(t *testing.T) {
	data, err := parseHex("0x12 34:01\n00")
	require.NoError(t, err)
	assert.Equal(t, []byte{0x12, 0x34, 0x01, 0x00}, data)

	_, err = parseHex("zz")
	assert.Error(t, err)
}

func TestRunDecode(t *testing.T) {
	var buf bytes.Buffer
	runDecode(&buf, "dns", []byte{0x12, 0x34}, false)
	assert.Equal(t, "1234\n", buf.String())

	buf.Reset()
	runDecode(&buf, "HTTP", []byte("GET / HTTP/1.1\r\n\r\n"), true)
	assert.Contains(t, buf.String(), `"GET / HTTP/1.1"`)
	assert.Contains(t, buf.String(), "0000: 47 45 54")
}

func TestRunValidate(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "netscope.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
netscope:
  server:
    listen: ":4000"
  sinks:
    console:
      enabled: true
      format: json
`), 0644))

	var buf bytes.Buffer
	require.NoError(t, runValidate(&buf, path, true))
	assert.Contains(t, buf.String(), "VALID: capture=pcap listen=:4000 console=true")
	assert.Contains(t, buf.String(), "netscope:")

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("netscope:\n  log:\n    level: loud\n"), 0644))
	assert.Error(t, runValidate(&buf, bad, false))
}

func TestServeConfigOverrides(t *testing.T) {
	require.NoError(t, serveCmd.Flags().Set("file", "trace.pcap"))
	require.NoError(t, serveCmd.Flags().Set("listen", "127.0.0.1:9000"))
	require.NoError(t, serveCmd.Flags().Set("console", "json"))
	t.Cleanup(func() {
		serveCmd.Flags().VisitAll(func(f *pflag.Flag) { f.Changed = false })
	})

	cfg, err := serveConfig(serveCmd)
	require.NoError(t, err)
	assert.Equal(t, "file", cfg.Capture.Type)
	assert.Equal(t, "trace.pcap", cfg.Capture.File)
	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Listen)
	assert.True(t, cfg.Sinks.Console.Enabled)
	assert.Equal(t, "json", cfg.Sinks.Console.Format)
}

func TestPrintDevices(t *testing.T) {
	var buf bytes.Buffer
	printDevices(&buf, nil)
	assert.Equal(t, "No capture interfaces found\n", buf.String())

	buf.Reset()
	printDevices(&buf, []capture.Device{
		{Name: "lo", Up: true, Loopback: true, Addresses: []netip.Addr{netip.MustParseAddr("127.0.0.1")}},
		{Name: "eth0", Up: true, Addresses: []netip.Addr{netip.MustParseAddr("192.168.1.10")}},
	})
	out := buf.String()
	assert.Contains(t, out, "[loopback]")
	assert.Contains(t, out, "* 2. eth0")
}

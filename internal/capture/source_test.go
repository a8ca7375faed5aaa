package capture

import (
	"context"
	"errors"
	"net/netip"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/bpf"

	"firestige.xyz/netscope/internal/config"
	"firestige.xyz/netscope/internal/core"
)

func TestParseType(t *testing.T) {
	tests := []struct {
		in      string
		want    Type
		wantErr bool
	}{
		{"", TypePCAP, false},
		{"pcap", TypePCAP, false},
		{"AFPACKET", TypeAFPacket, false},
		{" file ", TypeFile, false},
		{"dpdk", "", true},
	}
	for _, tt := range tests {
		got, err := ParseType(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}

	var typ Type
	require.NoError(t, typ.UnmarshalText([]byte("file")))
	assert.Equal(t, TypeFile, typ)
}

func TestOptionsFromConfig(t *testing.T) {
	opts, err := OptionsFromConfig(config.CaptureConfig{
		Type:         "afpacket",
		Device:       "eth0",
		SnapLen:      65536,
		BufferSizeMB: 4,
		Promiscuous:  true,
		TimeoutMS:    250,
	})
	require.NoError(t, err)
	assert.Equal(t, TypeAFPacket, opts.Type)
	assert.Equal(t, 4*1024*1024, opts.BufferSize)
	assert.Equal(t, 250*time.Millisecond, opts.Timeout)

	_, err = OptionsFromConfig(config.CaptureConfig{Type: "bogus"})
	assert.Error(t, err)
}

func TestResolveDevice(t *testing.T) {
	devs := []Device{
		{Name: "lo", Up: true, Loopback: true, Addresses: []netip.Addr{netip.MustParseAddr("127.0.0.1")}},
		{Name: "eth1", Up: false},
		{Name: "eth0", Up: true, Addresses: []netip.Addr{netip.MustParseAddr("192.168.1.10")}},
	}

	d, err := ResolveDevice("", devs)
	require.NoError(t, err)
	assert.Equal(t, "eth0", d.Name)

	d, err = ResolveDevice("lo", devs)
	require.NoError(t, err)
	assert.Equal(t, "lo", d.Name)

	d, err = ResolveDevice("192.168.1.10", devs)
	require.NoError(t, err)
	assert.Equal(t, "eth0", d.Name)

	_, err = ResolveDevice("10.0.0.1", devs)
	assert.True(t, errors.Is(err, core.ErrDeviceUnavailable))

	_, err = ResolveDevice("", devs[:2])
	assert.True(t, errors.Is(err, core.ErrDeviceUnavailable))
}

func TestIPv4Filter(t *testing.T) {
	prog, err := ipv4Filter(128)
	require.NoError(t, err)

	insns := make([]bpf.Instruction, len(prog))
	for i, raw := range prog {
		insns[i] = raw.Disassemble()
	}
	vm, err := bpf.NewVM(insns)
	require.NoError(t, err)

	frame := func(etherType uint16) []byte {
		b := make([]byte, 60)
		b[12] = byte(etherType >> 8)
		b[13] = byte(etherType)
		return b
	}

	n, err := vm.Run(frame(0x0800))
	require.NoError(t, err)
	assert.Equal(t, 60, n)

	n, err = vm.Run(frame(0x0806))
	require.NoError(t, err)
	assert.Zero(t, n)
}

func writePcap(t *testing.T, frames ...[]byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.pcap")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	w := pcapgo.NewWriter(f)
	require.NoError(t, w.WriteFileHeader(65536, layers.LinkTypeEthernet))
	base := time.Unix(1700000000, 0)
	for i, data := range frames {
		ci := gopacket.CaptureInfo{
			Timestamp:     base.Add(time.Duration(i) * time.Millisecond),
			CaptureLength: len(data),
			Length:        len(data),
		}
		require.NoError(t, w.WritePacket(ci, data))
	}
	return path
}

func TestFileSource(t *testing.T) {
	path := writePcap(t, []byte{1, 2, 3, 4}, []byte{5, 6, 7})

	src, err := Open(context.Background(), Options{Type: TypeFile, File: path})
	require.NoError(t, err)
	assert.Equal(t, "file:"+path, src.Name())
	assert.Equal(t, core.LinkTypeEthernet, src.LinkType())

	var got [][]byte
	var stamps []time.Time
	err = src.Run(context.Background(), func(f core.RawFrame) {
		got = append(got, append([]byte(nil), f.Data...))
		stamps = append(stamps, f.Timestamp)
		assert.Equal(t, len(f.Data), f.CaptureLen)
		assert.Equal(t, core.LinkTypeEthernet, f.LinkType)
	})
	require.NoError(t, err)

	assert.Equal(t, [][]byte{{1, 2, 3, 4}, {5, 6, 7}}, got)
	require.Len(t, stamps, 2)
	assert.Equal(t, time.Millisecond, stamps[1].Sub(stamps[0]))

	st, err := src.Stats()
	require.NoError(t, err)
	assert.Equal(t, uint64(2), st.Received)

	require.NoError(t, src.Close())
	require.NoError(t, src.Close())
	assert.True(t, errors.Is(src.Run(context.Background(), func(core.RawFrame) {}), core.ErrSourceClosed))
}

func TestFileSourceStopsOnCancel(t *testing.T) {
	path := writePcap(t, []byte{1}, []byte{2}, []byte{3})
	src, err := OpenFile(path)
	require.NoError(t, err)
	defer src.Close()

	ctx, cancel := context.WithCancel(context.Background())
	count := 0
	err = src.Run(ctx, func(core.RawFrame) {
		count++
		cancel()
	})
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestOpenFileErrors(t *testing.T) {
	_, err := Open(context.Background(), Options{Type: TypeFile})
	assert.True(t, errors.Is(err, core.ErrConfigInvalid))

	_, err = OpenFile(filepath.Join(t.TempDir(), "missing.pcap"))
	assert.Error(t, err)

	junk := filepath.Join(t.TempDir(), "junk.pcap")
	require.NoError(t, os.WriteFile(junk, []byte("not a pcap"), 0o644))
	_, err = OpenFile(junk)
	assert.Error(t, err)
}

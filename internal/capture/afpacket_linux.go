//go:build linux

package capture

import (
	"context"
	"fmt"
	"time"

	"github.com/google/gopacket/afpacket"

	"firestige.xyz/netscope/internal/core"
	"firestige.xyz/netscope/internal/log"
)

const (
	afpacketBlockSize   = 1 << 20
	afpacketPollTimeout = 100 * time.Millisecond
)

type afpacketSource struct {
	*base
	handle *afpacket.TPacket
}

func openAFPacket(_ context.Context, opts Options) (Source, error) {
	devs, err := SystemDevices()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrDeviceUnavailable, err)
	}
	dev, err := ResolveDevice(opts.Device, devs)
	if err != nil {
		return nil, err
	}

	frameSize := frameSizeFor(opts.SnapLen)
	numBlocks := opts.BufferSize / afpacketBlockSize
	if numBlocks < 1 {
		numBlocks = 1
	}

	handle, err := afpacket.NewTPacket(
		afpacket.OptInterface(dev.Name),
		afpacket.OptFrameSize(frameSize),
		afpacket.OptBlockSize(afpacketBlockSize),
		afpacket.OptNumBlocks(numBlocks),
		afpacket.OptPollTimeout(afpacketPollTimeout),
		afpacket.OptTPacketVersion(afpacket.TPacketVersion3),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", core.ErrDeviceUnavailable, dev.Name, err)
	}

	filter, err := ipv4Filter(opts.SnapLen)
	if err != nil {
		handle.Close()
		return nil, fmt.Errorf("assemble filter: %w", err)
	}
	if err := handle.SetBPF(filter); err != nil {
		handle.Close()
		return nil, fmt.Errorf("set BPF: %w", err)
	}

	logger := log.GetLogger().WithField("device", dev.Name)
	if err := handle.InitSocketStats(); err != nil {
		logger.WithError(err).Warn("failed to init socket stats")
	}

	s := &afpacketSource{handle: handle}
	s.base = newBase(TypeAFPacket, dev.Name, core.LinkTypeEthernet, func() error {
		handle.Close()
		return nil
	})
	// Poll timeouts and EINTR surface as read errors; the loop retries them
	// and checks for shutdown in between.
	s.transient = func(error) bool { return true }

	logger.WithFields(map[string]interface{}{
		"frame_size": frameSize,
		"blocks":     numBlocks,
	}).Info("afpacket source opened")
	return s, nil
}

// frameSizeFor rounds snapLen up to a power of two, as TPACKET frames require.
func frameSizeFor(snapLen int) int {
	size := 2048
	for size < snapLen && size < afpacketBlockSize {
		size <<= 1
	}
	return size
}

func (s *afpacketSource) Run(ctx context.Context, handler Handler) error {
	return s.run(ctx, s.handle.ZeroCopyReadPacketData, handler)
}

func (s *afpacketSource) Stats() (Stats, error) {
	st := Stats{Received: s.received.Load()}
	err := s.withHandle(func() error {
		_, v3, err := s.handle.SocketStats()
		if err != nil {
			return fmt.Errorf("socket stats: %w", err)
		}
		st.Dropped = uint64(v3.Drops())
		return nil
	})
	if err != nil {
		return st, err
	}
	s.publishDrops(st)
	return st, nil
}

package capture

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"strings"

	"github.com/google/gopacket/pcap"

	"firestige.xyz/netscope/internal/core"
	"firestige.xyz/netscope/internal/log"
)

// pcapFilter keeps IPv4 traffic only; everything else would be dropped by
// the decoder anyway.
const pcapFilter = "ip"

type pcapSource struct {
	*base
	handle *pcap.Handle
}

// PCAPDevices lists interfaces as seen by libpcap.
func PCAPDevices() ([]Device, error) {
	ifaces, err := pcap.FindAllDevs()
	if err != nil {
		return nil, fmt.Errorf("find devices: %w", err)
	}

	devs := make([]Device, 0, len(ifaces))
	for _, iface := range ifaces {
		dev := Device{Name: iface.Name, Description: iface.Description, Up: true}
		lower := strings.ToLower(iface.Name + " " + iface.Description)
		dev.Loopback = iface.Name == "lo" || strings.Contains(lower, "loopback")
		for _, a := range iface.Addresses {
			if ip, ok := netip.AddrFromSlice(a.IP); ok {
				ip = ip.Unmap()
				dev.Addresses = append(dev.Addresses, ip)
				if ip.IsLoopback() {
					dev.Loopback = true
				}
			}
		}
		// Interfaces without any address are rarely what the user meant.
		if len(dev.Addresses) == 0 {
			dev.Up = false
		}
		devs = append(devs, dev)
	}
	return devs, nil
}

func openPCAP(_ context.Context, opts Options) (Source, error) {
	devs, err := PCAPDevices()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrDeviceUnavailable, err)
	}
	dev, err := ResolveDevice(opts.Device, devs)
	if err != nil {
		return nil, err
	}

	inactive, err := pcap.NewInactiveHandle(dev.Name)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", core.ErrDeviceUnavailable, dev.Name, err)
	}
	defer inactive.CleanUp()

	if err := inactive.SetPromisc(opts.Promiscuous); err != nil {
		return nil, fmt.Errorf("set promiscuous mode: %w", err)
	}
	if err := inactive.SetSnapLen(opts.SnapLen); err != nil {
		return nil, fmt.Errorf("set snap length: %w", err)
	}
	if err := inactive.SetBufferSize(opts.BufferSize); err != nil {
		return nil, fmt.Errorf("set buffer size: %w", err)
	}
	if err := inactive.SetTimeout(opts.Timeout); err != nil {
		return nil, fmt.Errorf("set read timeout: %w", err)
	}

	handle, err := inactive.Activate()
	if err != nil {
		return nil, fmt.Errorf("%w: activate %s: %v", core.ErrDeviceUnavailable, dev.Name, err)
	}
	if err := handle.SetBPFFilter(pcapFilter); err != nil {
		handle.Close()
		return nil, fmt.Errorf("set filter %q: %w", pcapFilter, err)
	}

	lt := core.LinkType(handle.LinkType())
	s := &pcapSource{handle: handle}
	s.base = newBase(TypePCAP, dev.Name, lt, func() error {
		handle.Close()
		return nil
	})
	s.transient = func(err error) bool {
		return errors.Is(err, pcap.NextErrorTimeoutExpired)
	}

	log.GetLogger().WithFields(map[string]interface{}{
		"device":    dev.Name,
		"snaplen":   opts.SnapLen,
		"buffer":    opts.BufferSize,
		"promisc":   opts.Promiscuous,
		"link_type": handle.LinkType().String(),
	}).Info("pcap source opened")

	return s, nil
}

func (s *pcapSource) Run(ctx context.Context, handler Handler) error {
	return s.run(ctx, s.handle.ZeroCopyReadPacketData, handler)
}

func (s *pcapSource) Stats() (Stats, error) {
	st := Stats{Received: s.received.Load()}
	err := s.withHandle(func() error {
		ps, err := s.handle.Stats()
		if err != nil {
			return fmt.Errorf("pcap stats: %w", err)
		}
		st.Dropped = uint64(ps.PacketsDropped)
		st.IfDropped = uint64(ps.PacketsIfDropped)
		return nil
	})
	if err != nil {
		return st, err
	}
	s.publishDrops(st)
	return st, nil
}

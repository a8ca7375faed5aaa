package capture

import (
	"fmt"
	"net/netip"
	"strings"

	psnet "github.com/shirou/gopsutil/v3/net"

	"firestige.xyz/netscope/internal/core"
)

// Device is a capturable network interface.
type Device struct {
	Name        string
	Description string
	Addresses   []netip.Addr
	Up          bool
	Loopback    bool
}

// HasAddr reports whether addr is assigned to the device.
func (d Device) HasAddr(addr netip.Addr) bool {
	for _, a := range d.Addresses {
		if a == addr {
			return true
		}
	}
	return false
}

// SystemDevices lists interfaces as seen by the operating system.
func SystemDevices() ([]Device, error) {
	ifaces, err := psnet.Interfaces()
	if err != nil {
		return nil, fmt.Errorf("list interfaces: %w", err)
	}

	devs := make([]Device, 0, len(ifaces))
	for _, iface := range ifaces {
		dev := Device{Name: iface.Name, Description: iface.HardwareAddr}
		for _, flag := range iface.Flags {
			switch flag {
			case "up":
				dev.Up = true
			case "loopback":
				dev.Loopback = true
			}
		}
		for _, a := range iface.Addrs {
			if p, err := netip.ParsePrefix(a.Addr); err == nil {
				dev.Addresses = append(dev.Addresses, p.Addr())
			} else if ip, err := netip.ParseAddr(a.Addr); err == nil {
				dev.Addresses = append(dev.Addresses, ip)
			}
		}
		devs = append(devs, dev)
	}
	return devs, nil
}

// ResolveDevice picks a device by name or IPv4 address. An empty selector
// picks the first device that is up and not loopback.
func ResolveDevice(selector string, devs []Device) (Device, error) {
	selector = strings.TrimSpace(selector)

	if selector == "" {
		for _, d := range devs {
			if d.Up && !d.Loopback {
				return d, nil
			}
		}
		return Device{}, fmt.Errorf("%w: no usable interface found", core.ErrDeviceUnavailable)
	}

	for _, d := range devs {
		if d.Name == selector {
			return d, nil
		}
	}

	if addr, err := netip.ParseAddr(selector); err == nil {
		addr = addr.Unmap()
		for _, d := range devs {
			if d.HasAddr(addr) {
				return d, nil
			}
		}
	}

	return Device{}, fmt.Errorf("%w: %s", core.ErrDeviceUnavailable, selector)
}

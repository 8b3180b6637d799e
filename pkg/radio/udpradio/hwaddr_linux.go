//go:build linux

package udpradio

import (
	"fmt"

	"github.com/vishvananda/netlink"

	"espnow-bridge/pkg/protocol"
)

// InterfaceAddr reads the hardware address of a host interface.
func InterfaceAddr(name string) (protocol.Addr, error) {
	link, err := netlink.LinkByName(name)
	if err != nil {
		return protocol.Addr{}, fmt.Errorf("failed to find interface %s: %w", name, err)
	}
	return protocol.AddrFromHardware(link.Attrs().HardwareAddr)
}

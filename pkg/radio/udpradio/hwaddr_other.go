//go:build !linux

package udpradio

import (
	"fmt"
	"net"

	"espnow-bridge/pkg/protocol"
)

func InterfaceAddr(name string) (protocol.Addr, error) {
	ifi, err := net.InterfaceByName(name)
	if err != nil {
		return protocol.Addr{}, fmt.Errorf("failed to find interface %s: %w", name, err)
	}
	return protocol.AddrFromHardware(ifi.HardwareAddr)
}

//go:build linux || darwin || freebsd || netbsd || openbsd || dragonfly

package udpradio

import (
	"syscall"

	"golang.org/x/sys/unix"
)

// control lets several emulated radios share one port on a host and send to
// the broadcast address.
func control(network, address string, c syscall.RawConn) error {
	var serr error
	err := c.Control(func(fd uintptr) {
		for _, opt := range []int{unix.SO_REUSEADDR, unix.SO_REUSEPORT, unix.SO_BROADCAST} {
			if serr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, opt, 1); serr != nil {
				return
			}
		}
	})
	if err != nil {
		return err
	}
	return serr
}

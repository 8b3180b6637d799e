//go:build !(linux || darwin || freebsd || netbsd || openbsd || dragonfly)

package udpradio

import "syscall"

func control(network, address string, c syscall.RawConn) error { return nil }

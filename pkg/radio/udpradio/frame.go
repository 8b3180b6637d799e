package udpradio

import (
	"errors"
	"fmt"

	"espnow-bridge/pkg/protocol"
	"espnow-bridge/pkg/radio"
)

// Datagram layout on the emulated link:
// Dst(6) | Src(6) | Channel(1) | Payload(0-250)
const (
	headerSize  = 2*protocol.AddrLen + 1
	maxDatagram = headerSize + radio.MaxPayloadSize
)

var ErrShortDatagram = errors.New("datagram shorter than link header")

type header struct {
	Dst     protocol.Addr
	Src     protocol.Addr
	Channel uint8
}

// encode writes h and payload into buf and returns the datagram length.
func encode(buf []byte, h header, payload []byte) (int, error) {
	if len(payload) > radio.MaxPayloadSize {
		return 0, radio.ErrPayloadTooLarge
	}
	if len(buf) < headerSize+len(payload) {
		return 0, fmt.Errorf("buffer too small: %d < %d", len(buf), headerSize+len(payload))
	}
	copy(buf[0:6], h.Dst[:])
	copy(buf[6:12], h.Src[:])
	buf[12] = h.Channel
	n := copy(buf[headerSize:], payload)
	return headerSize + n, nil
}

// decode splits a datagram. The payload aliases b.
func decode(b []byte) (header, []byte, error) {
	var h header
	if len(b) < headerSize {
		return h, nil, ErrShortDatagram
	}
	copy(h.Dst[:], b[0:6])
	copy(h.Src[:], b[6:12])
	h.Channel = b[12]
	payload := b[headerSize:]
	if len(payload) > radio.MaxPayloadSize {
		return h, nil, radio.ErrPayloadTooLarge
	}
	return h, payload, nil
}

// accepts tells whether a datagram from the air is meant for self.
func accepts(h header, self protocol.Addr, channel uint8) bool {
	if h.Src == self {
		return false
	}
	if h.Channel != channel {
		return false
	}
	return h.Dst == self || h.Dst.IsBroadcast()
}

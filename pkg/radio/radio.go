// Package radio describes the connectionless datagram link the node talks
// over. Drivers deliver received frames and send outcomes through callbacks
// that run on the driver's own goroutines, so handlers must not block.
package radio

import (
	"errors"

	"espnow-bridge/pkg/protocol"
)

// MaxPayloadSize is the largest payload a single datagram carries.
const MaxPayloadSize = 250

var (
	ErrPeerNotFound      = errors.New("peer not registered")
	ErrPeerExists        = errors.New("peer already registered")
	ErrPayloadTooLarge   = errors.New("payload exceeds radio datagram size")
	ErrClosed            = errors.New("radio closed")
	ErrHandlerRegistered = errors.New("handler already registered")
)

// SendStatus is the outcome reported for every Send.
type SendStatus uint8

const (
	SendSuccess SendStatus = iota
	SendFail
)

func (s SendStatus) String() string {
	if s == SendSuccess {
		return "success"
	}
	return "fail"
}

// RecvInfo carries link-level metadata of a received datagram.
type RecvInfo struct {
	Src protocol.Addr
	Dst protocol.Addr
}

// PeerInfo describes a registered destination.
type PeerInfo struct {
	Addr    protocol.Addr
	Channel uint8
	Encrypt bool
}

// ReceiveHandler gets the datagram payload. data is only valid during the
// call.
type ReceiveHandler func(info RecvInfo, data []byte)

// SendHandler gets the outcome of a previous Send.
type SendHandler func(dst protocol.Addr, status SendStatus)

// Driver is the radio stack as seen by the node.
type Driver interface {
	// Addr is the host's own physical address.
	Addr() protocol.Addr
	RegisterReceiveHandler(h ReceiveHandler) error
	RegisterSendHandler(h SendHandler) error
	AddPeer(p PeerInfo) error
	// Send queues data for dst and returns without waiting for delivery.
	Send(dst protocol.Addr, data []byte) error
	Close() error
}

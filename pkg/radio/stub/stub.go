// Package stub is an in-memory radio driver. Received frames are injected by
// the caller, sent frames are recorded, and send completions are delivered
// synchronously from Send.
package stub

import (
	"sync"

	"espnow-bridge/pkg/protocol"
	"espnow-bridge/pkg/radio"
)

// Sent is one recorded transmission.
type Sent struct {
	Dst  protocol.Addr
	Data []byte
}

type Driver struct {
	self protocol.Addr

	mu         sync.Mutex
	onRecv     radio.ReceiveHandler
	onSend     radio.SendHandler
	peers      map[protocol.Addr]radio.PeerInfo
	sent       []Sent
	status     radio.SendStatus
	sendErr    error
	addPeerErr error
	closed     bool
}

var _ radio.Driver = (*Driver)(nil)

func New(self protocol.Addr) *Driver {
	return &Driver{
		self:  self,
		peers: make(map[protocol.Addr]radio.PeerInfo),
	}
}

func (d *Driver) Addr() protocol.Addr { return d.self }

func (d *Driver) RegisterReceiveHandler(h radio.ReceiveHandler) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.onRecv != nil {
		return radio.ErrHandlerRegistered
	}
	d.onRecv = h
	return nil
}

func (d *Driver) RegisterSendHandler(h radio.SendHandler) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.onSend != nil {
		return radio.ErrHandlerRegistered
	}
	d.onSend = h
	return nil
}

func (d *Driver) AddPeer(p radio.PeerInfo) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.addPeerErr != nil {
		return d.addPeerErr
	}
	if _, ok := d.peers[p.Addr]; ok {
		return radio.ErrPeerExists
	}
	d.peers[p.Addr] = p
	return nil
}

func (d *Driver) Send(dst protocol.Addr, data []byte) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return radio.ErrClosed
	}
	if d.sendErr != nil {
		err := d.sendErr
		d.mu.Unlock()
		return err
	}
	if len(data) > radio.MaxPayloadSize {
		d.mu.Unlock()
		return radio.ErrPayloadTooLarge
	}
	if _, ok := d.peers[dst]; !ok && !dst.IsBroadcast() {
		d.mu.Unlock()
		return radio.ErrPeerNotFound
	}
	d.sent = append(d.sent, Sent{Dst: dst, Data: append([]byte(nil), data...)})
	h, status := d.onSend, d.status
	d.mu.Unlock()

	if h != nil {
		h(dst, status)
	}
	return nil
}

func (d *Driver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

// InjectRx delivers data as if src had sent it to this host.
func (d *Driver) InjectRx(src protocol.Addr, data []byte) {
	d.mu.Lock()
	h := d.onRecv
	d.mu.Unlock()
	if h != nil {
		h(radio.RecvInfo{Src: src, Dst: d.self}, data)
	}
}

// SentFrames returns a copy of everything sent so far.
func (d *Driver) SentFrames() []Sent {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Sent, len(d.sent))
	copy(out, d.sent)
	return out
}

func (d *Driver) Peers() []radio.PeerInfo {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]radio.PeerInfo, 0, len(d.peers))
	for _, p := range d.peers {
		out = append(out, p)
	}
	return out
}

// SetSendStatus selects the outcome reported to the send handler.
func (d *Driver) SetSendStatus(s radio.SendStatus) {
	d.mu.Lock()
	d.status = s
	d.mu.Unlock()
}

// SetSendError makes Send fail synchronously with err.
func (d *Driver) SetSendError(err error) {
	d.mu.Lock()
	d.sendErr = err
	d.mu.Unlock()
}

// SetAddPeerError makes AddPeer fail with err.
func (d *Driver) SetAddPeerError(err error) {
	d.mu.Lock()
	d.addPeerErr = err
	d.mu.Unlock()
}

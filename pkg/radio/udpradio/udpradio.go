// Package udpradio emulates the connectionless radio link on a LAN: every
// datagram is broadcast over UDP with a small link header, and each radio
// keeps only what is addressed to it on its channel.
package udpradio

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"espnow-bridge/pkg/buffers"
	"espnow-bridge/pkg/log"
	"espnow-bridge/pkg/machine"
	"espnow-bridge/pkg/protocol"
	"espnow-bridge/pkg/radio"
)

const (
	DefaultListenAddr    = ":1955"
	DefaultBroadcastAddr = "255.255.255.255:1955"

	completionBacklog = 64
)

type Config struct {
	ListenAddr    string
	BroadcastAddr string
	Channel       uint8
	// Self overrides the radio address. When zero it is read from Interface,
	// or derived from the machine id when no interface is given.
	Self      protocol.Addr
	Interface string
}

// ResolveSelf picks the radio address for cfg.
func ResolveSelf(cfg Config) (protocol.Addr, error) {
	if !cfg.Self.IsZero() {
		return cfg.Self, nil
	}
	if cfg.Interface != "" {
		return InterfaceAddr(cfg.Interface)
	}
	hw, err := machine.GenerateMac("espnow-bridge")
	if err != nil {
		return protocol.Addr{}, err
	}
	return protocol.AddrFromHardware(hw)
}

type completion struct {
	dst    protocol.Addr
	status radio.SendStatus
}

type Radio struct {
	conn    *net.UDPConn
	bcast   *net.UDPAddr
	self    protocol.Addr
	channel uint8

	mu     sync.RWMutex
	onRecv radio.ReceiveHandler
	onSend radio.SendHandler
	peers  map[protocol.Addr]radio.PeerInfo

	completions chan completion
	done        chan struct{}
	closed      atomic.Bool
	wg          sync.WaitGroup
}

var _ radio.Driver = (*Radio)(nil)

// Open binds the socket and starts the receive and completion goroutines.
func Open(cfg Config) (*Radio, error) {
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = DefaultListenAddr
	}
	if cfg.BroadcastAddr == "" {
		cfg.BroadcastAddr = DefaultBroadcastAddr
	}
	self, err := ResolveSelf(cfg)
	if err != nil {
		return nil, fmt.Errorf("udpradio: resolve own address: %w", err)
	}
	bcast, err := net.ResolveUDPAddr("udp4", cfg.BroadcastAddr)
	if err != nil {
		return nil, fmt.Errorf("udpradio: failed to resolve broadcast address: %w", err)
	}

	lc := net.ListenConfig{Control: control}
	pc, err := lc.ListenPacket(context.Background(), "udp4", cfg.ListenAddr)
	if err != nil {
		return nil, fmt.Errorf("udpradio: failed to open UDP socket: %w", err)
	}

	r := &Radio{
		conn:        pc.(*net.UDPConn),
		bcast:       bcast,
		self:        self,
		channel:     cfg.Channel,
		peers:       make(map[protocol.Addr]radio.PeerInfo),
		completions: make(chan completion, completionBacklog),
		done:        make(chan struct{}),
	}
	r.wg.Add(2)
	go r.receiveLoop()
	go r.completionLoop()

	log.Info().
		Str("self", self.String()).
		Uint8("channel", cfg.Channel).
		Str("listen", r.conn.LocalAddr().String()).
		Str("broadcast", bcast.String()).
		Msg("udpradio: up")
	return r, nil
}

func (r *Radio) Addr() protocol.Addr { return r.self }

func (r *Radio) Channel() uint8 { return r.channel }

func (r *Radio) RegisterReceiveHandler(h radio.ReceiveHandler) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.onRecv != nil {
		return radio.ErrHandlerRegistered
	}
	r.onRecv = h
	return nil
}

func (r *Radio) RegisterSendHandler(h radio.SendHandler) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.onSend != nil {
		return radio.ErrHandlerRegistered
	}
	r.onSend = h
	return nil
}

// AddPeer registers a destination. Channel 0 means the radio's own channel.
func (r *Radio) AddPeer(p radio.PeerInfo) error {
	if p.Channel == 0 {
		p.Channel = r.channel
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.peers[p.Addr]; ok {
		return fmt.Errorf("%w: %s", radio.ErrPeerExists, p.Addr)
	}
	r.peers[p.Addr] = p
	return nil
}

// Send broadcasts data towards dst. Errors returned here are about the
// request itself; whether the datagram left the host is reported to the
// send handler.
func (r *Radio) Send(dst protocol.Addr, data []byte) error {
	if r.closed.Load() {
		return radio.ErrClosed
	}
	if len(data) > radio.MaxPayloadSize {
		return radio.ErrPayloadTooLarge
	}
	ch := r.channel
	if !dst.IsBroadcast() {
		r.mu.RLock()
		p, ok := r.peers[dst]
		r.mu.RUnlock()
		if !ok {
			return fmt.Errorf("%w: %s", radio.ErrPeerNotFound, dst)
		}
		ch = p.Channel
	}

	buf := buffers.Datagrams.Get()
	defer buffers.Datagrams.Put(buf)
	n, err := encode(buf, header{Dst: dst, Src: r.self, Channel: ch}, data)
	if err != nil {
		return err
	}

	status := radio.SendSuccess
	if _, err := r.conn.WriteToUDP(buf[:n], r.bcast); err != nil {
		log.Debug().Err(err).Str("dst", dst.String()).Msg("udpradio: write failed")
		status = radio.SendFail
	}
	r.complete(completion{dst: dst, status: status})
	return nil
}

func (r *Radio) complete(c completion) {
	select {
	case r.completions <- c:
	case <-r.done:
	default:
		log.Warn().Str("dst", c.dst.String()).Msg("udpradio: completion backlog full, outcome dropped")
	}
}

func (r *Radio) receiveLoop() {
	defer r.wg.Done()
	for {
		buf := buffers.Datagrams.Get()
		n, from, err := r.conn.ReadFromUDP(buf)
		if err != nil {
			buffers.Datagrams.Put(buf)
			if r.closed.Load() || errors.Is(err, net.ErrClosed) {
				return
			}
			log.Error().Err(err).Msg("udpradio: read failed")
			continue
		}
		r.deliver(buf[:n], from)
		buffers.Datagrams.Put(buf)
	}
}

func (r *Radio) deliver(b []byte, from *net.UDPAddr) {
	h, payload, err := decode(b)
	if err != nil {
		log.Debug().Err(err).Str("from", from.String()).Msg("udpradio: dropping datagram")
		return
	}
	if !accepts(h, r.self, r.channel) {
		return
	}
	r.mu.RLock()
	fn := r.onRecv
	r.mu.RUnlock()
	if fn != nil {
		fn(radio.RecvInfo{Src: h.Src, Dst: h.Dst}, payload)
	}
}

func (r *Radio) completionLoop() {
	defer r.wg.Done()
	for {
		select {
		case c := <-r.completions:
			r.mu.RLock()
			fn := r.onSend
			r.mu.RUnlock()
			if fn != nil {
				fn(c.dst, c.status)
			}
		case <-r.done:
			return
		}
	}
}

// Close stops both goroutines. Further Sends fail with radio.ErrClosed.
func (r *Radio) Close() error {
	if !r.closed.CompareAndSwap(false, true) {
		return nil
	}
	close(r.done)
	err := r.conn.Close()
	r.wg.Wait()
	return err
}

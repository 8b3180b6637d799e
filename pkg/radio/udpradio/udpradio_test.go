package udpradio

import (
	"bytes"
	"errors"
	"net"
	"testing"
	"time"

	"espnow-bridge/pkg/protocol"
	"espnow-bridge/pkg/radio"
)

var (
	station = protocol.StationAddr()
	node1   = protocol.MustParseAddr("50:02:91:9F:CF:9C")
)

func TestFrameRoundTrip(t *testing.T) {
	buf := make([]byte, maxDatagram)
	h := header{Dst: node1, Src: station, Channel: 6}
	n, err := encode(buf, h, []byte{0x75, 1})
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	if n != headerSize+2 {
		t.Fatalf("n = %d, want %d", n, headerSize+2)
	}

	got, payload, err := decode(buf[:n])
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if got != h {
		t.Errorf("header = %+v, want %+v", got, h)
	}
	if !bytes.Equal(payload, []byte{0x75, 1}) {
		t.Errorf("payload = %X", payload)
	}

	if _, _, err := decode(buf[:headerSize-1]); !errors.Is(err, ErrShortDatagram) {
		t.Errorf("expected ErrShortDatagram, got %v", err)
	}
	if _, err := encode(buf, h, make([]byte, radio.MaxPayloadSize+1)); !errors.Is(err, radio.ErrPayloadTooLarge) {
		t.Errorf("expected ErrPayloadTooLarge, got %v", err)
	}
}

func TestAccepts(t *testing.T) {
	tests := []struct {
		name string
		h    header
		want bool
	}{
		{"unicast to self", header{Dst: node1, Src: station, Channel: 1}, true},
		{"broadcast", header{Dst: protocol.BroadcastAddr, Src: station, Channel: 1}, true},
		{"other node", header{Dst: protocol.MustParseAddr("50:02:91:87:95:81"), Src: station, Channel: 1}, false},
		{"wrong channel", header{Dst: node1, Src: station, Channel: 2}, false},
		{"own datagram", header{Dst: protocol.BroadcastAddr, Src: node1, Channel: 1}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := accepts(tt.h, node1, 1); got != tt.want {
				t.Errorf("accepts = %v, want %v", got, tt.want)
			}
		})
	}
}

func openLoopback(t *testing.T, self protocol.Addr) *Radio {
	t.Helper()
	r, err := Open(Config{
		ListenAddr:    "127.0.0.1:0",
		BroadcastAddr: "127.0.0.1:9",
		Channel:       1,
		Self:          self,
	})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { r.Close() })
	return r
}

func TestLoopbackDelivery(t *testing.T) {
	a := openLoopback(t, node1)
	b := openLoopback(t, station)
	// Point each radio at the other's socket instead of a broadcast address.
	a.bcast = b.conn.LocalAddr().(*net.UDPAddr)
	b.bcast = a.conn.LocalAddr().(*net.UDPAddr)

	received := make(chan []byte, 1)
	if err := a.RegisterReceiveHandler(func(info radio.RecvInfo, data []byte) {
		if info.Src == station {
			received <- append([]byte(nil), data...)
		}
	}); err != nil {
		t.Fatalf("RegisterReceiveHandler failed: %v", err)
	}
	outcomes := make(chan radio.SendStatus, 1)
	if err := b.RegisterSendHandler(func(dst protocol.Addr, s radio.SendStatus) {
		outcomes <- s
	}); err != nil {
		t.Fatalf("RegisterSendHandler failed: %v", err)
	}

	if err := b.Send(node1, []byte{0x75, 1}); !errors.Is(err, radio.ErrPeerNotFound) {
		t.Fatalf("expected ErrPeerNotFound before AddPeer, got %v", err)
	}
	if err := b.AddPeer(radio.PeerInfo{Addr: node1}); err != nil {
		t.Fatalf("AddPeer failed: %v", err)
	}
	if err := b.AddPeer(radio.PeerInfo{Addr: node1}); !errors.Is(err, radio.ErrPeerExists) {
		t.Errorf("expected ErrPeerExists, got %v", err)
	}
	if err := b.Send(node1, []byte{0x75, 1}); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	select {
	case data := <-received:
		if !bytes.Equal(data, []byte{0x75, 1}) {
			t.Errorf("received %X", data)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("datagram not received")
	}
	select {
	case s := <-outcomes:
		if s != radio.SendSuccess {
			t.Errorf("status = %s, want success", s)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no send completion")
	}

	if err := a.RegisterReceiveHandler(func(radio.RecvInfo, []byte) {}); !errors.Is(err, radio.ErrHandlerRegistered) {
		t.Errorf("expected ErrHandlerRegistered, got %v", err)
	}
}

func TestSendAfterClose(t *testing.T) {
	r := openLoopback(t, node1)
	if err := r.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := r.Send(protocol.BroadcastAddr, []byte{1}); !errors.Is(err, radio.ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
}

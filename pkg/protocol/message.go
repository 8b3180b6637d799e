package protocol

import (
	"errors"
	"fmt"

	"espnow-bridge/pkg/protocol/spec"
)

const (
	// HeaderSize covers the opcode and device number bytes.
	HeaderSize = 2
	// MaxFrameSize bounds a downstream frame: header + up to 8 payload bytes.
	MaxFrameSize = 10
	// MaxPayloadSize is what is left for opcode specific data.
	MaxPayloadSize = MaxFrameSize - HeaderSize

	BootLen   = HeaderSize
	StatusLen = HeaderSize + 1
	MacLen    = HeaderSize + AddrLen
)

var (
	ErrShortMessage       = errors.New("message shorter than header")
	ErrUnexpectedLength   = errors.New("unexpected message length for opcode")
	ErrPayloadTooLarge    = errors.New("payload exceeds frame size")
	ErrUnrecognizedOpcode = errors.New("unrecognized opcode")
)

// Frame is the fixed-size scratch a downstream frame is copied into.
// Layout: Opcode(1) | Target device number(1) | Payload(0-8).
// Bytes past Len are always zero.
type Frame struct {
	buf [MaxFrameSize]byte
	n   int
}

// ByteSource is anything able to copy a frame out, such as a relay queue grant.
type ByteSource interface {
	CopyTo(dst []byte) int
}

// Load replaces the frame content with the bytes copied from src.
// Anything beyond MaxFrameSize is cut off.
func (f *Frame) Load(src ByteSource) {
	f.buf = [MaxFrameSize]byte{}
	f.n = src.CopyTo(f.buf[:])
}

// SetBytes is Load for a plain slice.
func (f *Frame) SetBytes(b []byte) {
	f.buf = [MaxFrameSize]byte{}
	f.n = copy(f.buf[:], b)
}

func (f *Frame) Len() int { return f.n }

// Opcode decodes byte 0. A frame of length zero decodes to spec.None.
func (f *Frame) Opcode() spec.Opcode { return spec.Decode(f.buf[0]) }

// Target is the device number the frame is addressed to.
func (f *Frame) Target() uint8 { return f.buf[1] }

func (f *Frame) Payload() []byte {
	if f.n <= HeaderSize {
		return nil
	}
	return f.buf[HeaderSize:f.n]
}

func (f *Frame) Bytes() []byte { return f.buf[:f.n] }

// Message is an upstream message under construction. A zero Message has
// length zero, which the dispatcher reads as "nothing to send".
type Message struct {
	buf [MaxFrameSize]byte
	n   int
}

func (m *Message) Len() int { return m.n }

// PayloadLen is the number of bytes past the header.
func (m *Message) PayloadLen() int {
	if m.n < HeaderSize {
		return 0
	}
	return m.n - HeaderSize
}

func (m *Message) Bytes() []byte { return m.buf[:m.n] }

func (m *Message) Opcode() spec.Opcode { return spec.Decode(m.buf[0]) }

func (m *Message) Reset() {
	*m = Message{}
}

// set writes header and payload. payload always fits since every caller
// is one of the fixed layouts below.
func (m *Message) set(op spec.Opcode, dev uint8, payload ...byte) {
	m.buf = [MaxFrameSize]byte{}
	m.buf[0] = byte(op)
	m.buf[1] = dev
	m.n = HeaderSize + copy(m.buf[HeaderSize:], payload)
}

// SetBoot builds [Boot, dev].
func (m *Message) SetBoot(dev uint8) { m.set(spec.Boot, dev) }

// SetStatus builds [Status, dev, rnd].
func (m *Message) SetStatus(dev uint8, rnd byte) { m.set(spec.Status, dev, rnd) }

// SetMac builds [Mac, dev, addr[0..6]].
func (m *Message) SetMac(dev uint8, addr Addr) { m.set(spec.Mac, dev, addr[:]...) }

func BootMessage(dev uint8) Message {
	var m Message
	m.SetBoot(dev)
	return m
}

func StatusMessage(dev uint8, rnd byte) Message {
	var m Message
	m.SetStatus(dev, rnd)
	return m
}

func MacMessage(dev uint8, addr Addr) Message {
	var m Message
	m.SetMac(dev, addr)
	return m
}

// EncodeDownstream builds a frame for a node, as the upstream station does.
func EncodeDownstream(op spec.Opcode, target uint8, payload []byte) ([]byte, error) {
	if !op.Known() {
		return nil, fmt.Errorf("encode downstream: %w: %#02x", ErrUnrecognizedOpcode, uint8(op))
	}
	return EncodeRaw(byte(op), target, payload)
}

// EncodeRaw is EncodeDownstream without the opcode check, for probing nodes
// with bytes outside the table.
func EncodeRaw(op byte, target uint8, payload []byte) ([]byte, error) {
	if len(payload) > MaxPayloadSize {
		return nil, fmt.Errorf("encode downstream: %w (%d > %d)", ErrPayloadTooLarge, len(payload), MaxPayloadSize)
	}
	data := make([]byte, HeaderSize+len(payload))
	data[0] = op
	data[1] = target
	copy(data[HeaderSize:], payload)
	return data, nil
}

// Upstream is a decoded report sent by a node to the station.
type Upstream struct {
	Opcode spec.Opcode
	DevNo  uint8
	// Random is set for Status reports.
	Random byte
	// Addr is set for Mac reports.
	Addr Addr
}

func (u Upstream) String() string {
	switch u.Opcode {
	case spec.Status:
		return fmt.Sprintf("%s dev=%d rnd=%#02x", u.Opcode, u.DevNo, u.Random)
	case spec.Mac:
		return fmt.Sprintf("%s dev=%d addr=%s", u.Opcode, u.DevNo, u.Addr)
	default:
		return fmt.Sprintf("%s dev=%d", u.Opcode, u.DevNo)
	}
}

// ParseUpstream decodes a report and checks its length against the opcode layout.
func ParseUpstream(b []byte) (Upstream, error) {
	var u Upstream
	if len(b) < HeaderSize {
		return u, ErrShortMessage
	}
	u.Opcode = spec.Decode(b[0])
	u.DevNo = b[1]

	want := -1
	switch u.Opcode {
	case spec.Boot:
		want = BootLen
	case spec.Status:
		want = StatusLen
	case spec.Mac:
		want = MacLen
	case spec.Unrecognized:
		return u, fmt.Errorf("%w: %#02x", ErrUnrecognizedOpcode, b[0])
	}
	if want >= 0 && len(b) != want {
		return u, fmt.Errorf("%w: %s wants %d bytes, got %d", ErrUnexpectedLength, u.Opcode, want, len(b))
	}

	switch u.Opcode {
	case spec.Status:
		u.Random = b[2]
	case spec.Mac:
		copy(u.Addr[:], b[HeaderSize:MacLen])
	}
	return u, nil
}

package protocol

import (
	"bytes"
	"errors"
	"testing"

	"espnow-bridge/pkg/protocol/spec"
)

var testAddr = Addr{0x50, 0x02, 0x91, 0x9F, 0xCF, 0x9C}

func TestOpcodeTable(t *testing.T) {
	want := map[spec.Opcode]byte{
		spec.None:        0x00,
		spec.Boot:        0x42,
		spec.Mac:         0x4D,
		spec.Status:      0x55,
		spec.Reset:       0x62,
		spec.MacQuery:    0x6D,
		spec.Run:         0x72,
		spec.StatusQuery: 0x75,
	}
	for op, b := range want {
		if byte(op) != b {
			t.Errorf("%s = %#02x, want %#02x", op, byte(op), b)
		}
		if got := spec.Decode(b); got != op {
			t.Errorf("Decode(%#02x) = %s, want %s", b, got, op)
		}
	}
}

func TestDecodeUnknownBytes(t *testing.T) {
	known := make(map[byte]bool)
	for _, op := range spec.All() {
		known[byte(op)] = true
	}
	for i := 0; i < 256; i++ {
		b := byte(i)
		got := spec.Decode(b)
		if known[b] {
			if !got.Known() {
				t.Errorf("Decode(%#02x) = %s, expected a known opcode", b, got)
			}
			continue
		}
		if got != spec.Unrecognized {
			t.Errorf("Decode(%#02x) = %s, want Unrecognized", b, got)
		}
	}
}

func TestParseOpcodeName(t *testing.T) {
	op, ok := spec.Parse("macquery")
	if !ok || op != spec.MacQuery {
		t.Fatalf("Parse(macquery) = %s, %v", op, ok)
	}
	if _, ok := spec.Parse("bogus"); ok {
		t.Errorf("Parse(bogus) should fail")
	}
}

func TestFrameScratch(t *testing.T) {
	var f Frame
	f.SetBytes([]byte{0x6D, 1})

	if f.Len() != 2 {
		t.Fatalf("Len = %d, want 2", f.Len())
	}
	if f.Opcode() != spec.MacQuery {
		t.Errorf("Opcode = %s, want MacQuery", f.Opcode())
	}
	if f.Target() != 1 {
		t.Errorf("Target = %d, want 1", f.Target())
	}
	if f.Payload() != nil {
		t.Errorf("Payload = %v, want nil", f.Payload())
	}

	// A shorter frame loaded on top must not see stale bytes.
	f.SetBytes([]byte{0x72, 3, 9, 9, 9})
	f.SetBytes([]byte{0x75})
	if f.Target() != 0 {
		t.Errorf("Target after short load = %d, want 0", f.Target())
	}
	if !bytes.Equal(f.buf[1:], make([]byte, MaxFrameSize-1)) {
		t.Errorf("scratch not cleared: %v", f.buf)
	}
}

func TestFrameTruncatesOversized(t *testing.T) {
	var f Frame
	f.SetBytes(bytes.Repeat([]byte{0xAA}, MaxFrameSize+5))
	if f.Len() != MaxFrameSize {
		t.Errorf("Len = %d, want %d", f.Len(), MaxFrameSize)
	}
}

func TestUpstreamLayouts(t *testing.T) {
	tests := []struct {
		name string
		msg  Message
		want []byte
	}{
		{
			name: "boot",
			msg:  BootMessage(2),
			want: []byte{0x42, 2},
		},
		{
			name: "status",
			msg:  StatusMessage(1, 0x99),
			want: []byte{0x55, 1, 0x99},
		},
		{
			name: "mac",
			msg:  MacMessage(1, testAddr),
			want: []byte{0x4D, 1, 0x50, 0x02, 0x91, 0x9F, 0xCF, 0x9C},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !bytes.Equal(tt.msg.Bytes(), tt.want) {
				t.Errorf("Bytes() = %X, want %X", tt.msg.Bytes(), tt.want)
			}
			if tt.msg.PayloadLen() != len(tt.want)-HeaderSize {
				t.Errorf("PayloadLen() = %d, want %d", tt.msg.PayloadLen(), len(tt.want)-HeaderSize)
			}
		})
	}
}

func TestParseUpstream(t *testing.T) {
	u, err := ParseUpstream([]byte{0x4D, 1, 0x50, 0x02, 0x91, 0x9F, 0xCF, 0x9C})
	if err != nil {
		t.Fatalf("ParseUpstream failed: %v", err)
	}
	if u.Opcode != spec.Mac || u.DevNo != 1 || u.Addr != testAddr {
		t.Errorf("unexpected decode: %+v", u)
	}

	u, err = ParseUpstream([]byte{0x55, 2, 0x10})
	if err != nil {
		t.Fatalf("ParseUpstream failed: %v", err)
	}
	if u.Random != 0x10 {
		t.Errorf("Random = %#02x, want 0x10", u.Random)
	}

	if _, err := ParseUpstream([]byte{0x55}); !errors.Is(err, ErrShortMessage) {
		t.Errorf("expected ErrShortMessage, got %v", err)
	}
	if _, err := ParseUpstream([]byte{0x55, 1}); !errors.Is(err, ErrUnexpectedLength) {
		t.Errorf("expected ErrUnexpectedLength, got %v", err)
	}
	if _, err := ParseUpstream([]byte{0x01, 1}); !errors.Is(err, ErrUnrecognizedOpcode) {
		t.Errorf("expected ErrUnrecognizedOpcode, got %v", err)
	}
}

func TestEncodeDownstream(t *testing.T) {
	data, err := EncodeDownstream(spec.StatusQuery, 1, nil)
	if err != nil {
		t.Fatalf("EncodeDownstream failed: %v", err)
	}
	if !bytes.Equal(data, []byte{0x75, 1}) {
		t.Errorf("EncodeDownstream = %X", data)
	}
	if _, err := EncodeDownstream(spec.Run, 1, make([]byte, MaxPayloadSize+1)); !errors.Is(err, ErrPayloadTooLarge) {
		t.Errorf("expected ErrPayloadTooLarge, got %v", err)
	}
	if _, err := EncodeDownstream(spec.Unrecognized, 1, nil); !errors.Is(err, ErrUnrecognizedOpcode) {
		t.Errorf("expected ErrUnrecognizedOpcode, got %v", err)
	}
}

func TestEncodeRawKeepsUnknownOpcode(t *testing.T) {
	data, err := EncodeRaw(0x01, 2, []byte{0xAB})
	if err != nil {
		t.Fatalf("EncodeRaw failed: %v", err)
	}
	if !bytes.Equal(data, []byte{0x01, 2, 0xAB}) {
		t.Errorf("EncodeRaw = %X", data)
	}
	if _, err := EncodeRaw(0x01, 2, make([]byte, MaxPayloadSize+1)); !errors.Is(err, ErrPayloadTooLarge) {
		t.Errorf("expected ErrPayloadTooLarge, got %v", err)
	}
}

func TestHandlerMapIgnoresUnknown(t *testing.T) {
	calls := 0
	mh := MessageHandlerMap{
		spec.StatusQuery: func(f *Frame, out *Message) {
			calls++
			out.SetStatus(f.Target(), 7)
		},
	}

	var f Frame
	var out Message
	f.SetBytes([]byte{0x01, 1})
	if mh.Handle(&f, &out) {
		t.Errorf("Handle should not run for an unknown opcode")
	}
	if out.Len() != 0 {
		t.Errorf("unknown opcode produced a response: %X", out.Bytes())
	}

	f.SetBytes([]byte{0x75, 1})
	if !mh.Handle(&f, &out) || calls != 1 {
		t.Fatalf("handler not called")
	}
	if out.Len() != StatusLen {
		t.Errorf("response length = %d, want %d", out.Len(), StatusLen)
	}
}

func TestAddrParsing(t *testing.T) {
	a, err := ParseAddr("50:02:91:9f:cf:9c")
	if err != nil {
		t.Fatalf("ParseAddr failed: %v", err)
	}
	if a != testAddr {
		t.Errorf("ParseAddr = %s, want %s", a, testAddr)
	}
	if a.String() != "50:02:91:9F:CF:9C" {
		t.Errorf("String = %q", a.String())
	}
	if _, err := ParseAddr("00:00:00:00:fe:80:00:00"); !errors.Is(err, ErrInvalidAddr) {
		t.Errorf("expected ErrInvalidAddr for 8 byte address, got %v", err)
	}
	if !BroadcastAddr.IsBroadcast() || StationAddr().IsBroadcast() {
		t.Errorf("broadcast detection broken")
	}
}

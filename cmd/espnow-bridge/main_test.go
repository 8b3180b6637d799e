package main

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"espnow-bridge/pkg/protocol"
	"espnow-bridge/pkg/protocol/spec"
	"espnow-bridge/pkg/radio"
	"espnow-bridge/pkg/radio/stub"
)

func TestParseTimeSpec(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	got, err := parseTimeSpec("90m", now)
	if err != nil {
		t.Fatalf("parseTimeSpec failed: %v", err)
	}
	if want := now.Add(-90 * time.Minute); !got.Equal(want) {
		t.Errorf("got %s, want %s", got, want)
	}

	got, err = parseTimeSpec("2024-04-30T10:00:00Z", now)
	if err != nil {
		t.Fatalf("parseTimeSpec failed: %v", err)
	}
	if want := time.Date(2024, 4, 30, 10, 0, 0, 0, time.UTC); !got.Equal(want) {
		t.Errorf("got %s, want %s", got, want)
	}

	if _, err := parseTimeSpec("yesterday", now); err == nil {
		t.Errorf("expected an error")
	}
}

func TestParseOpcode(t *testing.T) {
	tests := []struct {
		in   string
		want spec.Opcode
		ok   bool
	}{
		{"MacQuery", spec.MacQuery, true},
		{"statusquery", spec.StatusQuery, true},
		{"0x62", spec.Reset, true},
		{"13", spec.Opcode(0x13), true},
		{"0x1234", spec.Unrecognized, false},
		{"launch", spec.Unrecognized, false},
	}
	for _, tt := range tests {
		got, err := parseOpcode(tt.in)
		if (err == nil) != tt.ok {
			t.Errorf("parseOpcode(%q) error = %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("parseOpcode(%q) = %#02x, want %#02x", tt.in, uint8(got), uint8(tt.want))
		}
	}
}

func TestEncodeFrame(t *testing.T) {
	data, err := encodeFrame(spec.StatusQuery, 1, nil)
	if err != nil || !bytes.Equal(data, []byte{0x75, 1}) {
		t.Errorf("encodeFrame(StatusQuery) = %X, %v", data, err)
	}
	data, err = encodeFrame(spec.Opcode(0x01), 2, []byte{0xAA})
	if err != nil || !bytes.Equal(data, []byte{0x01, 2, 0xAA}) {
		t.Errorf("encodeFrame(0x01) = %X, %v", data, err)
	}
	if _, err := encodeFrame(spec.Run, 1, make([]byte, protocol.MaxPayloadSize+1)); !errors.Is(err, protocol.ErrPayloadTooLarge) {
		t.Errorf("expected ErrPayloadTooLarge, got %v", err)
	}
}

func TestWatchReplies(t *testing.T) {
	drv := stub.New(protocol.StationAddr())
	var out, errOut bytes.Buffer
	if err := watchReplies(drv, &out, &errOut); err != nil {
		t.Fatalf("watchReplies failed: %v", err)
	}

	node := protocol.MustParseAddr("50:02:91:9F:CF:9C")
	drv.InjectRx(node, []byte{0x55, 1, 0x5A})
	if !strings.Contains(out.String(), "Status dev=1 rnd=0x5a") {
		t.Errorf("unexpected output: %q", out.String())
	}

	drv.SetSendStatus(radio.SendFail)
	if err := drv.Send(protocol.BroadcastAddr, []byte{0x75, 1}); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if !strings.Contains(errOut.String(), "send to ") {
		t.Errorf("failed send not reported: %q", errOut.String())
	}

	if err := watchReplies(drv, &out, &errOut); !errors.Is(err, radio.ErrHandlerRegistered) {
		t.Errorf("expected ErrHandlerRegistered, got %v", err)
	}
}

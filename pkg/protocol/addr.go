package protocol

import (
	"errors"
	"fmt"
	"net"
)

// AddrLen is the length of a physical (MAC) address on the radio link.
const AddrLen = 6

var ErrInvalidAddr = errors.New("invalid physical address")

// Addr is a physical address. It is a value type so it can be compared with ==
// and copied around the driver callback without allocating.
type Addr [AddrLen]byte

var (
	BroadcastAddr = Addr{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}
	NullAddr      = Addr{}
)

// ParseAddr accepts any 6-byte notation understood by net.ParseMAC.
func ParseAddr(s string) (Addr, error) {
	hw, err := net.ParseMAC(s)
	if err != nil {
		return NullAddr, fmt.Errorf("%w %q: %v", ErrInvalidAddr, s, err)
	}
	return AddrFromHardware(hw)
}

// MustParseAddr is ParseAddr for compiled-in constants.
func MustParseAddr(s string) Addr {
	a, err := ParseAddr(s)
	if err != nil {
		panic(err)
	}
	return a
}

func AddrFromHardware(hw net.HardwareAddr) (Addr, error) {
	var a Addr
	if len(hw) != AddrLen {
		return a, fmt.Errorf("%w: want %d bytes, got %d", ErrInvalidAddr, AddrLen, len(hw))
	}
	copy(a[:], hw)
	return a, nil
}

func (a Addr) IsBroadcast() bool { return a == BroadcastAddr }
func (a Addr) IsZero() bool      { return a == NullAddr }

// String prints the address upper-case, colon separated.
func (a Addr) String() string {
	return fmt.Sprintf("%02X:%02X:%02X:%02X:%02X:%02X", a[0], a[1], a[2], a[3], a[4], a[5])
}

func (a Addr) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *Addr) UnmarshalText(text []byte) error {
	v, err := ParseAddr(string(text))
	if err != nil {
		return err
	}
	*a = v
	return nil
}

// Package machine derives stable host identifiers from a persisted machine id.
package machine

import (
	"encoding/binary"
	"fmt"
	"math/bits"
	"net"
)

var hashKey = [16]byte{0xd3, 0x1e, 0x48, 0xfa, 0x90, 0xfe, 0x4b, 0x4c, 0x9d, 0xaf, 0xd5, 0xd7, 0xa1, 0xb1, 0x2e, 0x8a}

// sipRound-style mixing; not cryptographic, only needs to spread the input.
func mix(data []byte, seed [16]byte) uint64 {
	v0 := binary.LittleEndian.Uint64(seed[0:8])
	v1 := binary.LittleEndian.Uint64(seed[8:16])
	v2 := v0 ^ 0x736f6d6570736575
	v3 := v1 ^ 0x646f72616e646f6d

	round := func() {
		v0 += v1
		v2 += v3
		v1 = bits.RotateLeft64(v1, 13)
		v3 = bits.RotateLeft64(v3, 15)
		v0 ^= v3
		v2 ^= v1
		v1 += v2
		v3 += v0
		v2 = bits.RotateLeft64(v2, 5)
		v0 = bits.RotateLeft64(v0, 10)
		v3 ^= v1
		v2 ^= v0
	}
	for _, b := range data {
		v3 ^= uint64(b)
		round()
	}
	round()
	return v0 ^ v1 ^ v2 ^ v3
}

// AddrFromID turns an id and a name into a unicast, locally administered
// 6 byte hardware address. Equal inputs give equal addresses.
func AddrFromID(id []byte, name string) net.HardwareAddr {
	data := make([]byte, 0, len(id)+len(name))
	data = append(data, id...)
	data = append(data, name...)

	var raw [8]byte
	binary.LittleEndian.PutUint64(raw[:], mix(data, hashKey))
	hw := net.HardwareAddr(raw[:6])
	hw[0] |= 0x02  // locally administered
	hw[0] &^= 0x01 // unicast
	return hw
}

// GenerateMac derives the host's radio address from the machine id.
func GenerateMac(name string) (net.HardwareAddr, error) {
	id, err := GetMachineID()
	if err != nil {
		return nil, fmt.Errorf("generate mac: %w", err)
	}
	return AddrFromID(id, name), nil
}

package spec

import "strings"

// Opcode is the single-byte tag at the head of every datagram.
// The same byte value may carry a different meaning depending on whether the
// datagram travels towards a node or towards the upstream station.
type Opcode uint8

const (
	None        Opcode = 0x00
	Boot        Opcode = 0x42 // B: boot report
	Mac         Opcode = 0x4D // M: address report
	Status      Opcode = 0x55 // U: status report
	Reset       Opcode = 0x62 // b: reboot
	MacQuery    Opcode = 0x6D // m: address query
	Run         Opcode = 0x72 // r: run
	StatusQuery Opcode = 0x75 // u: status query

	// Unrecognized is returned by Decode for every byte outside the table.
	// It never appears on the wire.
	Unrecognized Opcode = 0xFF
)

// Decode maps a wire byte to an Opcode. It never fails: bytes that are not
// part of the opcode table yield Unrecognized.
func Decode(b byte) Opcode {
	switch op := Opcode(b); op {
	case None, Boot, Mac, Status, Reset, MacQuery, Run, StatusQuery:
		return op
	default:
		return Unrecognized
	}
}

// Known reports whether op belongs to the wire opcode table.
func (op Opcode) Known() bool {
	return op != Unrecognized && Decode(byte(op)) == op
}

// String returns a human-readable name for the opcode
func (op Opcode) String() string {
	switch op {
	case None:
		return "None"
	case Boot:
		return "Boot"
	case Mac:
		return "Mac"
	case Status:
		return "Status"
	case Reset:
		return "Reset"
	case MacQuery:
		return "MacQuery"
	case Run:
		return "Run"
	case StatusQuery:
		return "StatusQuery"
	default:
		return "Unrecognized"
	}
}

// Parse returns the opcode whose String matches s, ignoring case.
func Parse(s string) (Opcode, bool) {
	for _, op := range All() {
		if strings.EqualFold(op.String(), s) {
			return op, true
		}
	}
	return Unrecognized, false
}

// All lists the wire opcode table in byte order.
func All() []Opcode {
	return []Opcode{None, Boot, Mac, Status, Reset, MacQuery, Run, StatusQuery}
}

// Package addrtable holds the ordered list of node physical addresses and
// maps the host's own address to its logical device number.
package addrtable

import (
	"errors"
	"fmt"

	"espnow-bridge/pkg/protocol"
)

// MaxNodes is the largest table a one-byte device number can index.
const MaxNodes = 255

var ErrTooManyNodes = errors.New("too many nodes for a one byte device number")

// Table is an ordered, read-only list of addresses. Index 0 is always the
// broadcast placeholder so that real nodes are numbered from 1.
type Table struct {
	addrs []protocol.Addr
}

// Default is the compiled-in table used when no nodes are configured.
var Default = New(
	protocol.MustParseAddr("50:02:91:9F:CF:9C"),
	protocol.MustParseAddr("50:02:91:87:95:81"),
)

// New builds a table from node addresses; the broadcast placeholder is
// prepended.
func New(nodes ...protocol.Addr) *Table {
	addrs := make([]protocol.Addr, 0, len(nodes)+1)
	addrs = append(addrs, protocol.BroadcastAddr)
	addrs = append(addrs, nodes...)
	return &Table{addrs: addrs}
}

// Parse is New for textual addresses, as found in configuration files.
func Parse(nodes []string) (*Table, error) {
	if len(nodes) > MaxNodes {
		return nil, fmt.Errorf("%w: %d > %d", ErrTooManyNodes, len(nodes), MaxNodes)
	}
	addrs := make([]protocol.Addr, 0, len(nodes))
	for i, s := range nodes {
		a, err := protocol.ParseAddr(s)
		if err != nil {
			return nil, fmt.Errorf("node %d: %w", i+1, err)
		}
		addrs = append(addrs, a)
	}
	return New(addrs...), nil
}

// Resolve returns the index of the first entry equal to self. When self is
// not listed it returns (0, false); 0 is also the broadcast slot, so callers
// must check ok before trusting the device number. Entries past MaxNodes
// have no device number and never resolve.
func (t *Table) Resolve(self protocol.Addr) (uint8, bool) {
	for i, a := range t.addrs {
		if i > MaxNodes {
			break
		}
		if a == self {
			return uint8(i), true
		}
	}
	return 0, false
}

// Contains is the addressing bound check applied to every downstream frame.
// Note the inclusive bound: devNo == Len() passes.
func (t *Table) Contains(devNo uint8) bool {
	return int(devNo) <= len(t.addrs)
}

// Len counts the entries, placeholder included.
func (t *Table) Len() int { return len(t.addrs) }

// At returns the address at index i.
func (t *Table) At(i int) (protocol.Addr, bool) {
	if i < 0 || i >= len(t.addrs) {
		return protocol.Addr{}, false
	}
	return t.addrs[i], true
}

// Addrs returns a copy of the entries.
func (t *Table) Addrs() []protocol.Addr {
	out := make([]protocol.Addr, len(t.addrs))
	copy(out, t.addrs)
	return out
}

// Nodes returns a copy of the entries without the broadcast placeholder.
func (t *Table) Nodes() []protocol.Addr {
	return t.Addrs()[1:]
}

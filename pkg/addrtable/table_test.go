package addrtable

import (
	"errors"
	"strings"
	"testing"

	"espnow-bridge/pkg/protocol"
)

var (
	nodeA = protocol.MustParseAddr("50:02:91:9F:CF:9C")
	nodeB = protocol.MustParseAddr("50:02:91:87:95:81")
)

func TestResolve(t *testing.T) {
	tests := []struct {
		name   string
		self   protocol.Addr
		wantNo uint8
		wantOk bool
	}{
		{"first node", nodeA, 1, true},
		{"second node", nodeB, 2, true},
		{"unknown", protocol.MustParseAddr("AA:BB:CC:DD:EE:FF"), 0, false},
		{"broadcast placeholder", protocol.BroadcastAddr, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			no, ok := Default.Resolve(tt.self)
			if no != tt.wantNo || ok != tt.wantOk {
				t.Errorf("Resolve(%s) = (%d, %v), want (%d, %v)", tt.self, no, ok, tt.wantNo, tt.wantOk)
			}
		})
	}
}

func TestContainsInclusiveBound(t *testing.T) {
	if Default.Len() != 3 {
		t.Fatalf("Len = %d, want 3", Default.Len())
	}
	for devNo := 0; devNo <= 3; devNo++ {
		if !Default.Contains(uint8(devNo)) {
			t.Errorf("Contains(%d) = false", devNo)
		}
	}
	if Default.Contains(4) {
		t.Errorf("Contains(4) = true")
	}
}

func TestParseAndCopies(t *testing.T) {
	tbl, err := Parse([]string{"50:02:91:9f:cf:9c"})
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if no, ok := tbl.Resolve(nodeA); !ok || no != 1 {
		t.Errorf("Resolve = (%d, %v)", no, ok)
	}

	addrs := tbl.Addrs()
	addrs[1] = nodeB
	if a, _ := tbl.At(1); a != nodeA {
		t.Errorf("table mutated through Addrs copy")
	}
	if _, err := Parse([]string{"nope"}); err == nil {
		t.Errorf("expected an error for a bad address")
	}
}

func nodeAddrs(n int) []protocol.Addr {
	addrs := make([]protocol.Addr, n)
	for i := range addrs {
		addrs[i] = protocol.Addr{0x02, 0, 0, 0, byte(i >> 8), byte(i)}
	}
	return addrs
}

func TestLargeTableNeverWrapsDeviceNumber(t *testing.T) {
	addrs := nodeAddrs(300)
	tbl := New(addrs...)

	if no, ok := tbl.Resolve(addrs[MaxNodes-1]); !ok || no != MaxNodes {
		t.Errorf("last numbered node resolves to (%d, %v), want (%d, true)", no, ok, MaxNodes)
	}
	// index 257 would truncate to device 1
	if no, ok := tbl.Resolve(addrs[256]); ok {
		t.Errorf("node past the device number range resolved to %d", no)
	}
}

func TestParseRejectsTooManyNodes(t *testing.T) {
	nodes := make([]string, 0, MaxNodes+1)
	for _, a := range nodeAddrs(MaxNodes + 1) {
		nodes = append(nodes, a.String())
	}
	if _, err := Parse(nodes); !errors.Is(err, ErrTooManyNodes) {
		t.Errorf("Parse(%d nodes) error = %v, want ErrTooManyNodes", len(nodes), err)
	}
	if _, err := Parse(nodes[:MaxNodes]); err != nil {
		t.Errorf("Parse(%d nodes) failed: %v", MaxNodes, err)
	}
}

func TestGraphviz(t *testing.T) {
	dot := Default.Graphviz(protocol.StationAddr(), nodeB)
	for _, want := range []string{
		protocol.StationAddrString,
		"\"" + nodeA.String() + "\" [color=grey",
		"\"" + nodeB.String() + "\" [color=green",
	} {
		if !strings.Contains(dot, want) {
			t.Errorf("graph missing %q:\n%s", want, dot)
		}
	}
	if strings.Contains(dot, protocol.BroadcastAddr.String()) {
		t.Errorf("broadcast placeholder should not be drawn")
	}
}

package fn

import "testing"

func TestT(t *testing.T) {
	if T(true, 1, 2) != 1 || T(false, "a", "b") != "b" {
		t.Fatal("T picked the wrong branch")
	}
}

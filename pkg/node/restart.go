package node

import "time"

// Restarter brings the host back to a clean state. Production
// implementations do not return.
type Restarter interface {
	Restart()
}

type RestarterFunc func()

func (f RestarterFunc) Restart() { f() }

// ExecRestarter re-executes the running binary in place.
type ExecRestarter struct{}

// resetSequence waits for the grace period so the radio can flush pending
// transmissions, then restarts.
func resetSequence(r Restarter, grace time.Duration, sleep func(time.Duration)) {
	sleep(grace)
	r.Restart()
}

//go:build unix

package node

import (
	"os"

	"golang.org/x/sys/unix"

	"espnow-bridge/pkg/log"
)

// Restart replaces the process image with a fresh copy of the binary. If
// that fails the process exits with status 3 so a supervisor restarts it.
func (ExecRestarter) Restart() {
	exe, err := os.Executable()
	if err == nil {
		log.Warn().Str("exe", exe).Msg("reset: re-executing")
		err = unix.Exec(exe, os.Args, os.Environ())
	}
	log.Error().Err(err).Msg("reset: exec failed, exiting")
	os.Exit(3)
}

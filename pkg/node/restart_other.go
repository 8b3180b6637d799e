//go:build !unix

package node

import (
	"os"

	"espnow-bridge/pkg/log"
)

func (ExecRestarter) Restart() {
	log.Warn().Msg("reset: exiting for supervisor restart")
	os.Exit(3)
}

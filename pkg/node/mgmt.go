package node

import (
	"encoding/json"
	"fmt"
	"strings"

	"espnow-bridge/internal/fn"
	"espnow-bridge/pkg/management"
)

func registerCommands(s *management.ManagementServer, e *Engine) {
	s.RegisterHandler("stats", "Show node counters as JSON", func(args []string) (string, error) {
		b, err := json.MarshalIndent(e.Snapshot(), "", "  ")
		if err != nil {
			return "", err
		}
		return string(b), nil
	})
	s.RegisterHandler("identity", "Show own address and device number", func(args []string) (string, error) {
		id := identity(e)
		if !id.Resolved {
			return fmt.Sprintf("OK: %s not in address table (dev 0)", id.Addr), nil
		}
		return fmt.Sprintf("OK: %s is device %d, upstream %s", id.Addr, id.DevNo, id.Upstream), nil
	})
	s.RegisterHandler("table", "List the address table", func(args []string) (string, error) {
		var b strings.Builder
		self := e.Addr()
		for i, a := range e.Table().Addrs() {
			mark := fn.T(a == self, " (self)", "")
			if i == 0 {
				mark = " (broadcast placeholder)"
			}
			fmt.Fprintf(&b, "%d  %s%s\n", i, a, mark)
		}
		return b.String(), nil
	})
	s.RegisterHandler("send-status", "Ask the worker to send a status report", func(args []string) (string, error) {
		e.RequestStatus()
		return "OK: status report requested", nil
	})
	s.RegisterHandler("boot", "Send a boot report now", func(args []string) (string, error) {
		if err := e.SendBoot(); err != nil {
			return "", err
		}
		return "OK: boot report sent", nil
	})
}

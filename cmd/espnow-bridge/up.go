package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"espnow-bridge/pkg/log"
	"espnow-bridge/pkg/node"
)

// nodeFlags map one to one onto configuration keys.
var nodeFlags = []cli.Flag{
	&cli.UintFlag{Name: "channel", Usage: "radio channel"},
	&cli.StringFlag{Name: "upstream", Usage: "upstream station `ADDR`"},
	&cli.StringSliceFlag{Name: "node", Usage: "address table entry `ADDR`, in order (repeatable)"},
	&cli.StringFlag{Name: "self", Usage: "override own radio `ADDR`"},
	&cli.StringFlag{Name: "interface", Aliases: []string{"i"}, Usage: "read own address from interface `NAME`"},
	&cli.StringFlag{Name: "listen", Usage: "UDP listen `HOST:PORT` of the emulated radio"},
	&cli.StringFlag{Name: "broadcast", Usage: "UDP broadcast `HOST:PORT` of the emulated radio"},
	&cli.IntFlag{Name: "queue-capacity", Usage: "relay queue size in `BYTES` (power of two)"},
	&cli.DurationFlag{Name: "poll-interval", Usage: "worker loop period"},
	&cli.DurationFlag{Name: "reset-grace", Usage: "delay before restarting on a reset frame"},
	&cli.StringFlag{Name: "api-listen", Usage: "HTTP API `HOST:PORT`, empty to disable"},
	&cli.StringFlag{Name: "mgmt-socket", Usage: "management unix socket `PATH`, empty to disable"},
	&cli.StringFlag{Name: "log-level", Usage: "trace, debug, info, warn or error"},
	&cli.StringFlag{Name: "log-db", Usage: "SQLite log database `FILE`, empty to disable"},
}

var flagKeys = map[string]string{
	"channel":        "channel",
	"upstream":       "upstream_addr",
	"node":           "nodes",
	"self":           "self_addr",
	"interface":      "interface",
	"listen":         "listen_addr",
	"broadcast":      "broadcast_addr",
	"queue-capacity": "queue_capacity",
	"poll-interval":  "poll_interval",
	"reset-grace":    "reset_grace",
	"api-listen":     "api_listen_address",
	"mgmt-socket":    "management_socket",
	"log-level":      "log_level",
	"log-db":         "log_db_file",
}

var upCommand = &cli.Command{
	Name:      "up",
	Usage:     "run the node",
	UsageText: "espnow-bridge up [options]",
	Flags:     nodeFlags,
	Action:    upCmd,
}

// loadConfig merges the flags that were actually given over the file and
// environment.
func loadConfig(c *cli.Context) (*node.Config, error) {
	overrides := make(map[string]any)
	for flag, key := range flagKeys {
		if !c.IsSet(flag) {
			continue
		}
		if flag == "node" {
			overrides[key] = c.StringSlice(flag)
			continue
		}
		overrides[key] = c.Value(flag)
	}
	return node.LoadConfig(c.String("config"), overrides)
}

func upCmd(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return cli.Exit(fmt.Sprintf("configuration: %v", err), 2)
	}
	if err := log.Setup(log.Options{Level: cfg.LogLevel, Console: true, DBFile: cfg.LogDBFile}); err != nil {
		return cli.Exit(fmt.Sprintf("logging: %v", err), 2)
	}
	defer log.Close()

	log.Info().Str("version", Version).Uint8("channel", cfg.Channel).Msg("starting espnow-bridge")

	n, err := node.New(cfg)
	if err != nil {
		return cli.Exit(fmt.Sprintf("node: %v", err), 1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runErr := n.Run(ctx)
	log.Info().Msg("shutting down")
	if err := n.Close(); err != nil {
		log.Warn().Err(err).Msg("shutdown incomplete")
	}
	return runErr
}

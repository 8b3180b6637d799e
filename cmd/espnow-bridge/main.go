package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

var configFlag = &cli.StringFlag{
	Name:    "config",
	Aliases: []string{"c"},
	Usage:   "YAML configuration `FILE` (default: espnow-bridge.yaml in ., /etc/espnow-bridge, ~/.espnow-bridge)",
	EnvVars: []string{"ESPNOW_CONFIG"},
}

func main() {
	app := &cli.App{
		Name:    "espnow-bridge",
		Usage:   "datagram radio node: answers station queries and reports status",
		Version: fmt.Sprintf("%s (built %s)", Version, BuildTime),
		Flags:   []cli.Flag{configFlag},
		Commands: []*cli.Command{
			upCommand,
			ctlCommand,
			logsCommand,
			sendCommand,
			topologyCommand,
		},
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

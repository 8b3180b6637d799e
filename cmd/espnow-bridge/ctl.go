package main

import (
	"fmt"
	"strings"

	"github.com/urfave/cli/v2"

	"espnow-bridge/pkg/management"
	"espnow-bridge/pkg/node"
)

var ctlCommand = &cli.Command{
	Name:      "ctl",
	Usage:     "send a command to the running node over the management socket",
	UsageText: "espnow-bridge ctl [--socket PATH] <command> [args...]\n\n   Try 'espnow-bridge ctl help' for the command list.",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "socket", Aliases: []string{"s"}, Usage: "management socket `PATH` (default from configuration)"},
	},
	Action: ctlCmd,
}

func ctlCmd(c *cli.Context) error {
	sock := c.String("socket")
	if sock == "" {
		cfg, err := node.LoadConfig(c.String("config"), nil)
		if err != nil {
			return cli.Exit(fmt.Sprintf("configuration: %v", err), 2)
		}
		sock = cfg.ManagementSocket
	}
	res, err := management.NewManagementClient(sock).SendCommand(strings.Join(c.Args().Slice(), " "))
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	fmt.Println(res)
	return nil
}

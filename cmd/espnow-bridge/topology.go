package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"espnow-bridge/pkg/addrtable"
	"espnow-bridge/pkg/protocol"
	"espnow-bridge/pkg/radio/udpradio"
)

var topologyCommand = &cli.Command{
	Name:  "topology",
	Usage: "draw the station and the address table",
	Flags: append([]cli.Flag{
		&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "write SVG to `FILE` instead of printing DOT"},
		&cli.BoolFlag{Name: "highlight-self", Usage: "highlight this host's own radio address"},
	}, nodeFlags...),
	Action: topologyCmd,
}

func topologyCmd(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return cli.Exit(fmt.Sprintf("configuration: %v", err), 2)
	}

	var self protocol.Addr
	if c.Bool("highlight-self") {
		self, err = udpradio.ResolveSelf(udpradio.Config{Self: cfg.Self(), Interface: cfg.Interface})
		if err != nil {
			return cli.Exit(err.Error(), 1)
		}
	}
	dot := cfg.Table().Graphviz(cfg.Upstream(), self)

	out := c.String("out")
	if out == "" {
		fmt.Print(dot)
		return nil
	}
	svg, err := addrtable.RenderSVG(c.Context, dot)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	return os.WriteFile(out, svg, 0o644)
}

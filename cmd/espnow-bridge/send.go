package main

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"espnow-bridge/pkg/log"
	"espnow-bridge/pkg/protocol"
	"espnow-bridge/pkg/protocol/spec"
	"espnow-bridge/pkg/radio"
	"espnow-bridge/pkg/radio/udpradio"
)

var sendCommand = &cli.Command{
	Name:      "send",
	Usage:     "act as the upstream station: send one frame and print the replies",
	UsageText: "espnow-bridge send [options] <opcode> <device> [payload-hex]\n\n   opcode is a name (MacQuery, StatusQuery, Run, Reset, ...) or a hex byte like 0x75",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "as", Usage: "own `ADDR` on the link", Value: protocol.StationAddrString},
		&cli.UintFlag{Name: "channel", Usage: "radio channel", Value: 1, EnvVars: []string{"ESPNOW_CHANNEL"}},
		&cli.StringFlag{Name: "listen", Usage: "UDP listen `HOST:PORT`", Value: udpradio.DefaultListenAddr},
		&cli.StringFlag{Name: "broadcast", Usage: "UDP broadcast `HOST:PORT`", Value: udpradio.DefaultBroadcastAddr},
		&cli.DurationFlag{Name: "wait", Aliases: []string{"w"}, Usage: "how long to print replies", Value: 2 * time.Second},
		&cli.BoolFlag{Name: "verbose", Aliases: []string{"v"}, Usage: "log radio activity to stderr"},
	},
	Action: sendCmd,
}

func parseOpcode(s string) (spec.Opcode, error) {
	if op, ok := spec.Parse(s); ok {
		return op, nil
	}
	b, err := hex.DecodeString(strings.TrimPrefix(strings.ToLower(s), "0x"))
	if err != nil || len(b) != 1 {
		return spec.Unrecognized, fmt.Errorf("unknown opcode %q", s)
	}
	// Unknown bytes are sent as is so nodes can be probed with garbage.
	return spec.Opcode(b[0]), nil
}

// encodeFrame checks known opcodes against the table; unknown bytes go out
// unchecked.
func encodeFrame(op spec.Opcode, dev uint8, payload []byte) ([]byte, error) {
	if op.Known() {
		return protocol.EncodeDownstream(op, dev, payload)
	}
	return protocol.EncodeRaw(byte(op), dev, payload)
}

// watchReplies prints every upstream report received on drv to out, and
// failed transmissions to errOut.
func watchReplies(drv radio.Driver, out, errOut io.Writer) error {
	err := drv.RegisterReceiveHandler(func(info radio.RecvInfo, data []byte) {
		u, err := protocol.ParseUpstream(data)
		if err != nil {
			fmt.Fprintf(out, "%s  % X  (%v)\n", info.Src, data, err)
			return
		}
		fmt.Fprintf(out, "%s  %s\n", info.Src, u)
	})
	if err != nil {
		return fmt.Errorf("register receive handler: %w", err)
	}
	err = drv.RegisterSendHandler(func(dst protocol.Addr, status radio.SendStatus) {
		if status != radio.SendSuccess {
			fmt.Fprintf(errOut, "send to %s: %s\n", dst, status)
		}
	})
	if err != nil {
		return fmt.Errorf("register send handler: %w", err)
	}
	return nil
}

func sendCmd(c *cli.Context) error {
	if c.NArg() < 2 {
		return cli.Exit("usage: "+c.Command.UsageText, 2)
	}
	op, err := parseOpcode(c.Args().Get(0))
	if err != nil {
		return cli.Exit(err.Error(), 2)
	}
	var dev uint8
	if _, err := fmt.Sscanf(c.Args().Get(1), "%d", &dev); err != nil {
		return cli.Exit(fmt.Sprintf("bad device number %q", c.Args().Get(1)), 2)
	}
	var payload []byte
	if c.NArg() > 2 {
		if payload, err = hex.DecodeString(c.Args().Get(2)); err != nil {
			return cli.Exit(fmt.Sprintf("bad payload: %v", err), 2)
		}
	}
	frame, err := encodeFrame(op, dev, payload)
	if err != nil {
		return cli.Exit(err.Error(), 2)
	}

	self, err := protocol.ParseAddr(c.String("as"))
	if err != nil {
		return cli.Exit(err.Error(), 2)
	}
	if c.Bool("verbose") {
		log.SetStd()
	}

	r, err := udpradio.Open(udpradio.Config{
		ListenAddr:    c.String("listen"),
		BroadcastAddr: c.String("broadcast"),
		Channel:       uint8(c.Uint("channel")),
		Self:          self,
	})
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	defer r.Close()

	if err := watchReplies(r, os.Stdout, os.Stderr); err != nil {
		return cli.Exit(err.Error(), 1)
	}

	if err := r.Send(protocol.BroadcastAddr, frame); err != nil {
		return cli.Exit(err.Error(), 1)
	}
	fmt.Fprintf(os.Stderr, "sent % X (%s to device %d), waiting %s for replies\n", frame, op, dev, c.Duration("wait"))
	time.Sleep(c.Duration("wait"))
	return nil
}

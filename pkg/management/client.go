package management

import (
	"bufio"
	"fmt"
	"net"
	"time"
)

const (
	connectTimeout   = 1 * time.Second
	readWriteTimeout = 8 * time.Second
)

type ManagementClient struct {
	socketPath string
}

func NewManagementClient(socketPath string) *ManagementClient {
	return &ManagementClient{socketPath: socketPath}
}

func (c *ManagementClient) IsManagementServerStarted() bool {
	res, err := c.SendCommand("ping")
	return err == nil && res == pongString
}

// SendCommand runs one command on the daemon. An empty command asks for help.
func (c *ManagementClient) SendCommand(command string) (string, error) {
	if command == "" {
		command = "help"
	}
	conn, err := net.DialTimeout("unix", c.socketPath, connectTimeout)
	if err != nil {
		return "", fmt.Errorf("connect to %s: %w (is the daemon running?)", c.socketPath, err)
	}
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(readWriteTimeout)); err != nil {
		return "", fmt.Errorf("set deadline: %w", err)
	}
	if _, err := fmt.Fprintf(conn, "%s\n", command); err != nil {
		return "", fmt.Errorf("send command: %w", err)
	}
	res, err := recvMessage(bufio.NewReader(conn))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	return res, nil
}

// Package management exposes a line-based command interface on a unix
// socket. Handlers are registered by the daemon; ctl-style clients send one
// command per line and read back a dot-terminated response.
package management

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"espnow-bridge/pkg/log"
)

const (
	pongString = "OK: pong"

	idleTimeout   = 30 * time.Second
	acceptTimeout = time.Second
	defaultLogs   = 20
)

// CommandHandler gets the command arguments and returns the response text.
type CommandHandler func(args []string) (string, error)

type CommandInfo struct {
	Handler     CommandHandler
	Description string
}

type ManagementServer struct {
	socketPath string
	listener   net.Listener
	handlers   map[string]CommandInfo
	mu         sync.RWMutex
	quit       chan struct{}
	wg         sync.WaitGroup
	startTime  time.Time
}

// NewManagementServer prepares a server on socketPath with the built-in
// status, ping, logs and help commands.
func NewManagementServer(socketPath string) *ManagementServer {
	s := &ManagementServer{
		socketPath: socketPath,
		handlers:   make(map[string]CommandInfo),
		quit:       make(chan struct{}),
		startTime:  time.Now(),
	}
	s.RegisterHandler("status", "Show daemon status and uptime", s.handleStatusCommand)
	s.RegisterHandler("ping", "Check if the management interface is responsive", s.handlePingCommand)
	s.RegisterHandler("logs", "Last log entries. Usage: logs [pretty] [count]", s.handleLogsCommand)
	s.RegisterHandler("help", "Show help for commands. Usage: help [command]", s.handleHelpCommand)
	s.RegisterHandler("list", "Alias for 'help'", s.handleHelpCommand)
	return s
}

func (s *ManagementServer) SocketPath() string { return s.socketPath }

// RegisterHandler adds or replaces a command. Names are case-insensitive.
func (s *ManagementServer) RegisterHandler(command, description string, handler CommandHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	name := strings.ToLower(command)
	if _, exists := s.handlers[name]; exists {
		log.Warn().Str("command", name).Msg("mgmt: overwriting handler")
	}
	s.handlers[name] = CommandInfo{Handler: handler, Description: description}
	log.Debug().Str("command", name).Msg("mgmt: registered handler")
}

// Start listens on the socket, replacing a stale socket file if needed.
func (s *ManagementServer) Start() error {
	s.quit = make(chan struct{})

	if err := os.MkdirAll(filepath.Dir(s.socketPath), 0o755); err != nil {
		return fmt.Errorf("mgmt: create socket directory: %w", err)
	}
	if err := os.Remove(s.socketPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn().Err(err).Str("socket", s.socketPath).Msg("mgmt: failed to remove stale socket")
	}

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("mgmt: failed to listen on socket %s: %w", s.socketPath, err)
	}
	s.listener = listener
	if err := os.Chmod(s.socketPath, 0o600); err != nil {
		log.Warn().Err(err).Msg("mgmt: could not set socket permissions")
	}

	log.Info().Str("socket", s.socketPath).Msg("mgmt: management server listening")
	s.wg.Add(1)
	go s.acceptLoop()
	return nil
}

// Stop closes the listener, waits for client connections and removes the
// socket file.
func (s *ManagementServer) Stop() {
	close(s.quit)
	if s.listener != nil {
		s.listener.Close()
	}
	s.wg.Wait()
	if err := os.Remove(s.socketPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn().Err(err).Str("socket", s.socketPath).Msg("mgmt: failed to remove socket file")
	}
	log.Info().Msg("mgmt: server stopped")
}

func (s *ManagementServer) acceptLoop() {
	defer s.wg.Done()
	for {
		select {
		case <-s.quit:
			return
		default:
		}
		if ul, ok := s.listener.(*net.UnixListener); ok {
			_ = ul.SetDeadline(time.Now().Add(acceptTimeout))
		}
		conn, err := s.listener.Accept()
		if err != nil {
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				continue
			}
			select {
			case <-s.quit:
				return
			default:
				log.Error().Err(err).Msg("mgmt: accept failed")
				time.Sleep(100 * time.Millisecond)
				continue
			}
		}
		s.wg.Add(1)
		go s.handleConnection(conn)
	}
}

func (s *ManagementServer) handleConnection(conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()

	reader := bufio.NewReader(conn)
	writer := bufio.NewWriter(conn)
	for {
		conn.SetReadDeadline(time.Now().Add(idleTimeout))
		cmdLine, err := reader.ReadString('\n')
		if err != nil {
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				sendMessage(writer, "error: read timeout")
			} else if !errors.Is(err, io.EOF) {
				log.Debug().Err(err).Msg("mgmt: read failed")
			}
			return
		}
		conn.SetReadDeadline(time.Time{})

		cmdLine = strings.TrimSpace(cmdLine)
		if cmdLine == "" {
			continue
		}
		if cmdLine == "quit" {
			sendMessage(writer, "OK: Bye!")
			return
		}
		if err := sendMessage(writer, s.Execute(cmdLine)); err != nil {
			log.Debug().Err(err).Msg("mgmt: write failed")
			return
		}
	}
}

// Execute runs one command line and returns the response text.
func (s *ManagementServer) Execute(cmdLine string) string {
	parts := strings.Fields(cmdLine)
	if len(parts) == 0 {
		return "Error: empty command. Try 'help'."
	}
	command := strings.ToLower(parts[0])

	s.mu.RLock()
	info, ok := s.handlers[command]
	s.mu.RUnlock()
	if !ok {
		log.Debug().Str("command", command).Msg("mgmt: unknown command")
		return fmt.Sprintf("Error: Unknown command '%s'. Try 'help'.", command)
	}
	response, err := info.Handler(parts[1:])
	if err != nil {
		log.Warn().Err(err).Str("command", command).Msg("mgmt: handler failed")
		return fmt.Sprintf("Error: %s: %v", command, err)
	}
	return response
}

func (s *ManagementServer) handleStatusCommand(args []string) (string, error) {
	uptime := time.Since(s.startTime).Round(time.Second)
	return fmt.Sprintf("OK: Daemon running. Uptime: %s", uptime), nil
}

func (s *ManagementServer) handlePingCommand(args []string) (string, error) {
	return pongString, nil
}

func (s *ManagementServer) handleLogsCommand(args []string) (string, error) {
	pretty := false
	n := defaultLogs
	for _, a := range args {
		if a == "pretty" {
			pretty = true
			continue
		}
		if _, err := fmt.Sscanf(a, "%d", &n); err != nil {
			return "", fmt.Errorf("bad count %q", a)
		}
	}

	entries, err := log.GetLastNLogs(n)
	if err != nil {
		return "", err
	}
	if !pretty {
		var b strings.Builder
		for _, e := range entries {
			b.WriteString(strings.TrimRight(e.LogData, "\n"))
			b.WriteByte('\n')
		}
		return b.String(), nil
	}

	var b bytes.Buffer
	w := zerolog.ConsoleWriter{Out: &b, TimeFormat: time.RFC3339, NoColor: true}
	for _, e := range entries {
		if _, err := w.Write([]byte(e.LogData)); err != nil {
			b.WriteString(e.LogData)
		}
	}
	return b.String(), nil
}

func (s *ManagementServer) handleHelpCommand(args []string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var b strings.Builder
	if len(args) > 0 {
		name := strings.ToLower(args[0])
		info, ok := s.handlers[name]
		if !ok {
			return fmt.Sprintf("Error: Unknown command '%s'. Try 'help' for a list.", name), nil
		}
		fmt.Fprintf(&b, "OK: Help for '%s':\n  %s", name, info.Description)
		return b.String(), nil
	}

	cmds := make([]string, 0, len(s.handlers))
	maxLen := 0
	for cmd := range s.handlers {
		cmds = append(cmds, cmd)
		maxLen = max(maxLen, len(cmd))
	}
	sort.Strings(cmds)

	b.WriteString("OK: Available commands:\n")
	for _, cmd := range cmds {
		fmt.Fprintf(&b, "  %-*s  %s\n", maxLen, cmd, s.handlers[cmd].Description)
	}
	b.WriteString("\nUse 'help <command>' for more details on a specific command.")
	return b.String(), nil
}

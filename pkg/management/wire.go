package management

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// A response is any number of lines closed by a line holding a single dot.
// Lines starting with a dot are sent with an extra dot in front.
const endOfMessage = "."

func sendMessage(w *bufio.Writer, msg string) error {
	for _, line := range strings.Split(strings.TrimRight(msg, "\n"), "\n") {
		if strings.HasPrefix(line, ".") {
			line = "." + line
		}
		if _, err := w.WriteString(line + "\n"); err != nil {
			return err
		}
	}
	if _, err := w.WriteString(endOfMessage + "\n"); err != nil {
		return err
	}
	return w.Flush()
}

func recvMessage(r *bufio.Reader) (string, error) {
	var b strings.Builder
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				return "", fmt.Errorf("connection closed before end of response")
			}
			return "", err
		}
		line = strings.TrimRight(line, "\r\n")
		if line == endOfMessage {
			return strings.TrimRight(b.String(), "\n"), nil
		}
		b.WriteString(strings.TrimPrefix(line, "."))
		b.WriteByte('\n')
	}
}

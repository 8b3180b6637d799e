package machine

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"espnow-bridge/pkg/appdir"
)

const idFile = "machine-id"

var (
	idMu    sync.Mutex
	idCache []byte
)

// idPath is swapped in tests.
var idPath = func() string { return appdir.Path(idFile) }

func ensureMachineID(fp string) error {
	if _, err := os.Stat(fp); err == nil {
		return nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return err
	}
	id := make([]byte, 16)
	if _, err := rand.Read(id); err != nil {
		return fmt.Errorf("generate machine id: %w", err)
	}
	if err := os.WriteFile(fp, []byte(hex.EncodeToString(id)), 0o644); err != nil {
		return fmt.Errorf("write machine id: %w", err)
	}
	return nil
}

// GetMachineID returns the 16 random bytes persisted in the application
// directory, creating them on first call.
func GetMachineID() ([]byte, error) {
	idMu.Lock()
	defer idMu.Unlock()
	if idCache != nil {
		return idCache, nil
	}
	fp := idPath()
	if err := ensureMachineID(fp); err != nil {
		return nil, err
	}
	content, err := os.ReadFile(fp)
	if err != nil {
		return nil, fmt.Errorf("read machine id: %w", err)
	}
	idStr := strings.TrimSpace(string(content))
	if len(idStr) != 32 {
		return nil, fmt.Errorf("malformed machine id in %s", fp)
	}
	data, err := hex.DecodeString(idStr)
	if err != nil {
		return nil, fmt.Errorf("decode machine id: %w", err)
	}
	idCache = data
	return idCache, nil
}

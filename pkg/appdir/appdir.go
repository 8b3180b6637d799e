// Package appdir locates the per-user state directory (machine id, log
// database, management socket).
package appdir

import (
	"os"
	"path/filepath"
	"sync"
)

const dirName = ".espnow-bridge"

var (
	once     sync.Once
	dirCache string
)

// AppDir returns ~/.espnow-bridge, creating it on first use. When the home
// directory cannot be determined the system temp directory is used instead.
func AppDir() string {
	once.Do(func() {
		base, err := os.UserHomeDir()
		if err != nil {
			base = os.TempDir()
		}
		dirCache = filepath.Join(base, dirName)
		_ = os.MkdirAll(dirCache, 0o755)
	})
	return dirCache
}

// Path joins elem under AppDir.
func Path(elem ...string) string {
	return filepath.Join(append([]string{AppDir()}, elem...)...)
}

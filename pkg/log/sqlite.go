package log

import (
	"database/sql"
	"errors"
	"fmt"
	stdlog "log"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"espnow-bridge/pkg/appdir"
)

const timeFieldFormat = time.RFC3339Nano

var (
	ErrNotInitialized = errors.New("log: sqlite sink not initialized")
	ErrAlreadyOpen    = errors.New("log: sqlite sink already open")

	sink            *sqliteWriter
	writeSinceStart atomic.Int64
)

type sqliteWriter struct {
	mu   sync.Mutex
	db   *sql.DB
	stmt *sql.Stmt
}

const schema = `
CREATE TABLE IF NOT EXISTS logs (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    inserted_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP NOT NULL,
    log_data TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_logs_json_time ON logs (json_extract(log_data, '$.time'));
CREATE INDEX IF NOT EXISTS idx_logs_json_level ON logs (json_extract(log_data, '$.level'));`

// DBPath resolves a database file name against the application directory.
func DBPath(dbFile string) string {
	if filepath.IsAbs(dbFile) {
		return dbFile
	}
	return appdir.Path(dbFile)
}

// OpenDB opens a log database for reading or writing and makes sure the
// schema exists.
func OpenDB(dbFile string) (*sql.DB, error) {
	p := DBPath(dbFile)
	dsn := fmt.Sprintf("%s?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)", p)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db %s: %w", p, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite db %s: %w", p, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create logs schema: %w", err)
	}
	return db, nil
}

func openSink(dbFile string) (*sqliteWriter, error) {
	mu.Lock()
	defer mu.Unlock()
	if sink != nil {
		return nil, ErrAlreadyOpen
	}
	db, err := OpenDB(dbFile)
	if err != nil {
		return nil, err
	}
	stmt, err := db.Prepare(`INSERT INTO logs (log_data) VALUES (?)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("prepare log insert: %w", err)
	}
	sink = &sqliteWriter{db: db, stmt: stmt}
	writeSinceStart.Store(0)
	return sink, nil
}

func (w *sqliteWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stmt == nil {
		return 0, ErrNotInitialized
	}
	if _, err := w.stmt.Exec(string(p)); err != nil {
		stdlog.Printf("log: sqlite write failed: %v", err)
		return 0, err
	}
	writeSinceStart.Add(1)
	return len(p), nil
}

func (w *sqliteWriter) close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	var result *multierror.Error
	if w.stmt != nil {
		result = multierror.Append(result, w.stmt.Close())
		w.stmt = nil
	}
	if w.db != nil {
		result = multierror.Append(result, w.db.Close())
		w.db = nil
	}
	return result.ErrorOrNil()
}

// Close flushes a last entry into the SQLite sink and closes it. The package
// logger is reset to a no-op.
func Close() error {
	mu.Lock()
	w := sink
	sink = nil
	setLogger(zerolog.Nop())
	mu.Unlock()

	if w == nil {
		return nil
	}
	l := zerolog.New(w).With().Timestamp().Logger()
	l.Log().Msg("closing sqlite logger")
	if err := w.close(); err != nil {
		return fmt.Errorf("close sqlite logger: %w", err)
	}
	return nil
}

func handle() (*sql.DB, error) {
	mu.RLock()
	defer mu.RUnlock()
	if sink == nil || sink.db == nil {
		return nil, ErrNotInitialized
	}
	return sink.db, nil
}

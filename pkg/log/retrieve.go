package log

import (
	"database/sql"
	"fmt"
	"time"
)

// DefaultLimit caps time-range queries when no limit is given.
const DefaultLimit = 100

type LogEntry struct {
	ID         int64
	InsertedAt time.Time
	LogData    string // raw JSON line
}

// Reader queries a log database. The package-level Get* functions use the
// database of the running sink; a Reader can also be built on a database
// opened with OpenDB, e.g. from another process.
type Reader struct {
	db *sql.DB
}

func NewReader(db *sql.DB) *Reader { return &Reader{db: db} }

var dbTimeFormats = []string{
	"2006-01-02 15:04:05",
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999",
}

func parseDBTimestamp(ts string) time.Time {
	for _, f := range dbTimeFormats {
		if t, err := time.Parse(f, ts); err == nil {
			return t
		}
	}
	return time.Time{}
}

func scanEntries(rows *sql.Rows) ([]LogEntry, error) {
	defer rows.Close()
	var logs []LogEntry
	for rows.Next() {
		var e LogEntry
		var ts string
		if err := rows.Scan(&e.ID, &ts, &e.LogData); err != nil {
			return nil, fmt.Errorf("scan log entry: %w", err)
		}
		e.InsertedAt = parseDBTimestamp(ts)
		logs = append(logs, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate log rows: %w", err)
	}
	return logs, nil
}

// LastN returns the n most recent entries, oldest first.
func (r *Reader) LastN(n int) ([]LogEntry, error) {
	if n <= 0 {
		return []LogEntry{}, nil
	}
	rows, err := r.db.Query(`SELECT id, inserted_at, log_data FROM logs ORDER BY id DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("query last %d logs: %w", n, err)
	}
	logs, err := scanEntries(rows)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(logs)-1; i < j; i, j = i+1, j-1 {
		logs[i], logs[j] = logs[j], logs[i]
	}
	return logs, nil
}

// Between returns entries whose event time lies in [start, end], in event
// time order. limit <= 0 means DefaultLimit.
func (r *Reader) Between(start, end time.Time, limit int) ([]LogEntry, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	from, to := start.Format(timeFieldFormat), end.Format(timeFieldFormat)
	rows, err := r.db.Query(`
        SELECT id, inserted_at, log_data
        FROM logs
        WHERE json_extract(log_data, '$.time') >= ? AND json_extract(log_data, '$.time') <= ?
        ORDER BY json_extract(log_data, '$.time') ASC, id ASC
        LIMIT ?`, from, to, limit)
	if err != nil {
		return nil, fmt.Errorf("query logs between %s and %s: %w", from, to, err)
	}
	return scanEntries(rows)
}

func (r *Reader) Since(start time.Time, limit int) ([]LogEntry, error) {
	return r.Between(start, time.Now(), limit)
}

func currentReader() (*Reader, error) {
	db, err := handle()
	if err != nil {
		return nil, err
	}
	return NewReader(db), nil
}

func GetLastNLogs(n int) ([]LogEntry, error) {
	r, err := currentReader()
	if err != nil {
		return nil, err
	}
	return r.LastN(n)
}

func GetLogsBetween(start, end time.Time, limit int) ([]LogEntry, error) {
	r, err := currentReader()
	if err != nil {
		return nil, err
	}
	return r.Between(start, end, limit)
}

func GetLogsSince(start time.Time, limit int) ([]LogEntry, error) {
	return GetLogsBetween(start, time.Now(), limit)
}

// GetLogsSinceStart returns every entry written since the sink was opened.
func GetLogsSinceStart() ([]LogEntry, error) {
	return GetLastNLogs(int(writeSinceStart.Load()))
}

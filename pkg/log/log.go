// Package log is the process-wide zerolog logger. Output goes to the console,
// to a SQLite database, or both; the database side also backs log retrieval
// for the management socket and the logs command.
package log

import (
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// mu guards the SQLite sink; the logger itself is swapped atomically so the
// event constructors never lock.
var (
	mu      sync.RWMutex
	current atomic.Pointer[zerolog.Logger]
)

func init() {
	setLogger(zerolog.Nop())
}

// Options select the log sinks.
type Options struct {
	// Level is parsed with zerolog.ParseLevel. Empty means info.
	Level string
	// Console enables human-readable output on stderr.
	Console bool
	// DBFile enables the SQLite sink. Relative paths live in the
	// application directory.
	DBFile string
}

// Setup replaces the package logger according to opts.
func Setup(opts Options) error {
	lvl := zerolog.InfoLevel
	if opts.Level != "" {
		l, err := zerolog.ParseLevel(opts.Level)
		if err != nil {
			return fmt.Errorf("log level %q: %w", opts.Level, err)
		}
		lvl = l
	}

	var writers []io.Writer
	if opts.Console {
		writers = append(writers, consoleWriter(os.Stderr))
	}
	if opts.DBFile != "" {
		w, err := openSink(opts.DBFile)
		if err != nil {
			return err
		}
		writers = append(writers, w)
	}

	switch len(writers) {
	case 0:
		setLogger(zerolog.Nop())
	case 1:
		setLogger(newLogger(writers[0], lvl))
	default:
		setLogger(newLogger(zerolog.MultiLevelWriter(writers...), lvl))
	}
	return nil
}

// SetStd logs to stdout in console format at debug level.
func SetStd() {
	setLogger(newLogger(consoleWriter(os.Stdout), zerolog.DebugLevel))
}

// SetOutput logs JSON lines to w. Mostly useful in tests.
func SetOutput(w io.Writer, lvl zerolog.Level) {
	setLogger(newLogger(w, lvl))
}

// Init logs to the SQLite database only, like Setup with only DBFile set.
func Init(dbFile string) error {
	if dbFile == "" {
		return fmt.Errorf("log: database file name required")
	}
	return Setup(Options{Level: "debug", DBFile: dbFile})
}

func consoleWriter(out io.Writer) io.Writer {
	return zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
}

func newLogger(w io.Writer, lvl zerolog.Level) zerolog.Logger {
	zerolog.TimeFieldFormat = timeFieldFormat
	return zerolog.New(w).Level(lvl).With().Timestamp().Logger()
}

func setLogger(l zerolog.Logger) {
	current.Store(&l)
}

// Logger returns the current package logger. It is shared; derive a child
// with With() instead of modifying it.
func Logger() *zerolog.Logger {
	return current.Load()
}

func Debug() *zerolog.Event { return Logger().Debug() }
func Info() *zerolog.Event  { return Logger().Info() }
func Warn() *zerolog.Event  { return Logger().Warn() }
func Error() *zerolog.Event { return Logger().Error() }
func Fatal() *zerolog.Event { return Logger().Fatal() }
func Log() *zerolog.Event   { return Logger().Log() }

// Printf logs at info level, formatting like fmt.Printf.
func Printf(format string, v ...any) {
	Logger().Info().CallerSkipFrame(1).Msgf(format, v...)
}

func Fatalf(format string, v ...any) {
	Logger().Fatal().Msgf(format, v...)
}

package log

import (
	"bytes"
	"io"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestSetOutputLevel(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf, zerolog.InfoLevel)
	t.Cleanup(func() { setLogger(zerolog.Nop()) })

	Debug().Msg("hidden")
	Info().Str("peer", "48:E7:29:24:81:29").Msg("visible")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("debug entry leaked at info level: %s", out)
	}
	if !strings.Contains(out, `"peer":"48:E7:29:24:81:29"`) {
		t.Errorf("structured field missing: %s", out)
	}
}

func TestDisabledEventsDoNotAllocate(t *testing.T) {
	SetOutput(io.Discard, zerolog.InfoLevel)
	t.Cleanup(func() { setLogger(zerolog.Nop()) })

	allocs := testing.AllocsPerRun(100, func() {
		Debug().Str("src", "50:02:91:9F:CF:9C").Int("len", 11).Msg("dropped")
	})
	if allocs != 0 {
		t.Errorf("disabled debug event allocated %.1f times", allocs)
	}
	if Logger() != Logger() {
		t.Errorf("Logger should return the shared instance")
	}
}

func TestSetupRejectsBadLevel(t *testing.T) {
	if err := Setup(Options{Level: "loud"}); err == nil {
		t.Fatal("expected an error for an unknown level")
	}
}

func TestSQLiteSinkRetrieval(t *testing.T) {
	dbFile := filepath.Join(t.TempDir(), "logs.db")
	if err := Setup(Options{Level: "debug", DBFile: dbFile}); err != nil {
		t.Fatalf("Setup failed: %v", err)
	}
	t.Cleanup(func() { Close() })

	if err := Setup(Options{DBFile: dbFile}); err == nil {
		t.Errorf("second sink should be refused")
	}

	start := time.Now().Add(-time.Second)
	for i := 0; i < 5; i++ {
		Info().Int("i", i).Msg("entry")
	}

	last, err := GetLastNLogs(2)
	if err != nil {
		t.Fatalf("GetLastNLogs failed: %v", err)
	}
	if len(last) != 2 {
		t.Fatalf("got %d entries, want 2", len(last))
	}
	if !strings.Contains(last[0].LogData, `"i":3`) || !strings.Contains(last[1].LogData, `"i":4`) {
		t.Errorf("unexpected order: %q, %q", last[0].LogData, last[1].LogData)
	}

	all, err := GetLogsSinceStart()
	if err != nil {
		t.Fatalf("GetLogsSinceStart failed: %v", err)
	}
	if len(all) != 5 {
		t.Errorf("got %d entries since start, want 5", len(all))
	}

	since, err := GetLogsSince(start, 0)
	if err != nil {
		t.Fatalf("GetLogsSince failed: %v", err)
	}
	if len(since) != 5 {
		t.Errorf("got %d entries since %s, want 5", len(since), start)
	}
}

func TestRetrievalWithoutSink(t *testing.T) {
	if _, err := GetLastNLogs(1); err != ErrNotInitialized {
		t.Errorf("expected ErrNotInitialized, got %v", err)
	}
}

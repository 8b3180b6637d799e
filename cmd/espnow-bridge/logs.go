package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"espnow-bridge/pkg/log"
	"espnow-bridge/pkg/node"
)

var timeFormats = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// parseTimeSpec accepts either a duration back from now ("90s", "1h30m")
// or an absolute timestamp.
func parseTimeSpec(spec string, now time.Time) (time.Time, error) {
	if d, err := time.ParseDuration(spec); err == nil {
		return now.Add(-d), nil
	}
	for _, layout := range timeFormats {
		if ts, err := time.ParseInLocation(layout, spec, time.Local); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid time specification %q: use a duration like '1h' or a timestamp like '2024-05-01T15:04:05Z'", spec)
}

const logsCommandHelpTemplate = `NAME:
   {{.HelpName}} - {{.Usage}}

USAGE:
   {{.HelpName}} {{if .UsageText}}{{.UsageText}}{{else}}[command options]{{end}}
{{if .Description}}
DESCRIPTION:
   {{.Description | Indent 4}}
{{end}}
MODES (choose one; defaults to --last):
     --last       the most recent N entries
     --since      entries from a start time up to now
     --between    entries between a start and an end time

OPTIONS:
{{range .VisibleFlags}}   {{.}}
{{end}}
TIME SPECIFICATION:
     A duration back from now ("5m", "1h30m") or a timestamp
     ("2024-05-01T15:04:05Z", "2024-05-01 10:00:00", "2024-05-01").
     Timestamps without a zone are local time.

EXAMPLES:
     espnow-bridge logs -n 50
     espnow-bridge logs --since -s 1h --pretty
     espnow-bridge logs --between -s 2h -e 1h -l 500
`

var logsCommand = &cli.Command{
	Name:               "logs",
	Usage:              "read log entries from the node's SQLite log database",
	UsageText:          "espnow-bridge logs [--dbfile FILE] [--last|--since|--between] [mode options]",
	Description:        "Reads the database directly, so it also works when the node is not running.",
	CustomHelpTemplate: logsCommandHelpTemplate,
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "dbfile", Aliases: []string{"f"}, Usage: "log database `FILE` (default from configuration)"},
		&cli.BoolFlag{Name: "pretty", Aliases: []string{"p"}, Usage: "human readable output instead of JSON lines"},
		&cli.BoolFlag{Name: "last", Usage: "mode: the most recent entries (default)"},
		&cli.BoolFlag{Name: "since", Usage: "mode: entries since --start"},
		&cli.BoolFlag{Name: "between", Usage: "mode: entries between --start and --end"},
		&cli.IntFlag{Name: "count", Aliases: []string{"n"}, Usage: "entries for --last `NUMBER`", Value: 100},
		&cli.StringFlag{Name: "start", Aliases: []string{"s"}, Usage: "start `TIME_SPEC`"},
		&cli.StringFlag{Name: "end", Aliases: []string{"e"}, Usage: "end `TIME_SPEC`"},
		&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Usage: "max entries for --since/--between `NUMBER`", Value: 1000},
	},
	Action: logsCmd,
}

type logQuery struct {
	mode       string
	count      int
	start, end time.Time
	limit      int
}

func parseLogQuery(c *cli.Context, now time.Time) (logQuery, error) {
	q := logQuery{mode: "last", count: c.Int("count"), limit: c.Int("limit")}
	modes := 0
	for _, m := range []string{"last", "since", "between"} {
		if c.Bool(m) {
			q.mode = m
			modes++
		}
	}
	if modes > 1 {
		return q, errors.New("only one of --last, --since, --between may be given")
	}

	var err error
	switch q.mode {
	case "last":
		if q.count <= 0 {
			return q, errors.New("--count must be positive")
		}
	case "since", "between":
		if !c.IsSet("start") {
			return q, fmt.Errorf("--start is required for --%s", q.mode)
		}
		if q.start, err = parseTimeSpec(c.String("start"), now); err != nil {
			return q, err
		}
		q.end = now
		if q.mode == "between" {
			if !c.IsSet("end") {
				return q, errors.New("--end is required for --between")
			}
			if q.end, err = parseTimeSpec(c.String("end"), now); err != nil {
				return q, err
			}
		}
	}
	return q, nil
}

func logsCmd(c *cli.Context) error {
	q, err := parseLogQuery(c, time.Now())
	if err != nil {
		return cli.Exit("Error: "+err.Error(), 1)
	}

	dbFile := c.String("dbfile")
	if dbFile == "" {
		cfg, err := node.LoadConfig(c.String("config"), nil)
		if err != nil {
			return cli.Exit(fmt.Sprintf("configuration: %v", err), 2)
		}
		dbFile = cfg.LogDBFile
	}
	if _, err := os.Stat(log.DBPath(dbFile)); err != nil {
		return cli.Exit(fmt.Sprintf("Error: log database %s: %v", log.DBPath(dbFile), err), 1)
	}
	db, err := log.OpenDB(dbFile)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	defer db.Close()
	r := log.NewReader(db)

	var entries []log.LogEntry
	switch q.mode {
	case "last":
		entries, err = r.LastN(q.count)
	default:
		entries, err = r.Between(q.start, q.end, q.limit)
	}
	if err != nil {
		return cli.Exit(fmt.Sprintf("Error retrieving logs: %v", err), 1)
	}
	if len(entries) == 0 {
		fmt.Fprintln(os.Stderr, "No log entries found matching the criteria.")
		return nil
	}

	if c.Bool("pretty") {
		w := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
		for _, e := range entries {
			if _, err := w.Write([]byte(e.LogData)); err != nil {
				fmt.Println(e.LogData)
			}
		}
		return nil
	}
	for _, e := range entries {
		fmt.Println(e.LogData)
	}
	return nil
}

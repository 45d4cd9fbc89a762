// Package cli implements the sheetclean command, which cleans a local
// spreadsheet without starting the web server.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	flags "github.com/jessevdk/go-flags"

	"github.com/JonMunkholm/sheetclean/internal/core"
)

// Options defines the command line flags.
type Options struct {
	Output      string `short:"o" long:"output" default:"cleaned_file.xlsx" description:"Path of the cleaned workbook"`
	Sheet       string `short:"s" long:"sheet" description:"Worksheet to clean (default: first sheet)"`
	OutputSheet string `long:"output-sheet" default:"Sheet1" description:"Sheet name in the cleaned workbook"`
	Changes     string `short:"c" long:"changes" description:"Also write the change report as CSV to this path"`
	DryRun      bool   `short:"n" long:"dry-run" description:"Report what would change without writing files"`
	JSON        bool   `long:"json" description:"Print the summary as JSON"`
	Verbose     bool   `short:"v" long:"verbose" description:"List every changed cell"`
	LogLevel    string `long:"log-level" default:"warn" choice:"debug" choice:"info" choice:"warn" choice:"error" description:"Log level"`

	Args struct {
		Input string `positional-arg-name:"FILE" required:"yes"`
	} `positional-args:"yes"`
}

// ParseArgs parses args (without the program name). A help request returns
// a *flags.Error of type flags.ErrHelp carrying the usage text.
func ParseArgs(args []string) (*Options, error) {
	var opts Options
	parser := flags.NewParser(&opts, flags.HelpFlag|flags.PassDoubleDash)
	parser.Name = "sheetclean"
	parser.Usage = "[OPTIONS] FILE"
	if _, err := parser.ParseArgs(args); err != nil {
		return nil, err
	}
	return &opts, nil
}

// IsHelp reports whether err is a help request from ParseArgs.
func IsHelp(err error) bool {
	var ferr *flags.Error
	return errors.As(err, &ferr) && ferr.Type == flags.ErrHelp
}

// Summary is the result of one run.
type Summary struct {
	Input        string            `json:"input"`
	Output       string            `json:"output,omitempty"`
	ChangesFile  string            `json:"changes_file,omitempty"`
	Rows         int               `json:"rows"`
	Columns      int               `json:"columns"`
	ChangedCells int               `json:"changed_cells"`
	Changes      core.ChangeLedger `json:"changes"`
	DurationMS   int64             `json:"duration_ms"`
}

// Run cleans opts.Args.Input and prints a summary to stdout.
func Run(ctx context.Context, opts *Options, stdout io.Writer) error {
	start := time.Now()
	logger := slog.With("input", opts.Args.Input)

	in, err := os.Open(opts.Args.Input)
	if err != nil {
		return err
	}
	defer in.Close()

	table, err := core.LoadTable(in, filepath.Base(opts.Args.Input), core.LoadOptions{Sheet: opts.Sheet})
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	logger.Debug("loaded", "rows", table.RowCount(), "columns", len(table.Columns))

	cleaned, ledger := core.Normalize(table)

	summary := Summary{
		Input:        opts.Args.Input,
		Rows:         cleaned.RowCount(),
		Columns:      len(cleaned.Columns),
		ChangedCells: ledger.Len(),
		Changes:      ledger,
	}

	if !opts.DryRun {
		if err := writeFile(opts.Output, func(w io.Writer) error {
			return core.WriteWorkbook(w, cleaned, opts.OutputSheet)
		}); err != nil {
			return fmt.Errorf("write workbook: %w", err)
		}
		summary.Output = opts.Output
		logger.Info("workbook written", "output", opts.Output)

		if opts.Changes != "" {
			if err := writeFile(opts.Changes, func(w io.Writer) error {
				return core.WriteChangesCSV(w, ledger)
			}); err != nil {
				return fmt.Errorf("write changes: %w", err)
			}
			summary.ChangesFile = opts.Changes
		}
	}
	summary.DurationMS = time.Since(start).Milliseconds()

	if opts.JSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(summary)
	}
	return printSummary(stdout, summary, opts.Verbose)
}

// writeFile writes through a temp file in the target directory and renames it
// into place, so a failed write never leaves a truncated file at path.
func writeFile(path string, write func(io.Writer) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".sheetclean-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := write(tmp); err != nil {
		tmp.Close()
		return err
	}
	// CreateTemp uses 0600; match what os.Create would produce.
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func printSummary(w io.Writer, s Summary, verbose bool) error {
	var err error
	printf := func(format string, args ...any) {
		if err == nil {
			_, err = fmt.Fprintf(w, format, args...)
		}
	}

	if s.Changes.Empty() {
		printf("No cleaning was needed: all cells were already clean!\n")
	} else {
		printf("Cleaned %d cells in %d columns (%d rows).\n", s.ChangedCells, len(s.Changes.Columns()), s.Rows)
		for _, entry := range s.Changes.Entries() {
			printf("  %s: %d\n", entry.Column, len(entry.Changes))
			if !verbose {
				continue
			}
			for _, rec := range entry.Changes {
				printf("    row %d: %q -> %q\n", rec.Row, rec.Original, rec.Cleaned)
			}
		}
	}

	if s.Output != "" {
		printf("Wrote %s\n", s.Output)
	}
	if s.ChangesFile != "" {
		printf("Wrote %s\n", s.ChangesFile)
	}
	return err
}

// Command cleanfile cleans a CSV or Excel file of contact records offline,
// without a database:
//
//	cleanfile -in contacts.csv -out cleaned.xlsx -region singapore [-llm]
//
// The language model pass reads its settings (LLM_API_KEY, LLM_MODEL, ...)
// from the environment or a .env file.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"slices"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/JonMunkholm/addrclean/internal/cleaning"
	"github.com/JonMunkholm/addrclean/internal/config"
	"github.com/JonMunkholm/addrclean/internal/core"
	"github.com/JonMunkholm/addrclean/internal/llm"
	"github.com/JonMunkholm/addrclean/internal/logging"
	"github.com/JonMunkholm/addrclean/internal/spreadsheet"
)

// fileBatchID stands in for the batch id records carry in the service.
const fileBatchID = 1

// newEnhancer is replaced in tests.
var newEnhancer = func(logger *slog.Logger) (*cleaning.Enhancer, error) {
	var cfg config.EnhanceConfig
	if err := config.LoadSection(&cfg); err != nil {
		return nil, err
	}
	cfg.Enabled = true
	return llm.NewEnhancer(&cfg, logger)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

type options struct {
	in              string
	out             string
	region          string
	useLLM          bool
	includeOriginal bool
	workers         int
	logLevel        string
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var o options
	fs := flag.NewFlagSet("cleanfile", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&o.in, "in", "", "input file (.csv or .xlsx)")
	fs.StringVar(&o.out, "out", "", "output file (.csv or .xlsx)")
	fs.StringVar(&o.region, "region", string(cleaning.RegionSingapore), "region rules: "+regionList())
	fs.BoolVar(&o.useLLM, "llm", false, "send low-quality records to the language model")
	fs.BoolVar(&o.includeOriginal, "include-original", false, "add the original values next to the cleaned ones")
	fs.IntVar(&o.workers, "workers", runtime.NumCPU(), "concurrent cleaning workers")
	fs.StringVar(&o.logLevel, "log-level", "info", "debug, info, warn or error")
	if err := fs.Parse(args); err != nil {
		return o, err
	}

	if o.in == "" || o.out == "" {
		return o, errors.New("both -in and -out are required")
	}
	if !cleaning.IsSupported(o.region) {
		return o, fmt.Errorf("unsupported region %q", o.region)
	}
	return o, nil
}

func regionList() string {
	var names []string
	for _, r := range cleaning.SupportedRegions() {
		names = append(names, string(r))
	}
	return strings.Join(names, ", ")
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	opts, err := parseFlags(args, stderr)
	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	if err != nil {
		fmt.Fprintf(stderr, "cleanfile: %v\n", err)
		return 2
	}

	// Load .env file if it exists; real env vars win.
	_ = godotenv.Load()

	logger := logging.New(stderr, opts.logLevel, "text")

	if err := cleanFile(ctx, opts, stdout, logger); err != nil {
		logger.Error("cleaning failed", "in", opts.in, "error", err)
		return 1
	}
	return 0
}

func cleanFile(ctx context.Context, opts options, stdout io.Writer, logger *slog.Logger) error {
	inType, err := spreadsheet.DetectFileType(opts.in)
	if err != nil {
		return err
	}
	outType, err := spreadsheet.DetectFileType(opts.out)
	if err != nil {
		return err
	}

	var enhancer *cleaning.Enhancer
	if opts.useLLM {
		if enhancer, err = newEnhancer(logger); err != nil {
			return fmt.Errorf("configure language model: %w", err)
		}
	}

	f, err := os.Open(opts.in)
	if err != nil {
		return err
	}
	tbl, err := spreadsheet.Parse(f, inType)
	f.Close()
	if err != nil {
		return fmt.Errorf("read %s: %w", opts.in, err)
	}
	logger.Info("file loaded", "rows", len(tbl.Rows), "columns", len(tbl.Header))

	raw := make([]cleaning.RawRecord, len(tbl.Rows))
	for i, row := range tbl.Rows {
		raw[i] = cleaning.MapRawRowOrdered(tbl.Header, row, i, fileBatchID)
	}

	results, summary, err := cleaning.CleanBatch(ctx, raw, opts.region, cleaning.BatchOptions{Workers: opts.workers})
	if err != nil {
		return err
	}

	records := make([]cleaning.CleanedRecord, len(results))
	for i, r := range results {
		records[i] = r.Record
	}

	var stats cleaning.EnhanceStats
	if enhancer != nil {
		records, stats = enhancer.Enhance(ctx, records, opts.region)
	}

	header, rows := core.ExportTable(records, opts.includeOriginal)
	out, err := os.Create(opts.out)
	if err != nil {
		return err
	}
	if err := spreadsheet.Write(out, outType, header, rows); err != nil {
		out.Close()
		return fmt.Errorf("write %s: %w", opts.out, err)
	}
	if err := out.Close(); err != nil {
		return err
	}

	printSummary(stdout, opts, summary, enhancer != nil, stats)
	return nil
}

func printSummary(w io.Writer, opts options, s cleaning.BatchSummary, enhanced bool, stats cleaning.EnhanceStats) {
	fmt.Fprintf(w, "Cleaned %d records (%s) -> %s\n", s.Total, opts.region, opts.out)
	fmt.Fprintf(w, "  clean:        %d\n", s.Clean)
	fmt.Fprintf(w, "  warnings:     %d\n", s.Warnings)
	fmt.Fprintf(w, "  errors:       %d\n", s.Errors)
	fmt.Fprintf(w, "  needs review: %d\n", s.NeedsReview)

	statuses := make([]string, 0, len(s.ByStatus))
	for st := range s.ByStatus {
		statuses = append(statuses, string(st))
	}
	slices.Sort(statuses)
	for _, st := range statuses {
		fmt.Fprintf(w, "  status %-8s %d\n", st+":", s.ByStatus[cleaning.Status(st)])
	}

	if enhanced {
		fmt.Fprintf(w, "Language model: %d candidates, %d groups (%d failed), %d corrections applied\n",
			stats.Candidates, stats.Groups, stats.FailedGroups, stats.Applied)
	}
}

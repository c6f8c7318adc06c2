package cleaning

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"
)

// BatchOptions tunes CleanBatch.
type BatchOptions struct {
	// Workers bounds concurrent CleanRecord calls (default: NumCPU).
	Workers int

	// OnProgress, if set, is called after each record with the number of
	// records done so far. Calls are serialized.
	OnProgress func(done, total int)
}

// BatchSummary aggregates the results of one batch. Errors, Warnings and
// Clean partition records by their worst issue severity.
type BatchSummary struct {
	Total       int            `json:"total"`
	ByStatus    map[Status]int `json:"byStatus"`
	Errors      int            `json:"errorCount"`
	Warnings    int            `json:"warningCount"`
	Clean       int            `json:"cleanedCount"`
	NeedsReview int            `json:"needsReview"`
	Issues      int            `json:"totalIssues"`
}

// Summarize computes batch aggregates over results.
func Summarize(results []Result) BatchSummary {
	sum := BatchSummary{
		Total:    len(results),
		ByStatus: make(map[Status]int),
	}
	for _, r := range results {
		sum.ByStatus[r.Record.Status]++
		sum.Issues += len(r.Issues)
		if r.NeedsReview {
			sum.NeedsReview++
		}
		switch r.WorstSeverity() {
		case SeverityError:
			sum.Errors++
		case SeverityWarning:
			sum.Warnings++
		default:
			sum.Clean++
		}
	}
	return sum
}

func workerCount(requested, n int) int {
	if requested > 0 {
		return max(min(requested, n), 1)
	}
	return max(min(runtime.NumCPU(), n), 1)
}

// CleanBatch cleans records concurrently and returns the results in input
// order together with their summary. It stops at the first record without
// a batch id or when ctx is cancelled.
func CleanBatch(ctx context.Context, records []RawRecord, region string, opts BatchOptions) ([]Result, BatchSummary, error) {
	results := make([]Result, len(records))
	if len(records) == 0 {
		return results, Summarize(results), nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workerCount(opts.Workers, len(records)))

	var (
		mu   sync.Mutex
		done int
	)

	for i := range records {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := CleanRecord(records[i], region)
			if err != nil {
				return err
			}
			results[i] = res

			if opts.OnProgress != nil {
				mu.Lock()
				done++
				opts.OnProgress(done, len(records))
				mu.Unlock()
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, BatchSummary{}, fmt.Errorf("clean batch: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, BatchSummary{}, fmt.Errorf("clean batch: %w", err)
	}

	return results, Summarize(results), nil
}

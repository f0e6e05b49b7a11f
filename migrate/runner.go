// Package migrate backfills persisted workflow records for every case
// in a workspace. It exists for onboarding a firm's historical files:
// each case is derived from its raw records and its state record is
// created or corrected, with bounded concurrency and per-case fault
// isolation. One bad case never stops the run.
package migrate

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/meridianlegal/caseflow/engine"
)

// DefaultConcurrency bounds parallel case processing when the caller
// does not choose a limit.
const DefaultConcurrency = 8

// Per-case outcomes.
const (
	OutcomeMigrated = "migrated"
	OutcomeSkipped  = "skipped"
	OutcomeErrored  = "errored"
)

// CaseResult is the result of processing one case.
type CaseResult struct {
	CaseID      string `json:"case_id"`
	Outcome     string `json:"outcome"`
	Phase       string `json:"phase,omitempty"`
	Created     bool   `json:"created,omitempty"`
	Corrections int    `json:"corrections,omitempty"`
	Err         error  `json:"-"`
	ErrText     string `json:"error,omitempty"`
}

// Summary is the aggregate of a run.
type Summary struct {
	Results  []CaseResult  `json:"results"`
	Migrated int           `json:"migrated"`
	Skipped  int           `json:"skipped"`
	Errored  int           `json:"errored"`
	Duration time.Duration `json:"duration"`
}

// Options control a run.
type Options struct {
	// DryRun derives and diffs every case but writes nothing.
	DryRun bool
	// Force writes records even when the diff is empty.
	Force bool
	// Cases restricts the run to the given case ids. Empty means every
	// case discovered in the workspace.
	Cases []string
	// Concurrency bounds parallel case processing.
	Concurrency int
}

// Runner drives a migration over an engine.
type Runner struct {
	eng    *engine.Engine
	logger *slog.Logger
}

// NewRunner builds a runner.
func NewRunner(eng *engine.Engine, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{eng: eng, logger: logger}
}

// Run processes every selected case and returns the per-case results
// plus totals. Case failures are recorded, not propagated; the only
// errors returned are discovery failure and context cancellation.
// Cancellation is cooperative: in-flight cases finish, no new ones
// start.
func (r *Runner) Run(ctx context.Context, opts Options) (*Summary, error) {
	start := time.Now()

	caseIDs := opts.Cases
	if len(caseIDs) == 0 {
		ids, err := r.eng.ListCaseIDs(ctx)
		if err != nil {
			return nil, err
		}
		caseIDs = ids
	}

	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	r.logger.Info("migration starting",
		"cases", len(caseIDs),
		"concurrency", concurrency,
		"dry_run", opts.DryRun)

	var (
		mu      sync.Mutex
		results []CaseResult
	)

	g := &errgroup.Group{}
	g.SetLimit(concurrency)

	cancelled := false
	for _, caseID := range caseIDs {
		if err := ctx.Err(); err != nil {
			cancelled = true
			break
		}
		caseID := caseID
		g.Go(func() error {
			res := r.processCase(ctx, caseID, opts)
			mu.Lock()
			results = append(results, res)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(results, func(i, j int) bool { return results[i].CaseID < results[j].CaseID })

	summary := &Summary{Results: results, Duration: time.Since(start)}
	for _, res := range results {
		switch res.Outcome {
		case OutcomeMigrated:
			summary.Migrated++
		case OutcomeSkipped:
			summary.Skipped++
		case OutcomeErrored:
			summary.Errored++
		}
	}
	runDuration.Observe(summary.Duration.Seconds())

	r.logger.Info("migration finished",
		"migrated", summary.Migrated,
		"skipped", summary.Skipped,
		"errored", summary.Errored,
		"duration", summary.Duration)

	if cancelled {
		return summary, ctx.Err()
	}
	return summary, nil
}

func (r *Runner) processCase(ctx context.Context, caseID string, opts Options) CaseResult {
	start := time.Now()
	defer func() { caseDuration.Observe(time.Since(start).Seconds()) }()

	outcome, err := r.eng.SyncCase(ctx, caseID, engine.SyncOptions{
		DryRun: opts.DryRun,
		Force:  opts.Force,
	})
	if err != nil {
		caseTotal.WithLabelValues(OutcomeErrored).Inc()
		r.logger.Warn("case migration failed", "case_id", caseID, "error", err)
		return CaseResult{CaseID: caseID, Outcome: OutcomeErrored, Err: err, ErrText: err.Error()}
	}

	res := CaseResult{
		CaseID:      caseID,
		Phase:       outcome.Derived.CurrentPhase.ID,
		Created:     outcome.Created,
		Corrections: len(outcome.Corrections),
	}
	// A dry run reports what would have been written.
	written := outcome.Written || (opts.DryRun && (outcome.Created || len(outcome.Corrections) > 0 || opts.Force))
	if written {
		res.Outcome = OutcomeMigrated
	} else {
		res.Outcome = OutcomeSkipped
	}
	caseTotal.WithLabelValues(res.Outcome).Inc()
	if outcome.Written {
		correctionTotal.Add(float64(len(outcome.Corrections)))
	}
	return res
}

// HasFailures reports whether any case errored, for exit-code decisions.
func (s *Summary) HasFailures() bool {
	return s.Errored > 0
}

// FirstError returns one representative failure, or nil.
func (s *Summary) FirstError() error {
	for _, res := range s.Results {
		if res.Err != nil {
			return res.Err
		}
	}
	return nil
}

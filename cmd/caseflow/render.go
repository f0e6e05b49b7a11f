package main

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/meridianlegal/caseflow/derive"
	"github.com/meridianlegal/caseflow/engine"
	"github.com/meridianlegal/caseflow/migrate"
	"github.com/meridianlegal/caseflow/registry"
	"github.com/meridianlegal/caseflow/sol"
	"github.com/meridianlegal/caseflow/statestore"
)

// renderState writes a human-readable case status. persisted may be nil
// for a case that has never been synced.
func renderState(w io.Writer, state *derive.DerivedState, persisted *statestore.CaseState) {
	fmt.Fprintf(w, "Case %s\n", state.CaseID)
	fmt.Fprintf(w, "  Phase: %s (%s track)\n", state.CurrentPhase.DisplayName, state.CurrentPhase.Track)
	fmt.Fprintf(w, "  Landmarks: %d/%d complete\n", state.Landmarks.Complete, state.Landmarks.Total)

	for _, lm := range state.Landmarks.CurrentPhase {
		marker := " "
		switch lm.Status {
		case registry.StatusComplete:
			marker = "x"
		case registry.StatusInProgress:
			marker = "~"
		}
		note := ""
		if lm.Overridden {
			note = " (manual override)"
		}
		fmt.Fprintf(w, "    [%s] %s%s\n", marker, lm.DisplayName, note)
	}

	if len(state.BlockingLandmarks) > 0 {
		names := make([]string, 0, len(state.BlockingLandmarks))
		for _, b := range state.BlockingLandmarks {
			names = append(names, b.DisplayName)
		}
		fmt.Fprintf(w, "  Blocked on: %s\n", strings.Join(names, ", "))
	}

	if len(state.WorkflowsNeeded) > 0 {
		fmt.Fprintln(w, "  Workflows needed:")
		for _, wf := range state.WorkflowsNeeded {
			fmt.Fprintf(w, "    - %s\n", wf.DisplayName)
		}
	}

	if s := state.StatuteOfLimitations; s != nil {
		renderStatute(w, s)
	}

	if state.CanAdvance {
		fmt.Fprintf(w, "  Ready to advance to %s\n", state.NextPhase)
	}

	if persisted == nil {
		fmt.Fprintln(w, "  No state record yet (run: caseflow init or caseflow sync)")
		return
	}
	if persisted.RecordStatus == statestore.RecordRetired {
		fmt.Fprintln(w, "  Record: retired")
	}
	if len(persisted.ManualOverrides) > 0 {
		ids := make([]string, 0, len(persisted.ManualOverrides))
		for id := range persisted.ManualOverrides {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		fmt.Fprintf(w, "  Manual overrides: %s\n", strings.Join(ids, ", "))
	}
}

func renderStatute(w io.Writer, s *sol.Status) {
	switch {
	case s.DaysRemaining < 0:
		fmt.Fprintf(w, "  Statute of limitations: EXPIRED %d days ago (%s) [%s]\n",
			-s.DaysRemaining, s.Deadline.Format("2006-01-02"), s.Status)
	default:
		fmt.Fprintf(w, "  Statute of limitations: %d days remaining (%s) [%s]\n",
			s.DaysRemaining, s.Deadline.Format("2006-01-02"), s.Status)
	}
}

func renderSyncOutcome(w io.Writer, outcome *engine.SyncOutcome, dryRun bool) {
	prefix := ""
	if dryRun {
		prefix = "[dry-run] "
	}
	switch {
	case outcome.Created:
		fmt.Fprintf(w, "%s%s: created in %s\n", prefix, outcome.CaseID, outcome.Derived.CurrentPhase.ID)
	case len(outcome.Corrections) == 0 && !outcome.Written:
		fmt.Fprintf(w, "%s%s: up to date (%s)\n", prefix, outcome.CaseID, outcome.Derived.CurrentPhase.ID)
	default:
		fmt.Fprintf(w, "%s%s: %d corrections, now in %s\n",
			prefix, outcome.CaseID, len(outcome.Corrections), outcome.Derived.CurrentPhase.ID)
		for _, c := range outcome.Corrections {
			subject := c.Subject
			if subject == "" {
				subject = c.To
			}
			fmt.Fprintf(w, "    %s: %s -> %s (%s)\n", c.Kind, c.From, c.To, subject)
		}
	}
}

func renderMigrationSummary(w io.Writer, summary *migrate.Summary, dryRun bool) {
	for _, res := range summary.Results {
		switch res.Outcome {
		case migrate.OutcomeErrored:
			fmt.Fprintf(w, "  %-12s %s: %s\n", res.Outcome, res.CaseID, res.ErrText)
		case migrate.OutcomeMigrated:
			verb := "updated"
			if res.Created {
				verb = "created"
			}
			fmt.Fprintf(w, "  %-12s %s: %s in %s (%d corrections)\n",
				res.Outcome, res.CaseID, verb, res.Phase, res.Corrections)
		default:
			fmt.Fprintf(w, "  %-12s %s: %s\n", res.Outcome, res.CaseID, res.Phase)
		}
	}

	label := "Migration"
	if dryRun {
		label = "Migration (dry run)"
	}
	fmt.Fprintf(w, "%s: %d migrated, %d skipped, %d errored in %s\n",
		label, summary.Migrated, summary.Skipped, summary.Errored,
		summary.Duration.Round(time.Millisecond))
}

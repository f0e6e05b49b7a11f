package derive

import (
	"fmt"

	"github.com/meridianlegal/caseflow/casedata"
	"github.com/meridianlegal/caseflow/registry"
)

// Evaluate applies each landmark predicate of the phase to the case
// data and returns one entry per landmark, in definition order. The
// evaluation is pure: no side effects, deterministic for identical
// input, and tolerant of absent data (absent evaluates incomplete).
//
// Evaluate reports raw predicate results; merging with recorded
// progress and manual overrides is the deriver's job.
func Evaluate(phase *registry.Phase, data *casedata.CaseData) ([]LandmarkStatusEntry, error) {
	entries := make([]LandmarkStatusEntry, 0, len(phase.Landmarks))
	for _, lm := range phase.Landmarks {
		pred, err := LookupPredicate(lm.Predicate)
		if err != nil {
			return nil, fmt.Errorf("landmark %q: %w", lm.ID, err)
		}
		entries = append(entries, LandmarkStatusEntry{
			ID:          lm.ID,
			DisplayName: lm.DisplayName,
			Status:      pred(data),
			HardBlocker: lm.HardBlocker,
		})
	}
	return entries, nil
}

// Blockers filters the entries down to hard blockers that are not yet
// complete, preserving landmark definition order. An empty result means
// the phase's hard requirements are satisfied; soft landmarks may still
// be incomplete.
func Blockers(entries []LandmarkStatusEntry) []LandmarkRef {
	var out []LandmarkRef
	for _, e := range entries {
		if e.HardBlocker && e.Status != registry.StatusComplete {
			out = append(out, LandmarkRef{ID: e.ID, DisplayName: e.DisplayName})
		}
	}
	return out
}

package derive

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/meridianlegal/caseflow/casedata"
	"github.com/meridianlegal/caseflow/registry"
)

// ErrDerivationLoop means the advancement loop exceeded the registry
// size, which can only happen with a malformed catalog. It is fatal and
// must be surfaced, never truncated into a partial result.
var ErrDerivationLoop = errors.New("phase advancement exceeded registry size")

// maxWorkflowsShown caps the workflows_needed list for readability.
// Ordering is registry declaration order regardless of the cap.
const maxWorkflowsShown = 5

// Deriver is the state machine core. It is stateless between calls and
// safe for concurrent use.
type Deriver struct {
	reg    *registry.Registry
	logger *slog.Logger
}

// NewDeriver builds a deriver and verifies that every landmark in the
// catalog references a registered predicate, so a bad catalog fails at
// startup rather than mid-derivation.
func NewDeriver(reg *registry.Registry, logger *slog.Logger) (*Deriver, error) {
	if logger == nil {
		logger = slog.Default()
	}
	for _, p := range reg.Phases() {
		for _, lm := range p.Landmarks {
			if _, err := LookupPredicate(lm.Predicate); err != nil {
				return nil, fmt.Errorf("phase %q landmark %q: %w", p.ID, lm.ID, err)
			}
		}
	}
	return &Deriver{reg: reg, logger: logger}, nil
}

// Derive computes the full workflow position for one case. prior may be
// nil for a case never derived before. The call is synchronous, performs
// no I/O, and never mutates data or prior.
func (dv *Deriver) Derive(data *casedata.CaseData, prior *Prior) (*Result, error) {
	startID, rule := InferPhase(dv.reg, data)
	dv.logger.Debug("starting phase selected",
		"case_id", caseID(data),
		"phase", startID,
		"rule", rule)

	res := &Result{
		PhaseLandmarks: make(map[string][]LandmarkStatusEntry),
		CriteriaStatus: make(map[string]map[string]bool),
	}

	phase, err := dv.reg.Lookup(startID)
	if err != nil {
		return nil, err
	}

	// Advance through already-satisfied phases in one pass, bounded by
	// the catalog size. The validated catalog is acyclic, so hitting
	// the bound means the registry in use is malformed.
	var (
		entries  []LandmarkStatusEntry
		blockers []LandmarkRef
		unmet    []string
	)
	for advances := 0; ; advances++ {
		if advances > dv.reg.Len() {
			return nil, fmt.Errorf("%w: started at %s", ErrDerivationLoop, startID)
		}

		entries, err = dv.evaluateMerged(phase, data, prior)
		if err != nil {
			return nil, err
		}
		blockers = Blockers(entries)
		satisfied, unmetIDs := dv.criteriaStatus(phase, entries)

		res.Visited = append(res.Visited, phase.ID)
		res.PhaseLandmarks[phase.ID] = entries
		res.CriteriaStatus[phase.ID] = satisfied
		unmet = unmetIDs

		if phase.Terminal() || len(blockers) > 0 || len(unmet) > 0 {
			break
		}

		next, err := dv.reg.Lookup(phase.NextPhase)
		if err != nil {
			return nil, err
		}
		dv.logger.Debug("phase satisfied, advancing",
			"case_id", caseID(data),
			"from", phase.ID,
			"to", next.ID)
		phase = next
	}

	complete := 0
	for _, e := range entries {
		if e.Status == registry.StatusComplete {
			complete++
		}
	}

	res.State = &DerivedState{
		CaseID: caseID(data),
		CurrentPhase: PhaseRef{
			ID:          phase.ID,
			DisplayName: phase.DisplayName,
			Order:       phase.Order,
			Track:       phase.Track,
		},
		Landmarks: LandmarkSummary{
			Complete:     complete,
			Total:        len(entries),
			CurrentPhase: entries,
		},
		BlockingLandmarks: blockers,
		WorkflowsNeeded:   workflowsNeeded(phase, unmet),
		CanAdvance:        !phase.Terminal() && len(blockers) == 0 && len(unmet) == 0,
		NextPhase:         phase.NextPhase,
	}
	return res, nil
}

// evaluateMerged evaluates the phase's landmarks and merges in recorded
// progress and manual overrides. Overrides win outright; otherwise a
// landmark recorded complete never regresses below complete.
func (dv *Deriver) evaluateMerged(phase *registry.Phase, data *casedata.CaseData, prior *Prior) ([]LandmarkStatusEntry, error) {
	entries, err := Evaluate(phase, data)
	if err != nil {
		return nil, err
	}
	if prior == nil {
		return entries, nil
	}

	for i := range entries {
		if override, ok := prior.Overrides[entries[i].ID]; ok && override.IsValid() {
			entries[i].Status = override
			entries[i].Overridden = true
			continue
		}
		if recorded, ok := prior.Landmarks[entries[i].ID]; ok {
			if recorded == registry.StatusComplete && !entries[i].Status.AtLeast(recorded) {
				entries[i].Status = registry.StatusComplete
			}
		}
	}
	return entries, nil
}

// criteriaStatus resolves the phase's exit criteria against the merged
// landmark entries. A criterion is satisfied when every landmark it
// requires is complete; landmarks defined outside this phase count as
// not complete (they belong to earlier phases and were gated there).
func (dv *Deriver) criteriaStatus(phase *registry.Phase, entries []LandmarkStatusEntry) (map[string]bool, []string) {
	byID := make(map[string]registry.LandmarkStatus, len(entries))
	for _, e := range entries {
		byID[e.ID] = e.Status
	}

	satisfied := make(map[string]bool, len(phase.ExitCriteria))
	var unmet []string
	for _, cid := range phase.ExitCriteria {
		crit, ok := dv.reg.Criterion(cid)
		met := ok
		if ok {
			for _, lmID := range crit.Requires {
				if byID[lmID] != registry.StatusComplete {
					met = false
					break
				}
			}
		}
		satisfied[cid] = met
		if !met {
			unmet = append(unmet, cid)
		}
	}
	return satisfied, unmet
}

// workflowsNeeded lists the phase's workflows whose contributions
// intersect the still-unmet exit criteria, in declaration order,
// capped for readability.
func workflowsNeeded(phase *registry.Phase, unmet []string) []WorkflowRef {
	if len(unmet) == 0 {
		return nil
	}
	unmetSet := make(map[string]bool, len(unmet))
	for _, cid := range unmet {
		unmetSet[cid] = true
	}

	var out []WorkflowRef
	for _, wf := range phase.Workflows {
		for _, cid := range wf.ContributesTo {
			if unmetSet[cid] {
				out = append(out, WorkflowRef{ID: wf.ID, DisplayName: wf.DisplayName})
				break
			}
		}
		if len(out) == maxWorkflowsShown {
			break
		}
	}
	return out
}

func caseID(data *casedata.CaseData) string {
	if data == nil {
		return ""
	}
	return data.CaseID
}

package derive

import (
	"github.com/meridianlegal/caseflow/casedata"
	"github.com/meridianlegal/caseflow/registry"
)

// InferenceRule maps a data signal to a starting phase. Rules are
// evaluated top to bottom and the first match wins, so the order of the
// table is itself business policy and is covered by tests.
type InferenceRule struct {
	Name    string
	PhaseID string
	Matches func(*casedata.CaseData) bool
}

// InferenceRules is the ordered heuristic used for cases with no
// explicit phase marker (legacy migrations). The priority order is
// preserved from the firm's original triage practice: the strongest
// downstream signal wins.
var InferenceRules = []InferenceRule{
	{
		Name:    "settlement-recorded",
		PhaseID: "phase_5_settlement",
		Matches: func(d *casedata.CaseData) bool {
			return predSettlementRecorded(d) == registry.StatusComplete
		},
	},
	{
		Name:    "negotiation-or-demand-sent",
		PhaseID: "phase_4_negotiation",
		Matches: func(d *casedata.CaseData) bool {
			return predNegotiationActive(d) == registry.StatusComplete ||
				predDemandSent(d) == registry.StatusComplete
		},
	},
	{
		Name:    "providers-complete",
		PhaseID: "phase_3_demand",
		Matches: func(d *casedata.CaseData) bool {
			return predTreatmentCompleted(d) == registry.StatusComplete &&
				predRecordsReceived(d) == registry.StatusComplete
		},
	},
	{
		Name:    "treatment-active",
		PhaseID: "phase_2_treatment",
		Matches: func(d *casedata.CaseData) bool {
			return predTreatmentStarted(d) == registry.StatusComplete
		},
	},
	{
		Name:    "claims-opened",
		PhaseID: "phase_1_file_setup",
		Matches: func(d *casedata.CaseData) bool {
			return predClaimsOpened(d) == registry.StatusComplete
		},
	},
}

// InferPhase determines the starting phase for a case. Priority order:
// the explicit phase field on the case record when it names a known
// phase, then the first matching inference rule, then the entry phase.
func InferPhase(reg *registry.Registry, data *casedata.CaseData) (phaseID, rule string) {
	if data != nil && data.Overview != nil && data.Overview.Phase != "" {
		if reg.Contains(data.Overview.Phase) {
			return data.Overview.Phase, "explicit-phase"
		}
	}

	for _, r := range InferenceRules {
		if !reg.Contains(r.PhaseID) {
			// Custom catalogs may omit a phase the rule targets.
			continue
		}
		if r.Matches(data) {
			return r.PhaseID, r.Name
		}
	}

	return reg.First().ID, "default-entry-phase"
}

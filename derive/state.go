package derive

import (
	"github.com/meridianlegal/caseflow/registry"
	"github.com/meridianlegal/caseflow/sol"
)

// PhaseRef identifies a phase in external output.
type PhaseRef struct {
	ID          string         `json:"id"`
	DisplayName string         `json:"display_name"`
	Order       int            `json:"order"`
	Track       registry.Track `json:"track"`
}

// LandmarkRef identifies a landmark in external output.
type LandmarkRef struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

// WorkflowRef identifies a workflow still needed for the current phase.
type WorkflowRef struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

// LandmarkStatusEntry is the evaluated status of one landmark, after
// merging with recorded progress and manual overrides.
type LandmarkStatusEntry struct {
	ID          string                  `json:"id"`
	DisplayName string                  `json:"display_name"`
	Status      registry.LandmarkStatus `json:"status"`
	HardBlocker bool                    `json:"hard_blocker"`
	Overridden  bool                    `json:"overridden,omitempty"`
}

// LandmarkSummary summarizes landmark progress for the current phase.
type LandmarkSummary struct {
	Complete     int                   `json:"complete"`
	Total        int                   `json:"total"`
	CurrentPhase []LandmarkStatusEntry `json:"current_phase"`
}

// DerivedState is the recomputed, authoritative snapshot of a case's
// workflow position. It is the only artifact exposed to external
// consumers and is rebuilt whole on every derivation, never patched.
type DerivedState struct {
	CaseID               string          `json:"case_id"`
	CurrentPhase         PhaseRef        `json:"current_phase"`
	Landmarks            LandmarkSummary `json:"landmarks"`
	BlockingLandmarks    []LandmarkRef   `json:"blocking_landmarks"`
	WorkflowsNeeded      []WorkflowRef   `json:"workflows_needed"`
	StatuteOfLimitations *sol.Status     `json:"statute_of_limitations,omitempty"`
	CanAdvance           bool            `json:"can_advance"`
	NextPhase            string          `json:"next_phase,omitempty"`
}

// Prior is the slice of previously persisted state the deriver consults:
// the recorded phase, recorded landmark statuses, and manual overrides.
// A nil Prior means the case has never been derived before.
type Prior struct {
	Phase     string
	Landmarks map[string]registry.LandmarkStatus
	Overrides map[string]registry.LandmarkStatus
}

// Result is a full derivation outcome. Beyond the externally visible
// DerivedState it carries the per-phase evaluation trace the syncer
// needs to compute minimal corrections.
type Result struct {
	State *DerivedState

	// Visited lists every phase evaluated this call, in order; the last
	// entry is the resting phase.
	Visited []string

	// PhaseLandmarks holds the merged landmark entries per visited phase.
	PhaseLandmarks map[string][]LandmarkStatusEntry

	// CriteriaStatus holds exit-criteria satisfaction per visited phase.
	CriteriaStatus map[string]map[string]bool
}

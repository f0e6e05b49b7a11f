// Package syncer reconciles a freshly derived state against the
// persisted case record. It applies only the minimal forward diff:
// phase advancement, landmark flips to complete, criteria and workflow
// bookkeeping. Calling it twice with no intervening data change yields
// zero corrections the second time, which is what makes bulk
// re-derivation safe.
package syncer

import (
	"time"

	"github.com/google/uuid"

	"github.com/meridianlegal/caseflow/casedata"
	"github.com/meridianlegal/caseflow/derive"
	"github.com/meridianlegal/caseflow/registry"
	"github.com/meridianlegal/caseflow/statestore"
)

// Correction kinds.
const (
	KindPhaseAdvanced     = "phase_advanced"
	KindLandmarkCompleted = "landmark_completed"
	KindCriterionMet      = "criterion_met"
	KindWorkflowCompleted = "workflow_completed"
	KindRecordRetired     = "record_retired"
)

// Correction is one applied diff, for audit output.
type Correction struct {
	ID      string    `json:"id"`
	CaseID  string    `json:"case_id"`
	Kind    string    `json:"kind"`
	PhaseID string    `json:"phase_id,omitempty"`
	Subject string    `json:"subject,omitempty"`
	From    string    `json:"from,omitempty"`
	To      string    `json:"to,omitempty"`
	At      time.Time `json:"at"`
}

// Syncer diffs derivation results into persisted records.
type Syncer struct {
	reg *registry.Registry
}

// New returns a syncer over the given catalog.
func New(reg *registry.Registry) *Syncer {
	return &Syncer{reg: reg}
}

// Sync returns an updated copy of persisted with the derivation result
// applied, the corrections that were needed, and whether anything
// changed at all. persisted is never mutated. The syncer never moves a
// phase backward and never touches a manually overridden landmark.
func (s *Syncer) Sync(res *derive.Result, persisted *statestore.CaseState, now time.Time) (*statestore.CaseState, []Correction, bool) {
	updated := persisted.Clone()
	var corrections []Correction
	changed := false

	derivedPhase := res.State.CurrentPhase.ID

	if s.reg.Order(derivedPhase) > s.reg.Order(updated.CurrentPhase) {
		corrections = append(corrections, s.correction(updated.CaseID, Correction{
			Kind: KindPhaseAdvanced,
			From: updated.CurrentPhase,
			To:   derivedPhase,
			At:   now,
		}))
		updated.CurrentPhase = derivedPhase
		changed = true

		// Any earlier phase record left in progress is closed out; a
		// case cannot be in two phases at once.
		for id, ps := range updated.Phases {
			if s.reg.Order(id) < s.reg.Order(derivedPhase) && ps.Status != statestore.PhaseComplete {
				ps.Status = statestore.PhaseComplete
			}
		}
	}

	for _, phaseID := range res.Visited {
		resting := phaseID == derivedPhase
		if c := s.syncPhase(updated, phaseID, res, now); len(c) > 0 {
			corrections = append(corrections, c...)
			changed = true
		}
		if s.seedPhase(updated, phaseID, resting, now) {
			changed = true
		}
	}

	// A case resting at the terminal phase is retired, never deleted.
	if phase, err := s.reg.Lookup(derivedPhase); err == nil && phase.Terminal() &&
		updated.RecordStatus != statestore.RecordRetired {
		corrections = append(corrections, s.correction(updated.CaseID, Correction{
			Kind: KindRecordRetired,
			From: updated.RecordStatus,
			To:   statestore.RecordRetired,
			At:   now,
		}))
		updated.RecordStatus = statestore.RecordRetired
		changed = true
	}

	return updated, corrections, changed
}

// syncPhase applies landmark, criteria, and workflow diffs for one
// visited phase. It returns nil when no correction-worthy transition
// happened (structural seeding is reported by seedPhase instead).
func (s *Syncer) syncPhase(updated *statestore.CaseState, phaseID string, res *derive.Result, now time.Time) []Correction {
	var corrections []Correction
	ps := updated.Phase(phaseID)

	// Landmark flips to complete. Overridden entries are not recorded:
	// the override itself stays authoritative.
	for _, entry := range res.PhaseLandmarks[phaseID] {
		if entry.Overridden {
			continue
		}
		if _, isOverridden := updated.ManualOverrides[entry.ID]; isOverridden {
			continue
		}
		prev := ps.Landmarks[entry.ID]
		if entry.Status == registry.StatusComplete && prev != string(registry.StatusComplete) {
			if ps.Landmarks == nil {
				ps.Landmarks = make(map[string]string)
			}
			ps.Landmarks[entry.ID] = string(registry.StatusComplete)
			corrections = append(corrections, s.correction(updated.CaseID, Correction{
				Kind:    KindLandmarkCompleted,
				PhaseID: phaseID,
				Subject: entry.ID,
				From:    orIncomplete(prev),
				To:      string(registry.StatusComplete),
				At:      now,
			}))
		}
	}

	// Exit criteria flips to satisfied.
	for cid, met := range res.CriteriaStatus[phaseID] {
		if met && !ps.ExitCriteriaStatus[cid] {
			if ps.ExitCriteriaStatus == nil {
				ps.ExitCriteriaStatus = make(map[string]bool)
			}
			ps.ExitCriteriaStatus[cid] = true
			corrections = append(corrections, s.correction(updated.CaseID, Correction{
				Kind:    KindCriterionMet,
				PhaseID: phaseID,
				Subject: cid,
				From:    "false",
				To:      "true",
				At:      now,
			}))
		}
	}

	// A workflow is done once every criterion it contributes to is met.
	if phase, err := s.reg.Lookup(phaseID); err == nil {
		for _, wf := range phase.Workflows {
			if ps.WorkflowStatuses[wf.ID] == statestore.WorkflowComplete {
				continue
			}
			if !allMet(res.CriteriaStatus[phaseID], wf.ContributesTo) {
				continue
			}
			if ps.WorkflowStatuses == nil {
				ps.WorkflowStatuses = make(map[string]string)
			}
			prev := ps.WorkflowStatuses[wf.ID]
			ps.WorkflowStatuses[wf.ID] = statestore.WorkflowComplete
			corrections = append(corrections, s.correction(updated.CaseID, Correction{
				Kind:    KindWorkflowCompleted,
				PhaseID: phaseID,
				Subject: wf.ID,
				From:    orPending(prev),
				To:      statestore.WorkflowComplete,
				At:      now,
			}))
		}
	}

	return corrections
}

// seedPhase fills in structural state (entered_at, pending workflows,
// phase status) that carries no correction of its own. Returns true if
// the record changed.
func (s *Syncer) seedPhase(updated *statestore.CaseState, phaseID string, resting bool, now time.Time) bool {
	ps := updated.Phase(phaseID)
	changed := false

	if ps.EnteredAt == nil {
		at := now
		ps.EnteredAt = &at
		changed = true
	}

	if phase, err := s.reg.Lookup(phaseID); err == nil && resting {
		for _, wf := range phase.Workflows {
			if _, ok := ps.WorkflowStatuses[wf.ID]; !ok {
				if ps.WorkflowStatuses == nil {
					ps.WorkflowStatuses = make(map[string]string)
				}
				ps.WorkflowStatuses[wf.ID] = statestore.WorkflowPending
				changed = true
			}
		}
	}

	if s.advancePhaseStatus(ps, resting) {
		changed = true
	}
	return changed
}

/// advancePhaseStatus moves a phase record's status forward only:
// pending -> in_progress for the resting phase, anything -> complete
// for phases the derivation passed through.
func (s *Syncer) advancePhaseStatus(ps *statestore.PhaseState, resting bool) bool {
	changed := false
	switch {
	case !resting && ps.Status != statestore.PhaseComplete:
		ps.Status = statestore.PhaseComplete
		changed = true
	case resting && ps.Status == statestore.PhasePending:
		ps.Status = statestore.PhaseInProgress
		changed = true
	}
	return changed
}

// Build creates the initial persisted record for a case from a
// derivation result; used at intake and by the migration backfill.
func (s *Syncer) Build(res *derive.Result, data *casedata.CaseData, now time.Time) *statestore.CaseState {
	state := &statestore.CaseState{
		CaseID:       res.State.CaseID,
		CurrentPhase: res.State.CurrentPhase.ID,
		Phases:       make(map[string]*statestore.PhaseState),
		RecordStatus: statestore.RecordActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if data != nil && data.Overview != nil {
		state.ClientName = data.Overview.ClientName
		state.AccidentDate = data.Overview.AccidentDate
		state.AccidentType = data.Overview.AccidentType
	}

	// Populate phase records via a normal sync pass against the empty
	// record, then discard the corrections: creation is one event, not
	// a stream of flips.
	populated, _, _ := s.Sync(res, state, now)
	return populated
}

func (s *Syncer) correction(caseID string, c Correction) Correction {
	c.ID = uuid.New().String()
	c.CaseID = caseID
	return c
}

func allMet(status map[string]bool, criteria []string) bool {
	if len(criteria) == 0 {
		return false
	}
	for _, cid := range criteria {
		if !status[cid] {
			return false
		}
	}
	return true
}

func orIncomplete(s string) string {
	if s == "" {
		return string(registry.StatusIncomplete)
	}
	return s
}

func orPending(s string) string {
	if s == "" {
		return statestore.WorkflowPending
	}
	return s
}

// Package statestore persists the durable workflow state record for
// each case in a NATS JetStream key-value bucket. The record's JSON
// field names are a compatibility boundary: middleware and UI consumers
// parse this shape directly.
package statestore

import (
	"time"

	"github.com/meridianlegal/caseflow/casedata"
)

// Record lifecycle status values. Records are retired when a case
// closes, never deleted.
const (
	RecordActive  = "active"
	RecordRetired = "retired"
)

// Per-phase progression status values.
const (
	PhasePending    = "pending"
	PhaseInProgress = "in_progress"
	PhaseComplete   = "complete"
)

// Workflow status values within a phase record.
const (
	WorkflowPending  = "pending"
	WorkflowComplete = "complete"
)

// PhaseState is the durable per-phase progress record.
type PhaseState struct {
	Status             string            `json:"status"`
	EnteredAt          *time.Time        `json:"entered_at,omitempty"`
	WorkflowStatuses   map[string]string `json:"workflow_statuses,omitempty"`
	ExitCriteriaStatus map[string]bool   `json:"exit_criteria_status,omitempty"`
	// Landmarks records landmark completion so that recorded progress
	// survives data regressions (the monotonicity guarantee).
	Landmarks map[string]string `json:"landmarks,omitempty"`
}

// CaseState is the durable workflow state record for one case. It is
// created once at intake or by the migration backfill, mutated only by
// the workflow syncer, and retired rather than deleted when the case
// closes.
type CaseState struct {
	CaseID          string                 `json:"case_id"`
	ClientName      string                 `json:"client_name,omitempty"`
	AccidentDate    *casedata.Date         `json:"accident_date,omitempty"`
	AccidentType    string                 `json:"accident_type,omitempty"`
	CurrentPhase    string                 `json:"current_phase"`
	Phases          map[string]*PhaseState `json:"phases"`
	ManualOverrides map[string]string      `json:"manual_overrides,omitempty"`
	RecordStatus    string                 `json:"record_status,omitempty"`
	CreatedAt       time.Time              `json:"created_at"`
	UpdatedAt       time.Time              `json:"updated_at"`
}

// Clone returns a deep copy so the syncer can diff against an
// unmodified original.
func (s *CaseState) Clone() *CaseState {
	if s == nil {
		return nil
	}
	out := *s
	out.Phases = make(map[string]*PhaseState, len(s.Phases))
	for id, ps := range s.Phases {
		cp := *ps
		if ps.EnteredAt != nil {
			at := *ps.EnteredAt
			cp.EnteredAt = &at
		}
		cp.WorkflowStatuses = cloneStringMap(ps.WorkflowStatuses)
		cp.ExitCriteriaStatus = cloneBoolMap(ps.ExitCriteriaStatus)
		cp.Landmarks = cloneStringMap(ps.Landmarks)
		out.Phases[id] = &cp
	}
	out.ManualOverrides = cloneStringMap(s.ManualOverrides)
	return &out
}

// Phase returns the phase record, creating it if absent.
func (s *CaseState) Phase(phaseID string) *PhaseState {
	if s.Phases == nil {
		s.Phases = make(map[string]*PhaseState)
	}
	ps, ok := s.Phases[phaseID]
	if !ok {
		ps = &PhaseState{Status: PhasePending}
		s.Phases[phaseID] = ps
	}
	return ps
}

func cloneStringMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func cloneBoolMap(m map[string]bool) map[string]bool {
	if m == nil {
		return nil
	}
	out := make(map[string]bool, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

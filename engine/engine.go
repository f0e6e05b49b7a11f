// Package engine ties the derivation pipeline together: load case data,
// derive the workflow position, and reconcile it into the persisted
// record. It owns the read/derive/sync transaction and the optimistic
// retry around concurrent writers.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/meridianlegal/caseflow/casedata"
	"github.com/meridianlegal/caseflow/derive"
	"github.com/meridianlegal/caseflow/registry"
	"github.com/meridianlegal/caseflow/sol"
	"github.com/meridianlegal/caseflow/statestore"
	"github.com/meridianlegal/caseflow/syncer"
)

// syncRetries bounds the optimistic-concurrency retry loop. Conflicts
// are rare (two operators syncing the same case at once), so a small
// bound is plenty.
const syncRetries = 3

// ErrConflict is returned when a sync keeps losing the revision race
// after retries.
var ErrConflict = errors.New("case record changed concurrently")

// DataSource supplies raw case records.
type DataSource interface {
	Load(ctx context.Context, caseID string) (*casedata.CaseData, error)
	ListCaseIDs(ctx context.Context) ([]string, error)
}

// StateStore persists case workflow records with revision-checked writes.
type StateStore interface {
	Get(ctx context.Context, caseID string) (*statestore.CaseState, uint64, error)
	Create(ctx context.Context, state *statestore.CaseState) error
	Update(ctx context.Context, state *statestore.CaseState, revision uint64) error
	Keys(ctx context.Context) ([]string, error)
}

// SyncOptions control a SyncCase call.
type SyncOptions struct {
	// DryRun derives and diffs but writes nothing.
	DryRun bool
	// Force writes the record even when the diff is empty.
	Force bool
}

// SyncOutcome reports what one SyncCase call did.
type SyncOutcome struct {
	CaseID      string               `json:"case_id"`
	Created     bool                 `json:"created,omitempty"`
	Written     bool                 `json:"written"`
	Corrections []syncer.Correction  `json:"corrections,omitempty"`
	Derived     *derive.DerivedState `json:"derived"`
}

// Engine is the facade the CLI and migration runner drive. It is safe
// for concurrent use; per-case write ordering comes from the store's
// revision checks, not from locking here.
type Engine struct {
	reg     *registry.Registry
	source  DataSource
	store   StateStore
	deriver *derive.Deriver
	syncer  *syncer.Syncer
	tracker *sol.Tracker
	logger  *slog.Logger
	now     func() time.Time
}

// New wires an engine. tracker may be nil to disable statute
// computation (a catalog used for closed-file review, for example).
func New(reg *registry.Registry, source DataSource, store StateStore, tracker *sol.Tracker, logger *slog.Logger) (*Engine, error) {
	if logger == nil {
		logger = slog.Default()
	}
	dv, err := derive.NewDeriver(reg, logger)
	if err != nil {
		return nil, fmt.Errorf("build deriver: %w", err)
	}
	return &Engine{
		reg:     reg,
		source:  source,
		store:   store,
		deriver: dv,
		syncer:  syncer.New(reg),
		tracker: tracker,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}, nil
}

// Derive computes the current workflow position for a case without
// writing anything. Persisted landmark progress and manual overrides
// are honored when a record exists.
func (e *Engine) Derive(ctx context.Context, caseID string) (*derive.Result, error) {
	data, err := e.source.Load(ctx, caseID)
	if err != nil {
		return nil, err
	}

	var prior *derive.Prior
	if persisted, _, err := e.store.Get(ctx, caseID); err == nil {
		prior = priorFrom(persisted)
	} else if !errors.Is(err, statestore.ErrNotFound) {
		return nil, fmt.Errorf("read case record: %w", err)
	}

	res, err := e.deriver.Derive(data, prior)
	if err != nil {
		return nil, err
	}
	e.attachStatute(res, data)
	return res, nil
}

// GetDerivedState returns the freshly derived snapshot for a case with
// a persisted record, or (nil, nil) when the case has never been synced
// (callers prompt for initialization; not an error).
func (e *Engine) GetDerivedState(ctx context.Context, caseID string) (*derive.DerivedState, error) {
	persisted, _, err := e.store.Get(ctx, caseID)
	if errors.Is(err, statestore.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read case record: %w", err)
	}

	data, err := e.source.Load(ctx, caseID)
	if err != nil {
		return nil, err
	}
	res, err := e.deriver.Derive(data, priorFrom(persisted))
	if err != nil {
		return nil, err
	}
	e.attachStatute(res, data)
	return res.State, nil
}

// GetState returns the persisted record, or (nil, nil) when the case
// has never been synced. Callers render guidance from the derived view
// and treat the persisted record as supplementary.
func (e *Engine) GetState(ctx context.Context, caseID string) (*statestore.CaseState, error) {
	state, _, err := e.store.Get(ctx, caseID)
	if errors.Is(err, statestore.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read case record: %w", err)
	}
	return state, nil
}

// SyncCase derives a case and writes the minimal diff to its persisted
// record, creating the record when absent. Lost revision races are
// retried against a fresh read.
func (e *Engine) SyncCase(ctx context.Context, caseID string, opts SyncOptions) (*SyncOutcome, error) {
	data, err := e.source.Load(ctx, caseID)
	if err != nil {
		return nil, err
	}

	for attempt := 0; attempt < syncRetries; attempt++ {
		outcome, err := e.syncOnce(ctx, caseID, data, opts)
		if errors.Is(err, statestore.ErrRevisionConflict) || errors.Is(err, statestore.ErrExists) {
			e.logger.Debug("sync lost revision race, retrying",
				"case_id", caseID, "attempt", attempt+1)
			continue
		}
		return outcome, err
	}
	return nil, fmt.Errorf("sync %s: %w", caseID, ErrConflict)
}

func (e *Engine) syncOnce(ctx context.Context, caseID string, data *casedata.CaseData, opts SyncOptions) (*SyncOutcome, error) {
	persisted, revision, err := e.store.Get(ctx, caseID)
	missing := errors.Is(err, statestore.ErrNotFound)
	if err != nil && !missing {
		return nil, fmt.Errorf("read case record: %w", err)
	}

	var prior *derive.Prior
	if !missing {
		prior = priorFrom(persisted)
	}
	res, err := e.deriver.Derive(data, prior)
	if err != nil {
		return nil, err
	}
	e.attachStatute(res, data)

	now := e.now()
	outcome := &SyncOutcome{CaseID: caseID, Derived: res.State}

	if missing {
		outcome.Created = true
		if opts.DryRun {
			return outcome, nil
		}
		state := e.syncer.Build(res, data, now)
		if err := e.store.Create(ctx, state); err != nil {
			return nil, err
		}
		outcome.Written = true
		e.logger.Info("case record created",
			"case_id", caseID, "phase", state.CurrentPhase)
		return outcome, nil
	}

	updated, corrections, changed := e.syncer.Sync(res, persisted, now)
	outcome.Corrections = corrections
	if !changed && !opts.Force {
		return outcome, nil
	}
	if opts.DryRun {
		return outcome, nil
	}
	if err := e.store.Update(ctx, updated, revision); err != nil {
		return nil, err
	}
	outcome.Written = true
	e.logger.Info("case record synced",
		"case_id", caseID,
		"phase", updated.CurrentPhase,
		"corrections", len(corrections))
	return outcome, nil
}

// InitCase creates the persisted record for a case that has none yet.
func (e *Engine) InitCase(ctx context.Context, caseID string) (*statestore.CaseState, error) {
	data, err := e.source.Load(ctx, caseID)
	if err != nil {
		return nil, err
	}
	res, err := e.deriver.Derive(data, nil)
	if err != nil {
		return nil, err
	}
	state := e.syncer.Build(res, data, e.now())
	if err := e.store.Create(ctx, state); err != nil {
		return nil, err
	}
	return state, nil
}

// ListCaseIDs exposes workspace discovery for batch callers.
func (e *Engine) ListCaseIDs(ctx context.Context) ([]string, error) {
	return e.source.ListCaseIDs(ctx)
}

func (e *Engine) attachStatute(res *derive.Result, data *casedata.CaseData) {
	if e.tracker == nil || data == nil || data.Overview == nil || data.Overview.AccidentDate == nil {
		return
	}
	status := e.tracker.Compute(data.Overview.AccidentDate.Time, data.Overview.AccidentType, e.now())
	res.State.StatuteOfLimitations = &status
}

// priorFrom flattens a persisted record into the deriver's input: the
// recorded phase, every landmark recorded across all phases, and any
// manual overrides.
func priorFrom(state *statestore.CaseState) *derive.Prior {
	prior := &derive.Prior{
		Phase:     state.CurrentPhase,
		Landmarks: make(map[string]registry.LandmarkStatus),
		Overrides: make(map[string]registry.LandmarkStatus),
	}
	for _, ps := range state.Phases {
		for id, status := range ps.Landmarks {
			s := registry.LandmarkStatus(status)
			if s.IsValid() {
				prior.Landmarks[id] = s
			}
		}
	}
	for id, status := range state.ManualOverrides {
		s := registry.LandmarkStatus(status)
		if s.IsValid() {
			prior.Overrides[id] = s
		}
	}
	return prior
}

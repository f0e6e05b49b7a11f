package engine

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridianlegal/caseflow/casedata"
	"github.com/meridianlegal/caseflow/registry"
	"github.com/meridianlegal/caseflow/sol"
	"github.com/meridianlegal/caseflow/statestore"
)

// memStore is an in-memory StateStore with the same revision semantics
// as the NATS-backed one.
type memStore struct {
	mu       sync.Mutex
	states   map[string]*statestore.CaseState
	revs     map[string]uint64
	failNext error
}

func newMemStore() *memStore {
	return &memStore{
		states: make(map[string]*statestore.CaseState),
		revs:   make(map[string]uint64),
	}
}

func (m *memStore) Get(_ context.Context, caseID string) (*statestore.CaseState, uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	state, ok := m.states[caseID]
	if !ok {
		return nil, 0, statestore.ErrNotFound
	}
	return state.Clone(), m.revs[caseID], nil
}

func (m *memStore) Create(_ context.Context, state *statestore.CaseState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return err
	}
	if _, ok := m.states[state.CaseID]; ok {
		return statestore.ErrExists
	}
	m.states[state.CaseID] = state.Clone()
	m.revs[state.CaseID] = 1
	return nil
}

func (m *memStore) Update(_ context.Context, state *statestore.CaseState, revision uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return err
	}
	if _, ok := m.states[state.CaseID]; !ok {
		return statestore.ErrNotFound
	}
	if m.revs[state.CaseID] != revision {
		return statestore.ErrRevisionConflict
	}
	m.states[state.CaseID] = state.Clone()
	m.revs[state.CaseID]++
	return nil
}

func (m *memStore) Keys(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.states))
	for k := range m.states {
		keys = append(keys, k)
	}
	return keys, nil
}

func (m *memStore) takeFailure() error {
	err := m.failNext
	m.failNext = nil
	return err
}

func writeCase(t *testing.T, workspace, caseID string, records map[string]any) {
	t.Helper()
	dir := filepath.Join(workspace, "cases", caseID)
	require.NoError(t, os.MkdirAll(dir, 0755))
	for name, record := range records {
		data, err := json.Marshal(record)
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), data, 0644))
	}
}

func onboardedRecords() map[string]any {
	return map[string]any{
		"overview.json": map[string]any{
			"client_name":           "Dana Whitfield",
			"accident_date":         "2024-03-15",
			"accident_type":         "motor_vehicle",
			"intake_completed_date": "2024-03-16",
			"retainer_signed_date":  "2024-03-17",
		},
	}
}

func newTestEngine(t *testing.T, workspace string) (*Engine, *memStore) {
	t.Helper()
	tracker, err := sol.NewTracker(sol.DefaultConfig())
	require.NoError(t, err)
	source := casedata.NewAdapter(workspace, casedata.DefaultRetryConfig(), nil)
	store := newMemStore()
	eng, err := New(registry.Default(), source, store, tracker, nil)
	require.NoError(t, err)
	return eng, store
}

func TestDeriveWithoutRecordWritesNothing(t *testing.T) {
	ws := t.TempDir()
	writeCase(t, ws, "case-001", onboardedRecords())
	eng, store := newTestEngine(t, ws)

	res, err := eng.Derive(context.Background(), "case-001")
	require.NoError(t, err)
	assert.Equal(t, "phase_1_file_setup", res.State.CurrentPhase.ID)
	require.NotNil(t, res.State.StatuteOfLimitations)
	assert.Equal(t, "2026-03-15", res.State.StatuteOfLimitations.Deadline.Format("2006-01-02"))

	keys, err := store.Keys(context.Background())
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestDeriveMissingCase(t *testing.T) {
	eng, _ := newTestEngine(t, t.TempDir())
	_, err := eng.Derive(context.Background(), "no-such-case")
	assert.ErrorIs(t, err, casedata.ErrCaseNotFound)
}

func TestGetStateReturnsNilWhenNeverSynced(t *testing.T) {
	ws := t.TempDir()
	writeCase(t, ws, "case-001", onboardedRecords())
	eng, _ := newTestEngine(t, ws)

	state, err := eng.GetState(context.Background(), "case-001")
	require.NoError(t, err)
	assert.Nil(t, state)
}

func TestGetDerivedStateNilWhenNeverSynced(t *testing.T) {
	ws := t.TempDir()
	writeCase(t, ws, "case-001", onboardedRecords())
	eng, _ := newTestEngine(t, ws)

	state, err := eng.GetDerivedState(context.Background(), "case-001")
	require.NoError(t, err)
	assert.Nil(t, state)
}

func TestGetDerivedStateAfterSync(t *testing.T) {
	ws := t.TempDir()
	writeCase(t, ws, "case-001", onboardedRecords())
	eng, _ := newTestEngine(t, ws)
	ctx := context.Background()

	_, err := eng.SyncCase(ctx, "case-001", SyncOptions{})
	require.NoError(t, err)

	state, err := eng.GetDerivedState(ctx, "case-001")
	require.NoError(t, err)
	require.NotNil(t, state)
	assert.Equal(t, "case-001", state.CaseID)
	assert.Equal(t, "phase_1_file_setup", state.CurrentPhase.ID)
	require.NotNil(t, state.StatuteOfLimitations)
	assert.False(t, state.CanAdvance)
}

func TestSyncCaseCreatesThenConverges(t *testing.T) {
	ws := t.TempDir()
	writeCase(t, ws, "case-001", onboardedRecords())
	eng, _ := newTestEngine(t, ws)
	ctx := context.Background()

	first, err := eng.SyncCase(ctx, "case-001", SyncOptions{})
	require.NoError(t, err)
	assert.True(t, first.Created)
	assert.True(t, first.Written)

	second, err := eng.SyncCase(ctx, "case-001", SyncOptions{})
	require.NoError(t, err)
	assert.False(t, second.Created)
	assert.False(t, second.Written)
	assert.Empty(t, second.Corrections)

	state, err := eng.GetState(ctx, "case-001")
	require.NoError(t, err)
	require.NotNil(t, state)
	assert.Equal(t, "phase_1_file_setup", state.CurrentPhase)
}

func TestSyncCaseDryRunWritesNothing(t *testing.T) {
	ws := t.TempDir()
	writeCase(t, ws, "case-001", onboardedRecords())
	eng, store := newTestEngine(t, ws)

	outcome, err := eng.SyncCase(context.Background(), "case-001", SyncOptions{DryRun: true})
	require.NoError(t, err)
	assert.True(t, outcome.Created)
	assert.False(t, outcome.Written)

	keys, err := store.Keys(context.Background())
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestSyncCaseForceWritesCleanRecord(t *testing.T) {
	ws := t.TempDir()
	writeCase(t, ws, "case-001", onboardedRecords())
	eng, _ := newTestEngine(t, ws)
	ctx := context.Background()

	_, err := eng.SyncCase(ctx, "case-001", SyncOptions{})
	require.NoError(t, err)

	outcome, err := eng.SyncCase(ctx, "case-001", SyncOptions{Force: true})
	require.NoError(t, err)
	assert.Empty(t, outcome.Corrections)
	assert.True(t, outcome.Written)
}

func TestSyncCaseRetriesRevisionConflict(t *testing.T) {
	ws := t.TempDir()
	writeCase(t, ws, "case-001", onboardedRecords())
	eng, store := newTestEngine(t, ws)
	ctx := context.Background()

	_, err := eng.SyncCase(ctx, "case-001", SyncOptions{})
	require.NoError(t, err)

	store.failNext = statestore.ErrRevisionConflict
	outcome, err := eng.SyncCase(ctx, "case-001", SyncOptions{Force: true})
	require.NoError(t, err)
	assert.True(t, outcome.Written)
}

func TestSyncCaseHonorsManualOverride(t *testing.T) {
	ws := t.TempDir()
	writeCase(t, ws, "case-001", onboardedRecords())
	eng, store := newTestEngine(t, ws)
	ctx := context.Background()

	_, err := eng.SyncCase(ctx, "case-001", SyncOptions{})
	require.NoError(t, err)

	// An operator pins retainer_signed back to incomplete.
	state, rev, err := store.Get(ctx, "case-001")
	require.NoError(t, err)
	state.ManualOverrides = map[string]string{"retainer_signed": "incomplete"}
	require.NoError(t, store.Update(ctx, state, rev))

	res, err := eng.Derive(ctx, "case-001")
	require.NoError(t, err)
	assert.Equal(t, "phase_0_onboarding", res.State.CurrentPhase.ID)

	found := false
	for _, e := range res.State.Landmarks.CurrentPhase {
		if e.ID == "retainer_signed" {
			found = true
			assert.Equal(t, registry.StatusIncomplete, e.Status)
			assert.True(t, e.Overridden)
		}
	}
	assert.True(t, found)
}

func TestInitCaseRejectsDuplicate(t *testing.T) {
	ws := t.TempDir()
	writeCase(t, ws, "case-001", onboardedRecords())
	eng, _ := newTestEngine(t, ws)
	ctx := context.Background()

	state, err := eng.InitCase(ctx, "case-001")
	require.NoError(t, err)
	assert.Equal(t, "phase_1_file_setup", state.CurrentPhase)

	_, err = eng.InitCase(ctx, "case-001")
	assert.True(t, errors.Is(err, statestore.ErrExists))
}

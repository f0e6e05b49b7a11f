package statestore

import (
	"context"
	"testing"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestStore spins up an embedded JetStream server for the test.
func newTestStore(t *testing.T) *Store {
	t.Helper()

	opts := &server.Options{
		Port:      -1,
		JetStream: true,
		StoreDir:  t.TempDir(),
		NoLog:     true,
		NoSigs:    true,
	}
	ns, err := server.NewServer(opts)
	require.NoError(t, err)

	go ns.Start()
	require.True(t, ns.ReadyForConnections(5*time.Second), "embedded NATS failed to start")
	t.Cleanup(ns.Shutdown)

	conn, err := nats.Connect(ns.ClientURL())
	require.NoError(t, err)
	t.Cleanup(conn.Close)

	js, err := jetstream.New(conn)
	require.NoError(t, err)

	store, err := NewStore(context.Background(), js)
	require.NoError(t, err)
	return store
}

func TestCreateGetRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	state := &CaseState{
		CaseID:       "case-001",
		ClientName:   "Dana Whitfield",
		AccidentType: "motor_vehicle",
		CurrentPhase: "phase_0_onboarding",
		Phases: map[string]*PhaseState{
			"phase_0_onboarding": {Status: PhaseInProgress},
		},
	}

	require.NoError(t, store.Create(ctx, state))

	got, rev, err := store.Get(ctx, "case-001")
	require.NoError(t, err)
	assert.Equal(t, "Dana Whitfield", got.ClientName)
	assert.Equal(t, "phase_0_onboarding", got.CurrentPhase)
	assert.Equal(t, RecordActive, got.RecordStatus)
	assert.NotZero(t, rev)
	assert.False(t, got.CreatedAt.IsZero())
}

func TestGetMissing(t *testing.T) {
	store := newTestStore(t)

	_, _, err := store.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCreateDuplicate(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	state := &CaseState{CaseID: "case-001", CurrentPhase: "phase_0_onboarding"}
	require.NoError(t, store.Create(ctx, state))

	err := store.Create(ctx, &CaseState{CaseID: "case-001", CurrentPhase: "phase_0_onboarding"})
	assert.ErrorIs(t, err, ErrExists)
}

func TestUpdateRevisionConflict(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	state := &CaseState{CaseID: "case-001", CurrentPhase: "phase_0_onboarding"}
	require.NoError(t, store.Create(ctx, state))

	first, rev, err := store.Get(ctx, "case-001")
	require.NoError(t, err)

	// Writer A lands first.
	first.CurrentPhase = "phase_1_file_setup"
	require.NoError(t, store.Update(ctx, first, rev))

	// Writer B still holds the old revision and must lose.
	stale := first.Clone()
	stale.CurrentPhase = "phase_2_treatment"
	err = store.Update(ctx, stale, rev)
	assert.ErrorIs(t, err, ErrRevisionConflict)

	got, _, err := store.Get(ctx, "case-001")
	require.NoError(t, err)
	assert.Equal(t, "phase_1_file_setup", got.CurrentPhase)
}

func TestKeys(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	keys, err := store.Keys(ctx)
	require.NoError(t, err)
	assert.Empty(t, keys)

	for _, id := range []string{"case-a", "case-b"} {
		require.NoError(t, store.Create(ctx, &CaseState{CaseID: id, CurrentPhase: "phase_0_onboarding"}))
	}

	keys, err = store.Keys(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"case-a", "case-b"}, keys)
}

func TestClone(t *testing.T) {
	now := time.Now()
	orig := &CaseState{
		CaseID: "case-001",
		Phases: map[string]*PhaseState{
			"p0": {
				Status:             PhaseComplete,
				EnteredAt:          &now,
				Landmarks:          map[string]string{"a": "complete"},
				ExitCriteriaStatus: map[string]bool{"c": true},
			},
		},
		ManualOverrides: map[string]string{"a": "incomplete"},
	}

	cp := orig.Clone()
	cp.Phases["p0"].Landmarks["a"] = "incomplete"
	cp.Phases["p0"].ExitCriteriaStatus["c"] = false
	cp.ManualOverrides["a"] = "complete"

	assert.Equal(t, "complete", orig.Phases["p0"].Landmarks["a"])
	assert.True(t, orig.Phases["p0"].ExitCriteriaStatus["c"])
	assert.Equal(t, "incomplete", orig.ManualOverrides["a"])
}

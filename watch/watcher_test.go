package watch

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestWatcher(t *testing.T) (*Watcher, string) {
	t.Helper()
	ws := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(ws, "cases", "case-001"), 0755))

	w, err := New(Config{Workspace: ws, DebounceDelay: 50 * time.Millisecond})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, w.Start(ctx))
	t.Cleanup(func() {
		cancel()
		_ = w.Stop()
	})
	return w, ws
}

func waitForEvent(t *testing.T, w *Watcher) CaseEvent {
	t.Helper()
	select {
	case ev := <-w.Events():
		return ev
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for case event")
		return CaseEvent{}
	}
}

func TestWatcherEmitsCaseEvent(t *testing.T) {
	w, ws := newTestWatcher(t)

	path := filepath.Join(ws, "cases", "case-001", "overview.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"client_name":"Dana"}`), 0644))

	ev := waitForEvent(t, w)
	assert.Equal(t, "case-001", ev.CaseID)
	assert.Contains(t, ev.Files, "overview.json")
}

func TestWatcherDebouncesBurstIntoOneEvent(t *testing.T) {
	w, ws := newTestWatcher(t)

	dir := filepath.Join(ws, "cases", "case-001")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "overview.json"), []byte(`{}`), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "liens.json"), []byte(`[]`), 0644))

	ev := waitForEvent(t, w)
	assert.Equal(t, "case-001", ev.CaseID)
	sort.Strings(ev.Files)
	assert.Subset(t, []string{"insurance_claims.json", "liens.json", "overview.json"}, ev.Files)
}

func TestWatcherPicksUpNewCaseDirectory(t *testing.T) {
	w, ws := newTestWatcher(t)

	dir := filepath.Join(ws, "cases", "case-002")
	require.NoError(t, os.MkdirAll(dir, 0755))
	// Give the watcher a beat to register the new directory.
	time.Sleep(200 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "overview.json"), []byte(`{}`), 0644))

	ev := waitForEvent(t, w)
	assert.Equal(t, "case-002", ev.CaseID)
}

func TestWatcherStopClosesEventsWithoutPanic(t *testing.T) {
	ws := t.TempDir()
	dir := filepath.Join(ws, "cases", "case-001")
	require.NoError(t, os.MkdirAll(dir, 0755))

	w, err := New(Config{Workspace: ws, DebounceDelay: 10 * time.Millisecond})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))

	// Queue a change and stop while the debounce window is still open.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "overview.json"), []byte(`{}`), 0644))
	require.NoError(t, w.Stop())

	// The processing goroutine owns the channel; it must close it.
	deadline := time.After(5 * time.Second)
	for {
		select {
		case _, ok := <-w.Events():
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("events channel never closed after Stop")
		}
	}
}

func TestWatcherIgnoresNonRecordFiles(t *testing.T) {
	w, ws := newTestWatcher(t)

	dir := filepath.Join(ws, "cases", "case-001")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("scratch"), 0644))

	select {
	case ev := <-w.Events():
		t.Fatalf("unexpected event for non-record file: %+v", ev)
	case <-time.After(300 * time.Millisecond):
	}
}

package statestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go/jetstream"
)

// Bucket holding one entry per case, keyed by case id.
const Bucket = "CASEFLOW_CASE_STATE"

// Sentinel errors for store operations.
var (
	// ErrNotFound means the case has no persisted state record yet.
	ErrNotFound = errors.New("case state not found")

	// ErrExists means a record already exists for the case id.
	ErrExists = errors.New("case state already exists")

	// ErrRevisionConflict means a concurrent writer updated the record
	// first. Callers re-read and retry.
	ErrRevisionConflict = errors.New("case state revision conflict")
)

// Store provides durable case state storage backed by NATS KV. Writes
// for one case are serialized by the KV revision check: an update with
// a stale revision fails with ErrRevisionConflict. Reads race freely.
type Store struct {
	kv jetstream.KeyValue
}

// NewStore opens (or creates) the case state bucket.
func NewStore(ctx context.Context, js jetstream.JetStream) (*Store, error) {
	kv, err := js.KeyValue(ctx, Bucket)
	if err == nil {
		return &Store{kv: kv}, nil
	}
	kv, err = js.CreateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      Bucket,
		Description: "Caseflow per-case workflow state",
		History:     5, // Keep last 5 revisions
	})
	if err != nil {
		return nil, fmt.Errorf("create case state bucket: %w", err)
	}
	return &Store{kv: kv}, nil
}

// Get returns the state record and its revision for optimistic updates.
func (s *Store) Get(ctx context.Context, caseID string) (*CaseState, uint64, error) {
	entry, err := s.kv.Get(ctx, caseID)
	if err != nil {
		if isNotFound(err) {
			return nil, 0, fmt.Errorf("%w: %s", ErrNotFound, caseID)
		}
		return nil, 0, fmt.Errorf("get case state: %w", err)
	}

	var state CaseState
	if err := json.Unmarshal(entry.Value(), &state); err != nil {
		return nil, 0, fmt.Errorf("unmarshal case state: %w", err)
	}
	return &state, entry.Revision(), nil
}

// Create stores a brand new record; fails with ErrExists if one is
// already present for the case.
func (s *Store) Create(ctx context.Context, state *CaseState) error {
	if state.CreatedAt.IsZero() {
		state.CreatedAt = time.Now().UTC()
	}
	state.UpdatedAt = state.CreatedAt
	if state.RecordStatus == "" {
		state.RecordStatus = RecordActive
	}

	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal case state: %w", err)
	}

	if _, err := s.kv.Create(ctx, state.CaseID, data); err != nil {
		if isAlreadyExists(err) {
			return fmt.Errorf("%w: %s", ErrExists, state.CaseID)
		}
		return fmt.Errorf("store case state: %w", err)
	}
	return nil
}

// Update writes the record only if the revision still matches, giving
// one in-flight writer per case.
func (s *Store) Update(ctx context.Context, state *CaseState, revision uint64) error {
	state.UpdatedAt = time.Now().UTC()

	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal case state: %w", err)
	}

	if _, err := s.kv.Update(ctx, state.CaseID, data, revision); err != nil {
		if isRevisionMismatch(err) {
			return fmt.Errorf("%w: %s", ErrRevisionConflict, state.CaseID)
		}
		return fmt.Errorf("update case state: %w", err)
	}
	return nil
}

// Keys lists every case id with a persisted record.
func (s *Store) Keys(ctx context.Context) ([]string, error) {
	keys, err := s.kv.Keys(ctx)
	if err != nil {
		if errors.Is(err, jetstream.ErrNoKeysFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("list case state keys: %w", err)
	}
	return keys, nil
}

// isNotFound checks if an error indicates a key was not found.
func isNotFound(err error) bool {
	return errors.Is(err, jetstream.ErrKeyNotFound) ||
		(err != nil && strings.Contains(err.Error(), "key not found"))
}

func isAlreadyExists(err error) bool {
	return errors.Is(err, jetstream.ErrKeyExists) ||
		(err != nil && strings.Contains(err.Error(), "key exists"))
}

func isRevisionMismatch(err error) bool {
	return err != nil && strings.Contains(err.Error(), "wrong last sequence")
}

package casedata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/bmatcuk/doublestar/v4"
)

// Sentinel errors for adapter operations.
var (
	// ErrCaseNotFound means the case has no records at all. Fatal for
	// the current call.
	ErrCaseNotFound = errors.New("case not found")

	// ErrAdapterIO wraps transient store failures after retries are
	// exhausted. Callers may retry the whole operation later.
	ErrAdapterIO = errors.New("case data adapter I/O failure")
)

// Record file names within a case directory.
const (
	overviewFile   = "overview.json"
	claimsFile     = "insurance_claims.json"
	providersFile  = "medical_providers.json"
	liensFile      = "liens.json"
	litigationFile = "litigation.json"
)

// RetryConfig controls how transient read failures are retried before
// surfacing as ErrAdapterIO.
type RetryConfig struct {
	MaxAttempts       int           `yaml:"max_attempts" json:"max_attempts"`
	BackoffBase       time.Duration `yaml:"backoff_base" json:"backoff_base"`
	BackoffMultiplier float64       `yaml:"backoff_multiplier" json:"backoff_multiplier"`
}

// DefaultRetryConfig returns sensible retry defaults.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       3,
		BackoffBase:       100 * time.Millisecond,
		BackoffMultiplier: 2.0,
	}
}

// Adapter loads normalized case records from the workspace. It performs
// no business logic: pure read and normalize.
type Adapter struct {
	workspace string
	retry     RetryConfig
	logger    *slog.Logger
}

// NewAdapter creates an adapter rooted at the workspace directory.
func NewAdapter(workspace string, retry RetryConfig, logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	if retry.MaxAttempts < 1 {
		retry.MaxAttempts = 1
	}
	return &Adapter{workspace: workspace, retry: retry, logger: logger}
}

// casePath returns the directory holding one case's records.
func (a *Adapter) casePath(caseID string) string {
	return filepath.Join(a.workspace, "cases", caseID)
}

// Load reads and normalizes all records for one case. A case with no
// directory or no overview record yields ErrCaseNotFound.
func (a *Adapter) Load(ctx context.Context, caseID string) (*CaseData, error) {
	dir := a.casePath(caseID)

	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrCaseNotFound, caseID)
		}
		return nil, fmt.Errorf("%w: stat case dir: %v", ErrAdapterIO, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrCaseNotFound, caseID)
	}

	data := &CaseData{CaseID: caseID}

	var overview Overview
	ok, err := a.readRecord(ctx, filepath.Join(dir, overviewFile), &overview)
	if err != nil {
		return nil, err
	}
	if !ok {
		// No overview means the case effectively has no records.
		return nil, fmt.Errorf("%w: %s has no overview record", ErrCaseNotFound, caseID)
	}
	data.Overview = &overview

	if _, err := a.readRecord(ctx, filepath.Join(dir, claimsFile), &data.Claims); err != nil {
		return nil, err
	}
	if _, err := a.readRecord(ctx, filepath.Join(dir, providersFile), &data.Providers); err != nil {
		return nil, err
	}
	if _, err := a.readRecord(ctx, filepath.Join(dir, liensFile), &data.Liens); err != nil {
		return nil, err
	}

	var lit Litigation
	ok, err = a.readRecord(ctx, filepath.Join(dir, litigationFile), &lit)
	if err != nil {
		return nil, err
	}
	if ok {
		data.Litigation = &lit
	}

	return data, nil
}

// ListCaseIDs discovers every case directory in the workspace, sorted.
func (a *Adapter) ListCaseIDs(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pattern := filepath.Join(a.workspace, "cases", "*", overviewFile)
	matches, err := doublestar.FilepathGlob(pattern)
	if err != nil {
		return nil, fmt.Errorf("%w: glob cases: %v", ErrAdapterIO, err)
	}

	ids := make([]string, 0, len(matches))
	for _, m := range matches {
		ids = append(ids, filepath.Base(filepath.Dir(m)))
	}
	sort.Strings(ids)
	return ids, nil
}

// readRecord reads one JSON record file with retry. Returns (false, nil)
// when the file does not exist: absent records are normal for partially
// migrated cases.
func (a *Adapter) readRecord(ctx context.Context, path string, out any) (bool, error) {
	backoff := a.retry.BackoffBase
	var lastErr error

	for attempt := 1; attempt <= a.retry.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return false, err
		}

		raw, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return false, nil
			}
			lastErr = err
			a.logger.Warn("transient record read failure",
				"path", path,
				"attempt", attempt,
				"error", err)
			if attempt < a.retry.MaxAttempts {
				select {
				case <-ctx.Done():
					return false, ctx.Err()
				case <-time.After(backoff):
				}
				backoff = time.Duration(float64(backoff) * a.retry.BackoffMultiplier)
			}
			continue
		}

		if err := json.Unmarshal(raw, out); err != nil {
			// Malformed records are not transient; do not retry.
			return false, fmt.Errorf("%w: parse %s: %v", ErrAdapterIO, filepath.Base(path), err)
		}
		return true, nil
	}

	return false, fmt.Errorf("%w: read %s: %v", ErrAdapterIO, filepath.Base(path), lastErr)
}

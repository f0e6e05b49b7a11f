// Package registry provides the immutable phase catalog for the case
// workflow engine: phases, their total order, per-phase landmarks,
// exit criteria, and next-phase pointers. The catalog is loaded once at
// process start and validated before any derivation runs.
package registry

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Track identifies which side of litigation a phase belongs to.
type Track string

const (
	TrackPreLitigation Track = "pre_litigation"
	TrackLitigation    Track = "litigation"
)

// LandmarkStatus is the evaluated state of a single landmark.
type LandmarkStatus string

const (
	StatusIncomplete LandmarkStatus = "incomplete"
	StatusInProgress LandmarkStatus = "in_progress"
	StatusComplete   LandmarkStatus = "complete"
)

// IsValid returns true for one of the three defined landmark statuses.
func (s LandmarkStatus) IsValid() bool {
	switch s {
	case StatusIncomplete, StatusInProgress, StatusComplete:
		return true
	default:
		return false
	}
}

// rank orders statuses so that monotonicity checks can compare them.
// complete > in_progress > incomplete.
func (s LandmarkStatus) rank() int {
	switch s {
	case StatusComplete:
		return 2
	case StatusInProgress:
		return 1
	default:
		return 0
	}
}

// AtLeast reports whether s is at least as advanced as other.
func (s LandmarkStatus) AtLeast(other LandmarkStatus) bool {
	return s.rank() >= other.rank()
}

// Landmark is a discrete prerequisite fact tracked within a phase.
// Predicate names a registered predicate function that evaluates the
// landmark's status from case data.
type Landmark struct {
	ID          string `yaml:"id" json:"id"`
	DisplayName string `yaml:"display_name" json:"display_name"`
	HardBlocker bool   `yaml:"hard_blocker" json:"hard_blocker"`
	Predicate   string `yaml:"predicate" json:"predicate"`
}

// Workflow is a named sequence of work contributing toward one or more
// exit criteria of its phase.
type Workflow struct {
	ID            string   `yaml:"id" json:"id"`
	DisplayName   string   `yaml:"display_name" json:"display_name"`
	ContributesTo []string `yaml:"contributes_to_exit" json:"contributes_to_exit"`
}

// Phase is a named, ordered stage in a case's lifecycle.
type Phase struct {
	ID           string     `yaml:"id" json:"id"`
	DisplayName  string     `yaml:"display_name" json:"display_name"`
	Order        int        `yaml:"order" json:"order"`
	Track        Track      `yaml:"track" json:"track"`
	Landmarks    []Landmark `yaml:"landmarks" json:"landmarks"`
	ExitCriteria []string   `yaml:"exit_criteria" json:"exit_criteria"`
	Workflows    []Workflow `yaml:"workflows" json:"workflows"`
	NextPhase    string     `yaml:"next_phase,omitempty" json:"next_phase,omitempty"`
}

// Terminal reports whether the phase has no successor (closed case).
func (p *Phase) Terminal() bool {
	return p.NextPhase == ""
}

// Landmark returns the landmark with the given id, or nil.
func (p *Phase) Landmark(id string) *Landmark {
	for i := range p.Landmarks {
		if p.Landmarks[i].ID == id {
			return &p.Landmarks[i]
		}
	}
	return nil
}

// Criterion names the landmarks that must all be complete before the
// criterion is considered satisfied.
type Criterion struct {
	ID          string   `yaml:"id" json:"id"`
	DisplayName string   `yaml:"display_name" json:"display_name"`
	Requires    []string `yaml:"requires" json:"requires"`
}

// Catalog is the on-disk shape of a phase catalog file.
type Catalog struct {
	Version  string      `yaml:"version"`
	Phases   []Phase     `yaml:"phases"`
	Criteria []Criterion `yaml:"criteria"`
}

// Registry is the validated, immutable phase catalog. All lookups are
// read-only after construction; it is safe for concurrent use.
type Registry struct {
	phases   []Phase          // registry order (ascending Order)
	byID     map[string]int   // phase id -> index into phases
	criteria map[string]Criterion
}

// New builds a Registry from a catalog and validates it. A non-nil
// error is always a *ValidationError and is fatal: a partially valid
// catalog must never be used.
func New(cat *Catalog) (*Registry, error) {
	r := &Registry{
		phases:   make([]Phase, len(cat.Phases)),
		byID:     make(map[string]int, len(cat.Phases)),
		criteria: make(map[string]Criterion, len(cat.Criteria)),
	}
	copy(r.phases, cat.Phases)

	for i := range r.phases {
		r.byID[r.phases[i].ID] = i
	}
	for _, c := range cat.Criteria {
		r.criteria[c.ID] = c
	}

	if err := r.validate(); err != nil {
		return nil, err
	}
	return r, nil
}

// Load reads a catalog from a YAML file and validates it.
func Load(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog file: %w", err)
	}

	var cat Catalog
	if err := yaml.Unmarshal(data, &cat); err != nil {
		return nil, fmt.Errorf("parse catalog file: %w", err)
	}

	return New(&cat)
}

// Lookup returns the phase with the given id.
func (r *Registry) Lookup(phaseID string) (*Phase, error) {
	idx, ok := r.byID[phaseID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPhase, phaseID)
	}
	return &r.phases[idx], nil
}

// First returns the entry phase (lowest order).
func (r *Registry) First() *Phase {
	first := &r.phases[0]
	for i := range r.phases {
		if r.phases[i].Order < first.Order {
			first = &r.phases[i]
		}
	}
	return first
}

// Phases returns the phases in registry (declaration) order.
func (r *Registry) Phases() []Phase {
	out := make([]Phase, len(r.phases))
	copy(out, r.phases)
	return out
}

// Len returns the number of phases in the catalog.
func (r *Registry) Len() int {
	return len(r.phases)
}

// Criterion returns the named exit criterion.
func (r *Registry) Criterion(id string) (Criterion, bool) {
	c, ok := r.criteria[id]
	return c, ok
}

// Order returns the order of the given phase id, or -1 if unknown.
func (r *Registry) Order(phaseID string) int {
	idx, ok := r.byID[phaseID]
	if !ok {
		return -1
	}
	return r.phases[idx].Order
}

// Contains reports whether the phase id exists in the catalog.
func (r *Registry) Contains(phaseID string) bool {
	_, ok := r.byID[phaseID]
	return ok
}

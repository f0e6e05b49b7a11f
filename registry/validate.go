package registry

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownPhase is returned by Lookup for a phase id not in the catalog.
var ErrUnknownPhase = errors.New("unknown phase")

// ValidationError aggregates every defect found in a catalog. A catalog
// with any defect must not be used; there is no partial application.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid phase catalog: %s", strings.Join(e.Problems, "; "))
}

// validate checks the structural invariants of the catalog:
//
//   - the catalog is non-empty and phase ids are unique
//   - every next_phase reference resolves, points forward (strictly
//     greater order), and the order sequence has no duplicates
//   - following next_phase links from the entry phase reaches every
//     phase exactly once (no cycles, no islands)
//   - every exit criterion reference resolves, and every criterion's
//     required landmarks exist somewhere in the catalog
func (r *Registry) validate() error {
	var problems []string

	if len(r.phases) == 0 {
		return &ValidationError{Problems: []string{"catalog has no phases"}}
	}

	seenIDs := make(map[string]bool, len(r.phases))
	seenOrders := make(map[int]string, len(r.phases))
	landmarkIDs := make(map[string]bool)

	for i := range r.phases {
		p := &r.phases[i]

		if p.ID == "" {
			problems = append(problems, fmt.Sprintf("phase at index %d has empty id", i))
			continue
		}
		if seenIDs[p.ID] {
			problems = append(problems, fmt.Sprintf("duplicate phase id %q", p.ID))
		}
		seenIDs[p.ID] = true

		if prev, dup := seenOrders[p.Order]; dup {
			problems = append(problems, fmt.Sprintf("phases %q and %q share order %d", prev, p.ID, p.Order))
		}
		seenOrders[p.Order] = p.ID

		if p.NextPhase != "" {
			nextIdx, ok := r.byID[p.NextPhase]
			if !ok {
				problems = append(problems, fmt.Sprintf("phase %q references dangling next_phase %q", p.ID, p.NextPhase))
			} else if r.phases[nextIdx].Order <= p.Order {
				problems = append(problems, fmt.Sprintf("phase %q next_phase %q does not advance order", p.ID, p.NextPhase))
			}
		}

		for _, lm := range p.Landmarks {
			if lm.ID == "" {
				problems = append(problems, fmt.Sprintf("phase %q has a landmark with empty id", p.ID))
				continue
			}
			if landmarkIDs[lm.ID] {
				problems = append(problems, fmt.Sprintf("duplicate landmark id %q", lm.ID))
			}
			landmarkIDs[lm.ID] = true
			if lm.Predicate == "" {
				problems = append(problems, fmt.Sprintf("landmark %q has no predicate", lm.ID))
			}
		}

		for _, cid := range p.ExitCriteria {
			if _, ok := r.criteria[cid]; !ok {
				problems = append(problems, fmt.Sprintf("phase %q references unknown exit criterion %q", p.ID, cid))
			}
		}

		for _, wf := range p.Workflows {
			for _, cid := range wf.ContributesTo {
				if _, ok := r.criteria[cid]; !ok {
					problems = append(problems, fmt.Sprintf("workflow %q contributes to unknown criterion %q", wf.ID, cid))
				}
			}
		}
	}

	for _, c := range r.criteria {
		for _, lmID := range c.Requires {
			if !landmarkIDs[lmID] {
				problems = append(problems, fmt.Sprintf("criterion %q requires unknown landmark %q", c.ID, lmID))
			}
		}
	}

	// Walk the next_phase chain from the entry phase. Every phase must
	// be visited exactly once.
	if len(problems) == 0 {
		visited := make(map[string]bool, len(r.phases))
		cur := r.First()
		for steps := 0; ; steps++ {
			if steps > len(r.phases) {
				problems = append(problems, "next_phase chain contains a cycle")
				break
			}
			if visited[cur.ID] {
				problems = append(problems, fmt.Sprintf("phase %q visited twice in next_phase chain", cur.ID))
				break
			}
			visited[cur.ID] = true
			if cur.Terminal() {
				break
			}
			idx := r.byID[cur.NextPhase]
			cur = &r.phases[idx]
		}
		if len(problems) == 0 && len(visited) != len(r.phases) {
			for i := range r.phases {
				if !visited[r.phases[i].ID] {
					problems = append(problems, fmt.Sprintf("phase %q unreachable from entry phase", r.phases[i].ID))
				}
			}
		}
	}

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

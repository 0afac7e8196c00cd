package pipeline

import (
	"fmt"
	"strings"
)

// Strictness selects which report findings fail a run.
type Strictness struct {
	// CI fails when any target would change.
	CI bool
	// FailOnWarnings fails on warning diagnostics and conflicts.
	FailOnWarnings bool
	// FailOnConflict fails on default value conflicts.
	FailOnConflict bool
}

// StrictError is returned by Strictness.Check. Reasons lists every rule
// the report broke.
type StrictError struct {
	Reasons []string
}

func (e *StrictError) Error() string {
	return "strict mode: " + strings.Join(e.Reasons, "; ")
}

// Check applies s to rep. Without any strict flag it never fails.
func (s Strictness) Check(rep *Report) error {
	var reasons []string
	if failed := rep.Failed(); len(failed) > 0 && (s.CI || s.FailOnWarnings) {
		reasons = append(reasons, fmt.Sprintf("%d target(s) failed", len(failed)))
	}
	if s.CI && rep.Changed() {
		added, removed := rep.Counts()
		created := 0
		for _, t := range rep.Targets {
			if t.Created {
				created++
			}
		}
		reasons = append(reasons, fmt.Sprintf("locale files are out of date (%d added, %d removed, %d new files)", added, removed, created))
	}
	if s.FailOnWarnings {
		if w := rep.Warnings(); len(w) > 0 {
			reasons = append(reasons, fmt.Sprintf("%d warning(s)", len(w)))
		}
		if len(rep.ParseFailures) > 0 {
			reasons = append(reasons, fmt.Sprintf("%d unparseable file(s)", len(rep.ParseFailures)))
		}
	}
	if (s.FailOnWarnings || s.FailOnConflict) && len(rep.Conflicts) > 0 {
		reasons = append(reasons, fmt.Sprintf("%d key conflict(s)", len(rep.Conflicts)))
	}
	if len(reasons) == 0 {
		return nil
	}
	return &StrictError{Reasons: reasons}
}

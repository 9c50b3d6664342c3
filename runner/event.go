// Package runner runs YAML document fixtures against a schema and reports
// the outcome of each case through handlers and formatters.
package runner

import (
	"fmt"
	"strings"
	"time"

	"github.com/rlch/convexgen"
)

// Action is what happened to a fixture case.
type Action string

const (
	ActionRun   Action = "run"
	ActionPass  Action = "passed"
	ActionFail  Action = "failed"
	ActionSkip  Action = "skipped"
	ActionError Action = "error"
)

// IsTerminal reports whether the action ends a case.
func (a Action) IsTerminal() bool {
	return a != ActionRun
}

// Event is emitted for every step of a case: once when it starts and once
// with its outcome.
type Event struct {
	Time    time.Time
	Action  Action
	Suite   string // fixture file
	Table   string
	Case    string
	Line    int // 1-based line of the case, or 0
	Elapsed time.Duration
	Error   error

	Expect Expectation
	// Want is the issue path an invalid case requires.
	Want string
	// Issues produced by the insert. Set on invalid passes too.
	Issues []convexgen.Issue

	// DocID is the ID of an accepted document and Alias the name it was
	// saved under for later $id: references.
	DocID convexgen.ID
	Alias string
}

// Name returns "table/case".
func (e Event) Name() string {
	return e.Table + "/" + e.Case
}

// Key identifies the case across fixture files.
func (e Event) Key() string {
	return e.Suite + "::" + e.Table + "::" + e.Case
}

// Reason describes why a failed case did not meet its expectation.
func (e Event) Reason() string {
	switch {
	case e.Action != ActionFail:
		return ""
	case e.Expect == ExpectValid:
		return fmt.Sprintf("expected valid document, rejected with %d issue(s)", len(e.Issues))
	case len(e.Issues) == 0:
		return fmt.Sprintf("expected invalid document, accepted as %s", e.DocID)
	default:
		return fmt.Sprintf("expected an issue at %s, got %s", e.Want, strings.Join(issuePaths(e.Issues), ", "))
	}
}

func issuePaths(issues []convexgen.Issue) []string {
	out := make([]string, len(issues))
	for i, issue := range issues {
		out[i] = issue.Path
	}

	return out
}

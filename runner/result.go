package runner

import (
	"maps"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/rlch/convexgen"
)

// Counts tallies case outcomes.
type Counts struct {
	Total   int
	Passed  int
	Failed  int
	Skipped int
	Errors  int
}

func (c *Counts) add(a Action) {
	c.Total++

	switch a {
	case ActionPass:
		c.Passed++
	case ActionFail:
		c.Failed++
	case ActionSkip:
		c.Skipped++
	case ActionError:
		c.Errors++
	case ActionRun:
	}
}

// Ok reports whether nothing failed or errored.
func (c Counts) Ok() bool {
	return c.Failed == 0 && c.Errors == 0
}

// Result accumulates case outcomes across one or more fixture files, in total
// and per table.
type Result struct {
	mu sync.RWMutex

	StartTime time.Time
	EndTime   time.Time

	Counts

	Tables map[string]*Counts
	Cases  map[string]*CaseResult // by Event.Key
	Order  []string

	// Saved maps "suite::alias" to the ID stored under that alias.
	Saved map[string]convexgen.ID
}

// NewResult returns an empty Result started now.
func NewResult() *Result {
	return &Result{
		StartTime: time.Now(),
		Tables:    make(map[string]*Counts),
		Cases:     make(map[string]*CaseResult),
		Saved:     make(map[string]convexgen.ID),
	}
}

// Add records a terminal event. A case reported twice keeps its first
// position and its latest outcome.
func (r *Result) Add(event Event) {
	if !event.Action.IsTerminal() {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	key := event.Key()
	if _, ok := r.Cases[key]; !ok {
		r.Order = append(r.Order, key)
	}

	r.Cases[key] = &CaseResult{
		Suite:   event.Suite,
		Table:   event.Table,
		Case:    event.Case,
		Line:    event.Line,
		Status:  event.Action,
		Elapsed: event.Elapsed,
		Error:   event.Error,
		Reason:  event.Reason(),
		Issues:  event.Issues,
		DocID:   event.DocID,
		Alias:   event.Alias,
	}

	r.Counts.add(event.Action)

	tc, ok := r.Tables[event.Table]
	if !ok {
		tc = &Counts{}
		r.Tables[event.Table] = tc
	}

	tc.add(event.Action)

	if event.Alias != "" && event.DocID != "" {
		r.Saved[event.Suite+"::"+event.Alias] = event.DocID
	}
}

// Finish stops the clock.
func (r *Result) Finish() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.EndTime = time.Now()
}

// Elapsed returns the run time so far, or the total once finished.
func (r *Result) Elapsed() time.Duration {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.EndTime.IsZero() {
		return time.Since(r.StartTime)
	}

	return r.EndTime.Sub(r.StartTime)
}

// Ok reports whether no case failed or errored.
func (r *Result) Ok() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.Counts.Ok()
}

// TableNames returns the tables that had cases, sorted.
func (r *Result) TableNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return slices.Sorted(maps.Keys(r.Tables))
}

// TableCounts returns the tally for one table.
func (r *Result) TableCounts(table string) Counts {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if c, ok := r.Tables[table]; ok {
		return *c
	}

	return Counts{}
}

// FailedCases returns failed and errored cases in run order.
func (r *Result) FailedCases() []*CaseResult {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var failed []*CaseResult

	for _, key := range r.Order {
		if cr := r.Cases[key]; cr.Status == ActionFail || cr.Status == ActionError {
			failed = append(failed, cr)
		}
	}

	return failed
}

// CaseResult is the recorded outcome of one case.
type CaseResult struct {
	Suite   string
	Table   string
	Case    string
	Line    int
	Status  Action
	Elapsed time.Duration
	Error   error
	Reason  string
	Issues  []convexgen.Issue
	DocID   convexgen.ID
	Alias   string
}

// Name returns "table/case".
func (cr *CaseResult) Name() string {
	return cr.Table + "/" + cr.Case
}

// Location returns "suite:line", or the suite alone when the line is unknown.
func (cr *CaseResult) Location() string {
	if cr.Line > 0 {
		return cr.Suite + ":" + strconv.Itoa(cr.Line)
	}

	return cr.Suite
}

// Snapshot returns the current totals.
func (r *Result) Snapshot() Counts {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.Counts
}

// SavedIDs returns a copy of Saved.
func (r *Result) SavedIDs() map[string]convexgen.ID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return maps.Clone(r.Saved)
}

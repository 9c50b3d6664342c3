package runner

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/rlch/convexgen"
)

// Runner inserts fixture documents and checks each case's expected outcome.
type Runner struct {
	inserter Inserter
	handler  Handler
	failFast bool
	filter   *regexp.Regexp
	logger   *zap.Logger
}

// Option configures a Runner.
type Option func(*Runner)

// WithInserter sets where documents are inserted.
func WithInserter(i Inserter) Option {
	return func(r *Runner) {
		r.inserter = i
	}
}

// WithHandler sets the event handler.
func WithHandler(h Handler) Option {
	return func(r *Runner) {
		r.handler = h
	}
}

// WithFailFast stops on first failure.
func WithFailFast(enabled bool) Option {
	return func(r *Runner) {
		r.failFast = enabled
	}
}

// ParseFilter compiles a case filter. Cases whose "table/name" matches the
// pattern run. An empty pattern returns nil, which matches every case.
func ParseFilter(pattern string) (*regexp.Regexp, error) {
	if pattern == "" {
		return nil, nil
	}

	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidFilter, err)
	}

	return re, nil
}

// WithFilter restricts the run to cases whose "table/name" matches filter.
// A nil filter runs everything.
func WithFilter(filter *regexp.Regexp) Option {
	return func(r *Runner) {
		r.filter = filter
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Runner) {
		r.logger = logger
	}
}

// New creates a Runner with the given options.
func New(opts ...Option) *Runner {
	r := &Runner{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Run executes the cases of a fixture in order and returns the results.
// IDs saved by a case are visible to every later case of the same fixture.
func (r *Runner) Run(ctx context.Context, fixture *Fixture, suitePath string) (*Result, error) {
	result := NewResult()

	err := r.RunInto(ctx, fixture, suitePath, result)
	if err != nil && !errors.Is(err, ErrMaxFailures) {
		return result, err
	}

	result.Finish()

	return result, nil
}

// RunInto executes the cases of a fixture, accumulating into result. It lets
// several fixture files share one Result. ErrMaxFailures is returned when fail
// fast stops the run.
func (r *Runner) RunInto(ctx context.Context, fixture *Fixture, suitePath string, result *Result) error {
	if r.inserter == nil {
		return ErrNoInserter
	}

	handlers := []Handler{NewResultHandler()}
	if r.handler != nil {
		handlers = append(handlers, r.handler)
	}

	if r.failFast {
		handlers = append(handlers, NewStopOnFailHandler(1))
	}

	handler := NewMultiHandler(handlers...)
	ids := make(map[string]convexgen.ID)

	r.logger.Debug("Running fixture", zap.String("suite", suitePath), zap.Int("cases", len(fixture.Cases)))

	for _, c := range fixture.Cases {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := r.runCase(ctx, c, suitePath, ids, handler, result); err != nil {
			return err
		}
	}

	return nil
}

func (r *Runner) runCase(
	ctx context.Context,
	c *Case,
	suitePath string,
	ids map[string]convexgen.ID,
	handler Handler,
	result *Result,
) error {
	if !r.matchesFilter(c.Table, c.Name) {
		return nil
	}

	start := time.Now()

	emit := func(event Event) error {
		event.Suite, event.Table, event.Case, event.Line = suitePath, c.Table, c.Name, c.Line
		event.Expect, event.Want = c.Expect, c.Path
		event.Time = time.Now()

		if event.Action.IsTerminal() {
			event.Elapsed = time.Since(start)
		}

		return handler.Event(ctx, event, result)
	}

	if err := emit(Event{Action: ActionRun}); err != nil {
		return err
	}

	if c.Skip {
		return emit(Event{Action: ActionSkip})
	}

	doc, err := resolve(c.Doc, ids)
	if err != nil {
		return emit(Event{Action: ActionError, Error: err})
	}

	id, err := r.inserter.Insert(ctx, c.Table, doc)

	var verr *convexgen.ValidationError
	if err != nil && !errors.As(err, &verr) {
		return emit(Event{Action: ActionError, Error: err})
	}

	if err == nil {
		if c.Expect == ExpectInvalid {
			return emit(Event{Action: ActionFail, DocID: id, Error: fmt.Errorf("document was accepted as %s", id)})
		}

		if c.Save != "" {
			ids[c.Save] = id
		}

		return emit(Event{Action: ActionPass, DocID: id, Alias: c.Save})
	}

	if c.Expect == ExpectValid || (c.Path != "" && !slices.Contains(verr.Paths(), c.Path)) {
		return emit(Event{Action: ActionFail, Error: err, Issues: verr.Issues})
	}

	return emit(Event{Action: ActionPass, Issues: verr.Issues})
}

// matchesFilter reports whether "table/name" matches the filter. Everything
// matches when no filter is set.
func (r *Runner) matchesFilter(table, name string) bool {
	return r.filter == nil || r.filter.MatchString(table+"/"+name)
}

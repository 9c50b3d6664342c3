package runner

import (
	"context"

	"go.uber.org/zap"
)

// Handler observes case events as the runner produces them.
type Handler interface {
	Event(ctx context.Context, event Event, result *Result) error

	// Err reports a problem outside any case, such as an unreadable fixture.
	Err(text string) error
}

// MultiHandler fans events out in order. The first error stops the fan-out.
type MultiHandler []Handler

// NewMultiHandler combines handlers.
func NewMultiHandler(handlers ...Handler) MultiHandler {
	return MultiHandler(handlers)
}

func (m MultiHandler) Event(ctx context.Context, event Event, result *Result) error {
	for _, h := range m {
		if err := h.Event(ctx, event, result); err != nil {
			return err
		}
	}

	return nil
}

func (m MultiHandler) Err(text string) error {
	for _, h := range m {
		if err := h.Err(text); err != nil {
			return err
		}
	}

	return nil
}

// ResultHandler records outcomes into the Result passed with each event.
type ResultHandler struct{}

func NewResultHandler() ResultHandler {
	return ResultHandler{}
}

func (ResultHandler) Event(_ context.Context, event Event, result *Result) error {
	result.Add(event)

	return nil
}

func (ResultHandler) Err(string) error {
	return nil
}

// StopOnFailHandler returns ErrMaxFailures once failures and errors together
// reach the limit. A limit of zero never stops.
type StopOnFailHandler struct {
	limit int
}

func NewStopOnFailHandler(limit int) StopOnFailHandler {
	return StopOnFailHandler{limit: limit}
}

func (h StopOnFailHandler) Event(_ context.Context, event Event, result *Result) error {
	if h.limit <= 0 || (event.Action != ActionFail && event.Action != ActionError) {
		return nil
	}

	if c := result.Snapshot(); c.Failed+c.Errors >= h.limit {
		return ErrMaxFailures
	}

	return nil
}

func (StopOnFailHandler) Err(string) error {
	return nil
}

// LogHandler logs outcomes: failures at warn level with their issues, the
// rest at debug.
type LogHandler struct {
	logger *zap.Logger
}

func NewLogHandler(logger *zap.Logger) *LogHandler {
	return &LogHandler{logger: logger}
}

func (h *LogHandler) Event(_ context.Context, event Event, _ *Result) error {
	if !event.Action.IsTerminal() {
		return nil
	}

	fields := []zap.Field{
		zap.String("suite", event.Suite),
		zap.String("table", event.Table),
		zap.String("case", event.Case),
		zap.Duration("elapsed", event.Elapsed),
	}

	if event.DocID != "" {
		fields = append(fields, zap.Stringer("id", event.DocID))
	}

	switch event.Action {
	case ActionFail:
		fields = append(fields,
			zap.String("reason", event.Reason()),
			zap.Strings("issues", issuePaths(event.Issues)),
		)
		h.logger.Warn("Case failed", fields...)
	case ActionError:
		h.logger.Warn("Case errored", append(fields, zap.Error(event.Error))...)
	default:
		h.logger.Debug("Case "+string(event.Action), fields...)
	}

	return nil
}

func (h *LogHandler) Err(text string) error {
	h.logger.Error(text)

	return nil
}

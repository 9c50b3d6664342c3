package lsp

import (
	"time"

	"go.uber.org/zap"
)

// traceHandler logs how long a handler ran. Use as
// defer s.traceHandler("Hover")().
func (s *Server) traceHandler(name string) func() {
	start := time.Now()

	return func() {
		if elapsed := time.Since(start); elapsed > slowHandler {
			s.logger.Warn("Slow handler", zap.String("handler", name), zap.Duration("elapsed", elapsed))
		} else {
			s.logger.Debug("Handled", zap.String("handler", name), zap.Duration("elapsed", elapsed))
		}
	}
}

// slowHandler is the duration above which a handler is reported as slow.
const slowHandler = 250 * time.Millisecond

package lsp

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.lsp.dev/protocol"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// logQueueSize bounds the messages waiting for the client. Entries beyond it
// are dropped rather than blocking the logging goroutine.
const logQueueSize = 128

// clientCore is a zapcore.Core that forwards entries to the editor through
// window/logMessage, so server logs show up in the client's LSP log.
type clientCore struct {
	zapcore.LevelEnabler

	enc    zapcore.Encoder
	mu     *sync.Mutex
	queue  chan *protocol.LogMessageParams
	fields []zapcore.Field
}

// NewLSPLogger returns a logger writing both to fallback (typically stderr)
// and to the client's log window, plus a function that stops delivery to the
// client.
func NewLSPLogger(client Client, fallback zapcore.Core, level zapcore.LevelEnabler) (*zap.Logger, func()) {
	ctx, cancel := context.WithCancel(context.Background())

	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.TimeKey = ""
	encCfg.LevelKey = ""
	encCfg.CallerKey = ""
	encCfg.StacktraceKey = ""

	core := &clientCore{
		LevelEnabler: level,
		enc:          zapcore.NewConsoleEncoder(encCfg),
		mu:           &sync.Mutex{},
		queue:        make(chan *protocol.LogMessageParams, logQueueSize),
	}

	go func() {
		for {
			select {
			case msg := <-core.queue:
				// The client may already be gone; nothing useful to do with the error.
				_ = client.LogMessage(ctx, msg)
			case <-ctx.Done():
				return
			}
		}
	}()

	return zap.New(zapcore.NewTee(core, fallback)), cancel
}

func (c *clientCore) With(fields []zapcore.Field) zapcore.Core {
	clone := *c
	clone.enc = c.enc.Clone()
	clone.fields = append(append([]zapcore.Field(nil), c.fields...), fields...)

	return &clone
}

func (c *clientCore) Check(entry zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(entry.Level) {
		return ce.AddCore(entry, c)
	}

	return ce
}

func (c *clientCore) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	c.mu.Lock()
	buf, err := c.enc.EncodeEntry(entry, append(c.fields, fields...))
	c.mu.Unlock()

	if err != nil {
		return err
	}

	msg := &protocol.LogMessageParams{
		Type:    messageType(entry.Level),
		Message: strings.TrimSpace(buf.String()),
	}
	buf.Free()

	select {
	case c.queue <- msg:
	default:
	}

	return nil
}

func (c *clientCore) Sync() error { return nil }

func messageType(level zapcore.Level) protocol.MessageType {
	switch {
	case level >= zapcore.ErrorLevel:
		return protocol.MessageTypeError
	case level == zapcore.WarnLevel:
		return protocol.MessageTypeWarning
	case level == zapcore.InfoLevel:
		return protocol.MessageTypeInfo
	default:
		return protocol.MessageTypeLog
	}
}

// notifyClient shows a one-off message in the client's log window.
func (s *Server) notifyClient(ctx context.Context, level protocol.MessageType, format string, args ...any) {
	err := s.client.LogMessage(ctx, &protocol.LogMessageParams{
		Type:    level,
		Message: fmt.Sprintf(format, args...),
	})
	if err != nil {
		s.logger.Debug("Failed to send log message", zap.Error(err))
	}
}

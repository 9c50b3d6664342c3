package lsp_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"go.lsp.dev/protocol"
	"go.uber.org/zap"

	"github.com/rlch/convexgen/lsp"
)

// slowClient blocks in PublishDiagnostics to simulate a JSON-RPC connection
// whose writes stall while the editor is sending more requests.
type slowClient struct {
	fakeClient

	delay time.Duration
}

func (c *slowClient) PublishDiagnostics(ctx context.Context, params *protocol.PublishDiagnosticsParams) error {
	time.Sleep(c.delay)

	return c.fakeClient.PublishDiagnostics(ctx, params)
}

func moduleSource(version int) string {
	return fmt.Sprintf(`import { query } from "./_generated/server";
import { v } from "convex/values";

export const get%d = query({
  args: { id: v.id("users") },
  handler: async (ctx, args) => null,
});
`, version)
}

// TestServer_Deadlock_ChangeDuringRequests checks that document state is not
// locked while diagnostics are published, so requests arriving meanwhile are
// served.
func TestServer_Deadlock_ChangeDuringRequests(t *testing.T) {
	t.Parallel()

	server := lsp.NewServer(&slowClient{delay: 50 * time.Millisecond}, zap.NewNop())
	ctx := context.Background()

	uri := protocol.DocumentURI("file:///project/convex/users.ts")
	_ = server.DidOpen(ctx, &protocol.DidOpenTextDocumentParams{
		TextDocument: protocol.TextDocumentItem{URI: uri, Version: 1, Text: moduleSource(1)},
	})

	var wg sync.WaitGroup

	done := make(chan struct{}, 30)
	position := protocol.TextDocumentPositionParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: uri},
		Position:     protocol.Position{Line: 4, Character: 20},
	}

	for i := range 10 {
		version := int32(i + 2) //nolint:gosec // small loop

		wg.Go(func() {
			_ = server.DidChange(ctx, &protocol.DidChangeTextDocumentParams{
				TextDocument: protocol.VersionedTextDocumentIdentifier{
					TextDocumentIdentifier: protocol.TextDocumentIdentifier{URI: uri},
					Version:                version,
				},
				ContentChanges: []protocol.TextDocumentContentChangeEvent{{Text: moduleSource(int(version))}},
			})
			done <- struct{}{}
		})

		wg.Go(func() {
			_, _ = server.Completion(ctx, &protocol.CompletionParams{TextDocumentPositionParams: position})
			done <- struct{}{}
		})

		wg.Go(func() {
			_, _ = server.Hover(ctx, &protocol.HoverParams{TextDocumentPositionParams: position})
			done <- struct{}{}
		})
	}

	timeout := time.After(10 * time.Second)

	for completed := 0; completed < 30; {
		select {
		case <-done:
			completed++
		case <-timeout:
			t.Fatalf("DEADLOCK DETECTED: only %d/30 operations completed within 10 seconds", completed)
		}
	}

	wg.Wait()
}

package lsprpc

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kralicky/astrols/pkg/analysis"
	"github.com/kralicky/astrols/pkg/analysis/analysistest"
	"github.com/kralicky/astrols/pkg/lsp"
	"github.com/kralicky/tools-lite/gopls/pkg/protocol"
	"github.com/kralicky/tools-lite/pkg/jsonrpc2"
	"github.com/kralicky/tools-lite/pkg/jsonrpc2/servertest"
)

const page = `---
import Card from "./Card.tsx";
---
<Card />
`

func TestServeStream(t *testing.T) {
	ctx, ca := context.WithTimeout(context.Background(), 10*time.Second)
	defer ca()

	svc := &analysistest.Service{
		Modules: map[string]string{"./Card.tsx": "/project/src/Card.tsx"},
		Props: map[string][]analysis.Entry{
			"/project/src/Card.tsx": {{Name: "title", Kind: analysis.KindProperty, Type: "string"}},
		},
	}
	ss := NewStreamServer(func(context.Context, protocol.DocumentURI, lsp.Settings) (analysis.Service, error) {
		return svc, nil
	}, lsp.WithVersion("test"))
	conn := servertest.NewPipeServer(ss, jsonrpc2.NewHeaderStream).Connect(ctx)

	published := make(chan protocol.PublishDiagnosticsParams, 4)
	conn.Go(ctx, func(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
		if req.Method() == "textDocument/publishDiagnostics" {
			var params protocol.PublishDiagnosticsParams
			if err := json.Unmarshal(req.Params(), &params); err == nil {
				published <- params
			}
		}
		return reply(ctx, nil, nil)
	})

	var initResult protocol.InitializeResult
	_, err := conn.Call(ctx, "initialize", &protocol.ParamInitialize{
		XInitializeParams: protocol.XInitializeParams{
			RootURI: protocol.URIFromPath("/project"),
		},
	}, &initResult)
	require.NoError(t, err)
	require.Equal(t, &protocol.ServerInfo{Name: "astrols", Version: "test"}, initResult.ServerInfo)
	sync, ok := initResult.Capabilities.TextDocumentSync.(map[string]any)
	require.True(t, ok, "textDocumentSync is %T", initResult.Capabilities.TextDocumentSync)
	require.EqualValues(t, protocol.Incremental, sync["change"])
	require.Equal(t, []string{"-", ":", "<"}, initResult.Capabilities.CompletionProvider.TriggerCharacters)
	require.NoError(t, conn.Notify(ctx, "initialized", &protocol.InitializedParams{}))

	uri := protocol.URIFromPath("/project/src/index.astro")
	require.NoError(t, conn.Notify(ctx, "textDocument/didOpen", protocol.DidOpenTextDocumentParams{
		TextDocument: protocol.TextDocumentItem{
			URI:        uri,
			LanguageID: "astro",
			Version:    1,
			Text:       page,
		},
	}))
	select {
	case params := <-published:
		require.Equal(t, uri, params.URI)
		require.Empty(t, params.Diagnostics)
	case <-ctx.Done():
		t.Fatal("timed out waiting for diagnostics")
	}

	var list protocol.CompletionList
	_, err = conn.Call(ctx, "textDocument/completion", protocol.CompletionParams{
		TextDocumentPositionParams: protocol.TextDocumentPositionParams{
			TextDocument: protocol.TextDocumentIdentifier{URI: uri},
			Position:     protocol.Position{Line: 3, Character: 6},
		},
	}, &list)
	require.NoError(t, err)
	var labels []string
	for _, item := range list.Items {
		labels = append(labels, item.Label)
	}
	require.Contains(t, labels, "title")
	require.Contains(t, labels, "client:load")

	var symbols []protocol.DocumentSymbol
	_, err = conn.Call(ctx, "textDocument/documentSymbol", &protocol.DocumentSymbolParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: uri},
	}, &symbols)
	require.NoError(t, err)
	require.Empty(t, symbols)

	var ignored any
	_, err = conn.Call(ctx, "textDocument/rename", map[string]any{}, &ignored)
	require.ErrorContains(t, err, "method not found")
	_, err = conn.Call(ctx, "astrols/unknown", map[string]any{}, &ignored)
	require.ErrorContains(t, err, "method not found")

	_, err = conn.Call(ctx, "shutdown", nil, &ignored)
	require.NoError(t, err)
	require.NoError(t, conn.Notify(ctx, "exit", nil))
	select {
	case <-conn.Done():
	case <-ctx.Done():
		t.Fatal("connection was not closed after exit")
	}
}

func TestAsyncHandlerOrdering(t *testing.T) {
	ctx := context.Background()
	order := make(chan string, 3)
	release := make(chan struct{})
	handler := AsyncHandler(func(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
		if req.Method() == "slow" {
			<-release
		}
		order <- req.Method()
		return reply(ctx, nil, nil)
	})
	noopReply := func(context.Context, any, error) error { return nil }

	slow, err := jsonrpc2.NewCall(jsonrpc2.NewIntID(1), "slow", nil)
	require.NoError(t, err)
	fast, err := jsonrpc2.NewCall(jsonrpc2.NewIntID(2), "fast", nil)
	require.NoError(t, err)
	require.NoError(t, handler(ctx, noopReply, slow))
	require.NoError(t, handler(ctx, noopReply, fast))

	select {
	case m := <-order:
		t.Fatalf("%s ran before the slow request replied", m)
	case <-time.After(50 * time.Millisecond):
	}
	close(release)
	require.Equal(t, "slow", <-order)
	require.Equal(t, "fast", <-order)
}

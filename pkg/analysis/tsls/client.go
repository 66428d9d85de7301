// Package tsls implements analysis.Service on top of an external TypeScript
// language server, such as typescript-language-server, spoken to over JSON-RPC.
package tsls

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/kralicky/astrols/pkg/analysis"
	"github.com/kralicky/astrols/pkg/util"
	"github.com/kralicky/tools-lite/gopls/pkg/protocol"
	"github.com/kralicky/tools-lite/pkg/jsonrpc2"
	"golang.org/x/mod/semver"
)

const languageID = "typescriptreact"

// MinimumVersion is the oldest engine release known to report the completion
// details the resolver depends on.
const MinimumVersion = "v4.0.0"

type Options struct {
	// Command line of the engine, e.g. ["typescript-language-server", "--stdio"].
	Command []string
	RootURI protocol.DocumentURI
	// How long to wait for diagnostics to be published for a new artifact version.
	DiagnosticsTimeout time.Duration
	// Engine stderr. Defaults to os.Stderr.
	Stderr io.Writer
	// Sent as initializationOptions.
	InitializationOptions map[string]any
}

func (o *Options) applyDefaults() {
	if o.DiagnosticsTimeout == 0 {
		o.DiagnosticsTimeout = 2 * time.Second
	}
	if o.Stderr == nil {
		o.Stderr = os.Stderr
	}
}

// Client is an analysis.Service backed by a running engine.
type Client struct {
	conn jsonrpc2.Conn
	cmd  *exec.Cmd
	opts Options

	mu        sync.Mutex
	artifacts map[protocol.DocumentURI]*openArtifact

	diagnostics *diagnosticStore

	ServerName    string
	ServerVersion string
}

// openArtifact is the engine's view of one artifact. Its lock is held from
// the moment the content is synced until the request that needed it replies,
// so a request never observes content synced by another caller.
type openArtifact struct {
	mu     sync.Mutex
	closed bool
	opened bool
	// version of the artifact content last synced, as assigned by the caller
	source int32
	// version sent to the engine, bumped on every change
	version int32
	content []byte
}

var _ analysis.Service = (*Client)(nil)

// Start launches the engine process and performs the initialize handshake.
func Start(ctx context.Context, opts Options) (*Client, error) {
	opts.applyDefaults()
	if len(opts.Command) == 0 {
		return nil, errors.New("no engine command configured")
	}
	cmd := exec.Command(opts.Command[0], opts.Command[1:]...)
	cmd.Stderr = opts.Stderr
	if opts.RootURI != "" {
		cmd.Dir = opts.RootURI.Path()
	}
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		stdin.Close()
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		stdin.Close()
		stdout.Close()
		return nil, fmt.Errorf("starting %s: %w", opts.Command[0], err)
	}
	c, err := NewClient(ctx, util.NewPipeConn(stdout, stdin), opts)
	if err != nil {
		cmd.Process.Kill()
		cmd.Wait()
		return nil, err
	}
	c.cmd = cmd
	return c, nil
}

// NewClient initializes an engine reachable over conn.
func NewClient(ctx context.Context, nc net.Conn, opts Options) (*Client, error) {
	opts.applyDefaults()
	c := &Client{
		conn:        jsonrpc2.NewConn(jsonrpc2.NewHeaderStream(nc)),
		opts:        opts,
		artifacts:   make(map[protocol.DocumentURI]*openArtifact),
		diagnostics: newDiagnosticStore(),
	}
	c.conn.Go(context.WithoutCancel(ctx), c.handle)
	if err := c.initialize(ctx); err != nil {
		c.conn.Close()
		return nil, fmt.Errorf("initialize: %w", err)
	}
	return c, nil
}

func (c *Client) initialize(ctx context.Context) error {
	textFmt := []protocol.MarkupKind{protocol.Markdown, protocol.PlainText}
	params := &protocol.ParamInitialize{
		XInitializeParams: protocol.XInitializeParams{
			ProcessID: int32(os.Getpid()),
			RootURI:   c.opts.RootURI,
			Capabilities: protocol.ClientCapabilities{
				TextDocument: protocol.TextDocumentClientCapabilities{
					Completion: protocol.CompletionClientCapabilities{
						CompletionItem: protocol.ClientCompletionItemOptions{
							SnippetSupport:          true,
							CommitCharactersSupport: true,
							DocumentationFormat:     textFmt,
							DeprecatedSupport:       true,
							ResolveSupport: &protocol.ClientCompletionItemResolveOptions{
								Properties: []string{"detail", "documentation"},
							},
						},
					},
					Hover:          &protocol.HoverClientCapabilities{ContentFormat: textFmt},
					SignatureHelp:  &protocol.SignatureHelpClientCapabilities{ContextSupport: true},
					Definition:     &protocol.DefinitionClientCapabilities{LinkSupport: true},
					TypeDefinition: &protocol.TypeDefinitionClientCapabilities{LinkSupport: true},
					References:     &protocol.ReferenceClientCapabilities{},
					DocumentSymbol: protocol.DocumentSymbolClientCapabilities{
						HierarchicalDocumentSymbolSupport: true,
					},
					PublishDiagnostics: protocol.PublishDiagnosticsClientCapabilities{VersionSupport: true},
				},
			},
		},
	}
	if c.opts.InitializationOptions != nil {
		params.InitializationOptions = c.opts.InitializationOptions
	}
	var result protocol.InitializeResult
	if _, err := c.conn.Call(ctx, "initialize", params, &result); err != nil {
		return err
	}
	if result.ServerInfo != nil {
		c.ServerName = result.ServerInfo.Name
		c.ServerVersion = result.ServerInfo.Version
	}
	c.checkVersion()
	return c.conn.Notify(ctx, "initialized", &protocol.InitializedParams{})
}

func (c *Client) checkVersion() {
	v := c.ServerVersion
	if v == "" {
		return
	}
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	if !semver.IsValid(v) {
		slog.Debug("engine reported a non-semver version", "version", c.ServerVersion)
		return
	}
	if semver.Compare(v, MinimumVersion) < 0 {
		slog.Warn("engine is older than the minimum supported version",
			"name", c.ServerName,
			"version", c.ServerVersion,
			"minimum", MinimumVersion,
		)
	}
}

// handle answers requests and notifications initiated by the engine.
func (c *Client) handle(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	switch req.Method() {
	case "textDocument/publishDiagnostics":
		var params protocol.PublishDiagnosticsParams
		if err := json.Unmarshal(req.Params(), &params); err != nil {
			return reply(ctx, nil, fmt.Errorf("%w: %s", jsonrpc2.ErrParse, err))
		}
		c.diagnostics.publish(params.URI, params.Version, params.Diagnostics)
		return reply(ctx, nil, nil)
	case "window/logMessage":
		var params protocol.LogMessageParams
		if err := json.Unmarshal(req.Params(), &params); err == nil {
			slog.Debug("engine: "+params.Message, "type", params.Type)
		}
		return reply(ctx, nil, nil)
	case "workspace/configuration":
		var params struct {
			Items []json.RawMessage `json:"items"`
		}
		json.Unmarshal(req.Params(), &params)
		return reply(ctx, make([]any, len(params.Items)), nil)
	default:
		return reply(ctx, nil, nil)
	}
}

// Close shuts the engine down.
func (c *Client) Close(ctx context.Context) error {
	var errs []error
	if _, err := c.conn.Call(ctx, "shutdown", nil, nil); err != nil {
		errs = append(errs, err)
	}
	if err := c.conn.Notify(ctx, "exit", nil); err != nil {
		errs = append(errs, err)
	}
	if err := c.conn.Close(); err != nil {
		errs = append(errs, err)
	}
	if c.cmd != nil {
		if err := c.cmd.Wait(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// acquire locks the engine's view of an artifact and syncs it to the
// artifact's content, opening it on first use. Content older than what was
// last synced is refused with analysis.ErrStale. The returned release func
// must be called once the request made against the content has replied.
func (c *Client) acquire(ctx context.Context, artifact analysis.Artifact) (release func(), err error) {
	_, _, release, err = c.sync(ctx, artifact)
	return release, err
}

// sync is acquire, also returning the diagnostics sequence number current
// before any notification was sent and whether the content changed.
func (c *Client) sync(ctx context.Context, artifact analysis.Artifact) (uint64, bool, func(), error) {
	open := c.lock(artifact.URI)
	release := open.mu.Unlock
	seq := c.diagnostics.seq(artifact.URI)
	if !open.opened {
		open.opened = true
		open.source = artifact.Version
		open.version = 1
		open.content = artifact.Content
		err := c.conn.Notify(ctx, "textDocument/didOpen", &protocol.DidOpenTextDocumentParams{
			TextDocument: protocol.TextDocumentItem{
				URI:        artifact.URI,
				LanguageID: languageID,
				Version:    open.version,
				Text:       string(artifact.Content),
			},
		})
		if err != nil {
			open.opened = false
			release()
			return 0, false, nil, err
		}
		return seq, true, release, nil
	}
	if artifact.Version < open.source {
		release()
		return 0, false, nil, fmt.Errorf("%w: %s version %d, engine has version %d", analysis.ErrStale, artifact.URI, artifact.Version, open.source)
	}
	open.source = artifact.Version
	if bytes.Equal(open.content, artifact.Content) {
		return seq, false, release, nil
	}
	open.version++
	open.content = artifact.Content
	err := c.conn.Notify(ctx, "textDocument/didChange", &protocol.DidChangeTextDocumentParams{
		TextDocument: protocol.VersionedTextDocumentIdentifier{
			TextDocumentIdentifier: protocol.TextDocumentIdentifier{URI: artifact.URI},
			Version:                open.version,
		},
		ContentChanges: []protocol.TextDocumentContentChangeEvent{{Text: string(artifact.Content)}},
	})
	if err != nil {
		release()
		return 0, false, nil, err
	}
	return seq, true, release, nil
}

// lock returns the locked entry for uri, creating it if needed.
func (c *Client) lock(uri protocol.DocumentURI) *openArtifact {
	for {
		c.mu.Lock()
		open, ok := c.artifacts[uri]
		if !ok {
			open = &openArtifact{}
			c.artifacts[uri] = open
		}
		c.mu.Unlock()

		open.mu.Lock()
		if !open.closed {
			return open
		}
		// forgotten while we waited
		open.mu.Unlock()
	}
}

// Forget closes an artifact in the engine.
func (c *Client) Forget(ctx context.Context, uri protocol.DocumentURI) error {
	c.mu.Lock()
	open, ok := c.artifacts[uri]
	c.mu.Unlock()
	if !ok {
		c.diagnostics.forget(uri)
		return nil
	}
	open.mu.Lock()
	defer open.mu.Unlock()
	open.closed = true
	c.mu.Lock()
	if c.artifacts[uri] == open {
		delete(c.artifacts, uri)
	}
	c.mu.Unlock()
	c.diagnostics.forget(uri)
	if !open.opened {
		return nil
	}
	return c.conn.Notify(ctx, "textDocument/didClose", &protocol.DidCloseTextDocumentParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: uri},
	})
}

func (c *Client) position(artifact analysis.Artifact, offset int) (protocol.TextDocumentPositionParams, error) {
	pos, err := protocol.NewMapper(artifact.URI, artifact.Content).OffsetPosition(offset)
	if err != nil {
		return protocol.TextDocumentPositionParams{}, err
	}
	return protocol.TextDocumentPositionParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: artifact.URI},
		Position:     pos,
	}, nil
}

func (c *Client) CompletionsAtPosition(ctx context.Context, artifact analysis.Artifact, offset int) ([]analysis.Entry, error) {
	release, err := c.acquire(ctx, artifact)
	if err != nil {
		return nil, err
	}
	defer release()
	params, err := c.position(artifact, offset)
	if err != nil {
		return nil, err
	}
	var raw json.RawMessage
	if _, err := c.conn.Call(ctx, "textDocument/completion", map[string]any{
		"textDocument": params.TextDocument,
		"position":     params.Position,
		"context":      map[string]any{"triggerKind": protocol.Invoked},
	}, &raw); err != nil {
		return nil, err
	}
	items, err := decodeCompletionItems(raw)
	if err != nil {
		return nil, err
	}
	entries := make([]analysis.Entry, 0, len(items))
	for _, item := range items {
		if artifact.Kind == analysis.ArtifactComponentScratch && item.Detail == "" {
			// prop types are only reported once the item is resolved
			if resolved, err := c.resolve(ctx, item); err == nil {
				item = resolved
			} else {
				slog.Debug("failed to resolve completion item", "label", item.Label, "error", err)
			}
		}
		entries = append(entries, item.entry())
	}
	return entries, nil
}

func (c *Client) resolve(ctx context.Context, item completionItem) (completionItem, error) {
	var raw json.RawMessage
	if _, err := c.conn.Call(ctx, "completionItem/resolve", item.raw, &raw); err != nil {
		return item, err
	}
	var resolved completionItem
	if err := json.Unmarshal(raw, &resolved); err != nil {
		return item, err
	}
	resolved.raw = raw
	return resolved, nil
}

func (c *Client) QuickInfo(ctx context.Context, artifact analysis.Artifact, offset int) (*analysis.QuickInfo, error) {
	release, err := c.acquire(ctx, artifact)
	if err != nil {
		return nil, err
	}
	defer release()
	params, err := c.position(artifact, offset)
	if err != nil {
		return nil, err
	}
	var result *hoverResult
	if _, err := c.conn.Call(ctx, "textDocument/hover", params, &result); err != nil {
		return nil, err
	}
	if result == nil {
		return nil, nil
	}
	info := &analysis.QuickInfo{
		Contents: hoverText(result.Contents),
		Start:    offset,
		End:      offset,
	}
	if info.Contents == "" {
		return nil, nil
	}
	if result.Range != nil {
		m := protocol.NewMapper(artifact.URI, artifact.Content)
		if start, end, err := m.RangeOffsets(*result.Range); err == nil {
			info.Start, info.End = start, end
		}
	}
	return info, nil
}

func (c *Client) Definition(ctx context.Context, artifact analysis.Artifact, offset int) ([]protocol.Location, error) {
	release, err := c.acquire(ctx, artifact)
	if err != nil {
		return nil, err
	}
	defer release()
	params, err := c.position(artifact, offset)
	if err != nil {
		return nil, err
	}
	var raw json.RawMessage
	if _, err := c.conn.Call(ctx, "textDocument/definition", params, &raw); err != nil {
		return nil, err
	}
	return decodeLocations(raw)
}

func (c *Client) TypeDefinition(ctx context.Context, artifact analysis.Artifact, offset int) ([]protocol.Location, error) {
	release, err := c.acquire(ctx, artifact)
	if err != nil {
		return nil, err
	}
	defer release()
	params, err := c.position(artifact, offset)
	if err != nil {
		return nil, err
	}
	var raw json.RawMessage
	if _, err := c.conn.Call(ctx, "textDocument/typeDefinition", &protocol.TypeDefinitionParams{
		TextDocumentPositionParams: params,
	}, &raw); err != nil {
		return nil, err
	}
	return decodeLocations(raw)
}

func (c *Client) References(ctx context.Context, artifact analysis.Artifact, offset int) ([]protocol.Location, error) {
	release, err := c.acquire(ctx, artifact)
	if err != nil {
		return nil, err
	}
	defer release()
	params, err := c.position(artifact, offset)
	if err != nil {
		return nil, err
	}
	var raw json.RawMessage
	if _, err := c.conn.Call(ctx, "textDocument/references", &protocol.ReferenceParams{
		Context:                    protocol.ReferenceContext{IncludeDeclaration: true},
		TextDocumentPositionParams: params,
	}, &raw); err != nil {
		return nil, err
	}
	return decodeLocations(raw)
}

func (c *Client) DocumentSymbols(ctx context.Context, artifact analysis.Artifact) ([]analysis.Symbol, error) {
	release, err := c.acquire(ctx, artifact)
	if err != nil {
		return nil, err
	}
	defer release()
	var raw json.RawMessage
	if _, err := c.conn.Call(ctx, "textDocument/documentSymbol", &protocol.DocumentSymbolParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: artifact.URI},
	}, &raw); err != nil {
		return nil, err
	}
	return decodeSymbols(raw, artifact)
}

func (c *Client) SignatureHelp(ctx context.Context, artifact analysis.Artifact, offset int) (*analysis.SignatureHelp, error) {
	release, err := c.acquire(ctx, artifact)
	if err != nil {
		return nil, err
	}
	defer release()
	params, err := c.position(artifact, offset)
	if err != nil {
		return nil, err
	}
	var raw json.RawMessage
	if _, err := c.conn.Call(ctx, "textDocument/signatureHelp", &protocol.SignatureHelpParams{
		TextDocumentPositionParams: params,
	}, &raw); err != nil {
		return nil, err
	}
	return decodeSignatureHelp(raw)
}

func (c *Client) Diagnostics(ctx context.Context, artifact analysis.Artifact) ([]analysis.Diagnostic, error) {
	seq, changed, release, err := c.sync(ctx, artifact)
	if err != nil {
		return nil, err
	}
	defer release()
	var diags []protocol.Diagnostic
	if changed || !c.diagnostics.has(artifact.URI) {
		waitCtx, ca := context.WithTimeout(ctx, c.opts.DiagnosticsTimeout)
		diags, err = c.diagnostics.wait(waitCtx, artifact.URI, seq)
		ca()
		if err != nil && ctx.Err() != nil {
			return nil, ctx.Err()
		}
	} else {
		diags = c.diagnostics.get(artifact.URI)
	}

	m := protocol.NewMapper(artifact.URI, artifact.Content)
	out := make([]analysis.Diagnostic, 0, len(diags))
	for _, d := range diags {
		start, end, err := m.RangeOffsets(d.Range)
		if err != nil {
			continue
		}
		out = append(out, analysis.Diagnostic{
			Start:    start,
			End:      end,
			Severity: analysis.Severity(d.Severity),
			Code:     diagnosticCode(d.Code),
			Message:  d.Message,
		})
	}
	return out, nil
}

func diagnosticCode(code any) string {
	switch code := code.(type) {
	case nil:
		return ""
	case float64:
		return fmt.Sprintf("%d", int64(code))
	default:
		return fmt.Sprint(code)
	}
}

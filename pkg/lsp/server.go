package lsp

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/kralicky/astrols/pkg/analysis"
	"github.com/kralicky/astrols/pkg/astro"
	"github.com/kralicky/astrols/pkg/completion"
	"github.com/kralicky/tools-lite/gopls/pkg/protocol"
	"github.com/kralicky/tools-lite/pkg/jsonrpc2"
)

// EngineFactory starts the analysis engine for a workspace root.
type EngineFactory func(ctx context.Context, root protocol.DocumentURI, settings Settings) (analysis.Service, error)

type ServerOptions struct {
	exitHandler func()
	version     string
}

type ServerOption func(*ServerOptions)

func (o *ServerOptions) apply(opts ...ServerOption) {
	for _, op := range opts {
		op(o)
	}
}

// WithExitHandler sets the function called when the client sends exit.
func WithExitHandler(fn func()) ServerOption {
	return func(o *ServerOptions) {
		o.exitHandler = fn
	}
}

func WithVersion(version string) ServerOption {
	return func(o *ServerOptions) {
		o.version = version
	}
}

type Server struct {
	ServerOptions
	client protocol.Client
	engine EngineFactory
	docs   *Documents

	mu       sync.RWMutex
	svc      analysis.Service
	provider *completion.Provider
	settings Settings
	shutdown bool
}

func NewServer(client protocol.Client, engine EngineFactory, opts ...ServerOption) *Server {
	options := ServerOptions{
		version: "devel",
	}
	options.apply(opts...)
	return &Server{
		ServerOptions: options,
		client:        client,
		engine:        engine,
		docs:          NewDocuments(),
	}
}

func (s *Server) Documents() *Documents {
	return s.docs
}

// state returns the engine and settings, or an error before initialize.
func (s *Server) state() (analysis.Service, *completion.Provider, Settings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.provider == nil {
		return nil, nil, Settings{}, fmt.Errorf("%w: server not initialized", jsonrpc2.ErrInvalidRequest)
	}
	return s.svc, s.provider, s.settings, nil
}

func (s *Server) currentSettings() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

var _ protocol.Server = &Server{}

// completionTriggers are the characters that start the three kinds of astro
// completions: fences, directives and tags.
var completionTriggers = []string{"-", ":", "<"}

// Initialize implements protocol.Server.
func (s *Server) Initialize(ctx context.Context, params *protocol.ParamInitialize) (*protocol.InitializeResult, error) {
	settings, err := DecodeSettings(params.InitializationOptions)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", jsonrpc2.ErrInvalidParams, err)
	}
	if err := applyLogLevel(settings.LogLevel); err != nil {
		slog.Warn("ignoring log level", "error", err)
	}
	root := params.RootURI
	if root == "" && len(params.WorkspaceFolders) > 0 {
		root = protocol.DocumentURI(params.WorkspaceFolders[0].URI)
	}
	lg := slog.With("root", root)
	if params.ClientInfo != nil {
		lg = lg.With("client", params.ClientInfo.Name, "clientVersion", params.ClientInfo.Version)
	}
	lg.Info("initializing")

	svc, err := s.engine(ctx, root, settings)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to start analysis engine: %w", jsonrpc2.ErrInternal, err)
	}
	svc = analysis.Guard(svc)

	s.mu.Lock()
	s.svc = svc
	s.provider = completion.NewProvider(svc, s.docs)
	s.settings = settings
	s.mu.Unlock()

	return &protocol.InitializeResult{
		Capabilities: protocol.ServerCapabilities{
			TextDocumentSync: protocol.TextDocumentSyncOptions{
				OpenClose: true,
				Change:    protocol.Incremental,
				Save:      &protocol.SaveOptions{},
			},
			CompletionProvider: &protocol.CompletionOptions{
				TriggerCharacters: completionTriggers,
			},
			HoverProvider:          &protocol.Or_ServerCapabilities_hoverProvider{Value: true},
			DefinitionProvider:     &protocol.Or_ServerCapabilities_definitionProvider{Value: true},
			TypeDefinitionProvider: &protocol.Or_ServerCapabilities_typeDefinitionProvider{Value: true},
			ReferencesProvider:     &protocol.Or_ServerCapabilities_referencesProvider{Value: true},
			DocumentSymbolProvider: &protocol.Or_ServerCapabilities_documentSymbolProvider{Value: true},
			SignatureHelpProvider: &protocol.SignatureHelpOptions{
				TriggerCharacters:   signatureTriggers,
				RetriggerCharacters: signatureRetriggers,
			},
			FoldingRangeProvider: &protocol.Or_ServerCapabilities_foldingRangeProvider{Value: true},
			ExecuteCommandProvider: &protocol.ExecuteCommandOptions{
				Commands: []string{CommandVirtualFile},
			},
		},
		ServerInfo: &protocol.ServerInfo{
			Name:    "astrols",
			Version: s.version,
		},
	}, nil
}

func (s *Server) Initialized(ctx context.Context, params *protocol.InitializedParams) error {
	slog.Debug("initialized")
	return nil
}

// closer is implemented by engines that own resources, such as a child process.
type closer interface {
	Close(ctx context.Context) error
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	svc := s.svc
	s.shutdown = true
	s.mu.Unlock()
	if svc == nil {
		return nil
	}
	if c, ok := analysis.Unwrap(svc).(closer); ok {
		return c.Close(ctx)
	}
	return nil
}

func (s *Server) Exit(ctx context.Context) error {
	s.mu.RLock()
	clean := s.shutdown
	s.mu.RUnlock()
	if !clean {
		slog.Warn("exit received before shutdown")
	}
	if s.exitHandler != nil {
		s.exitHandler()
	}
	return nil
}

func (s *Server) DidOpen(ctx context.Context, params *protocol.DidOpenTextDocumentParams) error {
	doc := s.docs.Open(params.TextDocument.URI, params.TextDocument.Version, []byte(params.TextDocument.Text))
	slog.Debug("document opened", "uri", doc.URI, "version", doc.Version)
	s.invalidateComponent(doc.Path())
	go s.publishDiagnostics(context.WithoutCancel(ctx), doc)
	return nil
}

func (s *Server) DidChange(ctx context.Context, params *protocol.DidChangeTextDocumentParams) error {
	doc, err := s.docs.Change(ctx, params.TextDocument, params.ContentChanges)
	if err != nil {
		return err
	}
	s.invalidateComponent(doc.Path())
	go s.publishDiagnostics(context.WithoutCancel(ctx), doc)
	return nil
}

// DidClose implements protocol.Server. The engine forgets the document's
// virtual file, so a reopened document starts over at any version.
func (s *Server) DidClose(ctx context.Context, params *protocol.DidCloseTextDocumentParams) error {
	s.docs.Close(params.TextDocument.URI)
	s.invalidateComponent(uriPath(params.TextDocument.URI))
	if svc, _, _, err := s.state(); err == nil {
		svc.Forget(ctx, astro.VirtualURI(params.TextDocument.URI))
	}
	return s.client.PublishDiagnostics(ctx, &protocol.PublishDiagnosticsParams{
		URI:         params.TextDocument.URI,
		Diagnostics: []protocol.Diagnostic{},
	})
}

func (s *Server) DidSave(ctx context.Context, params *protocol.DidSaveTextDocumentParams) error {
	s.invalidateComponent(uriPath(params.TextDocument.URI))
	return nil
}

// DidChangeWatchedFiles drops cached metadata of components edited outside
// the editor and refreshes diagnostics of open documents.
func (s *Server) DidChangeWatchedFiles(ctx context.Context, params *protocol.DidChangeWatchedFilesParams) error {
	for _, change := range params.Changes {
		s.invalidateComponent(uriPath(change.URI))
	}
	go s.refreshDiagnostics(context.WithoutCancel(ctx))
	return nil
}

func (s *Server) DidChangeConfiguration(ctx context.Context, params *protocol.DidChangeConfigurationParams) error {
	settings, err := DecodeSettings(params.Settings)
	if err != nil {
		return fmt.Errorf("%w: %w", jsonrpc2.ErrInvalidParams, err)
	}
	if err := applyLogLevel(settings.LogLevel); err != nil {
		slog.Warn("ignoring log level", "error", err)
	}
	s.mu.Lock()
	s.settings = settings
	s.mu.Unlock()
	slog.Debug("configuration changed", "settings", settings)
	go s.refreshDiagnostics(context.WithoutCancel(ctx))
	return nil
}

func (s *Server) invalidateComponent(path string) {
	s.mu.RLock()
	provider := s.provider
	s.mu.RUnlock()
	if provider != nil {
		provider.Resolver().Invalidate(path)
	}
}

func (s *Server) document(uri protocol.DocumentURI) (*astro.Document, error) {
	doc, ok := s.docs.Get(uri)
	if !ok {
		return nil, fmt.Errorf("%w: document %s is not open", jsonrpc2.ErrInvalidParams, uri)
	}
	return doc, nil
}

package lsp

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/kralicky/astrols/pkg/analysis"
	"github.com/kralicky/astrols/pkg/analysis/analysistest"
	"github.com/kralicky/astrols/pkg/astro"
	"github.com/kralicky/tools-lite/gopls/pkg/protocol"
	"github.com/kralicky/tools-lite/pkg/jsonrpc2"
)

const (
	testPath = "/project/src/pages/index.astro"
	cardPath = "/project/src/pages/Card.tsx"
)

const testDocument = `---
import Card from "./Card.tsx";
const title = "hi";
---
<Card client:load title={title} />
<Card />
<style>
h1 { color: red; }
</style>
`

// recorder is a client that records published diagnostics. Any other client
// method panics.
type recorder struct {
	protocol.Client
	ch chan *protocol.PublishDiagnosticsParams
}

func newRecorder() *recorder {
	return &recorder{ch: make(chan *protocol.PublishDiagnosticsParams, 16)}
}

func (r *recorder) PublishDiagnostics(_ context.Context, params *protocol.PublishDiagnosticsParams) error {
	r.ch <- params
	return nil
}

func (r *recorder) diagnostics(t *testing.T) *protocol.PublishDiagnosticsParams {
	t.Helper()
	select {
	case params := <-r.ch:
		return params
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for diagnostics")
		return nil
	}
}

func testURI() protocol.DocumentURI {
	return protocol.URIFromPath(testPath)
}

// generatedSpan locates the first occurrence of needle in the virtual file of
// the test document.
func generatedSpan(t *testing.T, text, needle string) (int, int) {
	t.Helper()
	doc := astro.NewDocument(testURI(), 1, []byte(text))
	offset := strings.Index(text, needle)
	require.NotEqual(t, -1, offset)
	start, ok := doc.Virtual().ToGenerated(offset)
	require.True(t, ok)
	return start, start + len(needle)
}

func newTestServer(t *testing.T, svc *analysistest.Service, initOptions any) (*Server, *recorder) {
	t.Helper()
	rec := newRecorder()
	s := NewServer(rec, func(context.Context, protocol.DocumentURI, Settings) (analysis.Service, error) {
		return svc, nil
	})
	_, err := s.Initialize(context.Background(), &protocol.ParamInitialize{
		XInitializeParams: protocol.XInitializeParams{
			RootURI:               protocol.URIFromPath("/project"),
			InitializationOptions: initOptions,
		},
	})
	require.NoError(t, err)
	return s, rec
}

func openTestDocument(t *testing.T, s *Server, rec *recorder, text string) *protocol.PublishDiagnosticsParams {
	t.Helper()
	require.NoError(t, s.DidOpen(context.Background(), &protocol.DidOpenTextDocumentParams{
		TextDocument: protocol.TextDocumentItem{
			URI:     testURI(),
			Version: 1,
			Text:    text,
		},
	}))
	return rec.diagnostics(t)
}

func TestRequestsBeforeInitialize(t *testing.T) {
	s := NewServer(newRecorder(), nil)
	_, err := s.Completion(context.Background(), &protocol.CompletionParams{})
	require.Error(t, err)
}

func TestCompletion(t *testing.T) {
	svc := &analysistest.Service{
		Modules: map[string]string{"./Card.tsx": cardPath},
		Props: map[string][]analysis.Entry{
			cardPath: {{Name: "title", Kind: analysis.KindProperty, Type: "string"}},
		},
		Entries: []analysis.Entry{{Name: "title", Kind: analysis.KindConst}},
	}
	s, rec := newTestServer(t, svc, map[string]any{
		"typescript": map[string]any{
			"completions": map[string]any{"enabled": false},
		},
	})
	openTestDocument(t, s, rec, testDocument)

	list, err := s.Completion(context.Background(), &protocol.CompletionParams{
		TextDocumentPositionParams: protocol.TextDocumentPositionParams{
			TextDocument: protocol.TextDocumentIdentifier{URI: testURI()},
			Position:     protocol.Position{Line: 5, Character: 6},
		},
	})
	require.NoError(t, err)
	var labels []string
	for _, item := range list.Items {
		labels = append(labels, item.Label)
	}
	require.Equal(t, []string{"title", "client:load", "client:idle", "client:visible", "client:media", "client:only"}, labels)

	list, err = s.Completion(context.Background(), &protocol.CompletionParams{
		TextDocumentPositionParams: protocol.TextDocumentPositionParams{
			TextDocument: protocol.TextDocumentIdentifier{URI: testURI()},
			Position:     protocol.Position{Line: 2, Character: 8},
		},
	})
	require.NoError(t, err)
	require.Nil(t, list)
}

func TestHover(t *testing.T) {
	start, end := generatedSpan(t, testDocument, "title")
	svc := &analysistest.Service{
		Info: &analysis.QuickInfo{Contents: "```typescript\nconst title: \"hi\"\n```", Start: start, End: end},
	}
	s, rec := newTestServer(t, svc, nil)
	openTestDocument(t, s, rec, testDocument)

	hover := func(line, char uint32) *protocol.Hover {
		h, err := s.Hover(context.Background(), &protocol.HoverParams{
			TextDocumentPositionParams: protocol.TextDocumentPositionParams{
				TextDocument: protocol.TextDocumentIdentifier{URI: testURI()},
				Position:     protocol.Position{Line: line, Character: char},
			},
		})
		require.NoError(t, err)
		return h
	}

	h := hover(2, 8)
	require.NotNil(t, h)
	require.Equal(t, svc.Info.Contents, h.Contents.Value)
	require.Equal(t, protocol.Range{
		Start: protocol.Position{Line: 2, Character: 6},
		End:   protocol.Position{Line: 2, Character: 11},
	}, h.Range)

	h = hover(4, 8)
	require.NotNil(t, h)
	require.True(t, strings.HasPrefix(h.Contents.Value, "Start importing the component JS at page load."))
	require.Equal(t, protocol.Range{
		Start: protocol.Position{Line: 4, Character: 6},
		End:   protocol.Position{Line: 4, Character: 17},
	}, h.Range)
}

func TestDefinition(t *testing.T) {
	doc := astro.NewDocument(testURI(), 1, []byte(testDocument))
	vf := doc.Virtual()
	start, end := generatedSpan(t, testDocument, "title")
	declRange, err := vf.Mapper.OffsetRange(start, end)
	require.NoError(t, err)
	synthetic := strings.Index(string(vf.Content), astro.RenderFunctionName)
	syntheticRange, err := vf.Mapper.OffsetRange(synthetic, synthetic+len(astro.RenderFunctionName))
	require.NoError(t, err)
	external := protocol.Location{URI: "file:///project/node_modules/astro/types.d.ts"}

	svc := &analysistest.Service{
		Definitions: []protocol.Location{
			{URI: vf.URI, Range: declRange},
			{URI: vf.URI, Range: syntheticRange},
			external,
		},
	}
	s, rec := newTestServer(t, svc, nil)
	openTestDocument(t, s, rec, testDocument)

	locations, err := s.Definition(context.Background(), &protocol.DefinitionParams{
		TextDocumentPositionParams: protocol.TextDocumentPositionParams{
			TextDocument: protocol.TextDocumentIdentifier{URI: testURI()},
			Position:     protocol.Position{Line: 4, Character: 27},
		},
	})
	require.NoError(t, err)
	want := []protocol.Location{
		{
			URI: testURI(),
			Range: protocol.Range{
				Start: protocol.Position{Line: 2, Character: 6},
				End:   protocol.Position{Line: 2, Character: 11},
			},
		},
		external,
	}
	if diff := cmp.Diff(want, locations); diff != "" {
		t.Errorf("definition mismatch (-want +got):\n%s", diff)
	}
}

func TestDefinitionFallsBackToComponentModule(t *testing.T) {
	svc := &analysistest.Service{
		Modules: map[string]string{"./Card.tsx": cardPath},
	}
	s, rec := newTestServer(t, svc, nil)
	openTestDocument(t, s, rec, testDocument)

	locations, err := s.Definition(context.Background(), &protocol.DefinitionParams{
		TextDocumentPositionParams: protocol.TextDocumentPositionParams{
			TextDocument: protocol.TextDocumentIdentifier{URI: testURI()},
			Position:     protocol.Position{Line: 5, Character: 2},
		},
	})
	require.NoError(t, err)
	require.Equal(t, []protocol.Location{{URI: protocol.URIFromPath(cardPath)}}, locations)
}

func TestDiagnostics(t *testing.T) {
	start, end := generatedSpan(t, testDocument, "title")
	doc := astro.NewDocument(testURI(), 1, []byte(testDocument))
	synthetic := strings.Index(string(doc.Virtual().Content), astro.RenderFunctionName)
	svc := &analysistest.Service{
		Problems: []analysis.Diagnostic{
			{Start: start, End: end, Severity: analysis.SeverityWarning, Code: "6133", Message: "'title' is declared but its value is never read."},
			{Start: synthetic, End: synthetic + 3, Severity: analysis.SeverityError, Message: "synthesized"},
		},
	}
	s, rec := newTestServer(t, svc, nil)
	published := openTestDocument(t, s, rec, testDocument)

	want := &protocol.PublishDiagnosticsParams{
		URI:     testURI(),
		Version: 1,
		Diagnostics: []protocol.Diagnostic{{
			Range: protocol.Range{
				Start: protocol.Position{Line: 2, Character: 6},
				End:   protocol.Position{Line: 2, Character: 11},
			},
			Severity: protocol.SeverityWarning,
			Code:     "6133",
			Source:   "ts",
			Message:  "'title' is declared but its value is never read.",
		}},
	}
	if diff := cmp.Diff(want, published); diff != "" {
		t.Errorf("diagnostics mismatch (-want +got):\n%s", diff)
	}
}

func TestStructuralDiagnostics(t *testing.T) {
	s, rec := newTestServer(t, &analysistest.Service{}, map[string]any{
		"typescript": map[string]any{"diagnostics": map[string]any{"enabled": false}},
	})
	published := openTestDocument(t, s, rec, "---\nconst a = 1;\n<div></div>\n")
	require.Len(t, published.Diagnostics, 1)
	d := published.Diagnostics[0]
	require.Equal(t, "astro", d.Source)
	require.Equal(t, protocol.SeverityError, d.Severity)
	require.Equal(t, protocol.Range{End: protocol.Position{Character: 3}}, d.Range)
}

func TestDidChange(t *testing.T) {
	svc := &analysistest.Service{}
	s, rec := newTestServer(t, svc, nil)
	openTestDocument(t, s, rec, testDocument)

	require.NoError(t, s.DidChange(context.Background(), &protocol.DidChangeTextDocumentParams{
		TextDocument: protocol.VersionedTextDocumentIdentifier{
			TextDocumentIdentifier: protocol.TextDocumentIdentifier{URI: testURI()},
			Version:                2,
		},
		ContentChanges: []protocol.TextDocumentContentChangeEvent{
			{
				Range: &protocol.Range{
					Start: protocol.Position{Line: 2, Character: 15},
					End:   protocol.Position{Line: 2, Character: 17},
				},
				Text: "hello",
			},
			{
				Range: &protocol.Range{
					Start: protocol.Position{Line: 5, Character: 0},
					End:   protocol.Position{Line: 6, Character: 0},
				},
			},
		},
	}))
	published := rec.diagnostics(t)
	require.Equal(t, int32(2), published.Version)

	doc, ok := s.Documents().Get(testURI())
	require.True(t, ok)
	require.Equal(t, int32(2), doc.Version)
	require.Equal(t, strings.Replace(strings.Replace(testDocument, `"hi"`, `"hello"`, 1), "<Card />\n", "", 1), string(doc.Text()))

	snapshot, err := s.Documents().AwaitSnapshot(context.Background(), testURI(), 2)
	require.NoError(t, err)
	require.Same(t, doc, snapshot)

	require.NoError(t, s.DidClose(context.Background(), &protocol.DidCloseTextDocumentParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: testURI()},
	}))
	cleared := rec.diagnostics(t)
	require.Empty(t, cleared.Diagnostics)
	_, ok = s.Documents().Get(testURI())
	require.False(t, ok)

	requests := svc.Requests()
	last := requests[len(requests)-1]
	require.Equal(t, "forget", last.Method)
	require.Equal(t, astro.VirtualURI(testURI()), last.Artifact.URI)
}

func TestFoldingRange(t *testing.T) {
	s, rec := newTestServer(t, &analysistest.Service{}, nil)
	openTestDocument(t, s, rec, testDocument)

	ranges, err := s.FoldingRange(context.Background(), &protocol.FoldingRangeParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: testURI()},
	})
	require.NoError(t, err)
	require.Equal(t, []protocol.FoldingRange{
		{StartLine: 0, EndLine: 2},
		{StartLine: 6, EndLine: 7},
	}, ranges)

	require.NoError(t, s.DidChangeConfiguration(context.Background(), &protocol.DidChangeConfigurationParams{
		Settings: map[string]any{
			"astrols": map[string]any{
				"astro": map[string]any{"foldingRanges": map[string]any{"enabled": false}},
			},
		},
	}))
	ranges, err = s.FoldingRange(context.Background(), &protocol.FoldingRangeParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: testURI()},
	})
	require.NoError(t, err)
	require.Nil(t, ranges)
}

func TestExecuteVirtualFile(t *testing.T) {
	s, rec := newTestServer(t, &analysistest.Service{}, nil)
	openTestDocument(t, s, rec, testDocument)

	arg, err := json.Marshal(VirtualFileRequest{URI: testURI(), Version: 1})
	require.NoError(t, err)
	res, err := s.ExecuteCommand(context.Background(), &protocol.ExecuteCommandParams{
		Command:   CommandVirtualFile,
		Arguments: []json.RawMessage{arg},
	})
	require.NoError(t, err)

	doc := astro.NewDocument(testURI(), 1, []byte(testDocument))
	require.Equal(t, VirtualFileResponse{
		URI:     astro.VirtualURI(testURI()),
		Content: string(doc.Virtual().Content),
	}, res)

	_, err = s.ExecuteCommand(context.Background(), &protocol.ExecuteCommandParams{Command: "astrols/unknown"})
	require.Error(t, err)
}

func TestInitializeCapabilities(t *testing.T) {
	s := NewServer(newRecorder(), func(context.Context, protocol.DocumentURI, Settings) (analysis.Service, error) {
		return &analysistest.Service{}, nil
	}, WithVersion("v1.2.3"))
	res, err := s.Initialize(context.Background(), &protocol.ParamInitialize{
		WorkspaceFoldersInitializeParams: protocol.WorkspaceFoldersInitializeParams{
			WorkspaceFolders: []protocol.WorkspaceFolder{{URI: string(protocol.URIFromPath("/project")), Name: "project"}},
		},
	})
	require.NoError(t, err)
	require.Equal(t, &protocol.ServerInfo{Name: "astrols", Version: "v1.2.3"}, res.ServerInfo)
	require.Equal(t, []string{"-", ":", "<"}, res.Capabilities.CompletionProvider.TriggerCharacters)
	sync, ok := res.Capabilities.TextDocumentSync.(protocol.TextDocumentSyncOptions)
	require.True(t, ok)
	require.Equal(t, protocol.Incremental, sync.Change)
	require.True(t, sync.OpenClose)
	for name, provider := range map[string]any{
		"hover":          res.Capabilities.HoverProvider.Value,
		"definition":     res.Capabilities.DefinitionProvider.Value,
		"typeDefinition": res.Capabilities.TypeDefinitionProvider.Value,
		"references":     res.Capabilities.ReferencesProvider.Value,
		"documentSymbol": res.Capabilities.DocumentSymbolProvider.Value,
		"foldingRange":   res.Capabilities.FoldingRangeProvider.Value,
	} {
		require.Equal(t, true, provider, name)
	}
	require.Equal(t, []string{"(", ",", "<"}, res.Capabilities.SignatureHelpProvider.TriggerCharacters)
}

func TestReferences(t *testing.T) {
	doc := astro.NewDocument(testURI(), 1, []byte(testDocument))
	vf := doc.Virtual()
	declStart, declEnd := generatedSpan(t, testDocument, "title")
	declRange, err := vf.Mapper.OffsetRange(declStart, declEnd)
	require.NoError(t, err)
	use := strings.Index(testDocument, "{title}") + 1
	useStart, ok := vf.ToGenerated(use)
	require.True(t, ok)
	useRange, err := vf.Mapper.OffsetRange(useStart, useStart+len("title"))
	require.NoError(t, err)

	svc := &analysistest.Service{
		Definitions: []protocol.Location{{URI: vf.URI, Range: declRange}},
		Usages: []protocol.Location{
			{URI: vf.URI, Range: declRange},
			{URI: vf.URI, Range: useRange},
		},
	}
	s, rec := newTestServer(t, svc, nil)
	openTestDocument(t, s, rec, testDocument)

	decl := protocol.Location{URI: testURI(), Range: protocol.Range{
		Start: protocol.Position{Line: 2, Character: 6},
		End:   protocol.Position{Line: 2, Character: 11},
	}}
	usage := protocol.Location{URI: testURI(), Range: protocol.Range{
		Start: protocol.Position{Line: 4, Character: 25},
		End:   protocol.Position{Line: 4, Character: 30},
	}}
	params := &protocol.ReferenceParams{
		TextDocumentPositionParams: protocol.TextDocumentPositionParams{
			TextDocument: protocol.TextDocumentIdentifier{URI: testURI()},
			Position:     protocol.Position{Line: 4, Character: 27},
		},
		Context: protocol.ReferenceContext{IncludeDeclaration: true},
	}
	locations, err := s.References(context.Background(), params)
	require.NoError(t, err)
	require.Equal(t, []protocol.Location{decl, usage}, locations)

	params.Context.IncludeDeclaration = false
	locations, err = s.References(context.Background(), params)
	require.NoError(t, err)
	require.Equal(t, []protocol.Location{usage}, locations)
}

func TestTypeDefinition(t *testing.T) {
	external := protocol.Location{
		URI:   "file:///project/node_modules/typescript/lib/lib.es5.d.ts",
		Range: protocol.Range{Start: protocol.Position{Line: 10}, End: protocol.Position{Line: 10, Character: 6}},
	}
	svc := &analysistest.Service{TypeDefinitions: []protocol.Location{external}}
	s, rec := newTestServer(t, svc, nil)
	openTestDocument(t, s, rec, testDocument)

	params := &protocol.TypeDefinitionParams{
		TextDocumentPositionParams: protocol.TextDocumentPositionParams{
			TextDocument: protocol.TextDocumentIdentifier{URI: testURI()},
			Position:     protocol.Position{Line: 2, Character: 8},
		},
	}
	locations, err := s.TypeDefinition(context.Background(), params)
	require.NoError(t, err)
	require.Equal(t, []protocol.Location{external}, locations)

	var requested []analysistest.Request
	for _, r := range svc.Requests() {
		if r.Method == "typeDefinition" {
			requested = append(requested, r)
		}
	}
	require.Len(t, requested, 1)
	start, _ := generatedSpan(t, testDocument, "title")
	require.Equal(t, start+2, requested[0].Offset)
}

func TestDocumentSymbol(t *testing.T) {
	doc := astro.NewDocument(testURI(), 1, []byte(testDocument))
	content := string(doc.Virtual().Content)
	declStart, declEnd := generatedSpan(t, testDocument, `title = "hi"`)
	nameEnd := declStart + len("title")
	render := strings.Index(content, astro.RenderFunctionName)

	svc := &analysistest.Service{
		Symbols: []analysis.Symbol{
			{Name: "title", Kind: protocol.Constant, Start: declStart, End: declEnd, SelectionStart: declStart, SelectionEnd: nameEnd},
			{
				Name: astro.RenderFunctionName, Kind: protocol.Function,
				Start: render, End: len(content), SelectionStart: render, SelectionEnd: render + len(astro.RenderFunctionName),
				Children: []analysis.Symbol{
					{Name: "Astro", Kind: protocol.Variable, Start: render + 40, End: render + 45, SelectionStart: render + 40, SelectionEnd: render + 45},
				},
			},
		},
	}
	s, rec := newTestServer(t, svc, nil)
	openTestDocument(t, s, rec, testDocument)

	symbols, err := s.DocumentSymbol(context.Background(), &protocol.DocumentSymbolParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: testURI()},
	})
	require.NoError(t, err)
	want := []any{protocol.DocumentSymbol{
		Name: "title",
		Kind: protocol.Constant,
		Range: protocol.Range{
			Start: protocol.Position{Line: 2, Character: 6},
			End:   protocol.Position{Line: 2, Character: 18},
		},
		SelectionRange: protocol.Range{
			Start: protocol.Position{Line: 2, Character: 6},
			End:   protocol.Position{Line: 2, Character: 11},
		},
	}}
	if diff := cmp.Diff(want, symbols); diff != "" {
		t.Errorf("document symbols mismatch (-want +got):\n%s", diff)
	}
}

func TestSignatureHelp(t *testing.T) {
	text := "---\nconst greet = (name: string) => name;\ngreet(\"a\");\n---\n<p>{greet()}</p>\n"
	svc := &analysistest.Service{
		Help: &analysis.SignatureHelp{
			Signatures: []analysis.Signature{{
				Label:         "greet(name: string): string",
				Documentation: "Says hello.",
				Parameters:    []analysis.Parameter{{Label: "name: string"}},
			}},
		},
	}
	s, rec := newTestServer(t, svc, nil)
	openTestDocument(t, s, rec, text)

	help := func(line, char uint32) *protocol.SignatureHelp {
		h, err := s.SignatureHelp(context.Background(), &protocol.SignatureHelpParams{
			TextDocumentPositionParams: protocol.TextDocumentPositionParams{
				TextDocument: protocol.TextDocumentIdentifier{URI: testURI()},
				Position:     protocol.Position{Line: line, Character: char},
			},
		})
		require.NoError(t, err)
		return h
	}

	want := &protocol.SignatureHelp{
		Signatures: []protocol.SignatureInformation{{
			Label: "greet(name: string): string",
			Documentation: &protocol.Or_SignatureInformation_documentation{
				Value: protocol.MarkupContent{Kind: protocol.Markdown, Value: "Says hello."},
			},
			Parameters: []protocol.ParameterInformation{{Label: "name: string"}},
		}},
	}
	if diff := cmp.Diff(want, help(2, 6)); diff != "" {
		t.Errorf("frontmatter signature help mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(want, help(4, 10)); diff != "" {
		t.Errorf("expression signature help mismatch (-want +got):\n%s", diff)
	}
	// plain markup never reaches the engine
	require.Nil(t, help(4, 1))
	n := 0
	for _, r := range svc.Requests() {
		if r.Method == "signatureHelp" {
			n++
		}
	}
	require.Equal(t, 2, n)
}

func TestSupersededVersionsSkipTheEngine(t *testing.T) {
	svc := &analysistest.Service{}
	s, rec := newTestServer(t, svc, nil)
	openTestDocument(t, s, rec, testDocument)

	require.NoError(t, s.DidChange(context.Background(), &protocol.DidChangeTextDocumentParams{
		TextDocument: protocol.VersionedTextDocumentIdentifier{
			TextDocumentIdentifier: protocol.TextDocumentIdentifier{URI: testURI()},
			Version:                2,
		},
		ContentChanges: []protocol.TextDocumentContentChangeEvent{{Text: testDocument + "<p />\n"}},
	}))
	require.Equal(t, int32(2), rec.diagnostics(t).Version)

	count := func() int {
		n := 0
		for _, r := range svc.Requests() {
			if r.Method == "diagnostics" {
				n++
			}
		}
		return n
	}
	before := count()
	s.publishDiagnostics(context.Background(), astro.NewDocument(testURI(), 1, []byte(testDocument)))
	require.Equal(t, before, count())
	select {
	case params := <-rec.ch:
		t.Fatalf("published diagnostics for superseded version %d", params.Version)
	default:
	}
}

func TestUnimplementedMethods(t *testing.T) {
	s, _ := newTestServer(t, &analysistest.Service{}, nil)
	_, err := s.Rename(context.Background(), &protocol.RenameParams{})
	require.ErrorIs(t, err, jsonrpc2.ErrMethodNotFound)
	_, err = s.Formatting(context.Background(), &protocol.DocumentFormattingParams{})
	require.ErrorIs(t, err, jsonrpc2.ErrMethodNotFound)
}

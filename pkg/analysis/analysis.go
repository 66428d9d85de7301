// Package analysis defines the boundary to the type-aware engine that answers
// questions about generated TSX artifacts. The engine is queried, never
// reimplemented: completions, quick info, definitions, diagnostics, and
// module resolution all come from a Service.
package analysis

import (
	"context"
	"errors"

	"github.com/kralicky/tools-lite/gopls/pkg/protocol"
)

var (
	// ErrNotFound marks a reference the engine could not resolve.
	ErrNotFound = errors.New("not found")
	// ErrStale marks a request made with artifact content older than what the
	// engine was last given for the same URI.
	ErrStale = errors.New("stale artifact")
)

type ArtifactKind int

const (
	// The generated TSX rendition of an open document.
	ArtifactDocument ArtifactKind = iota
	// A throwaway module that imports a single component and renders it, used
	// to ask the engine which props the component accepts.
	ArtifactComponentScratch
)

func (k ArtifactKind) String() string {
	switch k {
	case ArtifactDocument:
		return "document"
	case ArtifactComponentScratch:
		return "componentScratch"
	default:
		return "unknown"
	}
}

// Artifact is a synthesized source file handed to the engine. Offsets passed
// alongside an artifact index into Content.
type Artifact struct {
	URI     protocol.DocumentURI
	Version int32
	Content []byte
	Kind    ArtifactKind
	// Path of the rendered component, for component scratch modules.
	Component string
}

// EntryKind is the engine's script element kind for a completion entry.
type EntryKind string

const (
	KindKeyword       EntryKind = "keyword"
	KindModule        EntryKind = "module"
	KindClass         EntryKind = "class"
	KindInterface     EntryKind = "interface"
	KindType          EntryKind = "type"
	KindEnum          EntryKind = "enum"
	KindEnumMember    EntryKind = "enum member"
	KindVariable      EntryKind = "var"
	KindLocalVariable EntryKind = "local var"
	KindLet           EntryKind = "let"
	KindConst         EntryKind = "const"
	KindFunction      EntryKind = "function"
	KindLocalFunction EntryKind = "local function"
	KindMethod        EntryKind = "method"
	KindProperty      EntryKind = "property"
	KindGetter        EntryKind = "getter"
	KindSetter        EntryKind = "setter"
	KindParameter     EntryKind = "parameter"
	KindAlias         EntryKind = "alias"
	KindString        EntryKind = "string"
	KindExternalName  EntryKind = "external module name"
	KindWarning       EntryKind = "warning"
)

// Entry is a raw completion suggestion from the engine.
type Entry struct {
	Name     string
	Kind     EntryKind
	Optional bool
	// Type text, e.g. "string" or "(a: number) => void".
	Type          string
	Documentation string
	SortText      string
	InsertText    string
	IsSnippet     bool
	// Set for entries that only exist as auto-import suggestions.
	Source string
}

// QuickInfo describes the symbol under an offset. Start and End index into the
// artifact content.
type QuickInfo struct {
	Contents   string
	Start, End int
}

type Severity int

const (
	SeverityError Severity = iota + 1
	SeverityWarning
	SeverityInformation
	SeverityHint
)

// Diagnostic is an engine diagnostic in artifact offsets.
type Diagnostic struct {
	Start, End int
	Severity   Severity
	Code       string
	Message    string
}

// Symbol is an entry of an artifact's outline. Offsets index into the
// artifact content.
type Symbol struct {
	Name   string
	Detail string
	Kind   protocol.SymbolKind
	// Extent of the declaration, and of its name.
	Start, End                   int
	SelectionStart, SelectionEnd int
	Children                     []Symbol
}

// Signature is one overload of the call under an offset.
type Signature struct {
	Label         string
	Documentation string
	Parameters    []Parameter
}

type Parameter struct {
	Label         string
	Documentation string
}

type SignatureHelp struct {
	Signatures      []Signature
	ActiveSignature int
	ActiveParameter int
}

// Service is the engine capability.
type Service interface {
	CompletionsAtPosition(ctx context.Context, artifact Artifact, offset int) ([]Entry, error)
	QuickInfo(ctx context.Context, artifact Artifact, offset int) (*QuickInfo, error)
	// Definition returns target locations. Locations inside the artifact itself
	// use the artifact URI and its coordinates. The same holds for References
	// and TypeDefinition.
	Definition(ctx context.Context, artifact Artifact, offset int) ([]protocol.Location, error)
	TypeDefinition(ctx context.Context, artifact Artifact, offset int) ([]protocol.Location, error)
	References(ctx context.Context, artifact Artifact, offset int) ([]protocol.Location, error)
	DocumentSymbols(ctx context.Context, artifact Artifact) ([]Symbol, error)
	SignatureHelp(ctx context.Context, artifact Artifact, offset int) (*SignatureHelp, error)
	Diagnostics(ctx context.Context, artifact Artifact) ([]Diagnostic, error)
	// ResolveModule returns the absolute path of the file a module specifier
	// refers to when imported from importer.
	ResolveModule(ctx context.Context, importer string, specifier string) (string, error)
	// Forget releases everything the engine holds for an artifact.
	Forget(ctx context.Context, uri protocol.DocumentURI) error
}

// Package analysistest provides an in-memory analysis.Service for tests.
package analysistest

import (
	"context"
	"fmt"
	"io/fs"
	"path"
	"sync"

	"github.com/kralicky/astrols/pkg/analysis"
	"github.com/kralicky/tools-lite/gopls/pkg/protocol"
)

// Request records a single call made to the fake.
type Request struct {
	Method   string
	Artifact analysis.Artifact
	Offset   int
}

// Service answers from scripted data. The zero value returns empty results.
type Service struct {
	// Modules maps a module specifier to a resolved path, regardless of importer.
	// Relative specifiers missing from the map resolve against the importer's
	// directory when Files contains the result.
	Modules map[string]string
	// Files backs relative module resolution and component sources.
	Files Files
	// Props holds the entries returned for a scratch module of each component path.
	Props map[string][]analysis.Entry
	// Entries are returned for completions in document artifacts.
	Entries         []analysis.Entry
	Info            *analysis.QuickInfo
	Definitions     []protocol.Location
	TypeDefinitions []protocol.Location
	// Usages are returned for references.
	Usages   []protocol.Location
	Symbols  []analysis.Symbol
	Help     *analysis.SignatureHelp
	Problems []analysis.Diagnostic

	// Err is returned by every method when set.
	Err error
	// Panic makes every method panic with this value when set.
	Panic any

	mu       sync.Mutex
	requests []Request
}

var _ analysis.Service = (*Service)(nil)

// Requests returns the calls made so far.
func (s *Service) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

func (s *Service) record(method string, artifact analysis.Artifact, offset int) error {
	s.mu.Lock()
	s.requests = append(s.requests, Request{Method: method, Artifact: artifact, Offset: offset})
	s.mu.Unlock()
	if s.Panic != nil {
		panic(s.Panic)
	}
	return s.Err
}

func (s *Service) CompletionsAtPosition(_ context.Context, artifact analysis.Artifact, offset int) ([]analysis.Entry, error) {
	if err := s.record("completionsAtPosition", artifact, offset); err != nil {
		return nil, err
	}
	if artifact.Kind == analysis.ArtifactComponentScratch {
		return s.Props[artifact.Component], nil
	}
	return s.Entries, nil
}

func (s *Service) QuickInfo(_ context.Context, artifact analysis.Artifact, offset int) (*analysis.QuickInfo, error) {
	if err := s.record("quickInfo", artifact, offset); err != nil {
		return nil, err
	}
	return s.Info, nil
}

func (s *Service) Definition(_ context.Context, artifact analysis.Artifact, offset int) ([]protocol.Location, error) {
	if err := s.record("definition", artifact, offset); err != nil {
		return nil, err
	}
	return s.Definitions, nil
}

func (s *Service) TypeDefinition(_ context.Context, artifact analysis.Artifact, offset int) ([]protocol.Location, error) {
	if err := s.record("typeDefinition", artifact, offset); err != nil {
		return nil, err
	}
	return s.TypeDefinitions, nil
}

func (s *Service) References(_ context.Context, artifact analysis.Artifact, offset int) ([]protocol.Location, error) {
	if err := s.record("references", artifact, offset); err != nil {
		return nil, err
	}
	return s.Usages, nil
}

func (s *Service) DocumentSymbols(_ context.Context, artifact analysis.Artifact) ([]analysis.Symbol, error) {
	if err := s.record("documentSymbols", artifact, -1); err != nil {
		return nil, err
	}
	return s.Symbols, nil
}

func (s *Service) SignatureHelp(_ context.Context, artifact analysis.Artifact, offset int) (*analysis.SignatureHelp, error) {
	if err := s.record("signatureHelp", artifact, offset); err != nil {
		return nil, err
	}
	return s.Help, nil
}

func (s *Service) Diagnostics(_ context.Context, artifact analysis.Artifact) ([]analysis.Diagnostic, error) {
	if err := s.record("diagnostics", artifact, -1); err != nil {
		return nil, err
	}
	return s.Problems, nil
}

func (s *Service) ResolveModule(_ context.Context, importer string, specifier string) (string, error) {
	if err := s.record("resolveModule", analysis.Artifact{URI: protocol.URIFromPath(importer)}, -1); err != nil {
		return "", err
	}
	if p, ok := s.Modules[specifier]; ok {
		return p, nil
	}
	if p := path.Join(path.Dir(importer), specifier); s.Files.Exists(p) {
		return p, nil
	}
	return "", fmt.Errorf("%w: module %q from %s", analysis.ErrNotFound, specifier, importer)
}

func (s *Service) Forget(_ context.Context, uri protocol.DocumentURI) error {
	return s.record("forget", analysis.Artifact{URI: uri}, -1)
}

// Files is an in-memory file system keyed by absolute path.
type Files map[string]string

func (f Files) ReadFile(_ context.Context, path string) ([]byte, error) {
	content, ok := f[path]
	if !ok {
		return nil, &fs.PathError{Op: "open", Path: path, Err: fs.ErrNotExist}
	}
	return []byte(content), nil
}

func (f Files) Exists(path string) bool {
	_, ok := f[path]
	return ok
}

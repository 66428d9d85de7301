package lsp

import (
	"context"
	"fmt"

	"github.com/kralicky/astrols/pkg/analysis"
	"github.com/kralicky/tools-lite/gopls/pkg/protocol"
	"github.com/kralicky/tools-lite/pkg/jsonrpc2"
)

type locationQuery func(ctx context.Context, artifact analysis.Artifact, offset int) ([]protocol.Location, error)

// queryLocations runs an engine location query at pos and maps the results
// back into source documents.
func (s *Server) queryLocations(ctx context.Context, uri protocol.DocumentURI, pos protocol.Position, query locationQuery) ([]protocol.Location, error) {
	doc, err := s.document(uri)
	if err != nil {
		return nil, err
	}
	offset, err := doc.Mapper.PositionOffset(pos)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", jsonrpc2.ErrInvalidParams, err)
	}
	generated, ok := doc.Virtual().ToGenerated(offset)
	if !ok {
		return nil, nil
	}
	found, _ := query(ctx, documentArtifact(doc), generated)
	var locations []protocol.Location
	for _, loc := range found {
		if mapped, ok := s.sourceLocation(loc); ok {
			locations = append(locations, mapped)
		}
	}
	return locations, nil
}

// References implements protocol.Server.
func (s *Server) References(ctx context.Context, params *protocol.ReferenceParams) ([]protocol.Location, error) {
	svc, _, settings, err := s.state()
	if err != nil {
		return nil, err
	}
	if !settings.IsEnabled(NamespaceTypeScript, FeatureReferences) {
		return nil, nil
	}
	locations, err := s.queryLocations(ctx, params.TextDocument.URI, params.Position, svc.References)
	if err != nil || params.Context.IncludeDeclaration {
		return locations, err
	}
	// the engine always includes the declaration; drop it when not asked for
	decls, _ := s.queryLocations(ctx, params.TextDocument.URI, params.Position, svc.Definition)
	var out []protocol.Location
	for _, loc := range locations {
		if !containsLocation(decls, loc) {
			out = append(out, loc)
		}
	}
	return out, nil
}

func containsLocation(locations []protocol.Location, loc protocol.Location) bool {
	for _, l := range locations {
		if l == loc {
			return true
		}
	}
	return false
}

// TypeDefinition implements protocol.Server.
func (s *Server) TypeDefinition(ctx context.Context, params *protocol.TypeDefinitionParams) ([]protocol.Location, error) {
	svc, _, settings, err := s.state()
	if err != nil {
		return nil, err
	}
	if !settings.IsEnabled(NamespaceTypeScript, FeatureDefinitions) {
		return nil, nil
	}
	return s.queryLocations(ctx, params.TextDocument.URI, params.Position, svc.TypeDefinition)
}

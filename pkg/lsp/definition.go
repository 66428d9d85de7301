package lsp

import (
	"context"
	"fmt"
	"strings"

	"github.com/kralicky/astrols/pkg/astro"
	"github.com/kralicky/tools-lite/gopls/pkg/protocol"
	"github.com/kralicky/tools-lite/pkg/jsonrpc2"
)

// Definition implements protocol.Server. Component tags the engine cannot
// follow resolve to the component's module.
func (s *Server) Definition(ctx context.Context, params *protocol.DefinitionParams) ([]protocol.Location, error) {
	svc, _, settings, err := s.state()
	if err != nil {
		return nil, err
	}
	if !settings.IsEnabled(NamespaceTypeScript, FeatureDefinitions) {
		return nil, nil
	}
	doc, err := s.document(params.TextDocument.URI)
	if err != nil {
		return nil, err
	}
	offset, err := doc.Mapper.PositionOffset(params.Position)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", jsonrpc2.ErrInvalidParams, err)
	}

	var locations []protocol.Location
	if generated, ok := doc.Virtual().ToGenerated(offset); ok {
		found, _ := svc.Definition(ctx, documentArtifact(doc), generated)
		for _, loc := range found {
			if mapped, ok := s.sourceLocation(loc); ok {
				locations = append(locations, mapped)
			}
		}
	}
	if len(locations) > 0 {
		return locations, nil
	}

	// The engine cannot see into component files of other frameworks; fall
	// back to the resolved module of the tag's import.
	c := doc.Classify(offset)
	if c.Region != astro.RegionTagName || !c.Tag.IsComponent() {
		return nil, nil
	}
	imp, ok := astro.LookupImport(doc.Imports, c.Tag.Name)
	if !ok {
		return nil, nil
	}
	path, _ := svc.ResolveModule(ctx, doc.Path(), imp.Specifier)
	if path == "" {
		return nil, nil
	}
	return []protocol.Location{{URI: protocol.URIFromPath(path)}}, nil
}

// sourceLocation maps a location inside the virtual file of an astro document
// back into the document. Locations in synthesized code are dropped; other
// files pass through unchanged.
func (s *Server) sourceLocation(loc protocol.Location) (protocol.Location, bool) {
	source, ok := strings.CutSuffix(string(loc.URI), astro.VirtualExtension)
	if !ok || !strings.HasSuffix(source, ".astro") {
		return loc, true
	}
	uri := protocol.DocumentURI(source)
	target, open := s.docs.Get(uri)
	if !open {
		return protocol.Location{URI: uri}, true
	}
	start, end, err := target.Virtual().Mapper.RangeOffsets(loc.Range)
	if err != nil {
		return protocol.Location{}, false
	}
	rng, ok := sourceRange(target, start, end)
	if !ok {
		return protocol.Location{}, false
	}
	return protocol.Location{URI: uri, Range: rng}, true
}

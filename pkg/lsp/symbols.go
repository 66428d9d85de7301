package lsp

import (
	"context"

	"github.com/samber/lo"

	"github.com/kralicky/astrols/pkg/analysis"
	"github.com/kralicky/astrols/pkg/astro"
	"github.com/kralicky/tools-lite/gopls/pkg/protocol"
)

// DocumentSymbol implements protocol.Server.
func (s *Server) DocumentSymbol(ctx context.Context, params *protocol.DocumentSymbolParams) ([]any, error) {
	svc, _, settings, err := s.state()
	if err != nil {
		return nil, err
	}
	if !settings.IsEnabled(NamespaceTypeScript, FeatureDocumentSymbols) {
		return nil, nil
	}
	doc, err := s.document(params.TextDocument.URI)
	if err != nil {
		return nil, err
	}
	symbols, _ := svc.DocumentSymbols(ctx, documentArtifact(doc))
	out := []any{}
	for _, sym := range sourceSymbols(doc, symbols) {
		out = append(out, sym)
	}
	return out, nil
}

// sourceSymbols maps an outline of the virtual file into the document.
// Synthesized declarations, such as the render function wrapping the markup,
// are dropped and their children take their place.
func sourceSymbols(doc *astro.Document, symbols []analysis.Symbol) []protocol.DocumentSymbol {
	var out []protocol.DocumentSymbol
	for _, sym := range symbols {
		children := sourceSymbols(doc, sym.Children)
		if lo.Contains(astro.SynthesizedIdentifiers, sym.Name) {
			out = append(out, children...)
			continue
		}
		sel, ok := sourceRange(doc, sym.SelectionStart, sym.SelectionEnd)
		if !ok {
			out = append(out, children...)
			continue
		}
		rng, ok := sourceRange(doc, sym.Start, sym.End)
		if !ok {
			rng = sel
		}
		out = append(out, protocol.DocumentSymbol{
			Name:           sym.Name,
			Detail:         sym.Detail,
			Kind:           sym.Kind,
			Range:          rng,
			SelectionRange: sel,
			Children:       children,
		})
	}
	return out
}

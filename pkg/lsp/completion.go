package lsp

import (
	"context"
	"fmt"

	"github.com/kralicky/tools-lite/gopls/pkg/protocol"
	"github.com/kralicky/tools-lite/pkg/jsonrpc2"
)

// Completion answers from the completion provider. Script regions are gated
// by the typescript namespace, everything else by the astro namespace.
func (s *Server) Completion(ctx context.Context, params *protocol.CompletionParams) (*protocol.CompletionList, error) {
	_, provider, settings, err := s.state()
	if err != nil {
		return nil, err
	}
	doc, err := s.document(params.TextDocument.URI)
	if err != nil {
		return nil, err
	}
	offset, err := doc.Mapper.PositionOffset(params.Position)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", jsonrpc2.ErrInvalidParams, err)
	}
	namespace := NamespaceAstro
	if doc.Classify(offset).Region.IsScript() {
		namespace = NamespaceTypeScript
	}
	if !settings.IsEnabled(namespace, FeatureCompletions) {
		return nil, nil
	}
	return provider.GetCompletions(ctx, doc, params.Position, &params.Context)
}

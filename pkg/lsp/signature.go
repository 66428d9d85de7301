package lsp

import (
	"context"
	"fmt"

	"github.com/kralicky/tools-lite/gopls/pkg/protocol"
	"github.com/kralicky/tools-lite/pkg/jsonrpc2"
)

var (
	signatureTriggers   = []string{"(", ",", "<"}
	signatureRetriggers = []string{")"}
)

// SignatureHelp implements protocol.Server.
func (s *Server) SignatureHelp(ctx context.Context, params *protocol.SignatureHelpParams) (*protocol.SignatureHelp, error) {
	svc, _, settings, err := s.state()
	if err != nil {
		return nil, err
	}
	if !settings.IsEnabled(NamespaceTypeScript, FeatureSignatureHelp) {
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
	if !doc.Classify(offset).Region.IsScript() {
		return nil, nil
	}
	generated, ok := doc.Virtual().ToGenerated(offset)
	if !ok {
		return nil, nil
	}
	help, _ := svc.SignatureHelp(ctx, documentArtifact(doc), generated)
	if help == nil || len(help.Signatures) == 0 {
		return nil, nil
	}
	out := &protocol.SignatureHelp{
		ActiveSignature: uint32(help.ActiveSignature),
		ActiveParameter: uint32(help.ActiveParameter),
	}
	for _, sig := range help.Signatures {
		info := protocol.SignatureInformation{Label: sig.Label}
		if sig.Documentation != "" {
			info.Documentation = &protocol.Or_SignatureInformation_documentation{
				Value: protocol.MarkupContent{Kind: protocol.Markdown, Value: sig.Documentation},
			}
		}
		for _, p := range sig.Parameters {
			info.Parameters = append(info.Parameters, protocol.ParameterInformation{
				Label:         p.Label,
				Documentation: p.Documentation,
			})
		}
		out.Signatures = append(out.Signatures, info)
	}
	return out, nil
}

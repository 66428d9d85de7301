package lsp

import (
	"context"
	"fmt"
	"strings"

	"github.com/kralicky/astrols/pkg/astro"
	"github.com/kralicky/astrols/pkg/completion"
	"github.com/kralicky/tools-lite/gopls/pkg/protocol"
	"github.com/kralicky/tools-lite/pkg/jsonrpc2"
)

func (s *Server) Hover(ctx context.Context, params *protocol.HoverParams) (*protocol.Hover, error) {
	svc, _, settings, err := s.state()
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

	if doc.Classify(offset).Region == astro.RegionStartTag && settings.IsEnabled(NamespaceAstro, FeatureHover) {
		if h := directiveHover(doc, offset); h != nil {
			return h, nil
		}
	}

	if !settings.IsEnabled(NamespaceTypeScript, FeatureHover) {
		return nil, nil
	}
	generated, ok := generatedOffset(doc, params.Position)
	if !ok {
		return nil, nil
	}
	info, _ := svc.QuickInfo(ctx, documentArtifact(doc), generated)
	if info == nil || strings.TrimSpace(info.Contents) == "" {
		return nil, nil
	}
	h := &protocol.Hover{
		Contents: protocol.MarkupContent{
			Kind:  protocol.Markdown,
			Value: info.Contents,
		},
	}
	if rng, ok := sourceRange(doc, info.Start, info.End); ok {
		h.Range = rng
	}
	return h, nil
}

// directiveHover documents the client directive under offset.
func directiveHover(doc *astro.Document, offset int) *protocol.Hover {
	start, end := attributeNameAt(doc.Text(), offset)
	if start == end {
		return nil
	}
	value, ok := completion.DirectiveDocumentation(string(doc.Text()[start:end]))
	if !ok {
		return nil
	}
	rng, err := doc.Mapper.OffsetRange(start, end)
	if err != nil {
		return nil
	}
	return &protocol.Hover{
		Contents: protocol.MarkupContent{Kind: protocol.Markdown, Value: value},
		Range:    rng,
	}
}

// attributeNameAt returns the span of the attribute name touching offset.
func attributeNameAt(text []byte, offset int) (int, int) {
	start, end := offset, offset
	for start > 0 && isAttributeNameByte(text[start-1]) {
		start--
	}
	for end < len(text) && isAttributeNameByte(text[end]) {
		end++
	}
	return start, end
}

func isAttributeNameByte(c byte) bool {
	if c <= ' ' {
		return false
	}
	return !strings.ContainsRune("\"'`<>/={}", rune(c))
}

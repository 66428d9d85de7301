package lsp

import (
	"context"

	"github.com/kralicky/astrols/pkg/astro"
	"github.com/kralicky/tools-lite/gopls/pkg/protocol"
)

// FoldingRange folds the frontmatter body and multi-line script and style
// blocks. The closing fence or end tag stays visible.
func (s *Server) FoldingRange(ctx context.Context, params *protocol.FoldingRangeParams) ([]protocol.FoldingRange, error) {
	_, _, settings, err := s.state()
	if err != nil {
		return nil, err
	}
	if !settings.IsEnabled(NamespaceAstro, FeatureFoldingRanges) {
		return nil, nil
	}
	doc, err := s.document(params.TextDocument.URI)
	if err != nil {
		return nil, err
	}
	return foldingRanges(doc), nil
}

func foldingRanges(doc *astro.Document) []protocol.FoldingRange {
	ranges := []protocol.FoldingRange{}
	add := func(start, end int) {
		startLine, endLine, ok := lineSpan(doc.Mapper, start, end)
		if !ok || endLine < startLine+2 {
			return
		}
		ranges = append(ranges, protocol.FoldingRange{
			StartLine: startLine,
			EndLine:   endLine - 1,
		})
	}
	if fm := doc.Frontmatter; fm.State == astro.FrontmatterClosed {
		add(fm.OpenStart, fm.CloseStart)
	}
	for _, b := range doc.Blocks() {
		add(b.Tag.Start, b.End)
	}
	return ranges
}

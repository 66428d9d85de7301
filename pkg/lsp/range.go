package lsp

import (
	"github.com/kralicky/astrols/pkg/analysis"
	"github.com/kralicky/astrols/pkg/astro"
	"github.com/kralicky/tools-lite/gopls/pkg/protocol"
)

// documentArtifact is the engine's view of a document.
func documentArtifact(doc *astro.Document) analysis.Artifact {
	vf := doc.Virtual()
	return analysis.Artifact{
		URI:     vf.URI,
		Version: doc.Version,
		Content: vf.Content,
		Kind:    analysis.ArtifactDocument,
	}
}

// generatedOffset translates a document position into the virtual file.
func generatedOffset(doc *astro.Document, pos protocol.Position) (int, bool) {
	return doc.Virtual().GeneratedOffset(doc.Mapper, pos)
}

// sourceRange translates a span of the virtual file into a document range.
func sourceRange(doc *astro.Document, start, end int) (protocol.Range, bool) {
	s, e, ok := doc.Virtual().ToSourceRange(start, end)
	if !ok {
		return protocol.Range{}, false
	}
	rng, err := doc.Mapper.OffsetRange(s, e)
	if err != nil {
		return protocol.Range{}, false
	}
	return rng, true
}

func lineSpan(m *protocol.Mapper, start, end int) (startLine, endLine uint32, ok bool) {
	rng, err := m.OffsetRange(start, end)
	if err != nil {
		return 0, 0, false
	}
	return rng.Start.Line, rng.End.Line, true
}

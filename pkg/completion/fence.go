package completion

import (
	"github.com/kralicky/astrols/pkg/astro"
	"github.com/kralicky/tools-lite/gopls/pkg/protocol"
)

var fenceSnippets = map[astro.FenceKind]struct{ detail, text string }{
	astro.FenceOpen:  {detail: "Create component script block", text: "---\n$0\n---"},
	astro.FenceClose: {detail: "Close component script block", text: "---"},
}

// fenceItem offers to complete the frontmatter fence being typed at offset.
func fenceItem(doc *astro.Document, offset int) (protocol.CompletionItem, bool) {
	kind, replaceStart := astro.DetectFence(doc.Text(), offset)
	snippet, ok := fenceSnippets[kind]
	if !ok {
		return protocol.CompletionItem{}, false
	}
	rng, err := doc.Mapper.OffsetRange(replaceStart, offset)
	if err != nil {
		return protocol.CompletionItem{}, false
	}
	textFmt := protocol.SnippetTextFormat
	return protocol.CompletionItem{
		Label:            astro.FenceMarker,
		Kind:             protocol.SnippetCompletion,
		Detail:           snippet.detail,
		InsertText:       snippet.text,
		InsertTextFormat: &textFmt,
		CommitCharacters: []string{},
		Preselect:        true,
		SortText:         sortPlain,
		TextEdit: &protocol.Or_CompletionItem_textEdit{
			Value: protocol.TextEdit{
				Range:   rng,
				NewText: snippet.text,
			},
		},
	}, true
}

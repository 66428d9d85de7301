package completion

import (
	"fmt"

	"github.com/kralicky/tools-lite/gopls/pkg/protocol"
)

const (
	sortPlain     = "\x00"
	sortDecorated = "_"
)

// PropDescriptor is one prop a component accepts.
type PropDescriptor struct {
	Name     string
	Type     string
	Optional bool
	// Whether the label carries a '?' marker.
	Decorated     bool
	Documentation string
}

func (p PropDescriptor) label() string {
	if p.Decorated {
		return p.Name + "?"
	}
	return p.Name
}

// snippet returns the attribute text inserted for the prop. String props get a
// quoted value; everything else an expression.
func (p PropDescriptor) snippet() string {
	if p.Type == "string" {
		return fmt.Sprintf(`%s="$1"`, p.Name)
	}
	return fmt.Sprintf(`%s={$1}`, p.Name)
}

// PropItem converts a prop into a completion item.
func PropItem(p PropDescriptor) protocol.CompletionItem {
	textFmt := protocol.SnippetTextFormat
	item := protocol.CompletionItem{
		Label:            p.label(),
		Detail:           p.Type,
		InsertText:       p.snippet(),
		InsertTextFormat: &textFmt,
		CommitCharacters: []string{},
		SortText:         sortPlain,
	}
	if p.Decorated {
		item.FilterText = p.Name
		item.SortText = sortDecorated
	}
	if p.Documentation != "" {
		item.Documentation = &protocol.Or_CompletionItem_documentation{
			Value: protocol.MarkupContent{Kind: protocol.Markdown, Value: p.Documentation},
		}
	}
	return item
}

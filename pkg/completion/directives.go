package completion

import (
	"github.com/samber/lo"

	"github.com/kralicky/tools-lite/gopls/pkg/protocol"
)

const (
	directivePrefix    = "client:"
	directiveReference = "https://docs.astro.build/en/reference/directives-reference/"
)

type directive struct {
	name    string
	snippet string
	doc     string
	anchor  string
}

var clientDirectives = []directive{
	{
		name:    "client:load",
		snippet: "client:load",
		doc:     "Start importing the component JS at page load. Hydrate the component when import completes.",
		anchor:  "clientload",
	},
	{
		name:    "client:idle",
		snippet: "client:idle",
		doc:     "Start importing the component JS as soon as main thread is free (uses requestIdleCallback()). Hydrate the component when import completes.",
		anchor:  "clientidle",
	},
	{
		name:    "client:visible",
		snippet: "client:visible",
		doc:     "Start importing the component JS as soon as the element enters the viewport (uses IntersectionObserver). Hydrate the component when import completes. Useful for content lower down on the page.",
		anchor:  "clientvisible",
	},
	{
		name:    "client:media",
		snippet: `client:media="$1"`,
		doc:     "Start importing the component JS as soon as the browser matches the given media query (uses matchMedia). Hydrate the component when import completes. Useful for sidebar toggles, or other elements that should only display on mobile or desktop devices.",
		anchor:  "clientmedia",
	},
	{
		name:    "client:only",
		snippet: `client:only="$1"`,
		doc:     "Start importing the component JS at page load and hydrate when the import completes, similar to client:load. The component will be skipped at build time, useful for components that are entirely dependent on client-side APIs. This is best used sparingly.",
		anchor:  "clientonly",
	},
}

func (d directive) documentation() string {
	return d.doc + "\n\n[Astro reference](" + directiveReference + "#" + d.anchor + ")"
}

// DirectiveItems returns the client directive catalog, each inserting at the
// cursor without replacing anything.
func DirectiveItems(cursor protocol.Position) []protocol.CompletionItem {
	textFmt := protocol.SnippetTextFormat
	return lo.Map(clientDirectives, func(d directive, _ int) protocol.CompletionItem {
		return protocol.CompletionItem{
			Label: d.name,
			Kind:  protocol.ValueCompletion,
			Documentation: &protocol.Or_CompletionItem_documentation{
				Value: protocol.MarkupContent{
					Kind:  protocol.Markdown,
					Value: d.documentation(),
				},
			},
			TextEdit: &protocol.Or_CompletionItem_textEdit{
				Value: protocol.TextEdit{
					Range:   protocol.Range{Start: cursor, End: cursor},
					NewText: d.snippet,
				},
			},
			InsertTextFormat: &textFmt,
		}
	})
}

// mergeItems appends extra to items, skipping labels already present.
func mergeItems(items, extra []protocol.CompletionItem) []protocol.CompletionItem {
	return lo.UniqBy(append(items, extra...), func(item protocol.CompletionItem) string {
		return item.Label
	})
}

// DirectiveDocumentation returns the markdown documentation of a client
// directive, as offered in completions.
func DirectiveDocumentation(name string) (string, bool) {
	for _, d := range clientDirectives {
		if d.name == name {
			return d.documentation(), true
		}
	}
	return "", false
}

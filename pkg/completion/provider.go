// Package completion answers completion requests for astro documents.
//
// Requests are routed by the syntactic region under the cursor: frontmatter
// fences get a snippet, component start tags get props and client directives,
// and script regions are delegated to the analysis engine through the
// document's virtual TSX file. Failures never surface as errors; at worst the
// list comes back shorter.
package completion

import (
	"context"
	"log/slog"

	"github.com/samber/lo"

	"github.com/kralicky/astrols/pkg/analysis"
	"github.com/kralicky/astrols/pkg/astro"
	"github.com/kralicky/tools-lite/gopls/pkg/protocol"
)

type Provider struct {
	svc      analysis.Service
	resolver *Resolver
}

func NewProvider(svc analysis.Service, files FileReader) *Provider {
	svc = analysis.Guard(svc)
	return &Provider{
		svc:      svc,
		resolver: NewResolver(svc, files),
	}
}

// Resolver returns the component resolver, so callers can invalidate
// component metadata when files change.
func (p *Provider) Resolver() *Resolver {
	return p.resolver
}

func emptyList() *protocol.CompletionList {
	return &protocol.CompletionList{Items: []protocol.CompletionItem{}}
}

// GetCompletions returns the completions at pos. A nil list means the
// position belongs to another language (style and comment bodies).
func (p *Provider) GetCompletions(ctx context.Context, doc *astro.Document, pos protocol.Position, cc *protocol.CompletionContext) (*protocol.CompletionList, error) {
	offset, err := doc.Mapper.PositionOffset(pos)
	if err != nil {
		slog.Debug("completion position out of range", "uri", doc.URI, "position", pos, "error", err)
		return emptyList(), nil
	}
	lg := slog.With("uri", doc.URI, "version", doc.Version, "offset", offset)

	if cc != nil && cc.TriggerCharacter == "-" {
		if item, ok := fenceItem(doc, offset); ok {
			return &protocol.CompletionList{Items: []protocol.CompletionItem{item}}, nil
		}
	}

	c := doc.Classify(offset)
	lg.Debug("completion requested", "region", c.Region)
	switch c.Region {
	case astro.RegionFence:
		if item, ok := fenceItem(doc, offset); ok {
			return &protocol.CompletionList{Items: []protocol.CompletionItem{item}}, nil
		}
		return emptyList(), nil
	case astro.RegionStartTag:
		return &protocol.CompletionList{Items: p.attributeItems(ctx, doc, c.Tag, pos)}, nil
	case astro.RegionFrontmatter, astro.RegionExpression, astro.RegionScript:
		return &protocol.CompletionList{Items: p.scriptItems(ctx, doc, offset, c.Region)}, nil
	case astro.RegionStyle, astro.RegionComment:
		return nil, nil
	default:
		return emptyList(), nil
	}
}

// attributeItems offers the props of the component a start tag renders,
// followed by client directives when the component is hydrated.
func (p *Provider) attributeItems(ctx context.Context, doc *astro.Document, tag *astro.Tag, pos protocol.Position) []protocol.CompletionItem {
	items := []protocol.CompletionItem{}
	if !tag.IsComponent() {
		return items
	}
	component, err := p.resolver.Resolve(ctx, doc, tag)
	if err != nil {
		slog.Debug("failed to resolve component", "tag", tag.Name, "error", err)
		return items
	}
	if component == nil {
		return items
	}
	for _, prop := range component.Available(tag) {
		items = append(items, PropItem(prop))
	}
	if component.Framework.Hydrated() && !tag.HasAttributePrefix(directivePrefix) {
		items = mergeItems(items, DirectiveItems(pos))
	}
	return items
}

// scriptItems delegates to the engine through the virtual file.
func (p *Provider) scriptItems(ctx context.Context, doc *astro.Document, offset int, region astro.Region) []protocol.CompletionItem {
	items := []protocol.CompletionItem{}
	vf := doc.Virtual()
	generated, ok := vf.ToGenerated(offset)
	if !ok {
		return items
	}
	entries, err := p.svc.CompletionsAtPosition(ctx, analysis.Artifact{
		URI:     vf.URI,
		Version: doc.Version,
		Content: vf.Content,
		Kind:    analysis.ArtifactDocument,
	}, generated)
	if err != nil {
		slog.Debug("script completions failed", "uri", doc.URI, "offset", offset, "error", err)
		return items
	}

	entries = lo.Reject(entries, func(e analysis.Entry, _ int) bool {
		if lo.Contains(astro.SynthesizedIdentifiers, e.Name) {
			return true
		}
		// Markup expressions cannot add imports to the frontmatter.
		return region == astro.RegionExpression && e.Source != ""
	})
	for _, e := range entries {
		items = append(items, EntryItem(e))
	}
	return items
}

var completionKinds = map[analysis.EntryKind]protocol.CompletionItemKind{
	analysis.KindKeyword:       protocol.KeywordCompletion,
	analysis.KindModule:        protocol.ModuleCompletion,
	analysis.KindExternalName:  protocol.ModuleCompletion,
	analysis.KindClass:         protocol.ClassCompletion,
	analysis.KindInterface:     protocol.InterfaceCompletion,
	analysis.KindType:          protocol.ClassCompletion,
	analysis.KindEnum:          protocol.EnumCompletion,
	analysis.KindEnumMember:    protocol.EnumMemberCompletion,
	analysis.KindVariable:      protocol.VariableCompletion,
	analysis.KindLocalVariable: protocol.VariableCompletion,
	analysis.KindLet:           protocol.VariableCompletion,
	analysis.KindConst:         protocol.ConstantCompletion,
	analysis.KindFunction:      protocol.FunctionCompletion,
	analysis.KindLocalFunction: protocol.FunctionCompletion,
	analysis.KindMethod:        protocol.MethodCompletion,
	analysis.KindProperty:      protocol.PropertyCompletion,
	analysis.KindGetter:        protocol.MethodCompletion,
	analysis.KindSetter:        protocol.MethodCompletion,
	analysis.KindParameter:     protocol.VariableCompletion,
	analysis.KindAlias:         protocol.VariableCompletion,
	analysis.KindString:        protocol.TextCompletion,
	analysis.KindWarning:       protocol.TextCompletion,
}

// EntryItem converts an engine entry into a completion item.
func EntryItem(e analysis.Entry) protocol.CompletionItem {
	kind, ok := completionKinds[e.Kind]
	if !ok {
		kind = protocol.PropertyCompletion
	}
	item := protocol.CompletionItem{
		Label:      e.Name,
		Kind:       kind,
		Detail:     e.Type,
		SortText:   e.SortText,
		InsertText: e.InsertText,
	}
	if e.Optional {
		item.Label += "?"
		item.FilterText = e.Name
		if item.InsertText == "" {
			item.InsertText = e.Name
		}
	}
	if e.IsSnippet {
		textFmt := protocol.SnippetTextFormat
		item.InsertTextFormat = &textFmt
	}
	if e.Documentation != "" {
		item.Documentation = &protocol.Or_CompletionItem_documentation{
			Value: protocol.MarkupContent{Kind: protocol.Markdown, Value: e.Documentation},
		}
	}
	return item
}

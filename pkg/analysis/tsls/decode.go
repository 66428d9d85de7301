package tsls

import (
	"encoding/json"
	"strings"

	"github.com/kralicky/astrols/pkg/analysis"
	"github.com/kralicky/tools-lite/gopls/pkg/protocol"
)

// completionItem keeps the fields of a CompletionItem the bridge reads, plus
// the raw message so it can be sent back for resolution unchanged.
type completionItem struct {
	Label            string                      `json:"label"`
	Kind             protocol.CompletionItemKind `json:"kind,omitempty"`
	Detail           string                      `json:"detail,omitempty"`
	Documentation    json.RawMessage             `json:"documentation,omitempty"`
	SortText         string                      `json:"sortText,omitempty"`
	FilterText       string                      `json:"filterText,omitempty"`
	InsertText       string                      `json:"insertText,omitempty"`
	InsertTextFormat *protocol.InsertTextFormat  `json:"insertTextFormat,omitempty"`
	TextEdit         *struct {
		NewText string `json:"newText"`
	} `json:"textEdit,omitempty"`
	LabelDetails *struct {
		Detail      string `json:"detail,omitempty"`
		Description string `json:"description,omitempty"`
	} `json:"labelDetails,omitempty"`

	raw json.RawMessage
}

func decodeCompletionItems(raw json.RawMessage) ([]completionItem, error) {
	if isNull(raw) {
		return nil, nil
	}
	var items []json.RawMessage
	if raw[0] == '[' {
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, err
		}
	} else {
		var list struct {
			Items []json.RawMessage `json:"items"`
		}
		if err := json.Unmarshal(raw, &list); err != nil {
			return nil, err
		}
		items = list.Items
	}
	out := make([]completionItem, 0, len(items))
	for _, r := range items {
		var item completionItem
		if err := json.Unmarshal(r, &item); err != nil {
			return nil, err
		}
		item.raw = r
		out = append(out, item)
	}
	return out, nil
}

var entryKinds = map[protocol.CompletionItemKind]analysis.EntryKind{
	protocol.TextCompletion:          analysis.KindString,
	protocol.MethodCompletion:        analysis.KindMethod,
	protocol.FunctionCompletion:      analysis.KindFunction,
	protocol.ConstructorCompletion:   analysis.KindClass,
	protocol.FieldCompletion:         analysis.KindProperty,
	protocol.VariableCompletion:      analysis.KindVariable,
	protocol.ClassCompletion:         analysis.KindClass,
	protocol.InterfaceCompletion:     analysis.KindInterface,
	protocol.ModuleCompletion:        analysis.KindModule,
	protocol.PropertyCompletion:      analysis.KindProperty,
	protocol.EnumCompletion:          analysis.KindEnum,
	protocol.KeywordCompletion:       analysis.KindKeyword,
	protocol.FileCompletion:          analysis.KindExternalName,
	protocol.FolderCompletion:        analysis.KindExternalName,
	protocol.EnumMemberCompletion:    analysis.KindEnumMember,
	protocol.ConstantCompletion:      analysis.KindConst,
	protocol.TypeParameterCompletion: analysis.KindType,
}

func (item completionItem) entry() analysis.Entry {
	e := analysis.Entry{
		Name:          item.Label,
		Kind:          entryKinds[item.Kind],
		SortText:      item.SortText,
		InsertText:    item.InsertText,
		Documentation: markupText(item.Documentation),
		IsSnippet:     item.InsertTextFormat != nil && *item.InsertTextFormat == protocol.SnippetTextFormat,
	}
	if e.Kind == "" {
		e.Kind = analysis.KindVariable
	}
	if e.InsertText == "" && item.TextEdit != nil {
		e.InsertText = item.TextEdit.NewText
	}
	if strings.HasSuffix(e.Name, "?") {
		e.Name = strings.TrimSuffix(e.Name, "?")
		e.Optional = true
	}
	if e.InsertText == e.Name || e.InsertText == item.Label {
		e.InsertText = ""
	}
	if item.LabelDetails != nil {
		e.Source = item.LabelDetails.Description
	}
	e.Type = typeFromDetail(item.Detail, e.Name)
	return e
}

// typeFromDetail extracts the declared type from a detail string such as
// "(property) name?: string". Details without a declaration are kept whole.
func typeFromDetail(detail, name string) string {
	detail = strings.TrimSpace(detail)
	if name == "" {
		return detail
	}
	for _, decl := range []string{name + "?: ", name + ": "} {
		if idx := strings.Index(detail, decl); idx != -1 {
			return strings.TrimSpace(detail[idx+len(decl):])
		}
	}
	return detail
}

// markupText reads a string or MarkupContent value.
func markupText(raw json.RawMessage) string {
	if isNull(raw) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var mc protocol.MarkupContent
	if err := json.Unmarshal(raw, &mc); err == nil {
		return mc.Value
	}
	return ""
}

type hoverResult struct {
	Contents json.RawMessage `json:"contents"`
	Range    *protocol.Range `json:"range,omitempty"`
}

// hoverText flattens the three shapes hover contents may take: MarkupContent,
// a MarkedString, or a list of MarkedStrings.
func hoverText(raw json.RawMessage) string {
	if isNull(raw) {
		return ""
	}
	if raw[0] == '[' {
		var parts []json.RawMessage
		if err := json.Unmarshal(raw, &parts); err != nil {
			return ""
		}
		var texts []string
		for _, p := range parts {
			if t := markedString(p); t != "" {
				texts = append(texts, t)
			}
		}
		return strings.Join(texts, "\n\n")
	}
	return markedString(raw)
}

func markedString(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var obj struct {
		Kind     string `json:"kind"`
		Language string `json:"language"`
		Value    string `json:"value"`
	}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return ""
	}
	if obj.Language != "" {
		return "```" + obj.Language + "\n" + obj.Value + "\n```"
	}
	return obj.Value
}

// decodeLocations accepts a Location, a list of Locations, or a list of
// LocationLinks.
func decodeLocations(raw json.RawMessage) ([]protocol.Location, error) {
	if isNull(raw) {
		return nil, nil
	}
	var items []json.RawMessage
	if raw[0] == '[' {
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, err
		}
	} else {
		items = []json.RawMessage{raw}
	}
	var out []protocol.Location
	for _, item := range items {
		var loc struct {
			URI                  protocol.DocumentURI `json:"uri"`
			Range                protocol.Range       `json:"range"`
			TargetURI            protocol.DocumentURI `json:"targetUri"`
			TargetSelectionRange protocol.Range       `json:"targetSelectionRange"`
		}
		if err := json.Unmarshal(item, &loc); err != nil {
			return nil, err
		}
		if loc.TargetURI != "" {
			out = append(out, protocol.Location{URI: loc.TargetURI, Range: loc.TargetSelectionRange})
		} else if loc.URI != "" {
			out = append(out, protocol.Location{URI: loc.URI, Range: loc.Range})
		}
	}
	return out, nil
}

// decodeSymbols accepts either a DocumentSymbol tree or a flat list of
// SymbolInformation. Flat entries located outside the artifact are dropped.
func decodeSymbols(raw json.RawMessage, artifact analysis.Artifact) ([]analysis.Symbol, error) {
	if isNull(raw) {
		return nil, nil
	}
	var items []struct {
		protocol.DocumentSymbol
		Location *protocol.Location `json:"location,omitempty"`
	}
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, err
	}
	m := protocol.NewMapper(artifact.URI, artifact.Content)
	var out []analysis.Symbol
	for _, item := range items {
		ds := item.DocumentSymbol
		if item.Location != nil {
			if item.Location.URI != artifact.URI {
				continue
			}
			ds.Range = item.Location.Range
			ds.SelectionRange = item.Location.Range
		}
		if sym, ok := symbolOffsets(m, ds); ok {
			out = append(out, sym)
		}
	}
	return out, nil
}

func symbolOffsets(m *protocol.Mapper, ds protocol.DocumentSymbol) (analysis.Symbol, bool) {
	start, end, err := m.RangeOffsets(ds.Range)
	if err != nil {
		return analysis.Symbol{}, false
	}
	selStart, selEnd, err := m.RangeOffsets(ds.SelectionRange)
	if err != nil {
		selStart, selEnd = start, end
	}
	sym := analysis.Symbol{
		Name:           ds.Name,
		Detail:         ds.Detail,
		Kind:           ds.Kind,
		Start:          start,
		End:            end,
		SelectionStart: selStart,
		SelectionEnd:   selEnd,
	}
	for _, child := range ds.Children {
		if c, ok := symbolOffsets(m, child); ok {
			sym.Children = append(sym.Children, c)
		}
	}
	return sym, true
}

type signatureHelp struct {
	Signatures []struct {
		Label         string          `json:"label"`
		Documentation json.RawMessage `json:"documentation,omitempty"`
		Parameters    []struct {
			Label         json.RawMessage `json:"label"`
			Documentation json.RawMessage `json:"documentation,omitempty"`
		} `json:"parameters,omitempty"`
	} `json:"signatures"`
	ActiveSignature int `json:"activeSignature,omitempty"`
	ActiveParameter int `json:"activeParameter,omitempty"`
}

// decodeSignatureHelp reads a SignatureHelp. Parameter labels may be strings
// or [start, end] offsets into the signature label.
func decodeSignatureHelp(raw json.RawMessage) (*analysis.SignatureHelp, error) {
	if isNull(raw) {
		return nil, nil
	}
	var sh signatureHelp
	if err := json.Unmarshal(raw, &sh); err != nil {
		return nil, err
	}
	if len(sh.Signatures) == 0 {
		return nil, nil
	}
	out := &analysis.SignatureHelp{
		ActiveSignature: sh.ActiveSignature,
		ActiveParameter: sh.ActiveParameter,
	}
	for _, s := range sh.Signatures {
		sig := analysis.Signature{
			Label:         s.Label,
			Documentation: markupText(s.Documentation),
		}
		for _, p := range s.Parameters {
			sig.Parameters = append(sig.Parameters, analysis.Parameter{
				Label:         parameterLabel(p.Label, s.Label),
				Documentation: markupText(p.Documentation),
			})
		}
		out.Signatures = append(out.Signatures, sig)
	}
	return out, nil
}

func parameterLabel(raw json.RawMessage, signature string) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var span [2]int
	if err := json.Unmarshal(raw, &span); err == nil && 0 <= span[0] && span[0] <= span[1] && span[1] <= len(signature) {
		return signature[span[0]:span[1]]
	}
	return ""
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || string(raw) == "null"
}

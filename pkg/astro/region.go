package astro

type Region int

const (
	RegionMarkup Region = iota
	RegionFence
	RegionFrontmatter
	RegionStartTag
	RegionTagName
	RegionEndTag
	RegionAttributeValue
	RegionExpression
	RegionScript
	RegionStyle
	RegionComment
)

var regionNames = [...]string{
	RegionMarkup:         "markup",
	RegionFence:          "fence",
	RegionFrontmatter:    "frontmatter",
	RegionStartTag:       "startTag",
	RegionTagName:        "tagName",
	RegionEndTag:         "endTag",
	RegionAttributeValue: "attributeValue",
	RegionExpression:     "expression",
	RegionScript:         "script",
	RegionStyle:          "style",
	RegionComment:        "comment",
}

func (r Region) String() string {
	if int(r) < len(regionNames) {
		return regionNames[r]
	}
	return "unknown"
}

// IsScript reports whether the region is type-checked script code.
func (r Region) IsScript() bool {
	return r == RegionFrontmatter || r == RegionExpression || r == RegionScript
}

// Context is the syntactic classification of a document offset.
type Context struct {
	Region Region
	// The enclosing opening tag, for start tag, tag name, attribute value and
	// attribute expression regions, and for script and style bodies.
	Tag *Tag
}

// Classify determines which syntactic region of the document contains offset.
// Fences take precedence over everything else, then the frontmatter body, then
// the markup.
func Classify(text []byte, fm Frontmatter, offset int) Context {
	if fm.OnFence(offset) {
		return Context{Region: RegionFence}
	}
	if fm.Contains(offset) {
		return Context{Region: RegionFrontmatter}
	}
	if fm.State != FrontmatterAbsent && offset < fm.MarkupStart {
		return Context{Region: RegionFence}
	}
	return classifySpans(scanMarkup(text, fm.MarkupStart), offset, nil)
}

func classifySpans(spans []span, offset int, owner *Tag) Context {
	for _, sp := range spans {
		if !sp.contains(offset) {
			continue
		}
		switch sp.kind {
		case spanStartTag:
			return classifyStartTag(sp, offset)
		case spanEndTag:
			return Context{Region: RegionEndTag}
		case spanComment:
			return Context{Region: RegionComment}
		case spanExpression:
			if ctx, ok := classifyNested(sp, offset); ok {
				return ctx
			}
			return Context{Region: RegionExpression, Tag: owner}
		case spanScriptBody:
			return Context{Region: RegionScript, Tag: sp.tag}
		case spanStyleBody:
			return Context{Region: RegionStyle, Tag: sp.tag}
		default:
			return Context{Region: RegionMarkup}
		}
	}
	return Context{Region: RegionMarkup}
}

func classifyStartTag(sp span, offset int) Context {
	tag := sp.tag
	if offset <= tag.NameEnd {
		return Context{Region: RegionTagName, Tag: tag}
	}
	for _, in := range sp.inner {
		if !in.contains(offset) {
			continue
		}
		if in.kind == spanAttributeValue {
			return Context{Region: RegionAttributeValue, Tag: tag}
		}
		if ctx, ok := classifyNested(in, offset); ok {
			return ctx
		}
		return Context{Region: RegionExpression, Tag: tag}
	}
	return Context{Region: RegionStartTag, Tag: tag.typingAt(offset)}
}

// classifyNested looks for JSX markup nested inside an expression.
func classifyNested(expr span, offset int) (Context, bool) {
	for _, in := range expr.inner {
		if in.contains(offset) {
			return classifySpans(expr.inner, offset, nil), true
		}
	}
	return Context{}, false
}

// contains reports whether offset is strictly inside the span. Unterminated
// constructs extend to and include their end, since the user is still typing.
func (sp span) contains(offset int) bool {
	switch sp.kind {
	case spanText:
		return offset >= sp.start && offset <= sp.end
	case spanScriptBody, spanStyleBody:
		return offset >= sp.start && offset <= sp.end
	}
	if sp.unterminated {
		return offset > sp.start && offset <= sp.end
	}
	return offset > sp.start && offset < sp.end
}

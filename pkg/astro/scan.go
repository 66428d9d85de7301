package astro

import (
	"bytes"
	"strings"
)

type spanKind int

const (
	spanText spanKind = iota
	spanStartTag
	spanEndTag
	spanComment
	spanDoctype
	spanAttributeValue
	spanExpression
	spanScriptBody
	spanStyleBody
)

// span is a flat markup construct. Start tags carry their attribute values and
// expressions in inner; expressions carry any JSX elements nested in them.
type span struct {
	kind         spanKind
	start, end   int
	tag          *Tag
	name         string // end tags only
	unterminated bool
	inner        []span
}

// Tag is an opening tag in the markup.
type Tag struct {
	Name string
	// Offset of '<', and of the byte after the tag name.
	Start, NameEnd int
	// Offset after the closing '>', or where an unterminated tag stops.
	End         int
	Attributes  []string
	Closed      bool
	SelfClosing bool

	// attribute name spans, parallel to Attributes
	attributeSpans [][2]int
}

// IsComponent reports whether the tag name follows component naming: a
// capitalized identifier or a dotted member expression.
func (t *Tag) IsComponent() bool {
	if t == nil || t.Name == "" {
		return false
	}
	c := t.Name[0]
	return (c >= 'A' && c <= 'Z') || strings.Contains(t.Name, ".")
}

// HasAttributePrefix reports whether the tag has an attribute made of prefix
// followed by a non-empty name, such as client:load for "client:".
func (t *Tag) HasAttributePrefix(prefix string) bool {
	for _, a := range t.Attributes {
		if len(a) > len(prefix) && strings.HasPrefix(a, prefix) {
			return true
		}
	}
	return false
}

// typingAt returns a copy of the tag without the attribute whose name touches
// offset. That attribute is still being typed and is not part of the tag yet.
func (t *Tag) typingAt(offset int) *Tag {
	for i, sp := range t.attributeSpans {
		if offset <= sp[0] || offset > sp[1] {
			continue
		}
		c := *t
		c.Attributes = append(append([]string{}, t.Attributes[:i]...), t.Attributes[i+1:]...)
		c.attributeSpans = append(append([][2]int{}, t.attributeSpans[:i]...), t.attributeSpans[i+1:]...)
		return &c
	}
	return t
}

var voidElements = map[string]bool{
	"area": true, "base": true, "br": true, "col": true, "embed": true,
	"hr": true, "img": true, "input": true, "link": true, "meta": true,
	"param": true, "source": true, "track": true, "wbr": true,
}

type scanner struct {
	text []byte
	pos  int
}

func scanMarkup(text []byte, start int) []span {
	s := &scanner{text: text, pos: start}
	return s.markup("", false)
}

func (s *scanner) peek(n int) byte {
	if s.pos+n < len(s.text) {
		return s.text[s.pos+n]
	}
	return 0
}

func (s *scanner) hasPrefix(p string) bool {
	return bytes.HasPrefix(s.text[s.pos:], []byte(p))
}

// markup scans text content until EOF, or, when untilClose is set, until the
// end tag matching name at nesting depth zero has been consumed.
func (s *scanner) markup(name string, untilClose bool) []span {
	var spans []span
	textStart := s.pos
	flush := func() {
		if s.pos > textStart {
			spans = append(spans, span{kind: spanText, start: textStart, end: s.pos})
		}
	}
	depth := 0
	for s.pos < len(s.text) {
		c := s.text[s.pos]
		switch {
		case c == '<' && s.hasPrefix("<!--"):
			flush()
			spans = append(spans, s.comment())
		case c == '<' && s.peek(1) == '!':
			flush()
			spans = append(spans, s.doctype())
		case c == '<' && s.peek(1) == '/':
			flush()
			end := s.endTag()
			spans = append(spans, end)
			if untilClose && end.name == name {
				if depth == 0 {
					return spans
				}
				depth--
			}
		case c == '<' && (isTagNameStart(s.peek(1)) || s.peek(1) == '>'):
			flush()
			start := s.startTag()
			spans = append(spans, start)
			tag := start.tag
			if untilClose && tag.Name == name && tag.Closed && !tag.SelfClosing {
				depth++
			}
			spans = append(spans, s.rawBody(tag)...)
		case c == '{':
			flush()
			spans = append(spans, s.expression())
		default:
			s.pos++
			continue
		}
		textStart = s.pos
	}
	flush()
	return spans
}

func (s *scanner) comment() span {
	sp := span{kind: spanComment, start: s.pos}
	if idx := bytes.Index(s.text[s.pos+4:], []byte("-->")); idx != -1 {
		s.pos += 4 + idx + 3
	} else {
		s.pos = len(s.text)
		sp.unterminated = true
	}
	sp.end = s.pos
	return sp
}

func (s *scanner) doctype() span {
	sp := span{kind: spanDoctype, start: s.pos}
	if idx := bytes.IndexByte(s.text[s.pos:], '>'); idx != -1 {
		s.pos += idx + 1
	} else {
		s.pos = len(s.text)
	}
	sp.end = s.pos
	return sp
}

func (s *scanner) endTag() span {
	sp := span{kind: spanEndTag, start: s.pos}
	s.pos += 2
	nameStart := s.pos
	for s.pos < len(s.text) && isTagNameByte(s.text[s.pos]) {
		s.pos++
	}
	sp.name = string(s.text[nameStart:s.pos])
	for s.pos < len(s.text) {
		c := s.text[s.pos]
		if c == '>' {
			s.pos++
			break
		}
		if c == '<' {
			sp.unterminated = true
			break
		}
		s.pos++
	}
	sp.end = s.pos
	return sp
}

func (s *scanner) startTag() span {
	sp := span{kind: spanStartTag, start: s.pos}
	s.pos++
	nameStart := s.pos
	for s.pos < len(s.text) && isTagNameByte(s.text[s.pos]) {
		s.pos++
	}
	tag := &Tag{
		Name:    string(s.text[nameStart:s.pos]),
		Start:   sp.start,
		NameEnd: s.pos,
	}
	sp.tag = tag
loop:
	for s.pos < len(s.text) {
		c := s.text[s.pos]
		switch {
		case c == '>':
			s.pos++
			tag.Closed = true
			break loop
		case c == '/' && s.peek(1) == '>':
			s.pos += 2
			tag.Closed = true
			tag.SelfClosing = true
			break loop
		case c == '<':
			break loop
		case c == '"' || c == '\'' || c == '`':
			start := s.pos
			terminated := s.skipString(c)
			sp.inner = append(sp.inner, span{kind: spanAttributeValue, start: start, end: s.pos, unterminated: !terminated})
		case c == '{':
			sp.inner = append(sp.inner, s.expression())
		case isAttributeNameByte(c):
			start := s.pos
			for s.pos < len(s.text) && isAttributeNameByte(s.text[s.pos]) {
				s.pos++
			}
			tag.Attributes = append(tag.Attributes, string(s.text[start:s.pos]))
			tag.attributeSpans = append(tag.attributeSpans, [2]int{start, s.pos})
		default:
			s.pos++
		}
	}
	tag.End = s.pos
	sp.end = s.pos
	sp.unterminated = !tag.Closed
	return sp
}

// rawBody consumes the contents of script and style elements, whose text is
// not markup.
func (s *scanner) rawBody(tag *Tag) []span {
	if !tag.Closed || tag.SelfClosing {
		return nil
	}
	var kind spanKind
	switch strings.ToLower(tag.Name) {
	case "script":
		kind = spanScriptBody
	case "style":
		kind = spanStyleBody
	default:
		return nil
	}
	closing := []byte("</" + strings.ToLower(tag.Name))
	sp := span{kind: kind, start: s.pos, tag: tag}
	if idx := bytes.Index(bytes.ToLower(s.text[s.pos:]), closing); idx != -1 {
		s.pos += idx
	} else {
		s.pos = len(s.text)
		sp.unterminated = true
	}
	sp.end = s.pos
	return []span{sp}
}

func (s *scanner) expression() span {
	sp := span{kind: spanExpression, start: s.pos}
	s.pos++
	depth := 1
	prev := byte('{')
	for s.pos < len(s.text) {
		c := s.text[s.pos]
		switch {
		case c == '"' || c == '\'' || c == '`':
			s.skipString(c)
			prev = c
			continue
		case c == '/' && s.peek(1) == '/':
			if idx := bytes.IndexByte(s.text[s.pos:], '\n'); idx != -1 {
				s.pos += idx
			} else {
				s.pos = len(s.text)
			}
			continue
		case c == '/' && s.peek(1) == '*':
			if idx := bytes.Index(s.text[s.pos+2:], []byte("*/")); idx != -1 {
				s.pos += 2 + idx + 2
			} else {
				s.pos = len(s.text)
			}
			continue
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				s.pos++
				sp.end = s.pos
				return sp
			}
		case c == '<' && (isTagNameStart(s.peek(1)) || s.peek(1) == '>') && s.jsxAllowedAfter(prev):
			sp.inner = append(sp.inner, s.element()...)
			prev = '>'
			continue
		}
		if !isSpace(c) {
			prev = c
		}
		s.pos++
	}
	sp.end = s.pos
	sp.unterminated = true
	return sp
}

// element scans a JSX element nested in an expression, including its children.
func (s *scanner) element() []span {
	start := s.startTag()
	out := []span{start}
	tag := start.tag
	if !tag.Closed || tag.SelfClosing || voidElements[tag.Name] {
		return out
	}
	if body := s.rawBody(tag); body != nil {
		return append(out, body...)
	}
	return append(out, s.markup(tag.Name, true)...)
}

// jsxAllowedAfter reports whether a '<' following prev starts a JSX element
// rather than a comparison or type argument list.
func (s *scanner) jsxAllowedAfter(prev byte) bool {
	switch prev {
	case '(', ',', '=', '?', ':', '&', '|', '{', '[', ';', '!', '>':
		return true
	}
	if isIdentByte(prev) {
		before := bytes.TrimRight(s.text[:s.pos], " \t\r\n")
		if bytes.HasSuffix(before, []byte("return")) {
			rest := before[:len(before)-len("return")]
			return len(rest) == 0 || !isIdentByte(rest[len(rest)-1])
		}
	}
	return false
}

// skipString advances past a quoted string starting at the current position.
// Non-template strings stop at a line break.
func (s *scanner) skipString(q byte) (terminated bool) {
	s.pos++
	for s.pos < len(s.text) {
		c := s.text[s.pos]
		switch {
		case c == '\\':
			s.pos += 2
			continue
		case c == q:
			s.pos++
			return true
		case c == '\n' && q != '`':
			return false
		}
		s.pos++
	}
	if s.pos > len(s.text) {
		s.pos = len(s.text)
	}
	return false
}

func isTagNameStart(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isTagNameByte(c byte) bool {
	return isIdentByte(c) || c == '-' || c == '.' || c == ':'
}

func isIdentByte(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '_' || c == '$'
}

func isAttributeNameByte(c byte) bool {
	if c <= ' ' {
		return false
	}
	switch c {
	case '"', '\'', '`', '<', '>', '/', '=', '{', '}':
		return false
	}
	return true
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

// Block is the raw body of a script or style element.
type Block struct {
	Tag        *Tag
	Start, End int
}

// RawBlocks returns the script and style bodies of the markup in document order.
func RawBlocks(text []byte, fm Frontmatter) []Block {
	var blocks []Block
	var walk func(spans []span)
	walk = func(spans []span) {
		for _, sp := range spans {
			switch sp.kind {
			case spanScriptBody, spanStyleBody:
				blocks = append(blocks, Block{Tag: sp.tag, Start: sp.start, End: sp.end})
			case spanStartTag, spanExpression:
				walk(sp.inner)
			}
		}
	}
	walk(scanMarkup(text, fm.MarkupStart))
	return blocks
}

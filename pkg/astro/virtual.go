package astro

import (
	"bytes"
	"sort"

	"github.com/kralicky/tools-lite/gopls/pkg/protocol"
)

const (
	// VirtualExtension is appended to a document path to name its virtual file.
	VirtualExtension = ".tsx"

	// RenderFunctionName is the synthesized function wrapping the markup.
	RenderFunctionName = "__astro_render"
	// PropsTypeName is the synthesized props alias inside the render function.
	PropsTypeName = "__AstroProps"
)

const (
	renderPrologue = "\n\nexport default function " + RenderFunctionName + "(Astro: Readonly<import('astro').AstroGlobal<" + PropsTypeName + ">>) {\nreturn <>\n"
	renderEpilogue = "\n</>;\n}\n"
	propsFallback  = "\ntype " + PropsTypeName + " = Record<string, any>;\n"
	propsAlias     = "\ntype " + PropsTypeName + " = Props;\n"
	scriptPrologue = "\n// <script>\n"
)

// SynthesizedIdentifiers lists the names the generator introduces. They are not
// part of the user's program.
var SynthesizedIdentifiers = []string{RenderFunctionName, PropsTypeName}

// segment maps [srcStart, srcEnd) in the document onto [genStart, genStart+len)
// in the virtual file. Lengths are always equal.
type segment struct {
	srcStart, srcEnd int
	genStart         int
}

func (s segment) genEnd() int {
	return s.genStart + (s.srcEnd - s.srcStart)
}

// VirtualFile is the TSX rendition of a document: the frontmatter becomes the
// module prologue and the markup the JSX body of a default-export render
// function. Script bodies are hoisted to the end of the module.
type VirtualFile struct {
	URI     protocol.DocumentURI
	Content []byte
	Mapper  *protocol.Mapper

	segments []segment // ordered by genStart
}

// VirtualURI names the virtual file generated for a document.
func VirtualURI(uri protocol.DocumentURI) protocol.DocumentURI {
	return protocol.DocumentURI(string(uri) + VirtualExtension)
}

// Generate builds the virtual file for a document's text.
func Generate(uri protocol.DocumentURI, text []byte, fm Frontmatter) *VirtualFile {
	var buf bytes.Buffer
	vf := &VirtualFile{URI: VirtualURI(uri)}
	emit := func(srcStart, srcEnd int, content []byte) {
		if srcEnd <= srcStart {
			return
		}
		vf.segments = append(vf.segments, segment{srcStart: srcStart, srcEnd: srcEnd, genStart: buf.Len()})
		buf.Write(content)
	}

	var frontmatter []byte
	if fm.State != FrontmatterAbsent {
		frontmatter = text[fm.BodyStart:fm.BodyEnd]
		emit(fm.BodyStart, fm.BodyEnd, frontmatter)
	}
	if declaresProps(frontmatter) {
		buf.WriteString(propsAlias)
	} else {
		buf.WriteString(propsFallback)
	}

	buf.WriteString(renderPrologue)
	var scripts []span
	if fm.MarkupStart < len(text) {
		spans := scanMarkup(text, fm.MarkupStart)
		markup := bytes.Clone(text[fm.MarkupStart:])
		blankSpans(markup, fm.MarkupStart, spans, &scripts)
		emit(fm.MarkupStart, len(text), markup)
	}
	buf.WriteString(renderEpilogue)

	for _, sc := range scripts {
		buf.WriteString(scriptPrologue)
		emit(sc.start, sc.end, text[sc.start:sc.end])
		buf.WriteByte('\n')
	}

	vf.Content = buf.Bytes()
	vf.Mapper = protocol.NewMapper(vf.URI, vf.Content)
	return vf
}

// blankSpans replaces constructs that are not valid JSX with same-length
// filler so that offsets stay aligned. Script bodies are collected for hoisting.
func blankSpans(markup []byte, base int, spans []span, scripts *[]span) {
	for _, sp := range spans {
		region := markup[sp.start-base : sp.end-base]
		switch sp.kind {
		case spanComment:
			fill(region, ' ')
			if len(region) >= len("<!---->") && !sp.unterminated {
				copy(region, "{/*")
				copy(region[len(region)-3:], "*/}")
			}
		case spanDoctype, spanStyleBody:
			fill(region, ' ')
		case spanScriptBody:
			*scripts = append(*scripts, sp)
			fill(region, ' ')
		case spanExpression:
			blankSpans(markup, base, sp.inner, scripts)
		case spanStartTag:
			for _, in := range sp.inner {
				if in.kind == spanExpression {
					blankSpans(markup, base, in.inner, scripts)
				}
			}
		}
	}
}

func fill(b []byte, c byte) {
	for i := range b {
		if b[i] != '\n' {
			b[i] = c
		}
	}
}

func declaresProps(frontmatter []byte) bool {
	for _, decl := range [][]byte{[]byte("interface Props"), []byte("type Props")} {
		if idx := bytes.Index(frontmatter, decl); idx != -1 {
			end := idx + len(decl)
			if end == len(frontmatter) || !isIdentByte(frontmatter[end]) {
				return true
			}
		}
	}
	return false
}

// ToGenerated translates a document offset into the virtual file. Hoisted
// script bodies overlap the markup segment; the narrowest segment wins.
func (vf *VirtualFile) ToGenerated(offset int) (int, bool) {
	best := -1
	for i, s := range vf.segments {
		if offset < s.srcStart || offset > s.srcEnd {
			continue
		}
		if best == -1 || s.srcEnd-s.srcStart < vf.segments[best].srcEnd-vf.segments[best].srcStart {
			best = i
		}
	}
	if best == -1 {
		return 0, false
	}
	s := vf.segments[best]
	return s.genStart + (offset - s.srcStart), true
}

// GeneratedOffset converts a document position into a virtual file offset.
func (vf *VirtualFile) GeneratedOffset(source *protocol.Mapper, pos protocol.Position) (int, bool) {
	offset, err := source.PositionOffset(pos)
	if err != nil {
		return 0, false
	}
	return vf.ToGenerated(offset)
}

// SourceRange converts a virtual file range into a document range.
func (vf *VirtualFile) SourceRange(source *protocol.Mapper, rng protocol.Range) (protocol.Range, bool) {
	start, end, err := vf.Mapper.RangeOffsets(rng)
	if err != nil {
		return protocol.Range{}, false
	}
	s, e, ok := vf.ToSourceRange(start, end)
	if !ok {
		return protocol.Range{}, false
	}
	out, err := source.OffsetRange(s, e)
	if err != nil {
		return protocol.Range{}, false
	}
	return out, true
}

// ToSource translates a virtual file offset back into the document.
func (vf *VirtualFile) ToSource(offset int) (int, bool) {
	i := sort.Search(len(vf.segments), func(i int) bool {
		return vf.segments[i].genEnd() >= offset
	})
	if i < len(vf.segments) {
		s := vf.segments[i]
		if offset >= s.genStart && offset <= s.genEnd() {
			return s.srcStart + (offset - s.genStart), true
		}
	}
	return 0, false
}

// ToSourceRange translates a virtual file span. Both ends must map into the
// same contiguous source region.
func (vf *VirtualFile) ToSourceRange(start, end int) (int, int, bool) {
	s, ok := vf.ToSource(start)
	if !ok {
		return 0, 0, false
	}
	e, ok := vf.ToSource(end)
	if !ok || e < s {
		return 0, 0, false
	}
	return s, e, true
}

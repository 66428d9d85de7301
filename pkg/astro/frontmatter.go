package astro

import "bytes"

const FenceMarker = "---"

type FrontmatterState int

const (
	FrontmatterAbsent FrontmatterState = iota
	FrontmatterOpen
	FrontmatterClosed
)

func (s FrontmatterState) String() string {
	switch s {
	case FrontmatterAbsent:
		return "absent"
	case FrontmatterOpen:
		return "open"
	case FrontmatterClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Frontmatter describes the fenced script block at the top of a document. All
// offsets are byte offsets into the document text. Fence spans cover only the
// three dashes; Body spans the lines between the fences.
type Frontmatter struct {
	State FrontmatterState

	OpenStart, OpenEnd   int
	CloseStart, CloseEnd int
	BodyStart, BodyEnd   int

	// Offset of the first byte of markup following the frontmatter.
	MarkupStart int
}

// Contains reports whether offset falls inside the frontmatter body.
func (f Frontmatter) Contains(offset int) bool {
	if f.State == FrontmatterAbsent {
		return false
	}
	return offset >= f.BodyStart && offset <= f.BodyEnd
}

// OnFence reports whether offset touches one of the fence markers.
func (f Frontmatter) OnFence(offset int) bool {
	switch f.State {
	case FrontmatterOpen:
		return offset >= f.OpenStart && offset <= f.OpenEnd
	case FrontmatterClosed:
		return (offset >= f.OpenStart && offset <= f.OpenEnd) ||
			(offset >= f.CloseStart && offset <= f.CloseEnd)
	}
	return false
}

func ParseFrontmatter(text []byte) Frontmatter {
	fm := Frontmatter{}
	lines := splitLines(text)

	open := -1
	for i, l := range lines {
		trimmed := bytes.TrimSpace(text[l.start:l.end])
		if len(trimmed) == 0 {
			continue
		}
		if string(trimmed) == FenceMarker {
			open = i
		}
		break
	}
	if open == -1 {
		return fm
	}

	fm.State = FrontmatterOpen
	fm.OpenStart = lines[open].start + bytes.Index(text[lines[open].start:lines[open].end], []byte(FenceMarker))
	fm.OpenEnd = fm.OpenStart + len(FenceMarker)
	fm.BodyStart = lines[open].next
	fm.BodyEnd = len(text)
	fm.MarkupStart = len(text)

	for _, l := range lines[open+1:] {
		if string(bytes.TrimSpace(text[l.start:l.end])) != FenceMarker {
			continue
		}
		fm.State = FrontmatterClosed
		fm.BodyEnd = l.start
		fm.CloseStart = l.start + bytes.Index(text[l.start:l.end], []byte(FenceMarker))
		fm.CloseEnd = fm.CloseStart + len(FenceMarker)
		fm.MarkupStart = l.next
		break
	}
	return fm
}

type lineSpan struct {
	start int // first byte of the line
	end   int // byte before the line terminator
	next  int // first byte of the following line
}

func splitLines(text []byte) []lineSpan {
	var lines []lineSpan
	start := 0
	for start <= len(text) {
		idx := bytes.IndexByte(text[start:], '\n')
		if idx == -1 {
			end := len(text)
			lines = append(lines, lineSpan{start: start, end: trimCR(text, start, end), next: end})
			break
		}
		end := start + idx
		lines = append(lines, lineSpan{start: start, end: trimCR(text, start, end), next: end + 1})
		start = end + 1
	}
	return lines
}

func trimCR(text []byte, start, end int) int {
	if end > start && text[end-1] == '\r' {
		return end - 1
	}
	return end
}

// lineStartOffset returns the offset of the first byte of the line containing offset.
func lineStartOffset(text []byte, offset int) int {
	if offset > len(text) {
		offset = len(text)
	}
	return bytes.LastIndexByte(text[:offset], '\n') + 1
}

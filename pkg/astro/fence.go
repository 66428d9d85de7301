package astro

import "bytes"

type FenceKind int

const (
	FenceNone FenceKind = iota
	// The document has no frontmatter and the cursor is at its very start.
	FenceOpen
	// The frontmatter is open and the cursor is on a line past the opening fence.
	FenceClose
)

// DetectFence decides whether a frontmatter fence can be completed at offset.
// The text typed on the cursor line must be optional indentation followed by at
// most three dashes. replaceStart is the offset of the first typed dash, or
// offset itself when no dash was typed yet; it never exceeds offset.
func DetectFence(text []byte, offset int) (kind FenceKind, replaceStart int) {
	if offset < 0 || offset > len(text) {
		return FenceNone, offset
	}
	lineStart := lineStartOffset(text, offset)
	prefix := text[lineStart:offset]
	indent := len(prefix) - len(bytes.TrimLeft(prefix, " \t"))
	typed := prefix[indent:]
	if len(typed) > len(FenceMarker) || len(bytes.Trim(typed, "-")) != 0 {
		return FenceNone, offset
	}
	replaceStart = lineStart + indent

	fm := ParseFrontmatter(text)
	switch fm.State {
	case FrontmatterAbsent:
		if len(bytes.TrimSpace(text[:lineStart])) == 0 {
			return FenceOpen, replaceStart
		}
	case FrontmatterOpen:
		if lineStart >= fm.BodyStart && lineStart > fm.OpenEnd {
			return FenceClose, replaceStart
		}
		// The only fence is the one being typed on this line: offer the whole block.
		if fm.OpenStart == replaceStart && len(bytes.TrimSpace(text[fm.OpenEnd:])) == 0 {
			return FenceOpen, replaceStart
		}
	}
	return FenceNone, offset
}

package astro

import (
	"sync"

	"github.com/kralicky/tools-lite/gopls/pkg/protocol"
)

const LanguageID = "astro"

// Document is an immutable snapshot of an astro file at one version. Edits
// produce a new Document; nothing here is mutated after construction except
// the lazily generated virtual file.
type Document struct {
	URI     protocol.DocumentURI
	Version int32
	Mapper  *protocol.Mapper

	Frontmatter Frontmatter
	// Imports declared in the frontmatter. Specifier spans are document offsets.
	Imports []Import

	virtualOnce sync.Once
	virtual     *VirtualFile
}

func NewDocument(uri protocol.DocumentURI, version int32, text []byte) *Document {
	fm := ParseFrontmatter(text)
	doc := &Document{
		URI:         uri,
		Version:     version,
		Mapper:      protocol.NewMapper(uri, text),
		Frontmatter: fm,
	}
	if fm.State != FrontmatterAbsent {
		imports := ParseImports(text[fm.BodyStart:fm.BodyEnd])
		for i := range imports {
			imports[i].SpecifierStart += fm.BodyStart
			imports[i].SpecifierEnd += fm.BodyStart
		}
		doc.Imports = imports
	}
	return doc
}

func (d *Document) Text() []byte {
	return d.Mapper.Content
}

// Path returns the filesystem path of the document, or the raw URI when it is
// not a file URI.
func (d *Document) Path() string {
	if d.URI.IsFile() {
		return d.URI.Path()
	}
	return string(d.URI)
}

// Virtual returns the TSX rendition of the document, generating it on first use.
func (d *Document) Virtual() *VirtualFile {
	d.virtualOnce.Do(func() {
		d.virtual = Generate(d.URI, d.Text(), d.Frontmatter)
	})
	return d.virtual
}

// Classify returns the syntactic context at a document offset.
func (d *Document) Classify(offset int) Context {
	return Classify(d.Text(), d.Frontmatter, offset)
}

// Blocks returns the script and style bodies of the document.
func (d *Document) Blocks() []Block {
	return RawBlocks(d.Text(), d.Frontmatter)
}

package lsp

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/kralicky/astrols/pkg/astro"
	"github.com/kralicky/tools-lite/gopls/pkg/protocol"
	"github.com/kralicky/tools-lite/pkg/diff"
	"github.com/kralicky/tools-lite/pkg/jsonrpc2"
)

// Documents holds the open documents. Each edit replaces the stored snapshot;
// snapshots themselves are never modified.
type Documents struct {
	mu    sync.RWMutex
	docs  map[protocol.DocumentURI]*astro.Document
	watch *snapshotWatch
}

func NewDocuments() *Documents {
	return &Documents{
		docs:  make(map[protocol.DocumentURI]*astro.Document),
		watch: newSnapshotWatch(),
	}
}

func (d *Documents) Open(uri protocol.DocumentURI, version int32, text []byte) *astro.Document {
	doc := astro.NewDocument(uri, version, text)
	d.mu.Lock()
	d.docs[uri] = doc
	d.watch.publish(doc)
	d.mu.Unlock()
	return doc
}

func (d *Documents) Change(ctx context.Context, id protocol.VersionedTextDocumentIdentifier, changes []protocol.TextDocumentContentChangeEvent) (*astro.Document, error) {
	text, err := d.ChangedText(ctx, id, changes)
	if err != nil {
		return nil, err
	}
	return d.Open(id.URI, id.Version, text), nil
}

func (d *Documents) ChangedText(ctx context.Context, id protocol.VersionedTextDocumentIdentifier, changes []protocol.TextDocumentContentChangeEvent) ([]byte, error) {
	if len(changes) == 0 {
		return nil, fmt.Errorf("%w: no content changes provided", jsonrpc2.ErrInternal)
	}

	// Check if the client sent the full content of the file.
	// We accept a full content change even if the server expected incremental changes.
	if len(changes) == 1 && changes[0].Range == nil && changes[0].RangeLength == 0 {
		return []byte(changes[0].Text), nil
	}

	doc, ok := d.Get(id.URI)
	if !ok {
		return nil, fmt.Errorf("%w: document %s is not open", jsonrpc2.ErrInvalidParams, id.URI)
	}
	diffs, err := contentChangeEventsToDiffEdits(doc.Mapper, changes)
	if err != nil {
		return nil, err
	}
	return diff.ApplyBytes(doc.Text(), diffs)
}

func contentChangeEventsToDiffEdits(mapper *protocol.Mapper, changes []protocol.TextDocumentContentChangeEvent) ([]diff.Edit, error) {
	var edits []protocol.TextEdit
	for _, change := range changes {
		if change.Range == nil {
			return nil, fmt.Errorf("%w: full content change mixed with incremental changes", jsonrpc2.ErrInvalidParams)
		}
		edits = append(edits, protocol.TextEdit{
			Range:   *change.Range,
			NewText: change.Text,
		})
	}

	return protocol.EditsToDiffEdits(mapper, edits)
}

func (d *Documents) Close(uri protocol.DocumentURI) {
	d.mu.Lock()
	delete(d.docs, uri)
	d.watch.retire(uri)
	d.mu.Unlock()
}

func (d *Documents) Get(uri protocol.DocumentURI) (*astro.Document, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	doc, ok := d.docs[uri]
	return doc, ok
}

// All returns the open documents ordered by URI.
func (d *Documents) All() []*astro.Document {
	d.mu.RLock()
	docs := make([]*astro.Document, 0, len(d.docs))
	for _, doc := range d.docs {
		docs = append(docs, doc)
	}
	d.mu.RUnlock()
	sort.Slice(docs, func(i, j int) bool { return docs[i].URI < docs[j].URI })
	return docs
}

// IsCurrent reports whether doc is still the latest snapshot of its URI.
func (d *Documents) IsCurrent(doc *astro.Document) bool {
	latest, ok := d.Get(doc.URI)
	return ok && latest == doc
}

// AwaitSnapshot returns the snapshot of uri at version or later, waiting up to
// two seconds for a pending edit to arrive.
func (d *Documents) AwaitSnapshot(ctx context.Context, uri protocol.DocumentURI, version int32) (*astro.Document, error) {
	d.mu.RLock()
	if doc, ok := d.docs[uri]; ok && doc.Version >= version {
		d.mu.RUnlock()
		return doc, nil
	}
	ready := d.watch.add(uri, version)
	d.mu.RUnlock()

	ctx, ca := context.WithTimeout(ctx, 2*time.Second)
	defer ca()
	select {
	case <-ctx.Done():
		d.watch.remove(uri, ready)
		return nil, ctx.Err()
	case doc := <-ready:
		if doc == nil {
			return nil, fmt.Errorf("%w: document %s was closed before version %d", jsonrpc2.ErrInvalidParams, uri, version)
		}
		return doc, nil
	}
}

// ReadFile returns the contents of an open document at path, falling back to
// the file on disk.
func (d *Documents) ReadFile(_ context.Context, path string) ([]byte, error) {
	if doc, ok := d.Get(protocol.URIFromPath(path)); ok {
		return doc.Text(), nil
	}
	return os.ReadFile(path)
}

func uriPath(uri protocol.DocumentURI) string {
	if uri.IsFile() {
		return uri.Path()
	}
	return string(uri)
}

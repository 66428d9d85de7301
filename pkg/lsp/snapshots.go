package lsp

import (
	"sync"

	"github.com/kralicky/astrols/pkg/astro"
	"github.com/kralicky/tools-lite/gopls/pkg/protocol"
)

// snapshotWatch holds callers waiting for an .astro document to reach a
// version the client has announced but not yet sent. Each waiter receives the
// first snapshot at or past its version, or nil if the document closes first.
type snapshotWatch struct {
	mu      sync.Mutex
	waiters map[protocol.DocumentURI][]snapshotWaiter
}

type snapshotWaiter struct {
	version int32
	ready   chan *astro.Document
}

func newSnapshotWatch() *snapshotWatch {
	return &snapshotWatch{
		waiters: make(map[protocol.DocumentURI][]snapshotWaiter),
	}
}

func (w *snapshotWatch) add(uri protocol.DocumentURI, version int32) <-chan *astro.Document {
	ready := make(chan *astro.Document, 1)
	w.mu.Lock()
	w.waiters[uri] = append(w.waiters[uri], snapshotWaiter{version: version, ready: ready})
	w.mu.Unlock()
	return ready
}

func (w *snapshotWatch) remove(uri protocol.DocumentURI, ready <-chan *astro.Document) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.keep(uri, func(sw snapshotWaiter) bool { return sw.ready != ready })
}

// publish hands doc to every waiter whose version it satisfies.
func (w *snapshotWatch) publish(doc *astro.Document) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.keep(doc.URI, func(sw snapshotWaiter) bool {
		if sw.version > doc.Version {
			return true
		}
		sw.ready <- doc
		return false
	})
}

// retire releases every waiter of a closed document.
func (w *snapshotWatch) retire(uri protocol.DocumentURI) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, sw := range w.waiters[uri] {
		sw.ready <- nil
	}
	delete(w.waiters, uri)
}

func (w *snapshotWatch) keep(uri protocol.DocumentURI, pred func(snapshotWaiter) bool) {
	remaining := w.waiters[uri][:0]
	for _, sw := range w.waiters[uri] {
		if pred(sw) {
			remaining = append(remaining, sw)
		}
	}
	if len(remaining) == 0 {
		delete(w.waiters, uri)
	} else {
		w.waiters[uri] = remaining
	}
}

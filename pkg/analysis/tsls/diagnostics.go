package tsls

import (
	"context"
	"sync"

	"github.com/kralicky/tools-lite/gopls/pkg/protocol"
)

// diagnosticStore keeps the latest diagnostics the engine published for each
// artifact. Every publish bumps a per-URI sequence number so callers can wait
// for a report newer than the one they last saw.
type diagnosticStore struct {
	mu      sync.Mutex
	results map[protocol.DocumentURI]published
	waiters map[protocol.DocumentURI][]chan struct{}
}

type published struct {
	seq         uint64
	version     int32
	diagnostics []protocol.Diagnostic
}

func newDiagnosticStore() *diagnosticStore {
	return &diagnosticStore{
		results: make(map[protocol.DocumentURI]published),
		waiters: make(map[protocol.DocumentURI][]chan struct{}),
	}
}

func (s *diagnosticStore) publish(uri protocol.DocumentURI, version int32, diagnostics []protocol.Diagnostic) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.results[uri]
	s.results[uri] = published{seq: prev.seq + 1, version: version, diagnostics: diagnostics}
	for _, w := range s.waiters[uri] {
		close(w)
	}
	delete(s.waiters, uri)
}

func (s *diagnosticStore) seq(uri protocol.DocumentURI) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.results[uri].seq
}

func (s *diagnosticStore) has(uri protocol.DocumentURI) bool {
	return s.seq(uri) > 0
}

func (s *diagnosticStore) get(uri protocol.DocumentURI) []protocol.Diagnostic {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.results[uri].diagnostics
}

func (s *diagnosticStore) forget(uri protocol.DocumentURI) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.results, uri)
	for _, w := range s.waiters[uri] {
		close(w)
	}
	delete(s.waiters, uri)
}

// wait blocks until diagnostics newer than seq are published for uri, then
// returns them. When ctx expires first, the latest known diagnostics are
// returned along with the context error.
func (s *diagnosticStore) wait(ctx context.Context, uri protocol.DocumentURI, seq uint64) ([]protocol.Diagnostic, error) {
	for {
		s.mu.Lock()
		current := s.results[uri]
		if current.seq > seq {
			s.mu.Unlock()
			return current.diagnostics, nil
		}
		w := make(chan struct{})
		s.waiters[uri] = append(s.waiters[uri], w)
		s.mu.Unlock()

		select {
		case <-ctx.Done():
			return s.get(uri), ctx.Err()
		case <-w:
		}
	}
}

package lsp

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/kralicky/astrols/pkg/analysis"
	"github.com/kralicky/astrols/pkg/astro"
	"github.com/kralicky/tools-lite/gopls/pkg/protocol"
)

const (
	sourceAstro      = "astro"
	sourceTypeScript = "ts"
)

// Diagnose computes the diagnostics of a document: structural problems found
// by the parser and engine diagnostics mapped back into the document.
// Engine diagnostics that only touch synthesized code are dropped.
func Diagnose(ctx context.Context, svc analysis.Service, doc *astro.Document, settings Settings) []protocol.Diagnostic {
	diagnostics := []protocol.Diagnostic{}
	if settings.IsEnabled(NamespaceAstro, FeatureDiagnostics) {
		diagnostics = append(diagnostics, structuralDiagnostics(doc)...)
	}
	if !settings.IsEnabled(NamespaceTypeScript, FeatureDiagnostics) {
		return diagnostics
	}
	problems, _ := analysis.Guard(svc).Diagnostics(ctx, documentArtifact(doc))
	for _, p := range problems {
		rng, ok := sourceRange(doc, p.Start, p.End)
		if !ok {
			slog.Debug("dropping unmappable diagnostic", "uri", doc.URI, "message", p.Message)
			continue
		}
		d := protocol.Diagnostic{
			Range:    rng,
			Severity: protocol.DiagnosticSeverity(p.Severity),
			Source:   sourceTypeScript,
			Message:  p.Message,
		}
		if p.Code != "" {
			d.Code = p.Code
		}
		diagnostics = append(diagnostics, d)
	}
	return diagnostics
}

func structuralDiagnostics(doc *astro.Document) []protocol.Diagnostic {
	fm := doc.Frontmatter
	if fm.State != astro.FrontmatterOpen {
		return nil
	}
	rng, err := doc.Mapper.OffsetRange(fm.OpenStart, fm.OpenEnd)
	if err != nil {
		return nil
	}
	return []protocol.Diagnostic{{
		Range:    rng,
		Severity: protocol.SeverityError,
		Source:   sourceAstro,
		Message:  "Frontmatter is missing its closing " + astro.FenceMarker + " fence",
	}}
}

// publishDiagnostics sends the diagnostics of doc unless a newer version
// arrived while they were computed.
func (s *Server) publishDiagnostics(ctx context.Context, doc *astro.Document) {
	svc, _, settings, err := s.state()
	if err != nil {
		return
	}
	if !s.docs.IsCurrent(doc) {
		slog.Debug("skipping diagnostics of a superseded version", "uri", doc.URI, "version", doc.Version)
		return
	}
	diagnostics := Diagnose(ctx, svc, doc, settings)
	if !s.docs.IsCurrent(doc) {
		slog.Debug("discarding stale diagnostics", "uri", doc.URI, "version", doc.Version)
		return
	}
	if err := s.client.PublishDiagnostics(ctx, &protocol.PublishDiagnosticsParams{
		URI:         doc.URI,
		Version:     doc.Version,
		Diagnostics: diagnostics,
	}); err != nil {
		slog.Warn("failed to publish diagnostics", "uri", doc.URI, "error", err)
	}
}

// refreshDiagnostics republishes diagnostics for every open document.
func (s *Server) refreshDiagnostics(ctx context.Context) {
	var eg errgroup.Group
	eg.SetLimit(4)
	for _, doc := range s.docs.All() {
		eg.Go(func() error {
			s.publishDiagnostics(ctx, doc)
			return nil
		})
	}
	eg.Wait()
}

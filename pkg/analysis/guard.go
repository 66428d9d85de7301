package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/kralicky/tools-lite/gopls/pkg/protocol"
)

// Guard wraps a Service so that engine failures never escape: errors and
// panics are logged and turned into empty results. A resolution failure is
// reported as an empty path.
func Guard(svc Service) Service {
	if g, ok := svc.(*guarded); ok {
		return g
	}
	return &guarded{svc: svc}
}

type guarded struct {
	svc Service
}

func absorb(method string, err *error) {
	if r := recover(); r != nil {
		*err = fmt.Errorf("panic: %v", r)
	}
	if *err == nil {
		return
	}
	if errors.Is(*err, ErrNotFound) || errors.Is(*err, ErrStale) || errors.Is(*err, context.Canceled) {
		slog.Debug("analysis request returned no result", "method", method, "error", *err)
	} else {
		slog.Warn("analysis request failed", "method", method, "error", *err)
	}
	*err = nil
}

func (g *guarded) CompletionsAtPosition(ctx context.Context, artifact Artifact, offset int) (entries []Entry, err error) {
	defer absorb("completionsAtPosition", &err)
	return g.svc.CompletionsAtPosition(ctx, artifact, offset)
}

func (g *guarded) QuickInfo(ctx context.Context, artifact Artifact, offset int) (info *QuickInfo, err error) {
	defer absorb("quickInfo", &err)
	return g.svc.QuickInfo(ctx, artifact, offset)
}

func (g *guarded) Definition(ctx context.Context, artifact Artifact, offset int) (locations []protocol.Location, err error) {
	defer absorb("definition", &err)
	return g.svc.Definition(ctx, artifact, offset)
}

func (g *guarded) TypeDefinition(ctx context.Context, artifact Artifact, offset int) (locations []protocol.Location, err error) {
	defer absorb("typeDefinition", &err)
	return g.svc.TypeDefinition(ctx, artifact, offset)
}

func (g *guarded) References(ctx context.Context, artifact Artifact, offset int) (locations []protocol.Location, err error) {
	defer absorb("references", &err)
	return g.svc.References(ctx, artifact, offset)
}

func (g *guarded) DocumentSymbols(ctx context.Context, artifact Artifact) (symbols []Symbol, err error) {
	defer absorb("documentSymbols", &err)
	return g.svc.DocumentSymbols(ctx, artifact)
}

func (g *guarded) SignatureHelp(ctx context.Context, artifact Artifact, offset int) (help *SignatureHelp, err error) {
	defer absorb("signatureHelp", &err)
	return g.svc.SignatureHelp(ctx, artifact, offset)
}

func (g *guarded) Diagnostics(ctx context.Context, artifact Artifact) (diagnostics []Diagnostic, err error) {
	defer absorb("diagnostics", &err)
	return g.svc.Diagnostics(ctx, artifact)
}

func (g *guarded) ResolveModule(ctx context.Context, importer string, specifier string) (path string, err error) {
	defer absorb("resolveModule", &err)
	return g.svc.ResolveModule(ctx, importer, specifier)
}

func (g *guarded) Forget(ctx context.Context, uri protocol.DocumentURI) (err error) {
	defer absorb("forget", &err)
	return g.svc.Forget(ctx, uri)
}

// Unwrap returns the service a Guard wraps, or svc itself.
func Unwrap(svc Service) Service {
	if g, ok := svc.(*guarded); ok {
		return g.svc
	}
	return svc
}

package analysis_test

import (
	"context"
	"errors"
	"testing"

	"github.com/kralicky/astrols/pkg/analysis"
	"github.com/kralicky/astrols/pkg/analysis/analysistest"
	"github.com/stretchr/testify/require"
)

func TestGuard(t *testing.T) {
	ctx := context.Background()
	artifact := analysis.Artifact{URI: "file:///a.astro.tsx", Content: []byte("const a = 1;")}

	tests := []struct {
		name string
		svc  *analysistest.Service
	}{
		{"error", &analysistest.Service{Err: errors.New("engine crashed")}},
		{"not found", &analysistest.Service{Err: analysis.ErrNotFound}},
		{"stale", &analysistest.Service{Err: analysis.ErrStale}},
		{"panic", &analysistest.Service{Panic: "boom"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := analysis.Guard(tt.svc)

			entries, err := svc.CompletionsAtPosition(ctx, artifact, 3)
			require.NoError(t, err)
			require.Empty(t, entries)

			info, err := svc.QuickInfo(ctx, artifact, 3)
			require.NoError(t, err)
			require.Nil(t, info)

			locs, err := svc.Definition(ctx, artifact, 3)
			require.NoError(t, err)
			require.Empty(t, locs)

			locs, err = svc.TypeDefinition(ctx, artifact, 3)
			require.NoError(t, err)
			require.Empty(t, locs)

			locs, err = svc.References(ctx, artifact, 3)
			require.NoError(t, err)
			require.Empty(t, locs)

			symbols, err := svc.DocumentSymbols(ctx, artifact)
			require.NoError(t, err)
			require.Empty(t, symbols)

			help, err := svc.SignatureHelp(ctx, artifact, 3)
			require.NoError(t, err)
			require.Nil(t, help)

			diags, err := svc.Diagnostics(ctx, artifact)
			require.NoError(t, err)
			require.Empty(t, diags)

			path, err := svc.ResolveModule(ctx, "/src/a.astro", "./b.vue")
			require.NoError(t, err)
			require.Empty(t, path)

			require.NoError(t, svc.Forget(ctx, artifact.URI))

			require.Len(t, tt.svc.Requests(), 10)
		})
	}
}

func TestGuardPassthrough(t *testing.T) {
	fake := &analysistest.Service{
		Modules: map[string]string{"./Card.astro": "/src/Card.astro"},
		Entries: []analysis.Entry{{Name: "title", Kind: analysis.KindConst}},
	}
	svc := analysis.Guard(analysis.Guard(fake))

	path, err := svc.ResolveModule(context.Background(), "/src/index.astro", "./Card.astro")
	require.NoError(t, err)
	require.Equal(t, "/src/Card.astro", path)

	entries, err := svc.CompletionsAtPosition(context.Background(), analysis.Artifact{}, 0)
	require.NoError(t, err)
	require.Equal(t, fake.Entries, entries)
}

package lsp

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecodeSettings(t *testing.T) {
	tests := []struct {
		name      string
		raw       any
		namespace string
		feature   string
		want      bool
	}{
		{
			name:      "nil enables everything",
			namespace: NamespaceTypeScript,
			feature:   FeatureCompletions,
			want:      true,
		},
		{
			name: "disabled feature",
			raw: map[string]any{
				"astro": map[string]any{"hover": map[string]any{"enabled": false}},
			},
			namespace: NamespaceAstro,
			feature:   FeatureHover,
			want:      false,
		},
		{
			name: "other namespace unaffected",
			raw: map[string]any{
				"astro": map[string]any{"hover": map[string]any{"enabled": false}},
			},
			namespace: NamespaceTypeScript,
			feature:   FeatureHover,
			want:      true,
		},
		{
			name: "nested under astrols",
			raw: map[string]any{
				"astrols": map[string]any{
					"typescript": map[string]any{"diagnostics": map[string]any{"enabled": false}},
				},
			},
			namespace: NamespaceTypeScript,
			feature:   FeatureDiagnostics,
			want:      false,
		},
		{
			name: "explicitly enabled",
			raw: map[string]any{
				"typescript": map[string]any{"definitions": map[string]any{"enabled": true}},
			},
			namespace: NamespaceTypeScript,
			feature:   FeatureDefinitions,
			want:      true,
		},
		{
			name:      "unknown feature",
			namespace: NamespaceAstro,
			feature:   "semanticTokens",
			want:      true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			settings, err := DecodeSettings(tt.raw)
			require.NoError(t, err)
			require.Equal(t, tt.want, settings.IsEnabled(tt.namespace, tt.feature))
		})
	}
}

func TestDecodeSettingsLogLevel(t *testing.T) {
	settings, err := DecodeSettings(map[string]any{"logLevel": "debug"})
	require.NoError(t, err)
	require.Equal(t, "debug", settings.LogLevel)

	_, err = DecodeSettings(map[string]any{"astro": "yes"})
	require.Error(t, err)
}

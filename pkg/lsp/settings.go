package lsp

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
)

const (
	NamespaceAstro      = "astro"
	NamespaceTypeScript = "typescript"
)

const (
	FeatureCompletions   = "completions"
	FeatureHover         = "hover"
	FeatureDefinitions   = "definitions"
	FeatureDiagnostics   = "diagnostics"
	FeatureFoldingRanges = "foldingRanges"

	FeatureReferences      = "references"
	FeatureDocumentSymbols = "documentSymbols"
	FeatureSignatureHelp   = "signatureHelp"
)

type Settings struct {
	LogLevel   string             `mapstructure:"logLevel" json:"logLevel"`
	Astro      AstroSettings      `mapstructure:"astro" json:"astro"`
	TypeScript TypeScriptSettings `mapstructure:"typescript" json:"typescript"`
}

// Features of the astro namespace are answered without the analysis engine.
type AstroSettings struct {
	Completions   FeatureSettings `mapstructure:"completions" json:"completions"`
	Hover         FeatureSettings `mapstructure:"hover" json:"hover"`
	Diagnostics   FeatureSettings `mapstructure:"diagnostics" json:"diagnostics"`
	FoldingRanges FeatureSettings `mapstructure:"foldingRanges" json:"foldingRanges"`
}

type TypeScriptSettings struct {
	Completions     FeatureSettings `mapstructure:"completions" json:"completions"`
	Hover           FeatureSettings `mapstructure:"hover" json:"hover"`
	Definitions     FeatureSettings `mapstructure:"definitions" json:"definitions"`
	References      FeatureSettings `mapstructure:"references" json:"references"`
	DocumentSymbols FeatureSettings `mapstructure:"documentSymbols" json:"documentSymbols"`
	SignatureHelp   FeatureSettings `mapstructure:"signatureHelp" json:"signatureHelp"`
	Diagnostics     FeatureSettings `mapstructure:"diagnostics" json:"diagnostics"`
}

type FeatureSettings struct {
	Enabled *bool `mapstructure:"enabled" json:"enabled"`
}

func (s FeatureSettings) GetEnabled() bool {
	if s.Enabled == nil {
		return true
	}
	return *s.Enabled
}

// IsEnabled reports whether a feature is turned on. Unknown features are
// enabled.
func (s *Settings) IsEnabled(namespace, feature string) bool {
	switch namespace {
	case NamespaceAstro:
		switch feature {
		case FeatureCompletions:
			return s.Astro.Completions.GetEnabled()
		case FeatureHover:
			return s.Astro.Hover.GetEnabled()
		case FeatureDiagnostics:
			return s.Astro.Diagnostics.GetEnabled()
		case FeatureFoldingRanges:
			return s.Astro.FoldingRanges.GetEnabled()
		}
	case NamespaceTypeScript:
		switch feature {
		case FeatureCompletions:
			return s.TypeScript.Completions.GetEnabled()
		case FeatureHover:
			return s.TypeScript.Hover.GetEnabled()
		case FeatureDefinitions:
			return s.TypeScript.Definitions.GetEnabled()
		case FeatureReferences:
			return s.TypeScript.References.GetEnabled()
		case FeatureDocumentSymbols:
			return s.TypeScript.DocumentSymbols.GetEnabled()
		case FeatureSignatureHelp:
			return s.TypeScript.SignatureHelp.GetEnabled()
		case FeatureDiagnostics:
			return s.TypeScript.Diagnostics.GetEnabled()
		}
	}
	return true
}

// DecodeSettings reads settings from initializationOptions or a
// didChangeConfiguration payload. Payloads nesting everything under an
// "astrols" key are accepted too.
func DecodeSettings(raw any) (Settings, error) {
	var settings Settings
	if raw == nil {
		return settings, nil
	}
	if m, ok := raw.(map[string]any); ok {
		if nested, ok := m["astrols"]; ok {
			raw = nested
		}
	}
	if err := mapstructure.Decode(raw, &settings); err != nil {
		return Settings{}, fmt.Errorf("invalid settings: %w", err)
	}
	return settings, nil
}

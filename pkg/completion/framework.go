package completion

import (
	"path/filepath"
	"strings"
)

// Framework identifies who authored a component.
type Framework int

const (
	FrameworkNative Framework = iota
	FrameworkVue
	FrameworkSvelte
	FrameworkJSX
)

func (f Framework) String() string {
	switch f {
	case FrameworkNative:
		return "astro"
	case FrameworkVue:
		return "vue"
	case FrameworkSvelte:
		return "svelte"
	case FrameworkJSX:
		return "jsx"
	default:
		return "unknown"
	}
}

// policy is the per-framework behavior of the attribute completion path.
type policy struct {
	// Whether components must be hydrated on the client, making the client
	// directive catalog applicable.
	hydrated bool
	// Whether props the runtime catalog marks optional get a '?' label.
	decorateRuntimeOptional bool
	// Reads the props a component declares in its own source, if the
	// framework has such a declaration syntax.
	catalog func(src []byte) catalog
}

var policies = [...]policy{
	FrameworkNative: {hydrated: false, decorateRuntimeOptional: false, catalog: astroCatalog},
	FrameworkVue:    {hydrated: true, decorateRuntimeOptional: true, catalog: vueCatalog},
	FrameworkSvelte: {hydrated: true, decorateRuntimeOptional: false, catalog: svelteCatalog},
	FrameworkJSX:    {hydrated: true, decorateRuntimeOptional: false},
}

func (f Framework) policy() policy {
	return policies[f]
}

// Hydrated reports whether client directives apply to the framework's components.
func (f Framework) Hydrated() bool {
	return f.policy().hydrated
}

var frameworksByExtension = map[string]Framework{
	".astro":  FrameworkNative,
	".vue":    FrameworkVue,
	".svelte": FrameworkSvelte,
	".jsx":    FrameworkJSX,
	".tsx":    FrameworkJSX,
	".js":     FrameworkJSX,
	".ts":     FrameworkJSX,
	".mjs":    FrameworkJSX,
	".cjs":    FrameworkJSX,
}

// FrameworkForPath classifies a resolved component file by its extension.
// Declaration files (.d.ts) count as JSX.
func FrameworkForPath(path string) (Framework, bool) {
	f, ok := frameworksByExtension[strings.ToLower(filepath.Ext(path))]
	return f, ok
}

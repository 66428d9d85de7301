package completion

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"
	gsync "github.com/kralicky/gpkg/sync"
	"github.com/samber/lo"

	"github.com/kralicky/astrols/pkg/analysis"
	"github.com/kralicky/astrols/pkg/astro"
	"github.com/kralicky/tools-lite/gopls/pkg/protocol"
)

// FileReader reads component sources. The language server reads open
// documents from memory before falling back to disk.
type FileReader interface {
	ReadFile(ctx context.Context, path string) ([]byte, error)
}

// Component is the metadata of an imported component.
type Component struct {
	Path       string
	Framework  Framework
	TypeScript bool
	Props      []PropDescriptor
}

// Available returns the props not yet written on tag.
func (c *Component) Available(tag *astro.Tag) []PropDescriptor {
	if tag == nil || len(tag.Attributes) == 0 {
		return c.Props
	}
	return lo.Filter(c.Props, func(p PropDescriptor, _ int) bool {
		return !lo.Contains(tag.Attributes, p.Name)
	})
}

// Resolver finds the component a tag refers to and the props it accepts.
type Resolver struct {
	svc   analysis.Service
	files FileReader

	scratchVersion atomic.Int32
	// keyed by component path, then by the element expression used to render it
	cache gsync.Map[string, *Component]
}

func NewResolver(svc analysis.Service, files FileReader) *Resolver {
	return &Resolver{
		svc:   analysis.Guard(svc),
		files: files,
	}
}

// Resolve returns the component a start tag refers to. Tags that are not
// bound to an import, or whose module cannot be resolved, yield nil.
func (r *Resolver) Resolve(ctx context.Context, doc *astro.Document, tag *astro.Tag) (*Component, error) {
	if tag == nil {
		return nil, nil
	}
	imp, ok := astro.LookupImport(doc.Imports, tag.Name)
	if !ok {
		return nil, nil
	}
	path, err := r.svc.ResolveModule(ctx, doc.Path(), imp.Specifier)
	if err != nil {
		return nil, err
	}
	if path == "" {
		return nil, nil
	}
	member := memberPath(imp, tag.Name)
	key := cacheKey(path, member)
	if c, ok := r.cache.Load(key); ok {
		return c, nil
	}
	c, err := r.load(ctx, path, member)
	if err != nil {
		return nil, err
	}
	if c != nil {
		r.cache.Store(key, c)
	}
	return c, nil
}

// Invalidate drops cached metadata for a component file.
func (r *Resolver) Invalidate(path string) {
	prefix := path + "\x00"
	r.cache.Range(func(key string, _ *Component) bool {
		if strings.HasPrefix(key, prefix) {
			r.cache.Delete(key)
		}
		return true
	})
}

func cacheKey(path, member string) string {
	return path + "\x00" + member
}

// memberPath is the expression the component is reachable through from its
// module: the imported name, followed by any dotted segments of the tag.
func memberPath(imp astro.Import, tagName string) string {
	_, rest, dotted := strings.Cut(tagName, ".")
	switch {
	case imp.Imported == astro.ImportNamespace:
		return rest
	case dotted:
		return imp.Imported + "." + rest
	default:
		return imp.Imported
	}
}

func (r *Resolver) load(ctx context.Context, path, member string) (*Component, error) {
	framework, ok := FrameworkForPath(path)
	if !ok {
		slog.Debug("unrecognized component module", "path", path)
		return nil, nil
	}
	c := &Component{Path: path, Framework: framework}
	pol := framework.policy()

	var cat catalog
	if pol.catalog != nil {
		src, err := r.files.ReadFile(ctx, path)
		if err != nil {
			slog.Debug("failed to read component source", "path", path, "error", err)
		} else {
			cat = pol.catalog(src)
		}
	}
	c.TypeScript = cat.TypeScript || framework == FrameworkJSX

	artifact, offset := r.scratch(path, member)
	defer r.svc.Forget(context.WithoutCancel(ctx), artifact.URI)
	entries, err := r.svc.CompletionsAtPosition(ctx, artifact, offset)
	if err != nil {
		return nil, err
	}
	entries = lo.Filter(entries, func(e analysis.Entry, _ int) bool {
		return e.Kind == analysis.KindProperty
	})
	c.Props = mergeProps(pol, c.TypeScript, entries, cat)
	return c, nil
}

const scratchComponent = "Component"

// scratch builds a module that renders the component with no attributes. The
// offset sits where the first attribute would be written.
func (r *Resolver) scratch(path, member string) (analysis.Artifact, int) {
	var importLine, element string
	switch {
	case member == "" || member == astro.ImportDefault:
		importLine = fmt.Sprintf("import %s from %q;", scratchComponent, path)
		element = scratchComponent
	case strings.HasPrefix(member, astro.ImportDefault+"."):
		importLine = fmt.Sprintf("import %s from %q;", scratchComponent, path)
		element = scratchComponent + strings.TrimPrefix(member, astro.ImportDefault)
	default:
		importLine = fmt.Sprintf("import * as %s from %q;", scratchComponent, path)
		element = scratchComponent + "." + member
	}
	prefix := importLine + "\n\n<" + element + " "
	content := prefix + "/>;\n"

	id := uuid.NewSHA1(uuid.NameSpaceURL, []byte(cacheKey(path, member)))
	scratchPath := filepath.Join(filepath.Dir(path), ".astrols-scratch-"+id.String()+astro.VirtualExtension)
	return analysis.Artifact{
		URI:       protocol.URIFromPath(scratchPath),
		Version:   r.scratchVersion.Add(1),
		Content:   []byte(content),
		Kind:      analysis.ArtifactComponentScratch,
		Component: path,
	}, len(prefix)
}

// mergeProps combines engine entries with the props read from the component
// source. Engine entries come first; props only the source knows about follow
// in declaration order.
func mergeProps(pol policy, typescript bool, entries []analysis.Entry, cat catalog) []PropDescriptor {
	declared := lo.SliceToMap(cat.Props, func(p catalogProp) (string, catalogProp) {
		return p.Name, p
	})
	seen := make(map[string]bool, len(entries))

	var props []PropDescriptor
	for _, e := range entries {
		if seen[e.Name] {
			continue
		}
		seen[e.Name] = true
		d := PropDescriptor{
			Name:          e.Name,
			Type:          e.Type,
			Optional:      e.Optional,
			Documentation: e.Documentation,
		}
		if cp, ok := declared[e.Name]; ok {
			if d.Type == "" {
				d.Type = cp.Type
			}
			// A TypeScript engine entry without '?' means the prop's type
			// requires it, whatever the runtime declaration says.
			pinned := typescript && !e.Optional
			d.Decorated = pol.decorateRuntimeOptional && !cp.Static && cp.Optional && !pinned
			d.Optional = d.Optional || cp.Optional
		}
		if d.Type == "" {
			d.Type = "any"
		}
		props = append(props, d)
	}
	for _, cp := range cat.Props {
		if seen[cp.Name] {
			continue
		}
		seen[cp.Name] = true
		props = append(props, PropDescriptor{
			Name:      cp.Name,
			Type:      cp.Type,
			Optional:  cp.Optional,
			Decorated: pol.decorateRuntimeOptional && !cp.Static && cp.Optional,
		})
	}
	return props
}

package tsls

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/kralicky/astrols/pkg/analysis"
	"github.com/kralicky/tools-lite/gopls/pkg/protocol"
)

// Component files the engine cannot load on its own. Relative imports of
// these resolve against the file system only.
var componentExtensions = []string{".astro", ".vue", ".svelte"}

var scriptExtensions = []string{".ts", ".tsx", ".d.ts", ".js", ".jsx", ".mjs", ".cjs"}

// ResolveModule asks the engine where an import specifier leads by requesting
// the definition of the specifier inside a small resolution artifact placed
// next to the importer. Relative specifiers fall back to the file system.
func (c *Client) ResolveModule(ctx context.Context, importer string, specifier string) (string, error) {
	if isRelative(specifier) {
		if hasComponentExtension(specifier) {
			return resolveOnDisk(importer, specifier)
		}
		if p, err := resolveOnDisk(importer, specifier); err == nil {
			return p, nil
		}
	}

	const prefix = "import * as __module from "
	content := prefix + strconv.Quote(specifier) + ";\n"
	name := ".astrols-resolve-" + uuid.NewSHA1(uuid.NameSpaceURL, []byte(importer)).String() + ".tsx"
	artifact := analysis.Artifact{
		URI:     protocol.URIFromPath(filepath.Join(filepath.Dir(importer), name)),
		Content: []byte(content),
	}
	defer c.Forget(context.WithoutCancel(ctx), artifact.URI)

	locations, err := c.Definition(ctx, artifact, len(prefix)+1)
	if err != nil {
		return "", err
	}
	for _, loc := range locations {
		if loc.URI != artifact.URI && loc.URI.IsFile() {
			return loc.URI.Path(), nil
		}
	}
	return "", fmt.Errorf("%w: module %q from %s", analysis.ErrNotFound, specifier, importer)
}

func isRelative(specifier string) bool {
	return strings.HasPrefix(specifier, "./") || strings.HasPrefix(specifier, "../") || filepath.IsAbs(specifier)
}

func hasComponentExtension(specifier string) bool {
	for _, ext := range componentExtensions {
		if strings.HasSuffix(specifier, ext) {
			return true
		}
	}
	return false
}

func resolveOnDisk(importer, specifier string) (string, error) {
	base := specifier
	if !filepath.IsAbs(base) {
		base = filepath.Join(filepath.Dir(importer), filepath.FromSlash(specifier))
	}
	candidates := []string{base}
	if !hasComponentExtension(specifier) {
		for _, ext := range scriptExtensions {
			candidates = append(candidates, base+ext)
		}
		for _, ext := range scriptExtensions {
			candidates = append(candidates, filepath.Join(base, "index"+ext))
		}
	}
	for _, p := range candidates {
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: module %q from %s", analysis.ErrNotFound, specifier, importer)
}

// Package sources locates astro documents on disk.
package sources

import (
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
)

// Directories that never contain documents worth checking.
var skipDirs = map[string]bool{
	"node_modules": true,
	"vendor":       true,
	".git":         true,
}

// Search returns the absolute paths of the .astro files named by paths.
// Directories are walked recursively; files are taken as given.
func Search(paths ...string) ([]string, error) {
	seen := map[string]bool{}
	var files []string
	add := func(path string) {
		if !seen[path] {
			seen[path] = true
			files = append(files, path)
		}
	}
	for _, root := range paths {
		if !filepath.IsAbs(root) {
			a, err := filepath.Abs(root)
			if err == nil {
				root = a
			}
		}
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			name := d.Name()
			if d.IsDir() {
				if path != root && skipDirs[name] {
					return fs.SkipDir
				}
				return nil
			}
			if path == root || strings.HasSuffix(name, ".astro") {
				add(path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	sort.Strings(files)
	return files, nil
}

// Package source packages a project's source tree into a distributable
// build context: git-aware file selection, include/exclude rules and
// tar.gz compression.
package source

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar"
	"github.com/spf13/afero"
)

// directories never shipped in a build context
var alwaysSkipped = map[string]bool{
	"__pycache__": true,
	".git":        true,
	".pipeship":   true,
}

// GlobAll lists every file under root, relative to root. Directories
// are never reported and the skip list prunes whole subtrees.
func GlobAll(fs afero.Fs, root string, skip ...string) ([]string, error) {
	skipSet := make(map[string]bool, len(skip))
	for _, s := range skip {
		skipSet[strings.TrimSuffix(s, "/")] = true
	}
	var files []string
	err := afero.Walk(fs, root, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if rel == "." {
			return nil
		}
		if info.IsDir() {
			if alwaysSkipped[info.Name()] || skipSet[rel] {
				return filepath.SkipDir
			}
			return nil
		}
		if skipSet[rel] {
			return nil
		}
		files = append(files, rel)
		return nil
	})
	return files, err
}

// Matches reports whether a relative path is selected by any of the
// patterns. A pattern matches its exact path, any path below it when it
// names a directory, or through doublestar globbing.
func Matches(path string, patterns []string) bool {
	for _, pattern := range patterns {
		pattern = strings.TrimSuffix(pattern, "/")
		if path == pattern || strings.HasPrefix(path, pattern+"/") {
			return true
		}
		if ok, err := doublestar.Match(pattern, path); err == nil && ok {
			return true
		}
	}
	return false
}

// Overlap returns the elements present in both lists
func Overlap(a, b []string) []string {
	seen := make(map[string]bool, len(a))
	for _, s := range a {
		seen[s] = true
	}
	var both []string
	for _, s := range b {
		if seen[s] {
			both = append(both, s)
		}
	}
	return both
}

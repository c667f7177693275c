package indexer

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/gobwas/glob"
)

// Discovery enumerates project files honoring include/exclude glob rules
// (spec §4.5 step 1, §6 "indexer.include/exclude_patterns").
type Discovery struct {
	rootDir         string
	includePatterns []glob.Glob
	excludePatterns []glob.Glob
}

// NewDiscovery compiles the configured include/exclude patterns.
func NewDiscovery(rootDir string, includePatterns, excludePatterns []string) (*Discovery, error) {
	d := &Discovery{rootDir: rootDir}

	for _, pattern := range includePatterns {
		g, err := glob.Compile(pattern, '/')
		if err != nil {
			return nil, err
		}
		d.includePatterns = append(d.includePatterns, g)
		// glob's "**/" needs at least one separator, so also match the
		// remainder against root-level paths ("**/*" covers "main.go").
		if rest, ok := strings.CutPrefix(pattern, "**/"); ok {
			g, err := glob.Compile(rest, '/')
			if err != nil {
				return nil, err
			}
			d.includePatterns = append(d.includePatterns, g)
		}
	}
	for _, pattern := range excludePatterns {
		g, err := glob.Compile(pattern, '/')
		if err != nil {
			return nil, err
		}
		d.excludePatterns = append(d.excludePatterns, g)
	}
	return d, nil
}

// DiscoverFiles walks the tree rooted at rootDir and returns every file
// whose root-relative path matches an include pattern and no exclude
// pattern.
func (d *Discovery) DiscoverFiles() ([]string, error) {
	var files []string
	err := filepath.Walk(d.rootDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		relPath, err := filepath.Rel(d.rootDir, path)
		if err != nil {
			return err
		}
		relPath = filepath.ToSlash(relPath)

		if d.shouldIgnore(relPath) {
			return nil
		}
		if d.matchesAnyPattern(relPath, d.includePatterns) {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

// shouldIgnore reports whether relPath (or, for a directory prefix, any
// file beneath it) matches an exclude pattern.
func (d *Discovery) shouldIgnore(relPath string) bool {
	if d.matchesAnyPattern(relPath, d.excludePatterns) {
		return true
	}
	return d.matchesAnyPattern(relPath+"/**", d.excludePatterns)
}

func (d *Discovery) matchesAnyPattern(path string, patterns []glob.Glob) bool {
	for _, pattern := range patterns {
		if pattern.Match(path) {
			return true
		}
	}
	return false
}

// ShouldWatch reports whether relPath should be added to the file watcher
// (not excluded; directories are always watchable unless excluded so new
// files created beneath them are still seen).
func (d *Discovery) ShouldWatch(relPath string) bool {
	return !d.shouldIgnore(relPath)
}

// Matches reports whether relPath matches an include pattern, used by the
// watcher to decide whether a changed file is in scope.
func (d *Discovery) Matches(relPath string) bool {
	if d.shouldIgnore(relPath) {
		return false
	}
	return d.matchesAnyPattern(relPath, d.includePatterns)
}

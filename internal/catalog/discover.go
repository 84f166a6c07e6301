package catalog

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// ResolvePaths expands catalog path patterns into a sorted list of snapshot
// files. Patterns may use * and ** wildcards. A pattern naming a directory
// selects every snapshot file below it. Files matching any exclude pattern,
// by full path or base name, are dropped.
func ResolvePaths(patterns, excludes []string) ([]string, error) {
	seen := make(map[string]bool)
	var files []string

	for _, pattern := range patterns {
		matches, err := expandPattern(pattern)
		if err != nil {
			return nil, err
		}

		for _, path := range matches {
			abs, err := filepath.Abs(path)
			if err != nil {
				return nil, fmt.Errorf("failed to resolve %s: %w", path, err)
			}
			if seen[abs] || !IsCatalogFile(abs) || isExcluded(abs, excludes) {
				continue
			}

			info, err := os.Stat(abs)
			if err != nil || !info.Mode().IsRegular() {
				continue
			}

			seen[abs] = true
			files = append(files, abs)
		}
	}

	slices.Sort(files)
	return files, nil
}

// expandPattern returns the filesystem entries a single pattern refers to.
func expandPattern(pattern string) ([]string, error) {
	if !hasMeta(pattern) {
		info, err := os.Stat(pattern)
		if err != nil {
			return nil, fmt.Errorf("catalog path %s: %w", pattern, err)
		}
		if !info.IsDir() {
			return []string{pattern}, nil
		}
		pattern = filepath.Join(pattern, "**", "*")
	}

	matches, err := doublestar.FilepathGlob(pattern)
	if err != nil {
		return nil, fmt.Errorf("glob error for %s: %w", pattern, err)
	}
	return matches, nil
}

// WatchDirs returns the directories to watch for the given patterns: the
// static base of every pattern plus the directory of every resolved file.
func WatchDirs(patterns []string, files []string) []string {
	seen := make(map[string]bool)
	var dirs []string
	add := func(dir string) {
		abs, err := filepath.Abs(dir)
		if err != nil || seen[abs] {
			return
		}
		if info, err := os.Stat(abs); err != nil || !info.IsDir() {
			return
		}
		seen[abs] = true
		dirs = append(dirs, abs)
	}

	for _, pattern := range patterns {
		if !hasMeta(pattern) {
			if info, err := os.Stat(pattern); err == nil && info.IsDir() {
				add(pattern)
				continue
			}
			add(filepath.Dir(pattern))
			continue
		}
		base, _ := doublestar.SplitPattern(filepath.ToSlash(pattern))
		add(filepath.FromSlash(base))
	}
	for _, f := range files {
		add(filepath.Dir(f))
	}

	slices.Sort(dirs)
	return dirs
}

func isExcluded(path string, excludes []string) bool {
	slashed := filepath.ToSlash(path)
	base := filepath.Base(path)
	for _, pattern := range excludes {
		pattern = filepath.ToSlash(pattern)
		if ok, _ := doublestar.Match(pattern, slashed); ok {
			return true
		}
		if ok, _ := doublestar.Match(pattern, base); ok {
			return true
		}
		// Relative patterns match anywhere below the root
		if !strings.HasPrefix(pattern, "/") && !strings.HasPrefix(pattern, "**/") {
			if ok, _ := doublestar.Match("**/"+pattern, slashed); ok {
				return true
			}
		}
	}
	return false
}

func hasMeta(pattern string) bool {
	return strings.ContainsAny(pattern, "*?[{")
}

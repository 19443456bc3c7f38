package parser

import (
	"fmt"
	"path/filepath"
	"sort"
)

// Stdin is the path that selects standard input.
const Stdin = "-"

// ExpandGlobs expands a list of file paths and glob patterns into a deduplicated
// list of matching file paths. Argument order is kept; the matches of a single
// glob are sorted. Patterns that don't match any files are returned as-is
// so that opening them reports a proper error.
func ExpandGlobs(patterns []string) ([]string, error) {
	seen := make(map[string]bool)
	var result []string

	add := func(path string) {
		if !seen[path] {
			seen[path] = true
			result = append(result, path)
		}
	}

	for _, pattern := range patterns {
		if pattern == Stdin {
			add(pattern)
			continue
		}

		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid glob pattern %q: %w", pattern, err)
		}

		if len(matches) == 0 {
			add(pattern)
			continue
		}

		sort.Strings(matches)
		for _, match := range matches {
			add(match)
		}
	}

	return result, nil
}

package workflow

import (
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Filter is the path filter attached to a trigger.
type Filter struct {
	// Paths restricts the trigger to events touching a matching file.
	Paths []string `yaml:"paths"`

	// PathsIgnore suppresses the trigger when every changed file
	// matches an ignore pattern.
	PathsIgnore []string `yaml:"paths-ignore"`
}

// Empty reports whether the filter has no patterns at all.
func (f Filter) Empty() bool {
	return len(f.Paths) == 0 && len(f.PathsIgnore) == 0
}

// Suppresses decides whether the changed-file set suppresses this
// trigger, and explains why.
//
// An event with an empty changed-file list is never suppressed: without
// file information the filter cannot prove the run is unnecessary.
func (f Filter) Suppresses(changed []string) (bool, string) {
	if f.Empty() || len(changed) == 0 {
		return false, ""
	}

	if len(f.PathsIgnore) > 0 && allMatch(f.PathsIgnore, changed) {
		return true, "all changed files match ignore patterns"
	}

	if len(f.Paths) > 0 && !anyMatch(f.Paths, changed) {
		return true, "no changed file matches path filters"
	}

	return false, ""
}

func allMatch(patterns, files []string) bool {
	for _, file := range files {
		if !MatchAny(patterns, file) {
			return false
		}
	}
	return true
}

func anyMatch(patterns, files []string) bool {
	for _, file := range files {
		if MatchAny(patterns, file) {
			return true
		}
	}
	return false
}

// MatchAny reports whether path matches any of the glob patterns.
// Patterns use `**` globbing; a pattern without a separator (like
// `**.md`) also matches in subdirectories, as forge path filters do.
func MatchAny(patterns []string, path string) bool {
	for _, pattern := range patterns {
		if matchOne(pattern, path) {
			return true
		}
	}
	return false
}

func matchOne(pattern, path string) bool {
	if ok, err := doublestar.Match(pattern, path); err == nil && ok {
		return true
	}
	if !strings.Contains(pattern, "/") {
		if ok, err := doublestar.Match("**/"+pattern, path); err == nil && ok {
			return true
		}
	}
	return false
}

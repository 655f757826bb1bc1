package model

import (
	"strings"

	"github.com/segmentio/ksuid"
)

// DefaultPattern is the catch-all task pattern backing the root
// dependency manifest and the base image.
const DefaultPattern = "default"

// MatchPattern returns the first pattern matching the task name, or
// DefaultPattern when none does. Patterns are glob-like: a trailing or
// embedded '*' matches any run of characters, e.g. fit-* matches fit-1.
func MatchPattern(patterns []string, task string) string {
	for _, p := range patterns {
		if p == DefaultPattern {
			continue
		}
		if MatchesWildcard(p, task) {
			return p
		}
	}
	return DefaultPattern
}

// MatchesWildcard reports whether a single glob-like pattern matches a
// task name.
func MatchesWildcard(pattern, name string) bool {
	parts := strings.Split(pattern, "*")
	if len(parts) == 1 {
		return pattern == name
	}
	if !strings.HasPrefix(name, parts[0]) {
		return false
	}
	name = name[len(parts[0]):]
	for _, part := range parts[1 : len(parts)-1] {
		idx := strings.Index(name, part)
		if idx < 0 {
			return false
		}
		name = name[idx+len(part):]
	}
	return strings.HasSuffix(name, parts[len(parts)-1])
}

// SanitizePattern rewrites a task pattern into a string allowed in
// image tags and job definition names.
func SanitizePattern(pattern string) string {
	return strings.ReplaceAll(pattern, "*", "any")
}

// NewRunID returns a sortable unique identifier for an export run
func NewRunID() string {
	id, err := ksuid.NewRandom()
	if err != nil {
		panic("cannot generate random ksuid: " + err.Error())
	}
	return id.String()
}

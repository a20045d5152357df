// Package discovery implements the mDNS, USB, and serial enumeration of
// spec.md §4.8: each sub-scanner emits candidate resource strings, which are
// glob-filtered, de-duplicated, ordered by insertion, and capped at 128
// entries before being handed to the session package's find-list.
package discovery

import (
	"strings"

	"github.com/openvisa-go/govisa/transport"
)

// MaxResults is the find-list capacity of spec.md §3/§4.8.
const MaxResults = 128

// matchGlob implements the '*'/'?' case-insensitive glob predicate of
// spec.md §4.8 "Filtering". It is a small recursive matcher, not
// path/filepath.Match, because VISA resource strings contain "::" which
// filepath.Match treats as a path separator on some platforms.
func matchGlob(pattern, s string) bool {
	pattern = strings.ToLower(pattern)
	s = strings.ToLower(s)
	return globMatch(pattern, s)
}

func globMatch(pattern, s string) bool {
	if pattern == "" {
		return s == ""
	}
	switch pattern[0] {
	case '*':
		if globMatch(pattern[1:], s) {
			return true
		}
		for i := 0; i < len(s); i++ {
			if globMatch(pattern[1:], s[i+1:]) {
				return true
			}
		}
		return false
	case '?':
		if s == "" {
			return false
		}
		return globMatch(pattern[1:], s[1:])
	default:
		if s == "" || pattern[0] != s[0] {
			return false
		}
		return globMatch(pattern[1:], s[1:])
	}
}

// filterDedupCap applies matchGlob against candidates, drops duplicates
// while preserving first-seen order, and caps the result at MaxResults.
// An empty result reports transport.ErrResourceNotFound, matching the
// closed error taxonomy (spec.md §7 "resource_not_found").
func filterDedupCap(pattern string, candidates []string) ([]string, error) {
	seen := make(map[string]bool, len(candidates))
	out := make([]string, 0, len(candidates))
	for _, c := range candidates {
		if !matchGlob(pattern, c) {
			continue
		}
		if seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
		if len(out) == MaxResults {
			break
		}
	}
	if len(out) == 0 {
		return nil, transport.ErrResourceNotFound
	}
	return out, nil
}

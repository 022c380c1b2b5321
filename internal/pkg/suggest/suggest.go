// Package suggest finds the closest known name for a mistyped one
package suggest

import (
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"
)

// Closest returns the candidate nearest to name, ignoring case. ok is false when no
// candidate is within the edit distance allowed for its length.
func Closest(name string, candidates []string) (match string, ok bool) {
	token := normalize(name)
	if token == "" {
		return "", false
	}

	type scored struct {
		val  string
		dist int
	}
	var results []scored
	for _, cand := range candidates {
		c := normalize(cand)
		if c == "" {
			continue
		}
		var dist int
		switch {
		case c == token:
			dist = 0
		case strings.HasPrefix(c, token) && len(token) >= 2:
			dist = 1
		default:
			dist = levenshtein.ComputeDistance(token, c)
			if dist > limit(len(c)) {
				continue
			}
		}
		results = append(results, scored{val: cand, dist: dist})
	}
	if len(results) == 0 {
		return "", false
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].dist == results[j].dist {
			return results[i].val < results[j].val
		}
		return results[i].dist < results[j].dist
	})

	return results[0].val, true
}

// Message formats a "did you mean" hint, or "" when there is nothing close
func Message(name string, candidates []string) string {
	match, ok := Closest(name, candidates)
	if !ok {
		return ""
	}
	return "did you mean " + match + "?"
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func limit(length int) int {
	switch {
	case length <= 4:
		return 1
	case length <= 8:
		return 2
	default:
		return 3
	}
}

// Package options validates tracker option keys and resolves the layered
// defaults into the state a tracker renders with.
package options

// Schema lists every option key a tracker accepts
var Schema = []string{
	"backgroundImage",
	"closeFunction",
	"frameColor",
	"frameWidth",
	"id",
	"foregroundImage",
	"innerBackgroundColor",
	"innerColor",
	"innerCurrent",
	"innerTotal",
	"listPosition",
	"openFunction",
	"outerBackgroundColor",
	"outerColor",
	"outerCurrent",
	"outerTotal",
	"ownerId",
	"persist",
	"position",
	"scroll",
	"show",
	"size",
	"title",
	"windowed",
}

var known = func() map[string]struct{} {
	m := make(map[string]struct{}, len(Schema))
	for _, k := range Schema {
		m[k] = struct{}{}
	}
	return m
}()

// IsKnown reports whether key is part of the schema
func IsKnown(key string) bool {
	_, ok := known[key]
	return ok
}

// MatchThreshold is the minimum share of matched characters for a suggestion
const MatchThreshold = 0.7

// FuzzyMatch returns the entry of list that best matches key, or "" when no
// entry reaches MatchThreshold. Keys shorter than three characters never match.
//
// Each character of key is searched for in the rest of the candidate after the
// last match, so characters must appear in order and each candidate character
// is counted once. Ties go to the later candidate.
func FuzzyMatch(key string, list []string) string {
	query := []rune(key)
	if len(query) < 3 {
		return ""
	}

	best, bestCount := "", 0
	for _, candidate := range list {
		if candidate == "" {
			break
		}
		if candidate == key {
			return candidate
		}
		sub := []rune(candidate)
		count := 0
		for _, c := range query {
			for j := 0; j < len(sub); j++ {
				if sub[j] == c {
					count++
					sub = sub[j+1:]
					break
				}
			}
		}
		if count > 0 && count >= bestCount {
			best, bestCount = candidate, count
		}
	}

	if best == "" || float64(bestCount)/float64(len(query)) < MatchThreshold {
		return ""
	}
	return best
}

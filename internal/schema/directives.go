package schema

import (
	"fmt"
	"sort"

	fuzzy "github.com/lithammer/fuzzysearch/fuzzy"
)

// knownDirectives lists every recognized directive key (spec.md §6).
var knownDirectives = []string{"?=", "$=", ".=", "external="}

// suggestDirective finds the closest known directive to an unrecognized
// key, the same "did you mean" UX the teacher applies to mistyped
// decorator names (core/decorator registry lookups).
func suggestDirective(bad string) string {
	ranks := fuzzy.RankFindNormalizedFold(bad, knownDirectives)
	if len(ranks) == 0 {
		return ""
	}
	sort.Sort(ranks)
	return ranks[0].Target
}

// unknownDirectiveError formats the "unknown directive" SchemaError
// (spec.md §4.B), including a suggestion when one is close enough.
func unknownDirectiveError(key string) error {
	if s := suggestDirective(key); s != "" {
		return fmt.Errorf("unknown directive %q (did you mean %q?)", key, s)
	}
	return fmt.Errorf("unknown directive %q", key)
}

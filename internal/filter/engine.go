// Package filter implements the post matching engine.
package filter

import (
	"regexp"
	"strings"

	"forward_bot/internal/model"
)

// Matches checks whether a post's text triggers any of the given rules.
// Matching is case-insensitive. Rules combine with OR: the first match wins.
// With no rules nothing matches, so the post is not forwarded anywhere.
func Matches(text string, rules []model.Filter) bool {
	lowered := strings.ToLower(text)
	for _, r := range rules {
		if matchesRule(lowered, r) {
			return true
		}
	}
	return false
}

// matchesRule expects text already lower-cased.
func matchesRule(text string, r model.Filter) bool {
	switch r.Kind {
	case model.KindTag, model.KindPhrase:
		return strings.Contains(text, strings.ToLower(r.Value))
	case model.KindWord:
		// \b only recognizes ASCII word characters, so the boundary is
		// built from Unicode letter and digit classes instead. Words in
		// Cyrillic and other non-Latin scripts must match too.
		const bound = `[^\p{L}\p{N}_]`
		re, err := regexp.Compile(`(?:^|` + bound + `)` + regexp.QuoteMeta(strings.ToLower(r.Value)) + `(?:` + bound + `|$)`)
		if err != nil {
			return false
		}
		return re.MatchString(text)
	case model.KindCombination:
		for _, part := range strings.Split(r.Value, "&") {
			if !strings.Contains(text, strings.ToLower(strings.TrimSpace(part))) {
				return false
			}
		}
		return true
	}
	// Unrecognized kinds never match.
	return false
}

// ValidKind reports whether a filter kind is one the engine understands.
func ValidKind(kind model.FilterKind) bool {
	switch kind {
	case model.KindTag, model.KindWord, model.KindPhrase, model.KindCombination:
		return true
	}
	return false
}

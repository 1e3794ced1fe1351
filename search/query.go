package search

import (
	"strings"
	"unicode/utf8"

	"github.com/samber/lo"
)

// QueryState classifies a raw query.
type QueryState int

const (
	// Searchable queries have at least one usable term.
	Searchable QueryState = iota
	// ShortQuery is empty or too short; it renders an empty hit list.
	ShortQuery
	// NoTerms is long enough but every term is too short; nothing is rendered.
	NoTerms
)

// minTermLen is the length a query or term must exceed to be used.
const minTermLen = 2

// Terms lowercases a query and splits it into space separated terms longer
// than two characters.
func Terms(query string) ([]string, QueryState) {
	query = strings.TrimSpace(query)
	if utf8.RuneCountInString(query) <= minTermLen {
		return nil, ShortQuery
	}

	terms := lo.FilterMap(strings.Split(strings.ToLower(query), " "), func(t string, _ int) (string, bool) {
		t = strings.TrimSpace(t)
		return t, utf8.RuneCountInString(t) > minTermLen
	})
	if len(terms) == 0 {
		return nil, NoTerms
	}
	return terms, Searchable
}

// matchesAll reports whether every term is a substring of name. name must
// already be lowercase; an empty name never matches.
func matchesAll(name string, terms []string) bool {
	if name == "" {
		return false
	}
	return lo.EveryBy(terms, func(t string) bool {
		return strings.Contains(name, t)
	})
}

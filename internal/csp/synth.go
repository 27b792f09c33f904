package csp

import (
	"sort"
	"strings"
)

// ConsolidatedPolicy is the union of several policies.
type ConsolidatedPolicy struct {
	Rule       string `json:"rule"`
	Directives *Model `json:"directives"`
}

// Merge unions the directives of all models. Directive names and values keep
// first-seen order across the inputs; nil models are skipped.
func Merge(models ...*Model) ConsolidatedPolicy {
	merged := NewModel()
	for _, m := range models {
		for _, d := range m.Directives() {
			merged.Add(d.Name, d.Values...)
		}
	}
	return ConsolidatedPolicy{
		Rule:       merged.String(),
		Directives: merged,
	}
}

// MergePolicies parses each policy string and merges the results. Unlike
// Parse, a directive repeated within one policy contributes all of its values.
func MergePolicies(policies ...string) ConsolidatedPolicy {
	models := make([]*Model, 0, len(policies))
	for _, p := range policies {
		models = append(models, parse(p, true))
	}
	return Merge(models...)
}

// MergeFromObservedOrigins widens an existing policy so it admits the origins
// observed for each directive. The result always has default-src 'self', every
// observed directive is seeded with 'self', origins without a scheme are
// prefixed with https://, and directives are emitted in lexicographic order.
func MergeFromObservedOrigins(existing string, originsByDirective map[string][]string) string {
	m := Parse(existing)
	if !m.Has(DefaultSrc) {
		m.Add(DefaultSrc, KeywordSelf)
	}

	directives := make([]string, 0, len(originsByDirective))
	for name := range originsByDirective {
		directives = append(directives, name)
	}
	sort.Strings(directives)

	for _, name := range directives {
		m.Add(name, KeywordSelf)
		for _, origin := range originsByDirective[name] {
			m.Add(name, normalizeOrigin(origin))
		}
	}

	names := m.Names()
	sort.Strings(names)
	clauses := make([]string, 0, len(names))
	for _, name := range names {
		clauses = append(clauses, formatClause(name, m.Values(name)))
	}
	return strings.Join(clauses, " ")
}

func normalizeOrigin(origin string) string {
	origin = strings.TrimSpace(origin)
	if strings.Contains(origin, "://") {
		return origin
	}
	return "https://" + origin
}

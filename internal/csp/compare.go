package csp

import "strings"

// DirectiveStat summarizes one directive across many pages.
type DirectiveStat struct {
	Directive string   `json:"directive"`
	Pages     int      `json:"pages"`
	Values    []string `json:"values"`
}

// Stats counts, for every directive seen in policies, the number of policies
// declaring it and the union of its values. Order is first-seen.
func Stats(policies []string) []DirectiveStat {
	var out []DirectiveStat
	index := make(map[string]int)
	for _, p := range policies {
		for _, d := range Parse(p).Directives() {
			i, ok := index[d.Name]
			if !ok {
				i = len(out)
				index[d.Name] = i
				out = append(out, DirectiveStat{Directive: d.Name})
			}
			out[i].Pages++
			for _, v := range d.Values {
				if !containsString(out[i].Values, v) {
					out[i].Values = append(out[i].Values, v)
				}
			}
		}
	}
	return out
}

// Comparison is the difference between a rule configured at the edge (for
// example on a CDN) and the policies actually served by audited pages.
type Comparison struct {
	Missing     []Directive `json:"missing"`
	Removed     []Directive `json:"removed"`
	UpdatedRule string      `json:"updatedRule"`
}

// CompareRule reports directives served by pages but absent from existing
// (first occurrence per name wins) and directives of existing never served by
// any page. UpdatedRule is existing with each missing directive appended.
func CompareRule(existing string, pagePolicies []string) Comparison {
	rule := Parse(existing)
	seen := make(map[string]bool)
	cmp := Comparison{Missing: []Directive{}, Removed: []Directive{}}

	for _, p := range pagePolicies {
		for _, d := range Parse(p).Directives() {
			if !seen[d.Name] && !rule.Has(d.Name) {
				cmp.Missing = append(cmp.Missing, d)
			}
			seen[d.Name] = true
		}
	}
	for _, d := range rule.Directives() {
		if !seen[d.Name] {
			cmp.Removed = append(cmp.Removed, d)
		}
	}

	var b strings.Builder
	b.WriteString(existing)
	for _, d := range cmp.Missing {
		b.WriteString(" ")
		b.WriteString(formatClause(d.Name, d.Values))
	}
	cmp.UpdatedRule = b.String()
	return cmp
}

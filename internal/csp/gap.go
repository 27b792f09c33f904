package csp

import (
	"fmt"
	"strings"
)

// RequiredDirectives are the directives every audited page is expected to declare.
var RequiredDirectives = []string{ScriptSrc, StyleSrc, ImgSrc, FontSrc, ConnectSrc}

// Recommendation texts
const (
	RecommendAddMissing      = "Add missing CSP directives for external resources"
	RecommendAllowBlocked    = "Update CSP directives to allow blocked resources"
	RecommendNoUnsafeInline  = "Consider removing unsafe-inline for better security"
	RecommendNoUnsafeEval    = "Consider removing unsafe-eval for better security"
	RecommendImplementPolicy = "No CSP found - consider implementing basic CSP directives"

	missingReasonPage       = "Required directive for external resources"
	missingReasonViolations = "Required for external resources"
)

// MissingDirective is a required directive absent from a policy.
type MissingDirective struct {
	Directive string   `json:"directive"`
	Reason    string   `json:"reason"`
	Examples  []string `json:"examples"`
}

// BlockedResource is a resource the policy would refuse to load.
type BlockedResource struct {
	Type           string `json:"type"`
	URL            string `json:"url"`
	Directive      string `json:"directive"`
	Recommendation string `json:"recommendation"`
	Hostname       string `json:"hostname,omitempty"`
}

// Analysis is the gap report for one page.
type Analysis struct {
	MissingDirectives []MissingDirective `json:"missingDirectives"`
	BlockedResources  []BlockedResource  `json:"blockedResources"`
	Recommendations   []string           `json:"recommendations"`
}

// Analyze reports required directives absent from m, script and style
// resources the policy blocks, and recommendations. raw is the policy text
// the model was parsed from; it is searched for unsafe keywords.
//
// A resource is only checked for blocking when its directive is present, so a
// missing directive is never reported a second time as blocked resources.
func Analyze(m *Model, raw string, res Resources) Analysis {
	a := Analysis{
		MissingDirectives: missingDirectives(m, res, missingReasonPage),
		BlockedResources:  []BlockedResource{},
		Recommendations:   []string{},
	}

	checks := []struct {
		kind      string
		directive string
		urls      []string
	}{
		{"script", ScriptSrc, res.Scripts},
		{"style", StyleSrc, res.Styles},
	}
	for _, c := range checks {
		if !m.Has(c.directive) {
			continue
		}
		for _, u := range c.urls {
			if IsAllowed(u, m, c.directive) {
				continue
			}
			a.BlockedResources = append(a.BlockedResources, BlockedResource{
				Type:           c.kind,
				URL:            u,
				Directive:      c.directive,
				Recommendation: fmt.Sprintf("Add %s to %s directive", Hostname(u), c.directive),
			})
		}
	}

	if len(a.MissingDirectives) > 0 {
		a.Recommendations = append(a.Recommendations, RecommendAddMissing)
	}
	if len(a.BlockedResources) > 0 {
		a.Recommendations = append(a.Recommendations, RecommendAllowBlocked)
	}
	if strings.Contains(raw, KeywordUnsafeInline) {
		a.Recommendations = append(a.Recommendations, RecommendNoUnsafeInline)
	}
	if strings.Contains(raw, KeywordUnsafeEval) {
		a.Recommendations = append(a.Recommendations, RecommendNoUnsafeEval)
	}
	return a
}

// NoPolicyAnalysis is the report for a page without any policy.
func NoPolicyAnalysis() Analysis {
	return Analysis{
		MissingDirectives: []MissingDirective{},
		BlockedResources:  []BlockedResource{},
		Recommendations:   []string{RecommendImplementPolicy},
	}
}

// ViolationAnalysis is the report returned when a caller submits resources
// that were blocked in a browser together with the policy in force.
type ViolationAnalysis struct {
	MissingDirectives []MissingDirective `json:"missingDirectives"`
	BlockedResources  []BlockedResource  `json:"blockedResources"`
	Recommendations   []string           `json:"recommendations"`
	UpdatedCSP        string             `json:"updatedCSP"`
}

// AnalyzeViolations lists required directives missing from currentCSP, echoes
// the recommendation of every submitted blocked resource and, when directives
// are missing, extends currentCSP with them.
func AnalyzeViolations(currentCSP string, res Resources, blocked []BlockedResource) ViolationAnalysis {
	m := Parse(currentCSP)
	if blocked == nil {
		blocked = []BlockedResource{}
	}
	va := ViolationAnalysis{
		MissingDirectives: missingDirectives(m, res, missingReasonViolations),
		BlockedResources:  blocked,
		Recommendations:   []string{},
		UpdatedCSP:        currentCSP,
	}
	for _, b := range blocked {
		va.Recommendations = append(va.Recommendations, b.Recommendation)
	}
	if len(va.MissingDirectives) > 0 {
		va.UpdatedCSP = ExtendWithMissing(currentCSP, va.MissingDirectives)
	}
	return va
}

// ExtendWithMissing appends "<directive> 'self' https://<host>...;" to policy
// for every missing directive that has examples. Hosts are unique and keep
// first-seen order.
func ExtendWithMissing(policy string, missing []MissingDirective) string {
	updated := policy
	for _, md := range missing {
		if len(md.Examples) == 0 {
			continue
		}
		var hosts []string
		for _, ex := range md.Examples {
			h := Hostname(ex)
			if !containsString(hosts, h) {
				hosts = append(hosts, h)
			}
		}
		values := []string{KeywordSelf}
		for _, h := range hosts {
			values = append(values, "https://"+h)
		}
		updated += " " + formatClause(md.Directive, values)
	}
	return updated
}

func missingDirectives(m *Model, res Resources, reason string) []MissingDirective {
	out := []MissingDirective{}
	for _, name := range RequiredDirectives {
		if m.Has(name) {
			continue
		}
		examples := res.ForDirective(name)
		if examples == nil {
			examples = []string{}
		}
		out = append(out, MissingDirective{
			Directive: name,
			Reason:    reason,
			Examples:  examples,
		})
	}
	return out
}

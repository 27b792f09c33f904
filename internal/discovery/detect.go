// Package discovery locates the Content-Security-Policy a page declares and
// drives page and batch audits.
package discovery

import (
	"net/http"
	"regexp"
	"strings"

	"cspAudit/internal/csp"
	"cspAudit/internal/dom"
	"cspAudit/internal/session"
)

// Where a policy was found
const (
	SourceHeader    = "header"
	SourceMeta      = "meta tag"
	SourceScript    = "script content"
	SourceData      = "data attribute"
	SourceAttribute = "HTML attribute"
	SourceNone      = "none"
)

// NoCSP is the policy text reported when nothing was found.
const NoCSP = session.NoCSP

// Detection is the outcome of policy discovery for one page.
type Detection struct {
	Policy string
	Source string
}

// Found reports whether a policy was located.
func (d Detection) Found() bool {
	return d.Source != SourceNone
}

var headerNames = []string{
	"Content-Security-Policy",
	"Content-Security-Policy-Report-Only",
}

// scriptPatterns are tried in order against each inline script.
var scriptPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)Content-Security-Policy["\s]*:["\s]*([^"'\n]+)`),
	regexp.MustCompile(`(?i)CSP["\s]*:["\s]*([^"'\n]+)`),
	regexp.MustCompile(`(?i)security["\s]*:["\s]*([^"'\n]+)`),
}

// attributeMarkers identify an attribute value that looks like a policy.
var attributeMarkers = []string{csp.ScriptSrc, csp.StyleSrc, csp.ImgSrc, csp.FontSrc, csp.ConnectSrc}

// Detect runs the discovery steps in order and stops at the first hit:
// response header, meta http-equiv tag, inline script text, data-csp
// attributes, then any attribute mentioning a fetch directive.
// doc may be nil when the body could not be parsed; only headers are checked then.
func Detect(headers http.Header, doc dom.Document) Detection {
	for _, name := range headerNames {
		if v := headers.Get(name); v != "" {
			return Detection{Policy: v, Source: SourceHeader}
		}
	}
	if doc == nil {
		return Detection{Policy: NoCSP, Source: SourceNone}
	}

	steps := []struct {
		source string
		find   func(dom.Document) string
	}{
		{SourceMeta, fromMeta},
		{SourceScript, fromScripts},
		{SourceData, fromDataAttribute},
		{SourceAttribute, fromAnyAttribute},
	}
	for _, step := range steps {
		if policy := step.find(doc); policy != "" {
			return Detection{Policy: policy, Source: step.source}
		}
	}
	return Detection{Policy: NoCSP, Source: SourceNone}
}

func fromMeta(doc dom.Document) string {
	for _, el := range doc.QueryAll("meta[http-equiv]") {
		equiv, _ := el.Attr("http-equiv")
		if !strings.EqualFold(strings.TrimSpace(equiv), "Content-Security-Policy") {
			continue
		}
		if content, _ := el.Attr("content"); content != "" {
			return content
		}
	}
	return ""
}

func fromScripts(doc dom.Document) string {
	for _, el := range doc.QueryAll("script") {
		text := el.Text()
		if text == "" {
			continue
		}
		for _, re := range scriptPatterns {
			if m := re.FindStringSubmatch(text); m != nil {
				if policy := strings.TrimSpace(m[1]); policy != "" {
					return policy
				}
			}
		}
	}
	return ""
}

func fromDataAttribute(doc dom.Document) string {
	els := doc.QueryAll("[data-csp], [data-content-security-policy]")
	if len(els) == 0 {
		return ""
	}
	if v, _ := els[0].Attr("data-csp"); v != "" {
		return v
	}
	v, _ := els[0].Attr("data-content-security-policy")
	return v
}

func fromAnyAttribute(doc dom.Document) string {
	for _, el := range doc.QueryAll("*") {
		for _, attr := range el.Attributes() {
			for _, marker := range attributeMarkers {
				if strings.Contains(attr.Val, marker) {
					return attr.Val
				}
			}
		}
	}
	return ""
}

package csp

import (
	"regexp"
	"strings"

	"cspAudit/internal/dom"
)

// Resources holds external resource URLs by category, in encounter order.
// Duplicates are kept. Connections is filled only by callers that observe
// network activity; static extraction leaves it empty.
type Resources struct {
	Scripts     []string `json:"scripts"`
	Styles      []string `json:"styles"`
	Images      []string `json:"images"`
	Fonts       []string `json:"fonts"`
	Connections []string `json:"connections"`
}

// NewResources returns Resources with every list non-nil so it encodes as [] not null.
func NewResources() Resources {
	return Resources{
		Scripts:     []string{},
		Styles:      []string{},
		Images:      []string{},
		Fonts:       []string{},
		Connections: []string{},
	}
}

// ForDirective returns the resource list a directive governs.
func (r Resources) ForDirective(directive string) []string {
	switch directive {
	case ScriptSrc:
		return r.Scripts
	case StyleSrc:
		return r.Styles
	case ImgSrc:
		return r.Images
	case FontSrc:
		return r.Fonts
	case ConnectSrc:
		return r.Connections
	}
	return nil
}

// structuralRule maps a selector to the attribute holding the URL and its category.
type structuralRule struct {
	selector string
	attr     string
	target   func(*Resources) *[]string
}

var structuralRules = []structuralRule{
	{"script[src]", "src", func(r *Resources) *[]string { return &r.Scripts }},
	{`link[rel="stylesheet"]`, "href", func(r *Resources) *[]string { return &r.Styles }},
	{"img[src]", "src", func(r *Resources) *[]string { return &r.Images }},
	{`link[rel="preload"][as="font"], link[rel="font"]`, "href", func(r *Resources) *[]string { return &r.Fonts }},
}

// Classify extracts external resources from a document: the structural pass
// over resource-bearing elements followed by the heuristic scan of inline
// script text.
func Classify(doc dom.Document) Resources {
	res := ExtractStructural(doc)
	scripts, styles := ScanScriptText(InlineScriptText(doc))
	res.Scripts = append(res.Scripts, scripts...)
	res.Styles = append(res.Styles, styles...)
	return res
}

// ExtractStructural collects http(s) URLs from script, stylesheet, image and font elements.
func ExtractStructural(doc dom.Document) Resources {
	res := NewResources()
	for _, rule := range structuralRules {
		list := rule.target(&res)
		for _, el := range doc.QueryAll(rule.selector) {
			v, ok := el.Attr(rule.attr)
			if ok && strings.HasPrefix(v, "http") {
				*list = append(*list, v)
			}
		}
	}
	return res
}

// InlineScriptText joins the text of every <script> element with single spaces.
func InlineScriptText(doc dom.Document) string {
	scripts := doc.QueryAll("script")
	parts := make([]string, 0, len(scripts))
	for _, el := range scripts {
		parts = append(parts, el.Text())
	}
	return strings.Join(parts, " ")
}

var scriptURLPattern = regexp.MustCompile(`https?://[^\s"']+`)

// ScanScriptText finds absolute URLs in script source and buckets them by
// substring: ".js" or "/js/" as scripts, otherwise ".css" or "/css/" as
// styles. It is a best-effort signal and both over- and under-matches.
func ScanScriptText(text string) (scripts, styles []string) {
	for _, u := range scriptURLPattern.FindAllString(text, -1) {
		switch {
		case strings.Contains(u, ".js") || strings.Contains(u, "/js/"):
			scripts = append(scripts, u)
		case strings.Contains(u, ".css") || strings.Contains(u, "/css/"):
			styles = append(styles, u)
		}
	}
	return scripts, styles
}

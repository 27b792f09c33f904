package csp

import (
	"regexp"
	"strings"

	"github.com/aymerick/douceur/css"
	"github.com/aymerick/douceur/parser"

	"cspAudit/internal/dom"
)

var cssURLPattern = regexp.MustCompile(`url\(\s*['"]?([^'")\s]+)['"]?\s*\)`)

// ScanStylesheet lists absolute URLs referenced from CSS text: @import targets
// as styles, @font-face sources as fonts and any other url() as images.
// Unparseable CSS yields empty lists.
func ScanStylesheet(text string) Resources {
	res := NewResources()
	sheet, err := parser.Parse(text)
	if err != nil {
		return res
	}
	scanRules(sheet.Rules, &res)
	return res
}

// ScanInlineStyles runs ScanStylesheet over every <style> element of doc.
func ScanInlineStyles(doc dom.Document) Resources {
	res := NewResources()
	for _, el := range doc.QueryAll("style") {
		found := ScanStylesheet(el.Text())
		res.Styles = append(res.Styles, found.Styles...)
		res.Fonts = append(res.Fonts, found.Fonts...)
		res.Images = append(res.Images, found.Images...)
	}
	return res
}

func scanRules(rules []*css.Rule, res *Resources) {
	for _, rule := range rules {
		switch {
		case rule.Kind == css.AtRule && rule.Name == "@import":
			target := strings.Trim(rule.Prelude, ` "'`)
			if m := cssURLPattern.FindStringSubmatch(rule.Prelude); m != nil {
				target = m[1]
			}
			if strings.HasPrefix(target, "http") {
				res.Styles = append(res.Styles, target)
			}
		case rule.Kind == css.AtRule && rule.Name == "@font-face":
			res.Fonts = append(res.Fonts, declarationURLs(rule.Declarations)...)
		default:
			res.Images = append(res.Images, declarationURLs(rule.Declarations)...)
		}
		if len(rule.Rules) > 0 {
			scanRules(rule.Rules, res)
		}
	}
}

func declarationURLs(decls []*css.Declaration) []string {
	var out []string
	for _, d := range decls {
		for _, m := range cssURLPattern.FindAllStringSubmatch(d.Value, -1) {
			if strings.HasPrefix(m[1], "http") {
				out = append(out, m[1])
			}
		}
	}
	return out
}

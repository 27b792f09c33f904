// Package dom defines the small document-query capability the auditor needs
// and a goquery-backed implementation of it.
package dom

import (
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
)

// Attribute is one element attribute, in document order.
type Attribute struct {
	Key string
	Val string
}

// Element is a handle to one element of a parsed document.
type Element interface {
	// Attr returns the value of the named attribute.
	Attr(name string) (string, bool)
	// Attributes returns all attributes in source order.
	Attributes() []Attribute
	// Text returns the concatenated text content.
	Text() string
}

// Document is a parsed HTML page that can be queried with CSS selectors.
type Document interface {
	// QueryAll returns matching elements in document order. An invalid
	// selector matches nothing.
	QueryAll(selector string) []Element
}

type document struct {
	doc *goquery.Document
}

// Parse reads an HTML document.
func Parse(r io.Reader) (Document, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, err
	}
	return &document{doc: doc}, nil
}

// ParseString parses an HTML document held in memory.
func ParseString(body string) (Document, error) {
	return Parse(strings.NewReader(body))
}

func (d *document) QueryAll(selector string) []Element {
	matcher, err := cascadia.Compile(selector)
	if err != nil {
		return nil
	}
	sel := d.doc.FindMatcher(matcher)
	out := make([]Element, 0, len(sel.Nodes))
	for _, n := range sel.Nodes {
		out = append(out, element{node: n})
	}
	return out
}

type element struct {
	node *html.Node
}

func (e element) Attr(name string) (string, bool) {
	for _, a := range e.node.Attr {
		if a.Key == name {
			return a.Val, true
		}
	}
	return "", false
}

func (e element) Attributes() []Attribute {
	out := make([]Attribute, 0, len(e.node.Attr))
	for _, a := range e.node.Attr {
		out = append(out, Attribute{Key: a.Key, Val: a.Val})
	}
	return out
}

func (e element) Text() string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(e.node)
	return b.String()
}

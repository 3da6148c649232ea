// Package dom is the narrow HTML query capability the crawler relies on.
// Parsing is backed by goquery; callers only see Node.
package dom

import (
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"
)

// Node is a single element handle.
type Node interface {
	// Name returns the lowercase tag name.
	Name() string
	// Attr returns the value of the named attribute.
	Attr(name string) (string, bool)
	// Text returns the concatenated text of the element and its descendants.
	Text() string
	// Strings returns every non-empty descendant text segment, trimmed, in
	// document order.
	Strings() []string
	// Parent returns the enclosing element.
	Parent() (Node, bool)
	// FindAll returns descendants with the given tag that satisfy match, in
	// document order. A nil match accepts every element.
	FindAll(tag string, match Predicate) []Node
	// Find returns the first element FindAll would return.
	Find(tag string, match Predicate) (Node, bool)
}

// Predicate filters elements by their attributes.
type Predicate func(n Node) bool

// HasClass matches elements whose class list contains class.
func HasClass(class string) Predicate {
	return func(n Node) bool {
		v, ok := n.Attr("class")
		if !ok {
			return false
		}
		for _, c := range strings.Fields(v) {
			if c == class {
				return true
			}
		}
		return false
	}
}

// HasAttr matches elements carrying the named attribute.
func HasAttr(name string) Predicate {
	return func(n Node) bool {
		_, ok := n.Attr(name)
		return ok
	}
}

// AttrMatches matches elements whose attribute value matches re.
func AttrMatches(name string, re *regexp.Regexp) Predicate {
	return func(n Node) bool {
		v, ok := n.Attr(name)
		return ok && re.MatchString(v)
	}
}

// Parse reads an HTML document, decoding it according to contentType (the
// value of a Content-Type header, may be empty), and returns its root.
func Parse(r io.Reader, contentType string) (Node, error) {
	utf8, err := charset.NewReader(r, contentType)
	if err != nil {
		return nil, fmt.Errorf("detect charset: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(utf8)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	return &element{sel: doc.Selection}, nil
}

// ParseString parses an already decoded HTML string.
func ParseString(s string) (Node, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return &element{sel: doc.Selection}, nil
}

// element wraps a goquery selection holding exactly one node.
type element struct {
	sel *goquery.Selection
}

func (e *element) Name() string {
	return goquery.NodeName(e.sel)
}

func (e *element) Attr(name string) (string, bool) {
	return e.sel.Attr(name)
}

func (e *element) Text() string {
	return e.sel.Text()
}

func (e *element) Strings() []string {
	var out []string
	for _, n := range e.sel.Nodes {
		collectText(n, &out)
	}
	return out
}

func collectText(n *html.Node, out *[]string) {
	if n.Type == html.TextNode {
		if s := strings.TrimSpace(n.Data); s != "" {
			*out = append(*out, s)
		}
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, out)
	}
}

func (e *element) Parent() (Node, bool) {
	p := e.sel.Parent()
	if p.Length() == 0 || p.Nodes[0].Type != html.ElementNode {
		return nil, false
	}
	return &element{sel: p.First()}, true
}

func (e *element) FindAll(tag string, match Predicate) []Node {
	var out []Node
	e.sel.Find(tag).Each(func(_ int, s *goquery.Selection) {
		n := &element{sel: s}
		if match == nil || match(n) {
			out = append(out, n)
		}
	})
	return out
}

func (e *element) Find(tag string, match Predicate) (Node, bool) {
	var found Node
	e.sel.Find(tag).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		n := &element{sel: s}
		if match == nil || match(n) {
			found = n
			return false
		}
		return true
	})
	return found, found != nil
}

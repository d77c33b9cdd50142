package crawler

import (
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// goqueryDocument adapts a goquery document to Document
type goqueryDocument struct {
	doc *goquery.Document
}

// goqueryElement adapts a single-node goquery selection to Element
type goqueryElement struct {
	sel *goquery.Selection
}

// NewDocumentFromReader parses HTML from r
func NewDocumentFromReader(r io.Reader) (Document, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("HTML parsing error: %w", err)
	}
	return &goqueryDocument{doc: doc}, nil
}

// NewDocumentFromHTML parses an HTML string
func NewDocumentFromHTML(html string) (Document, error) {
	return NewDocumentFromReader(strings.NewReader(html))
}

func (d *goqueryDocument) QueryAll(selector string) []Element {
	return wrapSelection(d.doc.Find(selector))
}

func wrapSelection(sel *goquery.Selection) []Element {
	elements := make([]Element, 0, sel.Length())
	sel.Each(func(_ int, s *goquery.Selection) {
		elements = append(elements, &goqueryElement{sel: s})
	})
	return elements
}

func (e *goqueryElement) Attr(name string) (string, bool) {
	return e.sel.Attr(name)
}

func (e *goqueryElement) Text() string {
	return strings.TrimSpace(e.sel.Text())
}

func (e *goqueryElement) OwnText() string {
	textNodes := e.sel.Contents().FilterFunction(func(_ int, s *goquery.Selection) bool {
		return goquery.NodeName(s) == "#text"
	})
	return strings.TrimSpace(textNodes.Text())
}

func (e *goqueryElement) InnerHTML() string {
	html, err := e.sel.Html()
	if err != nil {
		return ""
	}
	return html
}

func (e *goqueryElement) QueryAll(selector string) []Element {
	return wrapSelection(e.sel.Find(selector))
}

// first returns the first match of selector under el, or nil
func first(el Element, selector string) Element {
	if selector == "" {
		return nil
	}
	matches := el.QueryAll(selector)
	if len(matches) == 0 {
		return nil
	}
	return matches[0]
}

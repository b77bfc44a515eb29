package session

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/cockroachdb/errors"
)

// RenderedDocument is a snapshot of a settled page. All reads are CPU-bound
// lookups against the captured DOM; nothing here touches the browser, so a
// document can be read from any goroutine.
type RenderedDocument struct {
	URL  string
	HTML string

	doc *goquery.Document
}

func NewRenderedDocument(url, html string) (*RenderedDocument, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse rendered HTML")
	}
	return &RenderedDocument{
		URL:  url,
		HTML: html,
		doc:  doc,
	}, nil
}

// Doc exposes the parsed DOM for structure-aware consumers (the section
// parser walks it directly).
func (d *RenderedDocument) Doc() *goquery.Document {
	return d.doc
}

// ReadText returns the collapsed text of the first match, or "" when the
// selector hits nothing.
func (d *RenderedDocument) ReadText(selector string) string {
	return collapse(d.doc.Find(selector).First().Text())
}

// ReadAll returns every match in document order.
func (d *RenderedDocument) ReadAll(selector string) []RenderedElement {
	var out []RenderedElement
	d.doc.Find(selector).Each(func(_ int, sel *goquery.Selection) {
		out = append(out, RenderedElement{sel: sel})
	})
	return out
}

// RenderedElement is one matched element of a captured document.
type RenderedElement struct {
	sel *goquery.Selection
}

func (e RenderedElement) Text() string {
	return collapse(e.sel.Text())
}

func (e RenderedElement) Attr(name string) (string, bool) {
	return e.sel.Attr(name)
}

func (e RenderedElement) Find(selector string) []RenderedElement {
	var out []RenderedElement
	e.sel.Find(selector).Each(func(_ int, sel *goquery.Selection) {
		out = append(out, RenderedElement{sel: sel})
	})
	return out
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

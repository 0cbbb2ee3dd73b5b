package render

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Snapshot is an immutable capture of a rendered document.
type Snapshot struct {
	URL   string
	Title string
	Doc   *goquery.Document

	text string
}

// NewSnapshot parses markup captured from pageURL.
func NewSnapshot(pageURL, markup string) (*Snapshot, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("failed to parse document: %w", err)
	}
	if u, err := url.Parse(pageURL); err == nil {
		doc.Url = u
	}
	s := &Snapshot{
		URL:   pageURL,
		Title: strings.TrimSpace(doc.Find("title").First().Text()),
		Doc:   doc,
	}
	var b strings.Builder
	for _, n := range doc.Nodes {
		visibleText(n, &b)
	}
	s.text = strings.Join(strings.Fields(b.String()), " ")
	return s, nil
}

// Text is the whitespace-collapsed text a reader would see: script, style
// and head content are excluded.
func (s *Snapshot) Text() string { return s.text }

// Scheme of the page URL, "https" when unknown.
func (s *Snapshot) Scheme() string {
	if s.Doc.Url != nil && s.Doc.Url.Scheme != "" {
		return s.Doc.Url.Scheme
	}
	return "https"
}

var hiddenElements = map[string]bool{
	"head":     true,
	"script":   true,
	"style":    true,
	"noscript": true,
	"template": true,
}

func visibleText(n *html.Node, b *strings.Builder) {
	switch n.Type {
	case html.TextNode:
		b.WriteString(n.Data)
		b.WriteByte(' ')
		return
	case html.ElementNode:
		if hiddenElements[n.Data] {
			return
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		visibleText(c, b)
	}
}

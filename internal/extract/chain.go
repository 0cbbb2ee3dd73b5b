package extract

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/go-scripts/harvest/internal/profile"
)

// EvaluateChain returns the first non-empty value produced by the chain's
// candidates, evaluated inside card only. It reports false when no
// candidate matched, including when card is nil or empty.
func EvaluateChain(card *goquery.Selection, chain profile.FieldChain) (string, bool) {
	if card == nil || card.Length() == 0 {
		return "", false
	}
	for _, c := range chain.Candidates {
		if v, ok := evaluate(card, c); ok {
			return v, true
		}
	}
	return "", false
}

func evaluate(card *goquery.Selection, c profile.Candidate) (string, bool) {
	targets := card
	if c.Selector != "" {
		targets = card.Find(c.Selector)
	}

	var value string
	var found bool
	targets.EachWithBreak(func(_ int, el *goquery.Selection) bool {
		raw, ok := read(el, c.Attr)
		if !ok {
			return true
		}
		if v, ok := refine(raw, c); ok {
			value, found = v, true
			return false
		}
		return true
	})
	return value, found
}

func read(el *goquery.Selection, attr string) (string, bool) {
	if attr != "" {
		v, ok := el.Attr(attr)
		return strings.TrimSpace(v), ok
	}
	return collapse(el.Text()), true
}

// refine applies a candidate's filters in order: contains and reject on the
// raw value, then pattern, trim, prefix and suffix.
func refine(v string, c profile.Candidate) (string, bool) {
	if v == "" {
		return "", false
	}
	if c.Contains != "" && !strings.Contains(v, c.Contains) {
		return "", false
	}
	for _, r := range c.Reject {
		if r != "" && strings.Contains(v, r) {
			return "", false
		}
	}
	if re := c.Regexp(); re != nil {
		m := re.FindStringSubmatch(v)
		if m == nil {
			return "", false
		}
		v = m[0]
		if len(m) > 1 && m[1] != "" {
			v = m[1]
		}
	}
	for _, t := range c.Trim {
		v = strings.ReplaceAll(v, t, "")
	}
	v = strings.TrimSpace(v)
	if v == "" {
		return "", false
	}
	return c.Prefix + v + c.Suffix, true
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Absolute resolves a scraped link. Scheme-relative values take the page's
// scheme, anything else relative resolves against origin. data: URIs and
// unparseable values are returned unchanged.
func Absolute(raw, scheme string, origin *url.URL) string {
	switch {
	case raw == "":
		return raw
	case strings.HasPrefix(raw, "//"):
		return scheme + ":" + raw
	case strings.HasPrefix(raw, "data:"):
		return raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.IsAbs() || origin == nil {
		return raw
	}
	return origin.ResolveReference(u).String()
}

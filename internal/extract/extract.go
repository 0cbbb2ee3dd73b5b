// Package extract turns a rendered catalog page into product records.
package extract

import (
	"net/url"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/go-scripts/harvest/internal/profile"
	"github.com/go-scripts/harvest/internal/render"
	"github.com/go-scripts/harvest/internal/types"
)

// Pipeline extracts records using one site profile.
type Pipeline struct {
	profile *profile.SiteProfile
	fields  []string
}

// Result of one extraction.
type Result struct {
	Records []types.Record
	// Selector is the card selector that matched, empty when none did.
	Selector string
	// Matched counts elements found by Selector.
	Matched int
	// Noise counts matched elements dropped as non-products.
	Noise int
}

// CardCount is the number of usable cards, noise excluded.
func (r Result) CardCount() int { return len(r.Records) }

// New returns a Pipeline for p.
func New(p *profile.SiteProfile) *Pipeline {
	fields := make([]string, 0, len(p.Fields))
	for name := range p.Fields {
		fields = append(fields, name)
	}
	sort.Strings(fields)
	return &Pipeline{profile: p, fields: fields}
}

// Cards locates card elements. The first selector with a match wins.
func (p *Pipeline) Cards(doc *goquery.Document) (*goquery.Selection, string) {
	for _, sel := range p.profile.Cards {
		if cards := doc.Find(sel); cards.Length() > 0 {
			return cards, sel
		}
	}
	return nil, ""
}

// Extract reads every card on snap. Cards without a name, or matching an
// exclusion rule, are dropped and not counted.
func (p *Pipeline) Extract(snap *render.Snapshot, page types.PageRef) Result {
	var res Result
	cards, sel := p.Cards(snap.Doc)
	if cards == nil {
		return res
	}
	res.Selector = sel
	res.Matched = cards.Length()

	scheme := snap.Scheme()
	origin := p.profile.OriginURL()

	cards.Each(func(_ int, card *goquery.Selection) {
		rec, ok := p.record(card, scheme, origin)
		if !ok {
			res.Noise++
			return
		}
		if p.profile.LabelField != "" && page.Label != "" {
			rec[p.profile.LabelField] = page.Label
		}
		res.Records = append(res.Records, rec)
	})
	return res
}

func (p *Pipeline) record(card *goquery.Selection, scheme string, origin *url.URL) (types.Record, bool) {
	name, ok := EvaluateChain(card, p.profile.Fields[types.FieldName])
	if !ok {
		return nil, false
	}

	rec := types.Record{types.FieldName: name}
	for _, field := range p.fields {
		if field == types.FieldName {
			continue
		}
		chain := p.profile.Fields[field]
		v, ok := EvaluateChain(card, chain)
		if ok && isLink(field) {
			v = Absolute(v, scheme, origin)
		}
		if ok {
			rec[field] = v
		}
	}

	for _, ex := range p.profile.Exclude {
		if strings.Contains(rec[ex.Field], ex.Contains) {
			return nil, false
		}
	}

	for _, field := range p.fields {
		if _, ok := rec[field]; ok {
			continue
		}
		if fb := p.profile.Fields[field].Fallback; fb != "" {
			rec[field] = fb
		}
	}
	for _, field := range types.RequiredFields {
		if _, ok := rec[field]; !ok {
			rec[field] = types.Unavailable
		}
	}
	return rec, true
}

func isLink(field string) bool {
	return field == types.FieldURL || field == types.FieldImage
}

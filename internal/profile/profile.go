// Package profile defines the declarative description of one storefront:
// how its catalog cards are found, how each field is extracted, how the
// site paginates and how it signals that automated access was refused.
//
// Profiles are loaded once per run and never modified afterwards; every
// component receives a *SiteProfile and only reads from it.
package profile

import (
	"net/url"
	"regexp"
	"time"
)

// Strategy selects how the pagination controller reaches the next page.
type Strategy string

const (
	// StrategyQuery increments a URL query parameter.
	StrategyQuery Strategy = "query"
	// StrategyList walks a fixed list of category or page URLs.
	StrategyList Strategy = "list"
	// StrategyClick clicks a "next" control and waits for it to settle.
	StrategyClick Strategy = "click"
	// StrategyScroll expands an infinite listing by scrolling and pressing
	// a "show more" control.
	StrategyScroll Strategy = "scroll"
)

// SiteProfile describes how to harvest one storefront.
type SiteProfile struct {
	Name   string `yaml:"name"`
	Origin string `yaml:"origin"`

	Wait       Wait                  `yaml:"wait"`
	Cards      []string              `yaml:"cards"`
	Fields     map[string]FieldChain `yaml:"fields"`
	Exclude    []Exclusion           `yaml:"exclude"`
	LabelField string                `yaml:"label_field"`

	Pagination     Pagination   `yaml:"pagination"`
	EmptyThreshold int          `yaml:"empty_threshold"`
	Block          []Signature  `yaml:"block_signatures"`
	Scroll         ScrollPolicy `yaml:"scroll"`
	Retry          RetryPolicy  `yaml:"retry"`
	Pacing         Pacing       `yaml:"pacing"`

	origin *url.URL
	source string
}

// OriginURL returns the parsed origin. Only valid on loaded profiles.
func (p *SiteProfile) OriginURL() *url.URL {
	u := *p.origin
	return &u
}

// Source is the file the profile was loaded from, if any.
func (p *SiteProfile) Source() string { return p.source }

// Wait configures the selector awaited after each navigation.
type Wait struct {
	Selector string        `yaml:"selector"`
	Timeout  time.Duration `yaml:"timeout"`
}

// FieldChain is an ordered list of candidates tried until one yields a
// non-empty value.
type FieldChain struct {
	Candidates []Candidate `yaml:"candidates"`
	// Fallback replaces an absent value. Required fields fall back to
	// types.Unavailable when it is empty; optional fields are omitted.
	Fallback string `yaml:"fallback"`
}

// Candidate is one way of reading a value out of a card.
type Candidate struct {
	// Selector is evaluated inside the card. Empty selects the card itself.
	Selector string `yaml:"selector"`
	// Attr reads an attribute instead of the element text.
	Attr string `yaml:"attr"`
	// Contains requires the value to contain this substring.
	Contains string `yaml:"contains"`
	// Reject discards values containing any of these substrings.
	Reject []string `yaml:"reject"`
	// Pattern keeps only the first match (or its first group).
	Pattern string `yaml:"pattern"`
	// Trim removes these literals from the value.
	Trim   []string `yaml:"trim"`
	Prefix string   `yaml:"prefix"`
	Suffix string   `yaml:"suffix"`

	re *regexp.Regexp
}

// Regexp returns the compiled Pattern, or nil.
func (c Candidate) Regexp() *regexp.Regexp { return c.re }

// Exclusion drops cards whose extracted field contains a marker.
type Exclusion struct {
	Field    string `yaml:"field"`
	Contains string `yaml:"contains"`
}

// Signature is a block marker matched against page text and title.
type Signature struct {
	Text      string `yaml:"text"`
	Pattern   string `yaml:"pattern"`
	TitleOnly bool   `yaml:"title_only"`

	re *regexp.Regexp
}

// Regexp returns the compiled Pattern, or nil.
func (s Signature) Regexp() *regexp.Regexp { return s.re }

// String is the human readable form used in logs and reports.
func (s Signature) String() string {
	if s.Pattern != "" {
		return "/" + s.Pattern + "/"
	}
	return s.Text
}

// ScrollPolicy drives the lazy-load scroll sequence.
type ScrollPolicy struct {
	Disabled bool `yaml:"disabled"`
	// Step is the scroll increment in pixels.
	Step int `yaml:"step"`
	// StepJitter adds up to this many random pixels to each step.
	StepJitter int           `yaml:"step_jitter"`
	Pause      time.Duration `yaml:"pause"`
	// RecheckEvery re-reads the scroll height every n steps.
	RecheckEvery int `yaml:"recheck_every"`
	// GrowthThreshold is the minimum height increase that extends the loop.
	GrowthThreshold int           `yaml:"growth_threshold"`
	MaxSteps        int           `yaml:"max_steps"`
	Settle          time.Duration `yaml:"settle"`
	// Bounce scrolls back up this many pixels after settling.
	Bounce      int           `yaml:"bounce"`
	BouncePause time.Duration `yaml:"bounce_pause"`
}

// RetryPolicy bounds attempts per page.
type RetryPolicy struct {
	Attempts   int           `yaml:"attempts"`
	BackoffMin time.Duration `yaml:"backoff_min"`
	BackoffMax time.Duration `yaml:"backoff_max"`
}

// Pacing spaces consecutive page fetches.
type Pacing struct {
	DelayMin time.Duration `yaml:"delay_min"`
	DelayMax time.Duration `yaml:"delay_max"`
}

// Pagination describes how successive pages are reached.
type Pagination struct {
	Strategy Strategy `yaml:"strategy"`
	// URL is the first page for query, click and scroll strategies.
	URL string `yaml:"url"`

	// query
	Param string `yaml:"param"`
	Start int    `yaml:"start"`

	// Pages is a known total. A non-zero value makes the strategy fixed.
	Pages int `yaml:"pages"`
	// Limit caps open-ended strategies.
	Limit int `yaml:"limit"`

	// list
	List []ListEntry `yaml:"list"`

	// click
	Next   Control       `yaml:"next"`
	Settle time.Duration `yaml:"settle"`

	// scroll
	LoadMore Control `yaml:"load_more"`
	// Nudge scrolls back up this many pixels after a fruitless probe so
	// footer-triggered loaders fire again.
	Nudge      int           `yaml:"nudge"`
	MaxProbes  int           `yaml:"max_probes"`
	ProbePause time.Duration `yaml:"probe_pause"`
}

// Fixed reports whether the page set is known in advance. Empty pages never
// end a fixed pagination early.
func (p Pagination) Fixed() bool {
	return p.Strategy == StrategyList || p.Pages > 0
}

// Bound is the maximum number of pages the strategy may visit.
func (p Pagination) Bound() int {
	switch {
	case p.Strategy == StrategyList:
		return len(p.List)
	case p.Pages > 0:
		return p.Pages
	default:
		return p.Limit
	}
}

// ListEntry is one URL of a fixed list, optionally labelled.
type ListEntry struct {
	Label string `yaml:"label"`
	URL   string `yaml:"url"`
}

// Control locates a clickable element. Text, when set, must equal the
// element's trimmed text; "{page}" is replaced with the target page number.
type Control struct {
	Selector string `yaml:"selector"`
	Text     string `yaml:"text"`
}

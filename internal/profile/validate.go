package profile

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/andybalholm/cascadia"

	"github.com/go-scripts/harvest/internal/types"
)

// Defaults applied to fields a profile leaves unset.
const (
	DefaultAttempts       = 3
	DefaultEmptyThreshold = 2
	DefaultLimit          = 50
	DefaultWaitTimeout    = 20 * time.Second
	DefaultScrollStep     = 400
	DefaultScrollPause    = 150 * time.Millisecond
	DefaultRecheckEvery   = 5
	DefaultGrowth         = 50
	DefaultMaxSteps       = 200
	DefaultSettle         = 1500 * time.Millisecond
	DefaultBackoffMin     = 4 * time.Second
	DefaultBackoffMax     = 8 * time.Second
	DefaultDelayMin       = 2 * time.Second
	DefaultDelayMax       = 5 * time.Second
	DefaultClickSettle    = 5 * time.Second
	DefaultMaxProbes      = 3
	DefaultNudge          = 300
	DefaultProbePause     = time.Second
)

func (p *SiteProfile) applyDefaults() {
	if p.EmptyThreshold == 0 {
		p.EmptyThreshold = DefaultEmptyThreshold
	}
	if p.Wait.Timeout == 0 {
		p.Wait.Timeout = DefaultWaitTimeout
	}

	s := &p.Scroll
	if s.Step == 0 {
		s.Step = DefaultScrollStep
	}
	if s.Pause == 0 {
		s.Pause = DefaultScrollPause
	}
	if s.RecheckEvery == 0 {
		s.RecheckEvery = DefaultRecheckEvery
	}
	if s.GrowthThreshold == 0 {
		s.GrowthThreshold = DefaultGrowth
	}
	if s.MaxSteps == 0 {
		s.MaxSteps = DefaultMaxSteps
	}
	if s.Settle == 0 {
		s.Settle = DefaultSettle
	}
	if s.Bounce > 0 && s.BouncePause == 0 {
		s.BouncePause = s.Pause
	}

	if p.Retry.Attempts == 0 {
		p.Retry.Attempts = DefaultAttempts
	}
	if p.Retry.BackoffMin == 0 && p.Retry.BackoffMax == 0 {
		p.Retry.BackoffMin, p.Retry.BackoffMax = DefaultBackoffMin, DefaultBackoffMax
	}
	if p.Pacing.DelayMin == 0 && p.Pacing.DelayMax == 0 {
		p.Pacing.DelayMin, p.Pacing.DelayMax = DefaultDelayMin, DefaultDelayMax
	}

	pg := &p.Pagination
	switch pg.Strategy {
	case StrategyQuery:
		if pg.Param == "" {
			pg.Param = "page"
		}
		if pg.Start == 0 {
			pg.Start = 1
		}
	case StrategyClick:
		if pg.Settle == 0 {
			pg.Settle = DefaultClickSettle
		}
	case StrategyScroll:
		if pg.Settle == 0 {
			pg.Settle = DefaultClickSettle
		}
		if pg.MaxProbes == 0 {
			pg.MaxProbes = DefaultMaxProbes
		}
		if pg.Nudge == 0 {
			pg.Nudge = DefaultNudge
		}
		if pg.ProbePause == 0 {
			pg.ProbePause = DefaultProbePause
		}
	}
	if pg.Strategy != StrategyList && pg.Pages == 0 && pg.Limit == 0 {
		pg.Limit = DefaultLimit
	}
}

func (p *SiteProfile) validate() error {
	fail := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s: %s", ErrInvalidProfile, p.displayName(), fmt.Sprintf(format, args...))
	}

	if strings.TrimSpace(p.Name) == "" {
		return fail("name is required")
	}
	origin, err := url.Parse(p.Origin)
	if err != nil || origin.Host == "" || (origin.Scheme != "http" && origin.Scheme != "https") {
		return fail("origin %q must be an absolute http(s) URL", p.Origin)
	}
	origin.Path, origin.RawQuery, origin.Fragment = "", "", ""
	p.origin = origin

	if len(p.Cards) == 0 {
		return fail("at least one card selector is required")
	}
	for _, sel := range p.Cards {
		if _, err := cascadia.Compile(sel); err != nil {
			return fail("card selector %q: %v", sel, err)
		}
	}
	for _, f := range types.RequiredFields {
		chain, ok := p.Fields[f]
		if !ok || len(chain.Candidates) == 0 {
			return fail("field %q needs at least one candidate", f)
		}
	}
	if p.Fields[types.FieldName].Fallback != "" {
		return fail("field %q cannot have a fallback", types.FieldName)
	}
	for name, chain := range p.Fields {
		for i := range chain.Candidates {
			c := &chain.Candidates[i]
			if c.Selector != "" {
				if _, err := cascadia.Compile(c.Selector); err != nil {
					return fail("field %q candidate %d selector: %v", name, i+1, err)
				}
			}
			if c.Pattern == "" {
				continue
			}
			re, err := regexp.Compile(c.Pattern)
			if err != nil {
				return fail("field %q candidate %d: %v", name, i+1, err)
			}
			c.re = re
		}
	}
	for _, ex := range p.Exclude {
		if _, ok := p.Fields[ex.Field]; !ok {
			return fail("exclude refers to unknown field %q", ex.Field)
		}
		if ex.Contains == "" {
			return fail("exclude on %q needs a marker", ex.Field)
		}
	}
	for i := range p.Block {
		s := &p.Block[i]
		switch {
		case s.Pattern != "":
			re, err := regexp.Compile(s.Pattern)
			if err != nil {
				return fail("block signature %d: %v", i+1, err)
			}
			s.re = re
		case s.Text == "":
			return fail("block signature %d is empty", i+1)
		}
	}

	if p.EmptyThreshold < 1 {
		return fail("empty_threshold must be at least 1")
	}
	if p.Retry.Attempts < 1 {
		return fail("retry attempts must be at least 1")
	}
	if p.Retry.BackoffMax < p.Retry.BackoffMin {
		return fail("backoff_max is below backoff_min")
	}
	if p.Pacing.DelayMax < p.Pacing.DelayMin {
		return fail("delay_max is below delay_min")
	}
	if p.Scroll.Step < 1 || p.Scroll.MaxSteps < 1 || p.Scroll.RecheckEvery < 1 {
		return fail("scroll step, max_steps and recheck_every must be positive")
	}

	pg := p.Pagination
	switch pg.Strategy {
	case StrategyQuery:
		if _, err := absolute(pg.URL); err != nil {
			return fail("pagination url: %v", err)
		}
	case StrategyList:
		if len(pg.List) == 0 {
			return fail("list strategy needs at least one entry")
		}
		for i, e := range pg.List {
			if _, err := absolute(e.URL); err != nil {
				return fail("list entry %d: %v", i+1, err)
			}
		}
	case StrategyClick:
		if _, err := absolute(pg.URL); err != nil {
			return fail("pagination url: %v", err)
		}
		if pg.Next.Selector == "" {
			return fail("click strategy needs next.selector")
		}
	case StrategyScroll:
		if _, err := absolute(pg.URL); err != nil {
			return fail("pagination url: %v", err)
		}
	default:
		return fail("unknown pagination strategy %q", pg.Strategy)
	}
	if pg.Pages < 0 || pg.Limit < 0 {
		return fail("pages and limit cannot be negative")
	}
	if pg.Strategy != StrategyList && pg.Bound() < 1 {
		return fail("pagination has no page bound")
	}
	return nil
}

func (p *SiteProfile) displayName() string {
	if p.Name != "" {
		return p.Name
	}
	return "<unnamed>"
}

func absolute(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if !u.IsAbs() || u.Host == "" {
		return nil, fmt.Errorf("%q is not an absolute URL", raw)
	}
	return u, nil
}

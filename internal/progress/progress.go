package progress

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/charmbracelet/bubbles/progress"
)

type siteProgress struct {
	bound   int
	pages   int
	records int
	done    bool
}

// Tracker follows page progress per site and renders progress bars.
type Tracker struct {
	overall progress.Model
	out     io.Writer
	sites   map[string]*siteProgress
	order   []string
	mu      sync.Mutex
}

// New creates a Tracker. When out is non-nil the overall bar is
// redrawn to it after every page.
func New(out io.Writer) *Tracker {
	return &Tracker{
		overall: progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
		out:     out,
		sites:   make(map[string]*siteProgress),
	}
}

func (t *Tracker) site(name string) *siteProgress {
	s, ok := t.sites[name]
	if !ok {
		s = &siteProgress{}
		t.sites[name] = s
		t.order = append(t.order, name)
	}
	return s
}

// Observe implements Observer.
func (t *Tracker) Observe(e Event) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := t.site(e.Site)
	if e.Bound > 0 {
		s.bound = e.Bound
	}
	switch e.Kind {
	case PageFetched:
		s.pages++
		s.records = e.Total
	case SiteFinished:
		s.done = true
		s.records = e.Total
	}

	if t.out != nil && (e.Kind == PageFetched || e.Kind == SiteFinished) {
		done, bound := t.totals()
		fmt.Fprintf(t.out, "\rProgress: %s %d/%d pages", t.overall.ViewAs(fraction(done, bound)), done, bound)
	}
}

// totals counts pages visited against the page bound. A finished site
// counts as complete even when it stopped before its bound.
func (t *Tracker) totals() (done, bound int) {
	for _, s := range t.sites {
		b := s.bound
		if b < s.pages {
			b = s.pages
		}
		bound += b
		if s.done {
			done += b
		} else {
			done += s.pages
		}
	}
	return done, bound
}

func fraction(done, bound int) float64 {
	if bound == 0 {
		return 0
	}
	f := float64(done) / float64(bound)
	if f > 1 {
		return 1
	}
	return f
}

// Fraction returns overall progress in [0, 1].
func (t *Tracker) Fraction() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return fraction(t.totals())
}

// SiteFraction returns one site's progress in [0, 1].
func (t *Tracker) SiteFraction(site string) float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.sites[site]
	switch {
	case !ok:
		return 0
	case s.done:
		return 1
	}
	return fraction(s.pages, s.bound)
}

// View renders one bar per site in first-seen order.
func (t *Tracker) View() string {
	t.mu.Lock()
	defer t.mu.Unlock()

	width := 0
	for _, name := range t.order {
		width = max(width, len(name))
	}
	names := append([]string(nil), t.order...)
	sort.SliceStable(names, func(i, j int) bool {
		return !t.sites[names[i]].done && t.sites[names[j]].done
	})

	var b strings.Builder
	for _, name := range names {
		s := t.sites[name]
		f := fraction(s.pages, s.bound)
		if s.done {
			f = 1
		}
		fmt.Fprintf(&b, "%-*s %s %3d pages %5d records\n", width, name, t.overall.ViewAs(f), s.pages, s.records)
	}
	return b.String()
}

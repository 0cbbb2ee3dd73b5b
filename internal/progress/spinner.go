package progress

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/briandowns/spinner"
)

// Spinner shows the sites in flight on a single terminal line.
type Spinner struct {
	s      *spinner.Spinner
	mu     sync.Mutex
	active map[string]string
}

// NewSpinner creates a Spinner drawing to w. It is not started.
func NewSpinner(w io.Writer) *Spinner {
	s := spinner.New(spinner.CharSets[9], 100*time.Millisecond, spinner.WithWriter(w))
	s.Prefix = " "
	return &Spinner{s: s, active: make(map[string]string)}
}

func (sp *Spinner) Start() { sp.s.Start() }
func (sp *Spinner) Stop()  { sp.s.Stop() }

// Observe implements Observer.
func (sp *Spinner) Observe(e Event) {
	sp.mu.Lock()
	defer sp.mu.Unlock()

	switch e.Kind {
	case SiteStarted:
		sp.active[e.Site] = "starting"
	case PageFetched:
		status := fmt.Sprintf("page %d, %d records", e.Page, e.Total)
		if e.Blocked {
			status = fmt.Sprintf("page %d blocked", e.Page)
		}
		sp.active[e.Site] = status
	case SiteFinished:
		delete(sp.active, e.Site)
	default:
		return
	}

	suffix := sp.suffix()
	sp.s.Lock()
	sp.s.Suffix = suffix
	sp.s.Unlock()
}

// Suffix is the text shown after the spinner.
func (sp *Spinner) Suffix() string {
	sp.mu.Lock()
	defer sp.mu.Unlock()
	return sp.suffix()
}

func (sp *Spinner) suffix() string {
	names := make([]string, 0, len(sp.active))
	for name := range sp.active {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = name + ": " + sp.active[name]
	}
	return " " + strings.Join(parts, " | ")
}

package main

import (
	"time"

	"github.com/go-scripts/harvest/internal/harvest"
	"github.com/go-scripts/harvest/internal/progress"
	"github.com/go-scripts/harvest/ui"
)

// Message types
type progressMsg struct{ event progress.Event }

type runFinishedMsg struct {
	reports []harvest.Report
	err     error
}

type statsTickMsg struct{}

// siteCounters is per-site bookkeeping for the dashboard
type siteCounters struct {
	pages   int
	empty   int
	blocked int
	records int
	added   int
	cards   int
}

// Model is the dashboard state
type Model struct {
	layout *ui.Layout
	ready  bool
	done   bool
	err    error
	cancel func()

	sites     map[string]*siteCounters
	tracker   *progress.Tracker
	queued    int
	finished  int
	failed    int
	reports   []harvest.Report
	startTime time.Time
}

func newModel(workers int, cancel func()) Model {
	return Model{
		layout:  ui.NewLayout(workers),
		cancel:  cancel,
		sites:   make(map[string]*siteCounters),
		tracker: progress.New(nil),
	}
}

func (m *Model) counters(site string) *siteCounters {
	c, ok := m.sites[site]
	if !ok {
		c = &siteCounters{}
		m.sites[site] = c
	}
	return c
}

// stats totals the counters for the statistics panel
func (m *Model) stats() ui.HarvestStats {
	s := ui.HarvestStats{
		Sites:     m.queued,
		Finished:  m.finished,
		Failed:    m.failed,
		Busy:      m.layout.Busy(),
		StartTime: m.startTime,
		Fraction:  m.tracker.Fraction(),
	}
	for _, c := range m.sites {
		s.Pages += c.pages
		s.Empty += c.empty
		s.Blocked += c.blocked
		s.Records += c.records
		s.Duplicates += c.cards - c.added
	}
	return s
}

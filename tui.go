package main

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/go-scripts/harvest/internal/config"
	"github.com/go-scripts/harvest/internal/harvest"
	"github.com/go-scripts/harvest/internal/profile"
	"github.com/go-scripts/harvest/internal/progress"
	"github.com/go-scripts/harvest/ui"
)

func tickStats() tea.Cmd {
	return tea.Every(time.Second, func(time.Time) tea.Msg { return statsTickMsg{} })
}

// Init is the first function called. It returns an optional initial command.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.layout.Init(), tickStats())
}

// Update handles all the updates and state transitions
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case statsTickMsg:
		m.layout.UpdateStats(m.stats())
		cmds = append(cmds, tickStats())

	case tea.WindowSizeMsg:
		m.ready = true

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			if !m.done && m.cancel != nil {
				m.layout.AddWarning("Interrupted, flushing records gathered so far...")
				m.cancel()
			}
			return m, tea.Quit
		}

	case progressMsg:
		m.apply(msg.event)
		m.layout.UpdateStats(m.stats())
		return m, nil

	case runFinishedMsg:
		m.done = true
		m.reports = msg.reports
		m.err = msg.err
		m.layout.AddInfo(fmt.Sprintf("Harvest finished in %s. Press q to quit.", time.Since(m.startTime).Round(time.Second)))
		m.layout.UpdateStats(m.stats())
	}

	_, cmd := m.layout.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

// apply folds one progress event into the dashboard
func (m *Model) apply(e progress.Event) {
	m.tracker.Observe(e)
	c := m.counters(e.Site)

	switch e.Kind {
	case progress.SiteQueued:
		m.queued++
		m.layout.QueueSite(e.Site, e.Bound)

	case progress.SiteStarted:
		if m.startTime.IsZero() {
			m.startTime = e.At
		}
		m.layout.StartSite(e.Worker, e.Site)

	case progress.PageFetched:
		c.pages++
		c.cards += e.Cards
		c.added += e.Added
		c.records = e.Total
		switch {
		case e.Blocked:
			c.blocked++
			m.layout.AddWarning(fmt.Sprintf("%s page %d blocked (%s)", e.Site, e.Page, e.Signature))
		case e.Cards == 0:
			c.empty++
		}
		m.layout.AddPage(e.Worker, ui.PageRow{
			Site:      e.Site,
			Page:      e.Page,
			Label:     e.Label,
			Cards:     e.Cards,
			Added:     e.Added,
			Attempts:  e.Attempts,
			Blocked:   e.Blocked,
			Signature: e.Signature,
			Exhausted: e.Exhausted,
		}, c.pages, c.records)

	case progress.SiteFinished:
		m.finished++
		c.records = e.Total
		if e.Err != nil {
			m.failed++
			m.layout.AddError(fmt.Sprintf("%s: %v", e.Site, e.Err))
		}
		m.layout.FinishSite(e.Worker, e.Site, e.Total, e.Err != nil)
	}
}

// View returns a string representation of the UI
func (m Model) View() string {
	if !m.ready {
		return "Initializing...\n"
	}
	return m.layout.View()
}

// runDashboard runs the harvest behind the bubbletea dashboard. Log output
// goes to the dashboard console.
func (a *app) runDashboard(ctx context.Context, cfg *config.Config, runner *harvest.Runner, sites []*profile.SiteProfile) ([]harvest.Report, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	model := newModel(min(cfg.Concurrency, len(sites)), cancel)
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))

	logger := newLogger(&ui.LogWriter{Send: p.Send}, cfg, false)
	runner.Logger = logger
	runner.Open = a.open(*cfg, logger)
	runner.Observer = progress.ObserverFunc(func(e progress.Event) { p.Send(progressMsg{event: e}) })

	type result struct {
		reports []harvest.Report
		err     error
	}
	done := make(chan result, 1)
	go func() {
		reports, err := runner.Run(ctx, sites)
		p.Send(runFinishedMsg{reports: reports, err: err})
		done <- result{reports, err}
	}()

	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		cancel()
		<-done
		return nil, fmt.Errorf("dashboard: %w", err)
	}
	// the run may still be flushing after an early quit
	cancel()
	res := <-done
	return res.reports, res.err
}
